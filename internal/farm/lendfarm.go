package farm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"FarmLedger/internal/auth"
	"FarmLedger/internal/registry"
	"FarmLedger/internal/token"
)

// DefaultMaxBatch caps batch sizes on the lend farm.
const DefaultMaxBatch = 64

// LendFarm is the LP-SFT variant: positions lend their shares into the farm
// by minting the LP share token at the position account. Stake is delegated
// to share balances like the NFT farm, and batch operations run the full
// update protocol plus an immediate reward payout per element.
type LendFarm struct {
	*Farm
	shares   *token.Ledger
	registry *registry.PositionRegistry
	maxBatch int
}

// NewLendFarm creates a lend farm over the LP share ledger and registers
// itself as a transfer hook on it. farmAddr must be a minter on both the
// share and reward ledgers.
func NewLendFarm(
	name string,
	gate auth.Gate,
	reg *registry.PositionRegistry,
	shares, rewards *token.Ledger,
	farmAddr common.Address,
	rewardRate *big.Int,
	clock func() int64,
) *LendFarm {
	f := &LendFarm{
		Farm:     New(name, gate, NewTokenSource(shares), rewards, farmAddr, rewardRate, clock),
		shares:   shares,
		registry: reg,
		maxBatch: DefaultMaxBatch,
	}
	shares.RegisterHook(f)
	return f
}

// OnTransfer checkpoints both sides of an LP share movement before the
// balances change. The share ledger has minters besides this farm — the
// incentive bridge mints on position entry — so stake can change without a
// batch call going through here; the hook keeps accrual checkpointed either
// way. For the farm's own mints and burns the batch loop has already run the
// update at the same timestamp, so the extra update is a no-op.
func (f *LendFarm) OnTransfer(asset string, from, to common.Address, amount *big.Int) {
	if from != (common.Address{}) {
		f.updateReward(&from)
	}
	if to != (common.Address{}) {
		f.updateReward(&to)
	}
	if from == (common.Address{}) && to == (common.Address{}) {
		f.updateReward(nil)
	}
}

// Lend stakes amount of LP shares for one position.
func (f *LendFarm) Lend(caller common.Address, positionID uint64, amount *big.Int) error {
	return f.LendBatch(caller, []uint64{positionID}, []*big.Int{amount})
}

// Withdraw unstakes amount of LP shares for one position.
func (f *LendFarm) Withdraw(caller common.Address, positionID uint64, amount *big.Int) error {
	return f.WithdrawBatch(caller, []uint64{positionID}, []*big.Int{amount})
}

// LendBatch stakes shares for each position in caller-supplied order,
// paying out accrued rewards per element. Atomic: every element is resolved
// and validated before any state changes, so a bad element aborts the whole
// batch with nothing applied.
func (f *LendFarm) LendBatch(caller common.Address, positionIDs []uint64, amounts []*big.Int) error {
	if err := f.gate.Require(auth.RoleOperator, caller); err != nil {
		return err
	}
	if err := f.guard.enter(); err != nil {
		return err
	}
	defer f.guard.exit()

	accounts, err := f.validateBatch(positionIDs, amounts, "lend")
	if err != nil {
		return err
	}

	for i, account := range accounts {
		f.updateReward(&account)
		f.payAccrued(account)
		if err := f.shares.Mint(f.farmAddr, account, amounts[i]); err != nil {
			panic("farm " + f.name + ": share mint failed after checks: " + err.Error())
		}
	}
	return nil
}

// WithdrawBatch unstakes shares for each position in caller-supplied order,
// paying out accrued rewards per element. Atomic like LendBatch; a shortfall
// on any element aborts before anything is applied.
func (f *LendFarm) WithdrawBatch(caller common.Address, positionIDs []uint64, amounts []*big.Int) error {
	if err := f.gate.Require(auth.RoleOperator, caller); err != nil {
		return err
	}
	if err := f.guard.enter(); err != nil {
		return err
	}
	defer f.guard.exit()

	accounts, err := f.validateBatch(positionIDs, amounts, "withdraw")
	if err != nil {
		return err
	}

	// Balance check must account for repeated positions in one batch.
	needed := make(map[common.Address]*big.Int)
	for i, account := range accounts {
		if n, ok := needed[account]; ok {
			n.Add(n, amounts[i])
		} else {
			needed[account] = new(big.Int).Set(amounts[i])
		}
	}
	for account, need := range needed {
		if have := f.shares.BalanceOf(account); have.Cmp(need) < 0 {
			return &InsufficientStakeError{Farm: f.name, Account: account, Staked: have, Need: need}
		}
	}

	for i, account := range accounts {
		f.updateReward(&account)
		f.payAccrued(account)
		if err := f.shares.Burn(f.farmAddr, account, amounts[i]); err != nil {
			panic("farm " + f.name + ": share burn failed after checks: " + err.Error())
		}
	}
	return nil
}

// validateBatch resolves every position id and checks shape and amounts
// before any mutation. Results are in input order.
func (f *LendFarm) validateBatch(positionIDs []uint64, amounts []*big.Int, op string) ([]common.Address, error) {
	if len(positionIDs) == 0 || len(positionIDs) > f.maxBatch {
		return nil, &BatchSizeError{Farm: f.name, Size: len(positionIDs), Max: f.maxBatch}
	}
	if len(positionIDs) != len(amounts) {
		return nil, &BatchShapeError{Farm: f.name, IDs: len(positionIDs), Amounts: len(amounts)}
	}

	accounts := make([]common.Address, len(positionIDs))
	for i, id := range positionIDs {
		account, err := f.registry.AddressOf(id)
		if err != nil {
			return nil, err
		}
		if amounts[i] == nil || amounts[i].Sign() <= 0 {
			return nil, &ZeroAmountError{Farm: f.name, Op: op}
		}
		accounts[i] = account
	}
	return accounts, nil
}
