package farm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"FarmLedger/internal/auth"
	"FarmLedger/internal/token"
)

// InterestFarm is the ERC-20 variant: accounts stake a fungible token and
// the farm tracks staked amounts in its own private counters. Staked tokens
// are held by the farm identity until withdrawal.
type InterestFarm struct {
	*Farm
	counters *CounterSource
	staked   *token.Ledger
}

// NewInterestFarm creates an interest farm staking the given token.
// farmAddr must be a minter on the rewards ledger.
func NewInterestFarm(
	name string,
	gate auth.Gate,
	staked, rewards *token.Ledger,
	farmAddr common.Address,
	rewardRate *big.Int,
	clock func() int64,
) *InterestFarm {
	counters := NewCounterSource()
	return &InterestFarm{
		Farm:     New(name, gate, counters, rewards, farmAddr, rewardRate, clock),
		counters: counters,
		staked:   staked,
	}
}

// Stake adds amount to the account's stake, pulling the staked token from
// the account into farm custody. The account must have approved the farm.
func (f *InterestFarm) Stake(caller, account common.Address, amount *big.Int) error {
	if err := f.gate.Require(auth.RoleOperator, caller); err != nil {
		return err
	}
	if err := f.guard.enter(); err != nil {
		return err
	}
	defer f.guard.exit()

	if amount == nil || amount.Sign() <= 0 {
		return &ZeroAmountError{Farm: f.name, Op: "stake"}
	}

	// Pre-validate the token pull so the interaction below cannot fail after
	// internal accounting has changed.
	if have := f.staked.BalanceOf(account); have.Cmp(amount) < 0 {
		return &token.InsufficientBalanceError{
			Asset: f.staked.Symbol(), Holder: account,
			Have: have, Need: new(big.Int).Set(amount),
		}
	}
	if allowed := f.staked.Allowance(account, f.farmAddr); allowed.Cmp(amount) < 0 {
		return &token.InsufficientAllowanceError{
			Asset: f.staked.Symbol(), Owner: account, Spender: f.farmAddr,
			Have: allowed, Need: new(big.Int).Set(amount),
		}
	}

	f.updateReward(&account)
	f.counters.add(account, amount)

	if err := f.staked.TransferFrom(f.farmAddr, account, f.farmAddr, amount); err != nil {
		panic("farm " + f.name + ": stake pull failed after checks: " + err.Error())
	}
	return nil
}

// Withdraw removes amount from the account's stake and returns the staked
// token from farm custody.
func (f *InterestFarm) Withdraw(caller, account common.Address, amount *big.Int) error {
	if err := f.gate.Require(auth.RoleOperator, caller); err != nil {
		return err
	}
	if err := f.guard.enter(); err != nil {
		return err
	}
	defer f.guard.exit()

	if amount == nil || amount.Sign() <= 0 {
		return &ZeroAmountError{Farm: f.name, Op: "withdraw"}
	}
	if staked := f.counters.StakedAmount(account); staked.Cmp(amount) < 0 {
		return &InsufficientStakeError{Farm: f.name, Account: account, Staked: staked, Need: new(big.Int).Set(amount)}
	}

	f.updateReward(&account)
	f.counters.sub(account, amount)

	if err := f.staked.Transfer(f.farmAddr, account, amount); err != nil {
		panic("farm " + f.name + ": withdraw return failed after checks: " + err.Error())
	}
	return nil
}

// Exit withdraws the full stake and claims accrued rewards in one call.
// Returns the reward paid.
func (f *InterestFarm) Exit(caller, account common.Address) (*big.Int, error) {
	if err := f.gate.Require(auth.RoleOperator, caller); err != nil {
		return nil, err
	}
	if err := f.guard.enter(); err != nil {
		return nil, err
	}
	defer f.guard.exit()

	f.updateReward(&account)

	staked := f.counters.StakedAmount(account)
	if staked.Sign() > 0 {
		f.counters.sub(account, staked)
	}
	paid := f.payAccrued(account)

	if staked.Sign() > 0 {
		if err := f.staked.Transfer(f.farmAddr, account, staked); err != nil {
			panic("farm " + f.name + ": exit return failed: " + err.Error())
		}
	}
	return paid, nil
}

// Stakes returns a copy of all staked amounts for snapshot persistence.
func (f *InterestFarm) Stakes() map[common.Address]*big.Int {
	return f.counters.Snapshot()
}

// RestoreStakes reloads the stake counters from a snapshot. The custody
// balances on the staked ledger are restored separately.
func (f *InterestFarm) RestoreStakes(amounts map[common.Address]*big.Int) {
	f.counters.Restore(amounts)
}
