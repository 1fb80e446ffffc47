package farm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"FarmLedger/internal/auth"
	"FarmLedger/internal/token"
)

// NFTStakeFarm is the reactive LP variant: stake and total are read from the
// LP share ledger, never counted here. Stake and unstake are implicit side
// effects of minting and burning LP shares elsewhere — the farm only runs
// the accrual update from the ledger's transfer hook.
type NFTStakeFarm struct {
	*Farm
}

// NewNFTStakeFarm creates a reactive farm over the LP share ledger and
// registers itself as a transfer hook on it.
func NewNFTStakeFarm(
	name string,
	gate auth.Gate,
	shares, rewards *token.Ledger,
	farmAddr common.Address,
	rewardRate *big.Int,
	clock func() int64,
) *NFTStakeFarm {
	f := &NFTStakeFarm{
		Farm: New(name, gate, NewTokenSource(shares), rewards, farmAddr, rewardRate, clock),
	}
	shares.RegisterHook(f)
	return f
}

// OnTransfer checkpoints both sides of an LP share movement before the
// balances change. Runs inside the ledger's mutation, so it takes no guard:
// the outer entry point already holds whatever guard applies.
func (f *NFTStakeFarm) OnTransfer(asset string, from, to common.Address, amount *big.Int) {
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
