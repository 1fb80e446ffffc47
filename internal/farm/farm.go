// Package farm implements the reward-accrual stake ledgers. One generic Farm
// carries the shared reward-per-token update protocol; thin variants bind it
// to an internal stake counter (interest farm) or to external LP token
// balances (NFT stake farm, SFT lend farm).
package farm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"FarmLedger/internal/auth"
	"FarmLedger/internal/rewardmath"
	"FarmLedger/internal/token"
)

// stakeAccount is the per-account reward bookkeeping
type stakeAccount struct {
	rewardPerTokenPaid *big.Int
	accrued            *big.Int
}

// Farm holds the global pool state and per-account checkpoints shared by all
// variants. Owned by the single-threaded core; timestamps come from the
// injected clock, which the engine binds to the versioned event timestamp
// rather than wall-clock time.
type Farm struct {
	name     string
	gate     auth.Gate
	guard    guard
	source   StakeSource
	rewards  *token.Ledger
	farmAddr common.Address // identity the farm mints rewards with
	clock    func() int64

	rewardRate           *big.Int
	totalRewardsPaid     *big.Int
	lastUpdateTime       int64
	rewardPerTokenStored *big.Int
	accounts             map[common.Address]*stakeAccount
}

// New creates a farm over the given stake source, paying rewards by minting
// on the rewards ledger with farmAddr (which must be a registered minter).
func New(
	name string,
	gate auth.Gate,
	source StakeSource,
	rewards *token.Ledger,
	farmAddr common.Address,
	rewardRate *big.Int,
	clock func() int64,
) *Farm {
	f := &Farm{
		name:                 name,
		gate:                 gate,
		guard:                guard{component: name},
		source:               source,
		rewards:              rewards,
		farmAddr:             farmAddr,
		clock:                clock,
		rewardRate:           new(big.Int),
		totalRewardsPaid:     new(big.Int),
		rewardPerTokenStored: new(big.Int),
		accounts:             make(map[common.Address]*stakeAccount),
	}
	if rewardRate != nil {
		f.rewardRate.Set(rewardRate)
	}
	f.lastUpdateTime = clock()
	return f
}

// Name returns the farm's identifier
func (f *Farm) Name() string { return f.name }

// Address returns the identity the farm holds custody and mints with.
func (f *Farm) Address() common.Address { return f.farmAddr }

// updateReward runs the accrual protocol: advance the global accumulator,
// then checkpoint the given account against it. Must be the first effect of
// every mutator. Idempotent when no time has elapsed and no stake changed.
func (f *Farm) updateReward(account *common.Address) {
	now := f.clock()

	elapsed := now - f.lastUpdateTime
	f.rewardPerTokenStored = rewardmath.RewardPerToken(
		f.rewardPerTokenStored, elapsed, f.rewardRate, f.source.TotalStaked())
	if now > f.lastUpdateTime {
		f.lastUpdateTime = now
	}

	if account == nil {
		return
	}
	acct := f.account(*account)
	acct.accrued = rewardmath.Earned(
		f.source.StakedAmount(*account), f.rewardPerTokenStored,
		acct.rewardPerTokenPaid, acct.accrued)
	acct.rewardPerTokenPaid = new(big.Int).Set(f.rewardPerTokenStored)
}

func (f *Farm) account(addr common.Address) *stakeAccount {
	if acct, ok := f.accounts[addr]; ok {
		return acct
	}
	acct := &stakeAccount{
		rewardPerTokenPaid: new(big.Int),
		accrued:            new(big.Int),
	}
	f.accounts[addr] = acct
	return acct
}

// payAccrued transfers the account's accrued reward to it and zeroes the
// accrual. The mint is skipped for a zero amount, but the zeroing semantics
// are identical either way. Pre-conditions make the mint infallible; a mint
// failure here is a broken invariant, not a caller error.
func (f *Farm) payAccrued(account common.Address) *big.Int {
	acct := f.account(account)
	amount := acct.accrued
	acct.accrued = new(big.Int)

	if amount.Sign() == 0 {
		return amount
	}

	f.totalRewardsPaid.Add(f.totalRewardsPaid, amount)
	if err := f.rewards.Mint(f.farmAddr, account, amount); err != nil {
		panic("farm " + f.name + ": reward mint failed: " + err.Error())
	}
	return amount
}

// Earned returns the reward the account would receive from a claim right
// now, without mutating state.
func (f *Farm) Earned(account common.Address) *big.Int {
	now := f.clock()
	current := rewardmath.RewardPerToken(
		f.rewardPerTokenStored, now-f.lastUpdateTime, f.rewardRate, f.source.TotalStaked())

	acct, ok := f.accounts[account]
	if !ok {
		acct = &stakeAccount{rewardPerTokenPaid: new(big.Int), accrued: new(big.Int)}
	}
	return rewardmath.Earned(
		f.source.StakedAmount(account), current, acct.rewardPerTokenPaid, acct.accrued)
}

// BalanceOf returns the account's staked amount
func (f *Farm) BalanceOf(account common.Address) *big.Int {
	return f.source.StakedAmount(account)
}

// TotalLiquidity returns the pool's total staked amount
func (f *Farm) TotalLiquidity() *big.Int {
	return f.source.TotalStaked()
}

// RewardPerToken returns the accumulator as of now, without mutating state.
func (f *Farm) RewardPerToken() *big.Int {
	now := f.clock()
	return rewardmath.RewardPerToken(
		f.rewardPerTokenStored, now-f.lastUpdateTime, f.rewardRate, f.source.TotalStaked())
}

// RewardRate returns the current emission rate
func (f *Farm) RewardRate() *big.Int {
	return new(big.Int).Set(f.rewardRate)
}

// TotalRewardsPaid returns the cumulative reward ever paid out by this farm
func (f *Farm) TotalRewardsPaid() *big.Int {
	return new(big.Int).Set(f.totalRewardsPaid)
}

// SetRewardRate updates the emission rate. Accrual up to now is settled at
// the old rate first, so a rate change never rewrites history.
func (f *Farm) SetRewardRate(caller common.Address, rate *big.Int) error {
	if err := f.gate.Require(auth.RoleAdmin, caller); err != nil {
		return err
	}
	if err := f.guard.enter(); err != nil {
		return err
	}
	defer f.guard.exit()

	if rate == nil || rate.Sign() < 0 {
		return &ZeroAmountError{Farm: f.name, Op: "set reward rate"}
	}

	f.updateReward(nil)
	f.rewardRate = new(big.Int).Set(rate)
	return nil
}

// Claim pays out the account's accrued reward and zeroes it.
// Returns the amount paid.
func (f *Farm) Claim(caller, account common.Address) (*big.Int, error) {
	if err := f.gate.Require(auth.RoleOperator, caller); err != nil {
		return nil, err
	}
	if err := f.guard.enter(); err != nil {
		return nil, err
	}
	defer f.guard.exit()

	f.updateReward(&account)
	return f.payAccrued(account), nil
}

// PoolState is a copy of the farm's global accounting state.
type PoolState struct {
	Name                 string
	RewardRate           *big.Int
	TotalStaked          *big.Int
	LastUpdateTime       int64
	RewardPerTokenStored *big.Int
	TotalRewardsPaid     *big.Int
}

// AccountState is one account's checkpoint, exposed for snapshots.
type AccountState struct {
	RewardPerTokenPaid *big.Int
	Accrued            *big.Int
}

// Accounts returns a copy of every account checkpoint for snapshot
// persistence.
func (f *Farm) Accounts() map[common.Address]AccountState {
	out := make(map[common.Address]AccountState, len(f.accounts))
	for addr, a := range f.accounts {
		out[addr] = AccountState{
			RewardPerTokenPaid: new(big.Int).Set(a.rewardPerTokenPaid),
			Accrued:            new(big.Int).Set(a.accrued),
		}
	}
	return out
}

// RestorePool replaces the global accrual state from a snapshot.
func (f *Farm) RestorePool(rate *big.Int, lastUpdate int64, rewardPerTokenStored, totalRewardsPaid *big.Int) {
	f.rewardRate.Set(rate)
	f.lastUpdateTime = lastUpdate
	f.rewardPerTokenStored.Set(rewardPerTokenStored)
	f.totalRewardsPaid.Set(totalRewardsPaid)
}

// RestoreAccount replaces one account checkpoint from a snapshot.
func (f *Farm) RestoreAccount(addr common.Address, st AccountState) {
	f.accounts[addr] = &stakeAccount{
		rewardPerTokenPaid: new(big.Int).Set(st.RewardPerTokenPaid),
		accrued:            new(big.Int).Set(st.Accrued),
	}
}

// State returns a copy of the global pool state for hashing and queries.
func (f *Farm) State() PoolState {
	return PoolState{
		Name:                 f.name,
		RewardRate:           new(big.Int).Set(f.rewardRate),
		TotalStaked:          f.source.TotalStaked(),
		LastUpdateTime:       f.lastUpdateTime,
		RewardPerTokenStored: new(big.Int).Set(f.rewardPerTokenStored),
		TotalRewardsPaid:     new(big.Int).Set(f.totalRewardsPaid),
	}
}
