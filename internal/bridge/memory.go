package bridge

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// MemoryIncentive is a deterministic in-process model of the upstream
// staking incentive. The real staker lives on-chain; this model mirrors the
// subset of its behavior the bridge depends on, driven entirely by the
// events the core feeds it. Liquidity per position is announced out of band
// via SetLiquidity before the position enters.
type MemoryIncentive struct {
	created   bool
	reward    *big.Int // undistributed incentive reward
	liquidity map[uint64]*big.Int
	staked    map[uint64]bool
	accrued   map[uint64]*big.Int
	claimable *big.Int // accrued but unclaimed, across all unstaked positions
	rewardOut map[common.Address]*big.Int
}

func NewMemoryIncentive() *MemoryIncentive {
	return &MemoryIncentive{
		reward:    new(big.Int),
		liquidity: make(map[uint64]*big.Int),
		staked:    make(map[uint64]bool),
		accrued:   make(map[uint64]*big.Int),
		claimable: new(big.Int),
		rewardOut: make(map[common.Address]*big.Int),
	}
}

// SetLiquidity records the liquidity of an upstream position. Must be set
// before the position enters the bridge.
func (m *MemoryIncentive) SetLiquidity(positionID uint64, liquidity *big.Int) {
	m.liquidity[positionID] = new(big.Int).Set(liquidity)
}

// Accrue credits reward to a staked position, drawing down the incentive.
func (m *MemoryIncentive) Accrue(positionID uint64, amount *big.Int) error {
	if !m.staked[positionID] {
		return fmt.Errorf("upstream: position %d not staked", positionID)
	}
	if m.reward.Cmp(amount) < 0 {
		return fmt.Errorf("upstream: incentive exhausted")
	}
	m.reward.Sub(m.reward, amount)
	acc, ok := m.accrued[positionID]
	if !ok {
		acc = new(big.Int)
		m.accrued[positionID] = acc
	}
	acc.Add(acc, amount)
	return nil
}

func (m *MemoryIncentive) CreateIncentive(reward *big.Int) error {
	if m.created {
		return fmt.Errorf("upstream: incentive already exists")
	}
	m.created = true
	m.reward.Set(reward)
	return nil
}

func (m *MemoryIncentive) StakeToken(positionID uint64) error {
	if !m.created {
		return fmt.Errorf("upstream: no incentive")
	}
	if _, ok := m.liquidity[positionID]; !ok {
		return fmt.Errorf("upstream: unknown position %d", positionID)
	}
	if m.staked[positionID] {
		return fmt.Errorf("upstream: position %d already staked", positionID)
	}
	m.staked[positionID] = true
	return nil
}

func (m *MemoryIncentive) UnstakeToken(positionID uint64) error {
	if !m.staked[positionID] {
		return fmt.Errorf("upstream: position %d not staked", positionID)
	}
	delete(m.staked, positionID)
	if acc, ok := m.accrued[positionID]; ok {
		m.claimable.Add(m.claimable, acc)
		delete(m.accrued, positionID)
	}
	return nil
}

// ClaimReward pays everything claimable to the given wallet.
func (m *MemoryIncentive) ClaimReward(to common.Address) (*big.Int, error) {
	paid := new(big.Int).Set(m.claimable)
	m.claimable.SetInt64(0)
	if paid.Sign() > 0 {
		out, ok := m.rewardOut[to]
		if !ok {
			out = new(big.Int)
			m.rewardOut[to] = out
		}
		out.Add(out, paid)
	}
	return paid, nil
}

func (m *MemoryIncentive) WithdrawToken(positionID uint64, to common.Address) error {
	if m.staked[positionID] {
		return fmt.Errorf("upstream: position %d still staked", positionID)
	}
	return nil
}

func (m *MemoryIncentive) PositionLiquidity(positionID uint64) (*big.Int, error) {
	liq, ok := m.liquidity[positionID]
	if !ok {
		return nil, fmt.Errorf("upstream: unknown position %d", positionID)
	}
	return new(big.Int).Set(liq), nil
}

// RewardPaidTo reports cumulative reward paid out to a wallet.
func (m *MemoryIncentive) RewardPaidTo(to common.Address) *big.Int {
	if out, ok := m.rewardOut[to]; ok {
		return new(big.Int).Set(out)
	}
	return new(big.Int)
}
