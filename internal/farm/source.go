package farm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"FarmLedger/internal/token"
)

// StakeSource abstracts where a farm reads per-account stake and pool total
// from. The interest farm keeps its own counters; the LP farms delegate to
// an external token balance/supply query and never maintain counters.
type StakeSource interface {
	StakedAmount(addr common.Address) *big.Int
	TotalStaked() *big.Int
}

// CounterSource tracks stake in private maps, mutated only by the owning
// farm's stake/withdraw entry points.
type CounterSource struct {
	amounts map[common.Address]*big.Int
	total   *big.Int
}

func NewCounterSource() *CounterSource {
	return &CounterSource{
		amounts: make(map[common.Address]*big.Int),
		total:   new(big.Int),
	}
}

func (s *CounterSource) StakedAmount(addr common.Address) *big.Int {
	if a, ok := s.amounts[addr]; ok {
		return new(big.Int).Set(a)
	}
	return new(big.Int)
}

func (s *CounterSource) TotalStaked() *big.Int {
	return new(big.Int).Set(s.total)
}

func (s *CounterSource) add(addr common.Address, amount *big.Int) {
	if a, ok := s.amounts[addr]; ok {
		a.Add(a, amount)
	} else {
		s.amounts[addr] = new(big.Int).Set(amount)
	}
	s.total.Add(s.total, amount)
}

func (s *CounterSource) sub(addr common.Address, amount *big.Int) {
	a := s.amounts[addr]
	a.Sub(a, amount)
	if a.Sign() == 0 {
		delete(s.amounts, addr)
	}
	s.total.Sub(s.total, amount)
}

// Restore replaces all staked amounts from a snapshot.
func (s *CounterSource) Restore(amounts map[common.Address]*big.Int) {
	s.amounts = make(map[common.Address]*big.Int, len(amounts))
	s.total = new(big.Int)
	for addr, amount := range amounts {
		if amount == nil || amount.Sign() == 0 {
			continue
		}
		s.amounts[addr] = new(big.Int).Set(amount)
		s.total.Add(s.total, amount)
	}
}

// Snapshot returns a copy of all staked amounts for state hashing.
func (s *CounterSource) Snapshot() map[common.Address]*big.Int {
	out := make(map[common.Address]*big.Int, len(s.amounts))
	for k, v := range s.amounts {
		out[k] = new(big.Int).Set(v)
	}
	return out
}

// TokenSource reads stake from a fungible ledger: an account's stake is its
// token balance, the pool total is the token supply.
type TokenSource struct {
	ledger *token.Ledger
}

func NewTokenSource(l *token.Ledger) *TokenSource {
	return &TokenSource{ledger: l}
}

func (s *TokenSource) StakedAmount(addr common.Address) *big.Int {
	return s.ledger.BalanceOf(addr)
}

func (s *TokenSource) TotalStaked() *big.Int {
	return s.ledger.TotalSupply()
}
