// internal/event/stake.go
package event

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Staked deposits collateral tokens into an interest farm.
// Idempotency key: stake_id (UUID from the staking gateway).
type Staked struct {
	StakeID   uuid.UUID // Idempotency key
	FarmName  string
	Account   common.Address
	Amount    *big.Int  // Base units (18 decimals)
	Sequence  int64     // Source sequence from staking gateway
	Timestamp time.Time // Versioned input timestamp (NOT wall-clock)
}

func (s *Staked) IdempotencyKey() string {
	return s.StakeID.String()
}

func (s *Staked) EventType() EventType {
	return EventTypeStaked
}

func (s *Staked) Farm() *string {
	f := s.FarmName
	return &f
}

func (s *Staked) SourceSequence() int64 {
	return s.Sequence
}

// Withdrawn pulls staked collateral back out of an interest farm.
type Withdrawn struct {
	WithdrawID uuid.UUID
	FarmName   string
	Account    common.Address
	Amount     *big.Int
	Sequence   int64
	Timestamp  time.Time
}

func (w *Withdrawn) IdempotencyKey() string {
	return w.WithdrawID.String()
}

func (w *Withdrawn) EventType() EventType {
	return EventTypeWithdrawn
}

func (w *Withdrawn) Farm() *string {
	f := w.FarmName
	return &f
}

func (w *Withdrawn) SourceSequence() int64 {
	return w.Sequence
}

// RewardClaimed settles and pays out accrued yield for an account.
type RewardClaimed struct {
	ClaimID   uuid.UUID
	FarmName  string
	Account   common.Address
	Sequence  int64
	Timestamp time.Time
}

func (r *RewardClaimed) IdempotencyKey() string {
	return r.ClaimID.String()
}

func (r *RewardClaimed) EventType() EventType {
	return EventTypeRewardClaimed
}

func (r *RewardClaimed) Farm() *string {
	f := r.FarmName
	return &f
}

func (r *RewardClaimed) SourceSequence() int64 {
	return r.Sequence
}

// Exited withdraws the full stake and claims in one step.
type Exited struct {
	ExitID    uuid.UUID
	FarmName  string
	Account   common.Address
	Sequence  int64
	Timestamp time.Time
}

func (e *Exited) IdempotencyKey() string {
	return e.ExitID.String()
}

func (e *Exited) EventType() EventType {
	return EventTypeExited
}

func (e *Exited) Farm() *string {
	f := e.FarmName
	return &f
}

func (e *Exited) SourceSequence() int64 {
	return e.Sequence
}
