// internal/event/incentive.go
package event

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// IncentiveCreated initializes the external incentive program
// the bridge deposits positions into. One-shot.
type IncentiveCreated struct {
	IncentiveID uuid.UUID // Idempotency key
	Reward      *big.Int
	StartTime   int64 // Epoch seconds
	EndTime     int64
	Sequence    int64
	Timestamp   time.Time
}

func (i *IncentiveCreated) IdempotencyKey() string {
	return i.IncentiveID.String()
}

func (i *IncentiveCreated) EventType() EventType {
	return EventTypeIncentiveCreated
}

func (i *IncentiveCreated) Farm() *string {
	return nil // Global event
}

func (i *IncentiveCreated) SourceSequence() int64 {
	return i.Sequence
}

// IncentiveEntered deposits a position into the external incentive
// program via the bridge. Owner is the wallet that takes everything
// home on exit.
type IncentiveEntered struct {
	EntryID    uuid.UUID
	PositionID uint64
	Owner      common.Address
	Sequence   int64
	Timestamp  time.Time
}

func (i *IncentiveEntered) IdempotencyKey() string {
	return i.EntryID.String()
}

func (i *IncentiveEntered) EventType() EventType {
	return EventTypeIncentiveEntered
}

func (i *IncentiveEntered) Farm() *string {
	return nil
}

func (i *IncentiveEntered) SourceSequence() int64 {
	return i.Sequence
}

// IncentiveExited withdraws a position from the external incentive
// program, returning liquidity and accrued reward to the owner.
type IncentiveExited struct {
	ExitID     uuid.UUID
	PositionID uint64
	Sequence   int64
	Timestamp  time.Time
}

func (i *IncentiveExited) IdempotencyKey() string {
	return i.ExitID.String()
}

func (i *IncentiveExited) EventType() EventType {
	return EventTypeIncentiveExited
}

func (i *IncentiveExited) Farm() *string {
	return nil
}

func (i *IncentiveExited) SourceSequence() int64 {
	return i.Sequence
}
