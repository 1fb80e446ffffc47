// internal/event/lend.go
package event

import (
	"math/big"
	"time"

	"github.com/google/uuid"
)

// LendBatch opens or grows lending positions in a lend farm.
// All elements apply atomically or the whole batch is rejected.
type LendBatch struct {
	BatchID     uuid.UUID // Idempotency key
	FarmName    string
	PositionIDs []uint64
	Amounts     []*big.Int // Parallel to PositionIDs
	Sequence    int64
	Timestamp   time.Time
}

func (l *LendBatch) IdempotencyKey() string {
	return l.BatchID.String()
}

func (l *LendBatch) EventType() EventType {
	return EventTypeLendBatch
}

func (l *LendBatch) Farm() *string {
	f := l.FarmName
	return &f
}

func (l *LendBatch) SourceSequence() int64 {
	return l.Sequence
}

// WithdrawBatch shrinks lending positions in a lend farm.
type WithdrawBatch struct {
	BatchID     uuid.UUID
	FarmName    string
	PositionIDs []uint64
	Amounts     []*big.Int
	Sequence    int64
	Timestamp   time.Time
}

func (w *WithdrawBatch) IdempotencyKey() string {
	return w.BatchID.String()
}

func (w *WithdrawBatch) EventType() EventType {
	return EventTypeWithdrawBatch
}

func (w *WithdrawBatch) Farm() *string {
	f := w.FarmName
	return &f
}

func (w *WithdrawBatch) SourceSequence() int64 {
	return w.Sequence
}
