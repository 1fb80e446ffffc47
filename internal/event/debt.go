// internal/event/debt.go
package event

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// DebtIssued mints synthetic tokens against a position's collateral.
// Idempotency key: issue_id (UUID from the issuance gateway).
type DebtIssued struct {
	IssueID    uuid.UUID // Idempotency key
	PositionID uint64
	Amount     *big.Int
	Recipient  common.Address
	Sequence   int64
	Timestamp  time.Time
}

func (d *DebtIssued) IdempotencyKey() string {
	return d.IssueID.String()
}

func (d *DebtIssued) EventType() EventType {
	return EventTypeDebtIssued
}

func (d *DebtIssued) Farm() *string {
	return nil // Global event
}

func (d *DebtIssued) SourceSequence() int64 {
	return d.Sequence
}

// DebtRepaid burns synthetic tokens and reduces a position's debt.
type DebtRepaid struct {
	RepayID    uuid.UUID
	PositionID uint64
	Amount     *big.Int
	Payer      common.Address
	Sequence   int64
	Timestamp  time.Time
}

func (d *DebtRepaid) IdempotencyKey() string {
	return d.RepayID.String()
}

func (d *DebtRepaid) EventType() EventType {
	return EventTypeDebtRepaid
}

func (d *DebtRepaid) Farm() *string {
	return nil
}

func (d *DebtRepaid) SourceSequence() int64 {
	return d.Sequence
}
