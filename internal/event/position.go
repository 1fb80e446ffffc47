// internal/event/position.go
package event

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// PositionMinted registers a new LP position with the ledger.
// Idempotency key: mint_id (UUID from the custody gateway).
type PositionMinted struct {
	MintID     uuid.UUID // Idempotency key
	PositionID uint64
	Owner      common.Address
	Sequence   int64     // Source sequence from custody gateway
	Timestamp  time.Time // Versioned input timestamp (NOT wall-clock)
}

func (p *PositionMinted) IdempotencyKey() string {
	return p.MintID.String()
}

func (p *PositionMinted) EventType() EventType {
	return EventTypePositionMinted
}

func (p *PositionMinted) Farm() *string {
	return nil // Global event
}

func (p *PositionMinted) SourceSequence() int64 {
	return p.Sequence
}

// PositionBurned removes a position from the ledger.
type PositionBurned struct {
	BurnID     uuid.UUID
	PositionID uint64
	Sequence   int64
	Timestamp  time.Time
}

func (p *PositionBurned) IdempotencyKey() string {
	return p.BurnID.String()
}

func (p *PositionBurned) EventType() EventType {
	return EventTypePositionBurned
}

func (p *PositionBurned) Farm() *string {
	return nil
}

func (p *PositionBurned) SourceSequence() int64 {
	return p.Sequence
}
