package event

import (
	"time"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypePositionMinted
	EventTypePositionBurned
	EventTypeStaked
	EventTypeWithdrawn
	EventTypeRewardClaimed
	EventTypeExited
	EventTypeLendBatch
	EventTypeWithdrawBatch
	EventTypeDebtIssued
	EventTypeDebtRepaid
	EventTypeRewardRateUpdate
	EventTypeIncentiveCreated
	EventTypeIncentiveEntered
	EventTypeIncentiveExited
)

// EventEnvelope wraps every event in the log
type EventEnvelope struct {
	// Global monotonic sequence assigned by core
	Sequence int64

	// Stable idempotency key from upstream
	IdempotencyKey string

	// Event type discriminator
	EventType EventType

	// Farm context (nullable for global events)
	Farm *string

	// Versioned input timestamp (NOT wall-clock)
	Timestamp time.Time

	// Upstream sequence for ordering validation
	SourceSequence int64

	// JSON-encoded event-specific data
	Payload []byte

	// SHA-256 of state AFTER applying this event
	StateHash [32]byte

	// Previous event's state hash (chain integrity)
	PrevHash [32]byte
}

// Event is the interface all event payloads must implement
type Event interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// EventType returns the discriminator
	EventType() EventType

	// Farm returns the farm context (nil for global events)
	Farm() *string

	// SourceSequence returns upstream ordering key
	SourceSequence() int64
}

func (et EventType) String() string {
	switch et {
	case EventTypePositionMinted:
		return "PositionMinted"
	case EventTypePositionBurned:
		return "PositionBurned"
	case EventTypeStaked:
		return "Staked"
	case EventTypeWithdrawn:
		return "Withdrawn"
	case EventTypeRewardClaimed:
		return "RewardClaimed"
	case EventTypeExited:
		return "Exited"
	case EventTypeLendBatch:
		return "LendBatch"
	case EventTypeWithdrawBatch:
		return "WithdrawBatch"
	case EventTypeDebtIssued:
		return "DebtIssued"
	case EventTypeDebtRepaid:
		return "DebtRepaid"
	case EventTypeRewardRateUpdate:
		return "RewardRateUpdate"
	case EventTypeIncentiveCreated:
		return "IncentiveCreated"
	case EventTypeIncentiveEntered:
		return "IncentiveEntered"
	case EventTypeIncentiveExited:
		return "IncentiveExited"
	default:
		return "Unknown"
	}
}
