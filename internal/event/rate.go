// internal/event/rate.go
package event

import (
	"fmt"
	"math/big"
)

// RewardRateUpdate sets the emission rate for a farm.
// Intermediate updates may be dropped upstream, so gaps in
// RateSequence are tolerated (only regressions are rejected).
type RewardRateUpdate struct {
	FarmName      string
	Rate          *big.Int // Base units per second
	RateSequence  int64    // Monotonic per farm
	RateTimestamp int64    // Epoch seconds (versioned input)
}

func (r *RewardRateUpdate) IdempotencyKey() string {
	return fmt.Sprintf("%s:rate:%d", r.FarmName, r.RateSequence)
}

func (r *RewardRateUpdate) EventType() EventType {
	return EventTypeRewardRateUpdate
}

func (r *RewardRateUpdate) Farm() *string {
	f := r.FarmName
	return &f
}

func (r *RewardRateUpdate) SourceSequence() int64 {
	return r.RateSequence
}
