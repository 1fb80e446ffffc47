package ingestion

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"FarmLedger/internal/event"
)

// AdminIngestService provides manual event injection for operational fixes
// and backfills, not high-throughput ingestion (NATS handles that).
type AdminIngestService struct {
	eventChan chan<- event.Event
}

func NewAdminIngestService(eventChan chan<- event.Event) *AdminIngestService {
	return &AdminIngestService{eventChan: eventChan}
}

// InjectStake manually injects a Staked event.
func (s *AdminIngestService) InjectStake(
	ctx context.Context,
	farm string,
	account common.Address,
	amount *big.Int,
) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("amount must be positive")
	}

	evt := &event.Staked{
		StakeID:   uuid.New(),
		FarmName:  farm,
		Account:   account,
		Amount:    amount,
		Sequence:  time.Now().UnixMicro(), // Admin-injected: use timestamp as sequence
		Timestamp: time.Now(),
	}

	select {
	case s.eventChan <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InjectWithdraw manually injects a Withdrawn event.
func (s *AdminIngestService) InjectWithdraw(
	ctx context.Context,
	farm string,
	account common.Address,
	amount *big.Int,
) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("amount must be positive")
	}

	evt := &event.Withdrawn{
		WithdrawID: uuid.New(),
		FarmName:   farm,
		Account:    account,
		Amount:     amount,
		Sequence:   time.Now().UnixMicro(),
		Timestamp:  time.Now(),
	}

	select {
	case s.eventChan <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InjectRewardRate manually injects a RewardRateUpdate event.
func (s *AdminIngestService) InjectRewardRate(
	ctx context.Context,
	farm string,
	rate *big.Int,
	rateSequence int64,
) error {
	if rate == nil || rate.Sign() < 0 {
		return fmt.Errorf("rate must be non-negative")
	}

	evt := &event.RewardRateUpdate{
		FarmName:      farm,
		Rate:          rate,
		RateSequence:  rateSequence,
		RateTimestamp: time.Now().Unix(),
	}

	select {
	case s.eventChan <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InjectPositionMint manually injects a PositionMinted event.
func (s *AdminIngestService) InjectPositionMint(
	ctx context.Context,
	positionID uint64,
	owner common.Address,
) error {
	evt := &event.PositionMinted{
		MintID:     uuid.New(),
		PositionID: positionID,
		Owner:      owner,
		Sequence:   time.Now().UnixMicro(),
		Timestamp:  time.Now(),
	}

	select {
	case s.eventChan <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InjectPositionBurn manually injects a PositionBurned event.
func (s *AdminIngestService) InjectPositionBurn(
	ctx context.Context,
	positionID uint64,
) error {
	evt := &event.PositionBurned{
		BurnID:     uuid.New(),
		PositionID: positionID,
		Sequence:   time.Now().UnixMicro(),
		Timestamp:  time.Now(),
	}

	select {
	case s.eventChan <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
