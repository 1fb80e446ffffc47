package ingestion

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"FarmLedger/internal/event"
)

// ParseRawEvent converts a RawEvent (JSON bytes + event type string) into a
// typed event.Event. The ingestion shell validates, parses, and converts raw
// events before sending to the deterministic core.
func ParseRawEvent(raw RawEvent, eventType string) (event.Event, error) {
	switch eventType {
	case "PositionMinted":
		return parsePositionMinted(raw.Data)
	case "PositionBurned":
		return parsePositionBurned(raw.Data)
	case "Staked":
		return parseStaked(raw.Data)
	case "Withdrawn":
		return parseWithdrawn(raw.Data)
	case "RewardClaimed":
		return parseRewardClaimed(raw.Data)
	case "Exited":
		return parseExited(raw.Data)
	case "LendBatch":
		return parseLendBatch(raw.Data)
	case "WithdrawBatch":
		return parseWithdrawBatch(raw.Data)
	case "DebtIssued":
		return parseDebtIssued(raw.Data)
	case "DebtRepaid":
		return parseDebtRepaid(raw.Data)
	case "RewardRateUpdate":
		return parseRewardRateUpdate(raw.Data)
	case "IncentiveCreated":
		return parseIncentiveCreated(raw.Data)
	case "IncentiveEntered":
		return parseIncentiveEntered(raw.Data)
	case "IncentiveExited":
		return parseIncentiveExited(raw.Data)
	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
}

// --- wire helpers ---
// Amounts travel as decimal strings of base units; int64 would overflow at
// 18 decimals. Addresses travel as 0x-prefixed hex.

func parseAmount(field, s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("parse %s: not a decimal integer: %q", field, s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("parse %s: negative amount: %q", field, s)
	}
	return v, nil
}

func parseAddress(field, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("parse %s: invalid address: %q", field, s)
	}
	return common.HexToAddress(s), nil
}

// --- JSON wire formats ---
// Field names use snake_case to match upstream producers.

type positionMintedJSON struct {
	MintID      string `json:"mint_id"`
	PositionID  uint64 `json:"position_id"`
	Owner       string `json:"owner"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parsePositionMinted(data []byte) (*event.PositionMinted, error) {
	var j positionMintedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PositionMinted: %w", err)
	}
	mintID, err := uuid.Parse(j.MintID)
	if err != nil {
		return nil, fmt.Errorf("parse mint_id: %w", err)
	}
	owner, err := parseAddress("owner", j.Owner)
	if err != nil {
		return nil, err
	}
	return &event.PositionMinted{
		MintID:     mintID,
		PositionID: j.PositionID,
		Owner:      owner,
		Sequence:   j.Sequence,
		Timestamp:  time.UnixMicro(j.TimestampUs),
	}, nil
}

type positionBurnedJSON struct {
	BurnID      string `json:"burn_id"`
	PositionID  uint64 `json:"position_id"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parsePositionBurned(data []byte) (*event.PositionBurned, error) {
	var j positionBurnedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PositionBurned: %w", err)
	}
	burnID, err := uuid.Parse(j.BurnID)
	if err != nil {
		return nil, fmt.Errorf("parse burn_id: %w", err)
	}
	return &event.PositionBurned{
		BurnID:     burnID,
		PositionID: j.PositionID,
		Sequence:   j.Sequence,
		Timestamp:  time.UnixMicro(j.TimestampUs),
	}, nil
}

type stakedJSON struct {
	StakeID     string `json:"stake_id"`
	Farm        string `json:"farm"`
	Account     string `json:"account"`
	Amount      string `json:"amount"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseStaked(data []byte) (*event.Staked, error) {
	var j stakedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse Staked: %w", err)
	}
	stakeID, err := uuid.Parse(j.StakeID)
	if err != nil {
		return nil, fmt.Errorf("parse stake_id: %w", err)
	}
	account, err := parseAddress("account", j.Account)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", j.Amount)
	if err != nil {
		return nil, err
	}
	return &event.Staked{
		StakeID:   stakeID,
		FarmName:  j.Farm,
		Account:   account,
		Amount:    amount,
		Sequence:  j.Sequence,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

type withdrawnJSON struct {
	WithdrawID  string `json:"withdraw_id"`
	Farm        string `json:"farm"`
	Account     string `json:"account"`
	Amount      string `json:"amount"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseWithdrawn(data []byte) (*event.Withdrawn, error) {
	var j withdrawnJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse Withdrawn: %w", err)
	}
	withdrawID, err := uuid.Parse(j.WithdrawID)
	if err != nil {
		return nil, fmt.Errorf("parse withdraw_id: %w", err)
	}
	account, err := parseAddress("account", j.Account)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", j.Amount)
	if err != nil {
		return nil, err
	}
	return &event.Withdrawn{
		WithdrawID: withdrawID,
		FarmName:   j.Farm,
		Account:    account,
		Amount:     amount,
		Sequence:   j.Sequence,
		Timestamp:  time.UnixMicro(j.TimestampUs),
	}, nil
}

type claimJSON struct {
	ClaimID     string `json:"claim_id"`
	Farm        string `json:"farm"`
	Account     string `json:"account"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseRewardClaimed(data []byte) (*event.RewardClaimed, error) {
	var j claimJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse RewardClaimed: %w", err)
	}
	claimID, err := uuid.Parse(j.ClaimID)
	if err != nil {
		return nil, fmt.Errorf("parse claim_id: %w", err)
	}
	account, err := parseAddress("account", j.Account)
	if err != nil {
		return nil, err
	}
	return &event.RewardClaimed{
		ClaimID:   claimID,
		FarmName:  j.Farm,
		Account:   account,
		Sequence:  j.Sequence,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

type exitJSON struct {
	ExitID      string `json:"exit_id"`
	Farm        string `json:"farm"`
	Account     string `json:"account"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseExited(data []byte) (*event.Exited, error) {
	var j exitJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse Exited: %w", err)
	}
	exitID, err := uuid.Parse(j.ExitID)
	if err != nil {
		return nil, fmt.Errorf("parse exit_id: %w", err)
	}
	account, err := parseAddress("account", j.Account)
	if err != nil {
		return nil, err
	}
	return &event.Exited{
		ExitID:    exitID,
		FarmName:  j.Farm,
		Account:   account,
		Sequence:  j.Sequence,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

type lendBatchJSON struct {
	BatchID     string   `json:"batch_id"`
	Farm        string   `json:"farm"`
	PositionIDs []uint64 `json:"position_ids"`
	Amounts     []string `json:"amounts"`
	Sequence    int64    `json:"sequence"`
	TimestampUs int64    `json:"timestamp_us"`
}

func parseBatchAmounts(positionIDs []uint64, amounts []string) ([]*big.Int, error) {
	if len(positionIDs) != len(amounts) {
		return nil, fmt.Errorf("batch length mismatch: %d position_ids, %d amounts",
			len(positionIDs), len(amounts))
	}
	parsed := make([]*big.Int, len(amounts))
	for i, s := range amounts {
		v, err := parseAmount(fmt.Sprintf("amounts[%d]", i), s)
		if err != nil {
			return nil, err
		}
		parsed[i] = v
	}
	return parsed, nil
}

func parseLendBatch(data []byte) (*event.LendBatch, error) {
	var j lendBatchJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse LendBatch: %w", err)
	}
	batchID, err := uuid.Parse(j.BatchID)
	if err != nil {
		return nil, fmt.Errorf("parse batch_id: %w", err)
	}
	amounts, err := parseBatchAmounts(j.PositionIDs, j.Amounts)
	if err != nil {
		return nil, err
	}
	return &event.LendBatch{
		BatchID:     batchID,
		FarmName:    j.Farm,
		PositionIDs: j.PositionIDs,
		Amounts:     amounts,
		Sequence:    j.Sequence,
		Timestamp:   time.UnixMicro(j.TimestampUs),
	}, nil
}

func parseWithdrawBatch(data []byte) (*event.WithdrawBatch, error) {
	var j lendBatchJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse WithdrawBatch: %w", err)
	}
	batchID, err := uuid.Parse(j.BatchID)
	if err != nil {
		return nil, fmt.Errorf("parse batch_id: %w", err)
	}
	amounts, err := parseBatchAmounts(j.PositionIDs, j.Amounts)
	if err != nil {
		return nil, err
	}
	return &event.WithdrawBatch{
		BatchID:     batchID,
		FarmName:    j.Farm,
		PositionIDs: j.PositionIDs,
		Amounts:     amounts,
		Sequence:    j.Sequence,
		Timestamp:   time.UnixMicro(j.TimestampUs),
	}, nil
}

type debtIssuedJSON struct {
	IssueID     string `json:"issue_id"`
	PositionID  uint64 `json:"position_id"`
	Amount      string `json:"amount"`
	Recipient   string `json:"recipient"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseDebtIssued(data []byte) (*event.DebtIssued, error) {
	var j debtIssuedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse DebtIssued: %w", err)
	}
	issueID, err := uuid.Parse(j.IssueID)
	if err != nil {
		return nil, fmt.Errorf("parse issue_id: %w", err)
	}
	amount, err := parseAmount("amount", j.Amount)
	if err != nil {
		return nil, err
	}
	recipient, err := parseAddress("recipient", j.Recipient)
	if err != nil {
		return nil, err
	}
	return &event.DebtIssued{
		IssueID:    issueID,
		PositionID: j.PositionID,
		Amount:     amount,
		Recipient:  recipient,
		Sequence:   j.Sequence,
		Timestamp:  time.UnixMicro(j.TimestampUs),
	}, nil
}

type debtRepaidJSON struct {
	RepayID     string `json:"repay_id"`
	PositionID  uint64 `json:"position_id"`
	Amount      string `json:"amount"`
	Payer       string `json:"payer"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseDebtRepaid(data []byte) (*event.DebtRepaid, error) {
	var j debtRepaidJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse DebtRepaid: %w", err)
	}
	repayID, err := uuid.Parse(j.RepayID)
	if err != nil {
		return nil, fmt.Errorf("parse repay_id: %w", err)
	}
	amount, err := parseAmount("amount", j.Amount)
	if err != nil {
		return nil, err
	}
	payer, err := parseAddress("payer", j.Payer)
	if err != nil {
		return nil, err
	}
	return &event.DebtRepaid{
		RepayID:    repayID,
		PositionID: j.PositionID,
		Amount:     amount,
		Payer:      payer,
		Sequence:   j.Sequence,
		Timestamp:  time.UnixMicro(j.TimestampUs),
	}, nil
}

type rateUpdateJSON struct {
	Farm          string `json:"farm"`
	Rate          string `json:"rate"`
	RateSequence  int64  `json:"rate_sequence"`
	RateTimestamp int64  `json:"rate_timestamp"` // Epoch seconds
}

func parseRewardRateUpdate(data []byte) (*event.RewardRateUpdate, error) {
	var j rateUpdateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse RewardRateUpdate: %w", err)
	}
	rate, err := parseAmount("rate", j.Rate)
	if err != nil {
		return nil, err
	}
	return &event.RewardRateUpdate{
		FarmName:      j.Farm,
		Rate:          rate,
		RateSequence:  j.RateSequence,
		RateTimestamp: j.RateTimestamp,
	}, nil
}

type incentiveCreatedJSON struct {
	IncentiveID string `json:"incentive_id"`
	Reward      string `json:"reward"`
	StartTime   int64  `json:"start_time"`
	EndTime     int64  `json:"end_time"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseIncentiveCreated(data []byte) (*event.IncentiveCreated, error) {
	var j incentiveCreatedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse IncentiveCreated: %w", err)
	}
	incentiveID, err := uuid.Parse(j.IncentiveID)
	if err != nil {
		return nil, fmt.Errorf("parse incentive_id: %w", err)
	}
	reward, err := parseAmount("reward", j.Reward)
	if err != nil {
		return nil, err
	}
	return &event.IncentiveCreated{
		IncentiveID: incentiveID,
		Reward:      reward,
		StartTime:   j.StartTime,
		EndTime:     j.EndTime,
		Sequence:    j.Sequence,
		Timestamp:   time.UnixMicro(j.TimestampUs),
	}, nil
}

type incentiveEnteredJSON struct {
	EntryID     string `json:"entry_id"`
	PositionID  uint64 `json:"position_id"`
	Owner       string `json:"owner"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseIncentiveEntered(data []byte) (*event.IncentiveEntered, error) {
	var j incentiveEnteredJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse IncentiveEntered: %w", err)
	}
	entryID, err := uuid.Parse(j.EntryID)
	if err != nil {
		return nil, fmt.Errorf("parse entry_id: %w", err)
	}
	owner, err := parseAddress("owner", j.Owner)
	if err != nil {
		return nil, err
	}
	return &event.IncentiveEntered{
		EntryID:    entryID,
		PositionID: j.PositionID,
		Owner:      owner,
		Sequence:   j.Sequence,
		Timestamp:  time.UnixMicro(j.TimestampUs),
	}, nil
}

type incentiveExitedJSON struct {
	ExitID      string `json:"exit_id"`
	PositionID  uint64 `json:"position_id"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseIncentiveExited(data []byte) (*event.IncentiveExited, error) {
	var j incentiveExitedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse IncentiveExited: %w", err)
	}
	exitID, err := uuid.Parse(j.ExitID)
	if err != nil {
		return nil, fmt.Errorf("parse exit_id: %w", err)
	}
	return &event.IncentiveExited{
		ExitID:     exitID,
		PositionID: j.PositionID,
		Sequence:   j.Sequence,
		Timestamp:  time.UnixMicro(j.TimestampUs),
	}, nil
}
