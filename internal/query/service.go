package query

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"FarmLedger/internal/journal"
)

// QueryService provides read-only access to the projection tables and the
// event log. All responses carry as_of_sequence so clients can reason about
// projection freshness.
type QueryService struct {
	db *sql.DB
}

func NewQueryService(db *sql.DB) *QueryService {
	return &QueryService{db: db}
}

// GetHolderBalances returns a holder's projected balance for every asset.
// Assets with no journal activity are reported as zero.
func (qs *QueryService) GetHolderBalances(
	ctx context.Context,
	addr common.Address,
) (*HolderBalanceResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	resp := &HolderBalanceResponse{
		Address:      addr.Hex(),
		AsOfSequence: asOfSeq,
	}

	for _, asset := range []string{"YIELD", "BORROW", "DEBT", "LPSHARE"} {
		id, _ := journal.GetAssetID(asset)
		path := journal.NewHolderAccountKey(addr, id).AccountPath()

		balance, err := qs.getProjectedBalance(ctx, id, path)
		if err != nil {
			return nil, err
		}
		resp.Balances = append(resp.Balances, AssetBalance{Asset: asset, Balance: balance})
	}

	return resp, nil
}

// GetPoolState returns the projected accounting state of one farm.
func (qs *QueryService) GetPoolState(
	ctx context.Context,
	farm string,
) (*PoolStateResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	p := &PoolStateResponse{Farm: farm, AsOfSequence: asOfSeq}
	err = qs.db.QueryRowContext(ctx, `
		SELECT reward_rate, total_staked, reward_per_token, total_rewards_paid, last_update_time
		FROM projections.pool_state
		WHERE farm = $1
	`, farm).Scan(&p.RewardRate, &p.TotalStaked, &p.RewardPerToken,
		&p.TotalRewardsPaid, &p.LastUpdateTime)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("unknown farm: %s", farm)
	}
	if err != nil {
		return nil, err
	}

	return p, nil
}

// GetRewardHistory returns reward payout history, newest first, with
// cursor-based pagination on sequence.
func (qs *QueryService) GetRewardHistory(
	ctx context.Context,
	account string,
	farm *string,
	limit int,
	beforeSequence *int64,
) ([]RewardHistoryResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT farm, account, amount, sequence, paid_at
		FROM projections.reward_history
		WHERE account = $1
	`
	args := []interface{}{account}
	argIdx := 2

	if farm != nil {
		query += fmt.Sprintf(" AND farm = $%d", argIdx)
		args = append(args, *farm)
		argIdx++
	}

	if beforeSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *beforeSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []RewardHistoryResponse
	for rows.Next() {
		var h RewardHistoryResponse
		h.AsOfSequence = asOfSeq
		if err := rows.Scan(&h.Farm, &h.Account, &h.Amount, &h.Sequence, &h.PaidAt); err != nil {
			return nil, err
		}
		history = append(history, h)
	}

	return history, rows.Err()
}

// GetRewardsPaidTotal sums all reward payouts made to an account, optionally
// scoped to one farm. Accrued-but-unclaimed rewards are core state and are not
// visible to projections; this is the paid-to-date figure.
func (qs *QueryService) GetRewardsPaidTotal(
	ctx context.Context,
	account string,
	farm *string,
) (*RewardsPaidResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	resp := &RewardsPaidResponse{Account: account, AsOfSequence: asOfSeq}

	query := `
		SELECT COALESCE(SUM(amount), 0)::TEXT
		FROM projections.reward_history
		WHERE account = $1
	`
	args := []interface{}{account}

	if farm != nil {
		query += " AND farm = $2"
		args = append(args, *farm)
		resp.Farm = farm
	}

	if err := qs.db.QueryRowContext(ctx, query, args...).Scan(&resp.Total); err != nil {
		return nil, err
	}

	return resp, nil
}

// GetJournalHistory returns journal entries touching an account, newest
// first, with cursor-based pagination.
func (qs *QueryService) GetJournalHistory(
	ctx context.Context,
	account string,
	limit int,
	beforeSequence *int64,
) ([]JournalHistoryEntry, error) {
	query := `
		SELECT entry_id, batch_id, event_ref, sequence,
		       debit_account, credit_account, asset_id, amount, entry_type, timestamp
		FROM event_log.journal
		WHERE (debit_account = $1 OR credit_account = $1)
	`
	args := []interface{}{account}
	argIdx := 2

	if beforeSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *beforeSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []JournalHistoryEntry
	for rows.Next() {
		var e JournalHistoryEntry
		if err := rows.Scan(
			&e.EntryID, &e.BatchID, &e.EventRef, &e.Sequence,
			&e.DebitAccount, &e.CreditAccount, &e.AssetID, &e.Amount,
			&e.EntryType, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// --- Admin APIs ---

// VerifyIntegrity checks hash-chain continuity and the zero-sum balance
// invariant. Every journal entry moves an amount between two accounts, so
// balances must sum to zero per asset.
func (qs *QueryService) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT e1.sequence
		FROM event_log.events e1
		JOIN event_log.events e2 ON e2.sequence = e1.sequence - 1
		WHERE e1.prev_hash != e2.state_hash
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		report.HashChainBreaks = append(report.HashChainBreaks, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	balanceRows, err := qs.db.QueryContext(ctx, `
		SELECT asset_id, SUM(balance)::TEXT
		FROM projections.balances
		GROUP BY asset_id
		HAVING SUM(balance) != 0
	`)
	if err != nil {
		return nil, err
	}
	defer balanceRows.Close()

	for balanceRows.Next() {
		var ua UnbalancedAsset
		if err := balanceRows.Scan(&ua.AssetID, &ua.Imbalance); err != nil {
			return nil, err
		}
		report.UnbalancedAssets = append(report.UnbalancedAssets, ua)
	}
	if err := balanceRows.Err(); err != nil {
		return nil, err
	}

	report.IsHealthy = len(report.HashChainBreaks) == 0 && len(report.UnbalancedAssets) == 0
	return report, nil
}

// --- helpers ---

func (qs *QueryService) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT last_sequence FROM projections.watermark WHERE projection = 'main'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}

func (qs *QueryService) getProjectedBalance(ctx context.Context, assetID journal.AssetID, account string) (string, error) {
	var balance string
	err := qs.db.QueryRowContext(ctx, `
		SELECT balance::TEXT FROM projections.balances
		WHERE asset_id = $1 AND account = $2
	`, assetID, account).Scan(&balance)
	if err == sql.ErrNoRows {
		return "0", nil
	}
	return balance, err
}
