package projection

import (
	"context"
	"database/sql"
	"fmt"
	"log"
)

// ProjectionOutput mirrors the data projection workers need. The orchestrator
// (cmd/main.go) bridges between core.CoreOutput and this.
type ProjectionOutput struct {
	Sequence  int64
	EventType string
	FarmName  *string
	Entries   []JournalEntry
	Pool      *PoolState
	Timestamp int64
}

// JournalEntry is a simplified journal row for projection consumption.
// Amounts are decimal strings; Postgres does the arithmetic in NUMERIC.
type JournalEntry struct {
	DebitAccount  string
	CreditAccount string
	AssetID       uint16
	Amount        string
	EntryType     int32
}

// PoolState is a farm's accounting state as of the event that produced it.
type PoolState struct {
	Farm             string
	RewardRate       string
	TotalStaked      string
	RewardPerToken   string
	TotalRewardsPaid string
	LastUpdateTime   int64
}

// ProjectionWorker maintains the read-model tables from processed events.
// Projections are derived state: a failed update is logged and skipped, and
// RebuildProjections replays them from the event log.
type ProjectionWorker struct {
	db        *sql.DB
	inputChan <-chan ProjectionOutput
	lastSeq   int64
}

func NewProjectionWorker(db *sql.DB, inputChan <-chan ProjectionOutput) *ProjectionWorker {
	return &ProjectionWorker{
		db:        db,
		inputChan: inputChan,
	}
}

// Run starts the projection worker loop.
func (pw *ProjectionWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case output, ok := <-pw.inputChan:
			if !ok {
				return nil
			}

			if err := pw.processOutput(ctx, output); err != nil {
				log.Printf("WARN: projection update failed at seq=%d: %v", output.Sequence, err)
				// Continue; projections are eventually consistent and
				// can be rebuilt from the event log
			}

			pw.lastSeq = output.Sequence
		}
	}
}

func (pw *ProjectionWorker) processOutput(ctx context.Context, output ProjectionOutput) error {
	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, j := range output.Entries {
		if err := pw.updateBalanceProjection(ctx, tx, j, output.Sequence); err != nil {
			return fmt.Errorf("balance projection: %w", err)
		}
	}

	if output.Pool != nil {
		if err := pw.updatePoolProjection(ctx, tx, output.Pool, output.Sequence); err != nil {
			return fmt.Errorf("pool projection: %w", err)
		}
	}

	if err := recordRewardPayouts(ctx, tx, output); err != nil {
		return fmt.Errorf("reward history: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (projection, last_sequence)
		VALUES ('main', $1)
		ON CONFLICT (projection) DO UPDATE SET last_sequence = $1
	`, output.Sequence); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	return tx.Commit()
}

// updateBalanceProjection applies one journal entry: a positive amount moves
// from the credit account to the debit account.
func (pw *ProjectionWorker) updateBalanceProjection(ctx context.Context, tx *sql.Tx, j JournalEntry, seq int64) error {
	// Debit side receives
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (asset_id, account, balance, updated_seq)
		VALUES ($1, $2, $3::NUMERIC, $4)
		ON CONFLICT (asset_id, account)
		DO UPDATE SET balance = projections.balances.balance + $3::NUMERIC, updated_seq = $4
	`, j.AssetID, j.DebitAccount, j.Amount, seq); err != nil {
		return err
	}

	// Credit side gives up
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (asset_id, account, balance, updated_seq)
		VALUES ($1, $2, -($3::NUMERIC), $4)
		ON CONFLICT (asset_id, account)
		DO UPDATE SET balance = projections.balances.balance - $3::NUMERIC, updated_seq = $4
	`, j.AssetID, j.CreditAccount, j.Amount, seq); err != nil {
		return err
	}

	return nil
}

func (pw *ProjectionWorker) updatePoolProjection(ctx context.Context, tx *sql.Tx, pool *PoolState, seq int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.pool_state
			(farm, reward_rate, total_staked, reward_per_token, total_rewards_paid, last_update_time, updated_seq)
		VALUES ($1, $2::NUMERIC, $3::NUMERIC, $4::NUMERIC, $5::NUMERIC, $6, $7)
		ON CONFLICT (farm) DO UPDATE SET
			reward_rate        = $2::NUMERIC,
			total_staked       = $3::NUMERIC,
			reward_per_token   = $4::NUMERIC,
			total_rewards_paid = $5::NUMERIC,
			last_update_time   = $6,
			updated_seq        = $7
	`, pool.Farm, pool.RewardRate, pool.TotalStaked, pool.RewardPerToken,
		pool.TotalRewardsPaid, pool.LastUpdateTime, seq)
	return err
}

// RebuildProjections rebuilds the balance projection from the event log.
// Pool state and reward history refill as new events flow; balances are the
// only projection whose full history matters.
func RebuildProjections(ctx context.Context, db *sql.DB) error {
	truncateStatements := []string{
		`TRUNCATE projections.balances`,
		`TRUNCATE projections.pool_state`,
		`TRUNCATE projections.reward_history`,
		`DELETE FROM projections.watermark WHERE projection = 'main'`,
	}

	for _, stmt := range truncateStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}

	// Sum the received (debit) side
	_, err := db.ExecContext(ctx, `
		INSERT INTO projections.balances (asset_id, account, balance, updated_seq)
		SELECT asset_id, debit_account, SUM(amount), MAX(sequence)
		FROM event_log.journal
		GROUP BY asset_id, debit_account
	`)
	if err != nil {
		return fmt.Errorf("rebuild debit balances: %w", err)
	}

	// Subtract the given-up (credit) side
	_, err = db.ExecContext(ctx, `
		INSERT INTO projections.balances (asset_id, account, balance, updated_seq)
		SELECT asset_id, credit_account, -SUM(amount), MAX(sequence)
		FROM event_log.journal
		GROUP BY asset_id, credit_account
		ON CONFLICT (asset_id, account) DO UPDATE SET
			balance     = projections.balances.balance + EXCLUDED.balance,
			updated_seq = GREATEST(projections.balances.updated_seq, EXCLUDED.updated_seq)
	`)
	if err != nil {
		return fmt.Errorf("rebuild credit balances: %w", err)
	}

	log.Println("INFO: projection rebuild complete")
	return nil
}
