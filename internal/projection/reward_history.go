package projection

import (
	"context"
	"database/sql"

	"FarmLedger/internal/journal"
)

// Reward payouts surface as YIELD mints inside these event types. A Staked
// event also mints YIELD, but that mint is the deposit itself, not a payout.
var rewardPayoutEvents = map[string]bool{
	"RewardClaimed": true,
	"Exited":        true,
	"LendBatch":     true,
	"WithdrawBatch": true,
}

// recordRewardPayouts appends reward_history rows for every reward payout in
// the output. The debit account of a payout mint is the recipient.
func recordRewardPayouts(ctx context.Context, tx *sql.Tx, output ProjectionOutput) error {
	if !rewardPayoutEvents[output.EventType] || output.FarmName == nil {
		return nil
	}

	yieldID, _ := journal.GetAssetID("YIELD")

	for _, j := range output.Entries {
		if j.AssetID != uint16(yieldID) || j.EntryType != int32(journal.EntryTypeMint) {
			continue
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.reward_history (farm, account, amount, sequence, paid_at)
			VALUES ($1, $2, $3::NUMERIC, $4, $5)
		`, *output.FarmName, j.DebitAccount, j.Amount, output.Sequence, output.Timestamp); err != nil {
			return err
		}
	}

	return nil
}
