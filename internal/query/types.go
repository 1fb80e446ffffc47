package query

// AssetBalance is one asset's projected balance for a holder.
// Balances are decimal strings of 18-decimal base units.
type AssetBalance struct {
	Asset   string `json:"asset"`
	Balance string `json:"balance"`
}

// HolderBalanceResponse represents a holder's balances across all assets.
type HolderBalanceResponse struct {
	Address      string         `json:"address"`
	Balances     []AssetBalance `json:"balances"`
	AsOfSequence int64          `json:"as_of_sequence"` // last applied event sequence
}

// PoolStateResponse represents one farm's accounting state.
type PoolStateResponse struct {
	Farm             string `json:"farm"`
	RewardRate       string `json:"reward_rate"`
	TotalStaked      string `json:"total_staked"`
	RewardPerToken   string `json:"reward_per_token"`
	TotalRewardsPaid string `json:"total_rewards_paid"`
	LastUpdateTime   int64  `json:"last_update_time"`
	AsOfSequence     int64  `json:"as_of_sequence"`
}

// RewardHistoryResponse represents one reward payout record.
type RewardHistoryResponse struct {
	Farm         string `json:"farm"`
	Account      string `json:"account"`
	Amount       string `json:"amount"`
	Sequence     int64  `json:"sequence"`
	PaidAt       int64  `json:"paid_at"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// RewardsPaidResponse is the sum of all reward payouts to an account.
type RewardsPaidResponse struct {
	Account      string  `json:"account"`
	Farm         *string `json:"farm,omitempty"`
	Total        string  `json:"total"`
	AsOfSequence int64   `json:"as_of_sequence"`
}

// JournalHistoryEntry represents a journal entry for API queries.
type JournalHistoryEntry struct {
	EntryID       string `json:"entry_id"`
	BatchID       string `json:"batch_id"`
	EventRef      string `json:"event_ref"`
	Sequence      int64  `json:"sequence"`
	DebitAccount  string `json:"debit_account"`
	CreditAccount string `json:"credit_account"`
	AssetID       uint16 `json:"asset_id"`
	Amount        string `json:"amount"`
	EntryType     int32  `json:"entry_type"`
	Timestamp     int64  `json:"timestamp"`
}

// UnbalancedAsset flags an asset whose balances fail to sum to zero.
type UnbalancedAsset struct {
	AssetID   uint16 `json:"asset_id"`
	Imbalance string `json:"imbalance"`
}

// IntegrityReport summarizes hash-chain and balance invariant checks.
type IntegrityReport struct {
	IsHealthy        bool              `json:"is_healthy"`
	HashChainBreaks  []int64           `json:"hash_chain_breaks,omitempty"`
	UnbalancedAssets []UnbalancedAsset `json:"unbalanced_assets,omitempty"`
}
