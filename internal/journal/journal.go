// Package journal provides the double-entry audit trail for every token
// movement in the system. Each mint, burn, transfer, stake payout, and debt
// mutation produces a balanced entry; batches group the entries of one
// logical operation.
package journal

import (
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// EntryType represents the purpose of a journal entry
type EntryType int32

const (
	EntryTypeMint EntryType = iota
	EntryTypeBurn
	EntryTypeTransfer
	EntryTypeStakeDeposit
	EntryTypeStakeWithdraw
	EntryTypeRewardPayout
	EntryTypeDebtIssue
	EntryTypeDebtRepay
)

func (et EntryType) String() string {
	switch et {
	case EntryTypeMint:
		return "mint"
	case EntryTypeBurn:
		return "burn"
	case EntryTypeTransfer:
		return "transfer"
	case EntryTypeStakeDeposit:
		return "stake_deposit"
	case EntryTypeStakeWithdraw:
		return "stake_withdraw"
	case EntryTypeRewardPayout:
		return "reward_payout"
	case EntryTypeDebtIssue:
		return "debt_issue"
	case EntryTypeDebtRepay:
		return "debt_repay"
	}
	return "unknown"
}

// Entry represents a single double-entry journal record. A single positive
// amount moves from the credit account to the debit account, so every entry
// is balanced by construction.
type Entry struct {
	EntryID       uuid.UUID
	BatchID       uuid.UUID
	EventRef      string // idempotency key of the source event
	Sequence      int64  // global event sequence
	DebitAccount  AccountKey
	CreditAccount AccountKey
	Asset         AssetID
	Amount        *big.Int // always positive
	EntryType     EntryType
	Timestamp     int64 // versioned input timestamp (unix seconds)
}

// Batch groups the balanced entries of one logical operation
type Batch struct {
	BatchID   uuid.UUID
	EventRef  string
	Sequence  int64
	Timestamp int64
	Entries   []Entry
}

// Validate ensures the batch is well-formed: non-empty, positive amounts,
// matching asset on both legs.
func (b *Batch) Validate() error {
	if len(b.Entries) == 0 {
		return fmt.Errorf("batch %s is empty", b.BatchID)
	}

	for i, e := range b.Entries {
		if e.Amount == nil || e.Amount.Sign() <= 0 {
			return fmt.Errorf("batch %s entry %d: non-positive amount", b.BatchID, i)
		}
		if e.DebitAccount.Asset != e.Asset || e.CreditAccount.Asset != e.Asset {
			return fmt.Errorf("batch %s entry %d: asset mismatch", b.BatchID, i)
		}
		if e.DebitAccount == e.CreditAccount {
			return fmt.Errorf("batch %s entry %d: self-transfer", b.BatchID, i)
		}
	}
	return nil
}

// Recorder collects the entries produced while one external operation runs.
// The token ledgers append to the active batch; the core engine opens a batch
// before dispatching an event and seals it afterwards.
type Recorder struct {
	sequence int64
	active   *Batch
}

func NewRecorder(startSequence int64) *Recorder {
	return &Recorder{sequence: startSequence}
}

// Begin opens a batch for the given event reference. Panics if a batch is
// already open: operations never nest.
func (r *Recorder) Begin(eventRef string, timestamp int64) {
	if r.active != nil {
		panic("journal: batch already open")
	}
	r.active = &Batch{
		BatchID:   uuid.New(),
		EventRef:  eventRef,
		Sequence:  r.sequence,
		Timestamp: timestamp,
	}
}

// Append records an entry in the active batch. Calls outside an open batch
// are dropped: library-level use without the engine shell needs no audit log.
func (r *Recorder) Append(entryType EntryType, debit, credit AccountKey, asset AssetID, amount *big.Int) {
	if r.active == nil {
		return
	}
	r.active.Entries = append(r.active.Entries, Entry{
		EntryID:       uuid.New(),
		BatchID:       r.active.BatchID,
		EventRef:      r.active.EventRef,
		Sequence:      r.active.Sequence,
		DebitAccount:  debit,
		CreditAccount: credit,
		Asset:         asset,
		Amount:        new(big.Int).Set(amount),
		EntryType:     entryType,
		Timestamp:     r.active.Timestamp,
	})
}

// Commit seals and returns the active batch, advancing the sequence.
// Returns nil when the operation produced no entries.
func (r *Recorder) Commit() *Batch {
	batch := r.active
	r.active = nil
	if batch == nil || len(batch.Entries) == 0 {
		return nil
	}
	r.sequence++
	return batch
}

// Abort discards the active batch without advancing the sequence.
func (r *Recorder) Abort() {
	r.active = nil
}

// Sequence returns the next sequence number the recorder will assign.
func (r *Recorder) Sequence() int64 {
	return r.sequence
}

// SetSequence aligns the recorder with an externally assigned sequence.
// The engine calls this before each Begin so batches carry the global
// event sequence.
func (r *Recorder) SetSequence(seq int64) {
	r.sequence = seq
}
