package core_test

import (
	"crypto/sha256"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"FarmLedger/internal/bridge"
	"FarmLedger/internal/core"
	"FarmLedger/internal/event"
	"FarmLedger/internal/journal"
	"FarmLedger/internal/registry"
)

// --- Test helpers ---

// newTestCore creates a DeterministicCore with buffered channels, no DB
// checker and an in-memory upstream incentive.
func newTestCore() (*core.DeterministicCore, chan core.CoreOutput, chan core.CoreOutput, *bridge.MemoryIncentive) {
	persistChan := make(chan core.CoreOutput, 1024)
	projChan := make(chan core.CoreOutput, 1024)
	upstream := bridge.NewMemoryIncentive()
	c := core.NewDeterministicCore(0, persistChan, projChan, nil, nil, upstream)
	return c, persistChan, projChan, upstream
}

func amt(v int64) *big.Int {
	return big.NewInt(v)
}

func addr(b byte) common.Address {
	var a common.Address
	a[19] = b
	return a
}

func mustPositionMinted(positionID uint64, owner common.Address, seq, at int64) *event.PositionMinted {
	return &event.PositionMinted{
		MintID:     uuid.New(),
		PositionID: positionID,
		Owner:      owner,
		Sequence:   seq,
		Timestamp:  time.Unix(at, 0),
	}
}

func mustPositionBurned(positionID uint64, seq, at int64) *event.PositionBurned {
	return &event.PositionBurned{
		BurnID:     uuid.New(),
		PositionID: positionID,
		Sequence:   seq,
		Timestamp:  time.Unix(at, 0),
	}
}

func mustStaked(farmName string, account common.Address, amount, seq, at int64) *event.Staked {
	return &event.Staked{
		StakeID:   uuid.New(),
		FarmName:  farmName,
		Account:   account,
		Amount:    amt(amount),
		Sequence:  seq,
		Timestamp: time.Unix(at, 0),
	}
}

func mustWithdrawn(farmName string, account common.Address, amount, seq, at int64) *event.Withdrawn {
	return &event.Withdrawn{
		WithdrawID: uuid.New(),
		FarmName:   farmName,
		Account:    account,
		Amount:     amt(amount),
		Sequence:   seq,
		Timestamp:  time.Unix(at, 0),
	}
}

func mustRewardClaimed(farmName string, account common.Address, seq, at int64) *event.RewardClaimed {
	return &event.RewardClaimed{
		ClaimID:   uuid.New(),
		FarmName:  farmName,
		Account:   account,
		Sequence:  seq,
		Timestamp: time.Unix(at, 0),
	}
}

func mustExited(farmName string, account common.Address, seq, at int64) *event.Exited {
	return &event.Exited{
		ExitID:    uuid.New(),
		FarmName:  farmName,
		Account:   account,
		Sequence:  seq,
		Timestamp: time.Unix(at, 0),
	}
}

func mustLendBatch(positionIDs []uint64, amounts []int64, seq, at int64) *event.LendBatch {
	bigAmounts := make([]*big.Int, len(amounts))
	for i, a := range amounts {
		bigAmounts[i] = amt(a)
	}
	return &event.LendBatch{
		BatchID:     uuid.New(),
		FarmName:    core.FarmLend,
		PositionIDs: positionIDs,
		Amounts:     bigAmounts,
		Sequence:    seq,
		Timestamp:   time.Unix(at, 0),
	}
}

func mustWithdrawBatch(positionIDs []uint64, amounts []int64, seq, at int64) *event.WithdrawBatch {
	bigAmounts := make([]*big.Int, len(amounts))
	for i, a := range amounts {
		bigAmounts[i] = amt(a)
	}
	return &event.WithdrawBatch{
		BatchID:     uuid.New(),
		FarmName:    core.FarmLend,
		PositionIDs: positionIDs,
		Amounts:     bigAmounts,
		Sequence:    seq,
		Timestamp:   time.Unix(at, 0),
	}
}

func mustDebtIssued(positionID uint64, amount int64, recipient common.Address, seq, at int64) *event.DebtIssued {
	return &event.DebtIssued{
		IssueID:    uuid.New(),
		PositionID: positionID,
		Amount:     amt(amount),
		Recipient:  recipient,
		Sequence:   seq,
		Timestamp:  time.Unix(at, 0),
	}
}

func mustDebtRepaid(positionID uint64, amount int64, payer common.Address, seq, at int64) *event.DebtRepaid {
	return &event.DebtRepaid{
		RepayID:    uuid.New(),
		PositionID: positionID,
		Amount:     amt(amount),
		Payer:      payer,
		Sequence:   seq,
		Timestamp:  time.Unix(at, 0),
	}
}

func mustRateUpdate(farmName string, rate, rateSeq, at int64) *event.RewardRateUpdate {
	return &event.RewardRateUpdate{
		FarmName:      farmName,
		Rate:          amt(rate),
		RateSequence:  rateSeq,
		RateTimestamp: at,
	}
}

func mustIncentiveCreated(reward, seq, at int64) *event.IncentiveCreated {
	return &event.IncentiveCreated{
		IncentiveID: uuid.New(),
		Reward:      amt(reward),
		StartTime:   at,
		EndTime:     at + 86400,
		Sequence:    seq,
		Timestamp:   time.Unix(at, 0),
	}
}

func mustIncentiveEntered(positionID uint64, owner common.Address, seq, at int64) *event.IncentiveEntered {
	return &event.IncentiveEntered{
		EntryID:    uuid.New(),
		PositionID: positionID,
		Owner:      owner,
		Sequence:   seq,
		Timestamp:  time.Unix(at, 0),
	}
}

func mustIncentiveExited(positionID uint64, seq, at int64) *event.IncentiveExited {
	return &event.IncentiveExited{
		ExitID:     uuid.New(),
		PositionID: positionID,
		Sequence:   seq,
		Timestamp:  time.Unix(at, 0),
	}
}

func drainOutputs(ch chan core.CoreOutput) []core.CoreOutput {
	var outputs []core.CoreOutput
	for {
		select {
		case o := <-ch:
			outputs = append(outputs, o)
		default:
			return outputs
		}
	}
}

// ============================================================================
// Test: Stake Flow
// ============================================================================

func TestStaked_MintsAndStakesCollateral(t *testing.T) {
	c, persistCh, _, _ := newTestCore()
	alice := addr(0xA1)

	err := c.ProcessEvent(mustStaked(core.FarmInterest, alice, 1000, 0, 1000))
	if err != nil {
		t.Fatalf("ProcessEvent failed: %v", err)
	}

	outputs := drainOutputs(persistCh)
	if len(outputs) != 1 {
		t.Fatalf("expected 1 output, got %d", len(outputs))
	}

	// Mint to the account, then pull into farm custody
	batch := outputs[0].Batch
	if batch == nil || len(batch.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %+v", batch)
	}
	if batch.Entries[0].EntryType != journal.EntryTypeMint {
		t.Errorf("entry 0: expected mint, got %s", batch.Entries[0].EntryType)
	}
	if batch.Entries[1].EntryType != journal.EntryTypeTransfer {
		t.Errorf("entry 1: expected transfer, got %s", batch.Entries[1].EntryType)
	}
	for i, e := range batch.Entries {
		if e.Amount.Cmp(amt(1000)) != 0 {
			t.Errorf("entry %d: expected amount 1000, got %s", i, e.Amount)
		}
	}

	snap := c.CreateSnapshotState()
	if got := snap.InterestStakes[alice]; got == nil || got.Cmp(amt(1000)) != 0 {
		t.Errorf("expected stake 1000, got %s", got)
	}
}

func TestMultipleStakes_Accumulate(t *testing.T) {
	c, persistCh, _, _ := newTestCore()
	alice := addr(0xA1)

	for i := int64(0); i < 5; i++ {
		err := c.ProcessEvent(mustStaked(core.FarmInterest, alice, 100, i, 1000+i))
		if err != nil {
			t.Fatalf("ProcessEvent %d failed: %v", i, err)
		}
	}

	outputs := drainOutputs(persistCh)
	if len(outputs) != 5 {
		t.Fatalf("expected 5 outputs, got %d", len(outputs))
	}

	// Verify sequences are monotonically increasing
	for i, o := range outputs {
		if o.Envelope.Sequence != int64(i) {
			t.Errorf("output %d: expected sequence %d, got %d", i, i, o.Envelope.Sequence)
		}
	}

	snap := c.CreateSnapshotState()
	if got := snap.InterestStakes[alice]; got == nil || got.Cmp(amt(500)) != 0 {
		t.Errorf("expected stake 500, got %s", got)
	}
}

func TestStaked_WrongFarm_Fails(t *testing.T) {
	c, persistCh, _, _ := newTestCore()

	err := c.ProcessEvent(mustStaked(core.FarmNFTStake, addr(0xA1), 1000, 0, 1000))
	if err == nil {
		t.Fatal("expected error for direct stake on nftstake farm")
	}

	if outputs := drainOutputs(persistCh); len(outputs) != 0 {
		t.Errorf("expected no outputs, got %d", len(outputs))
	}
}

// ============================================================================
// Test: Withdraw Flow
// ============================================================================

func TestWithdrawn_BurnsCollateral(t *testing.T) {
	c, persistCh, _, _ := newTestCore()
	alice := addr(0xA1)

	if err := c.ProcessEvent(mustStaked(core.FarmInterest, alice, 1000, 0, 1000)); err != nil {
		t.Fatalf("stake failed: %v", err)
	}
	drainOutputs(persistCh)

	err := c.ProcessEvent(mustWithdrawn(core.FarmInterest, alice, 400, 1, 1001))
	if err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}

	outputs := drainOutputs(persistCh)
	if len(outputs) != 1 {
		t.Fatalf("expected 1 output, got %d", len(outputs))
	}

	// Return from custody, then burn
	batch := outputs[0].Batch
	if batch == nil || len(batch.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %+v", batch)
	}
	if batch.Entries[0].EntryType != journal.EntryTypeTransfer {
		t.Errorf("entry 0: expected transfer, got %s", batch.Entries[0].EntryType)
	}
	if batch.Entries[1].EntryType != journal.EntryTypeBurn {
		t.Errorf("entry 1: expected burn, got %s", batch.Entries[1].EntryType)
	}

	snap := c.CreateSnapshotState()
	if got := snap.InterestStakes[alice]; got == nil || got.Cmp(amt(600)) != 0 {
		t.Errorf("expected stake 600, got %s", got)
	}
	if got := snap.Balances["YIELD"][alice]; got != nil && got.Sign() != 0 {
		t.Errorf("expected no loose collateral, got %s", got)
	}
}

func TestWithdrawn_ExceedsStake_Fails(t *testing.T) {
	c, persistCh, _, _ := newTestCore()
	alice := addr(0xA1)

	if err := c.ProcessEvent(mustStaked(core.FarmInterest, alice, 100, 0, 1000)); err != nil {
		t.Fatalf("stake failed: %v", err)
	}
	drainOutputs(persistCh)

	err := c.ProcessEvent(mustWithdrawn(core.FarmInterest, alice, 200, 1, 1001))
	if err == nil {
		t.Fatal("expected error withdrawing more than staked")
	}

	if outputs := drainOutputs(persistCh); len(outputs) != 0 {
		t.Errorf("expected no outputs, got %d", len(outputs))
	}

	snap := c.CreateSnapshotState()
	if got := snap.InterestStakes[alice]; got == nil || got.Cmp(amt(100)) != 0 {
		t.Errorf("expected stake unchanged at 100, got %s", got)
	}
}

func TestExited_ReturnsStakeAndPaysReward(t *testing.T) {
	c, persistCh, _, _ := newTestCore()
	alice := addr(0xA1)

	if err := c.ProcessEvent(mustStaked(core.FarmInterest, alice, 1000, 0, 1000)); err != nil {
		t.Fatalf("stake failed: %v", err)
	}
	if err := c.ProcessEvent(mustRateUpdate(core.FarmInterest, 100, 1, 1000)); err != nil {
		t.Fatalf("rate update failed: %v", err)
	}

	// 10 seconds at rate 100 over a single 1000 stake: reward = 1000
	err := c.ProcessEvent(mustExited(core.FarmInterest, alice, 1, 1010))
	if err != nil {
		t.Fatalf("exit failed: %v", err)
	}
	drainOutputs(persistCh)

	snap := c.CreateSnapshotState()
	if got := snap.InterestStakes[alice]; got != nil && got.Sign() != 0 {
		t.Errorf("expected stake cleared, got %s", got)
	}
	// The returned principal is burned; only the reward remains
	if got := snap.Balances["YIELD"][alice]; got == nil || got.Cmp(amt(1000)) != 0 {
		t.Errorf("expected reward 1000, got %s", got)
	}
}

// ============================================================================
// Test: Reward Accrual
// ============================================================================

func TestRewardClaim_PaysAccruedYield(t *testing.T) {
	c, persistCh, _, _ := newTestCore()
	alice := addr(0xA1)

	if err := c.ProcessEvent(mustStaked(core.FarmInterest, alice, 1000, 0, 1000)); err != nil {
		t.Fatalf("stake failed: %v", err)
	}
	if err := c.ProcessEvent(mustRateUpdate(core.FarmInterest, 100, 1, 1000)); err != nil {
		t.Fatalf("rate update failed: %v", err)
	}
	drainOutputs(persistCh)

	err := c.ProcessEvent(mustRewardClaimed(core.FarmInterest, alice, 1, 1010))
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	outputs := drainOutputs(persistCh)
	if len(outputs) != 1 {
		t.Fatalf("expected 1 output, got %d", len(outputs))
	}
	batch := outputs[0].Batch
	if batch == nil || len(batch.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %+v", batch)
	}
	if batch.Entries[0].EntryType != journal.EntryTypeMint {
		t.Errorf("expected mint entry, got %s", batch.Entries[0].EntryType)
	}
	if batch.Entries[0].Amount.Cmp(amt(1000)) != 0 {
		t.Errorf("expected reward 1000, got %s", batch.Entries[0].Amount)
	}

	snap := c.CreateSnapshotState()
	if got := snap.Balances["YIELD"][alice]; got == nil || got.Cmp(amt(1000)) != 0 {
		t.Errorf("expected balance 1000, got %s", got)
	}
	if got := snap.Pools[core.FarmInterest].TotalRewardsPaid; got.Cmp(amt(1000)) != 0 {
		t.Errorf("expected total rewards paid 1000, got %s", got)
	}
}

func TestRewardClaim_NothingAccrued_NoEntries(t *testing.T) {
	c, persistCh, _, _ := newTestCore()
	alice := addr(0xA1)

	if err := c.ProcessEvent(mustStaked(core.FarmInterest, alice, 1000, 0, 1000)); err != nil {
		t.Fatalf("stake failed: %v", err)
	}
	drainOutputs(persistCh)

	// No rate was ever set: the claim succeeds, pays nothing, and still
	// produces an envelope with no journal batch.
	err := c.ProcessEvent(mustRewardClaimed(core.FarmInterest, alice, 1, 1010))
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	outputs := drainOutputs(persistCh)
	if len(outputs) != 1 {
		t.Fatalf("expected 1 output, got %d", len(outputs))
	}
	if outputs[0].Batch != nil {
		t.Errorf("expected nil batch, got %d entries", len(outputs[0].Batch.Entries))
	}
}

func TestRewardRateUpdate_ChainsHashWithoutEntries(t *testing.T) {
	c, persistCh, _, _ := newTestCore()

	if err := c.ProcessEvent(mustRateUpdate(core.FarmInterest, 100, 1, 1000)); err != nil {
		t.Fatalf("rate update 1 failed: %v", err)
	}
	if err := c.ProcessEvent(mustRateUpdate(core.FarmInterest, 200, 2, 1005)); err != nil {
		t.Fatalf("rate update 2 failed: %v", err)
	}

	outputs := drainOutputs(persistCh)
	if len(outputs) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(outputs))
	}
	for i, o := range outputs {
		if o.Batch != nil {
			t.Errorf("output %d: expected nil batch", i)
		}
	}
	if outputs[0].Envelope.StateHash == outputs[1].Envelope.StateHash {
		t.Error("rate updates must advance the state hash")
	}
	if outputs[1].Envelope.PrevHash != outputs[0].Envelope.StateHash {
		t.Error("second envelope must chain from the first")
	}

	snap := c.CreateSnapshotState()
	if got := snap.Pools[core.FarmInterest].RewardRate; got.Cmp(amt(200)) != 0 {
		t.Errorf("expected rate 200, got %s", got)
	}
}

func TestStaleRateUpdate_SilentlyIgnored(t *testing.T) {
	c, persistCh, _, _ := newTestCore()

	if err := c.ProcessEvent(mustRateUpdate(core.FarmInterest, 200, 2, 1000)); err != nil {
		t.Fatalf("rate update failed: %v", err)
	}
	drainOutputs(persistCh)

	// Regression: no error, no output, rate unchanged
	err := c.ProcessEvent(mustRateUpdate(core.FarmInterest, 100, 1, 1001))
	if err != nil {
		t.Fatalf("stale rate update should not error: %v", err)
	}
	if outputs := drainOutputs(persistCh); len(outputs) != 0 {
		t.Errorf("expected no outputs for stale rate, got %d", len(outputs))
	}

	snap := c.CreateSnapshotState()
	if got := snap.Pools[core.FarmInterest].RewardRate; got.Cmp(amt(200)) != 0 {
		t.Errorf("expected rate 200, got %s", got)
	}
}

func TestRateSequenceGap_Tolerated(t *testing.T) {
	c, persistCh, _, _ := newTestCore()

	if err := c.ProcessEvent(mustRateUpdate(core.FarmInterest, 100, 1, 1000)); err != nil {
		t.Fatalf("rate update 1 failed: %v", err)
	}
	// Rate sequences 2-4 were coalesced away upstream
	if err := c.ProcessEvent(mustRateUpdate(core.FarmInterest, 500, 5, 1010)); err != nil {
		t.Fatalf("rate update 5 failed: %v", err)
	}

	if outputs := drainOutputs(persistCh); len(outputs) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(outputs))
	}

	snap := c.CreateSnapshotState()
	if got := snap.Pools[core.FarmInterest].RewardRate; got.Cmp(amt(500)) != 0 {
		t.Errorf("expected rate 500, got %s", got)
	}
}

// ============================================================================
// Test: Idempotency & Sequencing
// ============================================================================

func TestDuplicateEvent_Skipped(t *testing.T) {
	c, persistCh, _, _ := newTestCore()
	alice := addr(0xA1)

	evt := mustStaked(core.FarmInterest, alice, 1000, 0, 1000)
	if err := c.ProcessEvent(evt); err != nil {
		t.Fatalf("first ProcessEvent failed: %v", err)
	}
	if err := c.ProcessEvent(evt); err != nil {
		t.Fatalf("duplicate ProcessEvent should not error: %v", err)
	}

	if outputs := drainOutputs(persistCh); len(outputs) != 1 {
		t.Fatalf("expected 1 output, got %d", len(outputs))
	}

	snap := c.CreateSnapshotState()
	if got := snap.InterestStakes[alice]; got == nil || got.Cmp(amt(1000)) != 0 {
		t.Errorf("expected stake 1000, got %s", got)
	}
}

func TestSequenceGap_Rejected(t *testing.T) {
	c, persistCh, _, _ := newTestCore()
	alice := addr(0xA1)

	if err := c.ProcessEvent(mustStaked(core.FarmInterest, alice, 100, 0, 1000)); err != nil {
		t.Fatalf("stake 0 failed: %v", err)
	}
	drainOutputs(persistCh)

	// Sequence 1 is missing
	err := c.ProcessEvent(mustStaked(core.FarmInterest, alice, 100, 2, 1002))
	if err == nil {
		t.Fatal("expected sequence gap error")
	}
	if outputs := drainOutputs(persistCh); len(outputs) != 0 {
		t.Errorf("expected no outputs, got %d", len(outputs))
	}
}

func TestOutOfOrderNewEvent_Rejected(t *testing.T) {
	c, persistCh, _, _ := newTestCore()
	alice := addr(0xA1)

	if err := c.ProcessEvent(mustStaked(core.FarmInterest, alice, 100, 0, 1000)); err != nil {
		t.Fatalf("stake 0 failed: %v", err)
	}
	drainOutputs(persistCh)

	// A NEW event reusing sequence 0 is out of order, not a duplicate
	err := c.ProcessEvent(mustStaked(core.FarmInterest, alice, 100, 0, 1001))
	if err == nil {
		t.Fatal("expected out-of-order error")
	}
}

func TestFarmPartitions_SequenceIndependently(t *testing.T) {
	c, persistCh, _, _ := newTestCore()
	alice := addr(0xA1)

	// Each partition starts at source sequence 0
	if err := c.ProcessEvent(mustPositionMinted(1, addr(0xB0), 0, 1000)); err != nil {
		t.Fatalf("position mint failed: %v", err)
	}
	if err := c.ProcessEvent(mustStaked(core.FarmInterest, alice, 100, 0, 1000)); err != nil {
		t.Fatalf("interest stake failed: %v", err)
	}
	if err := c.ProcessEvent(mustLendBatch([]uint64{1}, []int64{100}, 0, 1000)); err != nil {
		t.Fatalf("lend batch failed: %v", err)
	}

	if outputs := drainOutputs(persistCh); len(outputs) != 3 {
		t.Fatalf("expected 3 outputs, got %d", len(outputs))
	}
}

// ============================================================================
// Test: Position Lifecycle
// ============================================================================

func TestPositionLifecycle_MintAndBurn(t *testing.T) {
	c, persistCh, _, _ := newTestCore()
	owner := addr(0xB0)

	if err := c.ProcessEvent(mustPositionMinted(7, owner, 0, 1000)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	snap := c.CreateSnapshotState()
	if got := snap.Positions[7]; got != registry.DeriveAccount(7) {
		t.Errorf("expected derived account, got %s", got.Hex())
	}
	if got := snap.Owners[7]; got != owner {
		t.Errorf("expected owner %s, got %s", owner.Hex(), got.Hex())
	}

	if err := c.ProcessEvent(mustPositionBurned(7, 1, 1001)); err != nil {
		t.Fatalf("burn failed: %v", err)
	}

	snap = c.CreateSnapshotState()
	if len(snap.Positions) != 0 {
		t.Errorf("expected empty registry, got %d positions", len(snap.Positions))
	}

	outputs := drainOutputs(persistCh)
	if len(outputs) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(outputs))
	}
	for i, o := range outputs {
		if o.Batch != nil {
			t.Errorf("output %d: position events move no tokens, expected nil batch", i)
		}
	}
}

func TestPositionMinted_DuplicateID_Fails(t *testing.T) {
	c, _, _, _ := newTestCore()

	if err := c.ProcessEvent(mustPositionMinted(7, addr(0xB0), 0, 1000)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	err := c.ProcessEvent(mustPositionMinted(7, addr(0xB1), 1, 1001))
	if err == nil {
		t.Fatal("expected error re-minting position 7")
	}
}

func TestPositionBurned_WithShares_Rejected(t *testing.T) {
	c, _, _, _ := newTestCore()

	if err := c.ProcessEvent(mustPositionMinted(1, addr(0xB0), 0, 1000)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if err := c.ProcessEvent(mustLendBatch([]uint64{1}, []int64{500}, 0, 1000)); err != nil {
		t.Fatalf("lend failed: %v", err)
	}

	err := c.ProcessEvent(mustPositionBurned(1, 1, 1001))
	if err == nil {
		t.Fatal("expected error burning position with LP shares")
	}
}

// ============================================================================
// Test: Lend Farm Batches
// ============================================================================

func TestLendBatch_MintsShares(t *testing.T) {
	c, persistCh, _, _ := newTestCore()

	if err := c.ProcessEvent(mustPositionMinted(1, addr(0xB0), 0, 1000)); err != nil {
		t.Fatalf("mint 1 failed: %v", err)
	}
	if err := c.ProcessEvent(mustPositionMinted(2, addr(0xB1), 1, 1000)); err != nil {
		t.Fatalf("mint 2 failed: %v", err)
	}
	drainOutputs(persistCh)

	err := c.ProcessEvent(mustLendBatch([]uint64{1, 2}, []int64{300, 700}, 0, 1000))
	if err != nil {
		t.Fatalf("lend batch failed: %v", err)
	}

	outputs := drainOutputs(persistCh)
	if len(outputs) != 1 {
		t.Fatalf("expected 1 output, got %d", len(outputs))
	}
	batch := outputs[0].Batch
	if batch == nil || len(batch.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %+v", batch)
	}

	snap := c.CreateSnapshotState()
	if got := snap.Balances["LPSHARE"][registry.DeriveAccount(1)]; got == nil || got.Cmp(amt(300)) != 0 {
		t.Errorf("position 1: expected 300 shares, got %s", got)
	}
	if got := snap.Balances["LPSHARE"][registry.DeriveAccount(2)]; got == nil || got.Cmp(amt(700)) != 0 {
		t.Errorf("position 2: expected 700 shares, got %s", got)
	}
}

func TestLendBatch_UnknownPosition_AtomicReject(t *testing.T) {
	c, persistCh, _, _ := newTestCore()

	if err := c.ProcessEvent(mustPositionMinted(1, addr(0xB0), 0, 1000)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	drainOutputs(persistCh)

	// Position 99 was never minted: the whole batch must be rejected
	err := c.ProcessEvent(mustLendBatch([]uint64{1, 99}, []int64{300, 700}, 0, 1000))
	if err == nil {
		t.Fatal("expected error for unknown position in batch")
	}
	if outputs := drainOutputs(persistCh); len(outputs) != 0 {
		t.Errorf("expected no outputs, got %d", len(outputs))
	}

	snap := c.CreateSnapshotState()
	if got := snap.Balances["LPSHARE"][registry.DeriveAccount(1)]; got != nil && got.Sign() != 0 {
		t.Errorf("expected no shares minted, got %s", got)
	}
}

func TestWithdrawBatch_BurnsShares(t *testing.T) {
	c, persistCh, _, _ := newTestCore()

	if err := c.ProcessEvent(mustPositionMinted(1, addr(0xB0), 0, 1000)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if err := c.ProcessEvent(mustLendBatch([]uint64{1}, []int64{1000}, 0, 1000)); err != nil {
		t.Fatalf("lend failed: %v", err)
	}
	drainOutputs(persistCh)

	err := c.ProcessEvent(mustWithdrawBatch([]uint64{1}, []int64{400}, 1, 1001))
	if err != nil {
		t.Fatalf("withdraw batch failed: %v", err)
	}
	drainOutputs(persistCh)

	snap := c.CreateSnapshotState()
	if got := snap.Balances["LPSHARE"][registry.DeriveAccount(1)]; got == nil || got.Cmp(amt(600)) != 0 {
		t.Errorf("expected 600 shares, got %s", got)
	}
}

func TestLendFarm_RewardAccruesOnShares(t *testing.T) {
	c, persistCh, _, _ := newTestCore()
	account := registry.DeriveAccount(1)

	if err := c.ProcessEvent(mustPositionMinted(1, addr(0xB0), 0, 1000)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if err := c.ProcessEvent(mustRateUpdate(core.FarmLend, 100, 1, 1000)); err != nil {
		t.Fatalf("rate update failed: %v", err)
	}
	if err := c.ProcessEvent(mustLendBatch([]uint64{1}, []int64{1000}, 0, 1000)); err != nil {
		t.Fatalf("lend failed: %v", err)
	}
	drainOutputs(persistCh)

	err := c.ProcessEvent(mustRewardClaimed(core.FarmLend, account, 1, 1010))
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	drainOutputs(persistCh)

	snap := c.CreateSnapshotState()
	if got := snap.Balances["YIELD"][account]; got == nil || got.Cmp(amt(1000)) != 0 {
		t.Errorf("expected reward 1000 at position account, got %s", got)
	}
}

// ============================================================================
// Test: Collateralized Issuance
// ============================================================================

// setupCollateralizedPosition registers position 1 and gives its account
// 1000 YIELD collateral via the lend farm's reward payout.
func setupCollateralizedPosition(t *testing.T, c *core.DeterministicCore, persistCh chan core.CoreOutput) common.Address {
	t.Helper()
	account := registry.DeriveAccount(1)

	if err := c.ProcessEvent(mustPositionMinted(1, addr(0xB0), 0, 1000)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if err := c.ProcessEvent(mustRateUpdate(core.FarmLend, 100, 1, 1000)); err != nil {
		t.Fatalf("rate update failed: %v", err)
	}
	if err := c.ProcessEvent(mustLendBatch([]uint64{1}, []int64{1000}, 0, 1000)); err != nil {
		t.Fatalf("lend failed: %v", err)
	}
	if err := c.ProcessEvent(mustRewardClaimed(core.FarmLend, account, 1, 1010)); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	drainOutputs(persistCh)
	return account
}

func TestDebtIssued_WithinCollateral(t *testing.T) {
	c, persistCh, _, _ := newTestCore()
	bob := addr(0xC2)
	account := setupCollateralizedPosition(t, c, persistCh)

	err := c.ProcessEvent(mustDebtIssued(1, 500, bob, 1, 1010))
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	outputs := drainOutputs(persistCh)
	if len(outputs) != 1 {
		t.Fatalf("expected 1 output, got %d", len(outputs))
	}
	batch := outputs[0].Batch
	if batch == nil || len(batch.Entries) != 2 {
		t.Fatalf("expected 2 entries (debt + synthetic), got %+v", batch)
	}

	snap := c.CreateSnapshotState()
	if got := snap.Balances["DEBT"][account]; got == nil || got.Cmp(amt(500)) != 0 {
		t.Errorf("expected debt 500, got %s", got)
	}
	if got := snap.Balances["BORROW"][bob]; got == nil || got.Cmp(amt(500)) != 0 {
		t.Errorf("expected synthetic 500 at recipient, got %s", got)
	}
}

func TestDebtIssued_ExceedsCollateral_Fails(t *testing.T) {
	c, persistCh, _, _ := newTestCore()
	bob := addr(0xC2)
	account := setupCollateralizedPosition(t, c, persistCh)

	if err := c.ProcessEvent(mustDebtIssued(1, 500, bob, 1, 1010)); err != nil {
		t.Fatalf("first issue failed: %v", err)
	}
	drainOutputs(persistCh)

	// 500 existing + 600 > 1000 collateral
	err := c.ProcessEvent(mustDebtIssued(1, 600, bob, 2, 1011))
	if err == nil {
		t.Fatal("expected error issuing past collateral")
	}
	if outputs := drainOutputs(persistCh); len(outputs) != 0 {
		t.Errorf("expected no outputs, got %d", len(outputs))
	}

	snap := c.CreateSnapshotState()
	if got := snap.Balances["DEBT"][account]; got == nil || got.Cmp(amt(500)) != 0 {
		t.Errorf("expected debt unchanged at 500, got %s", got)
	}
}

func TestDebtRepaid_ReducesDebt(t *testing.T) {
	c, persistCh, _, _ := newTestCore()
	bob := addr(0xC2)
	account := setupCollateralizedPosition(t, c, persistCh)

	if err := c.ProcessEvent(mustDebtIssued(1, 500, bob, 1, 1010)); err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if err := c.ProcessEvent(mustDebtRepaid(1, 200, bob, 2, 1020)); err != nil {
		t.Fatalf("repay failed: %v", err)
	}
	drainOutputs(persistCh)

	snap := c.CreateSnapshotState()
	if got := snap.Balances["DEBT"][account]; got == nil || got.Cmp(amt(300)) != 0 {
		t.Errorf("expected debt 300, got %s", got)
	}
	if got := snap.Balances["BORROW"][bob]; got == nil || got.Cmp(amt(300)) != 0 {
		t.Errorf("expected synthetic 300, got %s", got)
	}
}

// ============================================================================
// Test: Incentive Bridge
// ============================================================================

func TestIncentiveEnter_BeforeCreate_Fails(t *testing.T) {
	c, _, _, upstream := newTestCore()
	upstream.SetLiquidity(7, amt(500))

	err := c.ProcessEvent(mustIncentiveEntered(7, addr(0xD5), 0, 1000))
	if err == nil {
		t.Fatal("expected error entering before incentive creation")
	}
}

func TestIncentiveBridge_FullFlow(t *testing.T) {
	c, persistCh, _, upstream := newTestCore()
	carol := addr(0xD5)
	upstream.SetLiquidity(7, amt(500))

	if err := c.ProcessEvent(mustIncentiveCreated(1_000_000, 0, 1000)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := c.ProcessEvent(mustIncentiveEntered(7, carol, 1, 1000)); err != nil {
		t.Fatalf("enter failed: %v", err)
	}
	drainOutputs(persistCh)

	snap := c.CreateSnapshotState()
	account := registry.DeriveAccount(7)
	if got := snap.Balances["LPSHARE"][account]; got == nil || got.Cmp(amt(500)) != 0 {
		t.Errorf("expected 500 shares, got %s", got)
	}
	if got := snap.BridgeEntered[7]; got != carol {
		t.Errorf("expected owner %s, got %s", carol.Hex(), got.Hex())
	}

	// A bridged position cannot be burned out from under the bridge
	if err := c.ProcessEvent(mustPositionBurned(7, 2, 1001)); err == nil {
		t.Fatal("expected error burning bridged position")
	}

	if err := upstream.Accrue(7, amt(250)); err != nil {
		t.Fatalf("accrue failed: %v", err)
	}

	if err := c.ProcessEvent(mustIncentiveExited(7, 3, 1002)); err != nil {
		t.Fatalf("exit failed: %v", err)
	}
	drainOutputs(persistCh)

	snap = c.CreateSnapshotState()
	if got := snap.Balances["LPSHARE"][account]; got != nil && got.Sign() != 0 {
		t.Errorf("expected shares burned, got %s", got)
	}
	if len(snap.Positions) != 0 {
		t.Errorf("expected position unregistered, got %d", len(snap.Positions))
	}
	if got := upstream.RewardPaidTo(carol); got.Cmp(amt(250)) != 0 {
		t.Errorf("expected upstream reward 250 paid to owner, got %s", got)
	}
}

// ============================================================================
// Test: State Hash Chain
// ============================================================================

func TestStateHashChain_EnvelopesLink(t *testing.T) {
	c, persistCh, _, _ := newTestCore()
	alice := addr(0xA1)

	events := []event.Event{
		mustPositionMinted(1, addr(0xB0), 0, 1000),
		mustStaked(core.FarmInterest, alice, 1000, 0, 1000),
		mustRateUpdate(core.FarmInterest, 100, 1, 1000),
		mustRewardClaimed(core.FarmInterest, alice, 1, 1010),
	}
	for i, evt := range events {
		if err := c.ProcessEvent(evt); err != nil {
			t.Fatalf("event %d failed: %v", i, err)
		}
	}

	outputs := drainOutputs(persistCh)
	if len(outputs) != len(events) {
		t.Fatalf("expected %d outputs, got %d", len(events), len(outputs))
	}

	genesis := sha256.Sum256([]byte(core.GenesisHashSeed))
	if outputs[0].Envelope.PrevHash != genesis {
		t.Error("first envelope must chain from the genesis hash")
	}
	for i, o := range outputs {
		if o.Envelope.StateHash == o.Envelope.PrevHash {
			t.Errorf("envelope %d: state hash must differ from prev hash", i)
		}
		if i > 0 && o.Envelope.PrevHash != outputs[i-1].Envelope.StateHash {
			t.Errorf("envelope %d does not chain from envelope %d", i, i-1)
		}
	}
	if c.GetStateHash() != outputs[len(outputs)-1].Envelope.StateHash {
		t.Error("chain tip must equal the last envelope's state hash")
	}
}

func TestStateHash_DeterministicAcrossRuns(t *testing.T) {
	events := []event.Event{
		mustPositionMinted(1, addr(0xB0), 0, 1000),
		mustStaked(core.FarmInterest, addr(0xA1), 1000, 0, 1000),
		mustRateUpdate(core.FarmInterest, 100, 1, 1000),
		mustLendBatch([]uint64{1}, []int64{400}, 0, 1005),
		mustRewardClaimed(core.FarmInterest, addr(0xA1), 1, 1010),
	}

	run := func() [32]byte {
		c, persistCh, _, _ := newTestCore()
		for i, evt := range events {
			if err := c.ProcessEvent(evt); err != nil {
				t.Fatalf("event %d failed: %v", i, err)
			}
		}
		drainOutputs(persistCh)
		return c.GetStateHash()
	}

	if run() != run() {
		t.Error("identical event streams must produce identical state hashes")
	}
}

// ============================================================================
// Test: Output Channels
// ============================================================================

func TestProjectionChannel_DropsWhenFull(t *testing.T) {
	persistChan := make(chan core.CoreOutput, 1024)
	projChan := make(chan core.CoreOutput, 1) // room for one
	c := core.NewDeterministicCore(0, persistChan, projChan, nil, nil, bridge.NewMemoryIncentive())
	alice := addr(0xA1)

	for i := int64(0); i < 3; i++ {
		if err := c.ProcessEvent(mustStaked(core.FarmInterest, alice, 100, i, 1000+i)); err != nil {
			t.Fatalf("event %d failed: %v", i, err)
		}
	}

	if got := len(drainOutputs(persistChan)); got != 3 {
		t.Errorf("persistence must receive every event, got %d", got)
	}
	if got := len(drainOutputs(projChan)); got != 1 {
		t.Errorf("expected 1 projection output (rest dropped), got %d", got)
	}
}

// ============================================================================
// Test: Snapshot & Restore
// ============================================================================

func TestSnapshotRestore_ResumesChain(t *testing.T) {
	c1, persistCh1, _, _ := newTestCore()
	alice := addr(0xA1)

	setup := []event.Event{
		mustPositionMinted(1, addr(0xB0), 0, 1000),
		mustStaked(core.FarmInterest, alice, 1000, 0, 1000),
		mustRateUpdate(core.FarmInterest, 100, 1, 1000),
		mustLendBatch([]uint64{1}, []int64{400}, 0, 1005),
	}
	for i, evt := range setup {
		if err := c1.ProcessEvent(evt); err != nil {
			t.Fatalf("setup event %d failed: %v", i, err)
		}
	}
	drainOutputs(persistCh1)

	snap := c1.CreateSnapshotState()

	c2, persistCh2, _, _ := newTestCore()
	if err := c2.RestoreFromSnapshot(snap); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	if c2.GetSequence() != c1.GetSequence() {
		t.Errorf("expected sequence %d, got %d", c1.GetSequence(), c2.GetSequence())
	}
	if c2.GetStateHash() != c1.GetStateHash() {
		t.Error("restored chain tip must match the original")
	}

	// Both cores apply the same next event and must emit identical envelopes
	next := mustRewardClaimed(core.FarmInterest, alice, 1, 1010)
	if err := c1.ProcessEvent(next); err != nil {
		t.Fatalf("next event on original failed: %v", err)
	}
	if err := c2.ProcessEvent(next); err != nil {
		t.Fatalf("next event on restored failed: %v", err)
	}

	out1 := drainOutputs(persistCh1)
	out2 := drainOutputs(persistCh2)
	if len(out1) != 1 || len(out2) != 1 {
		t.Fatalf("expected 1 output each, got %d and %d", len(out1), len(out2))
	}
	if out1[0].Envelope.StateHash != out2[0].Envelope.StateHash {
		t.Error("restored core must continue the hash chain identically")
	}
	if out1[0].Envelope.Sequence != out2[0].Envelope.Sequence {
		t.Errorf("sequence mismatch: %d vs %d", out1[0].Envelope.Sequence, out2[0].Envelope.Sequence)
	}

	snap2 := c2.CreateSnapshotState()
	if got := snap2.Balances["YIELD"][alice]; got == nil || got.Cmp(amt(1000)) != 0 {
		t.Errorf("expected restored core to pay reward 1000, got %s", got)
	}
}

// ============================================================================
// Test: Envelope Integrity
// ============================================================================

func TestEnvelope_CarriesEventContext(t *testing.T) {
	c, persistCh, _, _ := newTestCore()

	evt := mustStaked(core.FarmInterest, addr(0xA1), 1000, 0, 1234)
	if err := c.ProcessEvent(evt); err != nil {
		t.Fatalf("ProcessEvent failed: %v", err)
	}

	outputs := drainOutputs(persistCh)
	env := outputs[0].Envelope
	if env.EventType != event.EventTypeStaked {
		t.Errorf("expected staked, got %s", env.EventType)
	}
	if env.IdempotencyKey != evt.StakeID.String() {
		t.Errorf("expected idempotency key %s, got %s", evt.StakeID, env.IdempotencyKey)
	}
	if env.Farm == nil || *env.Farm != core.FarmInterest {
		t.Errorf("expected farm %q, got %v", core.FarmInterest, env.Farm)
	}
	if env.SourceSequence != 0 {
		t.Errorf("expected source sequence 0, got %d", env.SourceSequence)
	}
	if !env.Timestamp.Equal(time.Unix(1234, 0)) {
		t.Errorf("expected versioned timestamp, got %v", env.Timestamp)
	}
	if len(env.Payload) == 0 {
		t.Error("expected serialized payload")
	}
}
