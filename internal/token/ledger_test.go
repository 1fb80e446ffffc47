package token_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"FarmLedger/internal/token"
)

var (
	minter = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	alice  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob    = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func newYield(t *testing.T) *token.Ledger {
	t.Helper()
	l := token.NewLedger("YIELD", nil)
	l.AddMinter(minter)
	return l
}

func TestLedger_MintAndBalance(t *testing.T) {
	l := newYield(t)

	if err := l.Mint(minter, alice, big.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if got := l.BalanceOf(alice); got.Cmp(big.NewInt(1000)) != 0 {
		t.Errorf("balance: got %s, want 1000", got)
	}
	if got := l.TotalSupply(); got.Cmp(big.NewInt(1000)) != 0 {
		t.Errorf("supply: got %s, want 1000", got)
	}
}

func TestLedger_MintRequiresMinter(t *testing.T) {
	l := newYield(t)

	err := l.Mint(alice, alice, big.NewInt(1))
	var notMinter *token.NotMinterError
	if !errors.As(err, &notMinter) {
		t.Fatalf("expected NotMinterError, got %v", err)
	}
}

func TestLedger_BurnExceedingBalanceFails(t *testing.T) {
	l := newYield(t)
	if err := l.Mint(minter, alice, big.NewInt(100)); err != nil {
		t.Fatal(err)
	}

	err := l.Burn(minter, alice, big.NewInt(101))
	var insufficient *token.InsufficientBalanceError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientBalanceError, got %v", err)
	}

	// Never clamped: balance unchanged
	if got := l.BalanceOf(alice); got.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("balance after failed burn: got %s, want 100", got)
	}
}

func TestLedger_Transfer(t *testing.T) {
	l := newYield(t)
	if err := l.Mint(minter, alice, big.NewInt(500)); err != nil {
		t.Fatal(err)
	}

	if err := l.Transfer(alice, bob, big.NewInt(200)); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	if got := l.BalanceOf(alice); got.Cmp(big.NewInt(300)) != 0 {
		t.Errorf("alice: got %s, want 300", got)
	}
	if got := l.BalanceOf(bob); got.Cmp(big.NewInt(200)) != 0 {
		t.Errorf("bob: got %s, want 200", got)
	}
}

func TestLedger_TransferFromSpendsAllowance(t *testing.T) {
	l := newYield(t)
	if err := l.Mint(minter, alice, big.NewInt(500)); err != nil {
		t.Fatal(err)
	}
	if err := l.Approve(alice, bob, big.NewInt(300)); err != nil {
		t.Fatal(err)
	}

	if err := l.TransferFrom(bob, alice, bob, big.NewInt(250)); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}

	if got := l.Allowance(alice, bob); got.Cmp(big.NewInt(50)) != 0 {
		t.Errorf("allowance: got %s, want 50", got)
	}

	err := l.TransferFrom(bob, alice, bob, big.NewInt(100))
	var insufficientAllowance *token.InsufficientAllowanceError
	if !errors.As(err, &insufficientAllowance) {
		t.Fatalf("expected InsufficientAllowanceError, got %v", err)
	}
}

func TestLedger_ZeroAmountRejected(t *testing.T) {
	l := newYield(t)
	if err := l.Mint(minter, alice, big.NewInt(0)); err == nil {
		t.Error("zero mint should fail")
	}
	if err := l.Transfer(alice, bob, nil); err == nil {
		t.Error("nil amount transfer should fail")
	}
}

func TestLedger_ConservationUnderMixedOps(t *testing.T) {
	l := newYield(t)

	ops := []func() error{
		func() error { return l.Mint(minter, alice, big.NewInt(1000)) },
		func() error { return l.Mint(minter, bob, big.NewInt(700)) },
		func() error { return l.Transfer(alice, bob, big.NewInt(450)) },
		func() error { return l.Burn(minter, bob, big.NewInt(300)) },
		func() error { return l.Transfer(bob, alice, big.NewInt(50)) },
	}
	for i, op := range ops {
		if err := op(); err != nil {
			t.Fatalf("op %d: %v", i, err)
		}
	}

	sum := new(big.Int)
	for _, b := range l.Snapshot() {
		sum.Add(sum, b)
	}
	if sum.Cmp(l.TotalSupply()) != 0 {
		t.Errorf("conservation violated: sum=%s, supply=%s", sum, l.TotalSupply())
	}
}

type recordingHook struct {
	calls []string
}

func (h *recordingHook) OnTransfer(asset string, from, to common.Address, amount *big.Int) {
	h.calls = append(h.calls, asset+":"+from.Hex()+"->"+to.Hex()+":"+amount.String())
}

func TestLedger_HooksObserveMintBurnTransfer(t *testing.T) {
	l := newYield(t)
	hook := &recordingHook{}
	l.RegisterHook(hook)

	if err := l.Mint(minter, alice, big.NewInt(10)); err != nil {
		t.Fatal(err)
	}
	if err := l.Transfer(alice, bob, big.NewInt(4)); err != nil {
		t.Fatal(err)
	}
	if err := l.Burn(minter, bob, big.NewInt(4)); err != nil {
		t.Fatal(err)
	}

	if len(hook.calls) != 3 {
		t.Fatalf("hook calls: got %d, want 3", len(hook.calls))
	}
}

func TestLedger_FailedOpDoesNotNotifyHooks(t *testing.T) {
	l := newYield(t)
	hook := &recordingHook{}
	l.RegisterHook(hook)

	if err := l.Transfer(alice, bob, big.NewInt(1)); err == nil {
		t.Fatal("expected insufficient balance")
	}
	if len(hook.calls) != 0 {
		t.Errorf("hooks notified on failed op: %v", hook.calls)
	}
}
