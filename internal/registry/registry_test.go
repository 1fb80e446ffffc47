package registry_test

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"FarmLedger/internal/registry"
)

func TestDeriveAccount_Deterministic(t *testing.T) {
	a := registry.DeriveAccount(42)
	b := registry.DeriveAccount(42)
	if a != b {
		t.Errorf("derivation not deterministic: %s vs %s", a.Hex(), b.Hex())
	}
	if a == (common.Address{}) {
		t.Error("derived zero address")
	}
}

func TestDeriveAccount_DistinctIDsDistinctAccounts(t *testing.T) {
	seen := make(map[common.Address]uint64)
	for id := uint64(1); id <= 1000; id++ {
		addr := registry.DeriveAccount(id)
		if prev, ok := seen[addr]; ok {
			t.Fatalf("collision: ids %d and %d both derive %s", prev, id, addr.Hex())
		}
		seen[addr] = id
	}
}

func TestRegister_ZeroIDRejected(t *testing.T) {
	r := registry.NewPositionRegistry()
	_, err := r.Register(0)
	var invalid *registry.InvalidPositionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidPositionError, got %v", err)
	}
}

func TestRegister_DoubleRegisterRejected(t *testing.T) {
	r := registry.NewPositionRegistry()
	if _, err := r.Register(7); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Register(7); err == nil {
		t.Error("double register should fail")
	}
}

func TestAddressOf_RoundTrip(t *testing.T) {
	r := registry.NewPositionRegistry()
	want, err := r.Register(9)
	if err != nil {
		t.Fatal(err)
	}

	got, err := r.AddressOf(9)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("got %s, want %s", got.Hex(), want.Hex())
	}
}

func TestAddressOf_UnknownPosition(t *testing.T) {
	r := registry.NewPositionRegistry()
	_, err := r.AddressOf(123)
	var unknown *registry.UnknownPositionError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownPositionError, got %v", err)
	}
	if unknown.PositionID != 123 {
		t.Errorf("error id: got %d, want 123", unknown.PositionID)
	}
}

func TestUnregister_ThenReRegisterSameAccount(t *testing.T) {
	r := registry.NewPositionRegistry()
	first, _ := r.Register(5)
	if err := r.Unregister(5); err != nil {
		t.Fatal(err)
	}
	if r.IsRegistered(5) {
		t.Fatal("still registered after unregister")
	}

	second, err := r.Register(5)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("re-registration changed account: %s vs %s", first.Hex(), second.Hex())
	}
}

func TestRestore_RejectsMismatchedAddress(t *testing.T) {
	r := registry.NewPositionRegistry()
	bogus := common.HexToAddress("0x00000000000000000000000000000000000000ff")
	if err := r.Restore(3, bogus); err == nil {
		t.Error("restore with mismatched address should fail")
	}
	if err := r.Restore(3, registry.DeriveAccount(3)); err != nil {
		t.Errorf("restore with derived address: %v", err)
	}
}
