// Package defi implements the collateralized issuance manager: the component
// that reads yield-bearing and debt-bearing balances at a position's account
// and gates minting and burning of the synthetic borrowed asset.
package defi

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"FarmLedger/internal/auth"
	"FarmLedger/internal/registry"
	"FarmLedger/internal/token"
)

// DefaultMaxBatch caps batch accessor sizes.
const DefaultMaxBatch = 64

// InsufficientCollateralError is returned when an issuance would push a
// position's debt above its collateral balance.
type InsufficientCollateralError struct {
	PositionID uint64
	Collateral *big.Int
	Debt       *big.Int
	Requested  *big.Int
}

func (e *InsufficientCollateralError) Error() string {
	return fmt.Sprintf("position %d: insufficient collateral: collateral=%s, debt=%s, requested=%s",
		e.PositionID, e.Collateral, e.Debt, e.Requested)
}

// BatchSizeError is returned when a batch accessor receives an empty or
// oversized id list.
type BatchSizeError struct {
	Size int
	Max  int
}

func (e *BatchSizeError) Error() string {
	return fmt.Sprintf("batch size %d outside allowed range [1, %d]", e.Size, e.Max)
}

// ValidationError covers zero amounts and zero recipients on the mutators.
type ValidationError struct {
	Op     string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// Manager enforces the collateralization invariant: after any successful
// issuance, a position's debt balance never exceeds its collateral balance
// (a 1:1 maximum collateralization ratio). Debt is itself a token balance at
// the position account, so it is auditable through the same accessors as
// every other asset.
type Manager struct {
	gate     auth.Gate
	registry *registry.PositionRegistry

	collateral *token.Ledger // yield-bearing collateral asset
	debt       *token.Ledger // debt-tracking asset
	synthetic  *token.Ledger // borrowed synthetic asset

	assets   map[string]*token.Ledger // all assets readable via accessors
	mgrAddr  common.Address           // identity the manager mints/burns with
	maxBatch int
	locked   bool
}

// NewManager wires the manager to the registry and the three asset ledgers.
// mgrAddr must be a minter on the debt and synthetic ledgers.
func NewManager(
	gate auth.Gate,
	reg *registry.PositionRegistry,
	collateral, debt, synthetic *token.Ledger,
	mgrAddr common.Address,
) *Manager {
	assets := map[string]*token.Ledger{
		collateral.Symbol(): collateral,
		debt.Symbol():       debt,
		synthetic.Symbol():  synthetic,
	}
	return &Manager{
		gate:       gate,
		registry:   reg,
		collateral: collateral,
		debt:       debt,
		synthetic:  synthetic,
		assets:     assets,
		mgrAddr:    mgrAddr,
		maxBatch:   DefaultMaxBatch,
	}
}

// TrackAsset adds a ledger to the read accessors (e.g. LP shares).
func (m *Manager) TrackAsset(l *token.Ledger) {
	m.assets[l.Symbol()] = l
}

// BalanceAt returns the position's balance of one tracked asset.
func (m *Manager) BalanceAt(asset string, positionID uint64) (*big.Int, error) {
	ledger, ok := m.assets[asset]
	if !ok {
		return nil, &ValidationError{Op: "balance", Reason: "untracked asset " + asset}
	}
	account, err := m.registry.AddressOf(positionID)
	if err != nil {
		return nil, err
	}
	return ledger.BalanceOf(account), nil
}

// BalanceAtBatch returns balances for each position id, in input order.
// Any unmapped id fails the whole call; there are no partial or sentinel
// results.
func (m *Manager) BalanceAtBatch(asset string, positionIDs []uint64) ([]*big.Int, error) {
	if len(positionIDs) == 0 || len(positionIDs) > m.maxBatch {
		return nil, &BatchSizeError{Size: len(positionIDs), Max: m.maxBatch}
	}
	ledger, ok := m.assets[asset]
	if !ok {
		return nil, &ValidationError{Op: "balance", Reason: "untracked asset " + asset}
	}

	accounts := make([]common.Address, len(positionIDs))
	for i, id := range positionIDs {
		account, err := m.registry.AddressOf(id)
		if err != nil {
			return nil, err
		}
		accounts[i] = account
	}

	out := make([]*big.Int, len(accounts))
	for i, account := range accounts {
		out[i] = ledger.BalanceOf(account)
	}
	return out, nil
}

// CollateralOf returns the position's yield-bearing collateral balance.
func (m *Manager) CollateralOf(positionID uint64) (*big.Int, error) {
	return m.BalanceAt(m.collateral.Symbol(), positionID)
}

// DebtOf returns the position's outstanding debt balance.
func (m *Manager) DebtOf(positionID uint64) (*big.Int, error) {
	return m.BalanceAt(m.debt.Symbol(), positionID)
}

// Issue mints amount of the synthetic asset to recipient against the
// position's collateral, recording the same amount as debt at the position
// account. Fails with InsufficientCollateralError when the new debt would
// exceed the collateral balance at the time of the check.
func (m *Manager) Issue(caller common.Address, positionID uint64, amount *big.Int, recipient common.Address) error {
	if err := m.gate.Require(auth.RoleIssuer, caller); err != nil {
		return err
	}
	if m.locked {
		return &ReentrancyError{}
	}
	m.locked = true
	defer func() { m.locked = false }()

	if amount == nil || amount.Sign() <= 0 {
		return &ValidationError{Op: "issue", Reason: "amount must be positive"}
	}
	if recipient == (common.Address{}) {
		return &ValidationError{Op: "issue", Reason: "zero recipient"}
	}

	account, err := m.registry.AddressOf(positionID)
	if err != nil {
		return err
	}

	collateral := m.collateral.BalanceOf(account)
	debt := m.debt.BalanceOf(account)

	newDebt := new(big.Int).Add(debt, amount)
	if newDebt.Cmp(collateral) > 0 {
		return &InsufficientCollateralError{
			PositionID: positionID,
			Collateral: collateral,
			Debt:       debt,
			Requested:  new(big.Int).Set(amount),
		}
	}

	// Debt first, payout last: the synthetic mint is the outward-facing leg.
	if err := m.debt.Mint(m.mgrAddr, account, amount); err != nil {
		panic("defi: debt mint failed after checks: " + err.Error())
	}
	if err := m.synthetic.Mint(m.mgrAddr, recipient, amount); err != nil {
		panic("defi: synthetic mint failed after checks: " + err.Error())
	}
	return nil
}

// Repay burns amount of the synthetic asset from payer and the same amount
// of debt from the position account. Repayment is never blocked by the
// collateral check. Burning more debt (or synthetic) than exists fails via
// the ledger's burn semantics; amounts are never clamped.
func (m *Manager) Repay(caller common.Address, positionID uint64, amount *big.Int, payer common.Address) error {
	if err := m.gate.Require(auth.RoleIssuer, caller); err != nil {
		return err
	}
	if m.locked {
		return &ReentrancyError{}
	}
	m.locked = true
	defer func() { m.locked = false }()

	if amount == nil || amount.Sign() <= 0 {
		return &ValidationError{Op: "repay", Reason: "amount must be positive"}
	}

	account, err := m.registry.AddressOf(positionID)
	if err != nil {
		return err
	}

	// Pre-validate both burns so the call is all-or-nothing.
	if have := m.debt.BalanceOf(account); have.Cmp(amount) < 0 {
		return &token.InsufficientBalanceError{
			Asset: m.debt.Symbol(), Holder: account,
			Have: have, Need: new(big.Int).Set(amount),
		}
	}
	if have := m.synthetic.BalanceOf(payer); have.Cmp(amount) < 0 {
		return &token.InsufficientBalanceError{
			Asset: m.synthetic.Symbol(), Holder: payer,
			Have: have, Need: new(big.Int).Set(amount),
		}
	}

	if err := m.debt.Burn(m.mgrAddr, account, amount); err != nil {
		panic("defi: debt burn failed after checks: " + err.Error())
	}
	if err := m.synthetic.Burn(m.mgrAddr, payer, amount); err != nil {
		panic("defi: synthetic burn failed after checks: " + err.Error())
	}
	return nil
}

// ReentrancyError is returned when Issue or Repay is re-entered mid-call.
type ReentrancyError struct{}

func (e *ReentrancyError) Error() string {
	return "issuance manager: reentrant call rejected"
}
