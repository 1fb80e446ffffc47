// Package token implements the fungible balance ledgers backing every asset
// in the system: the yield token paid by farms (and read as collateral), the
// synthetic borrowed asset, the debt-tracking token, and the per-position LP
// share token. One Ledger instance per asset symbol.
//
// The package is the in-process stand-in for the external ERC-20 ledgers at
// the interface boundary; it keeps their semantics (mint, burn, transfer,
// allowance) and adds double-entry journaling plus transfer hooks, which the
// reactive farm variants rely on.
package token

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"FarmLedger/internal/journal"
)

// TransferHook observes balance movements. Hooks run after validation and
// before balances are applied, so an observer reads pre-transfer state —
// the farms rely on this to checkpoint rewards against the old stake.
// from is the zero address on mint; to is the zero address on burn.
type TransferHook interface {
	OnTransfer(asset string, from, to common.Address, amount *big.Int)
}

// Ledger is a single-asset fungible balance ledger. It is owned by the
// single-threaded core and must not be shared across goroutines.
type Ledger struct {
	symbol      string
	asset       journal.AssetID
	balances    map[common.Address]*big.Int
	allowances  map[common.Address]map[common.Address]*big.Int
	totalSupply *big.Int
	minters     map[common.Address]bool
	hooks       []TransferHook
	recorder    *journal.Recorder
}

// NewLedger creates an empty ledger for a known asset symbol. The recorder
// may be nil for library-level use without the audit log.
func NewLedger(symbol string, recorder *journal.Recorder) *Ledger {
	asset, ok := journal.GetAssetID(symbol)
	if !ok {
		panic("token: unknown asset symbol " + symbol)
	}
	return &Ledger{
		symbol:      symbol,
		asset:       asset,
		balances:    make(map[common.Address]*big.Int),
		allowances:  make(map[common.Address]map[common.Address]*big.Int),
		totalSupply: new(big.Int),
		minters:     make(map[common.Address]bool),
		recorder:    recorder,
	}
}

// Symbol returns the asset symbol
func (l *Ledger) Symbol() string { return l.symbol }

// Asset returns the numeric asset id
func (l *Ledger) Asset() journal.AssetID { return l.asset }

// AddMinter authorizes an identity to mint and burn
func (l *Ledger) AddMinter(addr common.Address) {
	l.minters[addr] = true
}

// RegisterHook attaches a transfer observer. Hooks run after validation but
// before balances change, in registration order.
func (l *Ledger) RegisterHook(h TransferHook) {
	l.hooks = append(l.hooks, h)
}

// SetRecorder wires the audit journal recorder.
func (l *Ledger) SetRecorder(r *journal.Recorder) {
	l.recorder = r
}

// BalanceOf returns a copy of the holder's balance
func (l *Ledger) BalanceOf(addr common.Address) *big.Int {
	if b, ok := l.balances[addr]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// TotalSupply returns a copy of the aggregate supply
func (l *Ledger) TotalSupply() *big.Int {
	return new(big.Int).Set(l.totalSupply)
}

// Allowance returns a copy of the owner->spender allowance
func (l *Ledger) Allowance(owner, spender common.Address) *big.Int {
	if m, ok := l.allowances[owner]; ok {
		if a, ok := m[spender]; ok {
			return new(big.Int).Set(a)
		}
	}
	return new(big.Int)
}

// Mint creates amount new units at to. Caller must be a registered minter.
func (l *Ledger) Mint(caller, to common.Address, amount *big.Int) error {
	if !l.minters[caller] {
		return &NotMinterError{Asset: l.symbol, Caller: caller}
	}
	if err := l.validateAmount(amount); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return &ValidationError{Asset: l.symbol, Reason: "mint to zero address"}
	}

	l.notify(common.Address{}, to, amount)

	l.credit(to, amount)
	l.totalSupply.Add(l.totalSupply, amount)

	if l.recorder != nil {
		l.recorder.Append(journal.EntryTypeMint,
			journal.NewHolderAccountKey(to, l.asset),
			journal.NewExternalAccountKey(l.asset),
			l.asset, amount)
	}
	return nil
}

// Burn destroys amount units held by from. Caller must be a registered
// minter. Burning more than the balance fails; it is never clamped.
func (l *Ledger) Burn(caller, from common.Address, amount *big.Int) error {
	if !l.minters[caller] {
		return &NotMinterError{Asset: l.symbol, Caller: caller}
	}
	if err := l.validateAmount(amount); err != nil {
		return err
	}

	have := l.BalanceOf(from)
	if have.Cmp(amount) < 0 {
		return &InsufficientBalanceError{Asset: l.symbol, Holder: from, Have: have, Need: new(big.Int).Set(amount)}
	}

	l.notify(from, common.Address{}, amount)

	l.debit(from, amount)
	l.totalSupply.Sub(l.totalSupply, amount)

	if l.recorder != nil {
		l.recorder.Append(journal.EntryTypeBurn,
			journal.NewExternalAccountKey(l.asset),
			journal.NewHolderAccountKey(from, l.asset),
			l.asset, amount)
	}
	return nil
}

// Transfer moves amount from the caller to to.
func (l *Ledger) Transfer(caller, to common.Address, amount *big.Int) error {
	return l.move(caller, to, amount)
}

// Approve sets the caller's allowance for spender.
func (l *Ledger) Approve(caller, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return &ValidationError{Asset: l.symbol, Reason: "negative allowance"}
	}
	if spender == (common.Address{}) {
		return &ValidationError{Asset: l.symbol, Reason: "approve zero address"}
	}

	if _, ok := l.allowances[caller]; !ok {
		l.allowances[caller] = make(map[common.Address]*big.Int)
	}
	l.allowances[caller][spender] = new(big.Int).Set(amount)
	return nil
}

// TransferFrom moves amount from from to to, spending the caller's allowance.
func (l *Ledger) TransferFrom(caller, from, to common.Address, amount *big.Int) error {
	if err := l.validateAmount(amount); err != nil {
		return err
	}

	allowance := l.Allowance(from, caller)
	if allowance.Cmp(amount) < 0 {
		return &InsufficientAllowanceError{
			Asset: l.symbol, Owner: from, Spender: caller,
			Have: allowance, Need: new(big.Int).Set(amount),
		}
	}

	if err := l.move(from, to, amount); err != nil {
		return err
	}

	l.allowances[from][caller] = allowance.Sub(allowance, amount)
	return nil
}

func (l *Ledger) move(from, to common.Address, amount *big.Int) error {
	if err := l.validateAmount(amount); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return &ValidationError{Asset: l.symbol, Reason: "transfer to zero address"}
	}

	have := l.BalanceOf(from)
	if have.Cmp(amount) < 0 {
		return &InsufficientBalanceError{Asset: l.symbol, Holder: from, Have: have, Need: new(big.Int).Set(amount)}
	}

	l.notify(from, to, amount)

	l.debit(from, amount)
	l.credit(to, amount)

	if l.recorder != nil {
		l.recorder.Append(journal.EntryTypeTransfer,
			journal.NewHolderAccountKey(to, l.asset),
			journal.NewHolderAccountKey(from, l.asset),
			l.asset, amount)
	}
	return nil
}

func (l *Ledger) validateAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return &ValidationError{Asset: l.symbol, Reason: "amount must be positive"}
	}
	return nil
}

func (l *Ledger) credit(addr common.Address, amount *big.Int) {
	if b, ok := l.balances[addr]; ok {
		b.Add(b, amount)
		return
	}
	l.balances[addr] = new(big.Int).Set(amount)
}

func (l *Ledger) debit(addr common.Address, amount *big.Int) {
	b := l.balances[addr]
	b.Sub(b, amount)
	if b.Sign() == 0 {
		delete(l.balances, addr)
	}
}

func (l *Ledger) notify(from, to common.Address, amount *big.Int) {
	for _, h := range l.hooks {
		h.OnTransfer(l.symbol, from, to, amount)
	}
}

// Holders returns the number of addresses with a non-zero balance
func (l *Ledger) Holders() int {
	return len(l.balances)
}

// Snapshot returns a copy of all balances, keyed by holder address.
// Used for state hashing and snapshot persistence.
func (l *Ledger) Snapshot() map[common.Address]*big.Int {
	out := make(map[common.Address]*big.Int, len(l.balances))
	for k, v := range l.balances {
		out[k] = new(big.Int).Set(v)
	}
	return out
}

// RestoreBalances replaces all holder balances from a snapshot, recomputing
// total supply. No hooks fire and no journal entries are recorded.
func (l *Ledger) RestoreBalances(balances map[common.Address]*big.Int) {
	l.balances = make(map[common.Address]*big.Int, len(balances))
	l.totalSupply = new(big.Int)
	for addr, amount := range balances {
		if amount == nil || amount.Sign() == 0 {
			continue
		}
		l.balances[addr] = new(big.Int).Set(amount)
		l.totalSupply.Add(l.totalSupply, amount)
	}
}
