// Package bridge wraps an external concentrated-liquidity staking incentive.
// Positions enter by locking their upstream claim and minting an LP-SFT;
// they exit by unwinding the upstream stake and taking every resulting token
// balance home, plus the emptied claim itself.
package bridge

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"FarmLedger/internal/auth"
	"FarmLedger/internal/registry"
	"FarmLedger/internal/token"
)

// UpstreamIncentive is the external staking incentive, specified only at the
// interface boundary. Implementations live outside this module.
type UpstreamIncentive interface {
	CreateIncentive(reward *big.Int) error
	StakeToken(positionID uint64) error
	UnstakeToken(positionID uint64) error
	ClaimReward(to common.Address) (*big.Int, error)
	WithdrawToken(positionID uint64, to common.Address) error
	PositionLiquidity(positionID uint64) (*big.Int, error)
}

// NotInitializedError is returned when Enter or Exit runs before
// CreateIncentive.
type NotInitializedError struct{}

func (e *NotInitializedError) Error() string {
	return "incentive bridge: not initialized"
}

// AlreadyInitializedError is returned on a second CreateIncentive.
type AlreadyInitializedError struct{}

func (e *AlreadyInitializedError) Error() string {
	return "incentive bridge: already initialized"
}

// NotEnteredError is returned when exiting a position that never entered.
type NotEnteredError struct {
	PositionID uint64
}

func (e *NotEnteredError) Error() string {
	return fmt.Sprintf("incentive bridge: position %d has not entered", e.PositionID)
}

// ExitResult reports everything returned to the caller on exit.
type ExitResult struct {
	PositionID uint64
	Liquidity  *big.Int // LP shares burned on exit
	Reward     *big.Int // upstream reward passed through
}

// Bridge is the one-way Uninitialized -> Initialized state machine mediating
// enter and exit of positions. Owned by the single-threaded core.
type Bridge struct {
	gate        auth.Gate
	registry    *registry.PositionRegistry
	shares      *token.Ledger // LP share ledger minted on enter
	upstream    UpstreamIncentive
	bridgeAddr  common.Address
	initialized bool
	entered     map[uint64]common.Address // positionID -> owner wallet
	locked      bool
}

// New creates an uninitialized bridge. bridgeAddr must be a minter on the
// share ledger.
func New(
	gate auth.Gate,
	reg *registry.PositionRegistry,
	shares *token.Ledger,
	upstream UpstreamIncentive,
	bridgeAddr common.Address,
) *Bridge {
	return &Bridge{
		gate:       gate,
		registry:   reg,
		shares:     shares,
		upstream:   upstream,
		bridgeAddr: bridgeAddr,
		entered:    make(map[uint64]common.Address),
	}
}

// IsInitialized reports whether the incentive has been created.
func (b *Bridge) IsInitialized() bool {
	return b.initialized
}

// CreateIncentive initializes the upstream incentive with the given reward.
// One-way: a second call fails regardless of arguments.
func (b *Bridge) CreateIncentive(caller common.Address, reward *big.Int) error {
	if err := b.gate.Require(auth.RoleCustodian, caller); err != nil {
		return err
	}
	if b.initialized {
		return &AlreadyInitializedError{}
	}
	if reward == nil || reward.Sign() <= 0 {
		return fmt.Errorf("incentive bridge: reward must be positive")
	}

	if err := b.upstream.CreateIncentive(reward); err != nil {
		return fmt.Errorf("incentive bridge: create upstream incentive: %w", err)
	}
	b.initialized = true
	return nil
}

// Enter locks the position's upstream claim into the incentive, registers
// the position, and mints LP shares matching its liquidity to the new
// position account. The owner wallet is remembered for exit.
func (b *Bridge) Enter(caller common.Address, positionID uint64, owner common.Address) error {
	if err := b.gate.Require(auth.RoleCustodian, caller); err != nil {
		return err
	}
	if b.locked {
		return &ReentrancyError{}
	}
	b.locked = true
	defer func() { b.locked = false }()

	if !b.initialized {
		return &NotInitializedError{}
	}
	if owner == (common.Address{}) {
		return fmt.Errorf("incentive bridge: zero owner")
	}

	liquidity, err := b.upstream.PositionLiquidity(positionID)
	if err != nil {
		return fmt.Errorf("incentive bridge: position %d details: %w", positionID, err)
	}
	if liquidity == nil || liquidity.Sign() <= 0 {
		return fmt.Errorf("incentive bridge: position %d has no liquidity", positionID)
	}

	account, err := b.registry.Register(positionID)
	if err != nil {
		return err
	}
	b.entered[positionID] = owner

	// Interactions last: stake upstream, then mint the LP shares that make
	// the position visible to the farms.
	if err := b.upstream.StakeToken(positionID); err != nil {
		// Unwind registration; the upstream rejected the stake.
		delete(b.entered, positionID)
		if uerr := b.registry.Unregister(positionID); uerr != nil {
			panic("bridge: unwind unregister failed: " + uerr.Error())
		}
		return fmt.Errorf("incentive bridge: stake position %d: %w", positionID, err)
	}
	if err := b.shares.Mint(b.bridgeAddr, account, liquidity); err != nil {
		panic("bridge: share mint failed after checks: " + err.Error())
	}
	return nil
}

// Exit reverses Enter: unstakes and withdraws the claim upstream, passes the
// collected reward through to the owner, burns the position's LP shares, and
// unregisters the position. The emptied claim goes back to the owner too.
func (b *Bridge) Exit(caller common.Address, positionID uint64) (*ExitResult, error) {
	if err := b.gate.Require(auth.RoleCustodian, caller); err != nil {
		return nil, err
	}
	if b.locked {
		return nil, &ReentrancyError{}
	}
	b.locked = true
	defer func() { b.locked = false }()

	if !b.initialized {
		return nil, &NotInitializedError{}
	}
	owner, ok := b.entered[positionID]
	if !ok {
		return nil, &NotEnteredError{PositionID: positionID}
	}

	account, err := b.registry.AddressOf(positionID)
	if err != nil {
		return nil, err
	}
	liquidity := b.shares.BalanceOf(account)

	// Upstream unwinding first: any failure leaves the bridge, registry and
	// share ledger exactly as they were, so a rejected exit can be retried.
	if err := b.upstream.UnstakeToken(positionID); err != nil {
		return nil, fmt.Errorf("incentive bridge: unstake position %d: %w", positionID, err)
	}
	reward, err := b.upstream.ClaimReward(owner)
	if err != nil {
		return nil, fmt.Errorf("incentive bridge: claim reward for position %d: %w", positionID, err)
	}
	if err := b.upstream.WithdrawToken(positionID, owner); err != nil {
		return nil, fmt.Errorf("incentive bridge: withdraw position %d: %w", positionID, err)
	}

	// Internal accounting last; infallible after the checks above.
	if liquidity.Sign() > 0 {
		if err := b.shares.Burn(b.bridgeAddr, account, liquidity); err != nil {
			panic("bridge: share burn failed: " + err.Error())
		}
	}
	delete(b.entered, positionID)
	if err := b.registry.Unregister(positionID); err != nil {
		panic("bridge: unregister failed: " + err.Error())
	}

	return &ExitResult{
		PositionID: positionID,
		Liquidity:  liquidity,
		Reward:     reward,
	}, nil
}

// Entered reports whether the position is currently locked in the bridge.
func (b *Bridge) Entered(positionID uint64) bool {
	_, ok := b.entered[positionID]
	return ok
}

// EnteredPositions returns a copy of the current membership for snapshot
// persistence, keyed by position id with the owner wallet as value.
func (b *Bridge) EnteredPositions() map[uint64]common.Address {
	out := make(map[uint64]common.Address, len(b.entered))
	for pid, owner := range b.entered {
		out[pid] = owner
	}
	return out
}

// Restore reloads the bridge's state machine from a snapshot. Registry and
// share balances are restored separately.
func (b *Bridge) Restore(initialized bool, entered map[uint64]common.Address) {
	b.initialized = initialized
	b.entered = make(map[uint64]common.Address, len(entered))
	for pid, owner := range entered {
		b.entered[pid] = owner
	}
}

// ReentrancyError is returned when Enter or Exit is re-entered mid-call.
type ReentrancyError struct{}

func (e *ReentrancyError) Error() string {
	return "incentive bridge: reentrant call rejected"
}
