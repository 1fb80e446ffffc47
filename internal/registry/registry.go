// Package registry maps LP-SFT position ids to the deterministic per-position
// account each id's balances are recorded against. A non-zero id maps to at
// most one live account at a time; the zero id is always invalid.
package registry

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// accountDomain separates position-account derivation from any other use of
// the hash. Changing it changes every derived account address.
const accountDomain = "farmledger/position-account/v1"

// UnknownPositionError is returned when a position id has no live account.
type UnknownPositionError struct {
	PositionID uint64
}

func (e *UnknownPositionError) Error() string {
	return fmt.Sprintf("unknown position %d", e.PositionID)
}

// InvalidPositionError is returned for the zero id and double registration.
type InvalidPositionError struct {
	PositionID uint64
	Reason     string
}

func (e *InvalidPositionError) Error() string {
	return fmt.Sprintf("invalid position %d: %s", e.PositionID, e.Reason)
}

// PositionRegistry owns the position-id -> account mapping. It is mutated
// only on position mint and burn; owned by the single-threaded core.
type PositionRegistry struct {
	accounts map[uint64]common.Address
}

func NewPositionRegistry() *PositionRegistry {
	return &PositionRegistry{
		accounts: make(map[uint64]common.Address),
	}
}

// DeriveAccount computes the deterministic account address for a position id.
// Pure; the same id always derives the same address.
func DeriveAccount(positionID uint64) common.Address {
	var idBytes [32]byte
	new(big.Int).SetUint64(positionID).FillBytes(idBytes[:])
	digest := crypto.Keccak256([]byte(accountDomain), idBytes[:])
	return common.BytesToAddress(digest[12:])
}

// Register creates the account mapping for a newly minted position.
func (r *PositionRegistry) Register(positionID uint64) (common.Address, error) {
	if positionID == 0 {
		return common.Address{}, &InvalidPositionError{PositionID: 0, Reason: "zero id"}
	}
	if _, ok := r.accounts[positionID]; ok {
		return common.Address{}, &InvalidPositionError{PositionID: positionID, Reason: "already registered"}
	}

	addr := DeriveAccount(positionID)
	r.accounts[positionID] = addr
	return addr, nil
}

// Unregister removes the mapping when a position is burned.
func (r *PositionRegistry) Unregister(positionID uint64) error {
	if _, ok := r.accounts[positionID]; !ok {
		return &UnknownPositionError{PositionID: positionID}
	}
	delete(r.accounts, positionID)
	return nil
}

// AddressOf resolves a position id to its live account.
func (r *PositionRegistry) AddressOf(positionID uint64) (common.Address, error) {
	if positionID == 0 {
		return common.Address{}, &InvalidPositionError{PositionID: 0, Reason: "zero id"}
	}
	addr, ok := r.accounts[positionID]
	if !ok {
		return common.Address{}, &UnknownPositionError{PositionID: positionID}
	}
	return addr, nil
}

// IsRegistered reports whether a position id has a live account.
func (r *PositionRegistry) IsRegistered(positionID uint64) bool {
	_, ok := r.accounts[positionID]
	return ok
}

// Count returns the number of live positions.
func (r *PositionRegistry) Count() int {
	return len(r.accounts)
}

// Snapshot returns a copy of the live mapping for state hashing.
func (r *PositionRegistry) Snapshot() map[uint64]common.Address {
	out := make(map[uint64]common.Address, len(r.accounts))
	for k, v := range r.accounts {
		out[k] = v
	}
	return out
}

// Restore re-establishes a mapping from a snapshot. The address must match
// the deterministic derivation; anything else indicates a corrupt snapshot.
func (r *PositionRegistry) Restore(positionID uint64, addr common.Address) error {
	if DeriveAccount(positionID) != addr {
		return &InvalidPositionError{PositionID: positionID, Reason: "address does not match derivation"}
	}
	r.accounts[positionID] = addr
	return nil
}
