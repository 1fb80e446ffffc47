package farm

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ReentrancyError is returned when a guarded entry point is re-entered
// before the outer call completes.
type ReentrancyError struct {
	Component string
}

func (e *ReentrancyError) Error() string {
	return fmt.Sprintf("%s: reentrant call rejected", e.Component)
}

// InsufficientStakeError is returned when a withdrawal exceeds the staked
// balance.
type InsufficientStakeError struct {
	Farm    string
	Account common.Address
	Staked  *big.Int
	Need    *big.Int
}

func (e *InsufficientStakeError) Error() string {
	return fmt.Sprintf("%s: insufficient stake for %s: staked=%s, need=%s",
		e.Farm, e.Account.Hex(), e.Staked, e.Need)
}

// ZeroAmountError is returned where a positive amount is required.
type ZeroAmountError struct {
	Farm string
	Op   string
}

func (e *ZeroAmountError) Error() string {
	return fmt.Sprintf("%s: %s amount must be positive", e.Farm, e.Op)
}

// BatchSizeError is returned when a batch exceeds the configured maximum
// or is empty.
type BatchSizeError struct {
	Farm string
	Size int
	Max  int
}

func (e *BatchSizeError) Error() string {
	return fmt.Sprintf("%s: batch size %d outside allowed range [1, %d]", e.Farm, e.Size, e.Max)
}

// BatchShapeError is returned when batch id and amount slices disagree.
type BatchShapeError struct {
	Farm    string
	IDs     int
	Amounts int
}

func (e *BatchShapeError) Error() string {
	return fmt.Sprintf("%s: batch has %d ids but %d amounts", e.Farm, e.IDs, e.Amounts)
}
