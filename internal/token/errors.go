package token

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// InsufficientBalanceError is returned when a burn or transfer exceeds the
// holder's balance. Amounts are never silently clamped.
type InsufficientBalanceError struct {
	Asset  string
	Holder common.Address
	Have   *big.Int
	Need   *big.Int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("%s: insufficient balance for %s: have=%s, need=%s",
		e.Asset, e.Holder.Hex(), e.Have, e.Need)
}

// InsufficientAllowanceError is returned when TransferFrom exceeds the
// spender's approved allowance.
type InsufficientAllowanceError struct {
	Asset   string
	Owner   common.Address
	Spender common.Address
	Have    *big.Int
	Need    *big.Int
}

func (e *InsufficientAllowanceError) Error() string {
	return fmt.Sprintf("%s: insufficient allowance owner=%s spender=%s: have=%s, need=%s",
		e.Asset, e.Owner.Hex(), e.Spender.Hex(), e.Have, e.Need)
}

// NotMinterError is returned when a non-minter calls Mint or Burn.
type NotMinterError struct {
	Asset  string
	Caller common.Address
}

func (e *NotMinterError) Error() string {
	return fmt.Sprintf("%s: %s is not a minter", e.Asset, e.Caller.Hex())
}

// ValidationError covers zero addresses and non-positive amounts.
type ValidationError struct {
	Asset  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Asset, e.Reason)
}
