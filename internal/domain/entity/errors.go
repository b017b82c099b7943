package entity

import (
	"errors"
	"fmt"
	"math/big"
)

// Precondition and outcome errors shared by the market operations.
// Transport errors from ledger clients are not listed here: they are
// returned exactly as the adapter produced them.
var (
	ErrInvalidAddress      = errors.New("invalid address")
	ErrOutOfRange          = errors.New("value out of range")
	ErrDependencyMissing   = errors.New("dependency missing")
	ErrSigningCancelled    = errors.New("signing cancelled")
	ErrConfirmationTimeout = errors.New("awaiting transaction confirmation timed out")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAccountNotProvided  = errors.New("account was not provided")
	ErrTokenNotFound       = errors.New("token not found")
	ErrNoActiveOrder       = errors.New("token has no active order")
	ErrPipelineRunning     = errors.New("stage pipeline is already running")
)

// InsufficientBalanceError reports a settlement balance that cannot cover a
// deposit shortfall. Amounts are in the smallest ledger unit; the *Text fields
// carry the same amounts formatted for display.
type InsufficientBalanceError struct {
	Required      *big.Int
	Available     *big.Int
	RequiredText  string
	AvailableText string
	Symbol        string
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("your %s balance is too low: %s %s, you need at least %s %s",
		e.Symbol, e.AvailableText, e.Symbol, e.RequiredText, e.Symbol)
}

// Is lets errors.Is match ErrInsufficientBalance.
func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}
