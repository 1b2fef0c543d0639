package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrAccountAlreadyExists = errors.New("account_already_exists")
	ErrAccountNotFound      = errors.New("account_not_found")
	ErrAssetAlreadyExists   = errors.New("asset_already_exists")
	ErrAssetNotFound        = errors.New("asset_not_found")
	ErrOrderNotFound        = errors.New("order_not_found")
	ErrOrderNotCancellable  = errors.New("order_not_cancellable")
	ErrLockNotFound         = errors.New("lock_not_found")
	ErrEntryNotFound        = errors.New("entry_not_found")
	ErrInsufficientBalance  = errors.New("insufficient_balance")
	ErrInsufficientShares   = errors.New("insufficient_shares")
	ErrNoLiquidity          = errors.New("no_liquidity")
	ErrNoVestingTarget      = errors.New("no_vesting_target")
	ErrWebhookNotFound      = errors.New("webhook_not_found")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// InvariantError represents a broken ledger invariant: a negative holding,
// a lock exceeding ownership, a balance driven below zero. These are
// programming-error-class failures: the caller must abort the operation,
// never clamp the value and continue.
type InvariantError struct {
	Op     string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violation in %s: %s", e.Op, e.Detail)
}

// Invariantf builds an InvariantError with a formatted detail message.
func Invariantf(op, format string, args ...any) *InvariantError {
	return &InvariantError{Op: op, Detail: fmt.Sprintf(format, args...)}
}
