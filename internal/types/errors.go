// internal/types/errors.go
package types

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientFee is returned when the paid value is below the required fee.
	ErrInsufficientFee = errors.New("insufficient fee")

	// ErrUnauthorized is returned when a privileged call comes from someone other than the admin.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is returned for token indexes that were never allocated.
	ErrNotFound = errors.New("token not found")

	// ErrTokenNotTrading is returned when the token is not in the trading_on_curve state.
	ErrTokenNotTrading = errors.New("token is not trading on curve")

	// ErrAlreadyMigrated is returned for curve operations on a migrating or migrated token.
	ErrAlreadyMigrated = errors.New("token already migrated")

	// ErrInsufficientReserve should be unreachable: the curve never owes more than it holds.
	ErrInsufficientReserve = errors.New("insufficient curve reserve")

	// ErrSlippageExceeded is returned when the executed amount is below the caller's bound.
	ErrSlippageExceeded = errors.New("slippage exceeded")

	// ErrMigrationUnconfigured is returned when no pool address is set for migration.
	ErrMigrationUnconfigured = errors.New("migration pool address not configured")

	// ErrNetworkStale is returned when the liveness check failed or saw an old ledger.
	ErrNetworkStale = errors.New("network stale")

	// ErrInsufficientBalance is returned when the caller does not hold what it spends.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidArgument covers malformed input such as empty names or zero amounts.
	ErrInvalidArgument = errors.New("invalid argument")
)

// SlippageError carries the numbers behind an ErrSlippageExceeded rejection.
type SlippageError struct {
	Expected uint64
	Minimum  uint64
}

func (e *SlippageError) Error() string {
	return fmt.Sprintf("slippage exceeded: got %d, minimum %d", e.Expected, e.Minimum)
}

func (e *SlippageError) Unwrap() error {
	return ErrSlippageExceeded
}

// RequiresOperator reports whether the error points at missing deployment
// configuration rather than something the caller can fix by retrying.
func RequiresOperator(err error) bool {
	return errors.Is(err, ErrMigrationUnconfigured)
}
