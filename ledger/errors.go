/*
errors.go - Centralized error types for the debt ledger

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers classify with errors.Is / the helpers at the bottom.

ERROR CATEGORIES:
  1. Validation errors - caller-input problems, safe to show to users
  2. Not-found errors  - missing debt/customer
  3. Storage errors    - transaction/commit failures; detail is logged, a
                         generic message is surfaced

SEE ALSO:
  - engine.go: Returns these errors
  - api/handlers.go: Maps them to HTTP status codes
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidAmount is returned for zero, negative, or over-limit amounts.
	// Over-payment is rejected, not clamped.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrDebtNotFound is returned when a referenced debt doesn't exist.
	ErrDebtNotFound = errors.New("debt not found")

	// ErrCustomerNotFound is returned when a referenced customer doesn't exist.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrNoOutstandingDebt is returned when a decrease adjustment targets a
	// customer with zero open debts.
	ErrNoOutstandingDebt = errors.New("no outstanding debt")

	// ErrAmountExceedsBalance is returned when a decrease adjustment exceeds
	// the customer's total outstanding balance. The whole adjustment is
	// rejected; partial application is not permitted.
	ErrAmountExceedsBalance = errors.New("amount exceeds outstanding balance")

	// ErrMissingReason is returned when a manual adjustment carries no reason.
	ErrMissingReason = errors.New("adjustment reason is required")

	// ErrInvalidPaymentType is returned when a payment carries a type outside
	// the enumerated set. An empty type defaults to cash instead.
	ErrInvalidPaymentType = errors.New("invalid payment type")

	// ErrInvalidDirection is returned when a manual adjustment is neither an
	// increase nor a decrease.
	ErrInvalidDirection = errors.New("invalid adjustment direction")

	// ErrDebtLimitExceeded is returned by the order intake path when a new
	// order debt would push the customer past the configured maximum.
	ErrDebtLimitExceeded = errors.New("debt limit exceeded")

	// ErrStorage is returned when a transaction cannot be persisted. The
	// underlying detail is logged, never shown to callers.
	ErrStorage = errors.New("storage operation failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidAmountError details an amount rejection on a single debt.
type InvalidAmountError struct {
	DebtID    DebtID
	Requested Money
	Remaining Money
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid payment amount %s: debt %d has %s remaining",
		e.Requested, e.DebtID, e.Remaining)
}

func (e *InvalidAmountError) Unwrap() error { return ErrInvalidAmount }

// ExceedsBalanceError details an over-reduction rejection across a customer's
// open debts.
type ExceedsBalanceError struct {
	CustomerID  CustomerID
	Requested   Money
	Outstanding Money
}

func (e *ExceedsBalanceError) Error() string {
	return fmt.Sprintf("reduction %s exceeds outstanding balance %s for customer %d",
		e.Requested, e.Outstanding, e.CustomerID)
}

func (e *ExceedsBalanceError) Unwrap() error { return ErrAmountExceedsBalance }

// DebtLimitError details a rejected order intake.
type DebtLimitError struct {
	CustomerID  CustomerID
	Outstanding Money
	Requested   Money
	Limit       Money
}

func (e *DebtLimitError) Error() string {
	return fmt.Sprintf("order of %s would bring customer %d to %s, over the %s limit",
		e.Requested, e.CustomerID, e.Outstanding.Add(e.Requested), e.Limit)
}

func (e *DebtLimitError) Unwrap() error { return ErrDebtLimitExceeded }

// StorageError wraps a persistence failure. Error() reports only the generic
// message; the cause is available via Cause for internal logging.
type StorageError struct {
	Op    string
	Cause error
}

func (e *StorageError) Error() string { return "storage operation failed: " + e.Op }

func (e *StorageError) Unwrap() error { return ErrStorage }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input and
// its message is safe to display verbatim.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidPaymentType) ||
		errors.Is(err, ErrInvalidDirection) ||
		errors.Is(err, ErrMissingReason) ||
		errors.Is(err, ErrNoOutstandingDebt) ||
		errors.Is(err, ErrAmountExceedsBalance) ||
		errors.Is(err, ErrDebtLimitExceeded)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDebtNotFound) ||
		errors.Is(err, ErrCustomerNotFound)
}
