/*
Package orders adapts storefront order events into ledger operations.

PURPOSE:
  The ledger engine knows nothing about orders beyond an opaque id. This
  package is the boundary where order lifecycle events (placed with the
  pay-later method, cancelled) become debts, after passing the debt-limit
  gate.

DEBT-LIMIT GATE:
  When a maximum outstanding balance is configured, a new order is admitted
  only if the customer's current outstanding plus the order total stays
  within the limit. A zero limit means unlimited.

IDEMPOTENCY:
  Storefronts re-fire lifecycle events on retries. OrderPlaced and
  OrderCancelled are both safe to call repeatedly for the same order; the
  engine deduplicates by order id.

SEE ALSO:
  - ledger/engine.go: CreateDebt, CancelDebtForOrder
*/
package orders

import (
	"context"
	"log"

	"github.com/warp/debt-ledger/ledger"
)

// Intake admits storefront orders into the debt ledger.
type Intake struct {
	engine  *ledger.Engine
	maxDebt ledger.Money
	logger  *log.Logger
}

// NewIntake creates an intake gate over the engine. A zero (or negative)
// maxDebt disables the limit check. A nil logger falls back to the process
// default.
func NewIntake(engine *ledger.Engine, maxDebt ledger.Money, logger *log.Logger) *Intake {
	if logger == nil {
		logger = log.Default()
	}
	return &Intake{
		engine:  engine,
		maxDebt: maxDebt,
		logger:  logger,
	}
}

// Limit returns the configured maximum outstanding balance. Zero means
// unlimited.
func (in *Intake) Limit() ledger.Money {
	return in.maxDebt
}

// CheckDebtLimit returns nil when an order of the given total may be
// admitted for the customer, or a DebtLimitError when it would push the
// customer's outstanding balance past the configured maximum.
func (in *Intake) CheckDebtLimit(ctx context.Context, customerID ledger.CustomerID, total ledger.Money) error {
	if !in.maxDebt.IsPositive() {
		return nil
	}

	summary, err := in.engine.GetCustomerSummary(ctx, customerID)
	if err != nil {
		return err
	}
	if summary.TotalRemaining.Add(total).GreaterThan(in.maxDebt) {
		return &ledger.DebtLimitError{
			CustomerID:  customerID,
			Outstanding: summary.TotalRemaining,
			Requested:   total,
			Limit:       in.maxDebt,
		}
	}
	return nil
}

// Eligible reports whether an order of the given total would be admitted.
// Convenience wrapper for checkout availability checks.
func (in *Intake) Eligible(ctx context.Context, customerID ledger.CustomerID, total ledger.Money) (bool, error) {
	err := in.CheckDebtLimit(ctx, customerID, total)
	if ledger.IsClientError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// OrderPlaced records the debt for an order paid with the debt method.
// Safe to call more than once for the same order.
func (in *Intake) OrderPlaced(ctx context.Context, orderID ledger.OrderID, customerID ledger.CustomerID, total ledger.Money) (ledger.DebtID, error) {
	if err := in.CheckDebtLimit(ctx, customerID, total); err != nil {
		return 0, err
	}

	id, err := in.engine.CreateDebt(ctx, customerID, orderID, total)
	if err != nil {
		return 0, err
	}
	in.logger.Printf("[Orders] Order %d admitted: debt %d for customer %d (%s)",
		orderID, id, customerID, total)
	return id, nil
}

// OrderCancelled unwinds the debt for a cancelled order. See
// ledger.CancelDebtForOrder for the delete-vs-mark rules.
func (in *Intake) OrderCancelled(ctx context.Context, orderID ledger.OrderID) (ledger.CancelOutcome, error) {
	outcome, err := in.engine.CancelDebtForOrder(ctx, orderID)
	if err != nil {
		return ledger.CancelOutcome{}, err
	}

	switch {
	case !outcome.Found:
		in.logger.Printf("[Orders] Order %d cancelled: no debt on record", orderID)
	case outcome.Deleted:
		in.logger.Printf("[Orders] Order %d cancelled: debt %d removed (nothing paid)", orderID, outcome.DebtID)
	default:
		in.logger.Printf("[Orders] Order %d cancelled: debt %d marked cancelled, %s already paid",
			orderID, outcome.DebtID, outcome.PaidAmount)
	}
	return outcome, nil
}
