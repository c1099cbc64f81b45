/*
engine.go - The debt-ledger engine

PURPOSE:
  The Engine is the only code path allowed to mutate Debt/Payment state.
  Every operation here keeps the invariants:

    0 <= paid_amount <= debt_amount
    remaining_amount == debt_amount - paid_amount
    sum(payments for debt) == debt.paid_amount
    status == paid  <=>  remaining_amount <= 0   (cancelled excepted)

CONCURRENCY:
  Every mutating operation runs as one store transaction and re-reads the
  Debt row(s) inside that transaction before validating. Two concurrent
  payments on the same debt cannot both pass the remaining-amount check;
  one of them sees the other's write.

ERROR PROPAGATION:
  Validation errors (invalid amount, missing reason, over-reduction) are
  returned as-is; their messages are safe to display. Storage faults are
  logged in full here and returned as a generic StorageError.

EVENTS:
  DebtCreated / PaymentReceived fire AFTER the transaction commits. They are
  observable side effects, not part of the atomic operation.

SEE ALSO:
  - allocation.go: Decrease-adjustment spreading
  - store.go: Transaction contract the engine relies on
*/
package ledger

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine applies payments and adjustments to debts under transactional
// guarantees. All dependencies are explicit; there are no package globals.
type Engine struct {
	store    TxStore
	notifier Notifier
	logger   *log.Logger
	now      func() time.Time
}

// NewEngine creates an engine over the given store. A nil notifier discards
// events; a nil logger falls back to the process default.
func NewEngine(store TxStore, notifier Notifier, logger *log.Logger) *Engine {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		store:    store,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// fail classifies an error out of a transaction. Caller-input errors pass
// through untouched; anything else is a storage fault: log the detail,
// return the generic error.
func (e *Engine) fail(op string, err error) error {
	if IsClientError(err) || IsNotFound(err) {
		return err
	}
	e.logger.Printf("ledger: %s: %v", op, err)
	return &StorageError{Op: op, Cause: err}
}

// =============================================================================
// CREATE DEBT
// =============================================================================

// CreateDebt inserts a new Debt with nothing paid against it.
//
// Idempotent by order id: if a Debt already exists for a non-zero orderID,
// no new row is created and the existing Debt's id is returned. The Order
// Source re-fires notifications on retries; a duplicate must not error.
// Manual debts (orderID == NoOrder) are never deduplicated.
func (e *Engine) CreateDebt(ctx context.Context, customerID CustomerID, orderID OrderID, amount Money) (DebtID, error) {
	if customerID <= 0 {
		return 0, ErrCustomerNotFound
	}
	if !amount.IsPositive() {
		return 0, ErrInvalidAmount
	}

	var id DebtID
	var created bool
	err := e.store.WithTx(ctx, func(s Store) error {
		if orderID != NoOrder {
			existing, err := s.GetDebtByOrder(ctx, orderID)
			if err != nil {
				return err
			}
			if existing != nil {
				id = existing.ID
				return nil
			}
		}

		now := e.now()
		newID, err := s.InsertDebt(ctx, Debt{
			CustomerID:      customerID,
			OrderID:         orderID,
			DebtAmount:      amount,
			PaidAmount:      ZeroMoney(),
			RemainingAmount: amount,
			Status:          StatusActive,
			CreatedDate:     now,
			UpdatedDate:     now,
		})
		if errors.Is(err, ErrDuplicateOrder) {
			// Lost a race with a duplicate notification. The unique index
			// caught it; resolve to the surviving row.
			existing, err := s.GetDebtByOrder(ctx, orderID)
			if err != nil {
				return err
			}
			if existing == nil {
				return ErrDuplicateOrder
			}
			id = existing.ID
			return nil
		}
		if err != nil {
			return err
		}
		id = newID
		created = true
		return nil
	})
	if err != nil {
		return 0, e.fail("create debt", err)
	}

	if created {
		e.notifier.DebtCreated(DebtCreatedEvent{
			DebtID:     id,
			CustomerID: customerID,
			OrderID:    orderID,
			Amount:     amount,
		})
	}
	return id, nil
}

// =============================================================================
// APPLY PAYMENT
// =============================================================================

// ApplyPayment records a payment against a single debt and updates the
// debt's aggregates in the same transaction.
//
// Over-payment is rejected, not clamped: amount must not exceed the debt's
// remaining_amount as read inside the transaction.
func (e *Engine) ApplyPayment(ctx context.Context, debtID DebtID, amount Money, paymentType PaymentType, note, actor string) (PaymentID, error) {
	if !amount.IsPositive() {
		return 0, ErrInvalidAmount
	}
	if paymentType == "" {
		paymentType = PayCash
	}
	if !KnownPaymentType(paymentType) {
		return 0, ErrInvalidPaymentType
	}

	var paymentID PaymentID
	var event PaymentReceivedEvent
	err := e.store.WithTx(ctx, func(s Store) error {
		debt, err := s.GetDebt(ctx, debtID)
		if err != nil {
			return err
		}
		if debt == nil {
			return ErrDebtNotFound
		}
		if amount.GreaterThan(debt.RemainingAmount) {
			return &InvalidAmountError{
				DebtID:    debtID,
				Requested: amount,
				Remaining: debt.RemainingAmount,
			}
		}

		paymentID, err = s.InsertPayment(ctx, Payment{
			DebtID:        debtID,
			CustomerID:    debt.CustomerID,
			PaymentAmount: amount,
			PaymentType:   paymentType,
			PaymentNote:   note,
			PaymentDate:   e.now(),
			AddedBy:       actor,
		})
		if err != nil {
			return err
		}

		if err := e.settle(ctx, s, debt, amount); err != nil {
			return err
		}

		event = PaymentReceivedEvent{
			PaymentID:  paymentID,
			DebtID:     debtID,
			CustomerID: debt.CustomerID,
			Amount:     amount,
			Type:       paymentType,
		}
		return nil
	})
	if err != nil {
		return 0, e.fail("apply payment", err)
	}

	e.notifier.PaymentReceived(event)
	return paymentID, nil
}

// settle applies a paid amount to a debt's aggregates and writes the row.
// Cancelled debts keep their status; everything else derives it from the
// new remaining amount.
func (e *Engine) settle(ctx context.Context, s Store, debt *Debt, amount Money) error {
	debt.PaidAmount = debt.PaidAmount.Add(amount)
	debt.RemainingAmount = debt.DebtAmount.Sub(debt.PaidAmount)
	if debt.Status != StatusCancelled {
		debt.Status = statusFor(debt.RemainingAmount)
	}
	debt.UpdatedDate = e.now()
	return s.UpdateDebt(ctx, *debt)
}

// =============================================================================
// MANUAL ADJUSTMENT
// =============================================================================

type AdjustmentDirection string

const (
	AdjustIncrease AdjustmentDirection = "increase"
	AdjustDecrease AdjustmentDirection = "decrease"
)

// ApplyManualAdjustment creates new debt (increase) or settles existing debt
// (decrease) without an underlying order.
//
// increase: one new Debt row (order id 0) with the full amount outstanding.
// decrease: spreads the amount across the customer's open debts oldest-first
// as synthetic adjustment payments. The whole adjustment commits or none of
// it does; over-reduction and customers with no open debt are rejected.
//
// Returns the new Debt id (increase) or the last Debt touched (decrease).
func (e *Engine) ApplyManualAdjustment(ctx context.Context, customerID CustomerID, amount Money, reason string, direction AdjustmentDirection, actor string) (DebtID, error) {
	amount = amount.Abs()
	if !amount.IsPositive() {
		return 0, ErrInvalidAmount
	}
	if strings.TrimSpace(reason) == "" {
		return 0, ErrMissingReason
	}
	if customerID <= 0 {
		return 0, ErrCustomerNotFound
	}

	switch direction {
	case AdjustIncrease:
		return e.CreateDebt(ctx, customerID, NoOrder, amount)
	case AdjustDecrease:
		return e.applyDecrease(ctx, customerID, amount, reason, actor)
	default:
		return 0, ErrInvalidDirection
	}
}

func (e *Engine) applyDecrease(ctx context.Context, customerID CustomerID, amount Money, reason, actor string) (DebtID, error) {
	var lastDebtID DebtID
	var events []PaymentReceivedEvent
	err := e.store.WithTx(ctx, func(s Store) error {
		debts, err := s.OpenDebtsOldestFirst(ctx, customerID)
		if err != nil {
			return err
		}
		if len(debts) == 0 {
			return ErrNoOutstandingDebt
		}

		// Pre-check against the total before touching any row. The
		// allocation loop re-checks; see allocation.go.
		outstanding := ZeroMoney()
		for _, d := range debts {
			outstanding = outstanding.Add(d.RemainingAmount)
		}
		if amount.GreaterThan(outstanding) {
			return &ExceedsBalanceError{
				CustomerID:  customerID,
				Requested:   amount,
				Outstanding: outstanding,
			}
		}

		allocations, err := allocateReduction(customerID, debts, amount)
		if err != nil {
			return err
		}

		now := e.now()
		for i, alloc := range allocations {
			paymentID, err := s.InsertPayment(ctx, Payment{
				DebtID:        alloc.DebtID,
				CustomerID:    customerID,
				PaymentAmount: alloc.Amount,
				PaymentType:   PayAdjustment,
				PaymentNote:   reason,
				PaymentDate:   now,
				AddedBy:       actor,
			})
			if err != nil {
				return err
			}

			debt := &debts[i]
			if err := e.settle(ctx, s, debt, alloc.Amount); err != nil {
				return err
			}

			lastDebtID = alloc.DebtID
			events = append(events, PaymentReceivedEvent{
				PaymentID:  paymentID,
				DebtID:     alloc.DebtID,
				CustomerID: customerID,
				Amount:     alloc.Amount,
				Type:       PayAdjustment,
			})
		}
		return nil
	})
	if err != nil {
		return 0, e.fail("apply decrease adjustment", err)
	}

	for _, ev := range events {
		e.notifier.PaymentReceived(ev)
	}
	return lastDebtID, nil
}

// =============================================================================
// ORDER CANCELLATION
// =============================================================================

// CancelOutcome describes what CancelDebtForOrder did. When PaidAmount is
// positive the recorded payments need manual refund handling; cancellation
// never silently discards them.
type CancelOutcome struct {
	Found      bool
	Deleted    bool
	DebtID     DebtID
	PaidAmount Money
}

// CancelDebtForOrder reacts to an order cancellation. A debt with no
// recorded payments is removed entirely (no financial history to preserve);
// a debt with payments is marked cancelled with amounts untouched.
//
// Idempotent: a missing debt, or one already cancelled, is a no-op.
func (e *Engine) CancelDebtForOrder(ctx context.Context, orderID OrderID) (CancelOutcome, error) {
	var outcome CancelOutcome
	err := e.store.WithTx(ctx, func(s Store) error {
		debt, err := s.GetDebtByOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if debt == nil {
			return nil
		}
		outcome.Found = true
		outcome.DebtID = debt.ID
		outcome.PaidAmount = debt.PaidAmount

		if debt.PaidAmount.IsZero() {
			if err := s.DeleteDebt(ctx, debt.ID); err != nil {
				return err
			}
			outcome.Deleted = true
			return nil
		}
		if debt.Status == StatusCancelled {
			return nil
		}
		debt.Status = StatusCancelled
		debt.UpdatedDate = e.now()
		return s.UpdateDebt(ctx, *debt)
	})
	if err != nil {
		return CancelOutcome{}, e.fail("cancel debt for order", err)
	}
	return outcome, nil
}

// =============================================================================
// READS
// =============================================================================

// GetCustomerSummary returns the customer's aggregate position. Read-only;
// no locking, may trail in-flight writes.
func (e *Engine) GetCustomerSummary(ctx context.Context, customerID CustomerID) (CustomerSummary, error) {
	if customerID <= 0 {
		return CustomerSummary{}, ErrCustomerNotFound
	}
	summary, err := e.store.CustomerTotals(ctx, customerID)
	if err != nil {
		return CustomerSummary{}, e.fail("customer summary", err)
	}
	return summary, nil
}

// Stats returns the ledger-wide dashboard aggregate.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	stats, err := e.store.Stats(ctx)
	if err != nil {
		return Stats{}, e.fail("ledger stats", err)
	}
	return stats, nil
}

// =============================================================================
// DESTRUCTIVE ADMINISTRATION
// =============================================================================

// ResetAllLedgerData deletes every manual-adjustment Debt and its Payments,
// and resets every order-linked Debt to its pristine state (nothing paid,
// status active) while deleting its Payments. One transaction. Intended only
// for correcting corrupted or test data.
func (e *Engine) ResetAllLedgerData(ctx context.Context) (ResetCounts, error) {
	var counts ResetCounts
	err := e.store.WithTx(ctx, func(s Store) error {
		debts, err := s.ListDebts(ctx, DebtFilter{})
		if err != nil {
			return err
		}
		for _, d := range debts {
			deleted, err := s.DeletePaymentsByDebt(ctx, d.ID)
			if err != nil {
				return err
			}
			counts.PaymentsDeleted += deleted

			if d.OrderID == NoOrder {
				if err := s.DeleteDebt(ctx, d.ID); err != nil {
					return err
				}
				counts.ManualDebtsDeleted++
				continue
			}

			d.PaidAmount = ZeroMoney()
			d.RemainingAmount = d.DebtAmount
			d.Status = StatusActive
			d.UpdatedDate = e.now()
			if err := s.UpdateDebt(ctx, d); err != nil {
				return err
			}
			counts.OrderDebtsReset++
		}
		return nil
	})
	if err != nil {
		return ResetCounts{}, e.fail("reset ledger data", err)
	}
	return counts, nil
}

// PurgePaidDebts deletes fully-paid debts whose last update is older than
// the given age, together with their payments. Returns the number of debts
// removed.
func (e *Engine) PurgePaidDebts(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := e.now().Add(-olderThan)
	var purged int
	err := e.store.WithTx(ctx, func(s Store) error {
		debts, err := s.ListDebts(ctx, DebtFilter{
			Status:        StatusPaid,
			UpdatedBefore: &cutoff,
		})
		if err != nil {
			return err
		}
		for _, d := range debts {
			if _, err := s.DeletePaymentsByDebt(ctx, d.ID); err != nil {
				return err
			}
			if err := s.DeleteDebt(ctx, d.ID); err != nil {
				return err
			}
			purged++
		}
		return nil
	})
	if err != nil {
		return 0, e.fail("purge paid debts", err)
	}
	return purged, nil
}
