/*
store.go - Persistence interfaces for debts and payments

PURPOSE:
  Defines the interface between the engine and the database. Different
  implementations can use SQLite, PostgreSQL, or in-memory storage.

KEY INTERFACES:
  Store:   Row-level reads and writes on the two tables
  TxStore: Transactional wrapper (atomic multi-row operations)

WRITE DISCIPLINE:
  Payments are append-only: InsertPayment exists, no update method does.
  Payment rows are deleted ONLY by the destructive reset/purge operations,
  in lockstep with their owning Debt.

  Debt rows are mutated only through the Engine, which always re-reads the
  row inside a transaction before validating and writing. Store
  implementations must make WithTx serializable (or stronger) so two
  concurrent payments cannot both pass the remaining-amount check.

IDEMPOTENT CREATE:
  InsertDebt must fail with ErrDuplicateOrder when a debt already exists for
  the same non-zero order id (backed by a partial unique index in SQLite).
  The engine converts that into the idempotent no-op the Order Source
  contract requires.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - ledger/store/memory.go: In-memory for testing

SEE ALSO:
  - engine.go: The only caller of the mutating methods
*/
package ledger

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateOrder is returned by InsertDebt when a debt already exists for
// the given non-zero order id. The engine treats this as an idempotent
// create, not a failure.
var ErrDuplicateOrder = errors.New("debt already exists for order")

// =============================================================================
// STORE - Row-level persistence
// =============================================================================

// Store handles persistence of debts and payments.
// All reads return (nil, nil) / empty slices for missing rows; errors are
// reserved for storage faults.
type Store interface {
	// Debts
	InsertDebt(ctx context.Context, d Debt) (DebtID, error)
	GetDebt(ctx context.Context, id DebtID) (*Debt, error)
	GetDebtByOrder(ctx context.Context, orderID OrderID) (*Debt, error)
	UpdateDebt(ctx context.Context, d Debt) error
	DeleteDebt(ctx context.Context, id DebtID) error
	DebtsByCustomer(ctx context.Context, customerID CustomerID) ([]Debt, error)

	// OpenDebtsOldestFirst returns the customer's debts with status active
	// and remaining_amount > 0, ordered oldest-created first. This ordering
	// is the Allocation Policy's contract; implementations must not reorder.
	OpenDebtsOldestFirst(ctx context.Context, customerID CustomerID) ([]Debt, error)

	// ListDebts returns debts matching the filter (admin views).
	ListDebts(ctx context.Context, f DebtFilter) ([]Debt, error)

	// Payments (append-only)
	InsertPayment(ctx context.Context, p Payment) (PaymentID, error)
	PaymentsByDebt(ctx context.Context, debtID DebtID) ([]Payment, error)
	PaymentsByCustomer(ctx context.Context, customerID CustomerID, limit int) ([]Payment, error)

	// DeletePaymentsByDebt removes all payments for a debt and returns the
	// count. Reserved for the destructive reset/purge operations.
	DeletePaymentsByDebt(ctx context.Context, debtID DebtID) (int, error)

	// Aggregates
	CustomerTotals(ctx context.Context, customerID CustomerID) (CustomerSummary, error)
	Stats(ctx context.Context) (Stats, error)
}

// TxStore wraps Store with transaction support. Every mutating engine
// operation runs inside WithTx.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// FILTERS - Admin listing
// =============================================================================

type DebtOrigin string

const (
	OriginAll    DebtOrigin = ""       // no filter
	OriginOrder  DebtOrigin = "order"  // order_id != 0
	OriginManual DebtOrigin = "manual" // order_id == 0
)

type DebtSort string

const (
	SortByCreated   DebtSort = "created_date"
	SortByRemaining DebtSort = "remaining_amount"
)

// DebtFilter narrows ListDebts. Zero value means "everything, oldest first".
type DebtFilter struct {
	Status        DebtStatus // "" = all
	Origin        DebtOrigin
	SortBy        DebtSort // defaults to SortByCreated
	Desc          bool
	Limit         int // <= 0 means no limit
	Offset        int
	UpdatedBefore *time.Time // for purge candidate selection
}
