/*
Package ledger provides the core debt-ledger accounting engine.

PURPOSE:
  This package contains the types and algorithms for tracking customer
  "buy now, pay later" balances. Orders and manual adjustments become Debt
  records; payments and administrative reductions are applied against them
  under transactional guarantees.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A fixed-point monetary value (2 decimal places)
  - Debt: One amount owed by a customer, from an order or a manual adjustment
  - Payment: One recorded reduction against a specific Debt
  - Customer/Order/Debt/Payment IDs: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Single writer: only the Engine mutates Debt/Payment state
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Denormalized invariant: remaining_amount = debt_amount - paid_amount is
     stored for query performance and kept in sync on every mutation
  4. Append-only payments: Payment rows are never updated

USAGE:
  amount := ledger.NewMoney(100.00)
  debtID, err := engine.CreateDebt(ctx, customerID, orderID, amount)

SEE ALSO:
  - engine.go: Mutating operations and invariant enforcement
  - allocation.go: Oldest-debt-first reduction spreading
  - store.go: Persistence interfaces
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Fixed-point monetary value, 2 decimal places
// =============================================================================

type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money {
	return Money{Value: decimal.NewFromFloat(value).Round(2)}
}

func NewMoneyFromInt(value int) Money {
	return Money{Value: decimal.NewFromInt(int64(value))}
}

// ParseMoney parses a decimal string from untrusted input.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return Money{Value: d.Round(2)}, nil
}

// MustParseMoney parses a decimal string, returning zero on malformed input.
// Used when scanning stored values that were written by this package.
func MustParseMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{Value: decimal.Zero}
	}
	return Money{Value: d.Round(2)}
}

func ZeroMoney() Money { return Money{Value: decimal.Zero} }

func (m Money) Add(b Money) Money          { return Money{Value: m.Value.Add(b.Value)} }
func (m Money) Sub(b Money) Money          { return Money{Value: m.Value.Sub(b.Value)} }
func (m Money) Neg() Money                 { return Money{Value: m.Value.Neg()} }
func (m Money) Abs() Money                 { return Money{Value: m.Value.Abs()} }
func (m Money) IsNegative() bool           { return m.Value.IsNegative() }
func (m Money) IsZero() bool               { return m.Value.IsZero() }
func (m Money) IsPositive() bool           { return m.Value.IsPositive() }
func (m Money) GreaterThan(b Money) bool   { return m.Value.GreaterThan(b.Value) }
func (m Money) LessThan(b Money) bool      { return m.Value.LessThan(b.Value) }
func (m Money) Equal(b Money) bool         { return m.Value.Equal(b.Value) }
func (m Money) String() string           { return m.Value.StringFixed(2) }

// Min returns the smaller of the two values.
func (m Money) Min(b Money) Money {
	if m.LessThan(b) {
		return m
	}
	return b
}

// Float64 is for display only; never feed the result back into arithmetic.
func (m Money) Float64() float64 {
	f, _ := m.Value.Float64()
	return f
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type DebtID int64
type PaymentID int64
type CustomerID int64
type OrderID int64

// NoOrder marks a Debt that originated from a manual adjustment rather than
// an order. Manual debts are never deduplicated by order id.
const NoOrder OrderID = 0

// =============================================================================
// DEBT - One amount owed by a customer
// =============================================================================

type DebtStatus string

const (
	StatusActive    DebtStatus = "active"    // remaining_amount > 0
	StatusPaid      DebtStatus = "paid"      // remaining_amount <= 0
	StatusCancelled DebtStatus = "cancelled" // order cancelled after payments were recorded
)

type Debt struct {
	ID         DebtID
	CustomerID CustomerID
	OrderID    OrderID // NoOrder for manual adjustments

	// DebtAmount is fixed at creation and never decreased.
	// PaidAmount is monotonically non-decreasing.
	// RemainingAmount is always DebtAmount - PaidAmount; stored denormalized
	// and kept in sync on every mutation.
	DebtAmount      Money
	PaidAmount      Money
	RemainingAmount Money

	Status      DebtStatus
	CreatedDate time.Time
	UpdatedDate time.Time
}

// Open reports whether this debt can still absorb payments.
func (d Debt) Open() bool {
	return d.Status == StatusActive && d.RemainingAmount.IsPositive()
}

// statusFor derives the status after a mutation. Cancelled debts never
// transition back through this path.
func statusFor(remaining Money) DebtStatus {
	if remaining.IsPositive() {
		return StatusActive
	}
	return StatusPaid
}

// =============================================================================
// PAYMENT - Append-only record of one reduction against a Debt
// =============================================================================

type PaymentType string

const (
	PayCash         PaymentType = "cash"
	PayBankTransfer PaymentType = "bank_transfer"
	PayCreditCard   PaymentType = "credit_card"
	PayCheck        PaymentType = "check"
	PayOther        PaymentType = "other"
	PayAdjustment   PaymentType = "adjustment" // synthetic, from a decrease adjustment
)

// KnownPaymentType reports whether t is one of the enumerated payment types.
func KnownPaymentType(t PaymentType) bool {
	switch t {
	case PayCash, PayBankTransfer, PayCreditCard, PayCheck, PayOther, PayAdjustment:
		return true
	}
	return false
}

type Payment struct {
	ID            PaymentID
	DebtID        DebtID
	CustomerID    CustomerID // denormalized from the owning Debt at creation
	PaymentAmount Money      // always > 0
	PaymentType   PaymentType
	PaymentNote   string
	PaymentDate   time.Time
	AddedBy       string // actor recording the payment
}

// =============================================================================
// AGGREGATE READS
// =============================================================================

// CustomerSummary is a derived aggregate over one customer's debts.
// It is a read, not a stored entity.
type CustomerSummary struct {
	CustomerID     CustomerID
	TotalDebt      Money
	TotalPaid      Money
	TotalRemaining Money
	HasActiveDebt  bool
}

// Stats is the ledger-wide aggregate shown on the admin dashboard.
type Stats struct {
	TotalDebts       int
	ActiveDebts      int
	TotalDebtAmount  Money
	TotalPaidAmount  Money
	TotalOutstanding Money
}

// ResetCounts reports per-category row counts from ResetAllLedgerData.
type ResetCounts struct {
	ManualDebtsDeleted int
	OrderDebtsReset    int
	PaymentsDeleted    int
}
