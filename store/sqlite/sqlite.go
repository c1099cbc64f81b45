/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements ledger.Store and ledger.TxStore using SQLite. In production the
  same patterns apply to PostgreSQL/MySQL - only minor SQL dialect
  differences (the original deployment used MySQL decimal(10,2) columns).

KEY TABLES:
  debts:         One row per debt, aggregates denormalized
  debt_payments: Append-only payment log

IDEMPOTENT CREATE:
  A partial unique index on debts(order_id) WHERE order_id != 0 guarantees
  at most one debt per order even under concurrent duplicate notifications.
  Violations surface as ledger.ErrDuplicateOrder.

TRANSACTIONS:
  WithTx wraps a database transaction; every statement issued through the
  in-transaction view runs on the same *sql.Tx, so the engine's
  read-validate-write sequence is atomic. The store-level mutex serializes
  writers (SQLite allows one writer at a time anyway).

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

MONETARY STORAGE:
  Amounts are stored as fixed-point decimal strings (2 fractional digits)
  and re-parsed with shopspring/decimal. CAST(... AS REAL) is used only for
  ordering and open-debt selection, never for arithmetic.

USAGE:
  store, err := sqlite.New("./data/debts.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := ledger.NewEngine(store, notifier, nil)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/debt-ledger/ledger"
)

// Store implements ledger.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A pooled ":memory:" connection would get its own empty database.
	// SQLite permits one writer at a time regardless.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Debts (aggregates denormalized; kept in sync by the engine)
	CREATE TABLE IF NOT EXISTS debts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		customer_id INTEGER NOT NULL,
		order_id INTEGER NOT NULL DEFAULT 0,
		debt_amount TEXT NOT NULL,
		paid_amount TEXT NOT NULL DEFAULT '0.00',
		remaining_amount TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		created_date TEXT NOT NULL,
		updated_date TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_debts_customer
		ON debts(customer_id);
	CREATE INDEX IF NOT EXISTS idx_debts_status
		ON debts(status);
	CREATE INDEX IF NOT EXISTS idx_debts_updated
		ON debts(status, updated_date);

	-- CRITICAL: at most one debt per order. Order id 0 means "manual
	-- adjustment" and is exempt; manual debts are never deduplicated.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_debts_unique_order
		ON debts(order_id) WHERE order_id != 0;

	-- Allocation hot path: a customer's open debts, oldest first
	CREATE INDEX IF NOT EXISTS idx_debts_customer_open
		ON debts(customer_id, status, created_date);

	-- Payments (append-only log)
	CREATE TABLE IF NOT EXISTS debt_payments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		debt_id INTEGER NOT NULL,
		customer_id INTEGER NOT NULL,
		payment_amount TEXT NOT NULL,
		payment_type TEXT NOT NULL DEFAULT 'cash',
		payment_note TEXT,
		payment_date TEXT NOT NULL,
		added_by TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_payments_debt
		ON debt_payments(debt_id);
	CREATE INDEX IF NOT EXISTS idx_payments_customer
		ON debt_payments(customer_id);
	CREATE INDEX IF NOT EXISTS idx_payments_date
		ON debt_payments(payment_date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx, so the same statement
// helpers serve direct calls and in-transaction calls.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// TRANSACTIONS (ledger.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{db: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore routes every statement through one *sql.Tx.
type txStore struct {
	db *sql.Tx
}

func (ts *txStore) InsertDebt(ctx context.Context, d ledger.Debt) (ledger.DebtID, error) {
	return insertDebt(ctx, ts.db, d)
}
func (ts *txStore) GetDebt(ctx context.Context, id ledger.DebtID) (*ledger.Debt, error) {
	return getDebt(ctx, ts.db, id)
}
func (ts *txStore) GetDebtByOrder(ctx context.Context, orderID ledger.OrderID) (*ledger.Debt, error) {
	return getDebtByOrder(ctx, ts.db, orderID)
}
func (ts *txStore) UpdateDebt(ctx context.Context, d ledger.Debt) error {
	return updateDebt(ctx, ts.db, d)
}
func (ts *txStore) DeleteDebt(ctx context.Context, id ledger.DebtID) error {
	return deleteDebt(ctx, ts.db, id)
}
func (ts *txStore) DebtsByCustomer(ctx context.Context, customerID ledger.CustomerID) ([]ledger.Debt, error) {
	return debtsByCustomer(ctx, ts.db, customerID)
}
func (ts *txStore) OpenDebtsOldestFirst(ctx context.Context, customerID ledger.CustomerID) ([]ledger.Debt, error) {
	return openDebtsOldestFirst(ctx, ts.db, customerID)
}
func (ts *txStore) ListDebts(ctx context.Context, f ledger.DebtFilter) ([]ledger.Debt, error) {
	return listDebts(ctx, ts.db, f)
}
func (ts *txStore) InsertPayment(ctx context.Context, p ledger.Payment) (ledger.PaymentID, error) {
	return insertPayment(ctx, ts.db, p)
}
func (ts *txStore) PaymentsByDebt(ctx context.Context, debtID ledger.DebtID) ([]ledger.Payment, error) {
	return paymentsByDebt(ctx, ts.db, debtID)
}
func (ts *txStore) PaymentsByCustomer(ctx context.Context, customerID ledger.CustomerID, limit int) ([]ledger.Payment, error) {
	return paymentsByCustomer(ctx, ts.db, customerID, limit)
}
func (ts *txStore) DeletePaymentsByDebt(ctx context.Context, debtID ledger.DebtID) (int, error) {
	return deletePaymentsByDebt(ctx, ts.db, debtID)
}
func (ts *txStore) CustomerTotals(ctx context.Context, customerID ledger.CustomerID) (ledger.CustomerSummary, error) {
	return customerTotals(ctx, ts.db, customerID)
}
func (ts *txStore) Stats(ctx context.Context) (ledger.Stats, error) {
	return stats(ctx, ts.db)
}

// =============================================================================
// DEBTS (ledger.Store interface)
// =============================================================================

const debtColumns = `id, customer_id, order_id, debt_amount, paid_amount, remaining_amount, status, created_date, updated_date`

func (s *Store) InsertDebt(ctx context.Context, d ledger.Debt) (ledger.DebtID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertDebt(ctx, s.db, d)
}

func insertDebt(ctx context.Context, db dbtx, d ledger.Debt) (ledger.DebtID, error) {
	res, err := db.ExecContext(ctx, `
		INSERT INTO debts
		(customer_id, order_id, debt_amount, paid_amount, remaining_amount, status, created_date, updated_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.CustomerID,
		d.OrderID,
		d.DebtAmount.String(),
		d.PaidAmount.String(),
		d.RemainingAmount.String(),
		d.Status,
		d.CreatedDate.UTC().Format(time.RFC3339),
		d.UpdatedDate.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return 0, ledger.ErrDuplicateOrder
		}
		return 0, fmt.Errorf("failed to insert debt: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read debt id: %w", err)
	}
	return ledger.DebtID(id), nil
}

func (s *Store) GetDebt(ctx context.Context, id ledger.DebtID) (*ledger.Debt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getDebt(ctx, s.db, id)
}

func getDebt(ctx context.Context, db dbtx, id ledger.DebtID) (*ledger.Debt, error) {
	return queryDebt(ctx, db, `SELECT `+debtColumns+` FROM debts WHERE id = ?`, id)
}

func (s *Store) GetDebtByOrder(ctx context.Context, orderID ledger.OrderID) (*ledger.Debt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getDebtByOrder(ctx, s.db, orderID)
}

func getDebtByOrder(ctx context.Context, db dbtx, orderID ledger.OrderID) (*ledger.Debt, error) {
	if orderID == ledger.NoOrder {
		return nil, nil
	}
	return queryDebt(ctx, db, `SELECT `+debtColumns+` FROM debts WHERE order_id = ?`, orderID)
}

func (s *Store) UpdateDebt(ctx context.Context, d ledger.Debt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateDebt(ctx, s.db, d)
}

func updateDebt(ctx context.Context, db dbtx, d ledger.Debt) error {
	res, err := db.ExecContext(ctx, `
		UPDATE debts
		SET paid_amount = ?, remaining_amount = ?, status = ?, updated_date = ?
		WHERE id = ?`,
		d.PaidAmount.String(),
		d.RemainingAmount.String(),
		d.Status,
		d.UpdatedDate.UTC().Format(time.RFC3339),
		d.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update debt %d: %w", d.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update debt %d: %w", d.ID, err)
	}
	if affected == 0 {
		return ledger.ErrDebtNotFound
	}
	return nil
}

func (s *Store) DeleteDebt(ctx context.Context, id ledger.DebtID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteDebt(ctx, s.db, id)
}

func deleteDebt(ctx context.Context, db dbtx, id ledger.DebtID) error {
	_, err := db.ExecContext(ctx, `DELETE FROM debts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete debt %d: %w", id, err)
	}
	return nil
}

func (s *Store) DebtsByCustomer(ctx context.Context, customerID ledger.CustomerID) ([]ledger.Debt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return debtsByCustomer(ctx, s.db, customerID)
}

func debtsByCustomer(ctx context.Context, db dbtx, customerID ledger.CustomerID) ([]ledger.Debt, error) {
	return queryDebts(ctx, db, `
		SELECT `+debtColumns+` FROM debts
		WHERE customer_id = ?
		ORDER BY created_date ASC, id ASC`, customerID)
}

func (s *Store) OpenDebtsOldestFirst(ctx context.Context, customerID ledger.CustomerID) ([]ledger.Debt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return openDebtsOldestFirst(ctx, s.db, customerID)
}

func openDebtsOldestFirst(ctx context.Context, db dbtx, customerID ledger.CustomerID) ([]ledger.Debt, error) {
	return queryDebts(ctx, db, `
		SELECT `+debtColumns+` FROM debts
		WHERE customer_id = ? AND status = 'active' AND CAST(remaining_amount AS REAL) > 0
		ORDER BY created_date ASC, id ASC`, customerID)
}

func (s *Store) ListDebts(ctx context.Context, f ledger.DebtFilter) ([]ledger.Debt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listDebts(ctx, s.db, f)
}

func listDebts(ctx context.Context, db dbtx, f ledger.DebtFilter) ([]ledger.Debt, error) {
	var conds []string
	var args []any

	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	switch f.Origin {
	case ledger.OriginOrder:
		conds = append(conds, "order_id != 0")
	case ledger.OriginManual:
		conds = append(conds, "order_id = 0")
	}
	if f.UpdatedBefore != nil {
		conds = append(conds, "updated_date < ?")
		args = append(args, f.UpdatedBefore.UTC().Format(time.RFC3339))
	}

	query := `SELECT ` + debtColumns + ` FROM debts`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	dir := "ASC"
	if f.Desc {
		dir = "DESC"
	}
	switch f.SortBy {
	case ledger.SortByRemaining:
		query += " ORDER BY CAST(remaining_amount AS REAL) " + dir + ", id ASC"
	default:
		query += " ORDER BY created_date " + dir + ", id " + dir
	}

	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	return queryDebts(ctx, db, query, args...)
}

func queryDebt(ctx context.Context, db dbtx, query string, args ...any) (*ledger.Debt, error) {
	debts, err := queryDebts(ctx, db, query, args...)
	if err != nil {
		return nil, err
	}
	if len(debts) == 0 {
		return nil, nil
	}
	return &debts[0], nil
}

func queryDebts(ctx context.Context, db dbtx, query string, args ...any) ([]ledger.Debt, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query debts: %w", err)
	}
	defer rows.Close()

	var debts []ledger.Debt
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, err
		}
		debts = append(debts, d)
	}
	return debts, rows.Err()
}

func scanDebt(rows *sql.Rows) (ledger.Debt, error) {
	var (
		d           ledger.Debt
		debtAmt     string
		paidAmt     string
		remAmt      string
		createdDate string
		updatedDate string
	)

	err := rows.Scan(
		&d.ID, &d.CustomerID, &d.OrderID,
		&debtAmt, &paidAmt, &remAmt,
		&d.Status, &createdDate, &updatedDate,
	)
	if err != nil {
		return d, fmt.Errorf("failed to scan debt: %w", err)
	}

	d.DebtAmount = ledger.MustParseMoney(debtAmt)
	d.PaidAmount = ledger.MustParseMoney(paidAmt)
	d.RemainingAmount = ledger.MustParseMoney(remAmt)
	d.CreatedDate, _ = time.Parse(time.RFC3339, createdDate)
	d.UpdatedDate, _ = time.Parse(time.RFC3339, updatedDate)
	return d, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

const paymentColumns = `id, debt_id, customer_id, payment_amount, payment_type, payment_note, payment_date, added_by`

func (s *Store) InsertPayment(ctx context.Context, p ledger.Payment) (ledger.PaymentID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertPayment(ctx, s.db, p)
}

func insertPayment(ctx context.Context, db dbtx, p ledger.Payment) (ledger.PaymentID, error) {
	res, err := db.ExecContext(ctx, `
		INSERT INTO debt_payments
		(debt_id, customer_id, payment_amount, payment_type, payment_note, payment_date, added_by)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.DebtID,
		p.CustomerID,
		p.PaymentAmount.String(),
		p.PaymentType,
		nullString(p.PaymentNote),
		p.PaymentDate.UTC().Format(time.RFC3339),
		nullString(p.AddedBy),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert payment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read payment id: %w", err)
	}
	return ledger.PaymentID(id), nil
}

func (s *Store) PaymentsByDebt(ctx context.Context, debtID ledger.DebtID) ([]ledger.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return paymentsByDebt(ctx, s.db, debtID)
}

func paymentsByDebt(ctx context.Context, db dbtx, debtID ledger.DebtID) ([]ledger.Payment, error) {
	return queryPayments(ctx, db, `
		SELECT `+paymentColumns+` FROM debt_payments
		WHERE debt_id = ?
		ORDER BY payment_date DESC, id DESC`, debtID)
}

func (s *Store) PaymentsByCustomer(ctx context.Context, customerID ledger.CustomerID, limit int) ([]ledger.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return paymentsByCustomer(ctx, s.db, customerID, limit)
}

func paymentsByCustomer(ctx context.Context, db dbtx, customerID ledger.CustomerID, limit int) ([]ledger.Payment, error) {
	if limit <= 0 {
		limit = 50
	}
	return queryPayments(ctx, db, `
		SELECT `+paymentColumns+` FROM debt_payments
		WHERE customer_id = ?
		ORDER BY payment_date DESC, id DESC
		LIMIT ?`, customerID, limit)
}

func (s *Store) DeletePaymentsByDebt(ctx context.Context, debtID ledger.DebtID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deletePaymentsByDebt(ctx, s.db, debtID)
}

func deletePaymentsByDebt(ctx context.Context, db dbtx, debtID ledger.DebtID) (int, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM debt_payments WHERE debt_id = ?`, debtID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete payments for debt %d: %w", debtID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to delete payments for debt %d: %w", debtID, err)
	}
	return int(affected), nil
}

func queryPayments(ctx context.Context, db dbtx, query string, args ...any) ([]ledger.Payment, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []ledger.Payment
	for rows.Next() {
		var (
			p           ledger.Payment
			amount      string
			note        sql.NullString
			paymentDate string
			addedBy     sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.DebtID, &p.CustomerID, &amount, &p.PaymentType, &note, &paymentDate, &addedBy); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		p.PaymentAmount = ledger.MustParseMoney(amount)
		p.PaymentNote = note.String
		p.AddedBy = addedBy.String
		p.PaymentDate, _ = time.Parse(time.RFC3339, paymentDate)
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// =============================================================================
// AGGREGATES
// =============================================================================

// customerTotals sums in Go over the customer's debt rows rather than with
// SQL SUM, keeping the arithmetic in exact decimals.
func customerTotals(ctx context.Context, db dbtx, customerID ledger.CustomerID) (ledger.CustomerSummary, error) {
	debts, err := debtsByCustomer(ctx, db, customerID)
	if err != nil {
		return ledger.CustomerSummary{}, err
	}

	summary := ledger.CustomerSummary{
		CustomerID:     customerID,
		TotalDebt:      ledger.ZeroMoney(),
		TotalPaid:      ledger.ZeroMoney(),
		TotalRemaining: ledger.ZeroMoney(),
	}
	for _, d := range debts {
		summary.TotalDebt = summary.TotalDebt.Add(d.DebtAmount)
		summary.TotalPaid = summary.TotalPaid.Add(d.PaidAmount)
		summary.TotalRemaining = summary.TotalRemaining.Add(d.RemainingAmount)
		if d.Open() {
			summary.HasActiveDebt = true
		}
	}
	return summary, nil
}

func (s *Store) CustomerTotals(ctx context.Context, customerID ledger.CustomerID) (ledger.CustomerSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return customerTotals(ctx, s.db, customerID)
}

func stats(ctx context.Context, db dbtx) (ledger.Stats, error) {
	debts, err := queryDebts(ctx, db, `SELECT `+debtColumns+` FROM debts`)
	if err != nil {
		return ledger.Stats{}, err
	}

	result := ledger.Stats{
		TotalDebtAmount:  ledger.ZeroMoney(),
		TotalPaidAmount:  ledger.ZeroMoney(),
		TotalOutstanding: ledger.ZeroMoney(),
	}
	for _, d := range debts {
		result.TotalDebts++
		if d.Status == ledger.StatusActive {
			result.ActiveDebts++
		}
		result.TotalDebtAmount = result.TotalDebtAmount.Add(d.DebtAmount)
		result.TotalPaidAmount = result.TotalPaidAmount.Add(d.PaidAmount)
		result.TotalOutstanding = result.TotalOutstanding.Add(d.RemainingAmount)
	}
	return result, nil
}

func (s *Store) Stats(ctx context.Context) (ledger.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return stats(ctx, s.db)
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
