// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/debt-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu            sync.RWMutex
	debts         map[ledger.DebtID]ledger.Debt
	payments      map[ledger.PaymentID]ledger.Payment
	nextDebtID    int64
	nextPaymentID int64
}

func NewMemory() *Memory {
	return &Memory{
		debts:    make(map[ledger.DebtID]ledger.Debt),
		payments: make(map[ledger.PaymentID]ledger.Payment),
	}
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx runs fn under the store lock against a snapshot-backed view. On
// error the snapshot is restored, so partial writes never survive. This
// gives the same all-or-nothing semantics as the SQLite store.
func (m *Memory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapDebts := make(map[ledger.DebtID]ledger.Debt, len(m.debts))
	for k, v := range m.debts {
		snapDebts[k] = v
	}
	snapPayments := make(map[ledger.PaymentID]ledger.Payment, len(m.payments))
	for k, v := range m.payments {
		snapPayments[k] = v
	}
	snapDebtID, snapPaymentID := m.nextDebtID, m.nextPaymentID

	if err := fn(&memoryTx{m}); err != nil {
		m.debts = snapDebts
		m.payments = snapPayments
		m.nextDebtID, m.nextPaymentID = snapDebtID, snapPaymentID
		return err
	}
	return nil
}

// memoryTx is the in-transaction view: same store, lock already held.
type memoryTx struct {
	m *Memory
}

func (t *memoryTx) InsertDebt(_ context.Context, d ledger.Debt) (ledger.DebtID, error) {
	return t.m.insertDebtLocked(d)
}
func (t *memoryTx) GetDebt(_ context.Context, id ledger.DebtID) (*ledger.Debt, error) {
	return t.m.getDebtLocked(id), nil
}
func (t *memoryTx) GetDebtByOrder(_ context.Context, orderID ledger.OrderID) (*ledger.Debt, error) {
	return t.m.getDebtByOrderLocked(orderID), nil
}
func (t *memoryTx) UpdateDebt(_ context.Context, d ledger.Debt) error {
	return t.m.updateDebtLocked(d)
}
func (t *memoryTx) DeleteDebt(_ context.Context, id ledger.DebtID) error {
	delete(t.m.debts, id)
	return nil
}
func (t *memoryTx) DebtsByCustomer(_ context.Context, customerID ledger.CustomerID) ([]ledger.Debt, error) {
	return t.m.debtsByCustomerLocked(customerID), nil
}
func (t *memoryTx) OpenDebtsOldestFirst(_ context.Context, customerID ledger.CustomerID) ([]ledger.Debt, error) {
	return t.m.openDebtsLocked(customerID), nil
}
func (t *memoryTx) ListDebts(_ context.Context, f ledger.DebtFilter) ([]ledger.Debt, error) {
	return t.m.listDebtsLocked(f), nil
}
func (t *memoryTx) InsertPayment(_ context.Context, p ledger.Payment) (ledger.PaymentID, error) {
	return t.m.insertPaymentLocked(p)
}
func (t *memoryTx) PaymentsByDebt(_ context.Context, debtID ledger.DebtID) ([]ledger.Payment, error) {
	return t.m.paymentsByDebtLocked(debtID), nil
}
func (t *memoryTx) PaymentsByCustomer(_ context.Context, customerID ledger.CustomerID, limit int) ([]ledger.Payment, error) {
	return t.m.paymentsByCustomerLocked(customerID, limit), nil
}
func (t *memoryTx) DeletePaymentsByDebt(_ context.Context, debtID ledger.DebtID) (int, error) {
	return t.m.deletePaymentsLocked(debtID), nil
}
func (t *memoryTx) CustomerTotals(_ context.Context, customerID ledger.CustomerID) (ledger.CustomerSummary, error) {
	return t.m.customerTotalsLocked(customerID), nil
}
func (t *memoryTx) Stats(_ context.Context) (ledger.Stats, error) {
	return t.m.statsLocked(), nil
}

// =============================================================================
// DEBTS
// =============================================================================

func (m *Memory) InsertDebt(_ context.Context, d ledger.Debt) (ledger.DebtID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertDebtLocked(d)
}

func (m *Memory) insertDebtLocked(d ledger.Debt) (ledger.DebtID, error) {
	if d.OrderID != ledger.NoOrder && m.getDebtByOrderLocked(d.OrderID) != nil {
		return 0, ledger.ErrDuplicateOrder
	}
	m.nextDebtID++
	d.ID = ledger.DebtID(m.nextDebtID)
	m.debts[d.ID] = d
	return d.ID, nil
}

func (m *Memory) GetDebt(_ context.Context, id ledger.DebtID) (*ledger.Debt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getDebtLocked(id), nil
}

func (m *Memory) getDebtLocked(id ledger.DebtID) *ledger.Debt {
	if d, ok := m.debts[id]; ok {
		return &d
	}
	return nil
}

func (m *Memory) GetDebtByOrder(_ context.Context, orderID ledger.OrderID) (*ledger.Debt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getDebtByOrderLocked(orderID), nil
}

func (m *Memory) getDebtByOrderLocked(orderID ledger.OrderID) *ledger.Debt {
	if orderID == ledger.NoOrder {
		return nil
	}
	for _, d := range m.debts {
		if d.OrderID == orderID {
			d := d
			return &d
		}
	}
	return nil
}

func (m *Memory) UpdateDebt(_ context.Context, d ledger.Debt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateDebtLocked(d)
}

func (m *Memory) updateDebtLocked(d ledger.Debt) error {
	if _, ok := m.debts[d.ID]; !ok {
		return ledger.ErrDebtNotFound
	}
	m.debts[d.ID] = d
	return nil
}

func (m *Memory) DeleteDebt(_ context.Context, id ledger.DebtID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.debts, id)
	return nil
}

func (m *Memory) DebtsByCustomer(_ context.Context, customerID ledger.CustomerID) ([]ledger.Debt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.debtsByCustomerLocked(customerID), nil
}

func (m *Memory) debtsByCustomerLocked(customerID ledger.CustomerID) []ledger.Debt {
	var debts []ledger.Debt
	for _, d := range m.debts {
		if d.CustomerID == customerID {
			debts = append(debts, d)
		}
	}
	sortOldestFirst(debts)
	return debts
}

func (m *Memory) OpenDebtsOldestFirst(_ context.Context, customerID ledger.CustomerID) ([]ledger.Debt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.openDebtsLocked(customerID), nil
}

func (m *Memory) openDebtsLocked(customerID ledger.CustomerID) []ledger.Debt {
	var debts []ledger.Debt
	for _, d := range m.debts {
		if d.CustomerID == customerID && d.Open() {
			debts = append(debts, d)
		}
	}
	sortOldestFirst(debts)
	return debts
}

func (m *Memory) ListDebts(_ context.Context, f ledger.DebtFilter) ([]ledger.Debt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listDebtsLocked(f), nil
}

func (m *Memory) listDebtsLocked(f ledger.DebtFilter) []ledger.Debt {
	var debts []ledger.Debt
	for _, d := range m.debts {
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		if f.Origin == ledger.OriginOrder && d.OrderID == ledger.NoOrder {
			continue
		}
		if f.Origin == ledger.OriginManual && d.OrderID != ledger.NoOrder {
			continue
		}
		if f.UpdatedBefore != nil && !d.UpdatedDate.Before(*f.UpdatedBefore) {
			continue
		}
		debts = append(debts, d)
	}

	switch f.SortBy {
	case ledger.SortByRemaining:
		sort.Slice(debts, func(i, j int) bool {
			if f.Desc {
				return debts[i].RemainingAmount.GreaterThan(debts[j].RemainingAmount)
			}
			return debts[i].RemainingAmount.LessThan(debts[j].RemainingAmount)
		})
	default:
		sortOldestFirst(debts)
		if f.Desc {
			for i, j := 0, len(debts)-1; i < j; i, j = i+1, j-1 {
				debts[i], debts[j] = debts[j], debts[i]
			}
		}
	}

	if f.Offset > 0 {
		if f.Offset >= len(debts) {
			return nil
		}
		debts = debts[f.Offset:]
	}
	if f.Limit > 0 && len(debts) > f.Limit {
		debts = debts[:f.Limit]
	}
	return debts
}

// sortOldestFirst orders by creation date, with id as tiebreaker so same-
// second inserts stay in insertion order.
func sortOldestFirst(debts []ledger.Debt) {
	sort.Slice(debts, func(i, j int) bool {
		if debts[i].CreatedDate.Equal(debts[j].CreatedDate) {
			return debts[i].ID < debts[j].ID
		}
		return debts[i].CreatedDate.Before(debts[j].CreatedDate)
	})
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (m *Memory) InsertPayment(_ context.Context, p ledger.Payment) (ledger.PaymentID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertPaymentLocked(p)
}

func (m *Memory) insertPaymentLocked(p ledger.Payment) (ledger.PaymentID, error) {
	m.nextPaymentID++
	p.ID = ledger.PaymentID(m.nextPaymentID)
	m.payments[p.ID] = p
	return p.ID, nil
}

func (m *Memory) PaymentsByDebt(_ context.Context, debtID ledger.DebtID) ([]ledger.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paymentsByDebtLocked(debtID), nil
}

func (m *Memory) paymentsByDebtLocked(debtID ledger.DebtID) []ledger.Payment {
	var payments []ledger.Payment
	for _, p := range m.payments {
		if p.DebtID == debtID {
			payments = append(payments, p)
		}
	}
	sortNewestFirst(payments)
	return payments
}

func (m *Memory) PaymentsByCustomer(_ context.Context, customerID ledger.CustomerID, limit int) ([]ledger.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paymentsByCustomerLocked(customerID, limit), nil
}

func (m *Memory) paymentsByCustomerLocked(customerID ledger.CustomerID, limit int) []ledger.Payment {
	var payments []ledger.Payment
	for _, p := range m.payments {
		if p.CustomerID == customerID {
			payments = append(payments, p)
		}
	}
	sortNewestFirst(payments)
	if limit > 0 && len(payments) > limit {
		payments = payments[:limit]
	}
	return payments
}

func (m *Memory) DeletePaymentsByDebt(_ context.Context, debtID ledger.DebtID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deletePaymentsLocked(debtID), nil
}

func (m *Memory) deletePaymentsLocked(debtID ledger.DebtID) int {
	deleted := 0
	for id, p := range m.payments {
		if p.DebtID == debtID {
			delete(m.payments, id)
			deleted++
		}
	}
	return deleted
}

func sortNewestFirst(payments []ledger.Payment) {
	sort.Slice(payments, func(i, j int) bool {
		if payments[i].PaymentDate.Equal(payments[j].PaymentDate) {
			return payments[i].ID > payments[j].ID
		}
		return payments[i].PaymentDate.After(payments[j].PaymentDate)
	})
}

// =============================================================================
// AGGREGATES
// =============================================================================

func (m *Memory) CustomerTotals(_ context.Context, customerID ledger.CustomerID) (ledger.CustomerSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.customerTotalsLocked(customerID), nil
}

func (m *Memory) customerTotalsLocked(customerID ledger.CustomerID) ledger.CustomerSummary {
	summary := ledger.CustomerSummary{
		CustomerID:     customerID,
		TotalDebt:      ledger.ZeroMoney(),
		TotalPaid:      ledger.ZeroMoney(),
		TotalRemaining: ledger.ZeroMoney(),
	}
	for _, d := range m.debts {
		if d.CustomerID != customerID {
			continue
		}
		summary.TotalDebt = summary.TotalDebt.Add(d.DebtAmount)
		summary.TotalPaid = summary.TotalPaid.Add(d.PaidAmount)
		summary.TotalRemaining = summary.TotalRemaining.Add(d.RemainingAmount)
		if d.Open() {
			summary.HasActiveDebt = true
		}
	}
	return summary
}

func (m *Memory) Stats(_ context.Context) (ledger.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statsLocked(), nil
}

func (m *Memory) statsLocked() ledger.Stats {
	stats := ledger.Stats{
		TotalDebtAmount:  ledger.ZeroMoney(),
		TotalPaidAmount:  ledger.ZeroMoney(),
		TotalOutstanding: ledger.ZeroMoney(),
	}
	for _, d := range m.debts {
		stats.TotalDebts++
		if d.Status == ledger.StatusActive {
			stats.ActiveDebts++
		}
		stats.TotalDebtAmount = stats.TotalDebtAmount.Add(d.DebtAmount)
		stats.TotalPaidAmount = stats.TotalPaidAmount.Add(d.PaidAmount)
		stats.TotalOutstanding = stats.TotalOutstanding.Add(d.RemainingAmount)
	}
	return stats
}
