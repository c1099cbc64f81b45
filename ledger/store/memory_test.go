package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/debt-ledger/ledger"
	"github.com/warp/debt-ledger/ledger/store"
)

func activeDebt(customer ledger.CustomerID, order ledger.OrderID, amount float64, created time.Time) ledger.Debt {
	m := ledger.NewMoney(amount)
	return ledger.Debt{
		CustomerID:      customer,
		OrderID:         order,
		DebtAmount:      m,
		PaidAmount:      ledger.ZeroMoney(),
		RemainingAmount: m,
		Status:          ledger.StatusActive,
		CreatedDate:     created,
		UpdatedDate:     created,
	}
}

func TestMemory_InsertGetRoundTrip(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	id, err := m.InsertDebt(ctx, activeDebt(1, 100, 55.25, time.Now()))
	require.NoError(t, err)

	got, err := m.GetDebt(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "55.25", got.DebtAmount.String())

	missing, err := m.GetDebt(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemory_DuplicateOrderRejected(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	_, err := m.InsertDebt(ctx, activeDebt(1, 200, 10, time.Now()))
	require.NoError(t, err)
	_, err = m.InsertDebt(ctx, activeDebt(1, 200, 10, time.Now()))
	assert.ErrorIs(t, err, ledger.ErrDuplicateOrder)

	// Order id 0 is exempt
	_, err = m.InsertDebt(ctx, activeDebt(1, ledger.NoOrder, 10, time.Now()))
	require.NoError(t, err)
	_, err = m.InsertDebt(ctx, activeDebt(1, ledger.NoOrder, 10, time.Now()))
	require.NoError(t, err)
}

func TestMemory_WithTxRollsBackEverything(t *testing.T) {
	// GIVEN: A committed debt
	// WHEN: A transaction modifies it, inserts another, and then fails
	// THEN: Neither change survives

	m := store.NewMemory()
	ctx := context.Background()
	boom := errors.New("boom")

	id, err := m.InsertDebt(ctx, activeDebt(2, 300, 40, time.Now()))
	require.NoError(t, err)

	err = m.WithTx(ctx, func(s ledger.Store) error {
		d, err := s.GetDebt(ctx, id)
		if err != nil {
			return err
		}
		d.PaidAmount = ledger.NewMoney(40)
		d.RemainingAmount = ledger.ZeroMoney()
		d.Status = ledger.StatusPaid
		if err := s.UpdateDebt(ctx, *d); err != nil {
			return err
		}
		if _, err := s.InsertDebt(ctx, activeDebt(2, 301, 99, time.Now())); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := m.GetDebt(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusActive, got.Status)
	assert.True(t, got.PaidAmount.IsZero())

	extra, err := m.GetDebtByOrder(ctx, 301)
	require.NoError(t, err)
	assert.Nil(t, extra)
}

func TestMemory_OpenDebtsOrderingAndExclusions(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	base := time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)

	// Inserted newest-first to prove ordering comes from created date
	newer, err := m.InsertDebt(ctx, activeDebt(3, 401, 20, base.Add(time.Hour)))
	require.NoError(t, err)
	older, err := m.InsertDebt(ctx, activeDebt(3, 402, 30, base))
	require.NoError(t, err)

	settled := activeDebt(3, 403, 10, base.Add(2*time.Hour))
	settled.PaidAmount = ledger.NewMoney(10)
	settled.RemainingAmount = ledger.ZeroMoney()
	settled.Status = ledger.StatusPaid
	_, err = m.InsertDebt(ctx, settled)
	require.NoError(t, err)

	open, err := m.OpenDebtsOldestFirst(ctx, 3)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, older, open[0].ID)
	assert.Equal(t, newer, open[1].ID)
}

func TestMemory_ListDebtsFilterAndPage(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	base := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := m.InsertDebt(ctx, activeDebt(4, ledger.OrderID(500+i), float64(10*(i+1)), base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}
	_, err := m.InsertDebt(ctx, activeDebt(4, ledger.NoOrder, 7, base))
	require.NoError(t, err)

	manual, err := m.ListDebts(ctx, ledger.DebtFilter{Origin: ledger.OriginManual})
	require.NoError(t, err)
	assert.Len(t, manual, 1)

	desc, err := m.ListDebts(ctx, ledger.DebtFilter{
		Origin: ledger.OriginOrder,
		SortBy: ledger.SortByRemaining,
		Desc:   true,
		Limit:  2,
	})
	require.NoError(t, err)
	require.Len(t, desc, 2)
	assert.Equal(t, "50.00", desc[0].RemainingAmount.String())
	assert.Equal(t, "40.00", desc[1].RemainingAmount.String())

	page, err := m.ListDebts(ctx, ledger.DebtFilter{Origin: ledger.OriginOrder, Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestMemory_PaymentsNewestFirstWithLimit(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	base := time.Now()

	debtID, err := m.InsertDebt(ctx, activeDebt(5, 600, 100, base))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := m.InsertPayment(ctx, ledger.Payment{
			DebtID:        debtID,
			CustomerID:    5,
			PaymentAmount: ledger.NewMoney(float64(i + 1)),
			PaymentType:   ledger.PayCash,
			PaymentDate:   base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	payments, err := m.PaymentsByCustomer(ctx, 5, 2)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, "3.00", payments[0].PaymentAmount.String())
	assert.Equal(t, "2.00", payments[1].PaymentAmount.String())
}
