package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/debt-ledger/api"
	"github.com/warp/debt-ledger/ledger"
	"github.com/warp/debt-ledger/orders"
	"github.com/warp/debt-ledger/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T, maxDebt float64) *httptest.Server {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	engine := ledger.NewEngine(store, nil, nil)
	intake := orders.NewIntake(engine, ledger.NewMoney(maxDebt), nil)
	handler := api.NewHandler(engine, intake, store)

	server := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(server.Close)
	return server
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func placeOrder(t *testing.T, server *httptest.Server, orderID, customerID int64, total string) api.DebtDTO {
	t.Helper()
	resp := postJSON(t, server.URL+"/api/orders", api.PlaceOrderRequest{
		OrderID:    orderID,
		CustomerID: customerID,
		Total:      total,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[api.DebtDTO](t, resp)
}

// =============================================================================
// ORDER WEBHOOKS
// =============================================================================

func TestAPI_PlaceOrder(t *testing.T) {
	server := newTestServer(t, 0)

	debt := placeOrder(t, server, 1001, 7, "120.50")

	assert.Equal(t, int64(7), debt.CustomerID)
	assert.Equal(t, int64(1001), debt.OrderID)
	assert.Equal(t, "120.50", debt.DebtAmount)
	assert.Equal(t, "0.00", debt.PaidAmount)
	assert.Equal(t, "120.50", debt.RemainingAmount)
	assert.Equal(t, "active", debt.Status)
}

func TestAPI_PlaceOrder_DuplicateWebhook(t *testing.T) {
	server := newTestServer(t, 0)

	first := placeOrder(t, server, 1002, 7, "50.00")
	second := placeOrder(t, server, 1002, 7, "50.00")
	assert.Equal(t, first.ID, second.ID)
}

func TestAPI_PlaceOrder_OverLimitConflict(t *testing.T) {
	server := newTestServer(t, 100)

	placeOrder(t, server, 1003, 8, "80.00")

	resp := postJSON(t, server.URL+"/api/orders", api.PlaceOrderRequest{
		OrderID:    1004,
		CustomerID: 8,
		Total:      "30.00",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decode[api.ErrorResponse](t, resp)
	assert.NotEmpty(t, body.Details)
}

func TestAPI_Eligibility(t *testing.T) {
	server := newTestServer(t, 100)

	placeOrder(t, server, 1005, 9, "80.00")

	resp := postJSON(t, server.URL+"/api/orders/eligible", api.EligibilityRequest{
		CustomerID: 9,
		Total:      "30.00",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[api.EligibilityDTO](t, resp)
	assert.False(t, body.Eligible)
	assert.Equal(t, "100.00", body.Limit)
	assert.NotEmpty(t, body.Reason)

	resp = postJSON(t, server.URL+"/api/orders/eligible", api.EligibilityRequest{
		CustomerID: 9,
		Total:      "20.00",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decode[api.EligibilityDTO](t, resp)
	assert.True(t, body.Eligible)
}

func TestAPI_CancelOrder(t *testing.T) {
	server := newTestServer(t, 0)

	debt := placeOrder(t, server, 1006, 10, "90.00")

	resp := postJSON(t, server.URL+"/api/orders/1006/cancel", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	outcome := decode[api.CancelOutcomeDTO](t, resp)
	assert.True(t, outcome.Found)
	assert.True(t, outcome.Deleted)
	assert.Equal(t, debt.ID, outcome.DebtID)

	// Debt is gone
	getResp, err := http.Get(fmt.Sprintf("%s/api/debts/%d", server.URL, debt.ID))
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, getResp.StatusCode)
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestAPI_ApplyPayment(t *testing.T) {
	server := newTestServer(t, 0)

	debt := placeOrder(t, server, 1101, 11, "100.00")

	resp := postJSON(t, fmt.Sprintf("%s/api/debts/%d/payments", server.URL, debt.ID), api.PaymentRequest{
		Amount:      "40.00",
		PaymentType: "cash",
		Note:        "counter payment",
		AddedBy:     "clerk",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		PaymentID int64       `json:"payment_id"`
		Debt      api.DebtDTO `json:"debt"`
	}
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotZero(t, body.PaymentID)
	assert.Equal(t, "40.00", body.Debt.PaidAmount)
	assert.Equal(t, "60.00", body.Debt.RemainingAmount)
	assert.Equal(t, "active", body.Debt.Status)
}

func TestAPI_ApplyPayment_OverPayment(t *testing.T) {
	server := newTestServer(t, 0)

	debt := placeOrder(t, server, 1102, 11, "100.00")

	resp := postJSON(t, fmt.Sprintf("%s/api/debts/%d/payments", server.URL, debt.ID), api.PaymentRequest{
		Amount: "100.01",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_ApplyPayment_MissingDebt(t *testing.T) {
	server := newTestServer(t, 0)

	resp := postJSON(t, server.URL+"/api/debts/999/payments", api.PaymentRequest{Amount: "10.00"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_DebtPaymentHistory(t *testing.T) {
	server := newTestServer(t, 0)

	debt := placeOrder(t, server, 1103, 12, "100.00")
	for _, amt := range []string{"25.00", "10.00"} {
		resp := postJSON(t, fmt.Sprintf("%s/api/debts/%d/payments", server.URL, debt.ID), api.PaymentRequest{Amount: amt})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	resp, err := http.Get(fmt.Sprintf("%s/api/debts/%d/payments", server.URL, debt.ID))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	payments := decode[[]api.PaymentDTO](t, resp)
	require.Len(t, payments, 2)
	assert.Equal(t, "cash", payments[0].PaymentType)
}

// =============================================================================
// CUSTOMER VIEWS
// =============================================================================

func TestAPI_CustomerSummaryAndDebts(t *testing.T) {
	server := newTestServer(t, 0)

	debt := placeOrder(t, server, 1201, 13, "100.00")
	placeOrder(t, server, 1202, 13, "50.00")

	resp := postJSON(t, fmt.Sprintf("%s/api/debts/%d/payments", server.URL, debt.ID), api.PaymentRequest{Amount: "30.00"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	sumResp, err := http.Get(server.URL + "/api/customers/13/summary")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, sumResp.StatusCode)
	summary := decode[api.CustomerSummaryDTO](t, sumResp)
	assert.Equal(t, "150.00", summary.TotalDebt)
	assert.Equal(t, "30.00", summary.TotalPaid)
	assert.Equal(t, "120.00", summary.TotalRemaining)
	assert.True(t, summary.HasActiveDebt)

	debtsResp, err := http.Get(server.URL + "/api/customers/13/debts")
	require.NoError(t, err)
	debts := decode[[]api.DebtDTO](t, debtsResp)
	assert.Len(t, debts, 2)

	payResp, err := http.Get(server.URL + "/api/customers/13/payments?limit=5")
	require.NoError(t, err)
	payments := decode[[]api.PaymentDTO](t, payResp)
	assert.Len(t, payments, 1)
}

// =============================================================================
// ADMIN
// =============================================================================

func TestAPI_ListDebtsWithFilters(t *testing.T) {
	server := newTestServer(t, 0)

	debt := placeOrder(t, server, 1301, 14, "100.00")
	placeOrder(t, server, 1302, 14, "50.00")

	// Settle one
	resp := postJSON(t, fmt.Sprintf("%s/api/debts/%d/payments", server.URL, debt.ID), api.PaymentRequest{Amount: "100.00"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	listResp, err := http.Get(server.URL + "/api/debts?status=paid")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, listResp.StatusCode)
	paid := decode[[]api.DebtDTO](t, listResp)
	require.Len(t, paid, 1)
	assert.Equal(t, debt.ID, paid[0].ID)

	badResp, err := http.Get(server.URL + "/api/debts?status=bogus")
	require.NoError(t, err)
	defer badResp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, badResp.StatusCode)
}

func TestAPI_Adjustments(t *testing.T) {
	server := newTestServer(t, 0)

	// Increase creates a manual debt
	resp := postJSON(t, server.URL+"/api/admin/adjustments", api.AdjustmentRequest{
		CustomerID: 15,
		Amount:     "30.00",
		Direction:  "increase",
		Reason:     "opening balance",
		AddedBy:    "admin",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	debt := decode[api.DebtDTO](t, resp)
	assert.Zero(t, debt.OrderID)
	assert.Equal(t, "30.00", debt.RemainingAmount)

	// Decrease settles it
	resp = postJSON(t, server.URL+"/api/admin/adjustments", api.AdjustmentRequest{
		CustomerID: 15,
		Amount:     "30.00",
		Direction:  "decrease",
		Reason:     "goodwill",
		AddedBy:    "admin",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	settled := decode[api.DebtDTO](t, resp)
	assert.Equal(t, "paid", settled.Status)

	// Missing reason is a validation error
	resp = postJSON(t, server.URL+"/api/admin/adjustments", api.AdjustmentRequest{
		CustomerID: 15,
		Amount:     "10.00",
		Direction:  "increase",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_Adjustments_DecreaseOverBalance(t *testing.T) {
	server := newTestServer(t, 0)

	placeOrder(t, server, 1401, 16, "50.00")

	resp := postJSON(t, server.URL+"/api/admin/adjustments", api.AdjustmentRequest{
		CustomerID: 16,
		Amount:     "80.00",
		Direction:  "decrease",
		Reason:     "too much",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_StatsAndReset(t *testing.T) {
	server := newTestServer(t, 0)

	debt := placeOrder(t, server, 1501, 17, "100.00")
	resp := postJSON(t, fmt.Sprintf("%s/api/debts/%d/payments", server.URL, debt.ID), api.PaymentRequest{Amount: "100.00"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	statsResp, err := http.Get(server.URL + "/api/admin/stats")
	require.NoError(t, err)
	stats := decode[api.StatsDTO](t, statsResp)
	assert.Equal(t, 1, stats.TotalDebts)
	assert.Equal(t, 0, stats.ActiveDebts)
	assert.Equal(t, "100.00", stats.TotalPaidAmount)

	resetResp := postJSON(t, server.URL+"/api/admin/reset", nil)
	require.Equal(t, http.StatusOK, resetResp.StatusCode)
	reset := decode[api.ResetResponse](t, resetResp)
	assert.Equal(t, 1, reset.OrderDebtsReset)
	assert.Equal(t, 1, reset.PaymentsDeleted)

	// The order debt is back to pristine
	getResp, err := http.Get(fmt.Sprintf("%s/api/debts/%d", server.URL, debt.ID))
	require.NoError(t, err)
	pristine := decode[api.DebtDTO](t, getResp)
	assert.Equal(t, "0.00", pristine.PaidAmount)
	assert.Equal(t, "active", pristine.Status)
}

func TestAPI_Purge(t *testing.T) {
	server := newTestServer(t, 0)

	debt := placeOrder(t, server, 1601, 18, "40.00")
	resp := postJSON(t, fmt.Sprintf("%s/api/debts/%d/payments", server.URL, debt.ID), api.PaymentRequest{Amount: "40.00"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// Default retention: the freshly-paid debt stays
	purgeResp := postJSON(t, server.URL+"/api/admin/purge", api.PurgeRequest{})
	require.Equal(t, http.StatusOK, purgeResp.StatusCode)
	purge := decode[api.PurgeResponse](t, purgeResp)
	assert.Zero(t, purge.Purged)
}
