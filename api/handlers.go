/*
handlers.go - HTTP API handlers for the debt ledger

PURPOSE:
  Exposes the debt ledger via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Debts:
    GET    /api/debts                     List debts (filters, sort, paging)
    GET    /api/debts/{id}                Debt detail
    GET    /api/debts/{id}/payments       Payment history for a debt
    POST   /api/debts/{id}/payments       Apply a payment

  Customers:
    GET    /api/customers/{id}/summary    Aggregate position
    GET    /api/customers/{id}/debts      Customer's debts
    GET    /api/customers/{id}/payments   Customer's recent payments

  Admin:
    POST   /api/admin/adjustments         Manual increase/decrease
    GET    /api/admin/stats               Ledger totals
    POST   /api/admin/reset               Wipe and rebuild ledger state
    POST   /api/admin/purge               Remove old paid debts

  Orders (storefront webhooks):
    POST   /api/orders                    Admit an order, create its debt
    POST   /api/orders/eligible           Checkout eligibility check
    POST   /api/orders/{id}/cancel        Unwind a cancelled order

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (engine, intake)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (debt limit, over-payment, over-reduction)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.
  Put this behind the storefront's admin auth layer in deployment.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/debt-ledger/ledger"
	"github.com/warp/debt-ledger/orders"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers. Mutations go through the
// engine; reads go straight to the store.
type Handler struct {
	Engine *ledger.Engine
	Intake *orders.Intake
	Store  ledger.TxStore
}

// NewHandler creates a new handler over the engine and its store.
func NewHandler(engine *ledger.Engine, intake *orders.Intake, store ledger.TxStore) *Handler {
	return &Handler{
		Engine: engine,
		Intake: intake,
		Store:  store,
	}
}

// =============================================================================
// DEBT HANDLERS
// =============================================================================

// ListDebts returns debts matching the query filters.
// GET /api/debts?status=active&origin=order&sort=remaining&dir=desc&limit=50&offset=0
func (h *Handler) ListDebts(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}

	debts, err := h.Store.ListDebts(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list debts", err)
		return
	}
	writeJSON(w, http.StatusOK, toDebtDTOs(debts))
}

// GetDebt returns a single debt.
func (h *Handler) GetDebt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	debt, err := h.Store.GetDebt(r.Context(), ledger.DebtID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get debt", err)
		return
	}
	if debt == nil {
		writeError(w, http.StatusNotFound, "Debt not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toDebtDTO(*debt))
}

// GetDebtPayments returns the payment history of a debt, newest first.
func (h *Handler) GetDebtPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	debt, err := h.Store.GetDebt(r.Context(), ledger.DebtID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get debt", err)
		return
	}
	if debt == nil {
		writeError(w, http.StatusNotFound, "Debt not found", nil)
		return
	}

	payments, err := h.Store.PaymentsByDebt(r.Context(), ledger.DebtID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get payments", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTOs(payments))
}

// ApplyPayment records a payment against a debt.
// POST /api/debts/{id}/payments
func (h *Handler) ApplyPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := ledger.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	paymentID, err := h.Engine.ApplyPayment(r.Context(), ledger.DebtID(id), amount,
		ledger.PaymentType(req.PaymentType), req.Note, req.AddedBy)
	if err != nil {
		writeLedgerError(w, "Failed to apply payment", err)
		return
	}

	debt, err := h.Store.GetDebt(r.Context(), ledger.DebtID(id))
	if err != nil || debt == nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload debt", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"payment_id": int64(paymentID),
		"debt":       toDebtDTO(*debt),
	})
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

// GetCustomerSummary returns a customer's aggregate position.
func (h *Handler) GetCustomerSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	summary, err := h.Engine.GetCustomerSummary(r.Context(), ledger.CustomerID(id))
	if err != nil {
		writeLedgerError(w, "Failed to get summary", err)
		return
	}

	writeJSON(w, http.StatusOK, CustomerSummaryDTO{
		CustomerID:     int64(summary.CustomerID),
		TotalDebt:      summary.TotalDebt.String(),
		TotalPaid:      summary.TotalPaid.String(),
		TotalRemaining: summary.TotalRemaining.String(),
		HasActiveDebt:  summary.HasActiveDebt,
	})
}

// GetCustomerDebts returns all of a customer's debts, oldest first.
func (h *Handler) GetCustomerDebts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	debts, err := h.Store.DebtsByCustomer(r.Context(), ledger.CustomerID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list debts", err)
		return
	}
	writeJSON(w, http.StatusOK, toDebtDTOs(debts))
}

// GetCustomerPayments returns a customer's recent payments across all debts.
// GET /api/customers/{id}/payments?limit=20
func (h *Handler) GetCustomerPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		limit, _ = strconv.Atoi(s)
	}

	payments, err := h.Store.PaymentsByCustomer(r.Context(), ledger.CustomerID(id), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTOs(payments))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// CreateAdjustment applies a manual balance adjustment.
// POST /api/admin/adjustments
func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req AdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := ledger.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	debtID, err := h.Engine.ApplyManualAdjustment(r.Context(),
		ledger.CustomerID(req.CustomerID), amount, req.Reason,
		ledger.AdjustmentDirection(req.Direction), req.AddedBy)
	if err != nil {
		writeLedgerError(w, "Failed to apply adjustment", err)
		return
	}

	debt, err := h.Store.GetDebt(r.Context(), debtID)
	if err != nil || debt == nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload debt", err)
		return
	}
	writeJSON(w, http.StatusCreated, toDebtDTO(*debt))
}

// GetStats returns the ledger-wide totals for the admin dashboard.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Engine.Stats(r.Context())
	if err != nil {
		writeLedgerError(w, "Failed to get stats", err)
		return
	}

	writeJSON(w, http.StatusOK, StatsDTO{
		TotalDebts:       stats.TotalDebts,
		ActiveDebts:      stats.ActiveDebts,
		TotalDebtAmount:  stats.TotalDebtAmount.String(),
		TotalPaidAmount:  stats.TotalPaidAmount.String(),
		TotalOutstanding: stats.TotalOutstanding.String(),
	})
}

// ResetLedger wipes manual debts and payments and resets order debts.
// Destructive; intended for recovering from corrupted data.
// POST /api/admin/reset
func (h *Handler) ResetLedger(w http.ResponseWriter, r *http.Request) {
	counts, err := h.Engine.ResetAllLedgerData(r.Context())
	if err != nil {
		writeLedgerError(w, "Failed to reset ledger", err)
		return
	}
	writeJSON(w, http.StatusOK, ResetResponse{
		ManualDebtsDeleted: counts.ManualDebtsDeleted,
		OrderDebtsReset:    counts.OrderDebtsReset,
		PaymentsDeleted:    counts.PaymentsDeleted,
	})
}

const defaultPurgeDays = 365

// PurgePaidDebts removes fully-paid debts older than the requested age.
// POST /api/admin/purge
func (h *Handler) PurgePaidDebts(w http.ResponseWriter, r *http.Request) {
	var req PurgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.OlderThanDays <= 0 {
		req.OlderThanDays = defaultPurgeDays
	}

	purged, err := h.Engine.PurgePaidDebts(r.Context(), time.Duration(req.OlderThanDays)*24*time.Hour)
	if err != nil {
		writeLedgerError(w, "Failed to purge debts", err)
		return
	}
	writeJSON(w, http.StatusOK, PurgeResponse{Purged: purged})
}

// =============================================================================
// ORDER WEBHOOK HANDLERS
// =============================================================================

// PlaceOrder admits an order paid with the debt method and creates its debt.
// POST /api/orders
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	total, err := ledger.ParseMoney(req.Total)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid total", err)
		return
	}

	debtID, err := h.Intake.OrderPlaced(r.Context(),
		ledger.OrderID(req.OrderID), ledger.CustomerID(req.CustomerID), total)
	if err != nil {
		writeLedgerError(w, "Order not admitted", err)
		return
	}

	debt, err := h.Store.GetDebt(r.Context(), debtID)
	if err != nil || debt == nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload debt", err)
		return
	}
	writeJSON(w, http.StatusCreated, toDebtDTO(*debt))
}

// CheckEligibility answers the checkout availability question without
// creating anything.
// POST /api/orders/eligible
func (h *Handler) CheckEligibility(w http.ResponseWriter, r *http.Request) {
	var req EligibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	total, err := ledger.ParseMoney(req.Total)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid total", err)
		return
	}

	limitErr := h.Intake.CheckDebtLimit(r.Context(), ledger.CustomerID(req.CustomerID), total)
	if limitErr != nil && !ledger.IsClientError(limitErr) && !ledger.IsNotFound(limitErr) {
		writeError(w, http.StatusInternalServerError, "Failed to check eligibility", limitErr)
		return
	}

	resp := EligibilityDTO{Eligible: limitErr == nil}
	if h.Intake.Limit().IsPositive() {
		resp.Limit = h.Intake.Limit().String()
	}
	if limitErr != nil {
		resp.Reason = limitErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// CancelOrder unwinds the debt of a cancelled order.
// POST /api/orders/{id}/cancel
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	outcome, err := h.Intake.OrderCancelled(r.Context(), ledger.OrderID(id))
	if err != nil {
		writeLedgerError(w, "Failed to cancel order debt", err)
		return
	}

	dto := CancelOutcomeDTO{
		Found:   outcome.Found,
		Deleted: outcome.Deleted,
		DebtID:  int64(outcome.DebtID),
	}
	if outcome.Found {
		dto.PaidAmount = outcome.PaidAmount.String()
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// HELPERS
// =============================================================================

func filterFromQuery(r *http.Request) (ledger.DebtFilter, error) {
	q := r.URL.Query()
	var f ledger.DebtFilter

	switch q.Get("status") {
	case "":
	case string(ledger.StatusActive):
		f.Status = ledger.StatusActive
	case string(ledger.StatusPaid):
		f.Status = ledger.StatusPaid
	case string(ledger.StatusCancelled):
		f.Status = ledger.StatusCancelled
	default:
		return f, errors.New("unknown status")
	}

	switch q.Get("origin") {
	case "":
	case string(ledger.OriginOrder):
		f.Origin = ledger.OriginOrder
	case string(ledger.OriginManual):
		f.Origin = ledger.OriginManual
	default:
		return f, errors.New("unknown origin")
	}

	switch q.Get("sort") {
	case "", "created":
		f.SortBy = ledger.SortByCreated
	case "remaining":
		f.SortBy = ledger.SortByRemaining
	default:
		return f, errors.New("unknown sort")
	}
	f.Desc = q.Get("dir") == "desc"

	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return f, errors.New("limit must be an integer")
		}
		f.Limit = n
	}
	if s := q.Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return f, errors.New("offset must be an integer")
		}
		f.Offset = n
	}
	return f, nil
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return 0, false
	}
	return id, true
}

// writeLedgerError maps domain errors to HTTP status codes.
func writeLedgerError(w http.ResponseWriter, message string, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, ledger.ErrDebtLimitExceeded),
		errors.Is(err, ledger.ErrAmountExceedsBalance),
		errors.Is(err, ledger.ErrNoOutstandingDebt):
		writeError(w, http.StatusConflict, message, err)
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
