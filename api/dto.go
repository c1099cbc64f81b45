/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY REPRESENTATION:
  Amounts cross the wire as strings with two fractional digits ("120.50").
  Floats are never used for money; the parse path goes through
  shopspring/decimal.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/types.go: Domain model these map from
*/
package api

import (
	"time"

	"github.com/warp/debt-ledger/ledger"
)

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// DebtDTO represents a debt in API responses.
type DebtDTO struct {
	ID              int64  `json:"id"`
	CustomerID      int64  `json:"customer_id"`
	OrderID         int64  `json:"order_id,omitempty"`
	DebtAmount      string `json:"debt_amount"`
	PaidAmount      string `json:"paid_amount"`
	RemainingAmount string `json:"remaining_amount"`
	Status          string `json:"status"`
	CreatedDate     string `json:"created_date"`
	UpdatedDate     string `json:"updated_date"`
}

func toDebtDTO(d ledger.Debt) DebtDTO {
	return DebtDTO{
		ID:              int64(d.ID),
		CustomerID:      int64(d.CustomerID),
		OrderID:         int64(d.OrderID),
		DebtAmount:      d.DebtAmount.String(),
		PaidAmount:      d.PaidAmount.String(),
		RemainingAmount: d.RemainingAmount.String(),
		Status:          string(d.Status),
		CreatedDate:     d.CreatedDate.Format(time.RFC3339),
		UpdatedDate:     d.UpdatedDate.Format(time.RFC3339),
	}
}

func toDebtDTOs(debts []ledger.Debt) []DebtDTO {
	dtos := make([]DebtDTO, len(debts))
	for i, d := range debts {
		dtos[i] = toDebtDTO(d)
	}
	return dtos
}

// PaymentDTO represents a recorded payment in API responses.
type PaymentDTO struct {
	ID            int64  `json:"id"`
	DebtID        int64  `json:"debt_id"`
	CustomerID    int64  `json:"customer_id"`
	PaymentAmount string `json:"payment_amount"`
	PaymentType   string `json:"payment_type"`
	PaymentNote   string `json:"payment_note,omitempty"`
	PaymentDate   string `json:"payment_date"`
	AddedBy       string `json:"added_by,omitempty"`
}

func toPaymentDTOs(payments []ledger.Payment) []PaymentDTO {
	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = PaymentDTO{
			ID:            int64(p.ID),
			DebtID:        int64(p.DebtID),
			CustomerID:    int64(p.CustomerID),
			PaymentAmount: p.PaymentAmount.String(),
			PaymentType:   string(p.PaymentType),
			PaymentNote:   p.PaymentNote,
			PaymentDate:   p.PaymentDate.Format(time.RFC3339),
			AddedBy:       p.AddedBy,
		}
	}
	return dtos
}

// CustomerSummaryDTO is the aggregate position of one customer.
type CustomerSummaryDTO struct {
	CustomerID     int64  `json:"customer_id"`
	TotalDebt      string `json:"total_debt"`
	TotalPaid      string `json:"total_paid"`
	TotalRemaining string `json:"total_remaining"`
	HasActiveDebt  bool   `json:"has_active_debt"`
}

// StatsDTO is the ledger-wide dashboard aggregate.
type StatsDTO struct {
	TotalDebts       int    `json:"total_debts"`
	ActiveDebts      int    `json:"active_debts"`
	TotalDebtAmount  string `json:"total_debt_amount"`
	TotalPaidAmount  string `json:"total_paid_amount"`
	TotalOutstanding string `json:"total_outstanding"`
}

// CancelOutcomeDTO reports what an order cancellation did to the ledger.
type CancelOutcomeDTO struct {
	Found      bool   `json:"found"`
	Deleted    bool   `json:"deleted"`
	DebtID     int64  `json:"debt_id,omitempty"`
	PaidAmount string `json:"paid_amount,omitempty"`
}

// ResetResponse reports what a full ledger reset removed.
type ResetResponse struct {
	ManualDebtsDeleted int `json:"manual_debts_deleted"`
	OrderDebtsReset    int `json:"order_debts_reset"`
	PaymentsDeleted    int `json:"payments_deleted"`
}

// PurgeResponse reports how many old paid debts were removed.
type PurgeResponse struct {
	Purged int `json:"purged"`
}

// EligibilityDTO is the checkout availability answer.
type EligibilityDTO struct {
	Eligible bool   `json:"eligible"`
	Limit    string `json:"limit,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// PaymentRequest is the body of POST /api/debts/{id}/payments.
type PaymentRequest struct {
	Amount      string `json:"amount"`
	PaymentType string `json:"payment_type,omitempty"`
	Note        string `json:"note,omitempty"`
	AddedBy     string `json:"added_by,omitempty"`
}

// AdjustmentRequest is the body of POST /api/admin/adjustments.
type AdjustmentRequest struct {
	CustomerID int64  `json:"customer_id"`
	Amount     string `json:"amount"`
	Direction  string `json:"direction"`
	Reason     string `json:"reason"`
	AddedBy    string `json:"added_by,omitempty"`
}

// PlaceOrderRequest is the body of POST /api/orders.
type PlaceOrderRequest struct {
	OrderID    int64  `json:"order_id"`
	CustomerID int64  `json:"customer_id"`
	Total      string `json:"total"`
}

// EligibilityRequest is the body of POST /api/orders/eligible.
type EligibilityRequest struct {
	CustomerID int64  `json:"customer_id"`
	Total      string `json:"total"`
}

// PurgeRequest is the body of POST /api/admin/purge.
type PurgeRequest struct {
	OlderThanDays int `json:"older_than_days"`
}
