package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Refund request status values.
const (
	RefundStatusPending   = "pending"
	RefundStatusApproved  = "approved"
	RefundStatusRejected  = "rejected"
	RefundStatusCompleted = "completed"
	RefundStatusCancelled = "cancelled"
)

// Refund request types; derived from usage, never chosen by the user.
const (
	RefundTypeFull    = "full"
	RefundTypePartial = "partial"
)

// RefundActive reports whether status blocks a new request for the same payment.
func RefundActive(status string) bool {
	return status == RefundStatusPending || status == RefundStatusApproved || status == RefundStatusCompleted
}

type RefundRequest struct {
	ID               uuid.UUID       `json:"id"`
	UserID           uuid.UUID       `json:"user_id"`
	PaymentID        uuid.UUID       `json:"payment_id"`
	RequestType      string          `json:"request_type"`
	Reason           string          `json:"reason"`
	TotalCredits     int             `json:"total_credits"`
	UsedCredits      int             `json:"used_credits"`
	RefundCredits    int             `json:"refund_credits"`
	OriginalAmount   int64           `json:"original_amount"`
	BaseRefundAmount int64           `json:"base_refund_amount"`
	FeeRate          decimal.Decimal `json:"fee_rate"`
	FeeAmount        int64           `json:"fee_amount"`
	RefundAmount     int64           `json:"refund_amount"`
	Status           string          `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
}
