package models

import (
	"time"

	"github.com/google/uuid"
)

// Payment status values.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
	PaymentStatusCancelled = "cancelled"
)

type Payment struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	OrderID         string     `json:"order_id"`
	Amount          int64      `json:"amount"`
	CreditsContract int        `json:"credits_contract"`
	CreditsAIReview int        `json:"credits_ai_review"`
	Status          string     `json:"status"`
	PaymentKey      *string    `json:"-"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Credits returns the credits granted per type, skipping zero grants.
func (p *Payment) Credits() map[string]int {
	out := make(map[string]int, 2)
	if p.CreditsContract > 0 {
		out[CreditTypeContract] = p.CreditsContract
	}
	if p.CreditsAIReview > 0 {
		out[CreditTypeAIReview] = p.CreditsAIReview
	}
	return out
}

// TotalCredits is the sum of all granted credits.
func (p *Payment) TotalCredits() int {
	return p.CreditsContract + p.CreditsAIReview
}
