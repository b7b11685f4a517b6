package models

import (
	"time"

	"github.com/google/uuid"
)

// Credit types.
const (
	CreditTypeContract = "contract"
	CreditTypeAIReview = "ai_review"
)

// ValidCreditType reports whether t is a known credit type.
func ValidCreditType(t string) bool {
	return t == CreditTypeContract || t == CreditTypeAIReview
}

// CreditTransaction is one append-only ledger row. Positive amounts are issuance,
// negative amounts are consumption.
type CreditTransaction struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	CreditType  string    `json:"credit_type"`
	Amount      int       `json:"amount"`
	ReferenceID string    `json:"reference_id"`
	CreatedAt   time.Time `json:"created_at"`
}
