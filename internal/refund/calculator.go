// Package refund computes and records refund requests for credit purchases.
//
// All money arithmetic floors, never rounds to nearest, so a refund can never
// exceed what the formula allows. Historical refunds must reproduce exactly.
// The ledger is never adjusted by a refund; approval happens elsewhere.
package refund

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lemonmilkceo/final-sub001/internal/apperr"
	"github.com/lemonmilkceo/final-sub001/internal/models"
)

const (
	// MinimumRefundAmount is the smallest refund, in currency units, that is paid out.
	MinimumRefundAmount = 1000
	// NoFeeDays is the no-fee window after payment, in whole days.
	NoFeeDays = 7
	// WindowMonths is how long after payment a refund may be requested.
	WindowMonths = 12
)

var (
	// FeeRate applies outside the no-fee window or once any credit was used.
	FeeRate = decimal.RequireFromString("0.10")

	ErrNothingToRefund        = apperr.New(apperr.KindValidation, "nothing_to_refund", "all credits from this payment were used")
	ErrBelowMinimumRefund     = apperr.New(apperr.KindValidation, "below_minimum_refund", "refund amount is below the minimum")
	ErrRefundWindowExpired    = apperr.New(apperr.KindValidation, "refund_window_expired", "refund window has expired")
	ErrDuplicateRefundRequest = apperr.New(apperr.KindConflict, "duplicate_refund_request", "an active refund request already exists for this payment")
	ErrPaymentNotRefundable   = apperr.New(apperr.KindConflict, "payment_not_refundable", "payment is not in a refundable state")
)

// Input is the payment facts plus the credits consumed since payment.
type Input struct {
	Amount       int64
	PaidAt       time.Time
	TotalCredits int
	UsedCredits  int
}

type Quote struct {
	TotalCredits     int             `json:"total_credits"`
	UsedCredits      int             `json:"used_credits"`
	RefundCredits    int             `json:"refund_credits"`
	OriginalAmount   int64           `json:"original_amount"`
	BaseRefundAmount int64           `json:"base_refund_amount"`
	DaysSincePayment int             `json:"days_since_payment"`
	FeeRate          decimal.Decimal `json:"fee_rate"`
	FeeAmount        int64           `json:"fee_amount"`
	RefundAmount     int64           `json:"refund_amount"`
	RequestType      string          `json:"request_type"`
}

// Calculate quotes a refund at now. Rejections are checked in order:
// nothing to refund, below the minimum, outside the window.
func Calculate(in Input, now time.Time) (Quote, error) {
	if in.TotalCredits <= 0 || in.Amount <= 0 {
		return Quote{}, apperr.Validation("payment has no refundable amount")
	}
	used := in.UsedCredits
	if used < 0 {
		used = 0
	}
	if used > in.TotalCredits {
		used = in.TotalCredits
	}

	q := Quote{
		TotalCredits:   in.TotalCredits,
		UsedCredits:    used,
		RefundCredits:  in.TotalCredits - used,
		OriginalAmount: in.Amount,
	}
	if q.RefundCredits <= 0 {
		return Quote{}, ErrNothingToRefund
	}

	// floor(refundCredits / totalCredits * amount), exact in integers.
	q.BaseRefundAmount = int64(q.RefundCredits) * in.Amount / int64(in.TotalCredits)

	q.DaysSincePayment = int(now.Sub(in.PaidAt) / (24 * time.Hour))
	if q.DaysSincePayment <= NoFeeDays && used == 0 {
		q.FeeRate = decimal.Zero
	} else {
		q.FeeRate = FeeRate
	}
	q.FeeAmount = decimal.NewFromInt(q.BaseRefundAmount).Mul(q.FeeRate).Floor().IntPart()
	q.RefundAmount = q.BaseRefundAmount - q.FeeAmount

	if q.RefundAmount < MinimumRefundAmount {
		return Quote{}, ErrBelowMinimumRefund.
			WithMeta("refund_amount", q.RefundAmount).
			WithMeta("minimum", MinimumRefundAmount)
	}
	if !now.Before(in.PaidAt.AddDate(0, WindowMonths, 0)) {
		return Quote{}, ErrRefundWindowExpired.WithMeta("paid_at", in.PaidAt.UTC().Format(time.RFC3339))
	}

	q.RequestType = models.RefundTypePartial
	if used == 0 {
		q.RequestType = models.RefundTypeFull
	}
	return q, nil
}

// UsedCredits sums the consumption rows created at or after paidAt, capped at
// total. Attribution is by time: consumption after the payment counts against
// it even if older credits were still available.
func UsedCredits(history []*models.CreditTransaction, paidAt time.Time, total int) int {
	used := 0
	for _, t := range history {
		if t.Amount < 0 && !t.CreatedAt.Before(paidAt) {
			used += -t.Amount
		}
	}
	if used > total {
		return total
	}
	return used
}
