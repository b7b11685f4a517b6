package refund

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lemonmilkceo/final-sub001/internal/apperr"
	"github.com/lemonmilkceo/final-sub001/internal/auth"
	"github.com/lemonmilkceo/final-sub001/internal/metrics"
	"github.com/lemonmilkceo/final-sub001/internal/models"
)

// Store persists refund requests. Create must return ErrDuplicateRefundRequest
// when another active request for the payment won a race.
type Store interface {
	Create(ctx context.Context, rr *models.RefundRequest) error
	HasActive(ctx context.Context, paymentID uuid.UUID) (bool, error)
	Get(ctx context.Context, id uuid.UUID) (*models.RefundRequest, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.RefundRequest, error)
	CancelIfPending(ctx context.Context, id uuid.UUID) (bool, error)
}

// Payments loads payment facts. Get returns an apperr not-found error for unknown ids.
type Payments interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Payment, error)
}

// History is the read-only ledger view used to count consumed credits.
type History interface {
	History(ctx context.Context, userID uuid.UUID, creditType string, since time.Time) ([]*models.CreditTransaction, error)
}

type Service struct {
	store    Store
	payments Payments
	ledger   History
	log      *slog.Logger
	now      func() time.Time
}

func NewService(store Store, payments Payments, ledger History, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, payments: payments, ledger: ledger, log: log, now: time.Now}
}

// quote loads the payment, checks ownership and computes the refund at now.
func (s *Service) quote(ctx context.Context, actor auth.Actor, paymentID uuid.UUID, now time.Time) (*models.Payment, Quote, error) {
	p, err := s.payments.Get(ctx, paymentID)
	if err != nil {
		return nil, Quote{}, err
	}
	if p.UserID != actor.UserID {
		return nil, Quote{}, apperr.Forbidden("payment belongs to another user")
	}
	if p.Status != models.PaymentStatusCompleted || p.PaidAt == nil {
		return nil, Quote{}, ErrPaymentNotRefundable.Withf("payment is %s", p.Status)
	}

	used := 0
	for creditType, granted := range p.Credits() {
		history, err := s.ledger.History(ctx, p.UserID, creditType, *p.PaidAt)
		if err != nil {
			return nil, Quote{}, apperr.External("load credit history", err)
		}
		used += UsedCredits(history, *p.PaidAt, granted)
	}

	q, err := Calculate(Input{
		Amount:       p.Amount,
		PaidAt:       *p.PaidAt,
		TotalCredits: p.TotalCredits(),
		UsedCredits:  used,
	}, now)
	return p, q, err
}

// Preview returns the quote a request would produce now, without persisting.
func (s *Service) Preview(ctx context.Context, actor auth.Actor, paymentID uuid.UUID) (Quote, error) {
	_, q, err := s.quote(ctx, actor, paymentID, s.now())
	return q, err
}

// RequestRefund computes and records a pending refund request.
func (s *Service) RequestRefund(ctx context.Context, actor auth.Actor, paymentID uuid.UUID, reason string) (*models.RefundRequest, error) {
	rr, err := s.requestRefund(ctx, actor, paymentID, reason)
	metrics.RefundRequests.WithLabelValues(resultCode(err)).Inc()
	return rr, err
}

func (s *Service) requestRefund(ctx context.Context, actor auth.Actor, paymentID uuid.UUID, reason string) (*models.RefundRequest, error) {
	now := s.now()
	p, q, err := s.quote(ctx, actor, paymentID, now)
	if err != nil {
		return nil, err
	}
	active, err := s.store.HasActive(ctx, paymentID)
	if err != nil {
		return nil, apperr.External("check refund requests", err)
	}
	if active {
		return nil, ErrDuplicateRefundRequest
	}

	rr := &models.RefundRequest{
		ID:               uuid.New(),
		UserID:           p.UserID,
		PaymentID:        p.ID,
		RequestType:      q.RequestType,
		Reason:           strings.TrimSpace(reason),
		TotalCredits:     q.TotalCredits,
		UsedCredits:      q.UsedCredits,
		RefundCredits:    q.RefundCredits,
		OriginalAmount:   q.OriginalAmount,
		BaseRefundAmount: q.BaseRefundAmount,
		FeeRate:          q.FeeRate,
		FeeAmount:        q.FeeAmount,
		RefundAmount:     q.RefundAmount,
		Status:           models.RefundStatusPending,
		CreatedAt:        now,
	}
	if err := s.store.Create(ctx, rr); err != nil {
		if errors.Is(err, ErrDuplicateRefundRequest) {
			return nil, err
		}
		return nil, apperr.External("create refund request", err)
	}
	s.log.Info("refund requested",
		"refund_id", rr.ID, "payment_id", p.ID, "user_id", p.UserID,
		"request_type", rr.RequestType, "refund_amount", rr.RefundAmount, "fee_amount", rr.FeeAmount)
	return rr, nil
}

// Cancel withdraws the actor's own pending request.
func (s *Service) Cancel(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	rr, err := s.store.Get(ctx, id)
	if errors.Is(err, errNotFound) {
		return apperr.NotFound("refund request")
	}
	if err != nil {
		return apperr.External("load refund request", err)
	}
	if rr.UserID != actor.UserID {
		return apperr.Forbidden("refund request belongs to another user")
	}
	ok, err := s.store.CancelIfPending(ctx, id)
	if err != nil {
		return apperr.External("cancel refund request", err)
	}
	if !ok {
		return apperr.ErrConflict.Withf("only pending refund requests can be cancelled")
	}
	s.log.Info("refund request cancelled", "refund_id", id, "user_id", actor.UserID)
	return nil
}

func (s *Service) ListMine(ctx context.Context, actor auth.Actor) ([]*models.RefundRequest, error) {
	list, err := s.store.ListForUser(ctx, actor.UserID)
	if err != nil {
		return nil, apperr.External("list refund requests", err)
	}
	return list, nil
}

func resultCode(err error) string {
	if err == nil {
		return "ok"
	}
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Code != "" {
		return ae.Code
	}
	return string(apperr.KindOf(err))
}
