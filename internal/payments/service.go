// Package payments records credit purchases and turns gateway confirmations
// into ledger issuance. Confirmation and issuance commit in one transaction, and
// the issuance is keyed by payment id, so a replayed callback cannot issue twice.
package payments

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lemonmilkceo/final-sub001/internal/apperr"
	"github.com/lemonmilkceo/final-sub001/internal/auth"
	"github.com/lemonmilkceo/final-sub001/internal/models"
)

var (
	ErrAmountMismatch   = apperr.New(apperr.KindValidation, "amount_mismatch", "confirmed amount does not match the order")
	ErrPaymentClosed    = apperr.New(apperr.KindConflict, "payment_closed", "payment can no longer be confirmed")
	ErrDuplicateOrder   = apperr.New(apperr.KindConflict, "duplicate_order", "order id already used")
	ErrAlreadyCompleted = apperr.New(apperr.KindConflict, "payment_completed", "payment is already completed")
)

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Store interface {
	Create(ctx context.Context, p *models.Payment) error
	Get(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Payment, error)
	// LockByOrderID loads the payment and holds its row lock for the rest of tx.
	LockByOrderID(ctx context.Context, tx pgx.Tx, orderID string) (*models.Payment, error)
	// Complete moves a pending payment to completed inside tx, stamping paid_at
	// with the database clock so it orders against ledger rows. It reports the
	// stored paid_at and whether the row was still pending.
	Complete(ctx context.Context, tx pgx.Tx, id uuid.UUID, paymentKey string) (time.Time, bool, error)
	// SetStatus moves the payment from one status to another inside tx and
	// reports whether the row was still in from.
	SetStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to string) (bool, error)
}

// Issuer is the ledger operation used on confirmation.
type Issuer interface {
	IssueTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, creditType string, amount int, reference string) (bool, error)
}

type CreateInput struct {
	OrderID         string `json:"order_id"`
	Amount          int64  `json:"amount"`
	CreditsContract int    `json:"credits_contract"`
	CreditsAIReview int    `json:"credits_ai_review"`
}

// Confirmation is the outcome of a gateway callback.
type Confirmation struct {
	Payment *models.Payment `json:"payment"`
	// Replayed is true when the payment was already completed and nothing changed.
	Replayed bool `json:"replayed"`
}

type Service struct {
	pool   TxBeginner
	store  Store
	ledger Issuer
	log    *slog.Logger
}

func NewService(pool TxBeginner, store Store, ledger Issuer, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{pool: pool, store: store, ledger: ledger, log: log}
}

// CreatePending records an order before the user is sent to the gateway.
func (s *Service) CreatePending(ctx context.Context, actor auth.Actor, in CreateInput) (*models.Payment, error) {
	in.OrderID = strings.TrimSpace(in.OrderID)
	if in.OrderID == "" {
		return nil, apperr.Validation("order_id is required")
	}
	if in.Amount <= 0 {
		return nil, apperr.Validation("amount must be > 0")
	}
	if in.CreditsContract < 0 || in.CreditsAIReview < 0 || in.CreditsContract+in.CreditsAIReview == 0 {
		return nil, apperr.Validation("a payment must grant at least one credit")
	}
	p := &models.Payment{
		ID:              uuid.New(),
		UserID:          actor.UserID,
		OrderID:         in.OrderID,
		Amount:          in.Amount,
		CreditsContract: in.CreditsContract,
		CreditsAIReview: in.CreditsAIReview,
		Status:          models.PaymentStatusPending,
	}
	if err := s.store.Create(ctx, p); err != nil {
		if errors.Is(err, ErrDuplicateOrder) {
			return nil, err
		}
		return nil, apperr.External("create payment", err)
	}
	s.log.Info("payment created", "payment_id", p.ID, "order_id", p.OrderID, "user_id", p.UserID, "amount", p.Amount)
	return p, nil
}

// Get returns a payment by id or an apperr not-found error.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	p, err := s.store.Get(ctx, id)
	if errors.Is(err, errNotFound) {
		return nil, apperr.NotFound("payment")
	}
	if err != nil {
		return nil, apperr.External("load payment", err)
	}
	return p, nil
}

func (s *Service) ListMine(ctx context.Context, actor auth.Actor) ([]*models.Payment, error) {
	list, err := s.store.ListForUser(ctx, actor.UserID)
	if err != nil {
		return nil, apperr.External("list payments", err)
	}
	return list, nil
}

// Confirm completes the payment for orderID and issues its credits in the same
// transaction. A replay on a completed payment is a no-op that returns the
// payment with Replayed set.
func (s *Service) Confirm(ctx context.Context, orderID string, amount int64, paymentKey string) (*Confirmation, error) {
	if strings.TrimSpace(paymentKey) == "" {
		return nil, apperr.Validation("payment_key is required")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.External("begin confirm", err)
	}
	defer tx.Rollback(ctx)

	p, err := s.lock(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	switch p.Status {
	case models.PaymentStatusCompleted:
		s.log.Info("payment confirmation replayed", "payment_id", p.ID, "order_id", orderID)
		return &Confirmation{Payment: p, Replayed: true}, nil
	case models.PaymentStatusPending:
	default:
		return nil, ErrPaymentClosed.Withf("payment is %s", p.Status)
	}
	if p.Amount != amount {
		return nil, ErrAmountMismatch.WithMeta("expected", p.Amount).WithMeta("received", amount)
	}

	paidAt, ok, err := s.store.Complete(ctx, tx, p.ID, paymentKey)
	if err != nil {
		return nil, apperr.External("complete payment", err)
	}
	if !ok {
		return nil, ErrPaymentClosed.Withf("payment changed concurrently")
	}
	for creditType, n := range p.Credits() {
		if _, err := s.ledger.IssueTx(ctx, tx, p.UserID, creditType, n, p.ID.String()); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.External("commit confirm", err)
	}

	p.Status = models.PaymentStatusCompleted
	p.PaymentKey = &paymentKey
	p.PaidAt = &paidAt
	s.log.Info("payment confirmed", "payment_id", p.ID, "order_id", orderID, "user_id", p.UserID, "amount", amount)
	return &Confirmation{Payment: p}, nil
}

// Fail marks a pending payment failed or cancelled. Repeating the same outcome
// is a no-op; failing a completed payment is a conflict.
func (s *Service) Fail(ctx context.Context, orderID, status string) (*models.Payment, error) {
	if status != models.PaymentStatusFailed && status != models.PaymentStatusCancelled {
		return nil, apperr.Validation("unsupported failure status %q", status)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.External("begin fail", err)
	}
	defer tx.Rollback(ctx)

	p, err := s.lock(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	switch p.Status {
	case status:
		return p, nil
	case models.PaymentStatusPending:
	case models.PaymentStatusCompleted:
		return nil, ErrAlreadyCompleted
	default:
		return nil, ErrPaymentClosed.Withf("payment is %s", p.Status)
	}
	ok, err := s.store.SetStatus(ctx, tx, p.ID, models.PaymentStatusPending, status)
	if err != nil {
		return nil, apperr.External("fail payment", err)
	}
	if !ok {
		return nil, ErrPaymentClosed.Withf("payment changed concurrently")
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.External("commit fail", err)
	}
	p.Status = status
	s.log.Info("payment closed", "payment_id", p.ID, "order_id", orderID, "status", status)
	return p, nil
}

func (s *Service) lock(ctx context.Context, tx pgx.Tx, orderID string) (*models.Payment, error) {
	p, err := s.store.LockByOrderID(ctx, tx, orderID)
	if errors.Is(err, errNotFound) {
		return nil, apperr.NotFound("payment")
	}
	if err != nil {
		return nil, apperr.External("load payment", err)
	}
	return p, nil
}
