// Package ledger is the append-only credit ledger. Balances are always derived
// from credit_transactions; there is no balance column that could drift from the log.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lemonmilkceo/final-sub001/internal/apperr"
	"github.com/lemonmilkceo/final-sub001/internal/metrics"
	"github.com/lemonmilkceo/final-sub001/internal/models"
)

// ErrInsufficientCredit is returned when a consume would take the balance below zero.
// Nothing is appended in that case.
var ErrInsufficientCredit = apperr.New(apperr.KindInsufficientCredit, "insufficient_credit", "insufficient credit")

// Store is the persistence contract. Consume must check the balance and append in
// one atomic unit per (user, credit_type).
type Store interface {
	Issue(ctx context.Context, t *models.CreditTransaction) (bool, error)
	IssueTx(ctx context.Context, tx pgx.Tx, t *models.CreditTransaction) (bool, error)
	Consume(ctx context.Context, t *models.CreditTransaction) (balanceAfter int, err error)
	Balance(ctx context.Context, userID uuid.UUID, creditType string) (int, error)
	Balances(ctx context.Context, userID uuid.UUID) (map[string]int, error)
	History(ctx context.Context, userID uuid.UUID, creditType string, since time.Time) ([]*models.CreditTransaction, error)
}

type Service interface {
	Issue(ctx context.Context, userID uuid.UUID, creditType string, amount int, reference string) (bool, error)
	IssueTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, creditType string, amount int, reference string) (bool, error)
	Consume(ctx context.Context, userID uuid.UUID, creditType string, amount int, reference string) (*Consumption, error)
	Balance(ctx context.Context, userID uuid.UUID, creditType string) (int, error)
	Balances(ctx context.Context, userID uuid.UUID) (map[string]int, error)
	History(ctx context.Context, userID uuid.UUID, creditType string, since time.Time) ([]*models.CreditTransaction, error)
}

// Consumption is the result of a successful consume.
type Consumption struct {
	Transaction  *models.CreditTransaction `json:"transaction"`
	BalanceAfter int                       `json:"balance_after"`
}

type service struct {
	store Store
	log   *slog.Logger
}

func NewService(store Store, log *slog.Logger) Service {
	if log == nil {
		log = slog.Default()
	}
	return &service{store: store, log: log}
}

var _ Service = (*service)(nil)

func validate(userID uuid.UUID, creditType string, amount int, reference string) error {
	if userID == uuid.Nil {
		return apperr.Validation("user id is required")
	}
	if !models.ValidCreditType(creditType) {
		return apperr.Validation("unknown credit type %q", creditType)
	}
	if amount <= 0 {
		return apperr.Validation("amount must be > 0")
	}
	if strings.TrimSpace(reference) == "" {
		return apperr.Validation("reference is required")
	}
	return nil
}

func newTransaction(userID uuid.UUID, creditType string, amount int, reference string) *models.CreditTransaction {
	return &models.CreditTransaction{
		ID:          uuid.New(),
		UserID:      userID,
		CreditType:  creditType,
		Amount:      amount,
		ReferenceID: reference,
	}
}

// Issue appends a positive transaction. The reference (payment id) is the
// idempotency key: a repeated issue for the same reference returns false and
// appends nothing.
func (s *service) Issue(ctx context.Context, userID uuid.UUID, creditType string, amount int, reference string) (bool, error) {
	if err := validate(userID, creditType, amount, reference); err != nil {
		return false, err
	}
	issued, err := s.store.Issue(ctx, newTransaction(userID, creditType, amount, reference))
	return s.recordIssue(issued, err, userID, creditType, amount, reference)
}

func (s *service) IssueTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, creditType string, amount int, reference string) (bool, error) {
	if err := validate(userID, creditType, amount, reference); err != nil {
		return false, err
	}
	issued, err := s.store.IssueTx(ctx, tx, newTransaction(userID, creditType, amount, reference))
	return s.recordIssue(issued, err, userID, creditType, amount, reference)
}

func (s *service) recordIssue(issued bool, err error, userID uuid.UUID, creditType string, amount int, reference string) (bool, error) {
	if err != nil {
		metrics.CreditOperations.WithLabelValues("issue", creditType, "external").Inc()
		return false, apperr.External("issue credit", err)
	}
	result := "ok"
	if !issued {
		result = "duplicate"
		s.log.Info("credit issuance already recorded", "user_id", userID, "credit_type", creditType, "reference_id", reference)
	} else {
		s.log.Info("credit issued", "user_id", userID, "credit_type", creditType, "amount", amount, "reference_id", reference)
	}
	metrics.CreditOperations.WithLabelValues("issue", creditType, result).Inc()
	return issued, nil
}

// Consume appends a negative transaction if the balance covers amount, otherwise
// returns ErrInsufficientCredit. It is never clamped.
func (s *service) Consume(ctx context.Context, userID uuid.UUID, creditType string, amount int, reference string) (*Consumption, error) {
	if err := validate(userID, creditType, amount, reference); err != nil {
		return nil, err
	}
	t := newTransaction(userID, creditType, -amount, reference)
	after, err := s.store.Consume(ctx, t)
	metrics.CreditOperations.WithLabelValues("consume", creditType, metrics.Result(err)).Inc()
	if err != nil {
		if errors.Is(err, ErrInsufficientCredit) {
			return nil, ErrInsufficientCredit.Withf("balance %d is below requested %d", after, amount).
				WithMeta("balance", after).WithMeta("requested", amount)
		}
		return nil, apperr.External("consume credit", err)
	}
	s.log.Info("credit consumed", "user_id", userID, "credit_type", creditType, "amount", amount, "balance_after", after, "reference_id", reference)
	return &Consumption{Transaction: t, BalanceAfter: after}, nil
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID, creditType string) (int, error) {
	if !models.ValidCreditType(creditType) {
		return 0, apperr.Validation("unknown credit type %q", creditType)
	}
	b, err := s.store.Balance(ctx, userID, creditType)
	return b, apperr.External("load balance", err)
}

func (s *service) Balances(ctx context.Context, userID uuid.UUID) (map[string]int, error) {
	b, err := s.store.Balances(ctx, userID)
	if err != nil {
		return nil, apperr.External("load balances", err)
	}
	return b, nil
}

func (s *service) History(ctx context.Context, userID uuid.UUID, creditType string, since time.Time) ([]*models.CreditTransaction, error) {
	if !models.ValidCreditType(creditType) {
		return nil, apperr.Validation("unknown credit type %q", creditType)
	}
	list, err := s.store.History(ctx, userID, creditType, since)
	if err != nil {
		return nil, apperr.External("load credit history", err)
	}
	return list, nil
}
