package refund

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lemonmilkceo/final-sub001/internal/models"
)

var errNotFound = errors.New("refund request not found")

const refundColumns = `id, user_id, payment_id, request_type, reason, total_credits, used_credits, refund_credits,
	original_amount, base_refund_amount, fee_rate::text, fee_amount, refund_amount, status, created_at`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanRefund(row pgx.Row) (*models.RefundRequest, error) {
	rr := &models.RefundRequest{}
	var feeRate string
	err := row.Scan(&rr.ID, &rr.UserID, &rr.PaymentID, &rr.RequestType, &rr.Reason, &rr.TotalCredits, &rr.UsedCredits,
		&rr.RefundCredits, &rr.OriginalAmount, &rr.BaseRefundAmount, &feeRate, &rr.FeeAmount, &rr.RefundAmount,
		&rr.Status, &rr.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := rr.FeeRate.Scan(feeRate); err != nil {
		return nil, err
	}
	return rr, nil
}

// Create inserts rr. The partial unique index on active requests turns a lost
// race into ErrDuplicateRefundRequest.
func (r *Repository) Create(ctx context.Context, rr *models.RefundRequest) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO refund_requests (id, user_id, payment_id, request_type, reason, total_credits, used_credits,
			refund_credits, original_amount, base_refund_amount, fee_rate, fee_amount, refund_amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::numeric, $12, $13, $14, $15)
	`, rr.ID, rr.UserID, rr.PaymentID, rr.RequestType, rr.Reason, rr.TotalCredits, rr.UsedCredits, rr.RefundCredits,
		rr.OriginalAmount, rr.BaseRefundAmount, rr.FeeRate.String(), rr.FeeAmount, rr.RefundAmount, rr.Status, rr.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateRefundRequest
	}
	return err
}

func (r *Repository) HasActive(ctx context.Context, paymentID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM refund_requests
			WHERE payment_id = $1 AND status IN ('pending', 'approved', 'completed')
		)
	`, paymentID).Scan(&exists)
	return exists, err
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.RefundRequest, error) {
	return scanRefund(r.pool.QueryRow(ctx, `SELECT `+refundColumns+` FROM refund_requests WHERE id = $1`, id))
}

func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.RefundRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+refundColumns+` FROM refund_requests WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.RefundRequest
	for rows.Next() {
		rr, err := scanRefund(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rr)
	}
	return out, rows.Err()
}

func (r *Repository) CancelIfPending(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE refund_requests SET status = 'cancelled' WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
