package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lemonmilkceo/final-sub001/internal/models"
)

// maxSerializableRetries bounds retries of a consume that lost a serialization race.
const maxSerializableRetries = 3

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// lockAccount serializes writers of one (user, credit_type) account for the rest of tx.
func lockAccount(ctx context.Context, q querier, userID uuid.UUID, creditType string) error {
	_, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, userID.String()+":"+creditType)
	return err
}

func balance(ctx context.Context, q querier, userID uuid.UUID, creditType string) (int, error) {
	var sum int64
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM credit_transactions
		WHERE user_id = $1 AND credit_type = $2
	`, userID, creditType).Scan(&sum)
	return int(sum), err
}

// Issue appends a positive transaction in its own transaction.
// Returns false when the reference was already issued for this credit type.
func (r *Repository) Issue(ctx context.Context, t *models.CreditTransaction) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)
	issued, err := r.IssueTx(ctx, tx, t)
	if err != nil {
		return false, err
	}
	return issued, tx.Commit(ctx)
}

// IssueTx runs inside the caller's transaction.
func (r *Repository) IssueTx(ctx context.Context, tx pgx.Tx, t *models.CreditTransaction) (bool, error) {
	if err := lockAccount(ctx, tx, t.UserID, t.CreditType); err != nil {
		return false, err
	}
	err := tx.QueryRow(ctx, `
		INSERT INTO credit_transactions (id, user_id, credit_type, amount, reference_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (credit_type, reference_id) WHERE amount > 0 DO NOTHING
		RETURNING created_at
	`, t.ID, t.UserID, t.CreditType, t.Amount, t.ReferenceID).Scan(&t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Consume appends t (negative amount) only if the account balance covers it.
// The balance read and the insert share one SERIALIZABLE transaction holding the
// account's advisory lock, so two consumers can never both pass the check.
func (r *Repository) Consume(ctx context.Context, t *models.CreditTransaction) (int, error) {
	for attempt := 0; ; attempt++ {
		after, err := r.consumeOnce(ctx, t)
		if err == nil || !isSerializationFailure(err) || attempt >= maxSerializableRetries {
			return after, err
		}
	}
}

func (r *Repository) consumeOnce(ctx context.Context, t *models.CreditTransaction) (int, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if err := lockAccount(ctx, tx, t.UserID, t.CreditType); err != nil {
		return 0, err
	}
	current, err := balance(ctx, tx, t.UserID, t.CreditType)
	if err != nil {
		return 0, err
	}
	if current < -t.Amount {
		return current, ErrInsufficientCredit
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO credit_transactions (id, user_id, credit_type, amount, reference_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, t.ID, t.UserID, t.CreditType, t.Amount, t.ReferenceID).Scan(&t.CreatedAt)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return current + t.Amount, nil
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

func (r *Repository) Balance(ctx context.Context, userID uuid.UUID, creditType string) (int, error) {
	return balance(ctx, r.pool, userID, creditType)
}

func (r *Repository) Balances(ctx context.Context, userID uuid.UUID) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT credit_type, COALESCE(SUM(amount), 0) FROM credit_transactions
		WHERE user_id = $1 GROUP BY credit_type
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{models.CreditTypeContract: 0, models.CreditTypeAIReview: 0}
	for rows.Next() {
		var creditType string
		var sum int64
		if err := rows.Scan(&creditType, &sum); err != nil {
			return nil, err
		}
		out[creditType] = int(sum)
	}
	return out, rows.Err()
}

// History lists an account's transactions created at or after since, oldest first.
func (r *Repository) History(ctx context.Context, userID uuid.UUID, creditType string, since time.Time) ([]*models.CreditTransaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, credit_type, amount, reference_id, created_at
		FROM credit_transactions
		WHERE user_id = $1 AND credit_type = $2 AND created_at >= $3
		ORDER BY created_at ASC, id ASC
	`, userID, creditType, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.CreditTransaction
	for rows.Next() {
		var c models.CreditTransaction
		if err := rows.Scan(&c.ID, &c.UserID, &c.CreditType, &c.Amount, &c.ReferenceID, &c.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &c)
	}
	return list, rows.Err()
}
