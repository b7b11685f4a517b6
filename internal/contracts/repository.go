package contracts

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

var errNotFound = errors.New("contract not found")

const contractColumns = `id, employer_id, worker_id, status, title, start_date, end_date, hourly_wage,
	expires_at, completed_at, resignation_date, deleted_at, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanContract(row pgx.Row) (*models.Contract, error) {
	c := &models.Contract{}
	err := row.Scan(&c.ID, &c.EmployerID, &c.WorkerID, &c.Status, &c.Title, &c.StartDate, &c.EndDate, &c.HourlyWage,
		&c.ExpiresAt, &c.CompletedAt, &c.ResignationDate, &c.DeletedAt, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errNotFound
	}
	return c, err
}

func (r *Repository) Create(ctx context.Context, c *models.Contract) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO contracts (id, employer_id, status, title, start_date, end_date, hourly_wage)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, c.ID, c.EmployerID, c.Status, c.Title, c.StartDate, c.EndDate, c.HourlyWage).Scan(&c.CreatedAt, &c.UpdatedAt)
}

// Get includes soft-deleted rows; callers decide how to treat them.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	return scanContract(r.pool.QueryRow(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id = $1`, id))
}

// ListForUser returns live contracts where userID is employer or worker, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Contract, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+contractColumns+` FROM contracts
		WHERE (employer_id = $1 OR worker_id = $1) AND deleted_at IS NULL
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateTerms writes the editable fields only while the row still has status.
func (r *Repository) UpdateTerms(ctx context.Context, c *models.Contract, status string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE contracts SET title = $3, start_date = $4, end_date = $5, hourly_wage = $6, updated_at = now()
		WHERE id = $1 AND status = $2 AND deleted_at IS NULL
	`, c.ID, status, c.Title, c.StartDate, c.EndDate, c.HourlyWage)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CompareAndSetStatus applies ch only if the row is live and still in ch.From.
// It reports whether a row was updated.
func (r *Repository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, ch Change) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE contracts
		SET status = $3, expires_at = $4, completed_at = COALESCE($5, completed_at), updated_at = now()
		WHERE id = $1 AND status = $2 AND deleted_at IS NULL
	`, id, ch.From, ch.To, ch.ExpiresAt, ch.CompletedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ExpireIfDue is the expiry CAS: it only matches pending rows whose deadline passed.
func (r *Repository) ExpireIfDue(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE contracts SET status = 'expired', expires_at = NULL, updated_at = now()
		WHERE id = $1 AND status = 'pending' AND deleted_at IS NULL AND expires_at < $2
	`, id, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE contracts SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL AND status IN ('draft', 'pending')
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) SetResignationDate(ctx context.Context, id uuid.UUID, date time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE contracts SET resignation_date = $2, updated_at = now()
		WHERE id = $1 AND status = 'completed' AND deleted_at IS NULL
	`, id, date)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) Signatures(ctx context.Context, contractID uuid.UUID) ([]*models.Signature, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, contract_id, role, signer_id, signed_at, payload
		FROM signatures WHERE contract_id = $1 ORDER BY role
	`, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Signature
	for rows.Next() {
		s := &models.Signature{}
		if err := rows.Scan(&s.ID, &s.ContractID, &s.Role, &s.SignerID, &s.SignedAt, &s.Payload); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// AddSignature inserts s while the contract is live and in status. A worker
// signature also binds the contract's worker_id. Returns ErrDuplicateSignature
// if the role is already signed and false if the contract moved on.
func (r *Repository) AddSignature(ctx context.Context, s *models.Signature, status string) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	// Lock the contract row so a concurrent transition waits for the signature.
	var workerID *uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT worker_id FROM contracts
		WHERE id = $1 AND status = $2 AND deleted_at IS NULL
		FOR UPDATE
	`, s.ContractID, status).Scan(&workerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO signatures (id, contract_id, role, signer_id, signed_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.ID, s.ContractID, s.Role, s.SignerID, s.SignedAt, s.Payload)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return false, ErrDuplicateSignature
	}
	if err != nil {
		return false, err
	}

	if s.Role == models.RoleWorker {
		if workerID != nil && *workerID != s.SignerID {
			return false, ErrDuplicateSignature.Withf("contract is bound to another worker")
		}
		if _, err := tx.Exec(ctx, `UPDATE contracts SET worker_id = $2, updated_at = now() WHERE id = $1`, s.ContractID, s.SignerID); err != nil {
			return false, err
		}
	}
	return true, tx.Commit(ctx)
}

// ListDueForExpiry returns ids of live pending contracts whose deadline is before
// now, oldest deadline first, leaving out the ids in skip.
func (r *Repository) ListDueForExpiry(ctx context.Context, now time.Time, skip []uuid.UUID, limit int) ([]uuid.UUID, error) {
	if skip == nil {
		skip = []uuid.UUID{}
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM contracts
		WHERE status = 'pending' AND deleted_at IS NULL AND expires_at < $1
		  AND NOT (id = ANY($2))
		ORDER BY expires_at, id
		LIMIT $3
	`, now, skip, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}
