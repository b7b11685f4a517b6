package pii

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lemonmilkceo/final-sub001/internal/models"
)

var errProfileNotFound = errors.New("worker profile not found")

type ProfileRepository struct {
	pool *pgxpool.Pool
}

func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

func (r *ProfileRepository) Upsert(ctx context.Context, p *models.WorkerProfile) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO worker_profiles (user_id, national_id_encrypted, national_id_hash, bank_account_encrypted, bank_name)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			national_id_encrypted = EXCLUDED.national_id_encrypted,
			national_id_hash = EXCLUDED.national_id_hash,
			bank_account_encrypted = EXCLUDED.bank_account_encrypted,
			bank_name = EXCLUDED.bank_name,
			updated_at = now()
		RETURNING updated_at
	`, p.UserID, p.NationalIDEncrypted, p.NationalIDHash, p.BankAccountEncrypted, p.BankName).Scan(&p.UpdatedAt)
}

func (r *ProfileRepository) Get(ctx context.Context, userID uuid.UUID) (*models.WorkerProfile, error) {
	p := &models.WorkerProfile{}
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, national_id_encrypted, national_id_hash, bank_account_encrypted, bank_name, updated_at
		FROM worker_profiles WHERE user_id = $1
	`, userID).Scan(&p.UserID, &p.NationalIDEncrypted, &p.NationalIDHash, &p.BankAccountEncrypted, &p.BankName, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errProfileNotFound
	}
	return p, err
}

// FindByNationalIDHash returns the users whose stored lookup hash equals hash.
func (r *ProfileRepository) FindByNationalIDHash(ctx context.Context, hash string) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM worker_profiles WHERE national_id_hash = $1 ORDER BY user_id`, hash)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}
