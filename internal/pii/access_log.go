package pii

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGAccessLogger appends to pii_access_logs. A failed insert is logged.
type PGAccessLogger struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewPGAccessLogger(pool *pgxpool.Pool, log *slog.Logger) *PGAccessLogger {
	if log == nil {
		log = slog.Default()
	}
	return &PGAccessLogger{pool: pool, log: log}
}

func (l *PGAccessLogger) LogAccess(ctx context.Context, e AccessEntry) {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO pii_access_logs (id, actor_id, subject_id, field, purpose, succeeded)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New(), e.ActorID, e.SubjectID, e.Field, e.Purpose, e.Succeeded)
	if err != nil {
		l.log.Error("pii access log insert failed", "actor_id", e.ActorID, "subject_id", e.SubjectID, "field", e.Field, "error", err)
	}
}
