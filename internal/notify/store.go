package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lemonmilkceo/final-sub001/internal/models"
)

// Stored is a notification row as read back for the inbox.
type Stored struct {
	ID        uuid.UUID       `json:"id"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Body      string          `json:"body"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	ReadAt    *time.Time      `json:"read_at,omitempty"`
}

// Store writes notifications to the notifications table, which a delivery
// process outside this module drains.
type Store struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewStore(pool *pgxpool.Pool, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{pool: pool, log: log}
}

var _ Sink = (*Store)(nil)

func (s *Store) Notify(ctx context.Context, n models.Notification) {
	payload := n.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, type, title, body, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New(), n.UserID, n.Type, n.Title, n.Body, payload)
	if err != nil {
		s.log.Warn("notification not stored", "user_id", n.UserID, "type", n.Type, "error", err)
	}
}

// ListForUser returns the newest notifications first.
func (s *Store) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*Stored, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, type, title, body, payload, created_at, read_at
		FROM notifications WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Stored
	for rows.Next() {
		n := &Stored{}
		if err := rows.Scan(&n.ID, &n.Type, &n.Title, &n.Body, &n.Payload, &n.CreatedAt, &n.ReadAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
