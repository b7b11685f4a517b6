// Package notify delivers user notifications. Delivery is fire-and-forget: a
// failed notification is logged and never fails the operation that emitted it.
package notify

import (
	"context"
	"sync"

	"github.com/lemonmilkceo/final-sub001/internal/models"
)

type Sink interface {
	Notify(ctx context.Context, n models.Notification)
}

// Memory collects notifications in order. Safe for concurrent use.
type Memory struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (m *Memory) Notify(_ context.Context, n models.Notification) {
	m.mu.Lock()
	m.sent = append(m.sent, n)
	m.mu.Unlock()
}

// Sent returns a copy of everything received so far.
func (m *Memory) Sent() []models.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Notification(nil), m.sent...)
}
