package ratelimit

import (
	"context"
	"sync"
	"time"
)

// sweepEvery controls how often MemoryStore drops expired windows.
const sweepEvery = 1024

type window struct {
	count   int
	resetAt time.Time
}

// MemoryStore keeps counters in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	data  map[string]window
	calls int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]window)}
}

func (s *MemoryStore) Hit(_ context.Context, key string, limit int, win time.Duration, now time.Time) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.calls%sweepEvery == 0 {
		s.sweepLocked(now)
	}

	w, ok := s.data[key]
	if !ok || !now.Before(w.resetAt) {
		w = window{count: 1, resetAt: now.Add(win)}
		s.data[key] = w
		return Decision{Allowed: true, Limit: limit, Remaining: limit - 1, ResetAt: w.resetAt}, nil
	}
	if w.count >= limit {
		return Decision{Allowed: false, Limit: limit, Remaining: 0, ResetAt: w.resetAt}, nil
	}
	w.count++
	s.data[key] = w
	return Decision{Allowed: true, Limit: limit, Remaining: limit - w.count, ResetAt: w.resetAt}, nil
}

func (s *MemoryStore) sweepLocked(now time.Time) {
	for k, w := range s.data {
		if !now.Before(w.resetAt) {
			delete(s.data, k)
		}
	}
}

// Len reports the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}
