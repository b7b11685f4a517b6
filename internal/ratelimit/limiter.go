// Package ratelimit implements a fixed-window request counter keyed by
// (endpoint, identity).
//
// A client can get up to 2×limit requests through around a window boundary
// (limit at the end of one window, limit at the start of the next). Do not use
// it for hard quotas.
package ratelimit

import (
	"context"
	"time"

	"github.com/lemonmilkceo/final-sub001/internal/apperr"
)

// ErrRateLimited carries "remaining" and "reset_at" metadata for client backoff.
var ErrRateLimited = apperr.New(apperr.KindRateLimited, "rate_limited", "rate limit exceeded")

type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// CounterStore applies one hit to key and reports the fixed-window decision.
// Implementations must make the read-modify-write atomic per key; a single
// process map is only correct for single-instance deployments.
type CounterStore interface {
	Hit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Decision, error)
}

type Rule struct {
	Limit  int
	Window time.Duration
}

type Limiter struct {
	store CounterStore
	rules map[string]Rule
	now   func() time.Time
}

func New(store CounterStore, rules map[string]Rule) *Limiter {
	return &Limiter{store: store, rules: rules, now: time.Now}
}

// Allow records a request for (endpoint, identity). Endpoints without a rule are
// always allowed. A denial returns ErrRateLimited alongside the decision.
func (l *Limiter) Allow(ctx context.Context, endpoint, identity string) (Decision, error) {
	rule, ok := l.rules[endpoint]
	if !ok {
		return Decision{Allowed: true}, nil
	}
	d, err := l.store.Hit(ctx, endpoint+":"+identity, rule.Limit, rule.Window, l.now())
	if err != nil {
		return Decision{}, apperr.External("rate limit store", err)
	}
	if !d.Allowed {
		return d, ErrRateLimited.
			WithMeta("remaining", d.Remaining).
			WithMeta("reset_at", d.ResetAt.UTC().Format(time.RFC3339))
	}
	return d, nil
}
