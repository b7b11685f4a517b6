package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/lemonmilkceo/final-sub001/internal/apperr"
	"github.com/lemonmilkceo/final-sub001/internal/httpx"
	"github.com/lemonmilkceo/final-sub001/internal/metrics"
	"github.com/lemonmilkceo/final-sub001/internal/ratelimit"
)

// Limiter is the slice of ratelimit.Limiter the middleware needs.
type Limiter interface {
	Allow(ctx context.Context, endpoint, identity string) (ratelimit.Decision, error)
}

// RateLimit applies the rule registered for endpoint. The identity is the
// authenticated user when present, otherwise the client IP.
//
// A store failure lets the request through and logs a warning.
func RateLimit(l Limiter, endpoint string, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := l.Allow(r.Context(), endpoint, identity(r))
			if err != nil && apperr.KindOf(err) != apperr.KindRateLimited {
				log.Warn("rate limit store unavailable, allowing request", "endpoint", endpoint, "error", err)
				metrics.RateLimitDecisions.WithLabelValues(endpoint, "error").Inc()
				next.ServeHTTP(w, r)
				return
			}
			if d.Limit > 0 {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
			}
			if err != nil {
				metrics.RateLimitDecisions.WithLabelValues(endpoint, "false").Inc()
				retry := int(time.Until(d.ResetAt).Seconds()) + 1
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				httpx.WriteError(w, r, log, err)
				return
			}
			metrics.RateLimitDecisions.WithLabelValues(endpoint, "true").Inc()
			next.ServeHTTP(w, r)
		})
	}
}

func identity(r *http.Request) string {
	if a, ok := ActorFromCtx(r.Context()); ok {
		return "user:" + a.UserID.String()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
