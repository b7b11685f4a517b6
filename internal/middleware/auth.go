package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/lemonmilkceo/final-sub001/internal/auth"
	"github.com/lemonmilkceo/final-sub001/internal/httpx"
)

type contextKey string

const ctxActorKey contextKey = "actor"

// TokenValidator is the slice of auth.Service the middleware needs.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (auth.Actor, error)
}

// Authenticate validates the Bearer token and stores the Actor in the request
// context. Requests without a valid token get 401.
func Authenticate(v TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractBearer(r)
			if raw == "" {
				unauthorized(w, r, "missing or malformed Authorization header")
				return
			}
			actor, err := v.ValidateToken(r.Context(), raw)
			if err != nil {
				unauthorized(w, r, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// RequireAdmin rejects actors without the admin role. Must run after Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromCtx(r.Context())
		if !ok || actor.Role != auth.RoleAdmin {
			httpx.WriteJSON(w, http.StatusForbidden, map[string]any{
				"request_id": middleware.GetReqID(r.Context()),
				"error":      map[string]any{"kind": "authorization", "message": "admin role required"},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ActorFromCtx returns the authenticated actor.
func ActorFromCtx(ctx context.Context) (auth.Actor, bool) {
	a, ok := ctx.Value(ctxActorKey).(auth.Actor)
	return a, ok
}

// WithActor returns a context carrying the given actor.
func WithActor(ctx context.Context, a auth.Actor) context.Context {
	return context.WithValue(ctx, ctxActorKey, a)
}

func unauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	httpx.WriteJSON(w, http.StatusUnauthorized, map[string]any{
		"request_id": middleware.GetReqID(r.Context()),
		"error":      map[string]any{"kind": "unauthenticated", "message": msg},
	})
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// RequireActor returns the authenticated actor, or writes 401 and reports false.
func RequireActor(w http.ResponseWriter, r *http.Request) (auth.Actor, bool) {
	a, ok := ActorFromCtx(r.Context())
	if !ok {
		unauthorized(w, r, "authentication required")
	}
	return a, ok
}
