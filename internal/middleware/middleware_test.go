package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lemonmilkceo/final-sub001/internal/auth"
	"github.com/lemonmilkceo/final-sub001/internal/ratelimit"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type stubValidator struct {
	actor auth.Actor
	err   error
	got   string
}

func (s *stubValidator) ValidateToken(_ context.Context, token string) (auth.Actor, error) {
	s.got = token
	return s.actor, s.err
}

// okHandler writes 200 and the actor's user id (for assertions).
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	if a, ok := ActorFromCtx(r.Context()); ok {
		w.Write([]byte(a.UserID.String()))
	}
})

// ---------------------------------------------------------------------------
// Authenticate
// ---------------------------------------------------------------------------

func TestAuthenticate_ValidToken(t *testing.T) {
	actor := auth.Actor{UserID: uuid.New(), Role: auth.RoleUser}
	v := &stubValidator{actor: actor}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok-123")
	rec := httptest.NewRecorder()
	Authenticate(v)(okHandler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if v.got != "tok-123" {
		t.Errorf("validator got %q", v.got)
	}
	if body := rec.Body.String(); body != actor.UserID.String() {
		t.Errorf("expected actor id in body, got %q", body)
	}
}

func TestAuthenticate_MissingHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	Authenticate(&stubValidator{})(okHandler).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Error("missing WWW-Authenticate header")
	}
}

func TestAuthenticate_InvalidToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec := httptest.NewRecorder()
	Authenticate(&stubValidator{err: auth.ErrInvalidToken})(okHandler).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	for _, tc := range []struct {
		role string
		want int
	}{
		{auth.RoleAdmin, http.StatusOK},
		{auth.RoleUser, http.StatusForbidden},
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithActor(req.Context(), auth.Actor{UserID: uuid.New(), Role: tc.role}))
		rec := httptest.NewRecorder()
		RequireAdmin(okHandler).ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Errorf("role %s: expected %d, got %d", tc.role, tc.want, rec.Code)
		}
	}
}

// ---------------------------------------------------------------------------
// RateLimit
// ---------------------------------------------------------------------------

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string, string) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, errors.New("redis down")
}

func TestRateLimit_DeniesAfterLimit(t *testing.T) {
	l := ratelimit.New(ratelimit.NewMemoryStore(), map[string]ratelimit.Rule{
		"credits.consume": {Limit: 2, Window: time.Minute},
	})
	h := RateLimit(l, "credits.consume", nil)(okHandler)
	user := auth.Actor{UserID: uuid.New()}

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(WithActor(req.Context(), user))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if i == 2 {
			if rec.Header().Get("Retry-After") == "" {
				t.Error("denied response missing Retry-After")
			}
			if got := rec.Header().Get("X-RateLimit-Remaining"); got != "0" {
				t.Errorf("X-RateLimit-Remaining = %q, want 0", got)
			}
		}
	}
	want := []int{200, 200, 429}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("codes = %v, want %v", codes, want)
		}
	}
}

func TestRateLimit_AnonymousKeyedByIP(t *testing.T) {
	l := ratelimit.New(ratelimit.NewMemoryStore(), map[string]ratelimit.Rule{
		"pii.profile": {Limit: 1, Window: time.Minute},
	})
	h := RateLimit(l, "pii.profile", nil)(okHandler)

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	if c := send("10.0.0.1:1234"); c != 200 {
		t.Fatalf("first: %d", c)
	}
	if c := send("10.0.0.1:5678"); c != 429 {
		t.Fatalf("same ip other port should share the window, got %d", c)
	}
	if c := send("10.0.0.2:1234"); c != 200 {
		t.Fatalf("other ip: %d", c)
	}
}

func TestRateLimit_StoreFailureFailsOpen(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	RateLimit(brokenLimiter{}, "x", nil)(okHandler).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected fail-open 200, got %d", rec.Code)
	}
}
