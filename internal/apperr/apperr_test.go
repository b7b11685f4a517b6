package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

var errDuplicate = New(KindConflict, "duplicate_refund_request", "refund already requested")

func TestIs_MatchesKindAndCode(t *testing.T) {
	err := fmt.Errorf("request refund: %w", errDuplicate.Withf("payment %s already has a refund", "p1"))

	if !errors.Is(err, errDuplicate) {
		t.Error("expected wrapped error to match its sentinel")
	}
	if !errors.Is(err, ErrConflict) {
		t.Error("expected code-specific error to match the generic kind sentinel")
	}
	other := New(KindConflict, "double_confirmation", "")
	if errors.Is(err, other) {
		t.Error("different code must not match")
	}
	if errors.Is(err, ErrValidation) {
		t.Error("different kind must not match")
	}
}

func TestExternal(t *testing.T) {
	if External("op", nil) != nil {
		t.Fatal("External(nil) should be nil")
	}
	cause := errors.New("connection refused")
	err := External("load contract", cause)
	if !errors.Is(err, cause) {
		t.Error("External must keep the cause")
	}
	if !Retryable(err) {
		t.Error("external errors are retryable")
	}
	// Typed errors pass through untouched.
	nf := NotFound("contract")
	if got := External("load contract", nf); got != error(nf) {
		t.Errorf("typed error was rewrapped: %v", got)
	}
	if Retryable(nf) {
		t.Error("not_found must not be retryable")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Validation("bad"), http.StatusBadRequest},
		{Forbidden("nope"), http.StatusForbidden},
		{NotFound("x"), http.StatusNotFound},
		{errDuplicate, http.StatusConflict},
		{New(KindInsufficientCredit, "", ""), http.StatusPaymentRequired},
		{New(KindInvalidTransition, "", ""), http.StatusUnprocessableEntity},
		{New(KindRateLimited, "", ""), http.StatusTooManyRequests},
		{errors.New("boom"), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestWithMeta_DoesNotMutateSentinel(t *testing.T) {
	base := New(KindRateLimited, "", "slow down")
	e := base.WithMeta("remaining", 0)
	if base.Meta != nil {
		t.Error("sentinel metadata was mutated")
	}
	if e.Meta["remaining"] != 0 {
		t.Errorf("meta = %v", e.Meta)
	}
}
