// Package apperr is the error taxonomy shared by every service in the module.
//
// Errors carry a stable Kind (what class of failure) and an optional Code (which
// business rule). Sentinels declared in the domain packages are *Error values, so
// callers match them with errors.Is regardless of how much context was wrapped on top.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation         Kind = "validation"
	KindAuthorization      Kind = "authorization"
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindInsufficientCredit Kind = "insufficient_credit"
	KindInvalidTransition  Kind = "invalid_transition"
	KindRateLimited        Kind = "rate_limited"
	KindDecrypt            Kind = "decrypt"
	KindExternal           Kind = "external"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Meta    map[string]any
	Err     error
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind, and on Code when the target sets one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// Wrap returns a copy of e that wraps cause.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

// Withf returns a copy of e with a formatted message.
func (e *Error) Withf(format string, args ...any) *Error {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

// WithMeta returns a copy of e with key set in its metadata.
func (e *Error) WithMeta(key string, value any) *Error {
	cp := *e
	cp.Meta = make(map[string]any, len(e.Meta)+1)
	for k, v := range e.Meta {
		cp.Meta[k] = v
	}
	cp.Meta[key] = value
	return &cp
}

// Generic sentinels, one per kind.
var (
	ErrValidation    = New(KindValidation, "", "invalid input")
	ErrAuthorization = New(KindAuthorization, "", "not allowed")
	ErrNotFound      = New(KindNotFound, "", "not found")
	ErrConflict      = New(KindConflict, "", "conflict")
	ErrExternal      = New(KindExternal, "", "external service unavailable")
)

func Validation(format string, args ...any) *Error {
	return ErrValidation.Withf(format, args...)
}

func NotFound(what string) *Error {
	return ErrNotFound.Withf("%s not found", what)
}

func Forbidden(format string, args ...any) *Error {
	return ErrAuthorization.Withf(format, args...)
}

// External wraps a store or gateway failure. It is the only retryable kind.
func External(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return ErrExternal.Withf("%s failed", op).Wrap(err)
}

// KindOf returns the kind of err, or KindExternal for untyped errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindExternal
}

func Retryable(err error) bool {
	return err != nil && KindOf(err) == KindExternal
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindInsufficientCredit:
		return http.StatusPaymentRequired
	case KindInvalidTransition:
		return http.StatusUnprocessableEntity
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindDecrypt:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusServiceUnavailable
	}
}
