// Package contracts owns the contract lifecycle: draft → pending → completed,
// with pending → expired on timeout. Soft delete is a DeletedAt marker that
// sits outside the status machine and blocks every further event.
package contracts

import (
	"time"

	"github.com/lemonmilkceo/final-sub001/internal/apperr"
	"github.com/lemonmilkceo/final-sub001/internal/models"
)

type Event string

const (
	EventSubmit   Event = "submit"
	EventComplete Event = "complete"
	EventExpire   Event = "expire"
)

const (
	// SigningWindow is how long a submitted contract waits for the worker.
	SigningWindow = 7 * 24 * time.Hour
	// EditWindow is how long a completed contract stays editable by the employer.
	EditWindow = 7 * 24 * time.Hour
)

var (
	ErrInvalidTransition  = apperr.New(apperr.KindInvalidTransition, "invalid_transition", "transition not allowed")
	ErrEditWindowClosed   = apperr.New(apperr.KindInvalidTransition, "edit_window_closed", "contract can no longer be edited")
	ErrContractDeleted    = apperr.New(apperr.KindInvalidTransition, "contract_deleted", "contract is deleted")
	ErrSignatureRequired  = apperr.New(apperr.KindInvalidTransition, "signature_required", "required signature is missing")
	ErrNotYetExpired      = apperr.New(apperr.KindInvalidTransition, "not_yet_expired", "contract has not reached its expiry time")
	ErrDuplicateSignature = apperr.New(apperr.KindConflict, "duplicate_signature", "contract already signed for this role")
)

// Statuses lists every lifecycle status.
var Statuses = []string{
	models.ContractStatusDraft,
	models.ContractStatusPending,
	models.ContractStatusCompleted,
	models.ContractStatusExpired,
}

// Events lists every lifecycle event.
var Events = []Event{EventSubmit, EventComplete, EventExpire}

var transitions = map[string]map[Event]string{
	models.ContractStatusDraft:     {EventSubmit: models.ContractStatusPending},
	models.ContractStatusPending:   {EventComplete: models.ContractStatusCompleted, EventExpire: models.ContractStatusExpired},
	models.ContractStatusCompleted: {},
	models.ContractStatusExpired:   {},
}

// Next returns the status reached from status on event, or ErrInvalidTransition.
// It is defined for every (status, event) pair.
func Next(status string, event Event) (string, error) {
	to, ok := transitions[status][event]
	if !ok {
		return "", ErrInvalidTransition.Withf("cannot %s a %s contract", event, status).
			WithMeta("status", status).WithMeta("event", string(event))
	}
	return to, nil
}

// Change is the row update a transition applies. From is the status the update
// is conditioned on.
type Change struct {
	From        string
	To          string
	ExpiresAt   *time.Time
	CompletedAt *time.Time
}

func hasSignature(sigs []*models.Signature, role string) bool {
	for _, s := range sigs {
		if s.Role == role {
			return true
		}
	}
	return false
}

// Plan validates event against c and its signatures at now and returns the
// change to apply. It does not mutate c.
func Plan(c *models.Contract, sigs []*models.Signature, event Event, now time.Time) (Change, error) {
	if c.DeletedAt != nil {
		return Change{}, ErrContractDeleted
	}
	to, err := Next(c.Status, event)
	if err != nil {
		return Change{}, err
	}
	ch := Change{From: c.Status, To: to}
	switch event {
	case EventSubmit:
		if !hasSignature(sigs, models.RoleEmployer) {
			return Change{}, ErrSignatureRequired.Withf("employer signature is required before submitting")
		}
		exp := now.Add(SigningWindow)
		ch.ExpiresAt = &exp
	case EventComplete:
		if !hasSignature(sigs, models.RoleWorker) {
			return Change{}, ErrSignatureRequired.Withf("worker signature is required before completing")
		}
		done := now
		ch.CompletedAt = &done
	case EventExpire:
		if c.ExpiresAt == nil || !now.After(*c.ExpiresAt) {
			return Change{}, ErrNotYetExpired
		}
	}
	return ch, nil
}

// Apply copies ch onto c. Leaving pending always clears ExpiresAt.
func Apply(c *models.Contract, ch Change) {
	c.Status = ch.To
	c.ExpiresAt = ch.ExpiresAt
	if ch.CompletedAt != nil {
		c.CompletedAt = ch.CompletedAt
	}
}

// CanEdit reports whether the employer may still change c's terms at now.
func CanEdit(c *models.Contract, now time.Time) error {
	if c.DeletedAt != nil {
		return ErrContractDeleted
	}
	switch c.Status {
	case models.ContractStatusDraft, models.ContractStatusPending:
		return nil
	case models.ContractStatusCompleted:
		if c.CompletedAt != nil && !now.After(c.CompletedAt.Add(EditWindow)) {
			return nil
		}
		return ErrEditWindowClosed.WithMeta("completed_at", c.CompletedAt)
	default:
		return ErrEditWindowClosed.Withf("%s contracts cannot be edited", c.Status)
	}
}

// CanDelete reports whether c may be soft-deleted.
func CanDelete(c *models.Contract) error {
	if c.DeletedAt != nil {
		return ErrContractDeleted
	}
	if c.Status != models.ContractStatusDraft && c.Status != models.ContractStatusPending {
		return ErrInvalidTransition.Withf("cannot delete a %s contract", c.Status)
	}
	return nil
}
