package pii

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lemonmilkceo/final-sub001/internal/apperr"
	"github.com/lemonmilkceo/final-sub001/internal/httpx"
	"github.com/lemonmilkceo/final-sub001/internal/middleware"
	"github.com/lemonmilkceo/final-sub001/internal/validate"
)

type Handler struct {
	svc *ProfileService
	v   *validate.Validator
	log *slog.Logger
}

func NewHandler(svc *ProfileService, v *validate.Validator, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, v: v, log: log}
}

// PutMine serves PUT /me/profile.
func (h *Handler) PutMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.RequireActor(w, r)
	if !ok {
		return
	}
	var in ProfileInput
	if err := h.v.Decode(r, validate.Profile, &in); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	view, err := h.svc.Save(r.Context(), actor, in)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, view)
}

// GetMine serves GET /me/profile.
func (h *Handler) GetMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.RequireActor(w, r)
	if !ok {
		return
	}
	h.get(w, r, actor.UserID)
}

// GetUser serves GET /admin/users/{userID}/profile.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		httpx.WriteError(w, r, h.log, apperr.Validation("invalid user id"))
		return
	}
	h.get(w, r, id)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	actor, ok := middleware.RequireActor(w, r)
	if !ok {
		return
	}
	view, err := h.svc.Get(r.Context(), actor, userID)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, view)
}

type duplicateLookup struct {
	NationalID string `json:"national_id"`
}

// Duplicates serves POST /admin/pii/duplicates. Matches share a hashed
// national-id prefix and are candidates for review, not proof of identity.
func (h *Handler) Duplicates(w http.ResponseWriter, r *http.Request) {
	var body duplicateLookup
	if err := h.v.Decode(r, validate.DuplicateLookup, &body); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	ids, err := h.svc.FindDuplicates(r.Context(), body.NationalID)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"user_ids": ids})
}
