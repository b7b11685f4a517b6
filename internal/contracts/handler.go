package contracts

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lemonmilkceo/final-sub001/internal/apperr"
	"github.com/lemonmilkceo/final-sub001/internal/httpx"
	"github.com/lemonmilkceo/final-sub001/internal/middleware"
	"github.com/lemonmilkceo/final-sub001/internal/models"
	"github.com/lemonmilkceo/final-sub001/internal/validate"
)

type SignRequest struct {
	Role    string `json:"role"`
	Payload string `json:"payload"`
}

type TransitionRequest struct {
	Event Event `json:"event"`
}

type ResignationRequest struct {
	ResignationDate string `json:"resignation_date"`
}

type Handler struct {
	svc *Service
	v   *validate.Validator
	log *slog.Logger
}

func NewHandler(svc *Service, v *validate.Validator, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, v: v, log: log}
}

func (h *Handler) contractID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, r, h.log, apperr.Validation("invalid contract id"))
		return uuid.Nil, false
	}
	return id, true
}

// Create serves POST /contracts.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.RequireActor(w, r)
	if !ok {
		return
	}
	var t Terms
	if err := h.v.Decode(r, validate.ContractCreate, &t); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	c, err := h.svc.Create(r.Context(), actor, t)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, c)
}

// List serves GET /contracts.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.RequireActor(w, r)
	if !ok {
		return
	}
	list, err := h.svc.List(r.Context(), actor)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	if list == nil {
		list = []*models.Contract{}
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}

// Get serves GET /contracts/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.RequireActor(w, r)
	if !ok {
		return
	}
	id, ok := h.contractID(w, r)
	if !ok {
		return
	}
	c, err := h.svc.Get(r.Context(), actor, id)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}

// Update serves PATCH /contracts/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.RequireActor(w, r)
	if !ok {
		return
	}
	id, ok := h.contractID(w, r)
	if !ok {
		return
	}
	var t Terms
	if err := h.v.Decode(r, validate.ContractUpdate, &t); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	c, err := h.svc.Update(r.Context(), actor, id, t)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}

// Delete serves DELETE /contracts/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.RequireActor(w, r)
	if !ok {
		return
	}
	id, ok := h.contractID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), actor, id); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Sign serves POST /contracts/{id}/signatures.
func (h *Handler) Sign(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.RequireActor(w, r)
	if !ok {
		return
	}
	id, ok := h.contractID(w, r)
	if !ok {
		return
	}
	var req SignRequest
	if err := h.v.Decode(r, validate.Signature, &req); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	sig, err := h.svc.Sign(r.Context(), actor, id, req.Role, req.Payload)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, sig)
}

// Transition serves POST /contracts/{id}/transitions.
func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.RequireActor(w, r)
	if !ok {
		return
	}
	id, ok := h.contractID(w, r)
	if !ok {
		return
	}
	var req TransitionRequest
	if err := h.v.Decode(r, validate.Transition, &req); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	c, err := h.svc.Transition(r.Context(), actor, id, req.Event)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}

// SetResignation serves PUT /contracts/{id}/resignation.
func (h *Handler) SetResignation(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.RequireActor(w, r)
	if !ok {
		return
	}
	id, ok := h.contractID(w, r)
	if !ok {
		return
	}
	var req ResignationRequest
	if err := h.v.Decode(r, validate.Resignation, &req); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	c, err := h.svc.SetResignationDate(r.Context(), actor, id, req.ResignationDate)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}
