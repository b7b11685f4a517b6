package refund

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

type RequestBody struct {
	Reason string `json:"reason"`
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

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, r, h.log, apperr.Validation("invalid %s id", what))
		return uuid.Nil, false
	}
	return id, true
}

// Request serves POST /payments/{id}/refund-requests.
func (h *Handler) Request(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.RequireActor(w, r)
	if !ok {
		return
	}
	paymentID, ok := h.pathID(w, r, "payment")
	if !ok {
		return
	}
	var body RequestBody
	if err := h.v.Decode(r, validate.RefundRequest, &body); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	rr, err := h.svc.RequestRefund(r.Context(), actor, paymentID, body.Reason)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, rr)
}

// Quote serves GET /payments/{id}/refund-quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.RequireActor(w, r)
	if !ok {
		return
	}
	paymentID, ok := h.pathID(w, r, "payment")
	if !ok {
		return
	}
	q, err := h.svc.Preview(r.Context(), actor, paymentID)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, q)
}

// List serves GET /refund-requests.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.RequireActor(w, r)
	if !ok {
		return
	}
	list, err := h.svc.ListMine(r.Context(), actor)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	if list == nil {
		list = []*models.RefundRequest{}
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}

// Cancel serves POST /refund-requests/{id}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.RequireActor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "refund request")
	if !ok {
		return
	}
	if err := h.svc.Cancel(r.Context(), actor, id); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
