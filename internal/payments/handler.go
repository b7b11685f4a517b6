package payments

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lemonmilkceo/final-sub001/internal/apperr"
	"github.com/lemonmilkceo/final-sub001/internal/auth"
	"github.com/lemonmilkceo/final-sub001/internal/httpx"
	"github.com/lemonmilkceo/final-sub001/internal/middleware"
	"github.com/lemonmilkceo/final-sub001/internal/models"
	"github.com/lemonmilkceo/final-sub001/internal/validate"
)

// WebhookBody is the gateway callback payload.
type WebhookBody struct {
	OrderID    string `json:"order_id"`
	Status     string `json:"status"`
	Amount     int64  `json:"amount"`
	PaymentKey string `json:"payment_key"`
}

type Handler struct {
	svc    *Service
	v      *validate.Validator
	secret []byte
	log    *slog.Logger
}

func NewHandler(svc *Service, v *validate.Validator, webhookSecret string, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, v: v, secret: []byte(webhookSecret), log: log}
}

// Create serves POST /payments.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.RequireActor(w, r)
	if !ok {
		return
	}
	var in CreateInput
	if err := h.v.Decode(r, validate.PaymentCreate, &in); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	p, err := h.svc.CreatePending(r.Context(), actor, in)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, p)
}

// List serves GET /payments.
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
		list = []*models.Payment{}
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}

// Get serves GET /payments/{id}. Only the payer or an admin may read it.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.RequireActor(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, r, h.log, apperr.Validation("invalid payment id"))
		return
	}
	p, err := h.svc.Get(r.Context(), id)
	if err == nil && p.UserID != actor.UserID && actor.Role != auth.RoleAdmin {
		err = apperr.NotFound("payment")
	}
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

// Webhook serves POST /payments/webhook. The body must carry a valid
// signature before anything in it is trusted.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, validate.MaxBodyBytes+1))
	if err != nil || len(raw) > validate.MaxBodyBytes {
		httpx.WriteError(w, r, h.log, apperr.Validation("unreadable webhook body"))
		return
	}
	if err := VerifySignature(h.secret, raw, r.Header.Get(SignatureHeader)); err != nil {
		h.log.Warn("webhook rejected", "error", err, "remote", r.RemoteAddr)
		httpx.WriteError(w, r, h.log, err)
		return
	}
	if err := h.v.Validate(validate.PaymentWebhook, raw); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	var body WebhookBody
	if err := json.Unmarshal(raw, &body); err != nil {
		httpx.WriteError(w, r, h.log, apperr.Validation("invalid JSON body").Wrap(err))
		return
	}

	if body.Status == GatewayDone {
		c, err := h.svc.Confirm(r.Context(), body.OrderID, body.Amount, body.PaymentKey)
		if err != nil {
			httpx.WriteError(w, r, h.log, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, c)
		return
	}
	status, ok := failureStatus(body.Status)
	if !ok {
		httpx.WriteError(w, r, h.log, apperr.Validation("unsupported gateway status %q", body.Status))
		return
	}
	p, err := h.svc.Fail(r.Context(), body.OrderID, status)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, Confirmation{Payment: p})
}
