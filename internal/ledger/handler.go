package ledger

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/lemonmilkceo/final-sub001/internal/apperr"
	"github.com/lemonmilkceo/final-sub001/internal/httpx"
	"github.com/lemonmilkceo/final-sub001/internal/middleware"
	"github.com/lemonmilkceo/final-sub001/internal/models"
	validation "github.com/lemonmilkceo/final-sub001/internal/validate"
)

type ConsumeRequest struct {
	CreditType  string `json:"credit_type"`
	Amount      int    `json:"amount"`
	ReferenceID string `json:"reference_id"`
}

type BalancesResponse struct {
	Balances map[string]int `json:"balances"`
}

type Handler struct {
	svc Service
	v   *validation.Validator
	log *slog.Logger
}

func NewHandler(svc Service, v *validation.Validator, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, v: v, log: log}
}

// Balances serves GET /credits.
func (h *Handler) Balances(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.RequireActor(w, r)
	if !ok {
		return
	}
	b, err := h.svc.Balances(r.Context(), actor.UserID)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, BalancesResponse{Balances: b})
}

// Transactions serves GET /credits/transactions?credit_type=&since=.
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.RequireActor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	creditType := q.Get("credit_type")
	if creditType == "" {
		creditType = models.CreditTypeContract
	}
	var since time.Time
	if s := q.Get("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			httpx.WriteError(w, r, h.log, apperr.Validation("since must be RFC3339"))
			return
		}
		since = t
	}
	list, err := h.svc.History(r.Context(), actor.UserID, creditType, since)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	if list == nil {
		list = []*models.CreditTransaction{}
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}

// Consume serves POST /credits/consume.
func (h *Handler) Consume(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.RequireActor(w, r)
	if !ok {
		return
	}
	var req ConsumeRequest
	if err := h.v.Decode(r, validation.Consume, &req); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	c, err := h.svc.Consume(r.Context(), actor.UserID, req.CreditType, req.Amount, req.ReferenceID)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, c)
}
