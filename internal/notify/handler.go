package notify

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/lemonmilkceo/final-sub001/internal/apperr"
	"github.com/lemonmilkceo/final-sub001/internal/httpx"
	"github.com/lemonmilkceo/final-sub001/internal/middleware"
)

type Lister interface {
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*Stored, error)
}

type Handler struct {
	list Lister
	log  *slog.Logger
}

func NewHandler(list Lister, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{list: list, log: log}
}

// List serves GET /notifications?limit=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.RequireActor(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	out, err := h.list.ListForUser(r.Context(), actor.UserID, limit)
	if err != nil {
		httpx.WriteError(w, r, h.log, apperr.External("list notifications", err))
		return
	}
	if out == nil {
		out = []*Stored{}
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
