package expiry

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/lemonmilkceo/final-sub001/internal/httpx"
)

type Handler struct {
	s   *Scheduler
	log *slog.Logger
}

func NewHandler(s *Scheduler, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{s: s, log: log}
}

// Run serves POST /admin/expiry/run and returns the batch report.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	rep, err := h.s.Run(r.Context(), time.Now())
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rep)
}
