package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/lemonmilkceo/final-sub001/internal/apperr"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders err as {"request_id", "error": {kind, code, message, details}}.
// External failures are logged and their message is replaced.
func WriteError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status := apperr.HTTPStatus(err)
	kind := apperr.KindOf(err)
	body := map[string]any{"kind": kind}

	var ae *apperr.Error
	if errors.As(err, &ae) && kind != apperr.KindExternal {
		body["code"] = ae.Code
		body["message"] = ae.Message
		if len(ae.Meta) > 0 {
			body["details"] = ae.Meta
		}
	} else {
		if log == nil {
			log = slog.Default()
		}
		log.Error("request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
		body["message"] = "service temporarily unavailable"
	}
	WriteJSON(w, status, map[string]any{
		"request_id": middleware.GetReqID(r.Context()),
		"error":      body,
	})
}
