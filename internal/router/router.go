// Package router mounts every HTTP handler under /api/v1 on a chi router.
package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/lemonmilkceo/final-sub001/internal/contracts"
	"github.com/lemonmilkceo/final-sub001/internal/expiry"
	"github.com/lemonmilkceo/final-sub001/internal/httpx"
	"github.com/lemonmilkceo/final-sub001/internal/ledger"
	"github.com/lemonmilkceo/final-sub001/internal/middleware"
	"github.com/lemonmilkceo/final-sub001/internal/notify"
	"github.com/lemonmilkceo/final-sub001/internal/payments"
	"github.com/lemonmilkceo/final-sub001/internal/pii"
	"github.com/lemonmilkceo/final-sub001/internal/refund"
)

// Rate-limited endpoint names, matched against [[ratelimit.rules]] in config.
const (
	EndpointConsume       = "credits.consume"
	EndpointRefundRequest = "refunds.request"
	EndpointProfile       = "pii.profile"
)

type Handlers struct {
	Contracts     *contracts.Handler
	Ledger        *ledger.Handler
	Refunds       *refund.Handler
	Payments      *payments.Handler
	Profiles      *pii.Handler
	Notifications *notify.Handler
	Expiry        *expiry.Handler
}

type Options struct {
	Tokens      middleware.TokenValidator
	Limiter     middleware.Limiter
	CORSOrigins []string
	Log         *slog.Logger
}

// New returns the root handler: request id, panic recovery and CORS around
// the /api/v1 tree, plus /healthz and /metrics.
func New(h Handlers, opts Options) http.Handler {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	limit := func(endpoint string) func(http.Handler) http.Handler {
		return middleware.RateLimit(opts.Limiter, endpoint, log)
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Gateway callbacks authenticate by signature, not bearer token.
		r.Post("/payments/webhook", h.Payments.Webhook)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(opts.Tokens))

			r.Route("/contracts", func(r chi.Router) {
				r.Post("/", h.Contracts.Create)
				r.Get("/", h.Contracts.List)
				r.Get("/{id}", h.Contracts.Get)
				r.Patch("/{id}", h.Contracts.Update)
				r.Delete("/{id}", h.Contracts.Delete)
				r.Post("/{id}/signatures", h.Contracts.Sign)
				r.Post("/{id}/transitions", h.Contracts.Transition)
				r.Put("/{id}/resignation", h.Contracts.SetResignation)
			})

			r.Get("/credits", h.Ledger.Balances)
			r.Get("/credits/transactions", h.Ledger.Transactions)
			r.With(limit(EndpointConsume)).Post("/credits/consume", h.Ledger.Consume)

			r.Post("/payments", h.Payments.Create)
			r.Get("/payments", h.Payments.List)
			r.Get("/payments/{id}", h.Payments.Get)
			r.Get("/payments/{id}/refund-quote", h.Refunds.Quote)
			r.With(limit(EndpointRefundRequest)).Post("/payments/{id}/refund-requests", h.Refunds.Request)
			r.Get("/refund-requests", h.Refunds.List)
			r.Post("/refund-requests/{id}/cancel", h.Refunds.Cancel)

			r.Group(func(r chi.Router) {
				r.Use(limit(EndpointProfile))
				r.Put("/me/profile", h.Profiles.PutMine)
				r.Get("/me/profile", h.Profiles.GetMine)
			})
			r.Get("/notifications", h.Notifications.List)

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.With(limit(EndpointProfile)).Get("/users/{userID}/profile", h.Profiles.GetUser)
				r.Post("/pii/duplicates", h.Profiles.Duplicates)
				r.Post("/expiry/run", h.Expiry.Run)
			})
		})
	})

	return cors.New(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
	}).Handler(r)
}
