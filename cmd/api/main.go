package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"

	"github.com/lemonmilkceo/final-sub001/internal/auth"
	"github.com/lemonmilkceo/final-sub001/internal/config"
	"github.com/lemonmilkceo/final-sub001/internal/contracts"
	"github.com/lemonmilkceo/final-sub001/internal/db"
	"github.com/lemonmilkceo/final-sub001/internal/expiry"
	"github.com/lemonmilkceo/final-sub001/internal/ledger"
	"github.com/lemonmilkceo/final-sub001/internal/notify"
	"github.com/lemonmilkceo/final-sub001/internal/payments"
	"github.com/lemonmilkceo/final-sub001/internal/pii"
	"github.com/lemonmilkceo/final-sub001/internal/ratelimit"
	"github.com/lemonmilkceo/final-sub001/internal/refund"
	"github.com/lemonmilkceo/final-sub001/internal/router"
	"github.com/lemonmilkceo/final-sub001/internal/validate"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		slog.Error("Cannot reach PostgreSQL. Ensure Postgres is running, e.g. docker-compose up -d", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	slog.Info("Connected to PostgreSQL database successfully!")

	if err := db.Migrate(ctx, pool); err != nil {
		slog.Error("Migrations failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Migrations applied")

	validator, err := validate.New()
	if err != nil {
		slog.Error("Schema validator init failed", "error", err)
		os.Exit(1)
	}

	// Ledger and payments
	ledgerSvc := ledger.NewService(ledger.NewRepository(pool), logger)
	paymentsSvc := payments.NewService(pool, payments.NewRepository(pool), ledgerSvc, logger)

	// Contracts, refunds, notifications
	contractsSvc := contracts.NewService(contracts.NewRepository(pool), ledgerSvc, logger)
	refundSvc := refund.NewService(refund.NewRepository(pool), paymentsSvc, ledgerSvc, logger)
	notifications := notify.NewStore(pool, logger)

	// PII
	enc, err := pii.NewEncryptor(cfg.PII.Secret, cfg.PII.LookupSalt, pii.KeyDerivation(cfg.PII.KeyDerivation))
	if err != nil {
		slog.Error("PII encryptor init failed", "error", err)
		os.Exit(1)
	}
	reader := pii.NewReader(enc, pii.NewPGAccessLogger(pool, logger), logger)
	profileSvc := pii.NewProfileService(pii.NewProfileRepository(pool), enc, reader, logger)

	// Expiry runs on River so only one instance picks up each tick.
	scheduler := expiry.NewScheduler(contractsSvc, notifications, logger)
	workers := river.NewWorkers()
	river.AddWorker(workers, expiry.NewWorker(scheduler))
	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 2},
		},
		Workers:      workers,
		PeriodicJobs: []*river.PeriodicJob{expiry.PeriodicJob(cfg.Expiry.Interval.Duration)},
		Logger:       logger,
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	limiter, closeLimiter := newLimiter(cfg.RateLimit)
	defer closeLimiter()

	handler := router.New(router.Handlers{
		Contracts:     contracts.NewHandler(contractsSvc, validator, logger),
		Ledger:        ledger.NewHandler(ledgerSvc, validator, logger),
		Refunds:       refund.NewHandler(refundSvc, validator, logger),
		Payments:      payments.NewHandler(paymentsSvc, validator, cfg.Payments.WebhookSecret, logger),
		Profiles:      pii.NewHandler(profileSvc, validator, logger),
		Notifications: notify.NewHandler(notifications, logger),
		Expiry:        expiry.NewHandler(scheduler, logger),
	}, router.Options{
		Tokens:      auth.NewService(cfg.Auth.JWTSecret),
		Limiter:     limiter,
		CORSOrigins: cfg.Server.CORSOrigins,
		Log:         logger,
	})

	if err := riverClient.Start(ctx); err != nil {
		slog.Error("River client failed to start", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("Starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown", "error", err)
	}
	if err := riverClient.Stop(shutdownCtx); err != nil {
		slog.Error("River stop", "error", err)
	}
}

// newLimiter builds the rate limiter over the configured counter store.
func newLimiter(cfg config.RateLimitConfig) (*ratelimit.Limiter, func()) {
	rules := make(map[string]ratelimit.Rule, len(cfg.Rules))
	for _, r := range cfg.Rules {
		rules[r.Endpoint] = ratelimit.Rule{Limit: r.Limit, Window: r.Window.Duration}
	}
	if cfg.Backend == "redis" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		slog.Info("Rate limiting backed by Redis", "addr", cfg.RedisAddr)
		return ratelimit.New(ratelimit.NewRedisStore(client, ""), rules), func() { _ = client.Close() }
	}
	slog.Warn("Rate limiting uses in-process counters; limits are per instance")
	return ratelimit.New(ratelimit.NewMemoryStore(), rules), func() {}
}
