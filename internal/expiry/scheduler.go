// Package expiry moves pending contracts past their signing deadline to expired
// and tells both parties about it.
package expiry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lemonmilkceo/final-sub001/internal/metrics"
	"github.com/lemonmilkceo/final-sub001/internal/models"
	"github.com/lemonmilkceo/final-sub001/internal/notify"
)

// DefaultBatchSize is how many due contracts Run fetches per query.
const DefaultBatchSize = 500

// Contracts is the slice of the lifecycle service the scheduler needs.
type Contracts interface {
	DueForExpiry(ctx context.Context, now time.Time, skip []uuid.UUID, limit int) ([]uuid.UUID, error)
	Expire(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	Lookup(ctx context.Context, id uuid.UUID) (*models.Contract, error)
}

type Failure struct {
	ContractID uuid.UUID `json:"contract_id"`
	Err        string    `json:"error"`
}

// Report summarises one Run.
type Report struct {
	Visited  int         `json:"visited"`
	Expired  []uuid.UUID `json:"expired"`
	Skipped  int         `json:"skipped"`
	Failures []Failure   `json:"failures,omitempty"`
}

type Scheduler struct {
	contracts Contracts
	sink      notify.Sink
	batch     int
	log       *slog.Logger
}

func NewScheduler(contracts Contracts, sink notify.Sink, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{contracts: contracts, sink: sink, batch: DefaultBatchSize, log: log}
}

// Run expires every contract that was due at now, fetching batches until the
// store runs dry. A failure on one contract is recorded and the rest still run;
// failed and skipped ids are excluded from later batches of the same run so they
// cannot starve the contracts behind them. Only listing errors abort.
func (s *Scheduler) Run(ctx context.Context, now time.Time) (Report, error) {
	start := time.Now()
	defer func() { metrics.ExpiryRunDuration.Observe(time.Since(start).Seconds()) }()

	var (
		rep  Report
		skip []uuid.UUID
	)
	for {
		ids, err := s.contracts.DueForExpiry(ctx, now, skip, s.batch)
		if err != nil {
			return rep, err
		}
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return rep, err
			}
			rep.Visited++
			ok, err := s.contracts.Expire(ctx, id, now)
			if err != nil {
				metrics.ExpiredContracts.WithLabelValues("error").Inc()
				s.log.Error("expire contract failed", "contract_id", id, "error", err)
				rep.Failures = append(rep.Failures, Failure{ContractID: id, Err: err.Error()})
				skip = append(skip, id)
				continue
			}
			if !ok {
				// Completed or deleted between listing and expiry.
				metrics.ExpiredContracts.WithLabelValues("skipped").Inc()
				rep.Skipped++
				skip = append(skip, id)
				continue
			}
			metrics.ExpiredContracts.WithLabelValues("expired").Inc()
			rep.Expired = append(rep.Expired, id)
			s.notifyParties(ctx, id)
		}
		if len(ids) < s.batch {
			break
		}
	}
	s.log.Info("expiry run finished",
		"visited", rep.Visited, "expired", len(rep.Expired), "skipped", rep.Skipped, "failures", len(rep.Failures))
	return rep, nil
}

func (s *Scheduler) notifyParties(ctx context.Context, id uuid.UUID) {
	if s.sink == nil {
		return
	}
	c, err := s.contracts.Lookup(ctx, id)
	if err != nil {
		s.log.Warn("load expired contract for notification", "contract_id", id, "error", err)
		return
	}
	payload, _ := json.Marshal(map[string]string{"contract_id": c.ID.String()})
	recipients := []uuid.UUID{c.EmployerID}
	if c.WorkerID != nil {
		recipients = append(recipients, *c.WorkerID)
	}
	for _, userID := range recipients {
		s.sink.Notify(ctx, models.Notification{
			UserID:  userID,
			Type:    models.NotificationContractExpired,
			Title:   "Contract expired",
			Body:    fmt.Sprintf("%q was not signed within the signing window and has expired.", c.Title),
			Payload: payload,
		})
	}
}
