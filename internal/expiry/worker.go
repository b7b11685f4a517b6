package expiry

import (
	"context"
	"fmt"
	"time"

	"github.com/riverqueue/river"
)

type RunArgs struct{}

func (RunArgs) Kind() string { return "expire_contracts" }

// Worker runs the scheduler from the river queue.
type Worker struct {
	river.WorkerDefaults[RunArgs]
	scheduler *Scheduler
	now       func() time.Time
}

func NewWorker(s *Scheduler) *Worker {
	return &Worker{scheduler: s, now: time.Now}
}

func (w *Worker) Work(ctx context.Context, job *river.Job[RunArgs]) error {
	rep, err := w.scheduler.Run(ctx, w.now())
	if err != nil {
		return fmt.Errorf("expiry run: %w", err)
	}
	// Per-contract failures are retried by the next tick, not by river.
	if len(rep.Failures) > 0 {
		w.scheduler.log.Warn("expiry run had failures", "job_id", job.ID, "failures", len(rep.Failures))
	}
	return nil
}

// PeriodicJob schedules a run every interval, starting at boot.
func PeriodicJob(interval time.Duration) *river.PeriodicJob {
	return river.NewPeriodicJob(
		river.PeriodicInterval(interval),
		func() (river.JobArgs, *river.InsertOpts) {
			return RunArgs{}, &river.InsertOpts{UniqueOpts: river.UniqueOpts{ByPeriod: interval}}
		},
		&river.PeriodicJobOpts{RunOnStart: true},
	)
}
