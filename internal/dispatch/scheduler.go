package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/secops-bot/engine/internal/recovery"
	"github.com/secops-bot/engine/internal/sessions"
)

// Scheduler runs the periodic background sweeps the spec's concurrency
// model calls for independently of opportunistic per-request sweeping:
// SessionStore TTL expiry and the ErrorRecovery reset-interval check.
// Grounded on the teacher's internal/cron usage pattern of wrapping
// robfig/cron/v3 with named jobs logged through slog.
type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger
}

// NewScheduler builds a Scheduler; call Start to begin running jobs.
func NewScheduler(log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{cron: cron.New(), log: log}
}

// AddSessionSweep schedules SweepExpired to run every interval.
func (s *Scheduler) AddSessionSweep(store sessions.Store, ttl, interval time.Duration) error {
	spec := "@every " + interval.String()
	_, err := s.cron.AddFunc(spec, func() {
		n, err := store.SweepExpired(context.Background(), time.Now(), ttl)
		if err != nil {
			s.log.Warn("scheduler: session sweep failed", "error", err)
			return
		}
		if n > 0 {
			s.log.Info("scheduler: swept expired sessions", "count", n)
		}
	})
	return err
}

// AddRecoveryHealthLog schedules a periodic health snapshot log, surfacing
// per-class error counts and availability for operators watching logs
// rather than the /metrics endpoint.
func (s *Scheduler) AddRecoveryHealthLog(mgr *recovery.Manager, interval time.Duration) error {
	spec := "@every " + interval.String()
	_, err := s.cron.AddFunc(spec, func() {
		health := mgr.HealthSnapshot()
		s.log.Info("scheduler: recovery health", "counts", health.Counts, "availability", health.Availability)
	})
	return err
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler, waiting for any running job to finish.
func (s *Scheduler) Stop(ctx context.Context) {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
}
