// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"fmt"
	"time"

	"conversation-workers/internal/common/config"
	"conversation-workers/internal/common/logger"
	"conversation-workers/internal/common/observability"
	"conversation-workers/internal/outcome"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	JobTimeoutSweep  = "timeout-sweep"
	JobBookingSweep  = "booking-sweep"
	JobFinishedCheck = "finished-check"
)

type Sweeps interface {
	MarkTimeoutAbandoned(ctx context.Context, tenantID, userID string) (*outcome.BatchResult, error)
	MarkBookingAbandoned(ctx context.Context, tenantID, userID string) (*outcome.BatchResult, error)
}

type FinishedChecker interface {
	CheckFinishedConversations(ctx context.Context) (*outcome.BatchResult, error)
}

// Scheduler runs the periodic reconciliation sweeps across all tenants.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	obs     *observability.Observability
	logger  logger.Logger
	entries map[string]cron.EntryID
}

func New(cfg config.SchedulerConfig, sweeps Sweeps, finished FinishedChecker, obs *observability.Observability, log logger.Logger) (*Scheduler, error) {
	log = log.WithFields(map[string]interface{}{"component": "scheduler"})
	cl := cronLogger{log}

	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		timeout: config.GetDuration(cfg.JobTimeout),
		obs:     obs,
		logger:  log,
		entries: make(map[string]cron.EntryID),
	}

	jobs := []struct {
		name string
		spec string
		run  func(context.Context) (*outcome.BatchResult, error)
	}{
		{JobTimeoutSweep, cfg.TimeoutSweep, func(ctx context.Context) (*outcome.BatchResult, error) {
			return sweeps.MarkTimeoutAbandoned(ctx, "", "")
		}},
		{JobBookingSweep, cfg.BookingSweep, func(ctx context.Context) (*outcome.BatchResult, error) {
			return sweeps.MarkBookingAbandoned(ctx, "", "")
		}},
		{JobFinishedCheck, cfg.FinishedSweep, finished.CheckFinishedConversations},
	}

	for _, j := range jobs {
		id, err := s.cron.AddFunc(j.spec, s.job(j.name, j.run))
		if err != nil {
			return nil, fmt.Errorf("invalid %s schedule %q: %w", j.name, j.spec, err)
		}
		s.entries[j.name] = id
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", map[string]interface{}{"jobs": len(s.entries)})
}

// Stop prevents new runs. The returned context is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("scheduler stopping", nil)
	return s.cron.Stop()
}

// Next reports when the named job runs next.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	id, ok := s.entries[name]
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

func (s *Scheduler) job(name string, run func(context.Context) (*outcome.BatchResult, error)) func() {
	return func() {
		ctx := context.Background()
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}

		ctx, span := s.obs.StartSpan(ctx, "sweep."+name, attribute.String("job", name))
		defer span.End()

		start := time.Now()
		result, err := run(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.logger.Error("scheduled job failed", map[string]interface{}{
				"job":      name,
				"duration": time.Since(start).String(),
				"error":    err,
			})
			return
		}

		s.obs.RecordSweep(ctx, name, result.Processed, result.Total)
		span.SetAttributes(
			attribute.Int("sessions.total", result.Total),
			attribute.Int("sessions.processed", result.Processed),
		)
		s.logger.Info("scheduled job finished", map[string]interface{}{
			"job":      name,
			"summary":  result.Summary(),
			"duration": time.Since(start).String(),
		})
	}
}

// cronLogger routes cron's own logging through the service logger.
type cronLogger struct {
	log logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug(msg, kvToFields(keysAndValues))
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := kvToFields(keysAndValues)
	fields["error"] = err
	c.log.Error(msg, fields)
}

func kvToFields(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2+1)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
