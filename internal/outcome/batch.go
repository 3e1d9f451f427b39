package outcome

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"conversation-workers/internal/common/metrics"
	"conversation-workers/internal/models"

	"golang.org/x/sync/errgroup"
)

const (
	SweepTimeout  = "timeout_sweep"
	SweepBooking  = "booking_sweep"
	SweepFinished = "finished_check"
)

// BatchResult counts the sessions a sweep visited. Outcome is empty for
// sweeps that pick the outcome per session.
type BatchResult struct {
	Outcome   Outcome `json:"outcome,omitempty"`
	Total     int     `json:"total"`
	Processed int     `json:"processed"`
	Failed    int     `json:"failed"`
}

func (b *BatchResult) Summary() string {
	return fmt.Sprintf("%d/%d sessões marcadas", b.Processed, b.Total)
}

// MarkTimeoutAbandoned marks sessions idle for longer than TimeoutAfter as
// timeout_abandoned. Empty tenantID or userID widen the scan. Sessions with a
// booking request are left to MarkBookingAbandoned.
func (r *Reconciler) MarkTimeoutAbandoned(ctx context.Context, tenantID, userID string) (*BatchResult, error) {
	return r.markStale(ctx, SweepTimeout, StaleSessionQuery{
		TenantID:       tenantID,
		UserID:         userID,
		Before:         r.now().Add(-r.config.TimeoutAfter),
		ExcludeBooking: true,
	}, OutcomeTimeoutAbandoned, SourceTimeoutSweep)
}

// MarkBookingAbandoned marks sessions idle for longer than
// BookingAbandonAfter as booking_abandoned.
func (r *Reconciler) MarkBookingAbandoned(ctx context.Context, tenantID, userID string) (*BatchResult, error) {
	return r.markStale(ctx, SweepBooking, StaleSessionQuery{
		TenantID: tenantID,
		UserID:   userID,
		Before:   r.now().Add(-r.config.BookingAbandonAfter),
	}, OutcomeBookingAbandoned, SourceBookingSweep)
}

func (r *Reconciler) markStale(ctx context.Context, job string, q StaleSessionQuery, outcome Outcome, source Source) (*BatchResult, error) {
	q.Limit = r.config.ScanLimit
	sessions, err := r.store.FindStaleSessions(ctx, q)
	if err != nil {
		r.logger.Error("stale session scan failed", map[string]interface{}{"job": job, "error": err})
		return nil, fmt.Errorf("%w: %v", ErrSessionScanFailed, err)
	}

	result := r.runSweep(ctx, job, sessions, func(ctx context.Context, s models.StaleSession) error {
		_, err := r.update(ctx, s.LastMessageID, outcome, source)
		return err
	})
	result.Outcome = outcome
	return result, nil
}

// runSweep applies fn to every session with at most SweepConcurrency in
// flight. A failing session is counted and logged, the others continue.
func (r *Reconciler) runSweep(ctx context.Context, job string, sessions []models.StaleSession, fn func(context.Context, models.StaleSession) error) *BatchResult {
	start := time.Now()
	defer func() {
		metrics.SweepDuration.WithLabelValues(job).Observe(time.Since(start).Seconds())
	}()

	limit := r.config.SweepConcurrency
	if limit < 1 {
		limit = 1
	}

	var processed atomic.Int64
	var g errgroup.Group
	g.SetLimit(limit)

	for _, session := range sessions {
		g.Go(func() error {
			if err := fn(ctx, session); err != nil {
				metrics.SweepSessions.WithLabelValues(job, "failed").Inc()
				r.logger.Warn("session not marked", map[string]interface{}{
					"job":       job,
					"sessionId": session.SessionID,
					"error":     err,
				})
				return nil
			}
			metrics.SweepSessions.WithLabelValues(job, "processed").Inc()
			processed.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	result := &BatchResult{
		Total:     len(sessions),
		Processed: int(processed.Load()),
	}
	result.Failed = result.Total - result.Processed

	r.logger.Info(result.Summary(), map[string]interface{}{
		"job":       job,
		"total":     result.Total,
		"processed": result.Processed,
		"failed":    result.Failed,
	})
	return result
}
