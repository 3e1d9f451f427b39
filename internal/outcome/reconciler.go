// internal/outcome/reconciler.go
package outcome

import (
	"context"
	"errors"
	"fmt"
	"time"

	"conversation-workers/internal/common/config"
	"conversation-workers/internal/common/logger"
	"conversation-workers/internal/common/metrics"
)

type Config struct {
	TimeoutAfter        time.Duration
	BookingAbandonAfter time.Duration
	FinishedAfter       time.Duration
	ScanLimit           int
	SweepConcurrency    int
	SpamConfidence      float64
}

func ConfigFrom(cfg config.ReconcilerConfig) Config {
	return Config{
		TimeoutAfter:        config.GetDuration(cfg.TimeoutAfter),
		BookingAbandonAfter: config.GetDuration(cfg.BookingAbandonAfter),
		FinishedAfter:       config.GetDuration(cfg.FinishedAfter),
		ScanLimit:           cfg.ScanLimit,
		SweepConcurrency:    cfg.SweepConcurrency,
		SpamConfidence:      cfg.SpamConfidence,
	}
}

// Reconciler records exactly one terminal outcome per conversation session.
// The conditional UPDATE in the store is its only concurrency control.
type Reconciler struct {
	store        MessageStore
	telemetry    TelemetrySink
	appointments AppointmentDetector
	config       Config
	logger       logger.Logger
	now          func() time.Time
}

// NewReconciler wires the reconciler. telemetry and appointments may be nil.
func NewReconciler(store MessageStore, telemetry TelemetrySink, appointments AppointmentDetector, cfg Config, log logger.Logger) *Reconciler {
	return &Reconciler{
		store:        store,
		telemetry:    telemetry,
		appointments: appointments,
		config:       cfg,
		logger:       log.WithFields(map[string]interface{}{"component": "outcome-reconciler"}),
		now:          time.Now,
	}
}

// UpdateConversationOutcome finalizes the session of conversationID with
// outcome. A nil error means the session ends up finalized, either by this
// call or by an earlier writer.
func (r *Reconciler) UpdateConversationOutcome(ctx context.Context, conversationID string, outcome Outcome) (UpdateResult, error) {
	return r.update(ctx, conversationID, outcome, SourceUpdateOutcome)
}

func (r *Reconciler) MarkAppointmentCreated(ctx context.Context, conversationID string) (UpdateResult, error) {
	return r.update(ctx, conversationID, OutcomeAppointmentCreated, SourceAppointmentCreated)
}

func (r *Reconciler) update(ctx context.Context, conversationID string, outcome Outcome, source Source) (result UpdateResult, err error) {
	defer func() {
		metrics.OutcomeUpdates.WithLabelValues(string(result)).Inc()
	}()

	log := r.logger.WithFields(map[string]interface{}{
		"conversationId": conversationID,
		"outcome":        string(outcome),
		"source":         string(source),
	})

	if !outcome.Valid() {
		log.Warn("rejected unknown outcome", nil)
		return ResultFailed, fmt.Errorf("%w: %q", ErrInvalidOutcome, outcome)
	}

	msg, err := r.store.GetMessage(ctx, conversationID)
	if err != nil {
		log.Error("failed to load message", map[string]interface{}{"error": err})
		if errors.Is(err, ErrMessageNotFound) {
			return ResultFailed, err
		}
		return ResultFailed, fmt.Errorf("%w: %v", ErrOutcomeUpdateFailed, err)
	}

	if msg.HasOutcome() {
		log.Debug("message already finalized", map[string]interface{}{"existingOutcome": msg.Outcome})
		return ResultAlreadyFinalized, nil
	}

	if msg.SessionID == "" {
		log.Warn("message has no session", nil)
		return ResultFailed, fmt.Errorf("%w: message %s has no session", ErrSessionNotFound, conversationID)
	}

	last, err := r.store.GetLatestMessage(ctx, msg.SessionID)
	if err != nil {
		log.Error("failed to resolve last message of session", map[string]interface{}{
			"sessionId": msg.SessionID,
			"error":     err,
		})
		if errors.Is(err, ErrSessionNotFound) {
			return ResultFailed, err
		}
		return ResultFailed, fmt.Errorf("%w: %v", ErrOutcomeUpdateFailed, err)
	}

	affected, err := r.store.SetOutcomeIfNull(ctx, last.ID, outcome, r.now().UTC())
	if err != nil {
		log.Error("outcome update failed", map[string]interface{}{"targetId": last.ID, "error": err})
		return ResultFailed, fmt.Errorf("%w: %v", ErrOutcomeUpdateFailed, err)
	}
	if affected == 0 {
		log.Info("outcome already written by a concurrent caller", map[string]interface{}{"targetId": last.ID})
		return ResultRaceLost, nil
	}

	metrics.OutcomesFinalized.WithLabelValues(string(outcome)).Inc()
	log.Info("conversation outcome recorded", map[string]interface{}{
		"sessionId": msg.SessionID,
		"targetId":  last.ID,
	})

	r.emitTelemetry(ctx, msg.SessionID, msg.TenantID, msg.UserID, last.ID, outcome, source)
	return ResultApplied, nil
}

// emitTelemetry never fails the write it follows.
func (r *Reconciler) emitTelemetry(ctx context.Context, sessionID, tenantID, userID, conversationID string, outcome Outcome, source Source) {
	if r.telemetry == nil {
		return
	}

	event := "outcome_finalized"
	var err error
	if outcome.IsAbandonment() {
		event = "conversation_abandoned"
		reason := outcome.AbandonmentReason()
		metrics.ConversationsAbandoned.WithLabelValues(string(reason)).Inc()
		err = r.telemetry.RecordConversationAbandoned(ctx, AbandonmentEvent{
			SessionID:      sessionID,
			TenantID:       tenantID,
			UserID:         userID,
			ConversationID: conversationID,
			Reason:         reason,
			Outcome:        outcome,
			Source:         source,
		})
	} else {
		err = r.telemetry.RecordOutcomeFinalized(ctx, OutcomeEvent{
			SessionID:      sessionID,
			TenantID:       tenantID,
			UserID:         userID,
			ConversationID: conversationID,
			Outcome:        outcome,
			Source:         source,
		})
	}

	if err != nil {
		metrics.TelemetryFailures.WithLabelValues(event).Inc()
		r.logger.Warn("telemetry emission failed", map[string]interface{}{
			"event":     event,
			"sessionId": sessionID,
			"error":     err,
		})
	}
}
