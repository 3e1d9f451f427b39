// internal/workers/conversation/mark-abandoned-sessions/handler.go
package markabandonedsessions

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"time"

	"conversation-workers/internal/common/errors"
	"conversation-workers/internal/common/logger"
	"conversation-workers/internal/common/metrics"
	"conversation-workers/internal/common/observability"
	"conversation-workers/internal/common/validation"
	"conversation-workers/internal/outcome"
	"conversation-workers/internal/telemetry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const TaskType = "mark-abandoned-sessions"

type Sweeper interface {
	MarkTimeoutAbandoned(ctx context.Context, tenantID, userID string) (*outcome.BatchResult, error)
	MarkBookingAbandoned(ctx context.Context, tenantID, userID string) (*outcome.BatchResult, error)
}

// SessionCloser closes the intent telemetry of a single session without
// writing a conversation outcome.
type SessionCloser interface {
	MarkSessionAbandoned(ctx context.Context, sessionID string) error
}

type Handler struct {
	config    *Config
	sweeper   Sweeper
	sessions  SessionCloser
	validator *validation.Validator
	obs       *observability.Observability
	logger    logger.Logger
}

func NewHandler(config *Config, sweeper Sweeper, sessions SessionCloser, validator *validation.Validator, obs *observability.Observability, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		sweeper:   sweeper,
		sessions:  sessions,
		validator: validator,
		obs:       obs,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	ctx, span := h.obs.StartSpan(ctx, TaskType, attribute.Int64("job.key", job.GetKey()))
	defer span.End()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.GetKey(),
		"workflowKey": job.GetProcessInstanceKey(),
	})

	input, err := h.parseInput(job)
	if err != nil {
		h.failJob(ctx, client, job, err)
		span.SetStatus(codes.Error, "invalid input")
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.failJob(ctx, client, job, err)
		span.SetStatus(codes.Error, err.Error())
		return
	}

	h.obs.RecordSweep(ctx, input.Kind, output.Processed, output.Total)
	h.completeJob(ctx, client, job, output, start)
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInputValidationFailedError(err.Error())
	}
	if result := h.validator.Validate(TaskType, variables); !result.Valid {
		return nil, errors.NewInputValidationFailedError(strings.Join(result.GetErrorMessages(), "; "))
	}

	var input Input
	if err := json.Unmarshal([]byte(job.GetVariables()), &input); err != nil {
		return nil, errors.NewInputValidationFailedError(err.Error())
	}
	if input.Kind == KindSession && input.SessionID == "" {
		return nil, errors.NewInputValidationFailedError("sessionId: required for kind session")
	}
	return &input, nil
}

// Execute runs the sweep named by input.Kind. Individual session failures
// are counted in the output; only a failed scan fails the job.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	var (
		result *outcome.BatchResult
		err    error
	)

	switch input.Kind {
	case KindTimeout:
		result, err = h.sweeper.MarkTimeoutAbandoned(ctx, input.TenantID, input.UserID)
	case KindBooking:
		result, err = h.sweeper.MarkBookingAbandoned(ctx, input.TenantID, input.UserID)
	case KindSession:
		return h.closeSession(ctx, input.SessionID)
	default:
		return nil, errors.NewInvalidSweepKindError(input.Kind)
	}
	if err != nil {
		return nil, errors.NewSessionScanFailedError(err)
	}

	return &Output{
		Outcome:   string(result.Outcome),
		Total:     result.Total,
		Processed: result.Processed,
		Failed:    result.Failed,
		Summary:   result.Summary(),
	}, nil
}

func (h *Handler) closeSession(ctx context.Context, sessionID string) (*Output, error) {
	if sessionID == "" {
		return nil, errors.NewInputValidationFailedError("sessionId: required for kind session")
	}

	err := h.sessions.MarkSessionAbandoned(ctx, sessionID)
	switch {
	case err == nil:
	case stderrors.Is(err, telemetry.ErrIntentNotTracked):
		return nil, errors.NewIntentNotTrackedError(sessionID)
	case stderrors.Is(err, telemetry.ErrInvalidSession):
		return nil, errors.NewInputValidationFailedError(err.Error())
	default:
		return nil, errors.NewExternalServiceError("telemetry", err)
	}

	metrics.ConversationsAbandoned.WithLabelValues(string(outcome.ReasonIntentOnly)).Inc()
	result := &outcome.BatchResult{Total: 1, Processed: 1}
	return &Output{
		Total:     result.Total,
		Processed: result.Processed,
		Summary:   result.Summary(),
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output, start time.Time) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.GetKey()).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}

	h.logger.Info("sweep completed", map[string]interface{}{
		"jobKey":  job.GetKey(),
		"summary": output.Summary,
		"failed":  output.Failed,
	})
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "completed")
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := errors.Normalize(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	errors.NewErrorHandler(h.logger).HandleJobError(ctx, client, job, stdErr)
}
