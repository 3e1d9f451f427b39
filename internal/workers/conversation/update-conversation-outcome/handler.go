// internal/workers/conversation/update-conversation-outcome/handler.go
package updateconversationoutcome

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

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const TaskType = "update-conversation-outcome"

type OutcomeWriter interface {
	UpdateConversationOutcome(ctx context.Context, conversationID string, o outcome.Outcome) (outcome.UpdateResult, error)
	MarkAppointmentCreated(ctx context.Context, conversationID string) (outcome.UpdateResult, error)
}

type Handler struct {
	config    *Config
	writer    OutcomeWriter
	validator *validation.Validator
	obs       *observability.Observability
	logger    logger.Logger
}

func NewHandler(config *Config, writer OutcomeWriter, validator *validation.Validator, obs *observability.Observability, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		writer:    writer,
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
		h.failJob(ctx, client, job, err, span)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.failJob(ctx, client, job, err, span)
		return
	}

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
	return &input, nil
}

// Execute writes the outcome. An appointment_created outcome that carries an
// appointmentId goes through MarkAppointmentCreated so telemetry records the
// booking flow as its source.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	o, err := outcome.ParseOutcome(input.Outcome)
	if err != nil {
		return nil, errors.NewInvalidOutcomeError(input.Outcome)
	}

	var result outcome.UpdateResult
	if o == outcome.OutcomeAppointmentCreated && input.AppointmentID != "" {
		result, err = h.writer.MarkAppointmentCreated(ctx, input.ConversationID)
	} else {
		result, err = h.writer.UpdateConversationOutcome(ctx, input.ConversationID, o)
	}
	if err != nil {
		return nil, toStandardError(err, input)
	}

	h.logger.Info("conversation outcome reconciled", map[string]interface{}{
		"conversationId": input.ConversationID,
		"outcome":        string(o),
		"result":         string(result),
	})
	return &Output{Success: true, Result: string(result)}, nil
}

func toStandardError(err error, input *Input) *errors.StandardError {
	switch {
	case stderrors.Is(err, outcome.ErrInvalidOutcome):
		return errors.NewInvalidOutcomeError(input.Outcome)
	case stderrors.Is(err, outcome.ErrMessageNotFound):
		return errors.NewMessageNotFoundError(input.ConversationID)
	case stderrors.Is(err, outcome.ErrSessionNotFound):
		return errors.NewSessionNotFoundError(input.ConversationID)
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.NewQueryTimeoutError(TaskType)
	default:
		return errors.NewOutcomeUpdateFailedError(err)
	}
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

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "completed")
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error, span trace.Span) {
	stdErr := errors.Normalize(err)
	span.SetStatus(codes.Error, string(stdErr.Code))
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	errors.NewErrorHandler(h.logger).HandleJobError(ctx, client, job, stdErr)
}
