// internal/workers/conversation/detect-conversation-outcome/handler.go
package detectconversationoutcome

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
	"conversation-workers/internal/intent"
	"conversation-workers/internal/outcome"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const TaskType = "detect-conversation-outcome"

type OutcomeDetector interface {
	DetectAndMarkOutcome(ctx context.Context, in outcome.DetectionInput) (*outcome.Detection, error)
}

type Handler struct {
	config    *Config
	detector  OutcomeDetector
	validator *validation.Validator
	obs       *observability.Observability
	logger    logger.Logger
}

func NewHandler(config *Config, detector OutcomeDetector, validator *validation.Validator, obs *observability.Observability, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		detector:  detector,
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

	var output *Output
	input, err := h.parseInput(job)
	if err == nil {
		output, err = h.Execute(ctx, input)
	}
	if err != nil {
		stdErr := errors.Normalize(err)
		span.SetStatus(codes.Error, string(stdErr.Code))
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
		h.obs.RecordJobProcessed(ctx, TaskType, "failed")
		errors.NewErrorHandler(h.logger).HandleJobError(ctx, client, job, stdErr)
		return
	}

	span.SetAttributes(attribute.String("outcome.result", output.Result))
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

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	detection, err := h.detector.DetectAndMarkOutcome(ctx, outcome.DetectionInput{
		ConversationID: input.ConversationID,
		Content:        input.Content,
		Intent:         intent.IntentType(input.Intent),
		Confidence:     input.Confidence,
		TenantID:       input.TenantID,
		UserID:         input.UserID,
		PhoneNumber:    input.PhoneNumber,
	})
	if err != nil {
		return nil, toStandardError(err, input.ConversationID)
	}

	return &Output{
		Success: detection.Result != outcome.ResultSkipped,
		Result:  string(detection.Result),
		Outcome: string(detection.Outcome),
		Source:  string(detection.Source),
	}, nil
}

func toStandardError(err error, conversationID string) *errors.StandardError {
	switch {
	case stderrors.Is(err, outcome.ErrInvalidOutcome):
		return errors.NewInvalidOutcomeError(err.Error())
	case stderrors.Is(err, outcome.ErrMessageNotFound):
		return errors.NewMessageNotFoundError(conversationID)
	case stderrors.Is(err, outcome.ErrSessionNotFound):
		return errors.NewSessionNotFoundError(conversationID)
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
			"error": err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	h.obs.RecordJobProcessed(ctx, TaskType, "completed")
}
