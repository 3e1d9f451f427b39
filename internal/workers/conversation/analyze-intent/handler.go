// internal/workers/conversation/analyze-intent/handler.go
package analyzeintent

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"conversation-workers/internal/common/errors"
	"conversation-workers/internal/common/logger"
	"conversation-workers/internal/common/metrics"
	"conversation-workers/internal/common/observability"
	"conversation-workers/internal/common/validation"
	"conversation-workers/internal/intent"
	"conversation-workers/internal/telemetry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const TaskType = "analyze-intent"

// IntentRecorder receives every classification made for a known session.
type IntentRecorder interface {
	RecordIntentDetected(ctx context.Context, event telemetry.IntentEvent) error
}

type Handler struct {
	config     *Config
	classifier *intent.Classifier
	telemetry  IntentRecorder
	validator  *validation.Validator
	obs        *observability.Observability
	logger     logger.Logger
}

// NewHandler builds the worker. recorder may be nil, in which case intents
// are classified without telemetry.
func NewHandler(config *Config, classifier *intent.Classifier, recorder IntentRecorder, validator *validation.Validator, obs *observability.Observability, log logger.Logger) *Handler {
	return &Handler{
		config:     config,
		classifier: classifier,
		telemetry:  recorder,
		validator:  validator,
		obs:        obs,
		logger:     log.WithFields(map[string]interface{}{"taskType": TaskType}),
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
	if err == nil {
		var output *Output
		if output, err = h.Execute(ctx, input); err == nil {
			h.completeJob(ctx, client, job, output, start)
			return
		}
	}

	stdErr := errors.Normalize(err)
	span.SetStatus(codes.Error, string(stdErr.Code))
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	errors.NewErrorHandler(h.logger).HandleJobError(ctx, client, job, stdErr)
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

// Execute classifies the message. Classification never fails; telemetry
// errors are logged and dropped.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	tc := intent.TenantContext{
		TenantID:      input.TenantID,
		CurrentIntent: input.CurrentIntent,
	}
	if input.BusinessDomain != "" {
		tc.TenantConfig = &intent.TenantConfig{Domain: intent.BusinessDomain(input.BusinessDomain)}
	}

	result := h.classifier.AnalyzeIntent(input.Message, tc, input.History)
	domain := h.classifier.RouteToDomain(result, tc)
	metrics.IntentsClassified.WithLabelValues(string(result.Type)).Inc()

	h.logger.Debug("intent classified", map[string]interface{}{
		"tenantId":   input.TenantID,
		"intent":     string(result.Type),
		"confidence": result.Confidence,
		"domain":     string(domain),
	})

	if input.SessionID != "" && h.telemetry != nil {
		err := h.telemetry.RecordIntentDetected(ctx, telemetry.IntentEvent{
			TenantID:   input.TenantID,
			SessionID:  input.SessionID,
			UserPhone:  input.UserPhone,
			UserID:     input.UserID,
			Intent:     string(result.Type),
			Confidence: result.Confidence,
		})
		if err != nil {
			h.logger.Warn("intent telemetry not recorded", map[string]interface{}{
				"sessionId": input.SessionID,
				"error":     err.Error(),
			})
		}
	}

	return &Output{Intent: result, BusinessDomain: domain}, nil
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
	h.obs.RecordJobProcessed(ctx, TaskType, "completed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "completed")
}
