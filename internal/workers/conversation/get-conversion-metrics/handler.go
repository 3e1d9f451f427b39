// internal/workers/conversation/get-conversion-metrics/handler.go
package getconversionmetrics

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
	"conversation-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const TaskType = "get-conversion-metrics"

type MetricsSource interface {
	ConversionMetrics(ctx context.Context, tenantID string, periodDays int) (*models.ConversionMetrics, error)
}

// AppointmentStats is optional. Without it the output carries conversion
// metrics only.
type AppointmentStats interface {
	PostAppointmentStats(ctx context.Context, tenantID string, from, to time.Time) (*models.PostAppointmentStats, error)
}

type Handler struct {
	config    *Config
	source    MetricsSource
	stats     AppointmentStats
	validator *validation.Validator
	obs       *observability.Observability
	logger    logger.Logger
	now       func() time.Time
}

func NewHandler(config *Config, source MetricsSource, stats AppointmentStats, validator *validation.Validator, obs *observability.Observability, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		source:    source,
		stats:     stats,
		validator: validator,
		obs:       obs,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
		now:       time.Now,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	ctx, span := h.obs.StartSpan(ctx, TaskType, attribute.Int64("job.key", job.GetKey()))
	defer span.End()

	input, err := h.parseInput(job)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}
	span.SetAttributes(attribute.String("tenant.id", input.TenantID))

	output, err := h.Execute(ctx, input)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		h.failJob(ctx, client, job, err)
		return
	}

	cmd, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err.Error()})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err.Error()})
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "completed")
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
	days := input.PeriodDays
	if days <= 0 {
		days = h.config.DefaultPeriodDays
	}

	m, err := h.source.ConversionMetrics(ctx, input.TenantID, days)
	if err != nil {
		return nil, errors.NewTelemetryQueryFailedError(err).WithMetadata("tenantId", input.TenantID)
	}

	output := &Output{Metrics: m}

	if h.stats != nil {
		to := h.now().UTC()
		stats, err := h.stats.PostAppointmentStats(ctx, input.TenantID, to.AddDate(0, 0, -days), to)
		if err != nil {
			h.logger.Warn("post-appointment stats unavailable", map[string]interface{}{
				"tenantId": input.TenantID,
				"error":    err.Error(),
			})
		} else {
			output.PostAppointment = stats
		}
	}

	h.logger.Info("conversion metrics computed", map[string]interface{}{
		"tenantId":       input.TenantID,
		"periodDays":     days,
		"totalIntents":   m.TotalIntents,
		"conversionRate": m.ConversionRate,
	})
	return output, nil
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := errors.Normalize(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	errors.NewErrorHandler(h.logger).HandleJobError(ctx, client, job, stdErr)
}
