// internal/workers/conversation/get-conversion-metrics/models.go
package getconversionmetrics

import "conversation-workers/internal/models"

type Input struct {
	TenantID   string `json:"tenantId"`
	PeriodDays int    `json:"periodDays,omitempty"`
}

type Output struct {
	Metrics         *models.ConversionMetrics    `json:"metrics"`
	PostAppointment *models.PostAppointmentStats `json:"postAppointment,omitempty"`
}
