// internal/appointments/detector.go
package appointments

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"conversation-workers/internal/common/logger"
	"conversation-workers/internal/intent"
	"conversation-workers/internal/models"
	"conversation-workers/internal/outcome"

	"github.com/lib/pq"
)

var (
	ErrAppointmentNotFound     = errors.New("APPOINTMENT_NOT_FOUND")
	ErrAppointmentLookupFailed = errors.New("APPOINTMENT_LOOKUP_FAILED")
)

const (
	findAppointmentSQL = `SELECT id, tenant_id, user_id, status, start_time, appointment_data
		FROM appointments
		WHERE tenant_id = $1
			AND (user_id::text = $2 OR appointment_data->>'phone' = $3)
			AND status <> 'cancelled'
		ORDER BY start_time DESC
		LIMIT 1`

	markNoShowSQL = `UPDATE appointments
		SET status = 'no_show', updated_at = $2,
			appointment_data = COALESCE(appointment_data, '{}'::jsonb) || $3::jsonb
		WHERE id = $1`

	rescheduleSQL = `UPDATE appointments
		SET status = 'rescheduled', updated_at = $2,
			appointment_data = COALESCE(appointment_data, '{}'::jsonb) || $3::jsonb
		WHERE id = $1`

	cancelSQL = `UPDATE appointments
		SET status = 'cancelled', updated_at = $2, cancelled_at = $2, cancellation_reason = $3
		WHERE id = $1`

	mergeDataSQL = `UPDATE appointments
		SET updated_at = $2,
			appointment_data = COALESCE(appointment_data, '{}'::jsonb) || $3::jsonb
		WHERE id = $1`

	postAppointmentStatsSQL = `SELECT conversation_outcome, COUNT(*)
		FROM conversation_history
		WHERE tenant_id = $1 AND created_at >= $2 AND created_at <= $3
			AND conversation_outcome = ANY($4)
		GROUP BY conversation_outcome`
)

const (
	noShowReason       = "Marcado automaticamente - appointment passou do horário"
	rescheduleReason   = "Cliente solicitou remarcar"
	cancellationReason = "Cancelado pelo cliente via WhatsApp"
	modificationReason = "Cliente solicitou alteração"
)

var keywords = struct {
	reschedule, cancel, confirm, inquiry, modify []string
}{
	reschedule: intent.NormalizeTerms("remarcar", "reagendar", "mudar", "alterar", "trocar", "outro dia",
		"outro horário", "transferir", "adiar", "antecipar"),
	cancel: intent.NormalizeTerms("cancelar", "desmarcar", "não quero mais", "desistir", "não vou",
		"não posso", "emergência", "imprevisto"),
	confirm: intent.NormalizeTerms("confirmar", "manter", "tá bom", "ok", "certo", "combinado",
		"está mantido", "vou sim", "estarei lá"),
	inquiry: intent.NormalizeTerms("meu agendamento", "que horas", "que dia", "quando", "onde",
		"endereço", "lembrar", "qual horário", "ainda vale"),
	modify: intent.NormalizeTerms("incluir", "adicionar", "tirar", "sem", "com", "mais", "menos",
		"diferente", "outro serviço", "mudar serviço"),
}

var suggestedOutcomes = map[outcome.InteractionType]outcome.Outcome{
	outcome.InteractionReschedule:            outcome.OutcomeAppointmentRescheduled,
	outcome.InteractionCancel:                outcome.OutcomeAppointmentCancelled,
	outcome.InteractionConfirm:               outcome.OutcomeAppointmentConfirmed,
	outcome.InteractionInquiry:               outcome.OutcomeAppointmentInquiry,
	outcome.InteractionModify:                outcome.OutcomeAppointmentModified,
	outcome.InteractionRescheduleAfterNoShow: outcome.OutcomeAppointmentCreated,
	outcome.InteractionJustifyNoShow:         outcome.OutcomeAppointmentNoShowFollowup,
}

var postAppointmentOutcomes = []string{
	string(outcome.OutcomeAppointmentRescheduled),
	string(outcome.OutcomeAppointmentCancelled),
	string(outcome.OutcomeAppointmentConfirmed),
	string(outcome.OutcomeAppointmentInquiry),
	string(outcome.OutcomeAppointmentModified),
}

// Detector relates inbound messages to the customer's latest appointment.
type Detector struct {
	db     *sql.DB
	logger logger.Logger
	now    func() time.Time
}

func NewDetector(db *sql.DB, log logger.Logger) *Detector {
	return &Detector{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "appointment-detector"}),
		now:    time.Now,
	}
}

func (d *Detector) DetectAppointmentContext(ctx context.Context, q outcome.AppointmentQuery) (*outcome.AppointmentContext, error) {
	appt, err := d.findAppointment(ctx, q.TenantID, q.UserID, q.Phone)
	if err != nil {
		return nil, err
	}
	if appt == nil {
		return &outcome.AppointmentContext{}, nil
	}

	isPast := appt.StartTime.Before(d.now())
	if isPast && appt.Status == models.AppointmentStatusConfirmed {
		d.markNoShow(ctx, appt.ID)
		appt.Status = models.AppointmentStatusNoShow
	}

	interaction := AnalyzeInteractionType(q.Content, q.Intent, appt.Status, isPast)
	d.logger.Debug("appointment context detected", map[string]interface{}{
		"appointmentId": appt.ID,
		"status":        appt.Status,
		"isPast":        isPast,
		"interaction":   string(interaction),
	})

	return &outcome.AppointmentContext{
		HasExistingAppointment: true,
		AppointmentID:          appt.ID,
		AppointmentStatus:      appt.Status,
		IsPast:                 isPast,
		InteractionType:        interaction,
		SuggestedOutcome:       SuggestedOutcome(interaction),
	}, nil
}

// findAppointment returns nil when the customer has no live appointment.
func (d *Detector) findAppointment(ctx context.Context, tenantID, userID, phone string) (*models.Appointment, error) {
	var appt models.Appointment
	var user sql.NullString
	var data []byte
	err := d.db.QueryRowContext(ctx, findAppointmentSQL, tenantID, userID, phone).
		Scan(&appt.ID, &appt.TenantID, &user, &appt.Status, &appt.StartTime, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAppointmentLookupFailed, err)
	}

	appt.UserID = user.String
	if len(data) > 0 {
		if err := json.Unmarshal(data, &appt.Data); err != nil {
			d.logger.Warn("unreadable appointment_data", map[string]interface{}{"appointmentId": appt.ID, "error": err})
		}
	}
	return &appt, nil
}

// markNoShow is best-effort. The caller treats the appointment as no_show
// either way.
func (d *Detector) markNoShow(ctx context.Context, appointmentID string) {
	now := d.now().UTC()
	patch, _ := json.Marshal(map[string]string{
		"auto_noshow_at":     now.Format(time.RFC3339),
		"auto_noshow_reason": noShowReason,
	})
	if _, err := d.db.ExecContext(ctx, markNoShowSQL, appointmentID, now, string(patch)); err != nil {
		d.logger.Warn("failed to mark appointment as no_show", map[string]interface{}{
			"appointmentId": appointmentID,
			"error":         err,
		})
		return
	}
	d.logger.Info("appointment marked as no_show", map[string]interface{}{"appointmentId": appointmentID})
}

// AnalyzeInteractionType decides how a message relates to the appointment.
func AnalyzeInteractionType(content, detectedIntent, status string, isPast bool) outcome.InteractionType {
	text := intent.Normalize(content)

	if isPast && status == models.AppointmentStatusNoShow {
		if detectedIntent == string(intent.IntentBookingRequest) || intent.ContainsAny(text, keywords.reschedule) {
			return outcome.InteractionRescheduleAfterNoShow
		}
		return outcome.InteractionJustifyNoShow
	}

	if detectedIntent == string(intent.IntentBookingRequest) {
		return outcome.InteractionReschedule
	}

	switch {
	case intent.ContainsAny(text, keywords.cancel):
		return outcome.InteractionCancel
	case intent.ContainsAny(text, keywords.reschedule):
		return outcome.InteractionReschedule
	case intent.ContainsAny(text, keywords.confirm):
		return outcome.InteractionConfirm
	case intent.ContainsAny(text, keywords.modify):
		return outcome.InteractionModify
	case intent.ContainsAny(text, keywords.inquiry):
		return outcome.InteractionInquiry
	default:
		return outcome.InteractionInquiry
	}
}

func SuggestedOutcome(t outcome.InteractionType) outcome.Outcome {
	if o, ok := suggestedOutcomes[t]; ok {
		return o
	}
	return outcome.OutcomeAppointmentInquiry
}

// ProcessAppointmentAction applies reschedule, cancel, confirm and modify to
// the appointment row. Other interactions are no-ops.
func (d *Detector) ProcessAppointmentAction(ctx context.Context, appointmentID string, interaction outcome.InteractionType, reason string) error {
	now := d.now().UTC()
	stamp := now.Format(time.RFC3339)

	var query string
	var args []interface{}
	switch interaction {
	case outcome.InteractionReschedule:
		query = rescheduleSQL
		args = []interface{}{appointmentID, now, jsonPatch("rescheduled_at", stamp, "reschedule_reason", orDefault(reason, rescheduleReason))}
	case outcome.InteractionCancel:
		query = cancelSQL
		args = []interface{}{appointmentID, now, orDefault(reason, cancellationReason)}
	case outcome.InteractionConfirm:
		query = mergeDataSQL
		args = []interface{}{appointmentID, now, jsonPatch("confirmed_at", stamp, "confirmation_method", "whatsapp")}
	case outcome.InteractionModify:
		query = mergeDataSQL
		args = []interface{}{appointmentID, now, jsonPatch("modified_at", stamp, "modification_reason", orDefault(reason, modificationReason))}
	default:
		return nil
	}

	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to apply %s to appointment %s: %w", interaction, appointmentID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrAppointmentNotFound, appointmentID)
	}

	d.logger.Info("appointment updated", map[string]interface{}{
		"appointmentId": appointmentID,
		"interaction":   string(interaction),
	})
	return nil
}

// PostAppointmentStats counts the tenant's appointment-related outcomes
// between from and to inclusive.
func (d *Detector) PostAppointmentStats(ctx context.Context, tenantID string, from, to time.Time) (*models.PostAppointmentStats, error) {
	rows, err := d.db.QueryContext(ctx, postAppointmentStatsSQL, tenantID, from, to, pq.Array(postAppointmentOutcomes))
	if err != nil {
		return nil, fmt.Errorf("failed to load post-appointment stats: %w", err)
	}
	defer rows.Close()

	stats := &models.PostAppointmentStats{}
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, err
		}
		switch outcome.Outcome(name) {
		case outcome.OutcomeAppointmentRescheduled:
			stats.Rescheduled += count
		case outcome.OutcomeAppointmentCancelled:
			stats.Cancelled += count
		case outcome.OutcomeAppointmentConfirmed:
			stats.Confirmed += count
		case outcome.OutcomeAppointmentInquiry:
			stats.Inquiry += count
		case outcome.OutcomeAppointmentModified:
			stats.Modified += count
		default:
			continue
		}
		stats.Total += count
	}
	return stats, rows.Err()
}

func jsonPatch(kv ...string) string {
	m := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i]] = kv[i+1]
	}
	data, _ := json.Marshal(m)
	return string(data)
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
