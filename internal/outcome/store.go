// internal/outcome/store.go
package outcome

import (
	"context"
	"time"

	"conversation-workers/internal/models"
)

// MessageStore is the persistence the reconciler relies on.
type MessageStore interface {
	// GetMessage returns ErrMessageNotFound for unknown ids.
	GetMessage(ctx context.Context, id string) (*models.ConversationMessage, error)
	// GetLatestMessage returns the session's most recent message, or
	// ErrSessionNotFound.
	GetLatestMessage(ctx context.Context, sessionID string) (*models.ConversationMessage, error)
	// SetOutcomeIfNull writes the outcome only while the row has none and
	// returns the affected row count.
	SetOutcomeIfNull(ctx context.Context, id string, outcome Outcome, at time.Time) (int64, error)
	FindStaleSessions(ctx context.Context, q StaleSessionQuery) ([]models.StaleSession, error)
	// GetSessionMessages returns the session's messages oldest first.
	GetSessionMessages(ctx context.Context, sessionID string) ([]models.ConversationMessage, error)
}

// StaleSessionQuery selects sessions with no outcome whose last activity is
// before Before. Empty TenantID or UserID match any value. ExcludeBooking
// drops sessions where the user sent a booking request; those are left for
// the booking sweep.
type StaleSessionQuery struct {
	TenantID       string
	UserID         string
	Before         time.Time
	Limit          int
	ExcludeBooking bool
}

type OutcomeEvent struct {
	SessionID      string
	TenantID       string
	UserID         string
	ConversationID string
	Outcome        Outcome
	Source         Source
}

type AbandonmentEvent struct {
	SessionID      string
	TenantID       string
	UserID         string
	ConversationID string
	Reason         AbandonmentReason
	Outcome        Outcome
	Source         Source
}

// TelemetrySink receives one event per applied outcome write.
type TelemetrySink interface {
	RecordOutcomeFinalized(ctx context.Context, event OutcomeEvent) error
	RecordConversationAbandoned(ctx context.Context, event AbandonmentEvent) error
}

// InteractionType is how an inbound message relates to an existing appointment.
type InteractionType string

const (
	InteractionReschedule            InteractionType = "reschedule"
	InteractionCancel                InteractionType = "cancel"
	InteractionConfirm               InteractionType = "confirm"
	InteractionInquiry               InteractionType = "inquiry"
	InteractionModify                InteractionType = "modify"
	InteractionRescheduleAfterNoShow InteractionType = "reschedule_after_noshow"
	InteractionJustifyNoShow         InteractionType = "justify_noshow"
)

// ChangesAppointment reports whether the interaction must be applied to the
// appointment row.
func (t InteractionType) ChangesAppointment() bool {
	switch t {
	case InteractionReschedule, InteractionCancel, InteractionConfirm, InteractionModify:
		return true
	}
	return false
}

type AppointmentQuery struct {
	TenantID string
	UserID   string
	Phone    string
	Content  string
	Intent   string
}

type AppointmentContext struct {
	HasExistingAppointment bool
	AppointmentID          string
	AppointmentStatus      string
	IsPast                 bool
	InteractionType        InteractionType
	SuggestedOutcome       Outcome
}

// AppointmentDetector relates a message to the customer's existing appointment.
type AppointmentDetector interface {
	DetectAppointmentContext(ctx context.Context, q AppointmentQuery) (*AppointmentContext, error)
	ProcessAppointmentAction(ctx context.Context, appointmentID string, interaction InteractionType, reason string) error
}
