// internal/outcome/outcome.go
package outcome

import (
	"errors"
	"fmt"
	"strings"
)

// Outcome is the terminal classification of a conversation session.
type Outcome string

const (
	OutcomeAppointmentCreated        Outcome = "appointment_created"
	OutcomeInfoRequestFulfilled      Outcome = "info_request_fulfilled"
	OutcomeBusinessHoursInquiry      Outcome = "business_hours_inquiry"
	OutcomePriceInquiry              Outcome = "price_inquiry"
	OutcomeLocationInquiry           Outcome = "location_inquiry"
	OutcomeBookingAbandoned          Outcome = "booking_abandoned"
	OutcomeTimeoutAbandoned          Outcome = "timeout_abandoned"
	OutcomeWrongNumber               Outcome = "wrong_number"
	OutcomeSpamDetected              Outcome = "spam_detected"
	OutcomeTestMessage               Outcome = "test_message"
	OutcomeAppointmentRescheduled    Outcome = "appointment_rescheduled"
	OutcomeAppointmentCancelled      Outcome = "appointment_cancelled"
	OutcomeAppointmentConfirmed      Outcome = "appointment_confirmed"
	OutcomeAppointmentInquiry        Outcome = "appointment_inquiry"
	OutcomeAppointmentModified       Outcome = "appointment_modified"
	OutcomeAppointmentNoShowFollowup Outcome = "appointment_noshow_followup"
)

var validOutcomes = map[Outcome]struct{}{
	OutcomeAppointmentCreated:        {},
	OutcomeInfoRequestFulfilled:      {},
	OutcomeBusinessHoursInquiry:      {},
	OutcomePriceInquiry:              {},
	OutcomeLocationInquiry:           {},
	OutcomeBookingAbandoned:          {},
	OutcomeTimeoutAbandoned:          {},
	OutcomeWrongNumber:               {},
	OutcomeSpamDetected:              {},
	OutcomeTestMessage:               {},
	OutcomeAppointmentRescheduled:    {},
	OutcomeAppointmentCancelled:      {},
	OutcomeAppointmentConfirmed:      {},
	OutcomeAppointmentInquiry:        {},
	OutcomeAppointmentModified:       {},
	OutcomeAppointmentNoShowFollowup: {},
}

func (o Outcome) Valid() bool {
	_, ok := validOutcomes[o]
	return ok
}

// IsAbandonment reports whether the outcome records an abandoned conversation.
func (o Outcome) IsAbandonment() bool {
	return strings.Contains(string(o), "abandoned")
}

// AbandonmentReason maps an abandonment outcome to its telemetry reason.
func (o Outcome) AbandonmentReason() AbandonmentReason {
	switch o {
	case OutcomeTimeoutAbandoned:
		return ReasonTimeout
	case OutcomeBookingAbandoned:
		return ReasonBookingFlow
	default:
		return ReasonUnknown
	}
}

// ParseOutcome validates a raw outcome name.
func ParseOutcome(s string) (Outcome, error) {
	o := Outcome(s)
	if !o.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidOutcome, s)
	}
	return o, nil
}

type AbandonmentReason string

const (
	ReasonTimeout     AbandonmentReason = "timeout"
	ReasonBookingFlow AbandonmentReason = "booking_flow"
	ReasonIntentOnly  AbandonmentReason = "intent_only"
	ReasonUnknown     AbandonmentReason = "unknown"
)

// Source tags which entry point wrote an outcome.
type Source string

const (
	SourceUpdateOutcome      Source = "update_outcome"
	SourceAppointmentCreated Source = "appointment_created"
	SourceTimeoutSweep       Source = "timeout_sweep"
	SourceBookingSweep       Source = "booking_sweep"
	SourceAutoDetection      Source = "auto_detection"
	SourceAppointmentContext Source = "appointment_context"
	SourceSessionAnalyzer    Source = "session_analyzer"
)

// UpdateResult distinguishes the ways a reconciliation can finish.
type UpdateResult string

const (
	ResultApplied          UpdateResult = "applied"
	ResultAlreadyFinalized UpdateResult = "already_finalized"
	ResultRaceLost         UpdateResult = "race_lost"
	ResultSkipped          UpdateResult = "skipped"
	// ResultDeferred leaves a booking request open for the booking flow;
	// nothing is written and the call counts as handled.
	ResultDeferred         UpdateResult = "deferred"
	ResultFailed           UpdateResult = "failed"
)

var (
	ErrInvalidOutcome      = errors.New("INVALID_OUTCOME")
	ErrMessageNotFound     = errors.New("MESSAGE_NOT_FOUND")
	ErrSessionNotFound     = errors.New("SESSION_NOT_FOUND")
	ErrOutcomeUpdateFailed = errors.New("OUTCOME_UPDATE_FAILED")
	ErrSessionScanFailed   = errors.New("SESSION_SCAN_FAILED")
)
