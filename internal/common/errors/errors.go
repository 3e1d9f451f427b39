// internal/common/errors/errors.go
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents standardized error codes across all workers
type ErrorCode string

const (
	// Input validation
	ErrCodeInputValidationFailed ErrorCode = "INPUT_VALIDATION_FAILED"
	ErrCodeInvalidOutcome        ErrorCode = "INVALID_OUTCOME"
	ErrCodeInvalidSweepKind      ErrorCode = "INVALID_SWEEP_KIND"

	// Conversation store
	ErrCodeMessageNotFound          ErrorCode = "MESSAGE_NOT_FOUND"
	ErrCodeSessionNotFound          ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeOutcomeUpdateFailed      ErrorCode = "OUTCOME_UPDATE_FAILED"
	ErrCodeSessionScanFailed        ErrorCode = "SESSION_SCAN_FAILED"
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"

	// Telemetry
	ErrCodeTelemetryQueryFailed ErrorCode = "TELEMETRY_QUERY_FAILED"
	ErrCodeIntentNotTracked     ErrorCode = "INTENT_NOT_TRACKED"

	// Appointments
	ErrCodeAppointmentLookupFailed ErrorCode = "APPOINTMENT_LOOKUP_FAILED"
)

// StandardError represents a standardized error structure
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a key to the error metadata and returns the error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// BPMNError represents an error that can be thrown to BPMN
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables converts BPMNError to Camunda error variables
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

func NewInputValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInputValidationFailed,
		Message:   "Job input failed schema validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidOutcomeError(outcome string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidOutcome,
		Message:   "Unknown conversation outcome",
		Details:   fmt.Sprintf("outcome: %s", outcome),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidSweepKindError(kind string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidSweepKind,
		Message:   "Unsupported abandonment sweep",
		Details:   fmt.Sprintf("kind: %s", kind),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewMessageNotFoundError(conversationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMessageNotFound,
		Message:   "Conversation message not found",
		Details:   fmt.Sprintf("conversationId: %s", conversationID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewSessionNotFoundError(conversationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionNotFound,
		Message:   "Conversation session not found",
		Details:   fmt.Sprintf("conversationId: %s", conversationID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewOutcomeUpdateFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeOutcomeUpdateFailed,
		Message:   "Conversation outcome could not be written",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewSessionScanFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionScanFailed,
		Message:   "Stale session scan failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewQueryTimeoutError(operation string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryTimeout,
		Message:   "Database query timeout",
		Details:   fmt.Sprintf("operation: %s", operation),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTelemetryQueryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTelemetryQueryFailed,
		Message:   "Conversion metrics query failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewIntentNotTrackedError(sessionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeIntentNotTracked,
		Message:   "No intent is being tracked for the session",
		Details:   fmt.Sprintf("sessionId: %s", sessionID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewAppointmentLookupFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAppointmentLookupFailed,
		Message:   "Appointment lookup failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewBusinessRuleError creates a generic business rule violation error
func NewBusinessRuleError(message, details string) *StandardError {
	return &StandardError{
		Code:      "BUSINESS_RULE_VIOLATION",
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewExternalServiceError creates an external service error
func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewResourceNotFoundError creates a resource not found error
func NewResourceNotFoundError(service, details string) *StandardError {
	return &StandardError{
		Code:      "RESOURCE_NOT_FOUND",
		Message:   fmt.Sprintf("Resource not found in %s", service),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// BPMNErrorMapping maps error codes to the error codes caught by boundary events.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInputValidationFailed:    "INPUT_VALIDATION_FAILED",
	ErrCodeInvalidOutcome:           "INVALID_OUTCOME",
	ErrCodeInvalidSweepKind:         "INVALID_SWEEP_KIND",
	ErrCodeMessageNotFound:          "MESSAGE_NOT_FOUND",
	ErrCodeSessionNotFound:          "SESSION_NOT_FOUND",
	ErrCodeOutcomeUpdateFailed:      "OUTCOME_UPDATE_FAILED",
	ErrCodeSessionScanFailed:        "SESSION_SCAN_FAILED",
	ErrCodeDatabaseConnectionFailed: "DATABASE_CONNECTION_FAILED",
	ErrCodeQueryTimeout:             "QUERY_TIMEOUT",
	ErrCodeTelemetryQueryFailed:     "TELEMETRY_QUERY_FAILED",
	ErrCodeIntentNotTracked:         "INTENT_NOT_TRACKED",
	ErrCodeAppointmentLookupFailed:  "APPOINTMENT_LOOKUP_FAILED",
}

// GetRetryCount returns the retry budget for an error code
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeOutcomeUpdateFailed,
		ErrCodeSessionScanFailed,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeTelemetryQueryFailed,
		ErrCodeAppointmentLookupFailed,
		"EXTERNAL_SERVICE_ERROR":
		return 3
	case ErrCodeQueryTimeout,
		"TIMEOUT_ERROR":
		return 2
	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts StandardError to BPMNError
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// IsRetryableErrorCode checks if an error code is retryable
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of an error code for logging
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "OUTCOME") || strings.Contains(codeStr, "SESSION") || strings.Contains(codeStr, "MESSAGE"):
		return "CONVERSATION"
	case strings.Contains(codeStr, "TELEMETRY") || strings.Contains(codeStr, "INTENT"):
		return "TELEMETRY"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "APPOINTMENT"):
		return "APPOINTMENT"
	default:
		return "OTHER"
	}
}
