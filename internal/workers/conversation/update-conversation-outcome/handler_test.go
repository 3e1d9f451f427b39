package updateconversationoutcome

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"conversation-workers/internal/common/errors"
	"conversation-workers/internal/common/logger"
	"conversation-workers/internal/outcome"
	"conversation-workers/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockWriter struct {
	mock.Mock
}

func (m *MockWriter) UpdateConversationOutcome(ctx context.Context, conversationID string, o outcome.Outcome) (outcome.UpdateResult, error) {
	args := m.Called(ctx, conversationID, o)
	return args.Get(0).(outcome.UpdateResult), args.Error(1)
}

func (m *MockWriter) MarkAppointmentCreated(ctx context.Context, conversationID string) (outcome.UpdateResult, error) {
	args := m.Called(ctx, conversationID)
	return args.Get(0).(outcome.UpdateResult), args.Error(1)
}

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)

	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "whatsapp-booking",
		ElementId:          "Activity_UpdateConversationOutcome",
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func createTestHandler(t *testing.T, writer OutcomeWriter) *Handler {
	t.Helper()
	reg, err := registry.Default()
	require.NoError(t, err)
	v, err := reg.Validator()
	require.NoError(t, err)
	return NewHandler(&Config{Timeout: time.Second}, writer, v, nil, logger.NewTestLogger(t))
}

func TestHandler_Execute_Success(t *testing.T) {
	tests := []struct {
		name   string
		input  *Input
		setup  func(m *MockWriter)
		result string
	}{
		{
			name:  "generic outcome",
			input: &Input{ConversationID: "msg-1", Outcome: "price_inquiry"},
			setup: func(m *MockWriter) {
				m.On("UpdateConversationOutcome", mock.Anything, "msg-1", outcome.OutcomePriceInquiry).
					Return(outcome.ResultApplied, nil).Once()
			},
			result: "applied",
		},
		{
			name:  "appointment created with appointment id",
			input: &Input{ConversationID: "msg-2", Outcome: "appointment_created", AppointmentID: "apt-9"},
			setup: func(m *MockWriter) {
				m.On("MarkAppointmentCreated", mock.Anything, "msg-2").
					Return(outcome.ResultApplied, nil).Once()
			},
			result: "applied",
		},
		{
			name:  "appointment created without appointment id",
			input: &Input{ConversationID: "msg-3", Outcome: "appointment_created"},
			setup: func(m *MockWriter) {
				m.On("UpdateConversationOutcome", mock.Anything, "msg-3", outcome.OutcomeAppointmentCreated).
					Return(outcome.ResultAlreadyFinalized, nil).Once()
			},
			result: "already_finalized",
		},
		{
			name:  "concurrent writer won",
			input: &Input{ConversationID: "msg-4", Outcome: "timeout_abandoned"},
			setup: func(m *MockWriter) {
				m.On("UpdateConversationOutcome", mock.Anything, "msg-4", outcome.OutcomeTimeoutAbandoned).
					Return(outcome.ResultRaceLost, nil).Once()
			},
			result: "race_lost",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer := new(MockWriter)
			tt.setup(writer)
			h := createTestHandler(t, writer)

			output, err := h.Execute(context.Background(), tt.input)

			require.NoError(t, err)
			assert.True(t, output.Success)
			assert.Equal(t, tt.result, output.Result)
			writer.AssertExpectations(t)
		})
	}
}

func TestHandler_Execute_InvalidOutcome(t *testing.T) {
	writer := new(MockWriter)
	h := createTestHandler(t, writer)

	_, err := h.Execute(context.Background(), &Input{ConversationID: "msg-1", Outcome: "converted"})

	require.Error(t, err)
	stdErr := errors.Normalize(err)
	assert.Equal(t, errors.ErrCodeInvalidOutcome, stdErr.Code)
	assert.False(t, stdErr.Retryable)
	writer.AssertNotCalled(t, "UpdateConversationOutcome", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_Execute_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      errors.ErrorCode
		retryable bool
		throw     bool
	}{
		{
			name:  "message not found",
			err:   outcome.ErrMessageNotFound,
			code:  errors.ErrCodeMessageNotFound,
			throw: true,
		},
		{
			name:  "session not found",
			err:   fmt.Errorf("%w: message msg-1 has no session", outcome.ErrSessionNotFound),
			code:  errors.ErrCodeSessionNotFound,
			throw: true,
		},
		{
			name:      "update failed",
			err:       fmt.Errorf("%w: connection reset", outcome.ErrOutcomeUpdateFailed),
			code:      errors.ErrCodeOutcomeUpdateFailed,
			retryable: true,
		},
		{
			name:      "deadline",
			err:       context.DeadlineExceeded,
			code:      errors.ErrCodeQueryTimeout,
			retryable: true,
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer := new(MockWriter)
			writer.On("UpdateConversationOutcome", mock.Anything, "msg-1", outcome.OutcomeWrongNumber).
				Return(outcome.ResultFailed, tt.err).Once()
			h := createTestHandler(t, writer)

			_, err := h.Execute(context.Background(), &Input{ConversationID: "msg-1", Outcome: "wrong_number"})

			require.Error(t, err)
			stdErr := errors.Normalize(err)
			assert.Equal(t, tt.code, stdErr.Code)
			assert.Equal(t, tt.retryable, stdErr.Retryable)

			decision := errors.NewErrorHandler(logger.NewNoOpLogger()).Decide(createMockJob(int64(i+1), nil), stdErr)
			assert.Equal(t, tt.throw, decision.Throw)
			if !tt.throw {
				assert.Greater(t, decision.Retries, 0)
			}
		})
	}
}

func TestHandler_ParseInput(t *testing.T) {
	h := createTestHandler(t, new(MockWriter))

	input, err := h.parseInput(createMockJob(1, map[string]interface{}{
		"conversationId": "msg-1",
		"outcome":        "appointment_created",
		"appointmentId":  "apt-1",
	}))
	require.NoError(t, err)
	assert.Equal(t, &Input{ConversationID: "msg-1", Outcome: "appointment_created", AppointmentID: "apt-1"}, input)

	for _, vars := range []map[string]interface{}{
		{"outcome": "price_inquiry"},
		{"conversationId": "", "outcome": "price_inquiry"},
		{"conversationId": "msg-1"},
	} {
		_, err := h.parseInput(createMockJob(2, vars))
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeInputValidationFailed, errors.Normalize(err).Code)
	}
}
