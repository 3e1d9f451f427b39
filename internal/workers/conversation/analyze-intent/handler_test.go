package analyzeintent

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"conversation-workers/internal/common/errors"
	"conversation-workers/internal/common/logger"
	"conversation-workers/internal/common/validation"
	"conversation-workers/internal/intent"
	"conversation-workers/internal/telemetry"
	"conversation-workers/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RecordIntentDetected(ctx context.Context, event telemetry.IntentEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)

	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "whatsapp-inbound-message",
		ElementId:          "Activity_AnalyzeIntent",
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func newValidator(t *testing.T) *validation.Validator {
	t.Helper()
	reg, err := registry.Default()
	require.NoError(t, err)
	v, err := reg.Validator()
	require.NoError(t, err)
	return v
}

func createTestHandler(t *testing.T, recorder IntentRecorder) *Handler {
	t.Helper()
	return NewHandler(&Config{Timeout: time.Second}, intent.NewClassifier(), recorder, newValidator(t), nil, logger.NewTestLogger(t))
}

func TestHandler_Execute_BookingRequest(t *testing.T) {
	recorder := new(MockRecorder)
	recorder.On("RecordIntentDetected", mock.Anything, mock.MatchedBy(func(e telemetry.IntentEvent) bool {
		return e.TenantID == "tenant-1" &&
			e.SessionID == "session-1" &&
			e.UserPhone == "5511999990000" &&
			e.Intent == string(intent.IntentBookingRequest) &&
			e.Confidence > 0
	})).Return(nil).Once()

	h := createTestHandler(t, recorder)

	output, err := h.Execute(context.Background(), &Input{
		Message:   "quero agendar um corte de cabelo amanhã às 15h",
		TenantID:  "tenant-1",
		SessionID: "session-1",
		UserPhone: "5511999990000",
	})

	require.NoError(t, err)
	require.NotNil(t, output.Intent)
	assert.Equal(t, intent.IntentBookingRequest, output.Intent.Type)
	assert.Equal(t, intent.DomainBeauty, output.BusinessDomain)
	assert.NotEmpty(t, output.Intent.Entities)
	recorder.AssertExpectations(t)
}

func TestHandler_Execute_TenantDomain(t *testing.T) {
	h := createTestHandler(t, nil)

	output, err := h.Execute(context.Background(), &Input{
		Message:        "quero agendar um corte de cabelo amanhã às 15h",
		TenantID:       "tenant-1",
		BusinessDomain: string(intent.DomainHealthcare),
	})

	require.NoError(t, err)
	assert.Equal(t, intent.DomainHealthcare, output.BusinessDomain)
}

func TestHandler_Execute_Fallback(t *testing.T) {
	h := createTestHandler(t, nil)

	output, err := h.Execute(context.Background(), &Input{Message: "", TenantID: "tenant-1"})

	require.NoError(t, err)
	assert.Equal(t, intent.IntentOther, output.Intent.Type)
	assert.InDelta(t, 0.5, output.Intent.Confidence, 1e-9)
	assert.Equal(t, intent.DomainOther, output.BusinessDomain)
}

func TestHandler_Execute_SkipsTelemetryWithoutSession(t *testing.T) {
	recorder := new(MockRecorder)
	h := createTestHandler(t, recorder)

	_, err := h.Execute(context.Background(), &Input{Message: "olá, bom dia", TenantID: "tenant-1"})

	require.NoError(t, err)
	recorder.AssertNotCalled(t, "RecordIntentDetected", mock.Anything, mock.Anything)
}

func TestHandler_Execute_TelemetryFailureIsDropped(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	recorder := new(MockRecorder)
	recorder.On("RecordIntentDetected", mock.Anything, mock.Anything).Return(fmt.Errorf("redis down")).Once()

	h := NewHandler(&Config{Timeout: time.Second}, intent.NewClassifier(), recorder, newValidator(t), nil, logger.NewZapAdapter(zap.New(core)))

	output, err := h.Execute(context.Background(), &Input{
		Message:   "qual o preço da consulta?",
		TenantID:  "tenant-1",
		SessionID: "session-1",
	})

	require.NoError(t, err)
	assert.NotNil(t, output.Intent)
	require.Equal(t, 1, logs.FilterMessage("intent telemetry not recorded").Len())
	assert.Equal(t, "session-1", logs.All()[0].ContextMap()["sessionId"])
	recorder.AssertExpectations(t)
}

func TestHandler_ParseInput(t *testing.T) {
	h := createTestHandler(t, nil)

	tests := []struct {
		name      string
		variables map[string]interface{}
		wantErr   bool
		check     func(t *testing.T, input *Input)
	}{
		{
			name: "full payload",
			variables: map[string]interface{}{
				"message":        "quero remarcar",
				"tenantId":       "tenant-1",
				"sessionId":      "session-1",
				"businessDomain": "beauty",
				"currentIntent":  map[string]interface{}{"type": "booking_request", "confidence": 0.7},
				"history": []interface{}{
					map[string]interface{}{"type": "general_greeting", "confidence": 0.9},
				},
			},
			check: func(t *testing.T, input *Input) {
				assert.Equal(t, "quero remarcar", input.Message)
				require.NotNil(t, input.CurrentIntent)
				assert.Equal(t, intent.IntentBookingRequest, input.CurrentIntent.Type)
				require.Len(t, input.History, 1)
				assert.Equal(t, intent.IntentGeneralGreeting, input.History[0].Type)
			},
		},
		{
			name:      "missing tenant",
			variables: map[string]interface{}{"message": "oi"},
			wantErr:   true,
		},
		{
			name:      "message of wrong type",
			variables: map[string]interface{}{"message": 42, "tenantId": "tenant-1"},
			wantErr:   true,
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := h.parseInput(createMockJob(int64(i+1), tt.variables))
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.ErrCodeInputValidationFailed, errors.Normalize(err).Code)
				return
			}
			require.NoError(t, err)
			tt.check(t, input)
		})
	}
}
