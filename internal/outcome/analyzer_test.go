package outcome

import (
	"context"
	"errors"
	"testing"

	"conversation-workers/internal/common/logger"
	"conversation-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func transcript(lines ...interface{}) []models.ConversationMessage {
	var out []models.ConversationMessage
	for i := 0; i+1 < len(lines); i += 2 {
		id := string(rune('a' + len(out)))
		out = append(out, msg(id, "s1", 30-len(out), lines[i].(bool), lines[i+1].(string)))
	}
	return out
}

func TestAnalyzeTranscript(t *testing.T) {
	tests := []struct {
		name           string
		messages       []models.ConversationMessage
		trigger        Trigger
		wantOutcome    Outcome
		wantConfidence float64
		wantTrigger    Trigger
	}{
		{
			name:           "bot confirms creation",
			messages:       transcript(true, "quero marcar corte amanhã", false, "Agendamento criado com sucesso!"),
			trigger:        TriggerFlowCompletion,
			wantOutcome:    OutcomeAppointmentCreated,
			wantConfidence: 0.95,
			wantTrigger:    TriggerAppointmentAction,
		},
		{
			name:           "cancellation",
			messages:       transcript(true, "preciso cancelar agendamento", false, "Pronto, foi cancelado."),
			trigger:        TriggerTimeout,
			wantOutcome:    OutcomeAppointmentCancelled,
			wantConfidence: 0.95,
			wantTrigger:    TriggerAppointmentAction,
		},
		{
			name:           "price question",
			messages:       transcript(true, "Quanto custa a escova?", false, "R$ 80"),
			trigger:        TriggerFlowCompletion,
			wantOutcome:    OutcomePriceInquiry,
			wantConfidence: 0.85,
			wantTrigger:    TriggerFlowCompletion,
		},
		{
			name:           "location question",
			messages:       transcript(true, "onde fica o salão?", false, "Rua das Flores, 10"),
			trigger:        TriggerTimeout,
			wantOutcome:    OutcomeLocationInquiry,
			wantConfidence: 0.85,
			wantTrigger:    TriggerTimeout,
		},
		{
			name:           "booking abandoned on timeout",
			messages:       transcript(true, "quero agendar", false, "Para qual dia?"),
			trigger:        TriggerTimeout,
			wantOutcome:    OutcomeBookingAbandoned,
			wantConfidence: 0.8,
			wantTrigger:    TriggerTimeout,
		},
		{
			name:           "plain timeout",
			messages:       transcript(true, "bom dia", false, "Olá! Como posso ajudar?"),
			trigger:        TriggerTimeout,
			wantOutcome:    OutcomeTimeoutAbandoned,
			wantConfidence: 0.8,
			wantTrigger:    TriggerTimeout,
		},
		{
			name:           "digits only",
			messages:       transcript(true, "123456", false, "Não entendi"),
			trigger:        TriggerUserExit,
			wantOutcome:    OutcomeSpamDetected,
			wantConfidence: 0.7,
			wantTrigger:    TriggerUserExit,
		},
		{
			name:           "wrong number",
			messages:       transcript(true, "desculpe, foi engano", false, "Sem problemas"),
			trigger:        TriggerFlowCompletion,
			wantOutcome:    OutcomeWrongNumber,
			wantConfidence: 0.7,
			wantTrigger:    TriggerFlowCompletion,
		},
		{
			name:           "test greeting",
			messages:       transcript(true, "Olá", false, "Olá! Como posso ajudar?"),
			trigger:        TriggerFlowCompletion,
			wantOutcome:    OutcomeTestMessage,
			wantConfidence: 0.7,
			wantTrigger:    TriggerFlowCompletion,
		},
		{
			name:           "default",
			messages:       transcript(true, "vocês trabalham com coloração?", false, "Sim!", true, "obrigada"),
			trigger:        TriggerFlowCompletion,
			wantOutcome:    OutcomeInfoRequestFulfilled,
			wantConfidence: 0.6,
			wantTrigger:    TriggerFlowCompletion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := analyzeTranscript(tt.messages, tt.trigger)

			assert.Equal(t, tt.wantOutcome, analysis.Outcome)
			assert.Equal(t, tt.wantConfidence, analysis.Confidence)
			assert.Equal(t, tt.wantTrigger, analysis.TriggeredBy)
			assert.Equal(t, tt.messages[len(tt.messages)-1].ID, analysis.FinalMessageID)
			assert.NotEmpty(t, analysis.Reasoning)
		})
	}
}

func TestAnalyzeTranscript_LegacyBookingIntent(t *testing.T) {
	messages := transcript(true, "pode ser sexta?", false, "Sexta às 10h?")
	messages[0].Intent = "booking"

	analysis := analyzeTranscript(messages, TriggerTimeout)

	assert.Equal(t, OutcomeBookingAbandoned, analysis.Outcome)
}

func TestAnalyzeSession(t *testing.T) {
	t.Run("already finalized", func(t *testing.T) {
		finalized := msg("m1", "s1", 30, true, "quero agendar")
		finalized.Outcome = string(OutcomeAppointmentCreated)
		store := newMemoryStore(finalized, msg("m2", "s1", 29, false, "Agendado!"))
		a := NewAnalyzer(store, newTestReconciler(t, store, nil, nil), logger.NewTestLogger(t))

		analysis, err := a.AnalyzeSession(context.Background(), "s1", TriggerTimeout)

		require.NoError(t, err)
		assert.Nil(t, analysis)
	})

	t.Run("unknown session", func(t *testing.T) {
		store := newMemoryStore()
		a := NewAnalyzer(store, newTestReconciler(t, store, nil, nil), logger.NewTestLogger(t))

		_, err := a.AnalyzeSession(context.Background(), "missing", TriggerTimeout)

		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("load failure", func(t *testing.T) {
		store := new(MockStore)
		store.On("GetSessionMessages", mock.Anything, "s1").Return(nil, errors.New("conn refused"))
		a := NewAnalyzer(store, newTestReconciler(t, store, nil, nil), logger.NewTestLogger(t))

		_, err := a.AnalyzeSession(context.Background(), "s1", TriggerTimeout)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "conn refused")
	})
}

func TestCheckFinishedConversations(t *testing.T) {
	done := msg("d1", "done", 40, true, "quero agendar")
	done.Outcome = string(OutcomeAppointmentCreated)

	store := newMemoryStore(
		msg("p1", "price", 30, true, "qual o valor do corte?"),
		msg("p2", "price", 29, false, "R$ 50"),
		msg("r1", "recent", 2, true, "quanto custa?"),
		done,
		msg("d2", "done", 39, false, "Agendado"),
	)
	r := newTestReconciler(t, store, nil, nil)
	a := NewAnalyzer(store, r, logger.NewTestLogger(t))

	result, err := a.CheckFinishedConversations(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, string(OutcomePriceInquiry), store.outcomeOf("p2"))
	assert.Empty(t, store.outcomeOf("r1"))
	assert.Empty(t, store.outcomeOf("d2"))
}

func TestCheckFinishedConversations_ScanFailure(t *testing.T) {
	store := new(MockStore)
	store.On("FindStaleSessions", mock.Anything, StaleSessionQuery{
		Before:         fixedNow.Add(-testConfig().FinishedAfter),
		Limit:          500,
		ExcludeBooking: true,
	}).Return(nil, errors.New("statement timeout"))
	a := NewAnalyzer(store, newTestReconciler(t, store, nil, nil), logger.NewTestLogger(t))

	_, err := a.CheckFinishedConversations(context.Background())

	assert.ErrorIs(t, err, ErrSessionScanFailed)
	store.AssertExpectations(t)
}
