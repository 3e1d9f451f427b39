package outcome

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"conversation-workers/internal/common/logger"
	"conversation-workers/internal/intent"
	"conversation-workers/internal/models"
)

// Trigger is what prompted a whole-session analysis.
type Trigger string

const (
	TriggerTimeout           Trigger = "timeout"
	TriggerFlowCompletion    Trigger = "flow_completion"
	TriggerAppointmentAction Trigger = "appointment_action"
	TriggerUserExit          Trigger = "user_exit"
)

type Analysis struct {
	Outcome        Outcome `json:"outcome"`
	Confidence     float64 `json:"confidence"`
	Reasoning      string  `json:"reasoning"`
	TriggeredBy    Trigger `json:"triggeredBy"`
	FinalMessageID string  `json:"finalMessageId"`
}

type phraseRule struct {
	outcome Outcome
	phrases []string
}

// Checked against the whole transcript, bot replies included.
var sessionAppointmentRules = []phraseRule{
	{OutcomeAppointmentCreated, intent.NormalizeTerms("agendamento criado", "agendado com sucesso")},
	{OutcomeAppointmentCancelled, intent.NormalizeTerms("cancelado", "cancelar agendamento")},
	{OutcomeAppointmentRescheduled, intent.NormalizeTerms("remarcar", "alterar horário")},
	{OutcomeAppointmentInquiry, intent.NormalizeTerms("meu agendamento", "consultar agendamento")},
}

// Checked against user messages only.
var sessionInfoRules = []phraseRule{
	{OutcomePriceInquiry, intent.NormalizeTerms("preço", "valor", "quanto custa", "tabela", "orçamento")},
	{OutcomeLocationInquiry, intent.NormalizeTerms("endereço", "onde fica", "localização", "como chegar")},
	{OutcomeBusinessHoursInquiry, intent.NormalizeTerms("horário", "funciona", "abre", "fecha", "funcionamento")},
}

var (
	digitsOnly      = regexp.MustCompile(`^[0-9]+$`)
	greetingOrTest  = intent.NormalizeTerms("teste", "test", "oi", "olá")
	wrongNumberHint = intent.NormalizeTerms("número errado", "engano")
)

// Analyzer infers an outcome from a whole session transcript. Writes always
// go through the Reconciler.
type Analyzer struct {
	store      MessageStore
	reconciler *Reconciler
	logger     logger.Logger
}

func NewAnalyzer(store MessageStore, reconciler *Reconciler, log logger.Logger) *Analyzer {
	return &Analyzer{
		store:      store,
		reconciler: reconciler,
		logger:     log.WithFields(map[string]interface{}{"component": "session-analyzer"}),
	}
}

// AnalyzeSession returns nil when the session already has an outcome.
func (a *Analyzer) AnalyzeSession(ctx context.Context, sessionID string, trigger Trigger) (*Analysis, error) {
	messages, err := a.store.GetSessionMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	for i := range messages {
		if messages[i].HasOutcome() {
			a.logger.Debug("session already has an outcome", map[string]interface{}{"sessionId": sessionID})
			return nil, nil
		}
	}

	analysis := analyzeTranscript(messages, trigger)
	a.logger.Info("session outcome inferred", map[string]interface{}{
		"sessionId":  sessionID,
		"outcome":    string(analysis.Outcome),
		"confidence": analysis.Confidence,
		"trigger":    string(analysis.TriggeredBy),
	})
	return analysis, nil
}

func analyzeTranscript(messages []models.ConversationMessage, trigger Trigger) *Analysis {
	last := messages[len(messages)-1]

	var all, fromUser []string
	var firstUser *models.ConversationMessage
	bookingSeen := false
	for i := range messages {
		m := &messages[i]
		text := intent.Normalize(m.Content)
		all = append(all, text)
		if !m.IsFromUser {
			continue
		}
		fromUser = append(fromUser, text)
		if firstUser == nil {
			firstUser = m
		}
		if m.Intent == string(intent.IntentBookingRequest) || m.Intent == "booking" || strings.Contains(text, "agendar") {
			bookingSeen = true
		}
	}

	result := func(o Outcome, confidence float64, reasoning string, by Trigger) *Analysis {
		return &Analysis{Outcome: o, Confidence: confidence, Reasoning: reasoning, TriggeredBy: by, FinalMessageID: last.ID}
	}

	transcript := strings.Join(all, " ")
	for _, rule := range sessionAppointmentRules {
		if containsPhrase(transcript, rule.phrases) {
			return result(rule.outcome, 0.95, "appointment action detected in conversation flow", TriggerAppointmentAction)
		}
	}

	userText := strings.Join(fromUser, " ")
	for _, rule := range sessionInfoRules {
		if intent.ContainsAny(userText, rule.phrases) {
			return result(rule.outcome, 0.85, "specific info request pattern detected", trigger)
		}
	}

	if trigger == TriggerTimeout {
		duration := last.CreatedAt.Sub(messages[0].CreatedAt)
		if bookingSeen {
			return result(OutcomeBookingAbandoned, 0.8, fmt.Sprintf("booking abandoned after %s", duration), TriggerTimeout)
		}
		return result(OutcomeTimeoutAbandoned, 0.8, fmt.Sprintf("conversation abandoned after %s", duration), TriggerTimeout)
	}

	if firstUser != nil {
		if o, ok := firstMessageOutcome(intent.Normalize(firstUser.Content)); ok {
			return result(o, 0.7, "pattern-based outcome detection", trigger)
		}
	}

	return result(OutcomeInfoRequestFulfilled, 0.6, "default outcome for completed conversation", trigger)
}

// containsPhrase matches inside words so that "cancelado" also covers
// "agendamento cancelado com sucesso".
func containsPhrase(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func firstMessageOutcome(text string) (Outcome, bool) {
	switch {
	case len(text) < 3 || digitsOnly.MatchString(text):
		return OutcomeSpamDetected, true
	case intent.ContainsAny(text, wrongNumberHint):
		return OutcomeWrongNumber, true
	}
	for _, w := range greetingOrTest {
		if text == w {
			return OutcomeTestMessage, true
		}
	}
	return "", false
}

// CheckFinishedConversations analyzes sessions idle for FinishedAfter and
// finalizes them through the reconciler. Sessions with a booking request wait
// for MarkBookingAbandoned.
func (a *Analyzer) CheckFinishedConversations(ctx context.Context) (*BatchResult, error) {
	r := a.reconciler
	sessions, err := a.store.FindStaleSessions(ctx, StaleSessionQuery{
		Before:         r.now().Add(-r.config.FinishedAfter),
		Limit:          r.config.ScanLimit,
		ExcludeBooking: true,
	})
	if err != nil {
		a.logger.Error("finished conversation scan failed", map[string]interface{}{"error": err})
		return nil, fmt.Errorf("%w: %v", ErrSessionScanFailed, err)
	}

	return r.runSweep(ctx, SweepFinished, sessions, func(ctx context.Context, s models.StaleSession) error {
		analysis, err := a.AnalyzeSession(ctx, s.SessionID, TriggerTimeout)
		if err != nil || analysis == nil {
			return err
		}
		_, err = r.update(ctx, analysis.FinalMessageID, analysis.Outcome, SourceSessionAnalyzer)
		return err
	}), nil
}
