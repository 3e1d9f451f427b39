package outcome

import (
	"context"
	"unicode/utf8"

	"conversation-workers/internal/intent"
)

var (
	wrongNumberPhrases = intent.NormalizeTerms("número errado", "engano", "pessoa errada", "mensagem errada")
	testVocabulary     = intent.NormalizeTerms("teste", "test", "testando", "testing")

	businessHoursTerms = intent.NormalizeTerms("horário", "horários", "funcionamento", "funciona", "abre", "fecha", "aberto")
	priceTerms         = intent.NormalizeTerms("preço", "preços", "valor", "quanto custa", "custa", "tabela", "orçamento")
	locationTerms      = intent.NormalizeTerms("endereço", "onde fica", "localização", "como chegar")
)

// DetectionInput is a classified message the reconciler may finalize on.
type DetectionInput struct {
	ConversationID string
	Content        string
	Intent         intent.IntentType
	Confidence     float64
	TenantID       string
	UserID         string
	PhoneNumber    string
}

type Detection struct {
	Result  UpdateResult `json:"result"`
	Outcome Outcome      `json:"outcome,omitempty"`
	Source  Source       `json:"source,omitempty"`
}

// DetectAndMarkOutcome runs the fixed decision list over a classified
// message. booking_request is left unmarked as ResultDeferred; intents no
// rule covers are reported as ResultSkipped.
func (r *Reconciler) DetectAndMarkOutcome(ctx context.Context, in DetectionInput) (*Detection, error) {
	text := intent.Normalize(in.Content)

	if outcome, ok := r.immediateOutcome(in.Confidence, text); ok {
		return r.mark(ctx, in.ConversationID, outcome, SourceAutoDetection)
	}

	if d, ok, err := r.detectFromAppointment(ctx, in); ok {
		return d, err
	}

	switch in.Intent {
	case intent.IntentInfoRequest:
		return r.mark(ctx, in.ConversationID, infoOutcome(text), SourceAutoDetection)
	case intent.IntentBookingRequest:
		return &Detection{Result: ResultDeferred}, nil
	}

	return &Detection{Result: ResultSkipped}, nil
}

func (r *Reconciler) mark(ctx context.Context, conversationID string, outcome Outcome, source Source) (*Detection, error) {
	result, err := r.update(ctx, conversationID, outcome, source)
	return &Detection{Result: result, Outcome: outcome, Source: source}, err
}

// immediateOutcome covers the checks that need nothing but the message.
func (r *Reconciler) immediateOutcome(confidence float64, text string) (Outcome, bool) {
	switch {
	case confidence < r.config.SpamConfidence:
		return OutcomeSpamDetected, true
	case intent.ContainsAny(text, wrongNumberPhrases):
		return OutcomeWrongNumber, true
	case isTestMessage(text):
		return OutcomeTestMessage, true
	}
	return "", false
}

func isTestMessage(text string) bool {
	if utf8.RuneCountInString(text) < 2 {
		return true
	}
	for _, word := range testVocabulary {
		if text == word {
			return true
		}
	}
	return false
}

func infoOutcome(text string) Outcome {
	switch {
	case intent.ContainsAny(text, businessHoursTerms):
		return OutcomeBusinessHoursInquiry
	case intent.ContainsAny(text, priceTerms):
		return OutcomePriceInquiry
	case intent.ContainsAny(text, locationTerms):
		return OutcomeLocationInquiry
	}
	return OutcomeInfoRequestFulfilled
}

// detectFromAppointment reports ok when the message concerns an existing
// appointment and its suggested outcome was used.
func (r *Reconciler) detectFromAppointment(ctx context.Context, in DetectionInput) (*Detection, bool, error) {
	if r.appointments == nil || in.TenantID == "" || in.UserID == "" || in.PhoneNumber == "" {
		return nil, false, nil
	}

	actx, err := r.appointments.DetectAppointmentContext(ctx, AppointmentQuery{
		TenantID: in.TenantID,
		UserID:   in.UserID,
		Phone:    in.PhoneNumber,
		Content:  in.Content,
		Intent:   string(in.Intent),
	})
	if err != nil {
		r.logger.Warn("appointment context unavailable", map[string]interface{}{
			"conversationId": in.ConversationID,
			"error":          err,
		})
		return nil, false, nil
	}
	if actx == nil || !actx.HasExistingAppointment || actx.SuggestedOutcome == "" {
		return nil, false, nil
	}

	d, err := r.mark(ctx, in.ConversationID, actx.SuggestedOutcome, SourceAppointmentContext)
	if err == nil && d.Result == ResultApplied && actx.InteractionType.ChangesAppointment() {
		if actionErr := r.appointments.ProcessAppointmentAction(ctx, actx.AppointmentID, actx.InteractionType, ""); actionErr != nil {
			r.logger.Warn("appointment action failed", map[string]interface{}{
				"appointmentId": actx.AppointmentID,
				"interaction":   string(actx.InteractionType),
				"error":         actionErr,
			})
		}
	}
	return d, true, err
}
