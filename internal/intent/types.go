// internal/intent/types.go
package intent

// IntentType is the classified purpose of an inbound message.
type IntentType string

const (
	IntentBookingRequest    IntentType = "booking_request"
	IntentBookingCancel     IntentType = "booking_cancel"
	IntentBookingReschedule IntentType = "booking_reschedule"
	IntentBookingInquiry    IntentType = "booking_inquiry"
	IntentServiceInquiry    IntentType = "service_inquiry"
	IntentAvailabilityCheck IntentType = "availability_check"
	IntentPriceInquiry      IntentType = "price_inquiry"
	IntentBusinessHours     IntentType = "business_hours"
	IntentLocationInquiry   IntentType = "location_inquiry"
	IntentGeneralGreeting   IntentType = "general_greeting"
	IntentComplaint         IntentType = "complaint"
	IntentCompliment        IntentType = "compliment"
	IntentEscalationRequest IntentType = "escalation_request"
	IntentEmergency         IntentType = "emergency"
	IntentInfoRequest       IntentType = "info_request"
	IntentOther             IntentType = "other"
)

// BusinessDomain is the vertical a tenant operates in.
type BusinessDomain string

const (
	DomainHealthcare BusinessDomain = "healthcare"
	DomainBeauty     BusinessDomain = "beauty"
	DomainLegal      BusinessDomain = "legal"
	DomainEducation  BusinessDomain = "education"
	DomainSports     BusinessDomain = "sports"
	DomainConsulting BusinessDomain = "consulting"
	DomainOther      BusinessDomain = "other"
)

// EntityType names an extractable span.
type EntityType string

const (
	EntityServiceName  EntityType = "service_name"
	EntityDate         EntityType = "date"
	EntityTime         EntityType = "time"
	EntityPersonName   EntityType = "person_name"
	EntityPhoneNumber  EntityType = "phone_number"
	EntityUrgencyLevel EntityType = "urgency_level"
)

type UrgencyLevel string

const (
	UrgencyHigh   UrgencyLevel = "alta"
	UrgencyMedium UrgencyLevel = "media"
	UrgencyLow    UrgencyLevel = "baixa"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Entity is a typed span of the normalized message. Start and End are byte
// offsets into the normalized text.
type Entity struct {
	Type       EntityType `json:"type"`
	Value      string     `json:"value"`
	Confidence float64    `json:"confidence"`
	Start      int        `json:"start"`
	End        int        `json:"end"`
}

// Context carries the signals derived while classifying a message.
type Context struct {
	BusinessDomain   BusinessDomain `json:"businessDomain,omitempty"`
	ConversationTurn int            `json:"conversationTurn"`
	PreviousIntent   IntentType     `json:"previousIntent,omitempty"`
	UrgencyLevel     UrgencyLevel   `json:"urgencyLevel"`
	Sentiment        Sentiment      `json:"sentiment"`
}

// Intent is the classification result for one inbound message.
type Intent struct {
	Type       IntentType `json:"type"`
	Confidence float64    `json:"confidence"`
	Entities   []Entity   `json:"entities"`
	Context    Context    `json:"context"`
}

// PriorIntent is one earlier classification in the same conversation.
type PriorIntent struct {
	Type       IntentType `json:"type"`
	Confidence float64    `json:"confidence"`
}

type TenantConfig struct {
	Domain BusinessDomain `json:"domain,omitempty"`
}

// TenantContext is what the caller knows about the tenant and the
// conversation when a message arrives.
type TenantContext struct {
	TenantID      string        `json:"tenantId,omitempty"`
	TenantConfig  *TenantConfig `json:"tenantConfig,omitempty"`
	CurrentIntent *PriorIntent  `json:"currentIntent,omitempty"`
}

func (c TenantContext) domain() BusinessDomain {
	if c.TenantConfig == nil {
		return ""
	}
	return c.TenantConfig.Domain
}
