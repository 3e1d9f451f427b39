// internal/workers/conversation/detect-conversation-outcome/models.go
package detectconversationoutcome

type Input struct {
	ConversationID string  `json:"conversationId"`
	Content        string  `json:"content"`
	Intent         string  `json:"intent"`
	Confidence     float64 `json:"confidence"`
	TenantID       string  `json:"tenantId,omitempty"`
	UserID         string  `json:"userId,omitempty"`
	PhoneNumber    string  `json:"phoneNumber,omitempty"`
}

// Output.Success is false only when no rule matched and the session was
// left open.
type Output struct {
	Success bool   `json:"success"`
	Result  string `json:"result"`
	Outcome string `json:"outcome,omitempty"`
	Source  string `json:"source,omitempty"`
}
