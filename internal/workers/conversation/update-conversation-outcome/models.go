// internal/workers/conversation/update-conversation-outcome/models.go
package updateconversationoutcome

type Input struct {
	ConversationID string `json:"conversationId"`
	Outcome        string `json:"outcome"`
	AppointmentID  string `json:"appointmentId,omitempty"`
}

type Output struct {
	Success bool   `json:"success"`
	Result  string `json:"result"`
}
