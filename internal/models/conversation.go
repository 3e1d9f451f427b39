// internal/models/conversation.go
package models

import "time"

// ConversationMessage is one row of conversation_history. Nullable columns
// are carried as empty strings.
type ConversationMessage struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId,omitempty"`
	TenantID    string    `json:"tenantId"`
	UserID      string    `json:"userId,omitempty"`
	PhoneNumber string    `json:"phoneNumber,omitempty"`
	Content     string    `json:"content"`
	IsFromUser  bool      `json:"isFromUser"`
	Intent      string    `json:"intent,omitempty"`
	Confidence  float64   `json:"confidence,omitempty"`
	Outcome     string    `json:"conversationOutcome,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// HasOutcome reports whether the message already carries a terminal outcome.
func (m *ConversationMessage) HasOutcome() bool {
	return m.Outcome != ""
}

// StaleSession is a session with no outcome whose last message is older
// than a sweep threshold.
type StaleSession struct {
	SessionID     string    `json:"sessionId"`
	TenantID      string    `json:"tenantId"`
	UserID        string    `json:"userId,omitempty"`
	LastMessageID string    `json:"lastMessageId"`
	LastActivity  time.Time `json:"lastActivity"`
}
