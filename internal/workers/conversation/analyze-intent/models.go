// internal/workers/conversation/analyze-intent/models.go
package analyzeintent

import "conversation-workers/internal/intent"

type Input struct {
	Message        string               `json:"message"`
	TenantID       string               `json:"tenantId"`
	SessionID      string               `json:"sessionId,omitempty"`
	UserID         string               `json:"userId,omitempty"`
	UserPhone      string               `json:"userPhone,omitempty"`
	BusinessDomain string               `json:"businessDomain,omitempty"`
	CurrentIntent  *intent.PriorIntent  `json:"currentIntent,omitempty"`
	History        []intent.PriorIntent `json:"history,omitempty"`
}

type Output struct {
	Intent         *intent.Intent        `json:"intent"`
	BusinessDomain intent.BusinessDomain `json:"businessDomain"`
}
