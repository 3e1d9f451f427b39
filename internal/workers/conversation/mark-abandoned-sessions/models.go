// internal/workers/conversation/mark-abandoned-sessions/models.go
package markabandonedsessions

const (
	KindTimeout = "timeout"
	KindBooking = "booking"
	KindSession = "session"
)

type Input struct {
	Kind      string `json:"kind"`
	TenantID  string `json:"tenantId,omitempty"`
	UserID    string `json:"userId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

type Output struct {
	Outcome   string `json:"outcome,omitempty"`
	Total     int    `json:"total"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Summary   string `json:"summary"`
}
