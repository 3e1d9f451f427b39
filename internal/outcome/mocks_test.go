package outcome

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"conversation-workers/internal/common/logger"
	"conversation-workers/internal/models"

	"github.com/stretchr/testify/mock"
)

var fixedNow = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

// memoryStore enforces the same null guard as the conditional UPDATE.
type memoryStore struct {
	mu       sync.Mutex
	messages map[string]*models.ConversationMessage
	failOn   map[string]error
	updates  int
}

func newMemoryStore(messages ...models.ConversationMessage) *memoryStore {
	s := &memoryStore{
		messages: make(map[string]*models.ConversationMessage),
		failOn:   make(map[string]error),
	}
	for i := range messages {
		m := messages[i]
		s.messages[m.ID] = &m
	}
	return s
}

func (s *memoryStore) GetMessage(_ context.Context, id string) (*models.ConversationMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failOn[id]; ok {
		return nil, err
	}
	m, ok := s.messages[id]
	if !ok {
		return nil, ErrMessageNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *memoryStore) GetLatestMessage(_ context.Context, sessionID string) (*models.ConversationMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.ConversationMessage
	for _, m := range s.messages {
		if m.SessionID == sessionID && (latest == nil || m.CreatedAt.After(latest.CreatedAt)) {
			latest = m
		}
	}
	if latest == nil {
		return nil, ErrSessionNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *memoryStore) SetOutcomeIfNull(_ context.Context, id string, outcome Outcome, _ time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok || m.Outcome != "" {
		return 0, nil
	}
	m.Outcome = string(outcome)
	s.updates++
	return 1, nil
}

func (s *memoryStore) FindStaleSessions(_ context.Context, q StaleSessionQuery) ([]models.StaleSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bySession := map[string]*models.StaleSession{}
	finalized := map[string]bool{}
	booking := map[string]bool{}
	for _, m := range s.messages {
		if m.SessionID == "" {
			continue
		}
		if (q.TenantID != "" && m.TenantID != q.TenantID) || (q.UserID != "" && m.UserID != q.UserID) {
			continue
		}
		if m.Outcome != "" {
			finalized[m.SessionID] = true
		}
		if m.IsFromUser && (m.Intent == "booking_request" || m.Intent == "booking") {
			booking[m.SessionID] = true
		}
		cur, ok := bySession[m.SessionID]
		if !ok || m.CreatedAt.After(cur.LastActivity) {
			bySession[m.SessionID] = &models.StaleSession{
				SessionID:     m.SessionID,
				TenantID:      m.TenantID,
				UserID:        m.UserID,
				LastMessageID: m.ID,
				LastActivity:  m.CreatedAt,
			}
		}
	}

	var out []models.StaleSession
	for id, session := range bySession {
		if q.ExcludeBooking && booking[id] {
			continue
		}
		if !finalized[id] && session.LastActivity.Before(q.Before) {
			out = append(out, *session)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivity.After(out[j].LastActivity) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *memoryStore) GetSessionMessages(_ context.Context, sessionID string) ([]models.ConversationMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ConversationMessage
	for _, m := range s.messages {
		if m.SessionID == sessionID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memoryStore) outcomesInSession(sessionID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, m := range s.messages {
		if m.SessionID == sessionID && m.Outcome != "" {
			out = append(out, m.Outcome)
		}
	}
	return out
}

func (s *memoryStore) outcomeOf(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages[id].Outcome
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetMessage(ctx context.Context, id string) (*models.ConversationMessage, error) {
	args := m.Called(ctx, id)
	msg, _ := args.Get(0).(*models.ConversationMessage)
	return msg, args.Error(1)
}

func (m *MockStore) GetLatestMessage(ctx context.Context, sessionID string) (*models.ConversationMessage, error) {
	args := m.Called(ctx, sessionID)
	msg, _ := args.Get(0).(*models.ConversationMessage)
	return msg, args.Error(1)
}

func (m *MockStore) SetOutcomeIfNull(ctx context.Context, id string, outcome Outcome, at time.Time) (int64, error) {
	args := m.Called(ctx, id, outcome, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) FindStaleSessions(ctx context.Context, q StaleSessionQuery) ([]models.StaleSession, error) {
	args := m.Called(ctx, q)
	sessions, _ := args.Get(0).([]models.StaleSession)
	return sessions, args.Error(1)
}

func (m *MockStore) GetSessionMessages(ctx context.Context, sessionID string) ([]models.ConversationMessage, error) {
	args := m.Called(ctx, sessionID)
	messages, _ := args.Get(0).([]models.ConversationMessage)
	return messages, args.Error(1)
}

type MockTelemetry struct {
	mock.Mock
}

func (m *MockTelemetry) RecordOutcomeFinalized(ctx context.Context, event OutcomeEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockTelemetry) RecordConversationAbandoned(ctx context.Context, event AbandonmentEvent) error {
	return m.Called(ctx, event).Error(0)
}

type MockAppointments struct {
	mock.Mock
}

func (m *MockAppointments) DetectAppointmentContext(ctx context.Context, q AppointmentQuery) (*AppointmentContext, error) {
	args := m.Called(ctx, q)
	actx, _ := args.Get(0).(*AppointmentContext)
	return actx, args.Error(1)
}

func (m *MockAppointments) ProcessAppointmentAction(ctx context.Context, appointmentID string, interaction InteractionType, reason string) error {
	return m.Called(ctx, appointmentID, interaction, reason).Error(0)
}

func testConfig() Config {
	return Config{
		TimeoutAfter:        5 * time.Minute,
		BookingAbandonAfter: time.Hour,
		FinishedAfter:       3 * time.Minute,
		ScanLimit:           500,
		SweepConcurrency:    1,
		SpamConfidence:      0.3,
	}
}

func newTestReconciler(t *testing.T, store MessageStore, telemetry TelemetrySink, appointments AppointmentDetector) *Reconciler {
	t.Helper()
	r := NewReconciler(store, telemetry, appointments, testConfig(), logger.NewTestLogger(t))
	r.now = func() time.Time { return fixedNow }
	return r
}

func msg(id, session string, minutesAgo int, fromUser bool, content string) models.ConversationMessage {
	return models.ConversationMessage{
		ID:         id,
		SessionID:  session,
		TenantID:   "tenant-1",
		UserID:     "user-1",
		Content:    content,
		IsFromUser: fromUser,
		CreatedAt:  fixedNow.Add(-time.Duration(minutesAgo) * time.Minute),
	}
}
