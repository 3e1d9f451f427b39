package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"conversation-workers/internal/common/logger"
	"conversation-workers/internal/models"
	"conversation-workers/internal/outcome"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	tenantID  = "7d1c4a52-0b6e-4a53-9a43-3f7f0c1b2e10"
	sessionID = "0f9a6a9e-6a0e-4f7e-8d58-1c2b3a4d5e6f"
	userID    = "a3b2c1d0-1111-4222-8333-444455556666"
	messageID = "c0ffee00-aaaa-4bbb-8ccc-dddddddddddd"
)

var fixedNow = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

type fixture struct {
	service *Service
	redis   *miniredis.Miniredis
	sql     sqlmock.Sqlmock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := NewService(rdb, db, time.Hour, logger.NewTestLogger(t))
	s.now = func() time.Time { return fixedNow }
	return &fixture{service: s, redis: mr, sql: mock}
}

func (f *fixture) seed(t *testing.T, snapshot models.IntentSnapshot) {
	t.Helper()
	data, err := json.Marshal(snapshot)
	require.NoError(t, err)
	require.NoError(t, f.redis.Set(intentKey(snapshot.SessionID), string(data)))
}

func bookingSnapshot() models.IntentSnapshot {
	return models.IntentSnapshot{
		TenantID:          tenantID,
		SessionID:         sessionID,
		UserPhone:         "5511987654321",
		Intent:            "booking_request",
		IntentConfidence:  0.9,
		IntentTimestamp:   fixedNow.Add(-90 * time.Second),
		ConversationStart: fixedNow.Add(-5 * time.Minute),
	}
}

func TestRecordIntentDetected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.RecordIntentDetected(ctx, IntentEvent{
		TenantID:   tenantID,
		SessionID:  sessionID,
		UserPhone:  "5511987654321",
		Intent:     "greeting",
		Confidence: 0.6,
	}))
	assert.Equal(t, time.Hour, f.redis.TTL(intentKey(sessionID)))

	f.service.now = func() time.Time { return fixedNow.Add(2 * time.Minute) }
	require.NoError(t, f.service.RecordIntentDetected(ctx, IntentEvent{
		TenantID:  tenantID,
		SessionID: sessionID,
		Intent:    "booking_request",
	}))

	raw, err := f.redis.Get(intentKey(sessionID))
	require.NoError(t, err)
	var snapshot models.IntentSnapshot
	require.NoError(t, json.Unmarshal([]byte(raw), &snapshot))
	assert.Equal(t, "booking_request", snapshot.Intent)
	assert.True(t, snapshot.ConversationStart.Equal(fixedNow))
	assert.True(t, snapshot.IntentTimestamp.Equal(fixedNow.Add(2*time.Minute)))
}

func TestRecordIntentDetected_EmptySession(t *testing.T) {
	f := newFixture(t)

	err := f.service.RecordIntentDetected(context.Background(), IntentEvent{Intent: "other"})

	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestRecordIntentDetected_RedisFailure(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	s := NewService(rdb, nil, time.Hour, logger.NewTestLogger(t))
	s.now = func() time.Time { return fixedNow }

	expected, _ := json.Marshal(models.IntentSnapshot{
		TenantID:          tenantID,
		SessionID:         sessionID,
		Intent:            "other",
		IntentTimestamp:   fixedNow,
		ConversationStart: fixedNow,
	})
	mock.ExpectGet(intentKey(sessionID)).RedisNil()
	mock.ExpectSet(intentKey(sessionID), expected, time.Hour).SetErr(errors.New("READONLY"))

	err := s.RecordIntentDetected(context.Background(), IntentEvent{TenantID: tenantID, SessionID: sessionID, Intent: "other"})

	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordOutcomeFinalized(t *testing.T) {
	f := newFixture(t)
	f.seed(t, bookingSnapshot())

	f.sql.ExpectExec(`INSERT INTO intent_outcome_telemetry`).
		WithArgs(tenantID, sessionID, "5511987654321", userID, messageID, "booking_request",
			fixedNow.Add(-90*time.Second), "appointment_created", fixedNow, int64(90),
			false, "outcome_reached", int64(300), "update_outcome").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := f.service.RecordOutcomeFinalized(context.Background(), outcome.OutcomeEvent{
		SessionID:      sessionID,
		TenantID:       tenantID,
		UserID:         userID,
		ConversationID: messageID,
		Outcome:        outcome.OutcomeAppointmentCreated,
		Source:         outcome.SourceUpdateOutcome,
	})

	require.NoError(t, err)
	assert.False(t, f.redis.Exists(intentKey(sessionID)))
	assert.NoError(t, f.sql.ExpectationsWereMet())
}

func TestRecordConversationAbandoned(t *testing.T) {
	f := newFixture(t)
	f.seed(t, bookingSnapshot())

	f.sql.ExpectExec(`INSERT INTO intent_outcome_telemetry`).
		WithArgs(tenantID, sessionID, "5511987654321", nil, nil, "booking_request",
			fixedNow.Add(-90*time.Second), "booking_abandoned", nil, nil,
			true, "booking_flow", int64(300), "booking_sweep").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := f.service.RecordConversationAbandoned(context.Background(), outcome.AbandonmentEvent{
		SessionID:      sessionID,
		ConversationID: "not-a-uuid",
		Reason:         outcome.ReasonBookingFlow,
		Outcome:        outcome.OutcomeBookingAbandoned,
		Source:         outcome.SourceBookingSweep,
	})

	require.NoError(t, err)
	assert.False(t, f.redis.Exists(intentKey(sessionID)))
	assert.NoError(t, f.sql.ExpectationsWereMet())
}

func TestMarkSessionAbandoned(t *testing.T) {
	f := newFixture(t)
	f.seed(t, bookingSnapshot())

	f.sql.ExpectExec(`INSERT INTO intent_outcome_telemetry`).
		WithArgs(tenantID, sessionID, sqlmock.AnyArg(), nil, nil, "booking_request",
			sqlmock.AnyArg(), nil, nil, nil, true, "intent_only", int64(300), "manual_cleanup").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, f.service.MarkSessionAbandoned(context.Background(), sessionID))
	assert.NoError(t, f.sql.ExpectationsWereMet())
}

func TestRecord_NotTracked(t *testing.T) {
	f := newFixture(t)

	err := f.service.RecordOutcomeFinalized(context.Background(), outcome.OutcomeEvent{
		SessionID: sessionID,
		Outcome:   outcome.OutcomePriceInquiry,
	})

	assert.ErrorIs(t, err, ErrIntentNotTracked)
	assert.NoError(t, f.sql.ExpectationsWereMet())
}

func TestRecord_InsertFailureKeepsSnapshot(t *testing.T) {
	f := newFixture(t)
	f.seed(t, bookingSnapshot())

	f.sql.ExpectExec(`INSERT INTO intent_outcome_telemetry`).
		WillReturnError(errors.New("relation does not exist"))

	err := f.service.RecordOutcomeFinalized(context.Background(), outcome.OutcomeEvent{
		SessionID: sessionID,
		Outcome:   outcome.OutcomePriceInquiry,
	})

	require.Error(t, err)
	assert.True(t, f.redis.Exists(intentKey(sessionID)))
}

func TestRecord_InvalidSessionID(t *testing.T) {
	f := newFixture(t)
	snapshot := bookingSnapshot()
	snapshot.SessionID = "session-1"
	f.seed(t, snapshot)

	err := f.service.RecordOutcomeFinalized(context.Background(), outcome.OutcomeEvent{
		SessionID: "session-1",
		Outcome:   outcome.OutcomePriceInquiry,
	})

	assert.ErrorIs(t, err, ErrInvalidSession)
	assert.NoError(t, f.sql.ExpectationsWereMet())
}

func TestConversionMetrics(t *testing.T) {
	f := newFixture(t)

	rows := sqlmock.NewRows([]string{"intent_detected", "outcome_finalized", "abandoned", "conversion_time_seconds"}).
		AddRow("booking_request", "appointment_created", false, 120).
		AddRow("booking_request", nil, true, nil).
		AddRow("price_inquiry", "price_inquiry", false, 30).
		AddRow("booking_request", "appointment_created", false, 61).
		AddRow("info_request", "timeout_abandoned", true, nil)
	f.sql.ExpectQuery(`FROM intent_outcome_telemetry WHERE tenant_id = \$1 AND created_at >= \$2`).
		WithArgs(tenantID, fixedNow.AddDate(0, 0, -30)).
		WillReturnRows(rows)

	m, err := f.service.ConversionMetrics(context.Background(), tenantID, 30)

	require.NoError(t, err)
	assert.Equal(t, 5, m.TotalIntents)
	assert.Equal(t, 3, m.TotalOutcomes)
	assert.Equal(t, 60.0, m.ConversionRate)
	assert.Equal(t, 40.0, m.AbandonmentRate)
	assert.Equal(t, int64(70), m.AvgConversionTimeSeconds)

	require.Len(t, m.TopIntents, 3)
	assert.Equal(t, "booking_request", m.TopIntents[0].Intent)
	assert.Equal(t, 3, m.TopIntents[0].Count)
	assert.InDelta(t, 66.67, m.TopIntents[0].ConversionRate, 0.01)
	assert.Equal(t, "price_inquiry", m.TopIntents[1].Intent)
	assert.Equal(t, "info_request", m.TopIntents[2].Intent)

	require.Len(t, m.TopOutcomes, 2)
	assert.Equal(t, models.OutcomeTiming{Outcome: "appointment_created", Count: 2, AvgTime: 91}, m.TopOutcomes[0])
	assert.Equal(t, models.OutcomeTiming{Outcome: "price_inquiry", Count: 1, AvgTime: 30}, m.TopOutcomes[1])
	assert.NoError(t, f.sql.ExpectationsWereMet())
}

func TestConversionMetrics_Empty(t *testing.T) {
	f := newFixture(t)
	f.sql.ExpectQuery(`FROM intent_outcome_telemetry`).
		WithArgs(tenantID, fixedNow.AddDate(0, 0, -30)).
		WillReturnRows(sqlmock.NewRows([]string{"intent_detected", "outcome_finalized", "abandoned", "conversion_time_seconds"}))

	m, err := f.service.ConversionMetrics(context.Background(), tenantID, 0)

	require.NoError(t, err)
	assert.Zero(t, m.TotalIntents)
	assert.Zero(t, m.ConversionRate)
	assert.Empty(t, m.TopIntents)
	assert.NotNil(t, m.TopOutcomes)
}

func TestConversionMetrics_TopTen(t *testing.T) {
	f := newFixture(t)
	rows := sqlmock.NewRows([]string{"intent_detected", "outcome_finalized", "abandoned", "conversion_time_seconds"})
	for i := 0; i < 12; i++ {
		rows.AddRow(string(rune('a'+i)), nil, true, nil)
	}
	f.sql.ExpectQuery(`FROM intent_outcome_telemetry`).WillReturnRows(rows)

	m, err := f.service.ConversionMetrics(context.Background(), tenantID, 7)

	require.NoError(t, err)
	require.Len(t, m.TopIntents, 10)
	assert.Equal(t, "a", m.TopIntents[0].Intent)
	assert.Equal(t, "j", m.TopIntents[9].Intent)
	assert.Equal(t, 100.0, m.AbandonmentRate)
}

func TestConversionMetrics_QueryFailure(t *testing.T) {
	f := newFixture(t)
	f.sql.ExpectQuery(`FROM intent_outcome_telemetry`).WillReturnError(errors.New("canceling statement due to statement timeout"))

	_, err := f.service.ConversionMetrics(context.Background(), tenantID, 30)

	assert.ErrorIs(t, err, ErrTelemetryQueryFailed)
}
