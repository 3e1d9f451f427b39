// internal/telemetry/service.go
package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"conversation-workers/internal/common/database"
	"conversation-workers/internal/common/logger"
	"conversation-workers/internal/models"
	"conversation-workers/internal/outcome"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	intentKeyPrefix = "intent_telemetry:"

	stageOutcomeReached = "outcome_reached"
	sourceManualCleanup = "manual_cleanup"

	defaultPeriodDays = 30
	topN              = 10
)

var (
	ErrIntentNotTracked     = errors.New("INTENT_NOT_TRACKED")
	ErrInvalidSession       = errors.New("INVALID_SESSION_ID")
	ErrTelemetryQueryFailed = errors.New("TELEMETRY_QUERY_FAILED")
)

const (
	insertTelemetrySQL = `INSERT INTO intent_outcome_telemetry (
			tenant_id, session_id_uuid, user_phone, user_id, conversation_id,
			intent_detected, intent_timestamp, outcome_finalized, outcome_timestamp,
			conversion_time_seconds, abandoned, abandonment_stage,
			conversation_duration_seconds, source
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	selectTelemetrySQL = `SELECT intent_detected, outcome_finalized, abandoned, conversion_time_seconds
		FROM intent_outcome_telemetry
		WHERE tenant_id = $1 AND created_at >= $2`
)

// IntentEvent is emitted for every classified inbound message.
type IntentEvent struct {
	TenantID   string
	SessionID  string
	UserPhone  string
	UserID     string
	Intent     string
	Confidence float64
}

// Service tracks intent snapshots in Redis until the session reaches an
// outcome, then persists one intent_outcome_telemetry row.
type Service struct {
	redis  redis.Cmdable
	db     *sql.DB
	ttl    time.Duration
	logger logger.Logger
	now    func() time.Time
}

func NewService(rdb redis.Cmdable, db *sql.DB, ttl time.Duration, log logger.Logger) *Service {
	return &Service{
		redis:  rdb,
		db:     db,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "intent-telemetry"}),
		now:    time.Now,
	}
}

func intentKey(sessionID string) string {
	return intentKeyPrefix + sessionID
}

// RecordIntentDetected refreshes the session snapshot with the latest intent.
// The conversation start of an existing snapshot is kept.
func (s *Service) RecordIntentDetected(ctx context.Context, event IntentEvent) error {
	if event.SessionID == "" {
		return fmt.Errorf("%w: empty session id", ErrInvalidSession)
	}

	now := s.now().UTC()
	snapshot := models.IntentSnapshot{
		TenantID:          event.TenantID,
		SessionID:         event.SessionID,
		UserPhone:         event.UserPhone,
		UserID:            event.UserID,
		Intent:            event.Intent,
		IntentConfidence:  event.Confidence,
		IntentTimestamp:   now,
		ConversationStart: now,
	}

	var previous models.IntentSnapshot
	if found, err := database.GetJSON(ctx, s.redis, intentKey(event.SessionID), &previous); err == nil && found {
		snapshot.ConversationStart = previous.ConversationStart
	}

	if err := database.SetJSON(ctx, s.redis, intentKey(event.SessionID), snapshot, s.ttl); err != nil {
		s.logger.Error("failed to record intent", map[string]interface{}{
			"sessionId": event.SessionID,
			"error":     err,
		})
		return err
	}

	s.logger.Debug("intent recorded", map[string]interface{}{
		"sessionId": event.SessionID,
		"intent":    event.Intent,
	})
	return nil
}

func (s *Service) RecordOutcomeFinalized(ctx context.Context, event outcome.OutcomeEvent) error {
	snapshot, err := s.loadSnapshot(ctx, event.SessionID)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	conversion := roundSeconds(now.Sub(snapshot.IntentTimestamp))
	record := s.baseRecord(snapshot, event.TenantID, event.UserID, event.ConversationID, string(event.Source), now)
	record.OutcomeFinalized = string(event.Outcome)
	record.OutcomeTimestamp = &now
	record.ConversionTimeSeconds = &conversion
	record.AbandonmentStage = stageOutcomeReached

	if err := s.persist(ctx, record); err != nil {
		return err
	}

	s.logger.Info("intent converted", map[string]interface{}{
		"sessionId":      event.SessionID,
		"intent":         snapshot.Intent,
		"outcome":        string(event.Outcome),
		"conversionTime": conversion,
		"source":         string(event.Source),
	})
	return nil
}

func (s *Service) RecordConversationAbandoned(ctx context.Context, event outcome.AbandonmentEvent) error {
	snapshot, err := s.loadSnapshot(ctx, event.SessionID)
	if err != nil {
		return err
	}

	record := s.baseRecord(snapshot, event.TenantID, event.UserID, event.ConversationID, string(event.Source), s.now().UTC())
	record.OutcomeFinalized = string(event.Outcome)
	record.Abandoned = true
	record.AbandonmentStage = string(event.Reason)

	if err := s.persist(ctx, record); err != nil {
		return err
	}

	s.logger.Info("conversation abandoned", map[string]interface{}{
		"sessionId": event.SessionID,
		"intent":    snapshot.Intent,
		"stage":     string(event.Reason),
		"source":    string(event.Source),
	})
	return nil
}

// MarkSessionAbandoned records an intent_only abandonment without touching
// the conversation outcome.
func (s *Service) MarkSessionAbandoned(ctx context.Context, sessionID string) error {
	return s.RecordConversationAbandoned(ctx, outcome.AbandonmentEvent{
		SessionID: sessionID,
		Reason:    outcome.ReasonIntentOnly,
		Source:    sourceManualCleanup,
	})
}

func (s *Service) loadSnapshot(ctx context.Context, sessionID string) (*models.IntentSnapshot, error) {
	var snapshot models.IntentSnapshot
	found, err := database.GetJSON(ctx, s.redis, intentKey(sessionID), &snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to read intent snapshot: %w", err)
	}
	if !found {
		s.logger.Warn("no intent tracked for session", map[string]interface{}{"sessionId": sessionID})
		return nil, fmt.Errorf("%w: %s", ErrIntentNotTracked, sessionID)
	}
	return &snapshot, nil
}

func (s *Service) baseRecord(snapshot *models.IntentSnapshot, tenantID, userID, conversationID, source string, now time.Time) models.TelemetryRecord {
	if tenantID == "" {
		tenantID = snapshot.TenantID
	}
	if userID == "" {
		userID = snapshot.UserID
	}
	return models.TelemetryRecord{
		TenantID:                    tenantID,
		SessionID:                   snapshot.SessionID,
		UserPhone:                   snapshot.UserPhone,
		UserID:                      userID,
		ConversationID:              conversationID,
		IntentDetected:              snapshot.Intent,
		IntentTimestamp:             snapshot.IntentTimestamp,
		ConversationDurationSeconds: roundSeconds(now.Sub(snapshot.ConversationStart)),
		Source:                      source,
	}
}

// persist inserts the row and drops the snapshot so a session converts once.
func (s *Service) persist(ctx context.Context, r models.TelemetryRecord) error {
	if uuid.Validate(r.TenantID) != nil || uuid.Validate(r.SessionID) != nil {
		return fmt.Errorf("%w: tenant %q session %q", ErrInvalidSession, r.TenantID, r.SessionID)
	}

	_, err := s.db.ExecContext(ctx, insertTelemetrySQL,
		r.TenantID,
		r.SessionID,
		nullable(r.UserPhone),
		nullableUUID(r.UserID),
		nullableUUID(r.ConversationID),
		r.IntentDetected,
		r.IntentTimestamp,
		nullable(r.OutcomeFinalized),
		r.OutcomeTimestamp,
		r.ConversionTimeSeconds,
		r.Abandoned,
		nullable(r.AbandonmentStage),
		r.ConversationDurationSeconds,
		r.Source,
	)
	if err != nil {
		s.logger.Error("failed to persist telemetry", map[string]interface{}{
			"sessionId": r.SessionID,
			"error":     err,
		})
		return fmt.Errorf("failed to persist telemetry: %w", err)
	}

	if err := s.redis.Del(ctx, intentKey(r.SessionID)).Err(); err != nil {
		s.logger.Warn("failed to clear intent snapshot", map[string]interface{}{
			"sessionId": r.SessionID,
			"error":     err,
		})
	}
	return nil
}

// ConversionMetrics aggregates the tenant's telemetry rows of the last
// periodDays days. Rates are percentages rounded to two decimals.
func (s *Service) ConversionMetrics(ctx context.Context, tenantID string, periodDays int) (*models.ConversionMetrics, error) {
	if periodDays <= 0 {
		periodDays = defaultPeriodDays
	}
	since := s.now().UTC().AddDate(0, 0, -periodDays)

	rows, err := s.db.QueryContext(ctx, selectTelemetrySQL, tenantID, since)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTelemetryQueryFailed, err)
	}
	defer rows.Close()

	var agg aggregator
	for rows.Next() {
		var row telemetryRow
		var outcomeName sql.NullString
		var conversion sql.NullInt64
		if err := rows.Scan(&row.intent, &outcomeName, &row.abandoned, &conversion); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTelemetryQueryFailed, err)
		}
		row.outcome = outcomeName.String
		row.conversionSeconds = conversion.Int64
		agg.add(row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTelemetryQueryFailed, err)
	}

	return agg.metrics(), nil
}

type telemetryRow struct {
	intent            string
	outcome           string
	abandoned         bool
	conversionSeconds int64
}

func (r telemetryRow) converted() bool {
	return !r.abandoned && r.outcome != ""
}

type intentStat struct {
	name        string
	count       int
	conversions int
}

type outcomeStat struct {
	name      string
	count     int
	totalTime int64
}

// aggregator keeps stats in first-seen order so ties keep that order.
type aggregator struct {
	total       int
	converted   int
	totalTime   int64
	intents     []*intentStat
	intentIdx   map[string]*intentStat
	outcomes    []*outcomeStat
	outcomesIdx map[string]*outcomeStat
}

func (a *aggregator) add(r telemetryRow) {
	if a.intentIdx == nil {
		a.intentIdx = make(map[string]*intentStat)
		a.outcomesIdx = make(map[string]*outcomeStat)
	}
	a.total++

	is, ok := a.intentIdx[r.intent]
	if !ok {
		is = &intentStat{name: r.intent}
		a.intentIdx[r.intent] = is
		a.intents = append(a.intents, is)
	}
	is.count++

	if !r.converted() {
		return
	}
	is.conversions++
	a.converted++
	a.totalTime += r.conversionSeconds

	os, ok := a.outcomesIdx[r.outcome]
	if !ok {
		os = &outcomeStat{name: r.outcome}
		a.outcomesIdx[r.outcome] = os
		a.outcomes = append(a.outcomes, os)
	}
	os.count++
	os.totalTime += r.conversionSeconds
}

func (a *aggregator) metrics() *models.ConversionMetrics {
	m := &models.ConversionMetrics{
		TopIntents:  []models.IntentConversion{},
		TopOutcomes: []models.OutcomeTiming{},
	}
	if a.total == 0 {
		return m
	}

	m.TotalIntents = a.total
	m.TotalOutcomes = a.converted
	m.ConversionRate = round2(percent(a.converted, a.total))
	m.AbandonmentRate = round2(percent(a.total-a.converted, a.total))
	if a.converted > 0 {
		m.AvgConversionTimeSeconds = int64(math.Round(float64(a.totalTime) / float64(a.converted)))
	}

	sort.SliceStable(a.intents, func(i, j int) bool { return a.intents[i].count > a.intents[j].count })
	for _, is := range a.intents {
		if len(m.TopIntents) == topN {
			break
		}
		m.TopIntents = append(m.TopIntents, models.IntentConversion{
			Intent:         is.name,
			Count:          is.count,
			ConversionRate: percent(is.conversions, is.count),
		})
	}

	sort.SliceStable(a.outcomes, func(i, j int) bool { return a.outcomes[i].count > a.outcomes[j].count })
	for _, os := range a.outcomes {
		if len(m.TopOutcomes) == topN {
			break
		}
		m.TopOutcomes = append(m.TopOutcomes, models.OutcomeTiming{
			Outcome: os.name,
			Count:   os.count,
			AvgTime: int64(math.Round(float64(os.totalTime) / float64(os.count))),
		})
	}
	return m
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func roundSeconds(d time.Duration) int64 {
	return int64(math.Round(d.Seconds()))
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// nullableUUID drops ids the UUID columns would reject.
func nullableUUID(s string) interface{} {
	if uuid.Validate(s) != nil {
		return nil
	}
	return s
}
