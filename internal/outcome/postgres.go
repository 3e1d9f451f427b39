package outcome

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"conversation-workers/internal/models"
)

const (
	selectMessageSQL = `SELECT id, session_id_uuid, tenant_id, user_id, conversation_outcome
		FROM conversation_history WHERE id = $1`

	selectLatestMessageSQL = `SELECT id, session_id_uuid, tenant_id, user_id, conversation_outcome
		FROM conversation_history WHERE session_id_uuid = $1
		ORDER BY created_at DESC LIMIT 1`

	updateOutcomeSQL = `UPDATE conversation_history
		SET conversation_outcome = $1, updated_at = $2
		WHERE id = $3 AND conversation_outcome IS NULL`

	selectStaleSessionsSQL = `SELECT session_id_uuid, tenant_id, user_id,
			(array_agg(id ORDER BY created_at DESC))[1] AS last_message_id,
			MAX(created_at) AS last_activity
		FROM conversation_history
		WHERE ($1 = '' OR tenant_id::text = $1)
			AND ($2 = '' OR user_id::text = $2)
			AND session_id_uuid IS NOT NULL
		GROUP BY session_id_uuid, tenant_id, user_id
		HAVING MAX(created_at) < $3 AND COUNT(conversation_outcome) = 0
			AND (NOT $5::boolean OR NOT COALESCE(bool_or(is_from_user AND intent_detected IN ('booking_request', 'booking')), false))
		ORDER BY last_activity DESC
		LIMIT $4`

	selectSessionMessagesSQL = `SELECT id, session_id_uuid, tenant_id, user_id, phone_number, content,
			is_from_user, intent_detected, confidence_score, conversation_outcome, created_at
		FROM conversation_history WHERE session_id_uuid = $1
		ORDER BY created_at ASC`
)

// PostgresStore implements MessageStore on conversation_history.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetMessage(ctx context.Context, id string) (*models.ConversationMessage, error) {
	msg, err := s.scanHeader(s.db.QueryRowContext(ctx, selectMessageSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrMessageNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load message %s: %w", id, err)
	}
	return msg, nil
}

func (s *PostgresStore) GetLatestMessage(ctx context.Context, sessionID string) (*models.ConversationMessage, error) {
	msg, err := s.scanHeader(s.db.QueryRowContext(ctx, selectLatestMessageSQL, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest message of session %s: %w", sessionID, err)
	}
	return msg, nil
}

func (s *PostgresStore) scanHeader(row *sql.Row) (*models.ConversationMessage, error) {
	var msg models.ConversationMessage
	var sessionID, userID, outcome sql.NullString
	if err := row.Scan(&msg.ID, &sessionID, &msg.TenantID, &userID, &outcome); err != nil {
		return nil, err
	}
	msg.SessionID = sessionID.String
	msg.UserID = userID.String
	msg.Outcome = outcome.String
	return &msg, nil
}

func (s *PostgresStore) SetOutcomeIfNull(ctx context.Context, id string, outcome Outcome, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, updateOutcomeSQL, string(outcome), at, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PostgresStore) FindStaleSessions(ctx context.Context, q StaleSessionQuery) ([]models.StaleSession, error) {
	rows, err := s.db.QueryContext(ctx, selectStaleSessionsSQL, q.TenantID, q.UserID, q.Before, q.Limit, q.ExcludeBooking)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.StaleSession
	for rows.Next() {
		var session models.StaleSession
		var userID sql.NullString
		if err := rows.Scan(&session.SessionID, &session.TenantID, &userID, &session.LastMessageID, &session.LastActivity); err != nil {
			return nil, err
		}
		session.UserID = userID.String
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (s *PostgresStore) GetSessionMessages(ctx context.Context, sessionID string) ([]models.ConversationMessage, error) {
	rows, err := s.db.QueryContext(ctx, selectSessionMessagesSQL, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.ConversationMessage
	for rows.Next() {
		var msg models.ConversationMessage
		var session, userID, phone, intent, outcome sql.NullString
		var confidence sql.NullFloat64
		if err := rows.Scan(&msg.ID, &session, &msg.TenantID, &userID, &phone, &msg.Content,
			&msg.IsFromUser, &intent, &confidence, &outcome, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msg.SessionID = session.String
		msg.UserID = userID.String
		msg.PhoneNumber = phone.String
		msg.Intent = intent.String
		msg.Confidence = confidence.Float64
		msg.Outcome = outcome.String
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
