package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/memrook/askdocs/internal/analytics"
)

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// GetOrCreateUser returns the internal user ID for a Telegram user,
// creating the row on first contact. Existing users get their profile
// fields and last_active refreshed.
func (s *store) GetOrCreateUser(ctx context.Context, telegramID int64, username, firstName, lastName string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, "SELECT id FROM users WHERE telegram_id = ?", telegramID).Scan(&id)
	switch {
	case err == nil:
		_, err = s.db.ExecContext(ctx, `
			UPDATE users
			SET username = ?, first_name = ?, last_name = ?, last_active = ?
			WHERE id = ?`,
			username, firstName, lastName, nowUTC(), id,
		)
		if err != nil {
			return 0, fmt.Errorf("sqlite: refresh user: %w", err)
		}
		return id, nil

	case errors.Is(err, sql.ErrNoRows):
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO users (telegram_id, username, first_name, last_name)
			VALUES (?, ?, ?, ?)`,
			telegramID, username, firstName, lastName,
		)
		if err != nil {
			return 0, fmt.Errorf("sqlite: create user: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("sqlite: last insert id: %w", err)
		}
		return id, nil

	default:
		return 0, fmt.Errorf("sqlite: lookup user: %w", err)
	}
}

// StartConversation opens a new active conversation for the user,
// completing any previous active one first.
func (s *store) StartConversation(ctx context.Context, userID int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		UPDATE conversations
		SET ended_at = ?,
		    status = 'completed',
		    duration_seconds = CAST((julianday('now') - julianday(started_at)) * 86400 AS INTEGER)
		WHERE user_id = ? AND status = 'active'`,
		nowUTC(), userID,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: close previous conversation: %w", err)
	}

	res, err := tx.ExecContext(ctx, "INSERT INTO conversations (user_id) VALUES (?)", userID)
	if err != nil {
		return 0, fmt.Errorf("sqlite: create conversation: %w", err)
	}
	convID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlite: last insert id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET total_conversations = total_conversations + 1 WHERE id = ?`,
		userID,
	); err != nil {
		return 0, fmt.Errorf("sqlite: bump conversation count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return convID, nil
}

// ActiveConversation returns the user's current active conversation ID.
func (s *store) ActiveConversation(ctx context.Context, userID int64) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM conversations
		WHERE user_id = ? AND status = 'active'
		ORDER BY started_at DESC LIMIT 1`,
		userID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, analytics.ErrNoActiveConversation
	}
	if err != nil {
		return 0, fmt.Errorf("sqlite: lookup active conversation: %w", err)
	}
	return id, nil
}

// AppendMessage records one turn and bumps the conversation and user
// message counters.
func (s *store) AppendMessage(ctx context.Context, conversationID int64, turn analytics.Turn) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	msgType := turn.MessageType
	if msgType == "" {
		msgType = "text"
	}
	hasError := 0
	if turn.HasError {
		hasError = 1
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (conversation_id, role, content, message_type, processing_time_ms, tokens_used, has_error, error_details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		conversationID, turn.Role, turn.Content, msgType,
		turn.ProcessingTime.Milliseconds(), turn.TokensUsed, hasError, turn.ErrorDetails,
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE conversations SET total_messages = total_messages + 1 WHERE id = ?`,
		conversationID,
	); err != nil {
		return fmt.Errorf("sqlite: bump conversation messages: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE users
		SET total_messages = total_messages + 1, last_active = ?
		WHERE id = (SELECT user_id FROM conversations WHERE id = ?)`,
		nowUTC(), conversationID,
	); err != nil {
		return fmt.Errorf("sqlite: bump user messages: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// EndConversation marks a conversation completed and records its duration.
func (s *store) EndConversation(ctx context.Context, conversationID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE conversations
		SET ended_at = ?,
		    status = 'completed',
		    duration_seconds = CAST((julianday('now') - julianday(started_at)) * 86400 AS INTEGER)
		WHERE id = ? AND status = 'active'`,
		nowUTC(), conversationID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: end conversation: %w", err)
	}
	return nil
}
