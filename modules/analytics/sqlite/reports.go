package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/memrook/askdocs/internal/analytics"
)

const dailyActivityDays = 30

// UserStats aggregates one user's activity.
func (s *store) UserStats(ctx context.Context, telegramID int64) (*analytics.UserStats, error) {
	var (
		userID     int64
		stats      analytics.UserStats
		createdAt  string
		lastActive string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, created_at, last_active, total_messages, total_conversations
		FROM users WHERE telegram_id = ?`,
		telegramID,
	).Scan(&userID, &stats.Username, &createdAt, &lastActive, &stats.TotalMessages, &stats.TotalConversations)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", analytics.ErrUnknownUser, telegramID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: user stats: %w", err)
	}

	stats.TelegramID = telegramID
	stats.FirstSeen = parseTime(createdAt)
	stats.LastActive = parseTime(lastActive)

	var avgMsgs, avgDur sql.NullFloat64
	err = s.db.QueryRowContext(ctx, `
		SELECT AVG(total_messages), AVG(duration_seconds)
		FROM conversations
		WHERE user_id = ? AND status = 'completed'`,
		userID,
	).Scan(&avgMsgs, &avgDur)
	if err != nil {
		return nil, fmt.Errorf("sqlite: conversation averages: %w", err)
	}
	stats.AvgMessagesPerConv = avgMsgs.Float64
	stats.AvgConvDuration = time.Duration(avgDur.Float64 * float64(time.Second))

	rows, err := s.db.QueryContext(ctx, `
		SELECT date(m.created_at), COUNT(*)
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE c.user_id = ? AND m.created_at >= datetime('now', ?)
		GROUP BY date(m.created_at)
		ORDER BY date(m.created_at)`,
		userID, fmt.Sprintf("-%d days", dailyActivityDays),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: user daily activity: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var d analytics.DailyActivity
		if err := rows.Scan(&d.Date, &d.Messages); err != nil {
			return nil, fmt.Errorf("sqlite: scan daily activity: %w", err)
		}
		d.ActiveUsers = 1
		stats.DailyActivity = append(stats.DailyActivity, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: daily activity rows: %w", err)
	}

	return &stats, nil
}

// GlobalStats aggregates activity across all users for the last N days.
func (s *store) GlobalStats(ctx context.Context, days int) (*analytics.GlobalStats, error) {
	if days <= 0 {
		days = dailyActivityDays
	}
	since := fmt.Sprintf("-%d days", days)
	stats := &analytics.GlobalStats{Days: days}

	var avgMs sql.NullFloat64
	var errCount int
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM conversations WHERE started_at >= datetime('now', ?)),
			COUNT(*),
			COALESCE(SUM(has_error), 0),
			AVG(CASE WHEN processing_time_ms > 0 THEN processing_time_ms END)
		FROM messages WHERE created_at >= datetime('now', ?)`,
		since, since,
	).Scan(&stats.TotalUsers, &stats.TotalConversations, &stats.TotalMessages, &errCount, &avgMs)
	if err != nil {
		return nil, fmt.Errorf("sqlite: global totals: %w", err)
	}
	if stats.TotalMessages > 0 {
		stats.ErrorRatePercent = 100 * float64(errCount) / float64(stats.TotalMessages)
	}
	stats.AvgProcessingMs = avgMs.Float64

	rows, err := s.db.QueryContext(ctx, `
		SELECT date(m.created_at), COUNT(*), COUNT(DISTINCT c.user_id)
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE m.created_at >= datetime('now', ?)
		GROUP BY date(m.created_at)
		ORDER BY date(m.created_at)`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: global daily activity: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var d analytics.DailyActivity
		if err := rows.Scan(&d.Date, &d.Messages, &d.ActiveUsers); err != nil {
			return nil, fmt.Errorf("sqlite: scan daily activity: %w", err)
		}
		stats.DailyActivity = append(stats.DailyActivity, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: daily activity rows: %w", err)
	}

	hourRows, err := s.db.QueryContext(ctx, `
		SELECT CAST(strftime('%H', created_at) AS INTEGER), COUNT(*)
		FROM messages
		WHERE created_at >= datetime('now', ?)
		GROUP BY 1 ORDER BY 1`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: hourly distribution: %w", err)
	}
	defer func() { _ = hourRows.Close() }()

	for hourRows.Next() {
		var h analytics.HourlyBucket
		if err := hourRows.Scan(&h.Hour, &h.Messages); err != nil {
			return nil, fmt.Errorf("sqlite: scan hourly bucket: %w", err)
		}
		stats.HourlyDistribution = append(stats.HourlyDistribution, h)
	}
	if err := hourRows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: hourly rows: %w", err)
	}

	return stats, nil
}

// ExportConversations returns conversations with nested messages matching
// the filter.
func (s *store) ExportConversations(ctx context.Context, filter analytics.ExportFilter) ([]analytics.ExportedConversation, error) {
	query := `
		SELECT c.id, u.telegram_id, u.username, c.started_at, c.ended_at, c.status
		FROM conversations c
		JOIN users u ON u.id = c.user_id
		WHERE 1=1`
	var args []any
	if filter.TelegramID != 0 {
		query += " AND u.telegram_id = ?"
		args = append(args, filter.TelegramID)
	}
	if !filter.From.IsZero() {
		query += " AND c.started_at >= ?"
		args = append(args, filter.From.UTC().Format(time.RFC3339Nano))
	}
	if !filter.To.IsZero() {
		query += " AND c.started_at < ?"
		args = append(args, filter.To.UTC().Format(time.RFC3339Nano))
	}
	query += " ORDER BY c.started_at"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: export conversations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var convs []analytics.ExportedConversation
	for rows.Next() {
		var (
			conv      analytics.ExportedConversation
			startedAt string
			endedAt   sql.NullString
		)
		if err := rows.Scan(&conv.ID, &conv.TelegramID, &conv.Username, &startedAt, &endedAt, &conv.Status); err != nil {
			return nil, fmt.Errorf("sqlite: scan conversation: %w", err)
		}
		conv.StartedAt = parseTime(startedAt)
		if endedAt.Valid {
			t := parseTime(endedAt.String)
			conv.EndedAt = &t
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: conversation rows: %w", err)
	}

	for i := range convs {
		msgs, err := s.exportMessages(ctx, convs[i].ID)
		if err != nil {
			return nil, err
		}
		convs[i].Messages = msgs
	}
	return convs, nil
}

func (s *store) exportMessages(ctx context.Context, conversationID int64) ([]analytics.ExportedMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, message_type, created_at, processing_time_ms, tokens_used, has_error, error_details
		FROM messages WHERE conversation_id = ? ORDER BY id`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: export messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []analytics.ExportedMessage
	for rows.Next() {
		var (
			msg       analytics.ExportedMessage
			createdAt string
			hasError  int
		)
		if err := rows.Scan(&msg.Role, &msg.Content, &msg.MessageType, &createdAt,
			&msg.ProcessingMs, &msg.TokensUsed, &hasError, &msg.ErrorDetails); err != nil {
			return nil, fmt.Errorf("sqlite: scan message: %w", err)
		}
		msg.CreatedAt = parseTime(createdAt)
		msg.HasError = hasError != 0
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: message rows: %w", err)
	}
	return msgs, nil
}

// Cleanup deletes conversations that started before the retention window,
// along with their messages. Returns deleted counts.
func (s *store) Cleanup(ctx context.Context, keepDays int) (int64, int64, error) {
	if keepDays <= 0 {
		return 0, 0, fmt.Errorf("sqlite: keep_days must be positive, got %d", keepDays)
	}
	cutoff := fmt.Sprintf("-%d days", keepDays)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	msgRes, err := tx.ExecContext(ctx, `
		DELETE FROM messages
		WHERE conversation_id IN (
			SELECT id FROM conversations WHERE started_at < datetime('now', ?)
		)`,
		cutoff,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("sqlite: cleanup messages: %w", err)
	}
	msgs, _ := msgRes.RowsAffected()

	convRes, err := tx.ExecContext(ctx, `
		DELETE FROM conversations WHERE started_at < datetime('now', ?)`,
		cutoff,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("sqlite: cleanup conversations: %w", err)
	}
	convs, _ := convRes.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return msgs, convs, nil
}

// parseTime parses timestamps written either by Go (RFC3339Nano) or by
// SQLite's strftime default. Returns the zero time on failure.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
