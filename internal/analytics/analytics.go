// Package analytics defines the conversation analytics contract implemented
// by the SQLite analytics module and consumed by the session, gateway, and
// maintenance layers.
package analytics

import (
	"context"
	"errors"
	"time"
)

// ErrNoActiveConversation is returned when a user has no conversation with
// status 'active'.
var ErrNoActiveConversation = errors.New("analytics: no active conversation")

// ErrUnknownUser is returned by UserStats for a telegram ID the store has
// never seen.
var ErrUnknownUser = errors.New("analytics: unknown user")

// Role identifies who produced a message.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one recorded message within a conversation.
type Turn struct {
	Role           string
	Content        string
	MessageType    string // "text", "command", "callback", "document"
	ProcessingTime time.Duration
	TokensUsed     int
	HasError       bool
	ErrorDetails   string
}

// UserStats aggregates activity for a single user.
type UserStats struct {
	TelegramID         int64           `json:"telegram_id"`
	Username           string          `json:"username"`
	FirstSeen          time.Time       `json:"first_seen"`
	LastActive         time.Time       `json:"last_active"`
	TotalMessages      int             `json:"total_messages"`
	TotalConversations int             `json:"total_conversations"`
	AvgMessagesPerConv float64         `json:"avg_messages_per_conversation"`
	AvgConvDuration    time.Duration   `json:"avg_conversation_duration"`
	DailyActivity      []DailyActivity `json:"daily_activity"`
}

// GlobalStats aggregates activity across all users over a window of days.
type GlobalStats struct {
	Days               int             `json:"days"`
	TotalUsers         int             `json:"total_users"`
	TotalConversations int             `json:"total_conversations"`
	TotalMessages      int             `json:"total_messages"`
	ErrorRatePercent   float64         `json:"error_rate_percent"`
	AvgProcessingMs    float64         `json:"avg_processing_ms"`
	DailyActivity      []DailyActivity `json:"daily_activity"`
	HourlyDistribution []HourlyBucket  `json:"hourly_distribution"`
}

// DailyActivity is one day's message and user counts.
type DailyActivity struct {
	Date        string `json:"date"`
	Messages    int    `json:"messages"`
	ActiveUsers int    `json:"active_users"`
}

// HourlyBucket is the message count for one hour of the day (0-23).
type HourlyBucket struct {
	Hour     int `json:"hour"`
	Messages int `json:"messages"`
}

// ExportFilter narrows an export to one user and/or a time range.
// Zero values mean no constraint.
type ExportFilter struct {
	TelegramID int64
	From       time.Time
	To         time.Time
}

// ExportedConversation is a conversation with its messages, for JSON export.
type ExportedConversation struct {
	ID         int64             `json:"id"`
	TelegramID int64             `json:"telegram_id"`
	Username   string            `json:"username"`
	StartedAt  time.Time         `json:"started_at"`
	EndedAt    *time.Time        `json:"ended_at,omitempty"`
	Status     string            `json:"status"`
	Messages   []ExportedMessage `json:"messages"`
}

// ExportedMessage is one message within an exported conversation.
type ExportedMessage struct {
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	MessageType    string    `json:"message_type"`
	CreatedAt      time.Time `json:"created_at"`
	ProcessingMs   int64     `json:"processing_ms"`
	TokensUsed     int       `json:"tokens_used,omitempty"`
	HasError       bool      `json:"has_error,omitempty"`
	ErrorDetails   string    `json:"error_details,omitempty"`
}

// Store records users, conversations, and messages, and serves aggregate
// reports. Implementations must be safe for concurrent use. Recording
// failures are logged by callers and never surface to chat users.
type Store interface {
	GetOrCreateUser(ctx context.Context, telegramID int64, username, firstName, lastName string) (int64, error)
	StartConversation(ctx context.Context, userID int64) (int64, error)
	ActiveConversation(ctx context.Context, userID int64) (int64, error)
	AppendMessage(ctx context.Context, conversationID int64, turn Turn) error
	EndConversation(ctx context.Context, conversationID int64) error

	UserStats(ctx context.Context, telegramID int64) (*UserStats, error)
	GlobalStats(ctx context.Context, days int) (*GlobalStats, error)
	ExportConversations(ctx context.Context, filter ExportFilter) ([]ExportedConversation, error)
	Cleanup(ctx context.Context, keepDays int) (messages, conversations int64, err error)
}
