package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/memrook/askdocs/internal/analytics"
	"github.com/memrook/askdocs/internal/assistant"
	"github.com/memrook/askdocs/internal/events"
	"github.com/memrook/askdocs/internal/ingest"
)

// Indexer supplies a search index for the assistant.
type Indexer interface {
	EnsureIndex(ctx context.Context, progress ingest.ProgressFunc) (string, error)
}

// ChatInfo identifies the chat and the user behind a message.
type ChatInfo struct {
	ChatID     int64
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
}

// Options configures a Manager.
type Options struct {
	Platform     assistant.Platform
	Indexer      Indexer
	Store        analytics.Store // optional; nil disables analytics
	Instruction  string
	HistoryLimit int
	RunRetries   int
	Logger       *slog.Logger
	Bus          *events.Bus
}

// Manager owns one platform thread and one rolling transcript per chat,
// and lazily creates the shared assistant on first use.
type Manager struct {
	platform     assistant.Platform
	indexer      Indexer
	store        analytics.Store
	instruction  string
	historyLimit int
	runRetries   int
	retryDelay   time.Duration
	logger       *slog.Logger
	bus          *events.Bus
	tracer       trace.Tracer

	// initMu serializes lazy initialization; idMu guards assistantID so
	// readers never wait behind an index build.
	initMu      sync.Mutex
	idMu        sync.Mutex
	assistantID string

	mu    sync.Mutex
	chats map[int64]*chatState
}

// chatState is the per-chat thread plus transcript. Its mutex serializes
// message processing within one chat.
type chatState struct {
	mu         sync.Mutex
	threadID   string
	transcript *Transcript
	userID     int64
	convID     int64
}

// NewManager creates a Manager. The assistant itself is created lazily on
// the first Send or Ensure call.
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 20
	}
	if opts.RunRetries <= 0 {
		opts.RunRetries = 3
	}
	return &Manager{
		platform:     opts.Platform,
		indexer:      opts.Indexer,
		store:        opts.Store,
		instruction:  opts.Instruction,
		historyLimit: opts.HistoryLimit,
		runRetries:   opts.RunRetries,
		retryDelay:   time.Second,
		logger:       logger,
		bus:          opts.Bus,
		tracer:       otel.Tracer("askdocs/session"),
		chats:        make(map[int64]*chatState),
	}
}

// Ready reports whether the assistant has been created. It returns
// immediately even while an Ensure is building the index.
func (m *Manager) Ready() bool {
	return m.currentAssistantID() != ""
}

func (m *Manager) currentAssistantID() string {
	m.idMu.Lock()
	defer m.idMu.Unlock()
	return m.assistantID
}

func (m *Manager) setAssistantID(id string) {
	m.idMu.Lock()
	m.assistantID = id
	m.idMu.Unlock()
}

// Ensure lazily creates the assistant, building or reusing the search
// index first. When no documents exist or the index cannot be built, the
// assistant is created without the search tool and answers from the model
// alone. Safe to call repeatedly; a failure is retried on the next call.
func (m *Manager) Ensure(ctx context.Context, progress ingest.ProgressFunc) error {
	m.initMu.Lock()
	defer m.initMu.Unlock()

	if m.currentAssistantID() != "" {
		return nil
	}

	indexID, err := m.indexer.EnsureIndex(ctx, progress)
	if err != nil {
		if errors.Is(err, ingest.ErrBusy) {
			return err
		}
		m.logger.Warn("search index unavailable, assistant will answer without document search", "error", err)
		indexID = ""
	}

	created, err := m.platform.CreateAssistant(ctx, assistant.AssistantSpec{
		Instruction:   m.instruction,
		SearchIndexID: indexID,
	})
	if err != nil {
		return fmt.Errorf("session: create assistant: %w", err)
	}

	m.setAssistantID(created.ID)
	m.logger.Info("assistant created", "assistant_id", created.ID, "index_id", indexID)
	return nil
}

// Rebind replaces the assistant with one bound to the given index. Used
// after a manual reindex so new answers search the fresh index.
func (m *Manager) Rebind(ctx context.Context, indexID string) error {
	created, err := m.platform.CreateAssistant(ctx, assistant.AssistantSpec{
		Instruction:   m.instruction,
		SearchIndexID: indexID,
	})
	if err != nil {
		return fmt.Errorf("session: recreate assistant: %w", err)
	}

	m.setAssistantID(created.ID)
	m.logger.Info("assistant rebound", "assistant_id", created.ID, "index_id", indexID)
	return nil
}

// Send routes one user message through the platform and returns the
// assistant's reply. Analytics failures are logged and never fail the
// reply; provider failures are recorded and returned.
func (m *Manager) Send(ctx context.Context, chat ChatInfo, text string) (string, error) {
	ctx, span := m.tracer.Start(ctx, "session.send",
		trace.WithAttributes(attribute.Int64("chat.id", chat.ChatID)))
	defer span.End()

	if err := m.Ensure(ctx, nil); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	cs := m.chat(chat.ChatID)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if err := m.ensureThread(ctx, cs); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	m.ensureConversation(ctx, cs, chat)

	started := time.Now()
	cs.transcript.Append(analytics.RoleUser, text)
	m.record(ctx, cs, analytics.Turn{Role: analytics.RoleUser, Content: text})
	m.publish("chat.message", map[string]any{"chat_id": chat.ChatID, "role": analytics.RoleUser})

	reply, err := m.converse(ctx, cs.threadID, text)
	if err != nil {
		m.record(ctx, cs, analytics.Turn{
			Role:           analytics.RoleAssistant,
			ProcessingTime: time.Since(started),
			HasError:       true,
			ErrorDetails:   err.Error(),
		})
		m.publish("chat.error", map[string]any{"chat_id": chat.ChatID})
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	cs.transcript.Append(analytics.RoleAssistant, reply)
	m.record(ctx, cs, analytics.Turn{
		Role:           analytics.RoleAssistant,
		Content:        reply,
		ProcessingTime: time.Since(started),
	})
	m.publish("chat.message", map[string]any{
		"chat_id":    chat.ChatID,
		"role":       analytics.RoleAssistant,
		"latency_ms": time.Since(started).Milliseconds(),
	})

	return reply, nil
}

// converse writes the message into the thread and runs the assistant,
// retrying transient failures with doubling backoff.
func (m *Manager) converse(ctx context.Context, threadID, text string) (string, error) {
	if err := m.platform.WriteMessage(ctx, threadID, text); err != nil {
		return "", fmt.Errorf("session: write message: %w", err)
	}

	assistantID := m.currentAssistantID()

	var lastErr error
	delay := m.retryDelay
	for attempt := 1; attempt <= m.runRetries; attempt++ {
		run, err := m.platform.StartRun(ctx, assistantID, threadID)
		if err == nil {
			result, err := m.platform.WaitRun(ctx, run.ID)
			if err == nil {
				return normalizeResult(result.Raw), nil
			}
			lastErr = err
		} else {
			lastErr = err
		}

		if !assistant.Retryable(lastErr) || attempt == m.runRetries {
			break
		}
		m.logger.Warn("run attempt failed, retrying",
			"attempt", attempt, "delay", delay, "error", lastErr)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return "", fmt.Errorf("session: run: %w", lastErr)
}

// Reset discards the chat's thread and transcript and rotates the
// analytics conversation.
func (m *Manager) Reset(ctx context.Context, chat ChatInfo) error {
	cs := m.chat(chat.ChatID)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	thread, err := m.platform.CreateThread(ctx)
	if err != nil {
		return fmt.Errorf("session: reset: %w", err)
	}
	cs.threadID = thread.ID
	cs.transcript = NewTranscript(m.historyLimit)

	if m.store != nil {
		if cs.convID != 0 {
			if err := m.store.EndConversation(ctx, cs.convID); err != nil {
				m.logger.Error("end conversation failed", "error", err)
			}
		}
		cs.convID = 0
	}

	m.logger.Info("chat reset", "chat_id", chat.ChatID, "thread_id", thread.ID)
	return nil
}

// History returns the formatted transcript for a chat, or "" when empty.
func (m *Manager) History(chatID int64) string {
	cs := m.chat(chatID)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.transcript.Format()
}

func (m *Manager) chat(chatID int64) *chatState {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs, ok := m.chats[chatID]
	if !ok {
		cs = &chatState{transcript: NewTranscript(m.historyLimit)}
		m.chats[chatID] = cs
	}
	return cs
}

func (m *Manager) ensureThread(ctx context.Context, cs *chatState) error {
	if cs.threadID != "" {
		return nil
	}
	thread, err := m.platform.CreateThread(ctx)
	if err != nil {
		return fmt.Errorf("session: create thread: %w", err)
	}
	cs.threadID = thread.ID
	return nil
}

// ensureConversation resolves the analytics user and active conversation.
// All failures are logged and swallowed.
func (m *Manager) ensureConversation(ctx context.Context, cs *chatState, chat ChatInfo) {
	if m.store == nil {
		return
	}

	if cs.userID == 0 {
		userID, err := m.store.GetOrCreateUser(ctx, chat.TelegramID, chat.Username, chat.FirstName, chat.LastName)
		if err != nil {
			m.logger.Error("analytics user lookup failed", "error", err)
			return
		}
		cs.userID = userID
	}

	if cs.convID != 0 {
		return
	}
	convID, err := m.store.ActiveConversation(ctx, cs.userID)
	if errors.Is(err, analytics.ErrNoActiveConversation) {
		convID, err = m.store.StartConversation(ctx, cs.userID)
	}
	if err != nil {
		m.logger.Error("analytics conversation lookup failed", "error", err)
		return
	}
	cs.convID = convID
}

func (m *Manager) record(ctx context.Context, cs *chatState, turn analytics.Turn) {
	if m.store == nil || cs.convID == 0 {
		return
	}
	if err := m.store.AppendMessage(ctx, cs.convID, turn); err != nil {
		m.logger.Error("analytics append failed", "error", err)
	}
}

func (m *Manager) publish(eventType string, data map[string]any) {
	if m.bus != nil {
		m.bus.Publish(events.Event{Type: eventType, Data: data})
	}
}
