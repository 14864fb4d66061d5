package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/memrook/askdocs/internal/analytics"
	"github.com/memrook/askdocs/internal/assistant"
	"github.com/memrook/askdocs/internal/docconv"
	"github.com/memrook/askdocs/internal/ingest"
	"github.com/memrook/askdocs/internal/session"
)

// detailedAnswerThreshold is the reply length in runes under which the
// inline "expand" button is offered.
const detailedAnswerThreshold = 300

const callbackDetailedAnswer = "detailed_answer"

// User-facing texts. The bot speaks Russian.
const (
	textGreeting = "Привет! Я бот-ассистент по документации. Задайте вопрос, и я найду ответ " +
		"в загруженных документах.\n\nСписок команд: /help"
	textHelp = "Доступные команды:\n" +
		"/start — начать работу\n" +
		"/reset — сбросить диалог и начать заново\n" +
		"/status — состояние индексации документов\n" +
		"/history — история текущего диалога\n" +
		"/reindex — переиндексировать документы\n" +
		"/cancel — остановить индексацию\n" +
		"/help — эта справка"
	textProcessing      = "⏳ Обрабатываю ваш вопрос..."
	textResetDone       = "Диалог сброшен. Можете задать новый вопрос."
	textHistoryEmpty    = "История диалога пуста."
	textUnknownCommand  = "Неизвестная команда. Список команд: /help"
	textReindexBusy     = "Индексация уже выполняется. Дождитесь завершения или используйте /cancel."
	textReindexStart    = "Запускаю переиндексацию документов..."
	textReindexDone     = "✅ Индексация завершена. Новые вопросы будут искать по обновлённым документам."
	textCancelRequested = "Останавливаю индексацию. Текущий файл будет обработан до конца."
	textCancelIdle      = "Индексация сейчас не выполняется."
	textAdminsOnly      = "Команда доступна только администраторам."
	textDetailedButton  = "Развернутый ответ"
	textDetailedPrompt  = "Дай более развернутый ответ"
	textNoDocuments     = "В папке документов нет поддерживаемых файлов. Бот будет отвечать " +
		"без поиска по документации."
	textDocSaved = "Файл «%s» сохранён. Выполните /reindex, чтобы добавить его в индекс."
	textDocType  = "Этот тип файла не поддерживается. Поддерживаются: .md, .docx, .pdf, .xlsx."
	textDocSize  = "Файл слишком большой. Максимальный размер — %d МБ."

	textErrRateLimit = "Слишком много запросов к сервису. Попробуйте через минуту."
	textErrTimeout   = "Время ожидания ответа истекло. Попробуйте ещё раз."
	textErrAuth      = "Ошибка доступа к сервису. Обратитесь к администратору бота."
	textErrBusy      = "Идёт индексация документов. Попробуйте чуть позже."
	textErrGeneric   = "Произошла ошибка при обработке вопроса. Попробуйте ещё раз."
)

// conversations is the part of the session manager the channel drives.
type conversations interface {
	Ensure(ctx context.Context, progress ingest.ProgressFunc) error
	Rebind(ctx context.Context, indexID string) error
	Send(ctx context.Context, chat session.ChatInfo, text string) (string, error)
	Reset(ctx context.Context, chat session.ChatInfo) error
	History(chatID int64) string
	Ready() bool
}

// indexer is the part of the ingest pipeline the channel drives.
type indexer interface {
	Status() ingest.Status
	Running() bool
	Cancel()
	ReindexAll(ctx context.Context, progress ingest.ProgressFunc) (string, error)
	DocsDir() string
}

// bot routes Telegram updates to the session manager and the ingest
// pipeline. Each update is handled in its own goroutine so a slow
// assistant run never blocks polling.
type bot struct {
	client   *Client
	sessions conversations
	pipeline indexer
	store    analytics.Store // optional
	allow    *AllowList
	logger   *slog.Logger
	config   Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newBot(client *Client, sessions conversations, pipeline indexer, store analytics.Store, allow *AllowList, logger *slog.Logger, config Config) *bot {
	ctx, cancel := context.WithCancel(context.Background())
	return &bot{
		client:   client,
		sessions: sessions,
		pipeline: pipeline,
		store:    store,
		allow:    allow,
		logger:   logger,
		config:   config,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// shutdown cancels in-flight handlers and waits for them to finish.
func (b *bot) shutdown() {
	b.cancel()
	b.wg.Wait()
}

// handleUpdate is the poller callback.
func (b *bot) handleUpdate(update *Update) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.dispatch(update)
	}()
}

func (b *bot) dispatch(update *Update) {
	switch {
	case update.CallbackQuery != nil:
		if !b.allow.IsAllowed(&update.CallbackQuery.From) {
			b.logger.Debug("callback denied by allow list", "user_id", update.CallbackQuery.From.ID)
			return
		}
		b.handleCallback(update.CallbackQuery)

	case update.Message != nil:
		msg := update.Message
		if msg.From == nil || msg.From.IsBot {
			return
		}
		if !b.allow.IsAllowed(msg.From) {
			b.logger.Debug("message denied by allow list", "user_id", msg.From.ID)
			return
		}
		switch {
		case msg.Document != nil:
			b.handleDocument(msg)
		case strings.HasPrefix(msg.Text, "/"):
			b.handleCommand(msg)
		case strings.TrimSpace(msg.Text) != "":
			b.handleText(msg)
		}
	}
}

func (b *bot) handleCommand(msg *Message) {
	cmd, args := parseCommand(msg.Text)

	switch cmd {
	case "start":
		b.handleStart(msg)
	case "help":
		b.send(msg.Chat.ID, textHelp)
	case "reset":
		b.handleReset(msg)
	case "status":
		b.handleStatus(msg)
	case "history":
		b.handleHistory(msg)
	case "reindex":
		b.handleReindex(msg)
	case "cancel":
		b.handleCancel(msg)
	case "stats":
		b.handleStats(msg, args)
	default:
		b.send(msg.Chat.ID, textUnknownCommand)
	}
}

// handleStart greets the user and kicks off lazy assistant initialization,
// streaming indexing progress into the chat.
func (b *bot) handleStart(msg *Message) {
	b.send(msg.Chat.ID, textGreeting)

	if b.sessions.Ready() {
		return
	}

	editor := b.newProgressEditor(msg.Chat.ID)
	err := b.sessions.Ensure(b.ctx, editor.report)
	switch {
	case err == nil:
	case errors.Is(err, ingest.ErrBusy):
		b.send(msg.Chat.ID, textErrBusy)
	default:
		b.logger.Error("assistant initialization failed", "error", err)
		b.send(msg.Chat.ID, b.userErrorText(err))
	}
}

func (b *bot) handleReset(msg *Message) {
	if err := b.sessions.Reset(b.ctx, chatInfo(msg)); err != nil {
		b.logger.Error("reset failed", "chat_id", msg.Chat.ID, "error", err)
		b.send(msg.Chat.ID, b.userErrorText(err))
		return
	}
	b.send(msg.Chat.ID, textResetDone)
}

func (b *bot) handleStatus(msg *Message) {
	st := b.pipeline.Status()

	var sb strings.Builder
	switch st.State {
	case ingest.StateRunning:
		fmt.Fprintf(&sb, "⚙️ Идёт индексация: %s", st.Step)
		if st.Total > 0 {
			fmt.Fprintf(&sb, " (%d/%d)", st.Processed, st.Total)
		}
	case ingest.StateFailed:
		fmt.Fprintf(&sb, "❌ Последняя индексация завершилась ошибкой: %s", st.LastError)
	default:
		if b.sessions.Ready() {
			sb.WriteString("✅ Готов к работе.")
		} else {
			sb.WriteString("Ассистент ещё не инициализирован. Отправьте /start или любой вопрос.")
		}
		if st.IndexID != "" {
			sb.WriteString("\nИндекс документов построен.")
		}
	}
	if st.Dirty {
		sb.WriteString("\n⚠️ Документы изменились с момента последней индексации. Выполните /reindex.")
	}

	b.send(msg.Chat.ID, sb.String())
}

func (b *bot) handleHistory(msg *Message) {
	history := b.sessions.History(msg.Chat.ID)
	if history == "" {
		b.send(msg.Chat.ID, textHistoryEmpty)
		return
	}
	// Leave headroom below the hard API limit for multi-part history.
	for _, part := range splitMessage(history, 4000) {
		b.send(msg.Chat.ID, part)
	}
}

// handleReindex rebuilds the search index, editing a single progress
// message as the pipeline reports, then rebinds the assistant.
func (b *bot) handleReindex(msg *Message) {
	if b.pipeline.Running() {
		b.send(msg.Chat.ID, textReindexBusy)
		return
	}

	editor := b.newProgressEditor(msg.Chat.ID)
	editor.report(textReindexStart)

	indexID, err := b.pipeline.ReindexAll(b.ctx, editor.report)
	switch {
	case err == nil:
		if err := b.sessions.Rebind(b.ctx, indexID); err != nil {
			b.logger.Error("rebind after reindex failed", "error", err)
			b.send(msg.Chat.ID, b.userErrorText(err))
			return
		}
		b.send(msg.Chat.ID, textReindexDone)
	case errors.Is(err, ingest.ErrBusy):
		b.send(msg.Chat.ID, textReindexBusy)
	case errors.Is(err, ingest.ErrNoDocuments):
		b.send(msg.Chat.ID, textNoDocuments)
	case errors.Is(err, ingest.ErrCancelled):
		b.send(msg.Chat.ID, "Индексация остановлена.")
	default:
		b.logger.Error("reindex failed", "error", err)
		b.send(msg.Chat.ID, b.userErrorText(err))
	}
}

func (b *bot) handleCancel(msg *Message) {
	if !b.pipeline.Running() {
		b.send(msg.Chat.ID, textCancelIdle)
		return
	}
	b.pipeline.Cancel()
	b.send(msg.Chat.ID, textCancelRequested)
}

// handleStats sends the global analytics report. Admin only.
func (b *bot) handleStats(msg *Message, args string) {
	if !b.allow.IsAdmin(msg.From) {
		b.send(msg.Chat.ID, textAdminsOnly)
		return
	}
	if b.store == nil {
		b.send(msg.Chat.ID, "Аналитика отключена.")
		return
	}

	days := 7
	if args != "" {
		if n, err := strconv.Atoi(strings.Fields(args)[0]); err == nil && n > 0 {
			days = n
		}
	}

	stats, err := b.store.GlobalStats(b.ctx, days)
	if err != nil {
		b.logger.Error("global stats failed", "error", err)
		b.send(msg.Chat.ID, b.userErrorText(err))
		return
	}
	b.send(msg.Chat.ID, analytics.FormatGlobalReport(stats))
}

// handleText routes a question through the session manager: a placeholder
// is posted immediately and later edited into the answer. When the first
// plain message triggers lazy initialization, indexing progress streams
// into the chat the same way /start reports it.
func (b *bot) handleText(msg *Message) {
	if !b.sessions.Ready() {
		editor := b.newProgressEditor(msg.Chat.ID)
		if err := b.sessions.Ensure(b.ctx, editor.report); err != nil {
			b.logger.Error("assistant initialization failed", "error", err)
			b.send(msg.Chat.ID, b.userErrorText(err))
			return
		}
	}

	if err := b.client.SendChatAction(b.ctx, msg.Chat.ID, "typing"); err != nil {
		b.logger.Debug("sendChatAction failed", "error", err)
	}

	placeholder, err := b.client.SendMessage(b.ctx, SendMessageRequest{
		ChatID: msg.Chat.ID,
		Text:   textProcessing,
	})
	if err != nil {
		b.logger.Error("placeholder send failed", "chat_id", msg.Chat.ID, "error", err)
		return
	}

	reply, err := b.sessions.Send(b.ctx, chatInfo(msg), msg.Text)
	if err != nil {
		b.logger.Error("answer failed", "chat_id", msg.Chat.ID, "error", err)
		b.editOrSend(msg.Chat.ID, placeholder.MessageID, b.userErrorText(err), nil)
		return
	}

	b.deliverReply(msg.Chat.ID, placeholder.MessageID, reply)
}

// deliverReply edits the placeholder into the answer, splitting long
// answers and offering the expand button on short ones.
func (b *bot) deliverReply(chatID int64, placeholderID int, reply string) {
	chunks := splitMessage(reply, b.config.MaxMessageLength)

	var markup *InlineKeyboardMarkup
	if len(chunks) == 1 && utf8.RuneCountInString(reply) < detailedAnswerThreshold {
		markup = detailedAnswerKeyboard()
	}

	b.editOrSend(chatID, placeholderID, chunks[0], markup)
	for _, chunk := range chunks[1:] {
		b.send(chatID, chunk)
	}
}

// handleDocument saves a supported uploaded document into the docs dir.
func (b *bot) handleDocument(msg *Message) {
	doc := msg.Document
	name := filepath.Base(doc.FileName)

	if name == "" || !docconv.Supported(name) {
		b.send(msg.Chat.ID, textDocType)
		return
	}
	if doc.FileSize > b.config.MaxDocumentSize {
		b.send(msg.Chat.ID, fmt.Sprintf(textDocSize, b.config.MaxDocumentSize>>20))
		return
	}

	file, err := b.client.GetFile(b.ctx, doc.FileID)
	if err != nil {
		b.logger.Error("getFile failed", "file_id", doc.FileID, "error", err)
		b.send(msg.Chat.ID, textErrGeneric)
		return
	}

	data, err := b.client.DownloadFile(b.ctx, file.FilePath, b.config.MaxDocumentSize)
	if err != nil {
		b.logger.Error("document download failed", "file", name, "error", err)
		b.send(msg.Chat.ID, textErrGeneric)
		return
	}

	dest := filepath.Join(b.pipeline.DocsDir(), name)
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		b.logger.Error("document save failed", "file", dest, "error", err)
		b.send(msg.Chat.ID, textErrGeneric)
		return
	}

	b.logger.Info("document saved", "file", name, "size", len(data))
	b.send(msg.Chat.ID, fmt.Sprintf(textDocSaved, name))
}

// send posts a plain text message, logging failures.
func (b *bot) send(chatID int64, text string) {
	if _, err := b.client.SendMessage(b.ctx, SendMessageRequest{ChatID: chatID, Text: text}); err != nil {
		b.logger.Error("sendMessage failed", "chat_id", chatID, "error", err)
	}
}

// editOrSend edits an existing message, falling back to a new message
// when the edit is rejected (unmodified text, too long, message gone).
// Returns the ID of the message that now holds the text.
func (b *bot) editOrSend(chatID int64, messageID int, text string, markup *InlineKeyboardMarkup) int {
	_, err := b.client.EditMessageText(b.ctx, EditMessageTextRequest{
		ChatID:      chatID,
		MessageID:   messageID,
		Text:        text,
		ReplyMarkup: markup,
	})
	if err == nil {
		return messageID
	}

	b.logger.Debug("edit failed, sending new message", "chat_id", chatID, "error", err)
	sent, err := b.client.SendMessage(b.ctx, SendMessageRequest{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: markup,
	})
	if err != nil {
		b.logger.Error("sendMessage fallback failed", "chat_id", chatID, "error", err)
		return messageID
	}
	return sent.MessageID
}

// userErrorText maps internal failures to a reply the user can act on.
func (b *bot) userErrorText(err error) string {
	switch {
	case errors.Is(err, ingest.ErrBusy):
		return textErrBusy
	case errors.Is(err, assistant.ErrRateLimit):
		return textErrRateLimit
	case errors.Is(err, assistant.ErrTimeout):
		return textErrTimeout
	case errors.Is(err, assistant.ErrAuth):
		return textErrAuth
	default:
		return textErrGeneric
	}
}

func detailedAnswerKeyboard() *InlineKeyboardMarkup {
	return &InlineKeyboardMarkup{
		InlineKeyboard: [][]InlineKeyboardButton{{
			{Text: textDetailedButton, CallbackData: callbackDetailedAnswer},
		}},
	}
}

// progressEditor funnels pipeline progress lines into a single chat
// message, editing it in place and falling back to a fresh message when
// an edit is rejected.
type progressEditor struct {
	bot    *bot
	chatID int64

	mu    sync.Mutex
	msgID int
}

func (b *bot) newProgressEditor(chatID int64) *progressEditor {
	return &progressEditor{bot: b, chatID: chatID}
}

func (e *progressEditor) report(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.msgID == 0 {
		sent, err := e.bot.client.SendMessage(e.bot.ctx, SendMessageRequest{ChatID: e.chatID, Text: text})
		if err != nil {
			e.bot.logger.Error("progress message send failed", "chat_id", e.chatID, "error", err)
			return
		}
		e.msgID = sent.MessageID
		return
	}
	e.msgID = e.bot.editOrSend(e.chatID, e.msgID, text, nil)
}

// parseCommand splits "/cmd@bot args" into the command name and its arguments.
func parseCommand(text string) (cmd, args string) {
	cmd, args, _ = strings.Cut(strings.TrimSpace(text), " ")
	cmd = strings.TrimPrefix(cmd, "/")
	if at := strings.Index(cmd, "@"); at >= 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd), strings.TrimSpace(args)
}

func chatInfo(msg *Message) session.ChatInfo {
	info := session.ChatInfo{ChatID: msg.Chat.ID}
	if msg.From != nil {
		info.TelegramID = msg.From.ID
		info.Username = msg.From.Username
		info.FirstName = msg.From.FirstName
		info.LastName = msg.From.LastName
	}
	return info
}
