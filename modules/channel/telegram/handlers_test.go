package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/memrook/askdocs/internal/assistant"
	"github.com/memrook/askdocs/internal/ingest"
	"github.com/memrook/askdocs/internal/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// apiCall records one Bot API request for assertions.
type apiCall struct {
	Method string
	Body   map[string]any
}

// fakeAPI is an in-memory Bot API server.
type fakeAPI struct {
	srv *httptest.Server

	mu        sync.Mutex
	calls     []apiCall
	nextMsgID int
	failEdits bool
	fileData  string
}

func newFakeAPI(t *testing.T) *fakeAPI {
	f := &fakeAPI{nextMsgID: 100, fileData: "# Документ\nсодержимое"}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) handle(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/file/") {
		fmt.Fprint(w, f.fileData)
		return
	}

	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	body := map[string]any{}
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{Method: method, Body: body})
	failEdits := f.failEdits
	f.nextMsgID++
	msgID := f.nextMsgID
	f.mu.Unlock()

	switch method {
	case "sendMessage":
		fmt.Fprintf(w, `{"ok":true,"result":{"message_id":%d,"chat":{"id":1,"type":"private"}}}`, msgID)
	case "editMessageText":
		if failEdits {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"ok":false,"error_code":400,"description":"Bad Request: message is not modified"}`)
			return
		}
		fmt.Fprintf(w, `{"ok":true,"result":{"message_id":%d,"chat":{"id":1,"type":"private"}}}`, msgID)
	case "getFile":
		fmt.Fprint(w, `{"ok":true,"result":{"file_id":"f1","file_unique_id":"u1","file_path":"documents/guide.md"}}`)
	default:
		fmt.Fprint(w, `{"ok":true,"result":true}`)
	}
}

func (f *fakeAPI) callsFor(method string) []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []apiCall
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeAPI) lastText(t *testing.T, method string) string {
	t.Helper()
	calls := f.callsFor(method)
	if len(calls) == 0 {
		t.Fatalf("no %s calls", method)
	}
	text, _ := calls[len(calls)-1].Body["text"].(string)
	return text
}

// fakeSessions is a scripted conversations implementation.
type fakeSessions struct {
	mu             sync.Mutex
	reply          string
	sendErr        error
	ensureErr      error
	ensureProgress []string
	ready          bool
	history        string

	sent    []string
	ensures int
	resets  int
	rebinds []string
}

func (f *fakeSessions) Ensure(ctx context.Context, progress ingest.ProgressFunc) error {
	f.mu.Lock()
	f.ensures++
	lines := f.ensureProgress
	f.mu.Unlock()
	for _, line := range lines {
		if progress != nil {
			progress(line)
		}
	}
	return f.ensureErr
}

func (f *fakeSessions) Rebind(ctx context.Context, indexID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rebinds = append(f.rebinds, indexID)
	return nil
}

func (f *fakeSessions) Send(ctx context.Context, chat session.ChatInfo, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return f.reply, nil
}

func (f *fakeSessions) Reset(ctx context.Context, chat session.ChatInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	return nil
}

func (f *fakeSessions) History(chatID int64) string { return f.history }
func (f *fakeSessions) Ready() bool                 { return f.ready }

// fakeIndexer is a scripted indexer implementation.
type fakeIndexer struct {
	running    bool
	status     ingest.Status
	docsDir    string
	reindexID  string
	reindexErr error
	progress   []string

	mu       sync.Mutex
	reindexN int
	cancels  int
}

func (f *fakeIndexer) Status() ingest.Status { return f.status }
func (f *fakeIndexer) Running() bool         { return f.running }
func (f *fakeIndexer) DocsDir() string       { return f.docsDir }

func (f *fakeIndexer) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
}

func (f *fakeIndexer) ReindexAll(ctx context.Context, progress ingest.ProgressFunc) (string, error) {
	f.mu.Lock()
	f.reindexN++
	f.mu.Unlock()
	for _, line := range f.progress {
		if progress != nil {
			progress(line)
		}
	}
	return f.reindexID, f.reindexErr
}

func newTestBot(t *testing.T, api *fakeAPI, sessions *fakeSessions, pipeline *fakeIndexer) *bot {
	t.Helper()
	cfg := Config{Token: testToken}
	cfg.defaults()
	if pipeline.docsDir == "" {
		pipeline.docsDir = t.TempDir()
	}
	return newBot(NewClient(testToken, api.srv.URL), sessions, pipeline, nil,
		NewAllowList(nil, []string{"500"}), testLogger(), cfg)
}

func textMessage(text string) *Message {
	return &Message{
		MessageID: 1,
		From:      &User{ID: 42, FirstName: "Ирина", Username: "irina"},
		Chat:      Chat{ID: 1, Type: "private"},
		Text:      text,
	}
}

func TestHandleTextEditsPlaceholderWithAnswer(t *testing.T) {
	api := newFakeAPI(t)
	sessions := &fakeSessions{reply: "короткий ответ"}
	b := newTestBot(t, api, sessions, &fakeIndexer{})

	b.dispatch(&Update{Message: textMessage("как настроить?")})

	if got := sessions.sent; len(got) != 1 || got[0] != "как настроить?" {
		t.Errorf("session received %v", got)
	}
	if text := api.lastText(t, "sendMessage"); text != textProcessing {
		t.Errorf("placeholder = %q", text)
	}

	edits := api.callsFor("editMessageText")
	if len(edits) != 1 {
		t.Fatalf("edits = %d, want 1", len(edits))
	}
	if edits[0].Body["text"] != "короткий ответ" {
		t.Errorf("edited text = %v", edits[0].Body["text"])
	}
	if edits[0].Body["reply_markup"] == nil {
		t.Error("short reply should carry the expand button")
	}
}

func TestHandleTextStreamsInitProgress(t *testing.T) {
	api := newFakeAPI(t)
	sessions := &fakeSessions{
		reply:          "ответ",
		ensureProgress: []string{"Найдено документов: 2. Конвертирую...", "Загрузка документов (2/2)"},
	}
	b := newTestBot(t, api, sessions, &fakeIndexer{})

	b.dispatch(&Update{Message: textMessage("вопрос")})

	if sessions.ensures != 1 {
		t.Fatalf("ensures = %d, want 1", sessions.ensures)
	}
	// The first progress line opens the status message, later lines edit it.
	sends := api.callsFor("sendMessage")
	if len(sends) == 0 || sends[0].Body["text"] != sessions.ensureProgress[0] {
		t.Errorf("first message = %v, want initial progress line", sends)
	}
	if len(sessions.sent) != 1 || sessions.sent[0] != "вопрос" {
		t.Errorf("session received %v", sessions.sent)
	}

	// A ready manager skips initialization entirely.
	sessions.ready = true
	b.dispatch(&Update{Message: textMessage("ещё вопрос")})
	if sessions.ensures != 1 {
		t.Errorf("ensures = %d after ready, want still 1", sessions.ensures)
	}
}

func TestHandleTextLongReplyHasNoButton(t *testing.T) {
	api := newFakeAPI(t)
	sessions := &fakeSessions{reply: strings.Repeat("ответ ", 100)}
	b := newTestBot(t, api, sessions, &fakeIndexer{})

	b.dispatch(&Update{Message: textMessage("вопрос")})

	edits := api.callsFor("editMessageText")
	if len(edits) != 1 {
		t.Fatalf("edits = %d", len(edits))
	}
	if edits[0].Body["reply_markup"] != nil {
		t.Error("long reply should not carry the expand button")
	}
}

func TestHandleTextSplitsVeryLongReply(t *testing.T) {
	api := newFakeAPI(t)
	sessions := &fakeSessions{reply: strings.Repeat("строка ответа\n", 500)}
	b := newTestBot(t, api, sessions, &fakeIndexer{})

	b.dispatch(&Update{Message: textMessage("вопрос")})

	// Placeholder plus at least one continuation chunk.
	if sends := api.callsFor("sendMessage"); len(sends) < 2 {
		t.Errorf("sendMessage calls = %d, want >= 2", len(sends))
	}
}

func TestHandleTextErrorEditsUserFacingText(t *testing.T) {
	api := newFakeAPI(t)
	sessions := &fakeSessions{sendErr: fmt.Errorf("session: run: %w", assistant.ErrRateLimit)}
	b := newTestBot(t, api, sessions, &fakeIndexer{})

	b.dispatch(&Update{Message: textMessage("вопрос")})

	if text := api.lastText(t, "editMessageText"); text != textErrRateLimit {
		t.Errorf("edit = %q, want rate limit text", text)
	}
}

func TestEditOrSendFallsBackToNewMessage(t *testing.T) {
	api := newFakeAPI(t)
	api.failEdits = true
	b := newTestBot(t, api, &fakeSessions{}, &fakeIndexer{})

	id := b.editOrSend(1, 55, "новый текст", nil)

	if id == 55 {
		t.Error("expected a fresh message ID after edit failure")
	}
	if text := api.lastText(t, "sendMessage"); text != "новый текст" {
		t.Errorf("fallback text = %q", text)
	}
}

func TestHandleReindexGuardsConcurrentRuns(t *testing.T) {
	api := newFakeAPI(t)
	pipeline := &fakeIndexer{running: true}
	b := newTestBot(t, api, &fakeSessions{}, pipeline)

	b.dispatch(&Update{Message: textMessage("/reindex")})

	if pipeline.reindexN != 0 {
		t.Error("ReindexAll should not run while busy")
	}
	if text := api.lastText(t, "sendMessage"); text != textReindexBusy {
		t.Errorf("reply = %q", text)
	}
}

func TestHandleReindexReportsProgressAndRebinds(t *testing.T) {
	api := newFakeAPI(t)
	sessions := &fakeSessions{}
	pipeline := &fakeIndexer{
		reindexID: "idx-new",
		progress:  []string{"Обработка файлов...", "Загрузка (1/2)", "Загрузка (2/2)"},
	}
	b := newTestBot(t, api, sessions, pipeline)

	b.dispatch(&Update{Message: textMessage("/reindex")})

	if pipeline.reindexN != 1 {
		t.Fatalf("reindex runs = %d", pipeline.reindexN)
	}
	if len(sessions.rebinds) != 1 || sessions.rebinds[0] != "idx-new" {
		t.Errorf("rebinds = %v", sessions.rebinds)
	}
	// Progress lines edit the single status message rather than flooding the chat.
	if edits := api.callsFor("editMessageText"); len(edits) != len(pipeline.progress) {
		t.Errorf("edits = %d, want %d", len(edits), len(pipeline.progress))
	}
	if text := api.lastText(t, "sendMessage"); text != textReindexDone {
		t.Errorf("final reply = %q", text)
	}
}

func TestHandleReindexEmptyCorpus(t *testing.T) {
	api := newFakeAPI(t)
	pipeline := &fakeIndexer{reindexErr: ingest.ErrNoDocuments}
	b := newTestBot(t, api, &fakeSessions{}, pipeline)

	b.dispatch(&Update{Message: textMessage("/reindex")})

	if text := api.lastText(t, "sendMessage"); text != textNoDocuments {
		t.Errorf("reply = %q", text)
	}
}

func TestHandleCancel(t *testing.T) {
	api := newFakeAPI(t)
	pipeline := &fakeIndexer{running: true}
	b := newTestBot(t, api, &fakeSessions{}, pipeline)

	b.dispatch(&Update{Message: textMessage("/cancel")})
	if pipeline.cancels != 1 {
		t.Errorf("cancels = %d", pipeline.cancels)
	}

	pipeline.running = false
	b.dispatch(&Update{Message: textMessage("/cancel")})
	if text := api.lastText(t, "sendMessage"); text != textCancelIdle {
		t.Errorf("reply = %q", text)
	}
}

func TestHandleResetAndHistory(t *testing.T) {
	api := newFakeAPI(t)
	sessions := &fakeSessions{history: "👤 вопрос\n\n🤖 ответ"}
	b := newTestBot(t, api, sessions, &fakeIndexer{})

	b.dispatch(&Update{Message: textMessage("/reset")})
	if sessions.resets != 1 {
		t.Errorf("resets = %d", sessions.resets)
	}

	b.dispatch(&Update{Message: textMessage("/history")})
	if text := api.lastText(t, "sendMessage"); !strings.Contains(text, "🤖 ответ") {
		t.Errorf("history reply = %q", text)
	}

	sessions.history = ""
	b.dispatch(&Update{Message: textMessage("/history")})
	if text := api.lastText(t, "sendMessage"); text != textHistoryEmpty {
		t.Errorf("empty history reply = %q", text)
	}
}

func TestHandleStatsRequiresAdmin(t *testing.T) {
	api := newFakeAPI(t)
	b := newTestBot(t, api, &fakeSessions{}, &fakeIndexer{})

	b.dispatch(&Update{Message: textMessage("/stats")})

	if text := api.lastText(t, "sendMessage"); text != textAdminsOnly {
		t.Errorf("reply = %q", text)
	}
}

func TestHandleUnknownCommand(t *testing.T) {
	api := newFakeAPI(t)
	b := newTestBot(t, api, &fakeSessions{}, &fakeIndexer{})

	b.dispatch(&Update{Message: textMessage("/frobnicate")})

	if text := api.lastText(t, "sendMessage"); text != textUnknownCommand {
		t.Errorf("reply = %q", text)
	}
}

func TestAllowListBlocksDispatch(t *testing.T) {
	api := newFakeAPI(t)
	sessions := &fakeSessions{reply: "ответ"}
	cfg := Config{Token: testToken}
	cfg.defaults()
	b := newBot(NewClient(testToken, api.srv.URL), sessions, &fakeIndexer{docsDir: t.TempDir()}, nil,
		NewAllowList([]string{"999"}, nil), testLogger(), cfg)

	b.dispatch(&Update{Message: textMessage("вопрос")})

	if len(sessions.sent) != 0 {
		t.Error("denied user must not reach the session")
	}
	if calls := api.callsFor("sendMessage"); len(calls) != 0 {
		t.Error("denied user must get no reply")
	}
}

func TestHandleDocumentSavesSupportedFile(t *testing.T) {
	api := newFakeAPI(t)
	pipeline := &fakeIndexer{docsDir: t.TempDir()}
	b := newTestBot(t, api, &fakeSessions{}, pipeline)

	msg := textMessage("")
	msg.Document = &Document{FileID: "f1", FileName: "guide.md", FileSize: 100}
	b.dispatch(&Update{Message: msg})

	data, err := os.ReadFile(filepath.Join(pipeline.docsDir, "guide.md"))
	if err != nil {
		t.Fatalf("saved file: %v", err)
	}
	if !strings.Contains(string(data), "содержимое") {
		t.Errorf("saved content = %q", data)
	}
	if text := api.lastText(t, "sendMessage"); !strings.Contains(text, "/reindex") {
		t.Errorf("reply should suggest /reindex: %q", text)
	}
}

func TestHandleDocumentRejectsUnsupportedType(t *testing.T) {
	api := newFakeAPI(t)
	b := newTestBot(t, api, &fakeSessions{}, &fakeIndexer{})

	msg := textMessage("")
	msg.Document = &Document{FileID: "f1", FileName: "virus.exe", FileSize: 100}
	b.dispatch(&Update{Message: msg})

	if calls := api.callsFor("getFile"); len(calls) != 0 {
		t.Error("unsupported file must not be downloaded")
	}
	if text := api.lastText(t, "sendMessage"); text != textDocType {
		t.Errorf("reply = %q", text)
	}
}

func TestHandleDocumentRejectsOversized(t *testing.T) {
	api := newFakeAPI(t)
	b := newTestBot(t, api, &fakeSessions{}, &fakeIndexer{})

	msg := textMessage("")
	msg.Document = &Document{FileID: "f1", FileName: "big.pdf", FileSize: 100 << 20}
	b.dispatch(&Update{Message: msg})

	if calls := api.callsFor("getFile"); len(calls) != 0 {
		t.Error("oversized file must not be downloaded")
	}
	if text := api.lastText(t, "sendMessage"); !strings.Contains(text, "слишком большой") {
		t.Errorf("reply = %q", text)
	}
}

func TestHandleCallbackDetailedAnswer(t *testing.T) {
	api := newFakeAPI(t)
	sessions := &fakeSessions{reply: "развернутый ответ со всеми подробностями"}
	b := newTestBot(t, api, sessions, &fakeIndexer{})

	b.dispatch(&Update{CallbackQuery: &CallbackQuery{
		ID:      "cb1",
		From:    User{ID: 42, Username: "irina"},
		Data:    callbackDetailedAnswer,
		Message: &Message{MessageID: 77, Chat: Chat{ID: 1, Type: "private"}},
	}})

	if calls := api.callsFor("answerCallbackQuery"); len(calls) != 1 {
		t.Error("callback query must be answered")
	}
	if got := sessions.sent; len(got) != 1 || got[0] != textDetailedPrompt {
		t.Errorf("session received %v", got)
	}
	if text := api.lastText(t, "editMessageText"); text != "развернутый ответ со всеми подробностями" {
		t.Errorf("edited text = %q", text)
	}
}

func TestParseCommand(t *testing.T) {
	cases := []struct {
		in       string
		cmd, arg string
	}{
		{"/start", "start", ""},
		{"/stats 30", "stats", "30"},
		{"/reindex@askdocs_bot", "reindex", ""},
		{"/HELP", "help", ""},
	}
	for _, c := range cases {
		cmd, arg := parseCommand(c.in)
		if cmd != c.cmd || arg != c.arg {
			t.Errorf("parseCommand(%q) = (%q, %q), want (%q, %q)", c.in, cmd, arg, c.cmd, c.arg)
		}
	}
}
