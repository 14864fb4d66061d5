package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/memrook/askdocs/internal/analytics"
	"github.com/memrook/askdocs/internal/events"
	"github.com/memrook/askdocs/internal/ingest"
)

type fakeSessions struct{ ready bool }

func (f fakeSessions) Ready() bool { return f.ready }

type fakePipeline struct{ status ingest.Status }

func (f fakePipeline) Status() ingest.Status { return f.status }

type fakeStore struct {
	analytics.Store
	stats  *analytics.GlobalStats
	days   int
	export []analytics.ExportedConversation
	filter analytics.ExportFilter

	userStats *analytics.UserStats
}

func (f *fakeStore) GlobalStats(ctx context.Context, days int) (*analytics.GlobalStats, error) {
	f.days = days
	return f.stats, nil
}

func (f *fakeStore) ExportConversations(ctx context.Context, filter analytics.ExportFilter) ([]analytics.ExportedConversation, error) {
	f.filter = filter
	return f.export, nil
}

func (f *fakeStore) UserStats(ctx context.Context, telegramID int64) (*analytics.UserStats, error) {
	if f.userStats == nil {
		return nil, fmt.Errorf("%w: %d", analytics.ErrUnknownUser, telegramID)
	}
	return f.userStats, nil
}

func newTestGateway() *Gateway {
	g := &Gateway{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: NewMetrics(),
	}
	g.config.defaults()
	return g
}

func TestHealthOK(t *testing.T) {
	g := newTestGateway()
	g.sessions = fakeSessions{ready: true}
	g.pipeline = fakePipeline{status: ingest.Status{State: ingest.StateDone}}

	srv := httptest.NewServer(g.buildRouter())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "ok" || !health.Assistant {
		t.Errorf("health = %+v", health)
	}
}

func TestHealthDegradedOnIngestFailure(t *testing.T) {
	g := newTestGateway()
	g.pipeline = fakePipeline{status: ingest.Status{State: ingest.StateFailed, LastError: "upload failed"}}

	srv := httptest.NewServer(g.buildRouter())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestStatsEndpoint(t *testing.T) {
	store := &fakeStore{stats: &analytics.GlobalStats{TotalUsers: 5, TotalMessages: 120}}
	g := newTestGateway()
	g.store = store

	srv := httptest.NewServer(g.buildRouter())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/stats?days=30")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if store.days != 30 {
		t.Errorf("days = %d, want 30", store.days)
	}
	var got analytics.GlobalStats
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.TotalUsers != 5 || got.TotalMessages != 120 {
		t.Errorf("stats = %+v", got)
	}
}

func TestStatsRejectsBadDays(t *testing.T) {
	g := newTestGateway()
	g.store = &fakeStore{stats: &analytics.GlobalStats{}}

	srv := httptest.NewServer(g.buildRouter())
	defer srv.Close()

	for _, q := range []string{"days=0", "days=abc"} {
		resp, err := http.Get(srv.URL + "/api/stats?" + q)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, resp.StatusCode)
		}
	}
}

func TestStatsWithoutAnalytics(t *testing.T) {
	g := newTestGateway()

	srv := httptest.NewServer(g.buildRouter())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/stats")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestUserStatsEndpoint(t *testing.T) {
	g := newTestGateway()
	g.store = &fakeStore{userStats: &analytics.UserStats{TelegramID: 42, Username: "alice", TotalMessages: 9}}

	srv := httptest.NewServer(g.buildRouter())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/stats/user?user=42")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got analytics.UserStats
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.TelegramID != 42 || got.TotalMessages != 9 {
		t.Errorf("stats = %+v", got)
	}
}

func TestUserStatsUnknownUser(t *testing.T) {
	g := newTestGateway()
	g.store = &fakeStore{}

	srv := httptest.NewServer(g.buildRouter())
	defer srv.Close()

	for q, want := range map[string]int{
		"user=42":  http.StatusNotFound,
		"user=abc": http.StatusBadRequest,
		"":         http.StatusBadRequest,
	} {
		resp, err := http.Get(srv.URL + "/api/stats/user?" + q)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Errorf("%q: status = %d, want %d", q, resp.StatusCode, want)
		}
	}
}

func TestExportEndpoint(t *testing.T) {
	store := &fakeStore{export: []analytics.ExportedConversation{{ID: 1, TelegramID: 42}}}
	g := newTestGateway()
	g.store = store

	srv := httptest.NewServer(g.buildRouter())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/export?user=42&from=2026-08-01T00:00:00Z")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if store.filter.TelegramID != 42 || store.filter.From.IsZero() {
		t.Errorf("filter = %+v", store.filter)
	}
	var got []analytics.ExportedConversation
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].TelegramID != 42 {
		t.Errorf("export = %+v", got)
	}
}

func TestExportRejectsBadTimestamp(t *testing.T) {
	g := newTestGateway()
	g.store = &fakeStore{}

	srv := httptest.NewServer(g.buildRouter())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/export?from=yesterday")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestMetricsReflectBusEvents(t *testing.T) {
	g := newTestGateway()

	g.metrics.Observe(events.Event{Type: "chat.message", Data: map[string]any{"role": "user"}})
	g.metrics.Observe(events.Event{Type: "chat.message", Data: map[string]any{"role": "assistant", "latency_ms": int64(1500)}})
	g.metrics.Observe(events.Event{Type: "chat.error"})
	g.metrics.Observe(events.Event{Type: "ingest.progress", Data: map[string]any{"processed": 1, "total": 3}})

	srv := httptest.NewServer(g.buildRouter())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	text := string(body)
	for _, want := range []string{
		"askdocs_messages_total 1",
		"askdocs_answers_total 1",
		"askdocs_answer_errors_total 1",
		"askdocs_ingest_files_total 1",
		"askdocs_answer_latency_seconds_count 1",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestEventsWebsocketStreamsBus(t *testing.T) {
	bus := events.NewBus()
	g := newTestGateway()
	g.bus = bus

	srv := httptest.NewServer(g.buildRouter())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Subscription happens inside the handler; give it a moment.
	for i := 0; i < 50 && bus.SubscriberCount() == 0; i++ {
		time.Sleep(10 * time.Millisecond)
	}
	bus.Publish(events.Event{Type: "ingest.progress", Data: map[string]any{"processed": float64(2)}})

	var ev events.Event
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.Type != "ingest.progress" {
		t.Errorf("event = %+v", ev)
	}
}
