package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

const testToken = "12345:AAbbCCdd_ee-ff"

func TestClientGetMe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bot"+testToken+"/getMe" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"ok":true,"result":{"id":99,"is_bot":true,"username":"askdocs_bot","first_name":"AskDocs"}}`)
	}))
	defer srv.Close()

	c := NewClient(testToken, srv.URL)
	me, err := c.GetMe(context.Background())
	if err != nil {
		t.Fatalf("GetMe: %v", err)
	}
	if me.ID != 99 || me.Username != "askdocs_bot" {
		t.Errorf("me = %+v", me)
	}
}

func TestClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"ok":false,"error_code":400,"description":"Bad Request: message is not modified"}`)
	}))
	defer srv.Close()

	c := NewClient(testToken, srv.URL)
	_, err := c.SendMessage(context.Background(), SendMessageRequest{ChatID: 1, Text: "hi"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Code != 400 || !strings.Contains(apiErr.Description, "not modified") {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestClientRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"ok":false,"error_code":429,"description":"Too Many Requests","parameters":{"retry_after":0}}`)
			return
		}
		var req SendMessageRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Text != "hi" {
			t.Errorf("retry lost request body: %+v", req)
		}
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":7,"chat":{"id":1,"type":"private"}}}`)
	}))
	defer srv.Close()

	c := NewClient(testToken, srv.URL)
	msg, err := c.SendMessage(context.Background(), SendMessageRequest{ChatID: 1, Text: "hi"})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if msg.MessageID != 7 {
		t.Errorf("MessageID = %d, want 7", msg.MessageID)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestClientDownloadFileSizeCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/file/bot"+testToken+"/") {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, strings.Repeat("x", 100))
	}))
	defer srv.Close()

	c := NewClient(testToken, srv.URL)

	data, err := c.DownloadFile(context.Background(), "docs/readme.md", 1000)
	if err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}
	if len(data) != 100 {
		t.Errorf("len = %d, want 100", len(data))
	}

	if _, err := c.DownloadFile(context.Background(), "docs/readme.md", 50); err == nil {
		t.Error("expected error for file over the cap")
	}
}

func TestPollerDeliversUpdatesAfterBacklogDiscard(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req GetUpdatesRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		switch calls.Add(1) {
		case 1:
			if req.Offset != -1 {
				t.Errorf("first poll offset = %d, want -1", req.Offset)
			}
			fmt.Fprint(w, `{"ok":true,"result":[{"update_id":5}]}`)
		case 2:
			if req.Offset != 6 {
				t.Errorf("second poll offset = %d, want 6", req.Offset)
			}
			fmt.Fprint(w, `{"ok":true,"result":[{"update_id":6,"message":{"message_id":1,"chat":{"id":10,"type":"private"},"text":"вопрос"}}]}`)
		default:
			fmt.Fprint(w, `{"ok":true,"result":[]}`)
		}
	}))
	defer srv.Close()

	got := make(chan *Update, 1)
	cfg := Config{}
	cfg.defaults()
	cfg.PollingTimeout = 0

	p := NewPoller(NewClient(testToken, srv.URL), func(u *Update) {
		select {
		case got <- u:
		default:
		}
	}, testLogger(), cfg)
	p.Start()
	defer p.Stop()

	u := <-got
	if u.UpdateID != 6 || u.Message == nil || u.Message.Text != "вопрос" {
		t.Errorf("update = %+v", u)
	}
}
