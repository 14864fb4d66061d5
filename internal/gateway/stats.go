package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/memrook/askdocs/internal/analytics"
)

const defaultStatsDays = 7

// handleStats returns GET /api/stats: the global analytics summary as
// JSON. The optional ?days= parameter bounds the reporting window.
func (g *Gateway) handleStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.store == nil {
			http.Error(w, `{"error":"analytics disabled"}`, http.StatusServiceUnavailable)
			return
		}

		days := defaultStatsDays
		if v := r.URL.Query().Get("days"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				http.Error(w, `{"error":"days must be a positive integer"}`, http.StatusBadRequest)
				return
			}
			days = n
		}

		stats, err := g.store.GlobalStats(r.Context(), days)
		if err != nil {
			g.logger.Error("global stats failed", "error", err)
			http.Error(w, `{"error":"stats unavailable"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(stats)
	}
}

// handleUserStats returns GET /api/stats/user: one user's activity
// summary. The ?user= parameter is the telegram ID.
func (g *Gateway) handleUserStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.store == nil {
			http.Error(w, `{"error":"analytics disabled"}`, http.StatusServiceUnavailable)
			return
		}

		id, err := strconv.ParseInt(r.URL.Query().Get("user"), 10, 64)
		if err != nil || id <= 0 {
			http.Error(w, `{"error":"user must be a telegram ID"}`, http.StatusBadRequest)
			return
		}

		stats, err := g.store.UserStats(r.Context(), id)
		if errors.Is(err, analytics.ErrUnknownUser) {
			http.Error(w, `{"error":"unknown user"}`, http.StatusNotFound)
			return
		}
		if err != nil {
			g.logger.Error("user stats failed", "user", id, "error", err)
			http.Error(w, `{"error":"stats unavailable"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(stats)
	}
}

// handleExport returns GET /api/export: nested conversation dumps.
// Optional query parameters: user (telegram ID), from, to (RFC 3339).
func (g *Gateway) handleExport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.store == nil {
			http.Error(w, `{"error":"analytics disabled"}`, http.StatusServiceUnavailable)
			return
		}

		var filter analytics.ExportFilter
		if v := r.URL.Query().Get("user"); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				http.Error(w, `{"error":"user must be a telegram ID"}`, http.StatusBadRequest)
				return
			}
			filter.TelegramID = id
		}
		for _, p := range []struct {
			name string
			dst  *time.Time
		}{{"from", &filter.From}, {"to", &filter.To}} {
			if v := r.URL.Query().Get(p.name); v != "" {
				ts, err := time.Parse(time.RFC3339, v)
				if err != nil {
					http.Error(w, `{"error":"`+p.name+` must be RFC 3339"}`, http.StatusBadRequest)
					return
				}
				*p.dst = ts
			}
		}

		conversations, err := g.store.ExportConversations(r.Context(), filter)
		if err != nil {
			g.logger.Error("export failed", "error", err)
			http.Error(w, `{"error":"export unavailable"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(conversations)
	}
}
