package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", g.handleHealth())
	r.Handle("/metrics", g.metrics.Handler())
	r.Get("/api/stats", g.handleStats())
	r.Get("/api/stats/user", g.handleUserStats())
	r.Get("/api/export", g.handleExport())
	r.Get("/ws/events", g.handleEvents())

	return r
}
