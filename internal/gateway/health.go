package gateway

import (
	"encoding/json"
	"net/http"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status      string `json:"status"` // "ok" or "degraded"
	Assistant   bool   `json:"assistant_ready"`
	Analytics   bool   `json:"analytics"`
	IngestState string `json:"ingest_state,omitempty"`
	IngestDirty bool   `json:"ingest_dirty,omitempty"`
}

// handleHealth returns an http.HandlerFunc for GET /health. The endpoint
// reports 200 even before the lazy assistant init; "degraded" is reserved
// for a failed indexing run.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{
			Status:    "ok",
			Analytics: g.store != nil,
		}

		if g.sessions != nil {
			resp.Assistant = g.sessions.Ready()
		}
		if g.pipeline != nil {
			st := g.pipeline.Status()
			resp.IngestState = string(st.State)
			resp.IngestDirty = st.Dirty
			if st.LastError != "" {
				resp.Status = "degraded"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status == "degraded" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
