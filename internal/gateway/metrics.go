package gateway

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/memrook/askdocs/internal/events"
)

// Metrics exposes bot activity counters on a dedicated registry so the
// /metrics endpoint only carries what this process owns.
type Metrics struct {
	registry *prometheus.Registry

	messages      prometheus.Counter
	answers       prometheus.Counter
	answerErrors  prometheus.Counter
	answerLatency prometheus.Histogram
	ingestFiles   prometheus.Counter
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "askdocs_messages_total",
			Help: "User messages received.",
		}),
		answers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "askdocs_answers_total",
			Help: "Assistant answers delivered.",
		}),
		answerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "askdocs_answer_errors_total",
			Help: "Questions that ended in an error.",
		}),
		answerLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "askdocs_answer_latency_seconds",
			Help:    "Time from question to answer.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
		ingestFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "askdocs_ingest_files_total",
			Help: "Documents uploaded during indexing runs.",
		}),
	}
	m.registry.MustRegister(m.messages, m.answers, m.answerErrors, m.answerLatency, m.ingestFiles)
	return m
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Observe updates the counters from one bus event.
func (m *Metrics) Observe(ev events.Event) {
	switch ev.Type {
	case "chat.message":
		role, _ := ev.Data["role"].(string)
		switch role {
		case "user":
			m.messages.Inc()
		case "assistant":
			m.answers.Inc()
			if ms, ok := ev.Data["latency_ms"].(int64); ok {
				m.answerLatency.Observe(float64(ms) / 1000)
			}
		}
	case "chat.error":
		m.answerErrors.Inc()
	case "ingest.progress":
		m.ingestFiles.Inc()
	}
}
