package maintenance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/memrook/askdocs/internal/analytics"
	"github.com/memrook/askdocs/internal/events"
	"github.com/memrook/askdocs/internal/ingest"
)

// RetentionJob deletes analytics rows older than KeepDays.
type RetentionJob struct {
	Store        analytics.Store
	KeepDays     int
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "0 4 * * *"
}

// Compile-time interface check.
var _ Job = (*RetentionJob)(nil)

// Name implements Job.
func (j *RetentionJob) Name() string { return "analytics_retention" }

// Schedule implements Job.
func (j *RetentionJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 4 * * *"
}

// Run deletes messages and conversations past the retention window.
func (j *RetentionJob) Run(ctx context.Context) error {
	messages, conversations, err := j.Store.Cleanup(ctx, j.KeepDays)
	if err != nil {
		return fmt.Errorf("maintenance: retention: %w", err)
	}
	if messages > 0 || conversations > 0 {
		j.Logger.Info("retention cleanup done",
			"messages", messages,
			"conversations", conversations,
			"keep_days", j.KeepDays,
		)
	}
	return nil
}

// CorpusCheckJob reminds operators about a stale search index: when
// documents changed after the last build, it republishes the dirty signal
// so dashboards watching the event stream surface it.
type CorpusCheckJob struct {
	Pipeline     *ingest.Pipeline
	Bus          *events.Bus
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "0 * * * *"
}

// Compile-time interface check.
var _ Job = (*CorpusCheckJob)(nil)

// Name implements Job.
func (j *CorpusCheckJob) Name() string { return "corpus_check" }

// Schedule implements Job.
func (j *CorpusCheckJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 * * * *"
}

// Run republishes staleness when the corpus changed since the last index.
func (j *CorpusCheckJob) Run(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	st := j.Pipeline.Status()
	if !st.Dirty || st.State == ingest.StateRunning {
		return nil
	}

	j.Logger.Warn("document corpus changed since last indexing, /reindex recommended")
	if j.Bus != nil {
		j.Bus.Publish(events.Event{Type: "ingest.stale", Data: map[string]any{
			"index_id": st.IndexID,
		}})
	}
	return nil
}
