package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/memrook/askdocs/internal/assistant"
	"github.com/memrook/askdocs/internal/docconv"
	"github.com/memrook/askdocs/internal/events"
)

// Pipeline errors.
var (
	// ErrBusy is returned when an ingestion run is already in progress.
	ErrBusy = errors.New("ingest: already running")

	// ErrCancelled is returned when a run was cancelled cooperatively.
	ErrCancelled = errors.New("ingest: cancelled")

	// ErrNoDocuments is returned when the docs directory has no
	// convertible files; callers fall back to an assistant without search.
	ErrNoDocuments = errors.New("ingest: no documents found")
)

// State is the pipeline state machine position.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateDone      State = "done"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// Status is a point-in-time snapshot of the pipeline.
type Status struct {
	State       State         `json:"state"`
	RunID       string        `json:"run_id,omitempty"`
	Step        string        `json:"step,omitempty"`
	CurrentFile string        `json:"current_file,omitempty"`
	Processed   int           `json:"processed"`
	Total       int           `json:"total"`
	ImageLinks  int           `json:"image_links,omitempty"`
	Elapsed     time.Duration `json:"elapsed,omitempty"`
	IndexID     string        `json:"index_id,omitempty"`
	Dirty       bool          `json:"dirty"`
	LastError   string        `json:"last_error,omitempty"`
}

// ProgressFunc receives human-readable progress lines during a run.
type ProgressFunc func(message string)

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	Platform           assistant.Platform
	DocsDir            string
	StatePath          string
	ChunkSizeTokens    int
	ChunkOverlapTokens int
	Logger             *slog.Logger
	Bus                *events.Bus
}

// Pipeline converts, uploads, and indexes the document corpus. A single
// run may be active at a time; Cancel stops a run at the next file
// boundary.
type Pipeline struct {
	platform     assistant.Platform
	docsDir      string
	statePath    string
	chunkSize    int
	chunkOverlap int
	logger       *slog.Logger
	bus          *events.Bus

	cancelled atomic.Bool
	dirty     atomic.Bool

	mu      sync.Mutex
	status  Status
	started time.Time
}

// NewPipeline creates an idle pipeline.
func NewPipeline(opts PipelineOptions) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		platform:     opts.Platform,
		docsDir:      opts.DocsDir,
		statePath:    opts.StatePath,
		chunkSize:    opts.ChunkSizeTokens,
		chunkOverlap: opts.ChunkOverlapTokens,
		logger:       logger,
		bus:          opts.Bus,
	}
	p.status.State = StateIdle

	if state, err := loadIndexState(p.statePath); err == nil && state.IndexID != "" {
		p.status.IndexID = state.IndexID
	}
	return p
}

// Status returns a snapshot of the pipeline.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.status
	if st.State == StateRunning {
		st.Elapsed = time.Since(p.started)
	}
	st.Dirty = p.dirty.Load()
	return st
}

// Running reports whether an ingestion run is in progress.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status.State == StateRunning
}

// Cancel requests cooperative cancellation of the active run. It takes
// effect at the next file boundary, never mid-upload.
func (p *Pipeline) Cancel() {
	if p.Running() {
		p.cancelled.Store(true)
	}
}

// DocsDir returns the directory holding the source documents.
func (p *Pipeline) DocsDir() string {
	return p.docsDir
}

// MarkDirty flags the corpus as changed since the last index build.
func (p *Pipeline) MarkDirty() {
	p.dirty.Store(true)
	p.publish("ingest.dirty", nil)
}

// EnsureIndex returns a usable search index ID, reusing a previously
// persisted index when the platform still knows it, otherwise running the
// full pipeline. ErrNoDocuments means the corpus is empty and no index
// can exist.
func (p *Pipeline) EnsureIndex(ctx context.Context, progress ProgressFunc) (string, error) {
	if id := p.persistedIndexID(); id != "" {
		if _, err := p.platform.GetIndex(ctx, id); err == nil {
			p.logger.Info("reusing existing search index", "index_id", id)
			report(progress, "Использую существующий индекс документов.")
			return id, nil
		}
		p.logger.Warn("persisted index no longer exists, rebuilding", "index_id", id)
	}
	return p.ReindexAll(ctx, progress)
}

// ReindexAll runs the full pipeline: collect, convert, upload, index.
// Returns ErrBusy if a run is already active.
func (p *Pipeline) ReindexAll(ctx context.Context, progress ProgressFunc) (string, error) {
	if err := p.begin(); err != nil {
		return "", err
	}

	indexID, err := p.run(ctx, progress)
	p.finish(indexID, err)
	return indexID, err
}

func (p *Pipeline) begin() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status.State == StateRunning {
		return ErrBusy
	}
	p.cancelled.Store(false)
	p.started = time.Now()
	p.status = Status{State: StateRunning, IndexID: p.status.IndexID, RunID: uuid.NewString()}
	return nil
}

func (p *Pipeline) finish(indexID string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.Elapsed = time.Since(p.started)
	switch {
	case err == nil:
		p.status.State = StateDone
		p.status.IndexID = indexID
		p.status.LastError = ""
		p.dirty.Store(false)
		p.publish("ingest.done", map[string]any{
			"run_id":      p.status.RunID,
			"index_id":    indexID,
			"image_links": p.status.ImageLinks,
		})
	case errors.Is(err, ErrCancelled):
		p.status.State = StateCancelled
		p.publish("ingest.cancelled", map[string]any{"run_id": p.status.RunID})
	default:
		p.status.State = StateFailed
		p.status.LastError = err.Error()
		p.publish("ingest.failed", map[string]any{"run_id": p.status.RunID, "error": err.Error()})
	}
}

func (p *Pipeline) run(ctx context.Context, progress ProgressFunc) (string, error) {
	files, err := p.collectFiles()
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		report(progress, "Документы не найдены. Ассистент будет отвечать без поиска по базе.")
		return "", ErrNoDocuments
	}

	p.setStep("converting", "", 0, len(files))
	report(progress, fmt.Sprintf("Найдено документов: %d. Конвертирую...", len(files)))

	tmpDir, err := os.MkdirTemp("", "askdocs-ingest-*")
	if err != nil {
		return "", fmt.Errorf("ingest: create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	converted, err := p.convertAll(files, tmpDir)
	if err != nil {
		return "", err
	}
	if len(converted) == 0 {
		report(progress, "Документы не найдены. Ассистент будет отвечать без поиска по базе.")
		return "", ErrNoDocuments
	}

	fileIDs, err := p.uploadAll(ctx, converted, progress)
	if err != nil {
		return "", err
	}

	p.setStep("indexing", "", len(fileIDs), len(fileIDs))
	report(progress, "Загрузка завершена. Строю поисковый индекс, это может занять несколько минут...")

	op, err := p.platform.CreateHybridIndex(ctx, fileIDs, assistant.IndexOptions{
		ChunkSizeTokens:    p.chunkSize,
		ChunkOverlapTokens: p.chunkOverlap,
	})
	if err != nil {
		return "", fmt.Errorf("ingest: create index: %w", err)
	}

	indexID, err := p.platform.WaitOperation(ctx, op.ID)
	if err != nil {
		return "", fmt.Errorf("ingest: wait index operation: %w", err)
	}

	if err := saveIndexState(p.statePath, indexState{IndexID: indexID, CreatedAt: time.Now().UTC()}); err != nil {
		// The index exists; losing the state file only costs a rebuild
		// on next start.
		p.logger.Error("persist index state failed", "error", err)
	}

	p.logger.Info("search index built", "index_id", indexID, "files", len(fileIDs))
	report(progress, fmt.Sprintf("Готово! Индекс построен по %d документам.", len(fileIDs)))
	return indexID, nil
}

// convertedFile is a document rendered to Markdown on disk.
type convertedFile struct {
	name string // original base name
	path string // markdown path in the temp dir
}

func (p *Pipeline) collectFiles() ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.md", "*.docx", "*.pdf", "*.xlsx"} {
		matches, err := filepath.Glob(filepath.Join(p.docsDir, pattern))
		if err != nil {
			return nil, fmt.Errorf("ingest: glob %s: %w", pattern, err)
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

func (p *Pipeline) convertAll(files []string, tmpDir string) ([]convertedFile, error) {
	var converted []convertedFile
	images := 0
	for i, src := range files {
		if p.cancelled.Load() {
			return nil, ErrCancelled
		}
		name := filepath.Base(src)
		p.setStep("converting", name, i, len(files))

		markdown, err := docconv.Convert(src)
		if err != nil {
			p.logger.Warn("conversion failed, skipping file", "file", name, "error", err)
			continue
		}
		if strings.TrimSpace(markdown) == "" {
			p.logger.Warn("empty document, skipping file", "file", name)
			continue
		}

		// The assistant instruction asks the model to cite image links, so
		// surface how many the corpus actually carries.
		if links := docconv.ImageLinks([]byte(markdown)); len(links) > 0 {
			images += len(links)
			p.logger.Debug("document references images", "file", name, "images", len(links))
		}

		mdName := strings.TrimSuffix(name, filepath.Ext(name)) + ".md"
		dst := filepath.Join(tmpDir, mdName)
		if err := os.WriteFile(dst, []byte(markdown), 0o600); err != nil {
			return nil, fmt.Errorf("ingest: write %s: %w", dst, err)
		}
		converted = append(converted, convertedFile{name: mdName, path: dst})
	}

	p.mu.Lock()
	p.status.ImageLinks = images
	p.mu.Unlock()
	return converted, nil
}

func (p *Pipeline) uploadAll(ctx context.Context, files []convertedFile, progress ProgressFunc) ([]string, error) {
	started := time.Now()
	fileIDs := make([]string, 0, len(files))

	for i, f := range files {
		if p.cancelled.Load() {
			return nil, ErrCancelled
		}
		p.setStep("uploading", f.name, i, len(files))

		content, err := os.ReadFile(f.path)
		if err != nil {
			return nil, fmt.Errorf("ingest: read %s: %w", f.path, err)
		}

		uploaded, err := p.platform.UploadFile(ctx, f.name, docconv.MimeType(), content)
		if err != nil {
			return nil, fmt.Errorf("ingest: upload %s: %w", f.name, err)
		}
		fileIDs = append(fileIDs, uploaded.ID)

		p.setStep("uploading", f.name, i+1, len(files))
		report(progress, fmt.Sprintf("Загрузка документов\n%s", progressLine(i+1, len(files), time.Since(started))))
		p.publish("ingest.progress", map[string]any{
			"file":      f.name,
			"processed": i + 1,
			"total":     len(files),
		})
	}
	return fileIDs, nil
}

func (p *Pipeline) setStep(step, file string, processed, total int) {
	p.mu.Lock()
	p.status.Step = step
	p.status.CurrentFile = file
	p.status.Processed = processed
	p.status.Total = total
	p.mu.Unlock()
}

func (p *Pipeline) persistedIndexID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status.IndexID
}

func (p *Pipeline) publish(eventType string, data map[string]any) {
	if p.bus != nil {
		p.bus.Publish(events.Event{Type: eventType, Data: data})
	}
}

func report(progress ProgressFunc, message string) {
	if progress != nil {
		progress(message)
	}
}
