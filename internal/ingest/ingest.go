// Package ingest implements the document ingestion pipeline: collecting
// documents, converting them to Markdown, uploading them to the platform,
// and building the hybrid search index.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/memrook/askdocs/internal/assistant"
	"github.com/memrook/askdocs/internal/core"
	"github.com/memrook/askdocs/internal/events"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Starter      = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

const (
	defaultDocsDir      = "./docs"
	defaultChunkSize    = 1024
	defaultChunkOverlap = 512
)

// Config holds the ingestion module configuration.
type Config struct {
	// DocsDir is the directory scanned for documents. Defaults to ./docs.
	DocsDir string `yaml:"docs_dir"`

	// ChunkSizeTokens is the index chunk size. Defaults to 1024.
	ChunkSizeTokens int `yaml:"chunk_size_tokens"`

	// ChunkOverlapTokens is the index chunk overlap. Defaults to 512.
	ChunkOverlapTokens int `yaml:"chunk_overlap_tokens"`

	// Watch enables the filesystem watcher that flags the corpus as stale
	// when documents change.
	Watch bool `yaml:"watch"`
}

func (c *Config) defaults() {
	if c.DocsDir == "" {
		c.DocsDir = defaultDocsDir
	}
	if c.ChunkSizeTokens == 0 {
		c.ChunkSizeTokens = defaultChunkSize
	}
	if c.ChunkOverlapTokens == 0 {
		c.ChunkOverlapTokens = defaultChunkOverlap
	}
}

func (c *Config) validate() error {
	if c.ChunkOverlapTokens >= c.ChunkSizeTokens {
		return fmt.Errorf("ingest: chunk_overlap_tokens (%d) must be smaller than chunk_size_tokens (%d)",
			c.ChunkOverlapTokens, c.ChunkSizeTokens)
	}
	return nil
}

// Module wires the ingestion pipeline into the module system.
type Module struct {
	config   Config
	logger   *slog.Logger
	pipeline *Pipeline
	watcher  *watcher
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "ingest.docs",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("ingest: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	svc, ok := ctx.Service("provider.assistant")
	if !ok {
		return errors.New("ingest: provider.assistant service not available")
	}
	platform, ok := svc.(assistant.Platform)
	if !ok {
		return errors.New("ingest: provider.assistant service has wrong type")
	}

	var bus *events.Bus
	if b, ok := ctx.Service("events.bus"); ok {
		bus, _ = b.(*events.Bus)
	}

	if err := os.MkdirAll(m.config.DocsDir, 0o755); err != nil {
		return fmt.Errorf("ingest: create docs dir %s: %w", m.config.DocsDir, err)
	}

	m.pipeline = NewPipeline(PipelineOptions{
		Platform:           platform,
		DocsDir:            m.config.DocsDir,
		StatePath:          indexStatePath(ctx.DataDir),
		ChunkSizeTokens:    m.config.ChunkSizeTokens,
		ChunkOverlapTokens: m.config.ChunkOverlapTokens,
		Logger:             ctx.Logger,
		Bus:                bus,
	})

	if err := ctx.RegisterService("ingest.pipeline", m.pipeline); err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	m.logger.Info("ingest module provisioned",
		"docs_dir", m.config.DocsDir,
		"chunk_size", m.config.ChunkSizeTokens,
		"chunk_overlap", m.config.ChunkOverlapTokens,
	)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Start implements core.Starter.
func (m *Module) Start() error {
	if !m.config.Watch {
		return nil
	}
	w, err := newWatcher(m.config.DocsDir, m.pipeline, m.logger)
	if err != nil {
		return fmt.Errorf("ingest: start watcher: %w", err)
	}
	m.watcher = w
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	m.pipeline.Cancel()
	if m.watcher != nil {
		return m.watcher.Close()
	}
	return nil
}

// Pipeline returns the ingestion pipeline.
func (m *Module) Pipeline() *Pipeline {
	return m.pipeline
}
