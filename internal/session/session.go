// Package session maps chats to platform threads, keeps a bounded
// transcript per chat, and orchestrates assistant runs with retries.
package session

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/memrook/askdocs/internal/analytics"
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
)

// defaultInstruction steers the assistant toward the uploaded corpus and
// keeps image references intact.
const defaultInstruction = "Ты — ассистент технической поддержки. Отвечай на вопросы, " +
	"опираясь на загруженную документацию. Отвечай кратко и по делу, на русском языке. " +
	"Если в найденных фрагментах документации есть ссылки на изображения, обязательно " +
	"включай эти ссылки в ответ."

// Config holds the session module configuration.
type Config struct {
	// Instruction is the assistant system instruction.
	Instruction string `yaml:"instruction"`

	// HistoryLimit bounds the in-memory transcript per chat. Defaults to 20.
	HistoryLimit int `yaml:"history_limit"`

	// RunRetries is the number of attempts for transient run failures.
	// Defaults to 3.
	RunRetries int `yaml:"run_retries"`
}

func (c *Config) defaults() {
	if c.Instruction == "" {
		c.Instruction = defaultInstruction
	}
	if c.HistoryLimit == 0 {
		c.HistoryLimit = 20
	}
	if c.RunRetries == 0 {
		c.RunRetries = 3
	}
}

// Module wires the session manager into the module system.
type Module struct {
	config  Config
	logger  *slog.Logger
	manager *Manager
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "session.manager",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("session: decode config: %w", err)
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
		return errors.New("session: provider.assistant service not available")
	}
	platform, ok := svc.(assistant.Platform)
	if !ok {
		return errors.New("session: provider.assistant service has wrong type")
	}

	isvc, ok := ctx.Service("ingest.pipeline")
	if !ok {
		return errors.New("session: ingest.pipeline service not available")
	}
	indexer, ok := isvc.(Indexer)
	if !ok {
		return errors.New("session: ingest.pipeline service has wrong type")
	}

	var store analytics.Store
	if asvc, ok := ctx.Service("analytics.store"); ok {
		store, _ = asvc.(analytics.Store)
	}

	var bus *events.Bus
	if b, ok := ctx.Service("events.bus"); ok {
		bus, _ = b.(*events.Bus)
	}

	m.manager = NewManager(Options{
		Platform:     platform,
		Indexer:      indexer,
		Store:        store,
		Instruction:  m.config.Instruction,
		HistoryLimit: m.config.HistoryLimit,
		RunRetries:   m.config.RunRetries,
		Logger:       ctx.Logger,
		Bus:          bus,
	})

	if err := ctx.RegisterService("session.manager", m.manager); err != nil {
		return fmt.Errorf("session: %w", err)
	}

	m.logger.Info("session manager provisioned",
		"history_limit", m.config.HistoryLimit,
		"run_retries", m.config.RunRetries,
	)
	return nil
}

// Manager returns the session manager.
func (m *Module) Manager() *Manager {
	return m.manager
}
