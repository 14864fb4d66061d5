package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/memrook/askdocs/internal/analytics"
	"github.com/memrook/askdocs/internal/core"
	"github.com/memrook/askdocs/internal/events"
	"github.com/memrook/askdocs/internal/ingest"
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

// Config holds the maintenance module configuration.
type Config struct {
	Retention struct {
		// KeepDays is how long analytics rows are kept. 0 disables the job.
		KeepDays int    `yaml:"keep_days"`
		Schedule string `yaml:"schedule"`
	} `yaml:"retention"`

	CorpusCheck struct {
		Enabled  bool   `yaml:"enabled"`
		Schedule string `yaml:"schedule"`
	} `yaml:"corpus_check"`
}

// Module wires the cron scheduler into the module system.
type Module struct {
	config    Config
	logger    *slog.Logger
	scheduler *Scheduler
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "maintenance.cron",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("maintenance: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.logger = ctx.Logger
	m.scheduler = NewScheduler(ctx.Logger)

	if m.config.Retention.KeepDays > 0 {
		svc, ok := ctx.Service("analytics.store")
		if !ok {
			return errors.New("maintenance: retention enabled but analytics.store not available")
		}
		store, ok := svc.(analytics.Store)
		if !ok {
			return errors.New("maintenance: analytics.store service has wrong type")
		}
		if err := m.scheduler.RegisterJob(&RetentionJob{
			Store:        store,
			KeepDays:     m.config.Retention.KeepDays,
			Logger:       ctx.Logger,
			ScheduleExpr: m.config.Retention.Schedule,
		}); err != nil {
			return err
		}
	}

	if m.config.CorpusCheck.Enabled {
		svc, ok := ctx.Service("ingest.pipeline")
		if !ok {
			return errors.New("maintenance: corpus check enabled but ingest.pipeline not available")
		}
		pipeline, ok := svc.(*ingest.Pipeline)
		if !ok {
			return errors.New("maintenance: ingest.pipeline service has wrong type")
		}
		var bus *events.Bus
		if b, ok := ctx.Service("events.bus"); ok {
			bus, _ = b.(*events.Bus)
		}
		if err := m.scheduler.RegisterJob(&CorpusCheckJob{
			Pipeline:     pipeline,
			Bus:          bus,
			Logger:       ctx.Logger,
			ScheduleExpr: m.config.CorpusCheck.Schedule,
		}); err != nil {
			return err
		}
	}

	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if m.config.Retention.KeepDays < 0 {
		return fmt.Errorf("maintenance: keep_days must not be negative, got %d", m.config.Retention.KeepDays)
	}
	return nil
}

// Start implements core.Starter.
func (m *Module) Start() error {
	return m.scheduler.Start()
}

// Stop implements core.Stopper.
func (m *Module) Stop(ctx context.Context) error {
	return m.scheduler.Stop(ctx)
}
