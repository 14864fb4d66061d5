// Package yandex implements the assistant platform client: file uploads,
// hybrid search indexes, assistants, threads, and runs over the cloud
// REST API.
package yandex

import (
	"fmt"
	"log/slog"

	"github.com/memrook/askdocs/internal/assistant"
	"github.com/memrook/askdocs/internal/core"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ assistant.Platform = (*Client)(nil)
	_ core.Configurable  = (*Module)(nil)
	_ core.Provisioner   = (*Module)(nil)
	_ core.Validator     = (*Module)(nil)
)

// Module wires the platform client into the module system.
type Module struct {
	config Config
	client *Client
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.yandex",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("yandex: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger
	m.client = NewClient(m.config)

	if err := ctx.RegisterService("provider.assistant", m.client); err != nil {
		return fmt.Errorf("yandex: %w", err)
	}

	m.logger.Info("assistant platform client provisioned",
		"base_url", m.config.BaseURL,
		"model", m.config.modelURI(),
	)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Client returns the platform client.
func (m *Module) Client() *Client {
	return m.client
}
