package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/memrook/askdocs/internal/analytics"
	"github.com/memrook/askdocs/internal/core"
)

func init() {
	core.RegisterModule(&Telegram{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Telegram)(nil)
	_ core.Provisioner  = (*Telegram)(nil)
	_ core.Validator    = (*Telegram)(nil)
	_ core.Starter      = (*Telegram)(nil)
	_ core.Stopper      = (*Telegram)(nil)
)

// Telegram is the bot channel module. It owns the Bot API client, the
// long poller, and the update handlers.
type Telegram struct {
	config Config
	client *Client
	logger *slog.Logger
	bot    *bot
	poller *Poller
}

// ModuleInfo implements core.Module.
func (t *Telegram) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "channel.telegram",
		New: func() core.Module { return &Telegram{} },
	}
}

// Configure implements core.Configurable.
func (t *Telegram) Configure(node *yaml.Node) error {
	if err := node.Decode(&t.config); err != nil {
		return fmt.Errorf("telegram: decode config: %w", err)
	}
	t.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (t *Telegram) Provision(ctx *core.AppContext) error {
	t.logger = ctx.Logger
	t.client = NewClient(t.config.Token, t.config.APIURL)

	svc, ok := ctx.Service("session.manager")
	if !ok {
		return errors.New("telegram: session.manager service not available")
	}
	sessions, ok := svc.(conversations)
	if !ok {
		return errors.New("telegram: session.manager service has wrong type")
	}

	isvc, ok := ctx.Service("ingest.pipeline")
	if !ok {
		return errors.New("telegram: ingest.pipeline service not available")
	}
	pipeline, ok := isvc.(indexer)
	if !ok {
		return errors.New("telegram: ingest.pipeline service has wrong type")
	}

	var store analytics.Store
	if asvc, ok := ctx.Service("analytics.store"); ok {
		store, _ = asvc.(analytics.Store)
	}

	allow := NewAllowList(t.config.AllowUsers, t.config.AdminUsers)
	t.bot = newBot(t.client, sessions, pipeline, store, allow, t.logger, t.config)
	return nil
}

// Validate implements core.Validator.
func (t *Telegram) Validate() error {
	if t.config.Token == "" {
		return errors.New("telegram: token is required")
	}
	return t.config.validate()
}

// Start implements core.Starter. It validates the bot token, then starts
// the long poller.
func (t *Telegram) Start() error {
	me, err := t.client.GetMe(context.Background())
	if err != nil {
		return fmt.Errorf("telegram: getMe failed (check token): %w", err)
	}
	t.logger.Info("bot authorized", "username", me.Username, "bot_id", me.ID)

	t.poller = NewPoller(t.client, t.bot.handleUpdate, t.logger, t.config)
	t.poller.Start()
	return nil
}

// Stop implements core.Stopper. It halts polling and waits for in-flight
// handlers to finish.
func (t *Telegram) Stop(_ context.Context) error {
	if t.poller != nil {
		t.poller.Stop()
	}
	if t.bot != nil {
		t.bot.shutdown()
	}
	t.logger.Info("telegram channel stopped")
	return nil
}
