// Package gateway exposes the HTTP surface: health, prometheus metrics,
// the analytics stats API, and the event websocket.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"gopkg.in/yaml.v3"

	"github.com/memrook/askdocs/internal/analytics"
	"github.com/memrook/askdocs/internal/core"
	"github.com/memrook/askdocs/internal/events"
	"github.com/memrook/askdocs/internal/ingest"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Gateway)(nil)
	_ core.Provisioner  = (*Gateway)(nil)
	_ core.Validator    = (*Gateway)(nil)
	_ core.Starter      = (*Gateway)(nil)
	_ core.Stopper      = (*Gateway)(nil)
)

// assistantStatus is the slice of the session manager health reads.
type assistantStatus interface {
	Ready() bool
}

// ingestStatus is the slice of the ingest pipeline health reads.
type ingestStatus interface {
	Status() ingest.Status
}

// Gateway is the HTTP gateway module. It is a leaf module observing the
// rest of the system through services and the event bus.
type Gateway struct {
	config  Config
	logger  *slog.Logger
	server  *http.Server
	metrics *Metrics

	sessions assistantStatus
	pipeline ingestStatus
	store    analytics.Store
	bus      *events.Bus

	unsubscribe func()
	consumed    chan struct{}
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return fmt.Errorf("gateway: decode config: %w", err)
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner. All service bindings are
// optional; the gateway degrades to whatever is available.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.logger = ctx.Logger
	g.metrics = NewMetrics()

	if svc, ok := ctx.Service("session.manager"); ok {
		g.sessions, _ = svc.(assistantStatus)
	}
	if svc, ok := ctx.Service("ingest.pipeline"); ok {
		g.pipeline, _ = svc.(ingestStatus)
	}
	if svc, ok := ctx.Service("analytics.store"); ok {
		g.store, _ = svc.(analytics.Store)
	}
	if svc, ok := ctx.Service("events.bus"); ok {
		g.bus, _ = svc.(*events.Bus)
	}
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return fmt.Errorf("gateway: invalid bind address %q: %w", g.config.Bind, err)
	}
	return nil
}

// Start implements core.Starter. It starts the metrics consumer and the
// HTTP server.
func (g *Gateway) Start() error {
	if g.bus != nil {
		ch, unsubscribe := g.bus.Subscribe()
		g.unsubscribe = unsubscribe
		g.consumed = make(chan struct{})
		go func() {
			defer close(g.consumed)
			for ev := range ch {
				g.metrics.Observe(ev)
			}
		}()
	}

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen: %w", err)
	}

	go func() {
		g.logger.Info("gateway listening", "addr", g.config.Bind)
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.unsubscribe != nil {
		g.unsubscribe()
		<-g.consumed
	}
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
