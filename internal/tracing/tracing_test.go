package tracing

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func TestValidateSampleRatio(t *testing.T) {
	m := &Module{config: Config{SampleRatio: 1.5}}
	if err := m.Validate(); err == nil {
		t.Error("sample_ratio above 1 should fail validation")
	}

	m.config.SampleRatio = 0.1
	if err := m.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestNoEndpointIsNoOp(t *testing.T) {
	m := &Module{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	m.config.defaults()

	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if m.provider != nil {
		t.Error("provider should stay nil without an endpoint")
	}
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestConfigDefaults(t *testing.T) {
	c := Config{}
	c.defaults()
	if c.ServiceName != "askdocs" || c.SampleRatio != 1 {
		t.Errorf("defaults = %+v", c)
	}
}
