package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "askdocs.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Basic(t *testing.T) {
	path := writeConfig(t, `
version: "1"
modules:
  channel.telegram:
    token: abc123
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Version != "1" {
		t.Errorf("Version = %q, want %q", cfg.Version, "1")
	}
	node, ok := cfg.Modules["channel.telegram"]
	if !ok {
		t.Fatal("expected channel.telegram module entry")
	}
	var parsed struct {
		Token string `yaml:"token"`
	}
	if err := node.Decode(&parsed); err != nil {
		t.Fatal(err)
	}
	if parsed.Token != "abc123" {
		t.Errorf("token = %q, want %q", parsed.Token, "abc123")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("ASKDOCS_TEST_TOKEN", "secret-token")

	path := writeConfig(t, `
version: "1"
modules:
  channel.telegram:
    token: ${ASKDOCS_TEST_TOKEN}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	node := cfg.Modules["channel.telegram"]
	var parsed struct {
		Token string `yaml:"token"`
	}
	if err := node.Decode(&parsed); err != nil {
		t.Fatal(err)
	}
	if parsed.Token != "secret-token" {
		t.Errorf("token = %q, want %q", parsed.Token, "secret-token")
	}
}

func TestLoad_EnvDefault(t *testing.T) {
	raw := []byte("dir: ${ASKDOCS_TEST_UNSET_DIR:-./docs}")
	expanded, err := expandEnv(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(expanded) != "dir: ./docs" {
		t.Errorf("expanded = %q, want %q", expanded, "dir: ./docs")
	}
}

func TestLoad_EnvOverridesDefault(t *testing.T) {
	t.Setenv("ASKDOCS_TEST_DIR", "/srv/docs")
	expanded, err := expandEnv([]byte("dir: ${ASKDOCS_TEST_DIR:-./docs}"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(expanded) != "dir: /srv/docs" {
		t.Errorf("expanded = %q, want %q", expanded, "dir: /srv/docs")
	}
}

func TestLoad_UnresolvedVars(t *testing.T) {
	_, err := expandEnv([]byte("a: ${ASKDOCS_TEST_MISSING_A}\nb: ${ASKDOCS_TEST_MISSING_B}"))
	if err == nil {
		t.Fatal("expected error for unresolved variables")
	}
	if !strings.Contains(err.Error(), "ASKDOCS_TEST_MISSING_A") ||
		!strings.Contains(err.Error(), "ASKDOCS_TEST_MISSING_B") {
		t.Errorf("error should list all unresolved variables: %v", err)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "version: [unclosed")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid yaml")
	}
}

func TestResolve_LoadOrder(t *testing.T) {
	cfg := &Config{
		Version: "1",
		Modules: map[string]yaml.Node{
			"channel.telegram":      {},
			"analytics.sqlite":      {},
			"session.manager":       {},
			"provider.yandex":       {},
			"gateway.http":          {},
			"ingest.docs":           {},
			"maintenance.cron":      {},
			"observability.tracing": {},
		},
	}
	got := Resolve(cfg)
	want := []string{
		"analytics.sqlite",
		"observability.tracing",
		"provider.yandex",
		"ingest.docs",
		"session.manager",
		"gateway.http",
		"maintenance.cron",
		"channel.telegram",
	}
	if len(got) != len(want) {
		t.Fatalf("Resolve = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Resolve[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
