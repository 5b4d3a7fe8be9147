package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != DriverMemory || cfg.Overlay.Binding != "F7" || cfg.Server.Addr != "127.0.0.1:7788" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Rules.CacheTTL != 10*time.Minute {
		t.Fatalf("unexpected cache ttl %s", cfg.Rules.CacheTTL)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeFile(t, "settings.yaml", `
storage:
  driver: file
  path: /tmp/settings.json
  watch: true
overlay:
  binding: F8
rules:
  engine: cel
  cache_ttl: 30s
log:
  level: debug
`)
	t.Setenv("SETTINGS_SERVER_ADDR", "0.0.0.0:9000")
	t.Setenv("SETTINGS_ACTIVITY_ENABLED", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != DriverFile || cfg.Storage.Path != "/tmp/settings.json" || !cfg.Storage.Watch {
		t.Fatalf("unexpected storage %+v", cfg.Storage)
	}
	if cfg.Overlay.Binding != "F8" || cfg.Overlay.Page != "Settings" {
		t.Fatalf("unexpected overlay %+v", cfg.Overlay)
	}
	if cfg.Rules.Engine != "cel" || cfg.Rules.CacheTTL != 30*time.Second {
		t.Fatalf("unexpected rules %+v", cfg.Rules)
	}
	if cfg.Server.Addr != "0.0.0.0:9000" {
		t.Fatalf("env override ignored: %s", cfg.Server.Addr)
	}
	if !cfg.Activity.Enabled || cfg.Activity.Channel != "settings" {
		t.Fatalf("unexpected activity %+v", cfg.Activity)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"driver":  "storage:\n  driver: redis\n",
		"path":    "storage:\n  driver: sqlite\n",
		"engine":  "rules:\n  engine: lua\n",
		"binding": "overlay:\n  binding: F99\n",
	}
	for name, content := range cases {
		path := writeFile(t, "settings.yaml", content)
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: expected error", name)
		} else if !strings.HasPrefix(err.Error(), "config:") {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing explicit file")
	}
}
