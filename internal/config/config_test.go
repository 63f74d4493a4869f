package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"logsite/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != filepath.Join(tempHome, ".config", "logsite", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "elkdata") {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	wantLogs := filepath.Join(tempHome, ".local", "share", "logsite", "logs")
	if cfg.Paths.LogDir != wantLogs {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLogs)
	}
	if cfg.SocketPath() != filepath.Join(wantLogs, "logsite.sock") {
		t.Fatalf("unexpected socket path %q", cfg.SocketPath())
	}
	if cfg.SiteLogDir("alpha") != filepath.Join(tempHome, "elkdata", "alpha", "logs") {
		t.Fatalf("unexpected site log dir %q", cfg.SiteLogDir("alpha"))
	}
}

func TestDefaultCadence(t *testing.T) {
	cfg := config.Default()
	if got := cfg.Refresh.Tick(); got != 500*time.Millisecond {
		t.Fatalf("tick = %v", got)
	}
	if got := cfg.Refresh.NormalCycle(); got != 40*time.Second {
		t.Fatalf("normal cycle = %v", got)
	}
	if got := cfg.Refresh.ErrorCycle(); got != 120*time.Second {
		t.Fatalf("error cycle = %v", got)
	}
	if cfg.View.MaxWindow != 5000 || cfg.View.MoreIncrement != 999 {
		t.Fatalf("unexpected window defaults: %+v", cfg.View)
	}
	if got := cfg.View.Settle(); got != 500*time.Millisecond {
		t.Fatalf("settle = %v", got)
	}
	if cfg.Transfer.Port != 21 || cfg.Transfer.ReuseWindow() != 24*time.Hour {
		t.Fatalf("unexpected transfer defaults: %+v", cfg.Transfer)
	}
}

func TestLoadCustomConfigOverridesValues(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(t.TempDir(), "config.toml")
	payload := struct {
		Paths   config.Paths   `toml:"paths"`
		Refresh config.Refresh `toml:"refresh"`
		Logging config.Logging `toml:"logging"`
	}{
		Paths:   config.Paths{DataDir: "~/sites", LogDir: "~/runtime"},
		Refresh: config.Refresh{TickMillis: 250, NormalCycleSeconds: 10, ErrorCycleSeconds: 60},
		Logging: config.Logging{Format: " JSON ", Level: "Debug"},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected existing config at %q, got %q (exists=%v)", configPath, resolved, exists)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "sites") {
		t.Fatalf("unexpected data dir %q", cfg.Paths.DataDir)
	}
	if cfg.Refresh.TickMillis != 250 || cfg.Refresh.NormalCycleSeconds != 10 || cfg.Refresh.ErrorCycleSeconds != 60 {
		t.Fatalf("refresh overrides not applied: %+v", cfg.Refresh)
	}
	if cfg.Refresh.ContentPollMillis != 1000 {
		t.Fatalf("expected content poll default, got %d", cfg.Refresh.ContentPollMillis)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("logging not normalized: %+v", cfg.Logging)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"negative tick", func(c *config.Config) { c.Refresh.TickMillis = -1 }, "tick_millis"},
		{"error shorter than normal", func(c *config.Config) { c.Refresh.ErrorCycleSeconds = 10 }, "error_cycle_seconds"},
		{"negative window", func(c *config.Config) { c.View.MaxWindow = -5 }, "max_window"},
		{"port out of range", func(c *config.Config) { c.Transfer.Port = 70000 }, "transfer.port"},
		{"format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"level", func(c *config.Config) { c.Logging.Level = "loud" }, "logging.level"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.DataDir = t.TempDir()
			cfg.Paths.LogDir = t.TempDir()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %q", tc.want, err.Error())
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(target)
	if err != nil {
		t.Fatalf("load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.View.MoreIncrement != 999 {
		t.Fatalf("unexpected more increment %d", cfg.View.MoreIncrement)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}
