package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"logsite/internal/config"
	"logsite/internal/daemon"
	"logsite/internal/ipc"
	"logsite/internal/logging"
	"logsite/internal/services"
	"logsite/internal/sites"
	"logsite/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	dialer     *testsupport.FakeDialer
	client     *ipc.Client
	socketPath string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "logsite.toml")
	writeTestConfig(t, configPath, cfg)

	hub := logging.NewStreamHub(256)
	logger, err := logging.New(logging.Options{
		Level:       "debug",
		Format:      "json",
		OutputPaths: []string{filepath.Join(cfg.Paths.LogDir, "cli-test.log")},
		Stream:      hub,
	})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	dialer := testsupport.NewFakeDialer()
	d, err := daemon.Assemble(cfg, logger, hub, dialer)
	if err != nil {
		t.Fatalf("daemon.Assemble: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon Start: %v", err)
	}

	sockDir, err := os.MkdirTemp("", "lscli")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	socketPath := filepath.Join(sockDir, "logsite.sock")
	srv, err := ipc.NewServer(ctx, socketPath, d, logger)
	if err != nil {
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	client, err := ipc.Dial(socketPath)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
		cancel()
		srv.Close()
		d.Close()
		os.RemoveAll(sockDir)
	})

	return &cliTestEnv{
		cfg:        cfg,
		daemon:     d,
		dialer:     dialer,
		client:     client,
		socketPath: socketPath,
		configPath: configPath,
	}
}

func (env *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--socket", env.socketPath, "--config", env.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func (env *cliTestEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, stderr, err := env.run(t, args...)
	if err != nil {
		t.Fatalf("logsite %s: %v (stderr %q)", strings.Join(args, " "), err, stderr)
	}
	return out
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf("[paths]\ndata_dir = %q\nlog_dir = %q\n\n[transfer]\ndial_timeout_seconds = 1\n",
		cfg.Paths.DataDir, cfg.Paths.LogDir)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestSitesLifecycle(t *testing.T) {
	env := setupCLITestEnv(t)

	out := env.mustRun(t, "sites", "list")
	requireContains(t, out, "No sites configured")

	out = env.mustRun(t, "sites", "add", "prod", "--address", "10.0.0.5", "--user", "ops", "--password", "s3cret")
	requireContains(t, out, "Saved site prod")

	out = env.mustRun(t, "sites", "list")
	requireContains(t, out, "prod")
	requireContains(t, out, "10.0.0.5")

	out = env.mustRun(t, "sites", "show", "prod")
	var shown sites.SiteConfig
	if err := json.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("decode show output: %v\n%s", err, out)
	}
	if shown.Credentials.Username != "ops" || shown.Credentials.Password == "s3cret" {
		t.Fatalf("unexpected show output %+v", shown)
	}

	out = env.mustRun(t, "sites", "remove", "prod")
	requireContains(t, out, "Removed site prod")

	out = env.mustRun(t, "sites", "list")
	requireContains(t, out, "No sites configured")

	if _, _, err := env.run(t, "sites", "remove", "prod"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound removing twice, got %v", err)
	}
}

func TestSitesAddRejectsBadTransforms(t *testing.T) {
	env := setupCLITestEnv(t)
	rulesPath := filepath.Join(testsupport.BaseDir(env.cfg), "rules.json")
	testsupport.WriteFile(t, rulesPath, `[{"filenames":".*","match":"("}]`)

	_, _, err := env.run(t, "sites", "add", "prod", "--address", "h", "--transforms", rulesPath)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestFilesAndView(t *testing.T) {
	env := setupCLITestEnv(t)
	env.mustRun(t, "sites", "add", "prod", "--address", "10.0.0.5")
	env.dialer.SetFile("prod", "app.log",
		"2024-03-01 10:00:00 INFO service up\n2024-03-01 10:00:05 ERROR boom happened\n", time.Now())

	out := env.mustRun(t, "files", "prod")
	requireContains(t, out, "app.log")

	out = env.mustRun(t, "view", "prod", "app.log")
	requireContains(t, out, "service up")
	requireContains(t, out, "boom happened")

	out = env.mustRun(t, "view", "prod", "app.log", "--exclude", "boom")
	if strings.Contains(out, "boom happened") {
		t.Fatalf("exclude filter ignored: %s", out)
	}

	out = env.mustRun(t, "view", "prod", "app.log", "--local", "--include", "error", "--json")
	var lines []sites.LogLine
	if err := json.Unmarshal([]byte(out), &lines); err != nil {
		t.Fatalf("decode view json: %v\n%s", err, out)
	}
	if len(lines) != 1 || lines[0].LevelCode() != 'E' {
		t.Fatalf("unexpected filtered lines %+v", lines)
	}

	out = env.mustRun(t, "files", "prod", "--local")
	requireContains(t, out, "app.log")
}

func TestViewIncludeMatchesAllTokens(t *testing.T) {
	env := setupCLITestEnv(t)
	env.mustRun(t, "sites", "add", "prod", "--address", "10.0.0.5")
	env.dialer.SetFile("prod", "app.log",
		"2024-03-01 10:00:00 INFO service up\n2024-03-01 10:00:05 INFO service down\n", time.Now())

	out := env.mustRun(t, "view", "prod", "app.log", "--include", "service up")
	requireContains(t, out, "service up")
	if strings.Contains(out, "service down") {
		t.Fatalf("include tokens must all match: %s", out)
	}

	view, _, err := newRootCommand().Find([]string{"view"})
	if err != nil {
		t.Fatalf("find view: %v", err)
	}
	if usage := view.Flags().Lookup("include").Usage; !strings.Contains(usage, "matching all") {
		t.Fatalf("include usage = %q", usage)
	}
}

func TestViewUnknownSite(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := env.run(t, "view", "missing", "app.log"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStatusAndEvents(t *testing.T) {
	env := setupCLITestEnv(t)

	out := env.mustRun(t, "status")
	requireContains(t, out, "Running (pid")

	env.client.EmitLog(context.Background(), "warn", "viewer crashed on resize")
	out = env.mustRun(t, "events", "--search", "crashed")
	requireContains(t, out, "viewer crashed on resize")
	requireContains(t, out, "[client]")

	out = env.mustRun(t, "events", "--search", "no-such-message")
	requireContains(t, out, "No events")
}

func TestCommandsWithoutDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "logsite.toml")
	writeTestConfig(t, configPath, cfg)
	socket := filepath.Join(testsupport.BaseDir(cfg), "absent.sock")

	cmd := newRootCommand()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stdout)
	cmd.SetArgs([]string{"--socket", socket, "--config", configPath, "sites", "list"})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "logsite start") {
		t.Fatalf("expected hint to start the daemon, got %v", err)
	}

	cmd = newRootCommand()
	stdout.Reset()
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"--socket", socket, "--config", configPath, "status"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, stdout.String(), "Not running")

	cmd = newRootCommand()
	stdout.Reset()
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"--socket", socket, "--config", configPath, "stop"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, stdout.String(), "Daemon is not running")
}

func TestConfigInitAndValidate(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	target := filepath.Join(home, "conf", "logsite.toml")

	cmd := newRootCommand()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, stdout.String(), "Wrote sample configuration")

	cmd = newRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected refusal to overwrite")
	}

	cmd = newRootCommand()
	stdout.Reset()
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"--config", target, "config", "validate"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, stdout.String(), "Configuration valid")
}
