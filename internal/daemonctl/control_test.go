package daemonctl_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"logsite/internal/daemonctl"
	"logsite/internal/sites"
	"logsite/internal/testsupport"
)

func TestPIDFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logsite.pid")
	if pid, err := daemonctl.ReadPIDFile(path); err != nil || pid != 0 {
		t.Fatalf("missing pid file = %d, %v", pid, err)
	}
	if err := daemonctl.WritePIDFile(path); err != nil {
		t.Fatalf("WritePIDFile: %v", err)
	}
	pid, err := daemonctl.ReadPIDFile(path)
	if err != nil || pid != os.Getpid() {
		t.Fatalf("ReadPIDFile = %d, %v", pid, err)
	}

	testsupport.WriteFile(t, path, "garbage")
	if _, err := daemonctl.ReadPIDFile(path); err == nil {
		t.Fatal("expected error for malformed pid file")
	}
}

func TestProcessAlive(t *testing.T) {
	if !daemonctl.ProcessAlive(os.Getpid()) {
		t.Fatal("current process should be alive")
	}
	if daemonctl.ProcessAlive(0) || daemonctl.ProcessAlive(-1) {
		t.Fatal("non-positive pids are never alive")
	}
}

func TestForceKillRefusesCurrentProcess(t *testing.T) {
	dir := t.TempDir()
	pidPath := filepath.Join(dir, "logsite.pid")
	testsupport.WriteFile(t, pidPath, strconv.Itoa(os.Getpid()))
	if _, err := daemonctl.ForceKillProcess(pidPath, "", 0, time.Millisecond); err == nil {
		t.Fatal("expected refusal to kill the current process")
	}
	if _, err := os.Stat(pidPath); err != nil {
		t.Fatalf("pid file should remain after refusal: %v", err)
	}
}

func TestForceKillWithoutPID(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "logsite.pid")
	if _, err := daemonctl.ForceKillProcess(pidPath, "", 0, time.Millisecond); err == nil {
		t.Fatal("expected error when no pid is known")
	}
}

func TestStopWhenNotRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, err := daemonctl.StopAndTerminate(context.Background(), cfg.SocketPath(), cfg, time.Millisecond)
	if !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
	running, pid, err := daemonctl.ProcessInfo(context.Background(), cfg.SocketPath())
	if err != nil || running || pid != 0 {
		t.Fatalf("ProcessInfo = %v, %d, %v", running, pid, err)
	}
}

func TestOfflineStatusCountsSites(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.SaveSite(t, store, sites.SiteConfig{Name: "edge", Address: "edge.example"})
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	status, err := daemonctl.BuildStatusSnapshot(context.Background(), cfg.SocketPath(), cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if status.Running || status.Sites != 1 || status.DBPath != cfg.SiteDBPath() {
		t.Fatalf("unexpected offline status %+v", status)
	}
}
