package daemonctl

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"tvrec/internal/ipc"
	"tvrec/internal/testsupport"
)

func TestStopAndTerminateWithoutDaemon(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "missing.sock")
	_, err := StopAndTerminate(socket, nil, 100*time.Millisecond)
	if !errors.Is(err, ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestWaitForShutdownWithoutSocket(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "missing.sock")
	if err := WaitForShutdown(socket, 100*time.Millisecond); err != nil {
		t.Fatalf("WaitForShutdown: %v", err)
	}
}

func TestLaunchRequiresExecutable(t *testing.T) {
	if err := Launch("  ", LaunchOptions{}); err == nil {
		t.Fatal("expected error for empty executable path")
	}
}

func TestForceKillProcessRefusesSelf(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "tvrecd.pid")
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if _, err := ForceKillProcess(pidPath, 0); err == nil {
		t.Fatal("expected refusal to kill current process")
	}
}

func TestForceKillProcessWithoutPID(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "tvrecd.pid")
	if _, err := ForceKillProcess(pidPath, 0); err == nil {
		t.Fatal("expected error when no pid is known")
	}
}

func TestBuildStatusSnapshotOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	socket := filepath.Join(t.TempDir(), "missing.sock")
	snap, err := BuildStatusSnapshot(context.Background(), socket, cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if snap.Daemon != nil {
		t.Fatalf("expected no daemon status, got %+v", snap.Daemon)
	}
	if len(snap.Checks) == 0 {
		t.Fatal("expected local preflight checks")
	}
	if len(snap.Dependencies) == 0 {
		t.Fatal("expected locally resolved dependencies")
	}
}

func TestSeverity(t *testing.T) {
	tests := []struct {
		dep  ipc.DependencyStatus
		want string
	}{
		{ipc.DependencyStatus{Available: true}, "ok"},
		{ipc.DependencyStatus{Optional: true}, "warn"},
		{ipc.DependencyStatus{}, "error"},
	}
	for _, tt := range tests {
		if got := Severity(tt.dep); got != tt.want {
			t.Fatalf("Severity(%+v) = %q, want %q", tt.dep, got, tt.want)
		}
	}
}
