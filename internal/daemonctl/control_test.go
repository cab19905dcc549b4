package daemonctl_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"natrender/internal/daemon"
	"natrender/internal/daemonctl"
	"natrender/internal/ipc"
	"natrender/internal/logging"
	"natrender/internal/notifications"
	"natrender/internal/project"
	"natrender/internal/render"
	"natrender/internal/testsupport"
)

type instantRenderer struct{}

func (instantRenderer) RenderFrames(context.Context, project.FrameJob, func(render.Progress)) error {
	return nil
}

type silentNotifier struct{}

func (silentNotifier) Publish(context.Context, notifications.Event, notifications.Payload) error {
	return nil
}

func TestStopAndTerminateWithoutDaemon(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "missing.sock")
	if _, err := daemonctl.StopAndTerminate(socket, nil, 100*time.Millisecond); !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
	alive, pid, err := daemonctl.ProcessInfo(socket)
	if err != nil || alive || pid != 0 {
		t.Fatalf("expected no daemon, got alive=%v pid=%d err=%v", alive, pid, err)
	}
}

func TestStopAndTerminateGraceful(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithProject(testsupport.SampleProject))
	store := testsupport.MustOpenStore(t, cfg)
	d, err := daemon.New(cfg, store,
		daemon.WithLogger(logging.NewNop()),
		daemon.WithFrameRenderer(instantRenderer{}),
		daemon.WithNotifier(silentNotifier{}),
	)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	srv, err := ipc.NewServer(ctx, cfg.Paths.SocketPath, d, logging.NewNop())
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	alive, pid, err := daemonctl.ProcessInfo(cfg.Paths.SocketPath)
	if err != nil || !alive || pid != os.Getpid() {
		t.Fatalf("expected running daemon, got alive=%v pid=%d err=%v", alive, pid, err)
	}

	result, err := daemonctl.StopAndTerminate(cfg.Paths.SocketPath, cfg, time.Second)
	if err != nil {
		t.Fatalf("StopAndTerminate: %v", err)
	}
	if !result.StopAcknowledged || result.ForcedKill {
		t.Fatalf("expected graceful stop, got %+v", result)
	}
	if d.Running() {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestForceKillProcess(t *testing.T) {
	sleep, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep binary not available")
	}
	proc := exec.Command(sleep, "30")
	if err := proc.Start(); err != nil {
		t.Fatalf("start sleep: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- proc.Wait() }()

	dir := t.TempDir()
	pidPath := filepath.Join(dir, "natrender.pid")
	lockPath := filepath.Join(dir, "natrender.lock")
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(proc.Process.Pid)+"\n"), 0o644); err != nil {
		t.Fatalf("write pid file: %v", err)
	}
	if err := os.WriteFile(lockPath, nil, 0o644); err != nil {
		t.Fatalf("write lock file: %v", err)
	}

	killed, err := daemonctl.ForceKillProcess(pidPath, lockPath, 0)
	if err != nil {
		t.Fatalf("ForceKillProcess: %v", err)
	}
	if killed != proc.Process.Pid {
		t.Fatalf("expected pid %d, got %d", proc.Process.Pid, killed)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("process survived SIGKILL")
	}
	for _, path := range []string{pidPath, lockPath} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Fatalf("expected %s removed, stat err=%v", path, err)
		}
	}
}

func TestForceKillProcessRefusesSelf(t *testing.T) {
	dir := t.TempDir()
	if _, err := daemonctl.ForceKillProcess(filepath.Join(dir, "missing.pid"), "", 0); err == nil {
		t.Fatal("expected missing pid to fail")
	}
	if _, err := daemonctl.ForceKillProcess(filepath.Join(dir, "missing.pid"), "", os.Getpid()); err == nil {
		t.Fatal("expected refusal to kill the current process")
	}
}
