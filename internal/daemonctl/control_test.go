//go:build unix

package daemonctl_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"portmsg/internal/daemon"
	"portmsg/internal/daemonctl"
	"portmsg/internal/ipc"
	"portmsg/internal/port"
	"portmsg/internal/registry"
	"portmsg/internal/testsupport"
)

type fakeRequester struct {
	reply string
	ok    bool
	calls *atomic.Int32
}

func (f fakeRequester) Send(context.Context, string) (string, bool) {
	if f.calls != nil {
		f.calls.Add(1)
	}
	return f.reply, f.ok
}

func connectTo(r daemonctl.Requester) daemonctl.Connector {
	return func() (daemonctl.Requester, error) { return r, nil }
}

func TestParseInfo(t *testing.T) {
	info := daemonctl.ParseInfo("service\nio.portmsg.daemon\npid\n4242\nhandled\n7\nuptime\n3s\ntransport\nunix\nextra\nignored")
	if info.Service != "io.portmsg.daemon" || info.PID != 4242 || info.Handled != 7 {
		t.Fatalf("unexpected info %+v", info)
	}
	if info.Uptime != "3s" || info.Transport != "unix" {
		t.Fatalf("unexpected info %+v", info)
	}

	if bad := daemonctl.ParseInfo("pid\nnot-a-number"); bad.PID != 0 {
		t.Fatalf("expected zero pid, got %d", bad.PID)
	}
}

func TestProbeAgainstDaemon(t *testing.T) {
	kernel := port.NewMemory()
	cfg := testsupport.NewConfig(t)
	d, err := daemon.New(cfg, kernel, "memory", nil, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	connect := func() (daemonctl.Requester, error) {
		endpoint := registry.NewEndpoint(kernel, cfg.Service.Name, nil)
		return ipc.NewClient(kernel, endpoint, ipc.WithTimeout(time.Second)), nil
	}

	info, err := daemonctl.Probe(context.Background(), connect)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if info.PID != os.Getpid() || info.Service != cfg.Service.Name || info.Transport != "memory" {
		t.Fatalf("unexpected info %+v", info)
	}

	// Stopping our own process must be refused.
	if _, err := daemonctl.StopAndTerminate(context.Background(), connect, cfg, time.Second); err == nil {
		t.Fatal("expected refusal to signal the current process")
	}

	d.Stop()
	if err := daemonctl.WaitForShutdown(context.Background(), connect, time.Second); err != nil {
		t.Fatalf("WaitForShutdown: %v", err)
	}
	if _, err := daemonctl.Probe(context.Background(), connect); !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestEnsureStartedWhenAlreadyRunning(t *testing.T) {
	var calls atomic.Int32
	connect := connectTo(fakeRequester{reply: "pid\n99", ok: true, calls: &calls})

	result, err := daemonctl.EnsureStarted(context.Background(), connect, "/nonexistent/portmsg", daemonctl.LaunchOptions{}, time.Second)
	if err != nil {
		t.Fatalf("EnsureStarted: %v", err)
	}
	if result.State != daemonctl.StartStateAlreadyRunning || result.PID != 99 {
		t.Fatalf("unexpected result %+v", result)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one probe, got %d", calls.Load())
	}
}

func TestWaitForReadyTimesOut(t *testing.T) {
	connect := connectTo(fakeRequester{})
	start := time.Now()
	if _, err := daemonctl.WaitForReady(context.Background(), connect, 250*time.Millisecond); err == nil {
		t.Fatal("expected timeout")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("WaitForReady took %s", elapsed)
	}
}

func TestStopWhenNotRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, err := daemonctl.StopAndTerminate(context.Background(), connectTo(fakeRequester{}), cfg, time.Second)
	if !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestForceKillProcess(t *testing.T) {
	sleeper := exec.Command("sleep", "30")
	if err := sleeper.Start(); err != nil {
		t.Skipf("sleep unavailable: %v", err)
	}
	waited := make(chan error, 1)
	go func() { waited <- sleeper.Wait() }()

	dir := t.TempDir()
	pidPath := filepath.Join(dir, "portmsgd.pid")
	lockPath := filepath.Join(dir, "portmsgd.lock")
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(sleeper.Process.Pid)+"\n"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if err := os.WriteFile(lockPath, nil, 0o644); err != nil {
		t.Fatalf("write lock: %v", err)
	}

	pid, err := daemonctl.ForceKillProcess(pidPath, lockPath, 0)
	if err != nil {
		t.Fatalf("ForceKillProcess: %v", err)
	}
	if pid != sleeper.Process.Pid {
		t.Fatalf("pid = %d, want %d", pid, sleeper.Process.Pid)
	}
	select {
	case <-waited:
	case <-time.After(5 * time.Second):
		t.Fatal("process still running after kill")
	}
	for _, path := range []string{pidPath, lockPath} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Fatalf("expected %s removed, stat err = %v", path, err)
		}
	}
}

func TestForceKillRefusesCurrentProcess(t *testing.T) {
	dir := t.TempDir()
	if _, err := daemonctl.ForceKillProcess(filepath.Join(dir, "none.pid"), "", os.Getpid()); err == nil {
		t.Fatal("expected refusal to kill current process")
	}
}
