package daemon_test

import (
	"context"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"portmsg/internal/daemon"
	"portmsg/internal/ipc"
	"portmsg/internal/port"
	"portmsg/internal/registry"
	"portmsg/internal/testsupport"
	"portmsg/internal/textutil"
)

func startDaemon(t *testing.T, kernel port.Kernel) *daemon.Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	d, err := daemon.New(cfg, kernel, "memory", nil, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return d
}

func newClient(kernel port.Kernel, service string) *ipc.Client {
	endpoint := registry.NewEndpoint(kernel, service, nil)
	return ipc.NewClient(kernel, endpoint, ipc.WithTimeout(time.Second))
}

func TestDaemonStartStop(t *testing.T) {
	kernel := port.NewMemory()
	d := startDaemon(t, kernel)

	status := d.Status()
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.PID != os.Getpid() {
		t.Fatalf("pid = %d, want %d", status.PID, os.Getpid())
	}
	data, err := os.ReadFile(status.PIDFilePath)
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	if strings.TrimSpace(string(data)) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("pid file = %q", data)
	}

	// Second start should fail
	if err := d.Start(context.Background()); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status().Running {
		t.Fatal("expected daemon to be stopped")
	}
	if _, err := os.Stat(status.PIDFilePath); !os.IsNotExist(err) {
		t.Fatalf("expected pid file removed, stat err = %v", err)
	}
	if _, err := registry.Resolve(kernel, status.Service); err == nil {
		t.Fatal("expected service registration to be gone")
	}
	if kernel.Live() != 0 {
		t.Fatalf("live ports after stop = %d", kernel.Live())
	}
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	kernel := port.NewMemory()
	cfg := testsupport.NewConfig(t)

	first, err := daemon.New(cfg, kernel, "memory", nil, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	defer first.Close()
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}

	second, err := daemon.New(cfg, kernel, "memory", nil, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	defer second.Close()
	err = second.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "another portmsgd instance") {
		t.Fatalf("expected lock error, got %v", err)
	}

	first.Stop()
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("start after release: %v", err)
	}
}

func TestDaemonStartHonoursCanceledContext(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, err := daemon.New(cfg, port.NewMemory(), "memory", nil, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected start with canceled context to fail")
	}
	if d.Done() != nil {
		t.Fatal("expected no server before a successful start")
	}
}

func TestDaemonBuiltinCommands(t *testing.T) {
	kernel := port.NewMemory()
	d := startDaemon(t, kernel)
	client := newClient(kernel, d.Status().Service)
	ctx := context.Background()

	if reply, ok := client.Send(ctx, "--ping"); !ok || reply != "pong" {
		t.Fatalf("ping = %q, %v", reply, ok)
	}

	reply, ok := client.Send(ctx, `--echo one "two words" three`)
	if !ok {
		t.Fatal("expected echo reply")
	}
	if reply != "one\ntwo words\nthree" {
		t.Fatalf("echo = %q", reply)
	}

	for _, command := range []string{"--status", "--query status"} {
		reply, ok := client.Send(ctx, command)
		if !ok {
			t.Fatalf("%s: expected reply", command)
		}
		if service, _ := textutil.ValueForKey(reply, "service"); service != d.Status().Service {
			t.Fatalf("%s: service = %q", command, service)
		}
		if pid, _ := textutil.ValueForKey(reply, "pid"); pid != strconv.Itoa(os.Getpid()) {
			t.Fatalf("%s: pid = %q", command, pid)
		}
		if transport, _ := textutil.ValueForKey(reply, "transport"); transport != "memory" {
			t.Fatalf("%s: transport = %q", command, transport)
		}
	}
}

func TestDaemonUnknownCommandHasNoReply(t *testing.T) {
	kernel := port.NewMemory()
	d := startDaemon(t, kernel)
	endpoint := registry.NewEndpoint(kernel, d.Status().Service, nil)
	client := ipc.NewClient(kernel, endpoint, ipc.WithTimeout(50*time.Millisecond))

	for _, command := range []string{"--bar", "--query fonts"} {
		if reply, ok := client.Send(context.Background(), command); ok {
			t.Fatalf("%s: unexpected reply %q", command, reply)
		}
	}
	if handled := d.Status().Handled; handled != 2 {
		t.Fatalf("handled = %d, want 2", handled)
	}
}

func TestDaemonStopWhileAnsweringStatus(t *testing.T) {
	kernel := port.NewMemory()
	d := startDaemon(t, kernel)
	client := newClient(kernel, d.Status().Service)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			client.Send(context.Background(), "--status")
		}
	}()
	d.Stop()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("status requests did not finish after stop")
	}
	select {
	case <-d.Done():
	default:
		t.Fatal("expected receive loop to have exited")
	}
}
