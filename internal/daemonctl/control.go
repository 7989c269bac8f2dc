package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"portmsg/internal/config"
	"portmsg/internal/textutil"
)

const pollInterval = 100 * time.Millisecond

// ErrDaemonNotRunning indicates the service did not answer a status request.
var ErrDaemonNotRunning = errors.New("daemon not running")

// Requester sends one command and waits for the reply.
type Requester interface {
	Send(ctx context.Context, command string) (string, bool)
}

// Connector returns a requester with a fresh endpoint cache. Polling across
// a restart needs one per probe because a cached endpoint is never
// invalidated.
type Connector func() (Requester, error)

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	Service    string
	Transport  string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State StartState
	PID   int
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	Signaled   bool
	ForcedKill bool
	PID        int
}

// RestartResult captures stop/start outcomes for daemon restart.
type RestartResult struct {
	WasRunning bool
	Stop       StopResult
	Start      StartResult
}

// Info is the parsed reply to a --status command.
type Info struct {
	Service   string
	PID       int
	Session   string
	Handled   uint64
	Uptime    string
	Transport string
}

// Launch starts a detached portmsg daemon process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"serve"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if service := strings.TrimSpace(opts.Service); service != "" {
		args = append(args, "--service", service)
	}
	if transport := strings.TrimSpace(opts.Transport); transport != "" {
		args = append(args, "--transport", transport)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// Probe asks the service for its status. It returns ErrDaemonNotRunning when
// nothing answers.
func Probe(ctx context.Context, connect Connector) (Info, error) {
	requester, err := connect()
	if err != nil {
		return Info{}, err
	}
	reply, ok := requester.Send(ctx, "--status")
	if !ok {
		return Info{}, ErrDaemonNotRunning
	}
	return ParseInfo(reply), nil
}

// ParseInfo reads the KEY/VALUE lines of a status reply. Unknown keys are
// ignored and malformed numbers are left at zero.
func ParseInfo(reply string) Info {
	var info Info
	for _, pair := range textutil.Pairs(reply) {
		switch pair.Key {
		case "service":
			info.Service = pair.Value
		case "pid":
			info.PID, _ = strconv.Atoi(pair.Value)
		case "session":
			info.Session = pair.Value
		case "handled":
			info.Handled, _ = strconv.ParseUint(pair.Value, 10, 64)
		case "uptime":
			info.Uptime = pair.Value
		case "transport":
			info.Transport = pair.Value
		}
	}
	return info
}

// WaitForReady polls until the service answers a status request.
func WaitForReady(ctx context.Context, connect Connector, timeout time.Duration) (Info, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		info, err := Probe(ctx, connect)
		if err == nil {
			return info, nil
		}
		lastErr = err
		if err := sleep(ctx, pollInterval); err != nil {
			return Info{}, err
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return Info{}, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// WaitForShutdown polls until the service stops answering.
func WaitForShutdown(ctx context.Context, connect Connector, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := Probe(ctx, connect); errors.Is(err, ErrDaemonNotRunning) {
			return nil
		}
		if err := sleep(ctx, pollInterval); err != nil {
			return err
		}
	}
	return fmt.Errorf("daemon did not stop within %s", timeout)
}

// EnsureStarted launches the daemon unless it already answers.
func EnsureStarted(ctx context.Context, connect Connector, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	info, err := Probe(ctx, connect)
	if err == nil {
		return StartResult{State: StartStateAlreadyRunning, PID: info.PID}, nil
	}
	if !errors.Is(err, ErrDaemonNotRunning) {
		return StartResult{}, err
	}
	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	info, err = WaitForReady(ctx, connect, waitTimeout)
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{State: StartStateStarted, PID: info.PID}, nil
}

// StopAndTerminate sends SIGTERM to the daemon and force-kills it if it
// still answers after gracePeriod.
func StopAndTerminate(ctx context.Context, connect Connector, cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	info, err := Probe(ctx, connect)
	if err != nil {
		return StopResult{}, err
	}
	pid := info.PID
	if pid <= 0 {
		pid = readPID(cfg.DaemonPIDPath())
	}
	if pid <= 0 {
		return StopResult{}, fmt.Errorf("unable to determine daemon pid (pid file: %s)", cfg.DaemonPIDPath())
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return StopResult{}, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return StopResult{}, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	result := StopResult{Signaled: true, PID: pid}

	if err := WaitForShutdown(ctx, connect, gracePeriod); err == nil {
		return result, nil
	}
	killedPID, killErr := ForceKillProcess(cfg.DaemonPIDPath(), cfg.DaemonLockPath(), pid)
	if killErr != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", killErr)
	}
	result.ForcedKill = true
	result.PID = killedPID
	return result, nil
}

// Restart stops the daemon if running, then ensures it is started.
func Restart(ctx context.Context, connect Connector, cfg *config.Config, executablePath string, opts LaunchOptions, stopGracePeriod, startWaitTimeout time.Duration) (RestartResult, error) {
	stopResult, stopErr := StopAndTerminate(ctx, connect, cfg, stopGracePeriod)
	if stopErr != nil && !errors.Is(stopErr, ErrDaemonNotRunning) {
		return RestartResult{}, stopErr
	}

	startResult, err := EnsureStarted(ctx, connect, executablePath, opts, startWaitTimeout)
	if err != nil {
		return RestartResult{}, err
	}

	return RestartResult{
		WasRunning: stopErr == nil,
		Stop:       stopResult,
		Start:      startResult,
	}, nil
}

// ForceKillProcess sends SIGKILL to the daemon process and cleans pid/lock files.
func ForceKillProcess(pidPath, lockPath string, fallbackPID int) (int, error) {
	pid := fallbackPID
	if parsed := readPID(pidPath); parsed > 0 {
		pid = parsed
	}
	if pid <= 0 {
		return 0, fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidPath)
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Kill(); err != nil {
		return 0, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	if lockPath != "" {
		_ = os.Remove(lockPath)
	}
	return pid, nil
}

func readPID(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0
	}
	return pid
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
