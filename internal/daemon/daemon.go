package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"portmsg/internal/config"
	"portmsg/internal/ipc"
	"portmsg/internal/logging"
	"portmsg/internal/metrics"
	"portmsg/internal/port"
)

// Daemon serves the configured service name and enforces single-instance execution.
type Daemon struct {
	cfg       *config.Config
	kernel    port.Kernel
	transport string
	logger    *slog.Logger
	metrics   *metrics.Metrics

	lockPath string
	lock     *flock.Flock
	pidPath  string
	session  string

	// mu serializes Start and Stop. Status must not take it: Stop waits for
	// the receive loop, which may be answering a status command.
	mu      sync.Mutex
	server  atomic.Pointer[ipc.Server]
	started atomic.Int64
	running atomic.Bool
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Service      string
	Transport    string
	PID          int
	Session      string
	Handled      uint64
	Uptime       time.Duration
	LockFilePath string
	PIDFilePath  string
}

// New constructs a daemon. transport is the resolved name of the host
// kernel, reported in status replies.
func New(cfg *config.Config, kernel port.Kernel, transport string, logger *slog.Logger, m *metrics.Metrics) (*Daemon, error) {
	if cfg == nil || kernel == nil {
		return nil, errors.New("daemon requires config and kernel")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.DaemonLockPath()
	return &Daemon{
		cfg:       cfg,
		kernel:    kernel,
		transport: transport,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		metrics:   m,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
		pidPath:   cfg.DaemonPIDPath(),
		session:   uuid.NewString(),
	}, nil
}

// Start acquires the daemon lock, writes the pid file and registers the
// service. The context only scopes startup; Stop ends the daemon.
func (d *Daemon) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o700); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another portmsgd instance already serves %q", d.cfg.Service.Name)
	}

	server, err := ipc.NewServer(d.kernel, d.cfg.Service.Name, &commandHandler{daemon: d},
		ipc.WithLogger(d.logger), ipc.WithMetrics(d.metrics))
	if err != nil {
		_ = d.lock.Unlock()
		return err
	}
	if err := server.ListenAndServe(); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("serve %q: %w", d.cfg.Service.Name, err)
	}
	if err := writePIDFile(d.pidPath); err != nil {
		logging.WarnWithContext(d.logger, "failed to write pid file", "daemon_pid_write_failed",
			logging.String("pid_file", d.pidPath),
			logging.Error(err),
			logging.Impact("status tools cannot find the daemon pid"),
			logging.Hint("check permissions on the state directory"))
	}

	d.server.Store(server)
	d.started.Store(time.Now().UnixNano())
	d.running.Store(true)
	d.logger.Info("portmsg daemon started",
		logging.Service(d.cfg.Service.Name),
		logging.Transport(d.transport),
		logging.String("session", d.session),
		logging.String("lock", d.lockPath))
	return nil
}

// Stop closes the server and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}
	server := d.server.Load()
	if err := server.Close(); err != nil {
		d.logger.Warn("failed to release service endpoint",
			logging.Error(err),
			logging.Event("daemon_endpoint_release_failed"),
			logging.Impact("a port name may stay allocated until exit"),
			logging.Hint("restart the daemon if the service name stays taken"))
	}
	if err := os.Remove(d.pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		d.logger.Debug("pid file removal failed", logging.Error(err))
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.Error(err),
			logging.Event("daemon_unlock_failed"),
			logging.Impact("next start may report another instance"),
			logging.Hint("remove the lock file if no daemon is running"))
	}
	d.running.Store(false)
	d.logger.Info("portmsg daemon stopped", logging.Uint64("handled", server.Handled()))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Done is closed when the receive loop exits. It is nil before Start.
func (d *Daemon) Done() <-chan struct{} {
	server := d.server.Load()
	if server == nil {
		return nil
	}
	return server.Done()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	status := Status{
		Running:      d.running.Load(),
		Service:      d.cfg.Service.Name,
		Transport:    d.transport,
		PID:          os.Getpid(),
		Session:      d.session,
		LockFilePath: d.lockPath,
		PIDFilePath:  d.pidPath,
	}
	if server := d.server.Load(); server != nil {
		status.Handled = server.Handled()
	}
	if status.Running {
		started := time.Unix(0, d.started.Load())
		status.Uptime = time.Since(started).Truncate(time.Second)
	}
	return status
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
