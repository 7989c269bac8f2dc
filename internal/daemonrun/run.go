package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"portmsg/internal/config"
	"portmsg/internal/daemon"
	"portmsg/internal/logging"
	"portmsg/internal/metrics"
	"portmsg/internal/preflight"
	"portmsg/internal/transport"
)

// LogFile names the rotating daemon log inside the configured log directory.
const LogFile = "portmsgd.log"

const shutdownTimeout = 5 * time.Second

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the portmsg daemon and blocks until the context is canceled,
// SIGINT or SIGTERM arrives, or the receive loop exits on its own.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	logger, err := newLogger(cfg, opts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	ctx := logging.WithService(signalCtx, cfg.Service.Name)
	logger = logging.WithContext(ctx, logger)

	if err := runPreflight(ctx, logger, cfg); err != nil {
		return err
	}

	kernel, resolved, err := transport.Open(cfg.Service.Transport, transport.Options{RuntimeDir: cfg.Paths.RuntimeDir})
	if err != nil {
		return fmt.Errorf("open transport: %w", err)
	}
	logConfigSnapshot(logger, cfg, resolved)

	m := metrics.New()
	d, err := daemon.New(cfg, kernel, resolved, logger, m)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.Hint("stop the other instance or pick another service name"),
		)
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	if cfg.Metrics.Addr != "" {
		serveMetrics(groupCtx, group, logger, cfg.Metrics.Addr, m)
	}
	group.Go(func() error {
		select {
		case <-groupCtx.Done():
			return nil
		case <-d.Done():
			return errors.New("receive loop exited unexpectedly")
		}
	})

	err = group.Wait()
	logger.Info("portmsg daemon shutting down", logging.Uint64("handled", d.Status().Handled))
	return err
}

func newLogger(cfg *config.Config, opts Options) (*slog.Logger, error) {
	level := cfg.Logging.Level
	if strings.TrimSpace(opts.LogLevel) != "" {
		level = opts.LogLevel
	}
	outputs := []string{"stderr"}
	if cfg.Logging.Dir != "" {
		outputs = append(outputs, filepath.Join(cfg.Logging.Dir, LogFile))
	}
	return logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputs,
		Development: opts.Development,
		MaxSizeMB:   cfg.Logging.MaxSizeMB,
		MaxBackups:  cfg.Logging.MaxBackups,
	})
}

func runPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	results := preflight.RunAll(ctx, cfg)
	for _, result := range results {
		logger.Debug("preflight check",
			logging.String("check", result.Name),
			logging.Bool("passed", result.Passed),
			logging.String("detail", result.Detail))
	}
	failed := preflight.Failed(results)
	if len(failed) == 0 {
		return nil
	}
	details := make([]string, 0, len(failed))
	for _, result := range failed {
		details = append(details, result.Name+": "+result.Detail)
	}
	logging.ErrorWithContext(logger, "preflight failed", "preflight_failed",
		logging.Int("failed", len(failed)),
		logging.Impact("daemon not started"),
		logging.Hint("run portmsg status for details"))
	return fmt.Errorf("preflight failed: %s", strings.Join(details, "; "))
}

// serveMetrics runs the prometheus listener inside group until ctx ends.
func serveMetrics(ctx context.Context, group *errgroup.Group, logger *slog.Logger, addr string, m *metrics.Metrics) {
	server := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	group.Go(func() error {
		logger.Info("metrics listener started", logging.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics listener: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics listener shutdown failed",
				logging.Error(err),
				logging.Event("metrics_shutdown_failed"),
				logging.Impact("in-flight scrapes were cut off"),
				logging.Hint("none needed unless it repeats"))
		}
		return nil
	})
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config, resolved string) {
	logger.Info("config snapshot",
		logging.Event("config_snapshot"),
		logging.Transport(resolved),
		logging.String("transport_configured", cfg.Service.Transport),
		logging.Duration("reply_timeout", cfg.ReplyTimeout()),
		logging.String("runtime_dir", cfg.Paths.RuntimeDir),
		logging.String("state_dir", cfg.Paths.StateDir),
		logging.Bool("metrics_enabled", cfg.Metrics.Addr != ""),
		logging.String("available_transports", strings.Join(transport.Available(), ",")),
	)
}
