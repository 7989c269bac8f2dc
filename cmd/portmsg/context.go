package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"portmsg/internal/config"
	"portmsg/internal/daemonctl"
	"portmsg/internal/ipc"
	"portmsg/internal/logging"
	"portmsg/internal/port"
	"portmsg/internal/registry"
	"portmsg/internal/transport"
)

// cliLogLevel keeps exchange diagnostics off the terminal unless requested.
const cliLogLevel = "warn"

type globalFlags struct {
	config    string
	service   string
	transport string
	logLevel  string
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	kernelOnce   sync.Once
	kernel       port.Kernel
	transport    string
	clientLogger *slog.Logger
	kernelErr    error

	clientOnce sync.Once
	client     *ipc.Client
	clientErr  error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

// ensureConfig loads the config once and applies flag overrides on top of
// the file and environment.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, _, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = err
			return
		}
		if service := strings.TrimSpace(c.flags.service); service != "" {
			cfg.Service.Name = service
		}
		if name := strings.TrimSpace(c.flags.transport); name != "" {
			cfg.Service.Transport = strings.ToLower(name)
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

func (c *commandContext) logger(cfg *config.Config) (*slog.Logger, error) {
	level := cliLogLevel
	if strings.TrimSpace(c.flags.logLevel) != "" {
		level = c.flags.logLevel
	}
	format := "auto"
	if cfg != nil {
		format = cfg.Logging.Format
	}
	return logging.New(logging.Options{Level: level, Format: format})
}

// commandCtx tags the command context with the target service for logging.
func (c *commandContext) commandCtx(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if c.config != nil {
		ctx = logging.WithService(ctx, c.config.Service.Name)
	}
	return ctx
}

// ipcClient returns the client shared by one-shot commands. The endpoint is
// resolved lazily on first send.
func (c *commandContext) ipcClient() (*ipc.Client, error) {
	c.clientOnce.Do(func() {
		c.client, c.clientErr = c.newIPCClient()
	})
	return c.client, c.clientErr
}

// newIPCClient builds a client with its own endpoint cache on the shared
// kernel.
func (c *commandContext) newIPCClient() (*ipc.Client, error) {
	c.kernelOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.kernelErr = err
			return
		}
		logger, err := c.logger(cfg)
		if err != nil {
			c.kernelErr = err
			return
		}
		kernel, resolved, err := transport.Open(cfg.Service.Transport, transport.Options{RuntimeDir: cfg.Paths.RuntimeDir})
		if err != nil {
			c.kernelErr = fmt.Errorf("open transport: %w", err)
			return
		}
		c.kernel, c.transport, c.clientLogger = kernel, resolved, logger
	})
	if c.kernelErr != nil {
		return nil, c.kernelErr
	}
	endpoint := registry.NewEndpoint(c.kernel, c.config.Service.Name, c.clientLogger)
	return ipc.NewClient(c.kernel, endpoint,
		ipc.WithLogger(c.clientLogger),
		ipc.WithTimeout(c.config.ReplyTimeout())), nil
}

// connector hands daemonctl a fresh client per probe.
func (c *commandContext) connector() daemonctl.Connector {
	return func() (daemonctl.Requester, error) {
		return c.newIPCClient()
	}
}

// exchange sends args to the service. A single argument is treated as a
// command line and split with quote handling; several arguments are sent as
// tokens.
func (c *commandContext) exchange(cmd *cobra.Command, args []string) (string, bool, error) {
	client, err := c.ipcClient()
	if err != nil {
		return "", false, err
	}
	ctx := c.commandCtx(cmd)
	if len(args) == 1 {
		reply, ok := client.Send(ctx, args[0])
		return reply, ok, nil
	}
	reply, ok := client.SendTokens(ctx, args...)
	return reply, ok, nil
}

func (c *commandContext) launchOptions() daemonctl.LaunchOptions {
	return daemonctl.LaunchOptions{
		ConfigPath: c.configPath,
		Service:    c.flags.service,
		Transport:  c.flags.transport,
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
