package config

import (
	"errors"
	"fmt"
	"net"
	"slices"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateService(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateMetrics()
}

func (c *Config) validateService() error {
	if c.Service.Name == "" {
		return errors.New("service.name must be set (or export PORTMSG_SERVICE)")
	}
	if strings.ContainsRune(c.Service.Name, 0) {
		return errors.New("service.name must not contain NUL bytes")
	}
	if len(c.Service.Name) > 127 {
		return fmt.Errorf("service.name must be at most 127 bytes, got %d", len(c.Service.Name))
	}
	if !slices.Contains(knownTransports, c.Service.Transport) {
		return fmt.Errorf("service.transport must be one of %s, got %q", strings.Join(knownTransports, ", "), c.Service.Transport)
	}
	if c.Service.ReplyTimeoutMS <= 0 {
		return errors.New("service.reply_timeout_ms must be positive")
	}
	if c.Service.ReplyTimeoutMS > 60000 {
		return errors.New("service.reply_timeout_ms must be at most 60000")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format must be auto, console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	if c.Logging.MaxSizeMB < 0 {
		return errors.New("logging.max_size_mb must be zero or positive")
	}
	if c.Logging.MaxBackups < 0 {
		return errors.New("logging.max_backups must be zero or positive")
	}
	return nil
}

func (c *Config) validateMetrics() error {
	if c.Metrics.Addr == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Metrics.Addr); err != nil {
		return fmt.Errorf("metrics.addr: %w", err)
	}
	return nil
}
