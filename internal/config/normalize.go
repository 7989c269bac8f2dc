package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"portmsg/internal/port/unixport"
)

func (c *Config) normalize() error {
	c.normalizeService()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	return c.normalizeLogging()
}

func (c *Config) normalizeService() {
	if value, ok := os.LookupEnv("PORTMSG_SERVICE"); ok && strings.TrimSpace(value) != "" {
		c.Service.Name = value
	}
	if value, ok := os.LookupEnv("PORTMSG_TRANSPORT"); ok && strings.TrimSpace(value) != "" {
		c.Service.Transport = value
	}
	c.Service.Name = strings.TrimSpace(c.Service.Name)
	c.Service.Transport = strings.ToLower(strings.TrimSpace(c.Service.Transport))
	if c.Service.Transport == "" {
		c.Service.Transport = defaultTransport
	}
	if c.Service.ReplyTimeoutMS == 0 {
		c.Service.ReplyTimeoutMS = defaultReplyTimeoutMS
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.RuntimeDir) == "" {
		c.Paths.RuntimeDir = unixport.DefaultRuntimeDir()
	}
	if c.Paths.RuntimeDir, err = expandPath(c.Paths.RuntimeDir); err != nil {
		return fmt.Errorf("paths.runtime_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
		if base, ok := os.LookupEnv("XDG_STATE_HOME"); ok && strings.TrimSpace(base) != "" {
			c.Paths.StateDir = filepath.Join(base, "portmsg")
		}
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if strings.TrimSpace(c.Logging.Dir) == "" {
		c.Logging.Dir = filepath.Join(c.Paths.StateDir, "logs")
	}
	var err error
	if c.Logging.Dir, err = expandPath(c.Logging.Dir); err != nil {
		return fmt.Errorf("logging.dir: %w", err)
	}
	c.Metrics.Addr = strings.TrimSpace(c.Metrics.Addr)
	return nil
}
