package testsupport

import (
	"path/filepath"
	"testing"

	"portmsg/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := ShortTempDir(t)
	cfgVal := config.Default()
	cfgVal.Service.Name = "io.portmsg.test." + filepath.Base(base)
	cfgVal.Service.Transport = "unix"
	cfgVal.Paths.RuntimeDir = filepath.Join(base, "run")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Logging.Dir = filepath.Join(base, "logs")
	cfgVal.Logging.Format = "json"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithService sets the service name on the test config.
func WithService(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Service.Name = name
	}
}

// WithTransport overrides the transport on the test config.
func WithTransport(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Service.Transport = name
	}
}

// WithMetricsAddr enables the metrics listener on the test config.
func WithMetricsAddr(addr string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Metrics.Addr = addr
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
