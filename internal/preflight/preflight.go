package preflight

import (
	"context"

	"portmsg/internal/config"
	"portmsg/internal/transport"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// State directory (always checked)
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))

	// Transport
	transportCheck := CheckTransport(cfg.Service.Transport)
	results = append(results, transportCheck)

	// Runtime directory (unix transport only)
	if resolved, err := transport.Resolve(cfg.Service.Transport); err == nil && resolved == transport.Unix {
		results = append(results, CheckDirectoryAccess("Runtime directory", cfg.Paths.RuntimeDir))
	}

	// Metrics listener
	if cfg.Metrics.Addr != "" {
		results = append(results, CheckListenAddr(ctx, "Metrics listener", cfg.Metrics.Addr))
	}

	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result)
		}
	}
	return failed
}
