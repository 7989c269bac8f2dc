// Package logging assembles structured slog loggers and formatting helpers used
// across portmsg.
//
// It owns the console and JSON handlers, level and output plumbing (including
// rotating log files), and context helpers that tag log lines with the service
// name and exchange id. The package also provides a no-op logger for tests and
// wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits records with the same shape.
package logging
