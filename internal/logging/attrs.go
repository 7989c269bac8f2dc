package logging

import (
	"context"
	"log/slog"
	"time"
)

type Attr = slog.Attr

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Uint64(key string, value uint64) Attr { return slog.Uint64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

// Error records err under "error"; a nil error is logged as "<nil>".
func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// Event tags a record with a stable event_type.
func Event(eventType string) Attr { return slog.String(FieldEventType, eventType) }

// Impact states what the operator loses because of a warning or error.
func Impact(text string) Attr { return slog.String(FieldImpact, text) }

// Hint tells the operator what to try next.
func Hint(text string) Attr { return slog.String(FieldErrorHint, text) }

func Service(name string) Attr { return slog.String(FieldService, name) }

// Port takes the raw port name so this package stays free of the port types.
func Port(name uint64) Attr { return slog.Uint64(FieldPort, name) }

func Exchange(id string) Attr { return slog.String(FieldExchangeID, id) }

func Transport(name string) Attr { return slog.String(FieldTransport, name) }

func toArgs(attrs []Attr) []any {
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return args
}

func NewNop() *slog.Logger {
	return slog.New(NoopHandler{})
}

// NewComponentLogger tags logger with a component; nil yields a no-op base.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

func hasKey(attrs []Attr, key string) bool {
	for _, a := range attrs {
		if a.Key == key {
			return true
		}
	}
	return false
}

// withDefaults fills event_type and error_hint when the caller left them out.
func withDefaults(attrs []Attr, eventType string) []Attr {
	if !hasKey(attrs, FieldEventType) {
		attrs = append(attrs, Event(eventType))
	}
	if !hasKey(attrs, FieldErrorHint) {
		attrs = append(attrs, Hint("check the daemon log for details"))
	}
	return attrs
}

// WarnWithContext logs a warning carrying cause, impact and next step. Missing
// event_type, error_hint or impact fields get defaults.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	attrs = withDefaults(attrs, eventType)
	if !hasKey(attrs, FieldImpact) {
		attrs = append(attrs, Impact("the exchange continued without this step"))
	}
	logger.Warn(msg, toArgs(attrs)...)
}

// ErrorWithContext logs an error with event_type and error_hint defaults.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	logger.Error(msg, toArgs(withDefaults(attrs, eventType))...)
}

// NoopHandler discards all log output.
type NoopHandler struct{}

func (NoopHandler) Enabled(context.Context, slog.Level) bool { return false }

func (NoopHandler) Handle(context.Context, slog.Record) error { return nil }

func (NoopHandler) WithAttrs([]slog.Attr) slog.Handler { return NoopHandler{} }

func (NoopHandler) WithGroup(string) slog.Handler { return NoopHandler{} }
