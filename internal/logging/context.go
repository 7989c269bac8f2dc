package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent names the emitting component; console output lifts it
	// into the line prefix.
	FieldComponent = "component"
	// FieldEventType is a stable machine-readable name for the event.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to try next.
	FieldErrorHint = "error_hint"
	// FieldImpact states the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldService is the naming-service name a record concerns.
	FieldService = "service"
	// FieldPort is a port name in the caller's namespace.
	FieldPort = "port"
	// FieldExchangeID correlates the records of one request/reply exchange.
	FieldExchangeID = "exchange_id"
	// FieldTransport is the resolved host transport.
	FieldTransport = "transport"
)

type contextKey int

const (
	serviceKey contextKey = iota
	exchangeKey
)

// WithService returns a context carrying the service name for log records.
func WithService(ctx context.Context, service string) context.Context {
	return context.WithValue(ctx, serviceKey, service)
}

// WithExchangeID returns a context carrying an exchange correlation id.
func WithExchangeID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, exchangeKey, id)
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if service, ok := ctx.Value(serviceKey).(string); ok && service != "" {
		fields = append(fields, Service(service))
	}
	if id, ok := ctx.Value(exchangeKey).(string); ok && id != "" {
		fields = append(fields, Exchange(id))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(toArgs(fields)...)
}
