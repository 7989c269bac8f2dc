package ipc

import (
	"errors"
	"log/slog"
	"time"

	"portmsg/internal/metrics"
)

// Message identifiers carried in the port header.
const (
	RequestID  int32 = 0x706d7271 // "pmrq"
	ReplyID    int32 = 0x706d7270 // "pmrp"
	SentinelID int32 = 0x706d7374 // "pmst"
)

// DefaultTimeout bounds how long a client waits for a reply.
const DefaultTimeout = 100 * time.Millisecond

var (
	// ErrServerStopped reports use of a server after it stopped.
	ErrServerStopped = errors.New("ipc: server stopped")
	// ErrServerStarted reports a second Start on the same server.
	ErrServerStarted = errors.New("ipc: server already started")
	// ErrServerNotRunning reports Serve before a successful Start.
	ErrServerNotRunning = errors.New("ipc: server not running")
)

// State is the server lifecycle position.
type State int32

const (
	StateUnregistered State = iota
	StateRegistering
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistering:
		return "registering"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Handler receives each decoded command. It runs on the receive goroutine;
// a slow handler delays every later message.
type Handler interface {
	Handle(message string)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(message string)

// Handle calls f.
func (f HandlerFunc) Handle(message string) { f(message) }

// Responder is a Handler that can answer. When the inbound message carries a
// reply address and Respond returns ok, the reply is sent before the message
// is released. Lines of the reply become tokens on the wire.
type Responder interface {
	Handler
	Respond(message string) (reply string, ok bool)
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(message string) (string, bool)

// Handle calls f and drops the reply.
func (f ResponderFunc) Handle(message string) { f(message) }

// Respond calls f.
func (f ResponderFunc) Respond(message string) (string, bool) { return f(message) }

// Option configures a Client or a Server.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	timeout time.Duration
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records exchanges and loop activity on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTimeout overrides DefaultTimeout for clients. Non-positive values are
// ignored because the wait must stay bounded.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}
