// Package metrics exposes prometheus collectors for request/reply exchanges
// and the receive loop. Collectors live on a private registry so several
// instances can coexist in one process. A nil *Metrics is valid and records
// nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exchange outcomes.
const (
	OutcomeReply         = "reply"
	OutcomeEmpty         = "empty"
	OutcomeTimeout       = "timeout"
	OutcomeRejected      = "rejected"
	OutcomeAllocFailed   = "alloc_failed"
	OutcomeSendFailed    = "send_failed"
	OutcomeReceiveFailed = "receive_failed"
	OutcomeCanceled      = "canceled"
)

// Server message kinds.
const (
	MessageDispatched  = "dispatched"
	MessageSentinel    = "sentinel"
	MessageReplySent   = "reply_sent"
	MessageReplyFailed = "reply_failed"
)

const namespace = "portmsg"

// Metrics holds the collectors.
type Metrics struct {
	registry *prometheus.Registry

	exchanges        *prometheus.CounterVec
	exchangeDuration prometheus.Histogram
	messages         *prometheus.CounterVec
	receiveErrors    prometheus.Counter
	serverState      prometheus.Gauge
}

// New builds the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		exchanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "exchanges_total",
				Help:      "Request/reply exchanges by outcome.",
			},
			[]string{"outcome"},
		),
		exchangeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "exchange_duration_seconds",
				Help:      "Time from send to reply or timeout.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
			},
		),
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "server_messages_total",
				Help:      "Messages processed by the receive loop by kind.",
			},
			[]string{"kind"},
		),
		receiveErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "server_receive_errors_total",
				Help:      "Receive failures observed by the receive loop.",
			},
		),
		serverState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "server_state",
				Help:      "Receive loop state: 0 unregistered, 1 registering, 2 running, 3 stopped.",
			},
		),
	}
	m.registry.MustRegister(
		m.exchanges,
		m.exchangeDuration,
		m.messages,
		m.receiveErrors,
		m.serverState,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveExchange records one finished exchange. A zero duration skips the
// histogram, used for exchanges rejected before anything was sent.
func (m *Metrics) ObserveExchange(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.exchanges.WithLabelValues(outcome).Inc()
	if elapsed > 0 {
		m.exchangeDuration.Observe(elapsed.Seconds())
	}
}

// MessageHandled counts one message processed by the receive loop.
func (m *Metrics) MessageHandled(kind string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(kind).Inc()
}

// ReceiveError counts one receive failure.
func (m *Metrics) ReceiveError() {
	if m == nil {
		return
	}
	m.receiveErrors.Inc()
}

// SetServerState records the receive loop state.
func (m *Metrics) SetServerState(state int) {
	if m == nil {
		return
	}
	m.serverState.Set(float64(state))
}
