package ipc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"portmsg/internal/logging"
	"portmsg/internal/metrics"
	"portmsg/internal/port"
	"portmsg/internal/registry"
	"portmsg/internal/wire"
)

// Client performs request/reply exchanges with one service.
type Client struct {
	kernel   port.Kernel
	endpoint *registry.Endpoint
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewClient returns a client that sends to the service cached by endpoint.
// A nil endpoint is allowed for callers that only use SendRequest.
func NewClient(k port.Kernel, endpoint *registry.Endpoint, opts ...Option) *Client {
	o := options{logger: logging.NewNop(), timeout: DefaultTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return &Client{
		kernel:   k,
		endpoint: endpoint,
		timeout:  o.timeout,
		logger:   logging.NewComponentLogger(o.logger, "ipc-client"),
		metrics:  o.metrics,
	}
}

// Timeout returns the configured reply wait.
func (c *Client) Timeout() time.Duration { return c.timeout }

// Send encodes command and exchanges it with the service. It returns false
// when the service cannot be resolved, does not answer in time, or answers
// without data.
func (c *Client) Send(ctx context.Context, command string) (string, bool) {
	target := port.Null
	if c.endpoint != nil {
		target = c.endpoint.Get()
	}
	return c.SendRequest(ctx, target, wire.Encode(command))
}

// SendTokens is Send for a command that is already split into tokens, such
// as shell arguments. Tokens are sent verbatim without quote processing.
func (c *Client) SendTokens(ctx context.Context, tokens ...string) (string, bool) {
	target := port.Null
	if c.endpoint != nil {
		target = c.endpoint.Get()
	}
	return c.SendRequest(ctx, target, wire.Join(tokens...))
}

// SendRequest sends payload to target once and waits for the reply on a
// fresh endpoint. The wait is the client timeout or the time left before the
// context deadline, whichever is shorter. The reply endpoint and any received
// message are released before returning.
func (c *Client) SendRequest(ctx context.Context, target port.Name, payload []byte) (string, bool) {
	logger := logging.WithContext(ctx, c.logger).With(logging.Exchange(uuid.NewString()))

	if len(payload) == 0 || !target.Valid() {
		logger.Debug("request rejected",
			logging.Int("payload_bytes", len(payload)),
			logging.Port(uint64(target)),
			logging.Event("exchange_rejected"))
		c.metrics.ObserveExchange(metrics.OutcomeRejected, 0)
		return "", false
	}

	wait := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < wait {
			wait = remaining
		}
	}
	if ctx.Err() != nil || wait <= 0 {
		logger.Debug("request canceled before send",
			logging.Event("exchange_canceled"))
		c.metrics.ObserveExchange(metrics.OutcomeCanceled, 0)
		return "", false
	}

	reply, err := port.AllocateReceive(c.kernel)
	if err != nil {
		logger.Debug("reply endpoint allocation failed",
			logging.Error(err),
			logging.Event("exchange_alloc_failed"))
		c.metrics.ObserveExchange(metrics.OutcomeAllocFailed, 0)
		return "", false
	}
	defer func() {
		if err := reply.Release(); err != nil {
			logging.WarnWithContext(logger, "reply endpoint release failed", "exchange_release_failed",
				logging.Error(err),
				logging.Impact("a port name may stay allocated until the process exits"),
				logging.Hint("check the host transport for leaked endpoints"))
		}
	}()

	start := time.Now()
	err = c.kernel.Send(port.Message{
		Remote:  target,
		Local:   reply.Name(),
		ID:      RequestID,
		Payload: payload,
	})
	if err != nil {
		logger.Debug("request send failed",
			logging.Port(uint64(target)),
			logging.Error(err),
			logging.Event("exchange_send_failed"))
		c.metrics.ObserveExchange(metrics.OutcomeSendFailed, time.Since(start))
		return "", false
	}

	msg, err := c.kernel.Receive(reply.Name(), wait)
	elapsed := time.Since(start)
	if err != nil {
		outcome := metrics.OutcomeReceiveFailed
		if errors.Is(err, port.ErrTimedOut) {
			outcome = metrics.OutcomeTimeout
		}
		logger.Debug("no reply",
			logging.Duration("wait", wait),
			logging.Error(err),
			logging.Event("exchange_"+outcome))
		c.metrics.ObserveExchange(outcome, elapsed)
		return "", false
	}
	defer msg.Destroy()

	if !msg.HasPayload() {
		logger.Debug("reply carried no data", logging.Event("exchange_empty"))
		c.metrics.ObserveExchange(metrics.OutcomeEmpty, elapsed)
		return "", false
	}
	text, err := wire.Decode(msg.Payload, 0)
	if err != nil {
		logger.Debug("reply not decodable",
			logging.Error(err),
			logging.Int("payload_bytes", len(msg.Payload)),
			logging.Event("exchange_empty"))
		c.metrics.ObserveExchange(metrics.OutcomeEmpty, elapsed)
		return "", false
	}

	logger.Debug("reply received",
		logging.Duration("elapsed", elapsed),
		logging.Int("payload_bytes", len(msg.Payload)))
	c.metrics.ObserveExchange(metrics.OutcomeReply, elapsed)
	return text, true
}
