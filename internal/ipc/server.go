package ipc

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"portmsg/internal/logging"
	"portmsg/internal/metrics"
	"portmsg/internal/port"
	"portmsg/internal/registry"
	"portmsg/internal/wire"
)

// Server owns one registered receive endpoint and the loop that drains it.
type Server struct {
	kernel  port.Kernel
	service string
	handler Handler
	logger  *slog.Logger
	metrics *metrics.Metrics

	state   atomic.Int32
	stop    atomic.Bool
	serving atomic.Bool
	handled atomic.Uint64

	mu        sync.Mutex // guards right across Start, Serve and Close
	right     *port.Right
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewServer prepares a server for service. Nothing is allocated until Start.
func NewServer(k port.Kernel, service string, handler Handler, opts ...Option) (*Server, error) {
	if k == nil {
		return nil, errors.New("ipc server requires kernel")
	}
	if handler == nil {
		return nil, errors.New("ipc server requires handler")
	}
	if service == "" {
		return nil, registry.ErrEmptyName
	}
	o := options{logger: logging.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	s := &Server{
		kernel:  k,
		service: service,
		handler: handler,
		logger: logging.NewComponentLogger(o.logger, "ipc-server").With(
			logging.Service(service)),
		metrics: o.metrics,
		done:    make(chan struct{}),
	}
	s.metrics.SetServerState(int(StateUnregistered))
	return s, nil
}

// State returns the lifecycle state. Safe from any goroutine.
func (s *Server) State() State { return State(s.state.Load()) }

func (s *Server) setState(state State) {
	s.state.Store(int32(state))
	s.metrics.SetServerState(int(state))
}

// Service returns the registered service name.
func (s *Server) Service() string { return s.service }

// Handled returns how many messages reached the handler.
func (s *Server) Handled() uint64 { return s.handled.Load() }

// Done is closed when the receive loop exits.
func (s *Server) Done() <-chan struct{} { return s.done }

// Start allocates the service endpoint and registers it. On any failure the
// endpoint is released and the server is left Stopped; nothing is retried.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.CompareAndSwap(int32(StateUnregistered), int32(StateRegistering)) {
		if s.State() == StateStopped {
			return ErrServerStopped
		}
		return ErrServerStarted
	}
	s.metrics.SetServerState(int(StateRegistering))

	right, err := port.AllocateReceive(s.kernel)
	if err != nil {
		s.setState(StateStopped)
		return fmt.Errorf("allocate service endpoint: %w", err)
	}
	if err := registry.Register(s.kernel, s.service, right.Name()); err != nil {
		_ = right.Release()
		s.setState(StateStopped)
		return err
	}
	s.right = right
	s.setState(StateRunning)
	s.logger.Info("service registered",
		logging.Port(uint64(right.Name())),
		logging.Event("service_registered"))
	return nil
}

// Serve starts the receive loop on its own goroutine. It may be called once,
// after a successful Start.
func (s *Server) Serve() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() != StateRunning {
		if s.State() == StateStopped {
			return ErrServerStopped
		}
		return ErrServerNotRunning
	}
	if !s.serving.CompareAndSwap(false, true) {
		return nil
	}
	go s.loop(s.right.Name())
	return nil
}

// ListenAndServe is Start followed by Serve.
func (s *Server) ListenAndServe() error {
	if err := s.Start(); err != nil {
		return err
	}
	return s.Serve()
}

// loop receives until the sentinel queued by Close arrives, so every message
// queued ahead of it still reaches the handler.
func (s *Server) loop(name port.Name) {
	defer close(s.done)
	for {
		msg, err := s.kernel.Receive(name, 0)
		if err != nil {
			if s.stop.Load() {
				return
			}
			if errors.Is(err, port.ErrPortDestroyed) || errors.Is(err, port.ErrInvalidName) {
				logging.ErrorWithContext(s.logger, "service endpoint lost", "service_endpoint_lost",
					logging.Error(err),
					logging.Impact("the service no longer receives commands"),
					logging.Hint("restart the server"))
				s.setState(StateStopped)
				return
			}
			s.metrics.ReceiveError()
			logging.WarnWithContext(s.logger, "receive failed", "service_receive_failed",
				logging.Error(err),
				logging.Impact("one inbound message may have been dropped"))
			continue
		}
		if msg.ID == SentinelID && s.stop.Load() {
			s.metrics.MessageHandled(metrics.MessageSentinel)
			msg.Destroy()
			return
		}
		s.dispatch(msg)
	}
}

// dispatch runs the handler for one message and releases it afterwards.
func (s *Server) dispatch(msg *port.Received) {
	defer msg.Destroy()
	if msg.ID == SentinelID {
		s.metrics.MessageHandled(metrics.MessageSentinel)
		return
	}

	text := ""
	if msg.HasPayload() {
		decoded, err := wire.Decode(msg.Payload, 0)
		if err != nil {
			s.logger.Debug("payload not decodable",
				logging.Error(err),
				logging.Int("payload_bytes", len(msg.Payload)))
		} else {
			text = decoded
		}
	}

	s.handled.Add(1)
	s.metrics.MessageHandled(metrics.MessageDispatched)
	responder, ok := s.handler.(Responder)
	if !ok {
		s.handler.Handle(text)
		return
	}
	answer, ok := responder.Respond(text)
	if !ok || !msg.Reply.Valid() {
		return
	}
	err := s.kernel.Send(port.Message{
		Remote:  msg.Reply,
		ID:      ReplyID,
		Payload: wire.Join(strings.Split(answer, "\n")...),
	})
	if err != nil {
		s.metrics.MessageHandled(metrics.MessageReplyFailed)
		s.logger.Debug("reply send failed",
			logging.Port(uint64(msg.Reply)),
			logging.Error(err))
		return
	}
	s.metrics.MessageHandled(metrics.MessageReplySent)
}

// Close stops the loop and releases the service endpoint. A loop blocked in
// receive is woken by a sentinel message sent to the server's own endpoint;
// messages queued ahead of the sentinel are still handled, so Close returns
// only after the handler has seen them. Close is safe to call more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.stop.Store(true)
		if s.right != nil && s.serving.Load() {
			err := s.kernel.Send(port.Message{Remote: s.right.Name(), ID: SentinelID})
			if err != nil {
				// The endpoint is unusable; destroying it wakes the loop instead.
				s.logger.Debug("sentinel send failed", logging.Error(err))
				_ = s.right.Release()
			}
			<-s.done
		}
		if err := s.right.Release(); err != nil {
			s.closeErr = err
		}
		s.setState(StateStopped)
		s.logger.Info("service stopped",
			logging.Uint64("handled", s.handled.Load()),
			logging.Event("service_stopped"))
	})
	return s.closeErr
}
