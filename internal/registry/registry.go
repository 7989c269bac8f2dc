// Package registry resolves and publishes well-known service names through
// the host naming service, and caches the resolved endpoint for a process.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"portmsg/internal/logging"
	"portmsg/internal/port"
)

// ErrEmptyName reports a resolve or register call without a service name.
var ErrEmptyName = errors.New("registry: empty service name")

// Resolve looks up service and returns a send right on it. Nothing is
// retried.
func Resolve(k port.Kernel, service string) (port.Name, error) {
	if service == "" {
		return port.Null, ErrEmptyName
	}
	bs, err := k.BootstrapPort()
	if err != nil {
		return port.Null, fmt.Errorf("bootstrap port: %w", err)
	}
	name, err := k.LookUp(bs, service)
	if err != nil {
		return port.Null, fmt.Errorf("look up %q: %w", service, err)
	}
	return name, nil
}

// Register publishes a receive endpoint under service.
func Register(k port.Kernel, service string, name port.Name) error {
	if service == "" {
		return ErrEmptyName
	}
	bs, err := k.BootstrapPort()
	if err != nil {
		return fmt.Errorf("bootstrap port: %w", err)
	}
	if err := k.Register(bs, service, name); err != nil {
		return fmt.Errorf("register %q: %w", service, err)
	}
	return nil
}

// Endpoint caches the resolved send right for one service. The first caller
// that finds it empty resolves under the lock; later callers read the stored
// name without locking. A failed resolution leaves the cell empty so the
// next caller tries again. The cached name is never invalidated; a stale
// endpoint surfaces as a failed send.
type Endpoint struct {
	kernel  port.Kernel
	service string
	logger  *slog.Logger

	mu     sync.Mutex
	cached atomic.Uint32
}

// NewEndpoint returns an empty cache for service.
func NewEndpoint(k port.Kernel, service string, logger *slog.Logger) *Endpoint {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Endpoint{kernel: k, service: service, logger: logger}
}

// Service returns the service name this endpoint resolves.
func (e *Endpoint) Service() string { return e.service }

// Get returns the cached send right, resolving it on first use. It returns
// port.Null if resolution fails.
func (e *Endpoint) Get() port.Name {
	if name := port.Name(e.cached.Load()); name.Valid() {
		return name
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if name := port.Name(e.cached.Load()); name.Valid() {
		return name
	}
	name, err := Resolve(e.kernel, e.service)
	if err != nil {
		e.logger.Debug("service resolution failed",
			logging.Service(e.service),
			logging.Error(err),
			logging.Event("service_resolve_failed"))
		return port.Null
	}
	e.cached.Store(uint32(name))
	e.logger.Debug("service resolved",
		logging.Service(e.service),
		logging.Port(uint64(name)))
	return name
}
