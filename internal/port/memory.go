package port

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultQueueDepth is the number of messages an in-memory endpoint buffers
// before Send blocks.
const DefaultQueueDepth = 5

const memoryBootstrap Name = 1

type envelope struct {
	id      int32
	reply   Name
	payload []byte
}

type memPort struct {
	queue chan envelope
	dead  chan struct{}
	send  bool
}

// Memory is an in-process Kernel. Every caller shares one namespace, so a
// name returned by Allocate is directly usable by a peer in the same process.
// It keeps counters that tests use to prove no endpoint or message is leaked.
type Memory struct {
	mu       sync.Mutex
	next     Name
	depth    int
	ports    map[Name]*memPort
	services map[string]Name

	outstanding atomic.Int64
}

// MemoryOption customizes a Memory kernel.
type MemoryOption func(*Memory)

// WithQueueDepth overrides DefaultQueueDepth.
func WithQueueDepth(depth int) MemoryOption {
	return func(m *Memory) {
		if depth > 0 {
			m.depth = depth
		}
	}
}

// NewMemory returns an empty in-process kernel.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		next:     memoryBootstrap + 1,
		depth:    DefaultQueueDepth,
		ports:    make(map[Name]*memPort),
		services: make(map[string]Name),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Live returns the number of endpoints that have not been destroyed.
func (m *Memory) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ports)
}

// Outstanding returns the number of received messages not yet destroyed.
func (m *Memory) Outstanding() int64 {
	return m.outstanding.Load()
}

// Allocate implements Kernel.
func (m *Memory) Allocate() (Name, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := m.next
	m.next++
	m.ports[name] = &memPort{
		queue: make(chan envelope, m.depth),
		dead:  make(chan struct{}),
	}
	return name, nil
}

// InsertSendRight implements Kernel.
func (m *Memory) InsertSendRight(name Name) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.ports[name]
	if !ok {
		return ErrInvalidName
	}
	p.send = true
	return nil
}

// Destroy implements Kernel. Queued messages are discarded and any service
// registration naming the endpoint disappears with it.
func (m *Memory) Destroy(name Name) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.ports[name]
	if !ok {
		return ErrInvalidName
	}
	delete(m.ports, name)
	close(p.dead)
	for service, registered := range m.services {
		if registered == name {
			delete(m.services, service)
		}
	}
	return nil
}

// Send implements Kernel.
func (m *Memory) Send(msg Message) error {
	m.mu.Lock()
	p, ok := m.ports[msg.Remote]
	if !ok || !p.send {
		m.mu.Unlock()
		return ErrInvalidDest
	}
	if msg.Local != Null {
		if _, ok := m.ports[msg.Local]; !ok {
			m.mu.Unlock()
			return ErrInvalidName
		}
	}
	m.mu.Unlock()

	env := envelope{id: msg.ID, reply: msg.Local}
	if len(msg.Payload) > 0 {
		env.payload = append([]byte(nil), msg.Payload...)
	}
	select {
	case <-p.dead:
		return ErrInvalidDest
	default:
	}
	select {
	case p.queue <- env:
		return nil
	case <-p.dead:
		return ErrInvalidDest
	}
}

// Receive implements Kernel.
func (m *Memory) Receive(name Name, timeout time.Duration) (*Received, error) {
	m.mu.Lock()
	p, ok := m.ports[name]
	m.mu.Unlock()
	if !ok {
		return nil, ErrInvalidName
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case env := <-p.queue:
		m.outstanding.Add(1)
		return NewReceived(env.id, env.reply, env.payload, func() {
			m.outstanding.Add(-1)
		}), nil
	case <-p.dead:
		return nil, ErrPortDestroyed
	case <-expired:
		return nil, ErrTimedOut
	}
}

// BootstrapPort implements Kernel.
func (m *Memory) BootstrapPort() (Name, error) {
	return memoryBootstrap, nil
}

// LookUp implements Kernel.
func (m *Memory) LookUp(bootstrap Name, service string) (Name, error) {
	if bootstrap != memoryBootstrap {
		return Null, ErrInvalidName
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.services[service]
	if !ok {
		return Null, ErrUnknownService
	}
	return name, nil
}

// Register implements Kernel.
func (m *Memory) Register(bootstrap Name, service string, name Name) error {
	if bootstrap != memoryBootstrap || service == "" {
		return ErrInvalidName
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.ports[name]
	if !ok || !p.send {
		return ErrInvalidName
	}
	if _, taken := m.services[service]; taken {
		return ErrNameInUse
	}
	m.services[service] = name
	return nil
}
