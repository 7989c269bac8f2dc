//go:build unix

package unixport

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"portmsg/internal/port"
	"portmsg/internal/textutil"
)

const bootstrapName port.Name = 1

type entry struct {
	path string
	// conn is set only for receive rights.
	conn *net.UnixConn
	send bool
	// refs counts send rights on a remote endpoint.
	refs  int
	locks []registration
}

type registration struct {
	lock *flock.Flock
	link string
}

// Kernel implements port.Kernel on Unix domain datagram sockets. Names are
// private to one Kernel value.
type Kernel struct {
	portsDir    string
	servicesDir string

	mu     sync.Mutex
	next   port.Name
	names  map[port.Name]*entry
	byPath map[string]port.Name

	outstanding atomic.Int64
}

var _ port.Kernel = (*Kernel)(nil)

// New prepares runtimeDir and returns a kernel rooted there.
func New(runtimeDir string) (*Kernel, error) {
	if runtimeDir == "" {
		return nil, errors.New("unixport: runtime directory is required")
	}
	k := &Kernel{
		portsDir:    filepath.Join(runtimeDir, "ports"),
		servicesDir: filepath.Join(runtimeDir, "services"),
		next:        bootstrapName + 1,
		names:       make(map[port.Name]*entry),
		byPath:      make(map[string]port.Name),
	}
	for _, dir := range []string{k.portsDir, k.servicesDir} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return k, nil
}

// Live returns the number of names currently held.
func (k *Kernel) Live() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.names)
}

// Outstanding returns the number of received messages not yet destroyed.
func (k *Kernel) Outstanding() int64 {
	return k.outstanding.Load()
}

// Allocate implements port.Kernel.
func (k *Kernel) Allocate() (port.Name, error) {
	path := filepath.Join(k.portsDir, uuid.NewString()+".sock")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		return port.Null, fmt.Errorf("listen %s: %w", path, err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	name := k.next
	k.next++
	k.names[name] = &entry{path: path, conn: conn}
	k.byPath[path] = name
	return name, nil
}

// InsertSendRight implements port.Kernel.
func (k *Kernel) InsertSendRight(name port.Name) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.names[name]
	if !ok || e.conn == nil {
		return port.ErrInvalidName
	}
	e.send = true
	return nil
}

// Destroy implements port.Kernel. For a receive right the socket is closed,
// its file removed and every registration naming it released. For a send
// right one reference is dropped.
func (k *Kernel) Destroy(name port.Name) error {
	k.mu.Lock()
	e, ok := k.names[name]
	if !ok {
		k.mu.Unlock()
		return port.ErrInvalidName
	}
	if e.conn == nil {
		e.refs--
		if e.refs <= 0 {
			k.forget(name, e)
		}
		k.mu.Unlock()
		return nil
	}
	k.forget(name, e)
	k.mu.Unlock()

	var errs []error
	for _, reg := range e.locks {
		if err := os.Remove(reg.link); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
		if err := reg.lock.Unlock(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.conn.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := os.Remove(e.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (k *Kernel) forget(name port.Name, e *entry) {
	delete(k.names, name)
	if k.byPath[e.path] == name {
		delete(k.byPath, e.path)
	}
}

// dropSend releases one reference taken by internSend. Names backed by a
// local receive right are left alone.
func (k *Kernel) dropSend(name port.Name) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.names[name]
	if !ok || e.conn != nil {
		return
	}
	e.refs--
	if e.refs <= 0 {
		k.forget(name, e)
	}
}

// internSend returns a name holding a send right on path. Callers hold mu.
func (k *Kernel) internSend(path string) port.Name {
	if name, ok := k.byPath[path]; ok {
		e := k.names[name]
		if e.conn == nil {
			e.refs++
		}
		return name
	}
	name := k.next
	k.next++
	k.names[name] = &entry{path: path, send: true, refs: 1}
	k.byPath[path] = name
	return name
}

// Send implements port.Kernel.
func (k *Kernel) Send(msg port.Message) error {
	if len(msg.Payload) > MaxPayload {
		return fmt.Errorf("%w: %d bytes", port.ErrMessageTooLarge, len(msg.Payload))
	}
	k.mu.Lock()
	dest, ok := k.names[msg.Remote]
	if !ok || !dest.send {
		k.mu.Unlock()
		return port.ErrInvalidDest
	}
	env := envelope{ID: msg.ID, Payload: msg.Payload}
	if msg.Local != port.Null {
		local, ok := k.names[msg.Local]
		if !ok || !local.send {
			k.mu.Unlock()
			return port.ErrInvalidName
		}
		env.Reply = local.path
	}
	path := dest.path
	k.mu.Unlock()

	data, err := marshalEnvelope(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		if isGone(err) {
			return port.ErrInvalidDest
		}
		return fmt.Errorf("dial %s: %w", path, err)
	}
	defer conn.Close()
	if _, err := conn.Write(data); err != nil {
		if isGone(err) {
			return port.ErrInvalidDest
		}
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Receive implements port.Kernel.
func (k *Kernel) Receive(name port.Name, timeout time.Duration) (*port.Received, error) {
	k.mu.Lock()
	e, ok := k.names[name]
	k.mu.Unlock()
	if !ok || e.conn == nil {
		return nil, port.ErrInvalidName
	}

	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := e.conn.SetReadDeadline(deadline); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return nil, port.ErrPortDestroyed
		}
		return nil, err
	}

	buf := make([]byte, maxDatagram)
	n, _, err := e.conn.ReadFromUnix(buf)
	if err != nil {
		switch {
		case errors.Is(err, os.ErrDeadlineExceeded):
			return nil, port.ErrTimedOut
		case errors.Is(err, net.ErrClosed):
			return nil, port.ErrPortDestroyed
		}
		return nil, fmt.Errorf("read %s: %w", e.path, err)
	}
	env, err := unmarshalEnvelope(buf[:n])
	if err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	reply := port.Null
	if env.Reply != "" {
		k.mu.Lock()
		reply = k.internSend(env.Reply)
		k.mu.Unlock()
	}
	k.outstanding.Add(1)
	return port.NewReceived(env.ID, reply, env.Payload, func() {
		k.outstanding.Add(-1)
		if reply != port.Null {
			k.dropSend(reply)
		}
	}), nil
}

// BootstrapPort implements port.Kernel.
func (k *Kernel) BootstrapPort() (port.Name, error) {
	return bootstrapName, nil
}

func (k *Kernel) servicePaths(service string) (link, lock string) {
	base := filepath.Join(k.servicesDir, textutil.EscapeFileName(service))
	return base + ".sock", base + ".lock"
}

// LookUp implements port.Kernel.
func (k *Kernel) LookUp(bootstrap port.Name, service string) (port.Name, error) {
	if bootstrap != bootstrapName {
		return port.Null, port.ErrInvalidName
	}
	if service == "" {
		return port.Null, port.ErrUnknownService
	}
	link, lockPath := k.servicePaths(service)
	target, err := os.Readlink(link)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return port.Null, port.ErrUnknownService
		}
		return port.Null, fmt.Errorf("read %s: %w", link, err)
	}

	probe := flock.New(lockPath)
	acquired, err := probe.TryRLock()
	if err != nil {
		return port.Null, fmt.Errorf("probe %s: %w", lockPath, err)
	}
	if acquired {
		_ = probe.Unlock()
		return port.Null, port.ErrUnknownService
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	return k.internSend(target), nil
}

// Register implements port.Kernel.
func (k *Kernel) Register(bootstrap port.Name, service string, name port.Name) error {
	if bootstrap != bootstrapName || service == "" {
		return port.ErrInvalidName
	}
	k.mu.Lock()
	e, ok := k.names[name]
	k.mu.Unlock()
	if !ok || e.conn == nil || !e.send {
		return port.ErrInvalidName
	}

	link, lockPath := k.servicePaths(service)
	lock := flock.New(lockPath)
	acquired, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock %s: %w", lockPath, err)
	}
	if !acquired {
		return port.ErrNameInUse
	}

	_ = os.Remove(link)
	if err := os.Symlink(e.path, link); err != nil {
		_ = lock.Unlock()
		return fmt.Errorf("publish %s: %w", link, err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if current, ok := k.names[name]; !ok || current != e {
		_ = os.Remove(link)
		_ = lock.Unlock()
		return port.ErrInvalidName
	}
	e.locks = append(e.locks, registration{lock: lock, link: link})
	return nil
}

func isGone(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ENOENT)
}
