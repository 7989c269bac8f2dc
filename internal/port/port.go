package port

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Name is an endpoint name in the caller's namespace. The zero value is the
// null name and never refers to a live endpoint.
type Name uint32

// Null is the null endpoint name.
const Null Name = 0

// Valid reports whether n can refer to an endpoint.
func (n Name) Valid() bool { return n != Null }

var (
	// ErrTimedOut reports that a bounded receive expired with no message.
	ErrTimedOut = errors.New("port: receive timed out")
	// ErrInvalidName reports a name that holds no usable right.
	ErrInvalidName = errors.New("port: invalid name")
	// ErrInvalidDest reports a send to an endpoint that no longer exists.
	ErrInvalidDest = errors.New("port: invalid destination")
	// ErrNameInUse reports a naming service registration for a taken name.
	ErrNameInUse = errors.New("port: service name already registered")
	// ErrUnknownService reports a naming service lookup for an unknown name.
	ErrUnknownService = errors.New("port: unknown service")
	// ErrPortDestroyed reports a receive on an endpoint destroyed while waiting.
	ErrPortDestroyed = errors.New("port: endpoint destroyed")
	// ErrMessageTooLarge reports an attachment larger than the host allows.
	ErrMessageTooLarge = errors.New("port: message too large")
)

// KernError carries a raw host return code that has no portable meaning.
type KernError struct {
	Op   string
	Code int32
}

func (e *KernError) Error() string {
	return fmt.Sprintf("port: %s failed: kern return %#x", e.Op, e.Code)
}

// Message is one outbound message. Payload is an out-of-line attachment: the
// host copies it during Send, so the caller's slice only needs to stay valid
// for the duration of the call.
type Message struct {
	// Remote is the destination; the sender must hold a send right on it.
	Remote Name
	// Local is an optional reply endpoint owned by the sender. The receiver
	// gets a send right to it.
	Local Name
	// ID is an application-defined message identifier.
	ID int32
	// Payload is attached out of line.
	Payload []byte
}

// Received is one inbound message. Payload is a bounded copy captured at
// receive time and stays valid until Destroy.
type Received struct {
	ID int32
	// Reply is the send right carried by the message, or Null.
	Reply   Name
	Payload []byte

	once    sync.Once
	destroy func()
}

// NewReceived wraps an inbound message. destroy releases whatever the host
// attached to the message (memory regions, carried rights) and runs at most
// once.
func NewReceived(id int32, reply Name, payload []byte, destroy func()) *Received {
	return &Received{ID: id, Reply: reply, Payload: payload, destroy: destroy}
}

// HasPayload reports whether the message carried a non-empty attachment.
func (r *Received) HasPayload() bool {
	return r != nil && len(r.Payload) > 0
}

// Destroy releases resources attached to the message. Safe to call more than
// once and on nil.
func (r *Received) Destroy() {
	if r == nil {
		return
	}
	r.once.Do(func() {
		if r.destroy != nil {
			r.destroy()
		}
		r.Payload = nil
		r.Reply = Null
	})
}

// Kernel is the host message-channel facility.
type Kernel interface {
	// Allocate creates an endpoint and returns a receive right on it.
	Allocate() (Name, error)
	// InsertSendRight grants the caller a send right on an endpoint it
	// holds the receive right for.
	InsertSendRight(name Name) error
	// Destroy releases every right the caller holds on name.
	Destroy(name Name) error
	// Send delivers msg once. It may block while the destination queue is
	// full.
	Send(msg Message) error
	// Receive waits for the next message on name. A timeout <= 0 waits
	// without bound; otherwise ErrTimedOut is returned on expiry.
	Receive(name Name, timeout time.Duration) (*Received, error)
	// BootstrapPort returns the caller's naming service endpoint.
	BootstrapPort() (Name, error)
	// LookUp resolves a service name to a send right.
	LookUp(bootstrap Name, service string) (Name, error)
	// Register publishes a receive endpoint under a service name.
	Register(bootstrap Name, service string, name Name) error
}
