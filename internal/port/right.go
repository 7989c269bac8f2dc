package port

import (
	"fmt"
	"sync/atomic"
)

// Right is a scoped receive right. Allocate it with AllocateReceive and defer
// Release; the endpoint is destroyed exactly once no matter how many times
// Release is called.
type Right struct {
	kernel   Kernel
	name     Name
	released atomic.Bool
}

// AllocateReceive allocates an endpoint and grants the caller a send right on
// it, so the endpoint can be handed to a peer as a reply address or published
// under a service name. If the send right cannot be inserted the endpoint is
// destroyed before returning.
func AllocateReceive(k Kernel) (*Right, error) {
	name, err := k.Allocate()
	if err != nil {
		return nil, fmt.Errorf("allocate receive right: %w", err)
	}
	if err := k.InsertSendRight(name); err != nil {
		_ = k.Destroy(name)
		return nil, fmt.Errorf("insert send right on %d: %w", name, err)
	}
	return &Right{kernel: k, name: name}, nil
}

// Name returns the endpoint name, or Null once released.
func (r *Right) Name() Name {
	if r == nil || r.released.Load() {
		return Null
	}
	return r.name
}

// Release destroys the endpoint. Only the first call reaches the kernel.
func (r *Right) Release() error {
	if r == nil || r.released.Swap(true) {
		return nil
	}
	if err := r.kernel.Destroy(r.name); err != nil {
		return fmt.Errorf("destroy endpoint %d: %w", r.name, err)
	}
	return nil
}
