//go:build darwin && cgo

package machport

/*
#include <stdlib.h>
#include <string.h>
#include <mach/mach.h>
#include <servers/bootstrap.h>

typedef struct {
	mach_msg_header_t header;
	mach_msg_size_t count;
	mach_msg_ool_descriptor_t desc;
} pm_message;

typedef struct {
	pm_message message;
	mach_msg_trailer_t trailer;
} pm_buffer;

static kern_return_t pm_allocate(mach_port_t *name) {
	return mach_port_allocate(mach_task_self(), MACH_PORT_RIGHT_RECEIVE, name);
}

static kern_return_t pm_insert_send(mach_port_t name) {
	return mach_port_insert_right(mach_task_self(), name, name, MACH_MSG_TYPE_MAKE_SEND);
}

static kern_return_t pm_destroy(mach_port_t name) {
	return mach_port_destroy(mach_task_self(), name);
}

static kern_return_t pm_bootstrap(mach_port_t *bs) {
	return task_get_special_port(mach_task_self(), TASK_BOOTSTRAP_PORT, bs);
}

static kern_return_t pm_look_up(mach_port_t bs, const char *service, mach_port_t *name) {
	return bootstrap_look_up(bs, service, name);
}

#pragma clang diagnostic push
#pragma clang diagnostic ignored "-Wdeprecated-declarations"
static kern_return_t pm_register(mach_port_t bs, const char *service, mach_port_t name) {
	return bootstrap_register(bs, (char *)service, name);
}
#pragma clang diagnostic pop

static mach_msg_return_t pm_send(mach_port_t remote, mach_port_t local, mach_msg_id_t id,
		void *data, mach_msg_size_t size) {
	pm_message msg;
	memset(&msg, 0, sizeof(msg));
	msg.header.msgh_bits = MACH_MSGH_BITS_SET(MACH_MSG_TYPE_COPY_SEND,
		local != MACH_PORT_NULL ? MACH_MSG_TYPE_MAKE_SEND : 0, 0, MACH_MSGH_BITS_COMPLEX);
	msg.header.msgh_size = sizeof(msg);
	msg.header.msgh_remote_port = remote;
	msg.header.msgh_local_port = local;
	msg.header.msgh_voucher_port = MACH_PORT_NULL;
	msg.header.msgh_id = id;
	msg.count = 1;
	msg.desc.address = data;
	msg.desc.size = size;
	msg.desc.deallocate = false;
	msg.desc.copy = MACH_MSG_VIRTUAL_COPY;
	msg.desc.type = MACH_MSG_OOL_DESCRIPTOR;
	return mach_msg(&msg.header, MACH_SEND_MSG, sizeof(msg), 0, MACH_PORT_NULL,
		MACH_MSG_TIMEOUT_NONE, MACH_PORT_NULL);
}

static mach_msg_return_t pm_receive(mach_port_t name, pm_buffer *buf, mach_msg_timeout_t timeout) {
	mach_msg_option_t opts = MACH_RCV_MSG;
	if (timeout > 0) {
		opts |= MACH_RCV_TIMEOUT;
	}
	memset(buf, 0, sizeof(*buf));
	return mach_msg(&buf->message.header, opts, 0, sizeof(*buf), name,
		timeout > 0 ? timeout : MACH_MSG_TIMEOUT_NONE, MACH_PORT_NULL);
}

static int pm_has_ool(pm_buffer *buf) {
	return (buf->message.header.msgh_bits & MACH_MSGH_BITS_COMPLEX) &&
		buf->message.count >= 1 &&
		buf->message.desc.type == MACH_MSG_OOL_DESCRIPTOR &&
		buf->message.desc.address != NULL;
}

static void pm_destroy_message(pm_buffer *buf) {
	mach_msg_destroy(&buf->message.header);
}
*/
import "C"

import (
	"fmt"
	"time"
	"unsafe"

	"portmsg/internal/port"
)

// MaxPayload bounds the out-of-line region copied out of a received message.
const MaxPayload = 1 << 20

// Kernel implements port.Kernel on the calling task's Mach port space.
type Kernel struct{}

var _ port.Kernel = Kernel{}

// New returns the Mach kernel for the current task.
func New() Kernel { return Kernel{} }

func kernError(op string, kr C.kern_return_t) error {
	switch kr {
	case C.KERN_SUCCESS:
		return nil
	case C.KERN_INVALID_NAME, C.KERN_INVALID_RIGHT:
		return port.ErrInvalidName
	case C.BOOTSTRAP_NAME_IN_USE:
		return port.ErrNameInUse
	case C.BOOTSTRAP_UNKNOWN_SERVICE:
		return port.ErrUnknownService
	}
	return &port.KernError{Op: op, Code: int32(kr)}
}

func msgError(op string, mr C.mach_msg_return_t) error {
	switch mr {
	case C.MACH_MSG_SUCCESS:
		return nil
	case C.MACH_RCV_TIMED_OUT:
		return port.ErrTimedOut
	case C.MACH_SEND_INVALID_DEST:
		return port.ErrInvalidDest
	case C.MACH_RCV_INVALID_NAME, C.MACH_SEND_INVALID_REPLY:
		return port.ErrInvalidName
	case C.MACH_RCV_PORT_DIED, C.MACH_RCV_PORT_CHANGED:
		return port.ErrPortDestroyed
	}
	return &port.KernError{Op: op, Code: int32(mr)}
}

// Allocate implements port.Kernel.
func (Kernel) Allocate() (port.Name, error) {
	var name C.mach_port_t
	if err := kernError("mach_port_allocate", C.pm_allocate(&name)); err != nil {
		return port.Null, err
	}
	return port.Name(name), nil
}

// InsertSendRight implements port.Kernel.
func (Kernel) InsertSendRight(name port.Name) error {
	return kernError("mach_port_insert_right", C.pm_insert_send(C.mach_port_t(name)))
}

// Destroy implements port.Kernel.
func (Kernel) Destroy(name port.Name) error {
	return kernError("mach_port_destroy", C.pm_destroy(C.mach_port_t(name)))
}

// Send implements port.Kernel.
func (Kernel) Send(msg port.Message) error {
	if len(msg.Payload) > MaxPayload {
		return fmt.Errorf("%w: %d bytes", port.ErrMessageTooLarge, len(msg.Payload))
	}
	var data unsafe.Pointer
	if len(msg.Payload) > 0 {
		data = C.CBytes(msg.Payload)
		defer C.free(data)
	}
	mr := C.pm_send(C.mach_port_t(msg.Remote), C.mach_port_t(msg.Local),
		C.mach_msg_id_t(msg.ID), data, C.mach_msg_size_t(len(msg.Payload)))
	return msgError("mach_msg send", mr)
}

// Receive implements port.Kernel.
func (Kernel) Receive(name port.Name, timeout time.Duration) (*port.Received, error) {
	buf := (*C.pm_buffer)(C.calloc(1, C.size_t(unsafe.Sizeof(C.pm_buffer{}))))
	if buf == nil {
		return nil, &port.KernError{Op: "calloc", Code: -1}
	}

	var ms C.mach_msg_timeout_t
	if timeout > 0 {
		ms = C.mach_msg_timeout_t((timeout + time.Millisecond - 1) / time.Millisecond)
	}
	if err := msgError("mach_msg receive", C.pm_receive(C.mach_port_t(name), buf, ms)); err != nil {
		C.free(unsafe.Pointer(buf))
		return nil, err
	}

	var payload []byte
	if C.pm_has_ool(buf) != 0 {
		size := int(buf.message.desc.size)
		if size > MaxPayload {
			size = MaxPayload
		}
		payload = C.GoBytes(buf.message.desc.address, C.int(size))
	}
	reply := port.Name(buf.message.header.msgh_remote_port)
	id := int32(buf.message.header.msgh_id)

	return port.NewReceived(id, reply, payload, func() {
		C.pm_destroy_message(buf)
		C.free(unsafe.Pointer(buf))
	}), nil
}

// BootstrapPort implements port.Kernel.
func (Kernel) BootstrapPort() (port.Name, error) {
	var bs C.mach_port_t
	if err := kernError("task_get_special_port", C.pm_bootstrap(&bs)); err != nil {
		return port.Null, err
	}
	return port.Name(bs), nil
}

// LookUp implements port.Kernel.
func (Kernel) LookUp(bootstrap port.Name, service string) (port.Name, error) {
	cs := C.CString(service)
	defer C.free(unsafe.Pointer(cs))
	var name C.mach_port_t
	if err := kernError("bootstrap_look_up", C.pm_look_up(C.mach_port_t(bootstrap), cs, &name)); err != nil {
		return port.Null, err
	}
	return port.Name(name), nil
}

// Register implements port.Kernel.
func (Kernel) Register(bootstrap port.Name, service string, name port.Name) error {
	cs := C.CString(service)
	defer C.free(unsafe.Pointer(cs))
	return kernError("bootstrap_register", C.pm_register(C.mach_port_t(bootstrap), cs, C.mach_port_t(name)))
}
