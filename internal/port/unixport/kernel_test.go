//go:build unix

package unixport_test

import (
	"errors"
	"testing"
	"time"

	"portmsg/internal/port"
	"portmsg/internal/port/unixport"
	"portmsg/internal/testsupport"
)

// newKernel uses a short temp path so socket names stay under the sun_path
// limit.
func newKernel(t *testing.T, dir string) *unixport.Kernel {
	t.Helper()
	k, err := unixport.New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return k
}

func runtimeDir(t *testing.T) string {
	t.Helper()
	return testsupport.ShortTempDir(t)
}

func allocate(t *testing.T, k port.Kernel) *port.Right {
	t.Helper()
	right, err := port.AllocateReceive(k)
	if err != nil {
		testsupport.SkipIfSocketsDenied(t, err)
		t.Fatalf("AllocateReceive: %v", err)
	}
	t.Cleanup(func() { _ = right.Release() })
	return right
}

func TestRoundTripAcrossKernels(t *testing.T) {
	dir := runtimeDir(t)
	server := newKernel(t, dir)
	client := newKernel(t, dir)

	listen := allocate(t, server)
	bs, _ := server.BootstrapPort()
	if err := server.Register(bs, "echo", listen.Name()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	cbs, _ := client.BootstrapPort()
	remote, err := client.LookUp(cbs, "echo")
	if err != nil {
		t.Fatalf("LookUp: %v", err)
	}
	reply := allocate(t, client)

	if err := client.Send(port.Message{Remote: remote, Local: reply.Name(), ID: 3, Payload: []byte("ping\x00\x00")}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	msg, err := server.Receive(listen.Name(), time.Second)
	if err != nil {
		t.Fatalf("server Receive: %v", err)
	}
	if msg.ID != 3 || string(msg.Payload) != "ping\x00\x00" || !msg.Reply.Valid() {
		t.Fatalf("unexpected message id=%d payload=%q reply=%d", msg.ID, msg.Payload, msg.Reply)
	}
	if err := server.Send(port.Message{Remote: msg.Reply, Payload: []byte("pong\x00\x00")}); err != nil {
		t.Fatalf("reply Send: %v", err)
	}
	msg.Destroy()
	if server.Outstanding() != 0 {
		t.Fatalf("expected no outstanding messages, got %d", server.Outstanding())
	}
	if server.Live() != 1 {
		t.Fatalf("reply send right should be released with the message, live=%d", server.Live())
	}

	answer, err := client.Receive(reply.Name(), time.Second)
	if err != nil {
		t.Fatalf("client Receive: %v", err)
	}
	defer answer.Destroy()
	if string(answer.Payload) != "pong\x00\x00" {
		t.Fatalf("unexpected reply %q", answer.Payload)
	}
}

func TestReceiveTimeout(t *testing.T) {
	k := newKernel(t, runtimeDir(t))
	right := allocate(t, k)
	_, err := k.Receive(right.Name(), 20*time.Millisecond)
	if !errors.Is(err, port.ErrTimedOut) {
		t.Fatalf("expected ErrTimedOut, got %v", err)
	}
}

func TestReceiveWakesOnDestroy(t *testing.T) {
	k := newKernel(t, runtimeDir(t))
	right := allocate(t, k)
	name := right.Name()

	errCh := make(chan error, 1)
	go func() {
		_, err := k.Receive(name, 0)
		errCh <- err
	}()
	time.Sleep(10 * time.Millisecond)
	_ = right.Release()

	select {
	case err := <-errCh:
		if !errors.Is(err, port.ErrPortDestroyed) {
			t.Fatalf("expected ErrPortDestroyed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("receive did not wake")
	}
}

func TestRegisterNameInUseAcrossKernels(t *testing.T) {
	dir := runtimeDir(t)
	first := newKernel(t, dir)
	second := newKernel(t, dir)

	a := allocate(t, first)
	b := allocate(t, second)
	bs, _ := first.BootstrapPort()
	if err := first.Register(bs, "svc", a.Name()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := second.Register(bs, "svc", b.Name()); !errors.Is(err, port.ErrNameInUse) {
		t.Fatalf("expected ErrNameInUse, got %v", err)
	}

	_ = a.Release()
	if _, err := second.LookUp(bs, "svc"); !errors.Is(err, port.ErrUnknownService) {
		t.Fatalf("expected ErrUnknownService after release, got %v", err)
	}
	if err := second.Register(bs, "svc", b.Name()); err != nil {
		t.Fatalf("Register after release: %v", err)
	}
}

func TestSendToReleasedEndpoint(t *testing.T) {
	dir := runtimeDir(t)
	server := newKernel(t, dir)
	client := newKernel(t, dir)

	listen := allocate(t, server)
	bs, _ := server.BootstrapPort()
	if err := server.Register(bs, "gone", listen.Name()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	remote, err := client.LookUp(bs, "gone")
	if err != nil {
		t.Fatalf("LookUp: %v", err)
	}
	_ = listen.Release()

	err = client.Send(port.Message{Remote: remote, Payload: []byte("x")})
	if !errors.Is(err, port.ErrInvalidDest) {
		t.Fatalf("expected ErrInvalidDest, got %v", err)
	}
}

func TestSendRejectsOversizedPayload(t *testing.T) {
	k := newKernel(t, runtimeDir(t))
	right := allocate(t, k)
	err := k.Send(port.Message{Remote: right.Name(), Payload: make([]byte, unixport.MaxPayload+1)})
	if !errors.Is(err, port.ErrMessageTooLarge) {
		t.Fatalf("expected ErrMessageTooLarge, got %v", err)
	}
}
