package preflight

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"portmsg/internal/transport"
)

// CheckTransport verifies that the configured transport is compiled into this
// binary and reports what auto resolves to.
func CheckTransport(name string) Result {
	const label = "Transport"

	resolved, err := transport.Resolve(name)
	if err != nil {
		return Result{Name: label, Detail: err.Error()}
	}
	if resolved != strings.ToLower(strings.TrimSpace(name)) {
		return Result{Name: label, Passed: true, Detail: fmt.Sprintf("%s (resolved from %s)", resolved, name)}
	}
	return Result{Name: label, Passed: true, Detail: resolved}
}

// CheckListenAddr verifies that addr can be bound. The listener is closed
// immediately.
func CheckListenAddr(ctx context.Context, name, addr string) Result {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", addr, err)}
	}
	bound := ln.Addr().String()
	_ = ln.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (available)", bound)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}
