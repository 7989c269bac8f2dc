// Package ipc runs synchronous request/reply exchanges over port endpoints
// and the receive loop that serves them.
//
// Client sends one encoded command to a well-known service and waits a
// bounded time for the reply on a private endpoint allocated for that
// exchange alone. The endpoint is released on every path, and all failure
// causes collapse into an absent result. Server registers a service name,
// then receives messages on a dedicated goroutine and hands each decoded
// command to a Handler, strictly in arrival order. Close wakes the blocked
// receive with a self-addressed sentinel message.
package ipc
