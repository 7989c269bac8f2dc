// Package unixport hosts port endpoints on Unix domain datagram sockets.
//
// Each receive right is a socket under <runtime_dir>/ports named by a random
// UUID. The naming service lives under <runtime_dir>/services: a registration
// holds an exclusive flock on <service>.lock for the lifetime of the endpoint
// and points <service>.sock at the endpoint socket. A symlink whose lock is not
// held is left over from a crashed process and resolves as unknown.
//
// Datagrams carry a CBOR envelope with the message id, the reply socket path,
// and the payload. Payloads above MaxPayload are rejected before sending.
package unixport
