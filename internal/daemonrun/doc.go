// Package daemonrun wires the portmsg daemon process together: signal
// handling, logging, preflight checks, transport selection, the daemon itself
// and the optional prometheus listener.
package daemonrun
