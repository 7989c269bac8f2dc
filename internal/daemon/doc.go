// Package daemon coordinates the long-running portmsg service process.
//
// It owns the ipc server registered under the configured service name, a
// flock-based lock that keeps one daemon per service, the pid file and the
// built-in command set (--ping, --status, --echo). Command handling runs on
// the server's receive goroutine and must stay fast.
//
// Keep orchestration here: transport selection, logging and metrics wiring
// live in daemonrun.
package daemon
