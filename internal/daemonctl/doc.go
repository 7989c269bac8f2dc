// Package daemonctl starts, stops and restarts a background portmsg daemon.
//
// Liveness is judged by asking the service for --status; process control
// uses the pid reported there, falling back to the daemon pid file.
package daemonctl
