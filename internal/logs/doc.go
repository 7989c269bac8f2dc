// Package logs reads the daemon's rotating log file for `portmsg logs`.
//
// Tail returns the last N lines and the offset to continue from; Follow
// polls from an offset and restarts at the top of the file when rotation
// shrinks it. Memory use is bounded by the line limit.
package logs
