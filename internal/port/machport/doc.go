// Package machport hosts port endpoints on Mach ports through cgo.
//
// Messages are complex Mach messages with exactly one out-of-line descriptor
// using virtual copy, so the sender's buffer only has to outlive mach_msg.
// The received region is copied into Go memory before the message is
// destroyed. Only built on darwin with cgo enabled.
package machport
