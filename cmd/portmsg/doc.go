// Package main hosts the portmsg CLI entrypoint and command graph.
//
// The Cobra-based command tree turns terminal invocations into request/reply
// exchanges with a named service, runs the daemon in the foreground and
// scaffolds configuration. It centralizes configuration resolution, transport
// selection and logging setup so subcommands only deal with output.
//
// Keep this package lean: add behavior to the internal packages first, then
// surface it here.
package main
