// Package preflight provides readiness checks for the filesystem paths and
// listeners the portmsg daemon depends on.
//
// These checks run in two contexts:
//   - daemonrun calls RunAll before registering the service and refuses to
//     start when a check fails.
//   - The CLI "portmsg status" command renders the same results as a table.
//
// Each check is gated by its config toggle -- the runtime directory is only
// checked for the unix transport and the metrics listener only when enabled.
package preflight
