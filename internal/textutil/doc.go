// Package textutil holds small text helpers shared by the CLI and the host
// transports.
//
// The primary use cases are:
//   - Looking up a value in decoded reply text laid out as alternating
//     KEY and VALUE lines
//   - Escaping service names into filesystem-safe file names
//
// Reply text comes from wire.Decode, which renders each token on its own
// line, so a reply carrying "name", "bar", "pid", "42" decodes to four lines
// that pair up as name=bar and pid=42.
package textutil
