// Package port models kernel-managed, capability-based message channels.
//
// A Name identifies an endpoint in the caller's namespace. Receive rights are
// exclusive to the process that allocated them and must be destroyed
// explicitly; send rights can be duplicated and handed to peers, either
// through the host naming service (LookUp/Register) or as the reply address
// carried in a message.
//
// Kernel is the narrow set of host primitives the rest of the module builds
// on. Concrete hosts live in subpackages (unixport, machport); Memory is an
// in-process host used by tests and by callers that embed both sides of a
// conversation in one process.
//
// Use Right for every endpoint you allocate. It pairs allocation with exactly
// one release so error paths cannot leak names.
package port
