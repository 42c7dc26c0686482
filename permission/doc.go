// Package permission holds the in-process role registry: permission names
// mapped to bit positions and roles mapped to permission masks.
//
// A [RoleManager] is built once (usually with [Load] from rows read out of
// the database) and frozen before use. To pick up role changes the caller
// builds a new manager and swaps it in; a frozen manager is never mutated.
//
// Names are unique. Registering a permission or role twice returns
// [ErrDuplicateName]; a role that references an unregistered permission
// returns [ErrUnknownPermission].
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import the root package, jwt, or session.
package permission
