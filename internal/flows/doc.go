// Package flows contains the orchestrators behind every Engine operation:
// issue, refresh rotation, authenticate, login and logout.
//
// Each Run function takes a dependency struct of funcs and narrow
// interfaces and returns a tagged result whose Failure kind the root
// package maps onto its sentinel errors. Flows never see HTTP, SQL or Redis
// types directly.
//
// # Architecture boundaries
//
// Flows coordinate the codec, session store and user collaborator. They do
// NOT own any of these resources; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import the root package (import cycle).
//   - Perform I/O other than through its dependency structs.
package flows
