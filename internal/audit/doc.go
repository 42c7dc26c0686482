// Package audit implements async delivery of security events (logins,
// refresh rotations, replays, logouts).
//
// # Components
//
//   - [Sink]: event consumer. Channel, JSON-lines writer, slog, fan-out and
//     no-op implementations are provided.
//   - [Dispatcher]: buffered relay with drop-if-full or block-if-full
//     semantics and a single worker goroutine.
//   - [Event]: the audit record.
//
// This package does not decide which events to emit; the Engine does.
//
// # What this package must NOT do
//
//   - Import the root package or any sibling internal package.
//   - Record token values, password hashes or secrets.
package audit
