// Package session is the Redis-backed session whitelist that makes refresh
// tokens single use.
//
// # Key namespace
//
//	<prefix>:s:<userID>:<sessionID>   session record, value = creation time (unix ms)
//	<prefix>:u:<userID>               set of session ids for the user
//
// The prefix defaults to [DefaultPrefix]. Operators inspecting Redis should
// treat the presence of a session key as "refresh token still redeemable".
//
// # TTL units
//
// [Store.Register] takes a time.Duration and writes it with SET ... PX, so
// the effective resolution is one millisecond. Sub-millisecond TTLs are
// rejected with [ErrInvalidTTL]. The user index set is extended to the
// longest TTL registered for that user. Expiry is left to Redis; nothing in
// this package sweeps keys.
//
// # Atomicity
//
// Register, Consume and RevokeAll run as single Lua scripts. Consume is a
// check-and-delete: of N concurrent calls for the same pair, at most one
// returns true.
//
// # Failures
//
// Every call runs under the store's operation timeout. Any Redis error,
// timeout included, is returned wrapped in [ErrStoreUnavailable] and must
// not be read as "session absent".
//
// # What this package must NOT do
//
//   - Import the root package, jwt or permission.
//   - Store token values. Only opaque session ids are written.
package session
