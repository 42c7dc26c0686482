// Package authcore issues, validates, rotates and revokes paired access and
// refresh tokens for an authenticated user session, and enforces role and
// permission checks against those tokens.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config]
// and value types ([TokenPair], [UserContext], [MetricsSnapshot]). Flow
// orchestration and audit dispatch live under internal/. Token encoding,
// password hashing, the Redis session whitelist and the role registry are
// the jwt, password, session and permission packages.
//
// # Session lifecycle
//
// Login and Issue mint a pair under a fresh session id and register the
// session in Redis for the refresh lifetime. Refresh atomically consumes the
// session and issues a new pair, so a refresh token is redeemable once.
// Logout revokes the session; access tokens are not individually revocable
// and stay valid until they expire.
//
// # Roles
//
// Role names are embedded in both tokens at issue time and carried forward
// unchanged by Refresh. Role-to-permission resolution uses the in-process
// role manager, which can be swapped at runtime with [Engine.SetRoles].
// Role assignment changes take effect at the next login.
//
// # What this package must NOT do
//
//   - Log or audit token values, password hashes or secrets.
//   - Treat a session store failure as an absent session.
//   - Expose the Redis client or internal stores in its public API.
package authcore
