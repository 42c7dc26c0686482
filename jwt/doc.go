// Package jwt is the token codec. It signs and verifies compact HMAC JWS
// tokens carrying the access and refresh claim sets.
//
// The token kind travels in the JOSE "typ" header ("at+jwt" or "rt+jwt") so
// the claim names stay exactly user_id, issued_at, expires_at, roles and
// session_id. A refresh token never decodes as an access token.
//
// Registered-claim validation in the underlying library is switched off.
// Expiry is checked by the Codec against its own clock, in whole UTC
// seconds, so it can be tested at the boundary.
package jwt
