// Package password is the credential verifier: salted Argon2id hashing and
// constant-time verification of submitted secrets.
//
// # Output format
//
// Hashes are PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<key>
//
// Salt and key are unpadded base64; padded segments produced by older
// writers are still accepted.
//
// # Failure modes
//
// [Hasher.Verify] never errors on a wrong secret, it returns false. An error
// is returned only when the stored hash cannot be parsed, and it wraps
// [ErrMalformedHash] so callers can tell data corruption apart from a bad
// login.
//
// This package never logs secrets or hashes.
package password
