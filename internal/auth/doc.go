// Package auth issues and validates operator tokens for the admin API.
//
// Tokens are HS256 JWTs carrying a subject and a role:
//   - viewer: subscribe to the event stream
//   - operator: the event stream, plus probe and remove
//
// Device metadata, statistics and the audit trail are readable without a
// token.
//
// There are no user accounts. An operator with access to the configured
// secret mints tokens with `pseudodevd token <subject>`.
package auth
