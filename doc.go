// Package authgate provides an account-lifecycle and authentication engine:
// registration with email activation, password login with failed-attempt
// lockout, TOTP multi-factor enrollment and verification with single-use
// backup codes, password reset via single-use tokens, and the disabled-state
// and role gating that downstream authorization builds on.
//
// The package is a library, not a service. Engine methods are safe to call
// from multiple goroutines after construction through [Builder.Build]; each
// call is one short-lived unit of work that touches only the injected
// credential [Store], the Redis-backed pre-auth challenge store, and (for
// registration and reset requests) a best-effort [Mailer].
//
// # Architecture boundaries
//
// authgate owns state transitions and security invariants. It exposes
// [Engine], [Builder], [Config], sentinel errors, and value types. It never
// renders a page, never touches a framework session object, and never
// blocks the caller on mail delivery: the boundary layer passes identities
// in, and structured results come back out.
//
// Durable user and token records live behind the [Store] contract
// (a reference implementation over SQLite ships in store/sqlite). The only
// other shared state is the MFA pre-auth challenge, which is kept in Redis
// with a TTL so that the window between password success and code
// verification is single-use and attempt-capped.
//
// # What this package must NOT do
//
//   - Reveal whether an email is registered: lookup misses and password
//     mismatches collapse to [ErrInvalidCredentials].
//   - Return an activation or reset token anywhere except the outbound
//     message, unless the explicitly gated debug path is enabled outside
//     production mode.
//   - Perform check-then-write mutations as two store calls: token
//     consumption, backup-code removal, and failed-login counting are
//     single atomic operations on the store.
package authgate
