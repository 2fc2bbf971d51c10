// Package identity provides authentication and account lifecycle primitives:
// signed session tokens (JWT issuance and verification with distinct access and
// refresh windows), credential hashing, account registration and state
// transitions, plus request-scoped identity resolution for HTTP handlers.
//
// Account lifecycle:
//   - Accounts carry enabled/locked/credentials-expired flags persisted via Bun.
//     AccountManager owns the invariants around registration (uniqueness of
//     email and phone, password confirmation, default role attachment), password
//     changes, profile merges, and the enabled flag transitions with their
//     idempotency guard.
//
// Sessions are stateless:
//   - Issued tokens are never stored. Validity is purely a function of the
//     signing secret, the embedded expiry, and the token use discriminant.
//     Changing a password does not invalidate tokens already in flight; they
//     age out on their own expiry.
//
// Request identity:
//   - middleware/identityware resolves a bearer token into an authenticated
//     identity attached to the request context. Invalid or missing tokens
//     degrade the request to anonymous rather than failing the chain, leaving
//     the final authorization decision to downstream handlers.
package identity
