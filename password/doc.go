// Package password implements credential hashing and verification with
// bcrypt.
//
// Each hash carries its own random salt and the work factor it was produced
// with, so verification never needs external parameters. Verification ends in
// a constant-time digest comparison inside bcrypt itself.
//
// The [Pool] wrapper bounds how many hash computations run at once: bcrypt is
// deliberately expensive, and without a cap a burst of logins can occupy
// every CPU and starve unrelated requests.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (length,
// character classes) is enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords — callers supply plaintext and receive
//     digests.
//   - Import any other authcore package.
//   - Log plaintext secrets.
package password
