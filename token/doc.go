// Package token mints and validates the self-contained session tokens a
// verified login yields. Tokens are HMAC-signed JWTs carrying the account id,
// role, issue time, and a fixed expiry; validation needs no server-side
// lookup, so expiry is the only invalidation mechanism.
package token
