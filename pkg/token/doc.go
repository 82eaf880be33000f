// Package token produces single-use opaque security tokens.
//
// A Token has two halves: Opaque is delivered to the account holder (inside an
// activation or reset link) and is never stored; Digest is the hex SHA-256 of
// Opaque and is the only value persisted. Presenting a token means recomputing
// Digest(opaque) and looking that up.
package token
