// Package jwt issues and parses HS256-signed session tokens on top of
// github.com/golang-jwt/jwt/v5, and extracts bearer tokens from HTTP
// requests.
//
// Tokens carry the registered claims only: sub (the account id), iat, exp and
// iss. Parse enforces the signing method, issuer and expiry; anything else
// about the session (for example whether it predates a password change) is the
// caller's decision.
package jwt
