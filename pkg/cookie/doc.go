// Package cookie writes and reads HTTP cookies with shared defaults, and
// optionally signs values with HMAC-SHA256 so tampering is detected on read.
//
// Signing accepts several secrets: the first signs, all of them verify, which
// allows key rotation without invalidating cookies already issued.
package cookie
