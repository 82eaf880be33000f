// Package ratelimiter is a token bucket limiter with in-memory and Redis
// stores and an HTTP middleware. It guards the credential endpoints against
// password guessing and mail flooding.
package ratelimiter
