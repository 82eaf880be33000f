// Package redis connects to Redis with retries and exposes a health probe.
package redis
