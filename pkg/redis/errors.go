package redis

import "errors"

var (
	ErrEmptyConnectionURL   = errors.New("redis: connection URL is empty")
	ErrInvalidConnectionURL = errors.New("redis: invalid connection URL")
	ErrNotReady             = errors.New("redis: server not ready before retries ran out")
	ErrHealthcheckFailed    = errors.New("redis: healthcheck failed")
)
