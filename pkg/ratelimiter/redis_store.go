package ratelimiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// consumeScript runs the refill-and-take step atomically on the server.
// KEYS[1] bucket hash; ARGV: capacity, rate, interval ms, tokens, now ms, ttl ms.
var consumeScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local rate     = tonumber(ARGV[2])
local interval = tonumber(ARGV[3])
local take     = tonumber(ARGV[4])
local now      = tonumber(ARGV[5])
local ttl      = tonumber(ARGV[6])

local state  = redis.call('HMGET', KEYS[1], 'tokens', 'refill')
local tokens = tonumber(state[1])
local last   = tonumber(state[2])
if tokens == nil then
  tokens = capacity
  last = now
end

local elapsed = now - last
if elapsed >= interval then
  local n = math.min(math.floor(elapsed / interval), math.floor(capacity / rate) + 1)
  tokens = math.min(tokens + n * rate, capacity)
  last = last + n * interval
end

tokens = tokens - take
redis.call('HSET', KEYS[1], 'tokens', tokens, 'refill', last)
redis.call('PEXPIRE', KEYS[1], ttl)
return {tokens, last + interval}
`)

// RedisStore shares buckets between instances through Redis.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore returns a RedisStore writing keys under prefix + "ratelimit:".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix + "ratelimit:"}
}

func (rs *RedisStore) ConsumeTokens(ctx context.Context, key string, tokens int, now time.Time, cfg Config) (int, time.Time, error) {
	res, err := consumeScript.Run(ctx, rs.client, []string{rs.prefix + key},
		cfg.Capacity,
		cfg.RefillRate,
		cfg.RefillInterval.Milliseconds(),
		tokens,
		now.UnixMilli(),
		cfg.ttl().Milliseconds(),
	).Int64Slice()
	if err != nil {
		return 0, time.Time{}, errors.Join(ErrStoreUnavailable, err)
	}
	if len(res) != 2 {
		return 0, time.Time{}, fmt.Errorf("%w: unexpected script reply %v", ErrStoreUnavailable, res)
	}
	return int(res[0]), time.UnixMilli(res[1]), nil
}

func (rs *RedisStore) Reset(ctx context.Context, key string) error {
	if err := rs.client.Del(ctx, rs.prefix+key).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}
