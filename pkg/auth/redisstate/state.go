// Package redisstate keeps OAuth state values in Redis so any instance can
// complete a flow another instance started.
package redisstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/accountkit/pkg/auth"
)

// Store implements auth.StateStore.
type Store struct {
	client redis.UniversalClient
	prefix string
}

// New returns a Store writing keys under prefix + "oauth_state:".
func New(client redis.UniversalClient, prefix string) *Store {
	return &Store{client: client, prefix: prefix + "oauth_state:"}
}

var _ auth.StateStore = (*Store)(nil)

// StoreState saves state with a TTL. An existing state is never overwritten.
func (s *Store) StoreState(ctx context.Context, state string, ttl time.Duration) error {
	ok, err := s.client.SetNX(ctx, s.prefix+state, 1, ttl).Result()
	if err != nil {
		return fmt.Errorf("redisstate: store: %w", err)
	}
	if !ok {
		return fmt.Errorf("redisstate: state already exists")
	}
	return nil
}

// ConsumeState deletes state atomically with GETDEL so that concurrent
// callbacks cannot both succeed.
func (s *Store) ConsumeState(ctx context.Context, state string) error {
	err := s.client.GetDel(ctx, s.prefix+state).Err()
	if errors.Is(err, redis.Nil) {
		return auth.ErrStateNotFound
	}
	if err != nil {
		return fmt.Errorf("redisstate: consume: %w", err)
	}
	return nil
}
