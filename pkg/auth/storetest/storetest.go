// Package storetest holds a conformance suite shared by every auth.Store
// implementation.
package storetest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/accountkit/pkg/auth"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) auth.Store

// NewAccount returns a valid account that has not been stored yet. The email
// is unique per call.
func NewAccount() *auth.Account {
	now := time.Now().UTC().Truncate(time.Millisecond)
	id := uuid.New()
	return &auth.Account{
		ID:        id,
		Email:     id.String()[:8] + "@example.com",
		Name:      "Store Test",
		Password:  auth.PasswordHash("$2a$04$digest"),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Run exercises the auth.Store contract.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("create and find", func(t *testing.T) {
		s := newStore(t)
		acc := NewAccount()
		acc.Identities = []auth.Identity{{Provider: auth.ProviderGoogle, ProviderID: "g-" + acc.ID.String()}}
		acc.Activation = &auth.PendingToken{Digest: "act-" + acc.ID.String(), ExpiresAt: acc.CreatedAt.Add(time.Hour)}
		require.NoError(t, s.Create(ctx, acc))
		assert.Equal(t, int64(0), acc.Version)

		byID, err := s.FindByID(ctx, acc.ID)
		require.NoError(t, err)
		assert.Equal(t, acc.Email, byID.Email)
		assert.Equal(t, acc.Name, byID.Name)
		assert.True(t, byID.Password.IsSet())
		assert.Equal(t, acc.Identities, byID.Identities)
		require.NotNil(t, byID.Activation)
		assert.Equal(t, acc.Activation.Digest, byID.Activation.Digest)
		assert.True(t, acc.Activation.ExpiresAt.Equal(byID.Activation.ExpiresAt))
		assert.Nil(t, byID.Reset)

		byEmail, err := s.FindByEmail(ctx, acc.Email)
		require.NoError(t, err)
		assert.Equal(t, acc.ID, byEmail.ID)

		byIdent, err := s.FindByIdentity(ctx, acc.Identities[0])
		require.NoError(t, err)
		assert.Equal(t, acc.ID, byIdent.ID)

		byToken, err := s.FindByTokenDigest(ctx, auth.TokenActivation, acc.Activation.Digest)
		require.NoError(t, err)
		assert.Equal(t, acc.ID, byToken.ID)

		_, err = s.FindByTokenDigest(ctx, auth.TokenReset, acc.Activation.Digest)
		assert.ErrorIs(t, err, auth.ErrAccountNotFound)
	})

	t.Run("not found", func(t *testing.T) {
		s := newStore(t)

		_, err := s.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, auth.ErrAccountNotFound)
		_, err = s.FindByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, auth.ErrAccountNotFound)
		_, err = s.FindByIdentity(ctx, auth.Identity{Provider: auth.ProviderGitHub, ProviderID: "none"})
		assert.ErrorIs(t, err, auth.ErrAccountNotFound)
		_, err = s.FindByTokenDigest(ctx, auth.TokenReset, "none")
		assert.ErrorIs(t, err, auth.ErrAccountNotFound)
		err = s.Update(ctx, NewAccount())
		assert.ErrorIs(t, err, auth.ErrAccountNotFound)
	})

	t.Run("no password round trips", func(t *testing.T) {
		s := newStore(t)
		acc := NewAccount()
		acc.Password = auth.NoPassword
		acc.Active = true
		require.NoError(t, s.Create(ctx, acc))

		got, err := s.FindByID(ctx, acc.ID)
		require.NoError(t, err)
		assert.False(t, got.Password.IsSet())
		assert.True(t, got.Active)
		assert.True(t, got.PasswordChangedAt.IsZero())
	})

	t.Run("unique email and identity", func(t *testing.T) {
		s := newStore(t)
		ident := auth.Identity{Provider: auth.ProviderGitHub, ProviderID: uuid.NewString()}

		a := NewAccount()
		a.Identities = []auth.Identity{ident}
		require.NoError(t, s.Create(ctx, a))

		dupEmail := NewAccount()
		dupEmail.Email = a.Email
		assert.ErrorIs(t, s.Create(ctx, dupEmail), auth.ErrEmailTaken)

		dupIdent := NewAccount()
		dupIdent.Identities = []auth.Identity{ident}
		assert.ErrorIs(t, s.Create(ctx, dupIdent), auth.ErrAlreadyLinked)

		b := NewAccount()
		require.NoError(t, s.Create(ctx, b))
		b.Identities = []auth.Identity{ident}
		assert.ErrorIs(t, s.Update(ctx, b), auth.ErrAlreadyLinked)

		b, err := s.FindByID(ctx, b.ID)
		require.NoError(t, err)
		b.Email = a.Email
		assert.ErrorIs(t, s.Update(ctx, b), auth.ErrEmailTaken)
	})

	t.Run("update writes every field", func(t *testing.T) {
		s := newStore(t)
		acc := NewAccount()
		released := auth.Identity{Provider: auth.ProviderGoogle, ProviderID: uuid.NewString()}
		acc.Identities = []auth.Identity{released}
		require.NoError(t, s.Create(ctx, acc))

		changed := acc.CreatedAt.Add(time.Minute)
		acc.Email = "moved-" + acc.Email
		acc.Name = "Renamed"
		acc.Active = true
		acc.Password = auth.NoPassword
		acc.PasswordChangedAt = changed
		acc.Reset = &auth.PendingToken{Digest: "rst-" + acc.ID.String(), ExpiresAt: changed.Add(10 * time.Minute)}
		acc.Identities = []auth.Identity{{Provider: auth.ProviderFacebook, ProviderID: uuid.NewString()}}
		acc.UpdatedAt = changed
		require.NoError(t, s.Update(ctx, acc))
		assert.Equal(t, int64(1), acc.Version)

		got, err := s.FindByID(ctx, acc.ID)
		require.NoError(t, err)
		assert.Equal(t, acc.Email, got.Email)
		assert.Equal(t, "Renamed", got.Name)
		assert.True(t, got.Active)
		assert.False(t, got.Password.IsSet())
		assert.True(t, changed.Equal(got.PasswordChangedAt))
		assert.Nil(t, got.Activation)
		require.NotNil(t, got.Reset)
		assert.Equal(t, acc.Reset.Digest, got.Reset.Digest)
		assert.Equal(t, acc.Identities, got.Identities)
		assert.Equal(t, int64(1), got.Version)

		_, err = s.FindByIdentity(ctx, released)
		assert.ErrorIs(t, err, auth.ErrAccountNotFound)
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		s := newStore(t)
		acc := NewAccount()
		require.NoError(t, s.Create(ctx, acc))

		first, err := s.FindByID(ctx, acc.ID)
		require.NoError(t, err)
		second, err := s.FindByID(ctx, acc.ID)
		require.NoError(t, err)

		first.Name = "first"
		require.NoError(t, s.Update(ctx, first))
		second.Name = "second"
		assert.ErrorIs(t, s.Update(ctx, second), auth.ErrConflict)

		got, err := s.FindByID(ctx, acc.ID)
		require.NoError(t, err)
		assert.Equal(t, "first", got.Name)
	})

	t.Run("concurrent updates from one version", func(t *testing.T) {
		s := newStore(t)
		acc := NewAccount()
		require.NoError(t, s.Create(ctx, acc))

		var (
			wg       sync.WaitGroup
			ok       atomic.Int32
			conflict atomic.Int32
		)
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				cp := acc.Clone()
				cp.Name = "writer " + string(rune('a'+i))
				switch err := s.Update(ctx, cp); {
				case err == nil:
					ok.Add(1)
				case assert.ErrorIs(t, err, auth.ErrConflict):
					conflict.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), ok.Load())
		assert.Equal(t, int32(7), conflict.Load())
	})
}
