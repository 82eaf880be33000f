package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/accountkit/pkg/token"
)

// MemoryStore is an in-process Store and StateStore for tests and single-node
// development. Accounts are copied on the way in and out.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*Account
	byEmail  map[string]uuid.UUID
	byIdent  map[Identity]uuid.UUID
	states   map[string]time.Time
	now      func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[uuid.UUID]*Account),
		byEmail:  make(map[string]uuid.UUID),
		byIdent:  make(map[Identity]uuid.UUID),
		states:   make(map[string]time.Time),
		now:      time.Now,
	}
}

var (
	_ Store      = (*MemoryStore)(nil)
	_ StateStore = (*MemoryStore)(nil)
)

func (s *MemoryStore) Create(ctx context.Context, acc *Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkUnique(acc); err != nil {
		return err
	}
	acc.Version = 0
	s.put(acc.Clone())
	return nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return acc.Clone(), nil
}

func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return s.accounts[id].Clone(), nil
}

func (s *MemoryStore) FindByIdentity(ctx context.Context, ident Identity) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byIdent[ident]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return s.accounts[id].Clone(), nil
}

func (s *MemoryStore) FindByTokenDigest(ctx context.Context, kind TokenKind, digest string) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, acc := range s.accounts {
		if p := acc.Pending(kind); p != nil && token.Equal(p.Digest, digest) {
			return acc.Clone(), nil
		}
	}
	return nil, ErrAccountNotFound
}

func (s *MemoryStore) Update(ctx context.Context, acc *Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.accounts[acc.ID]
	if !ok {
		return ErrAccountNotFound
	}
	if cur.Version != acc.Version {
		return ErrConflict
	}
	if err := s.checkUnique(acc); err != nil {
		return err
	}

	s.remove(cur)
	acc.Version++
	s.put(acc.Clone())
	return nil
}

// StoreState records state until ttl elapses.
func (s *MemoryStore) StoreState(ctx context.Context, state string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, exp := range s.states {
		if !now.Before(exp) {
			delete(s.states, k)
		}
	}
	s.states[state] = now.Add(ttl)
	return nil
}

// ConsumeState removes state, failing with ErrStateNotFound when it is
// unknown or expired.
func (s *MemoryStore) ConsumeState(ctx context.Context, state string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.states[state]
	if !ok {
		return ErrStateNotFound
	}
	delete(s.states, state)
	if !s.now().Before(exp) {
		return ErrStateNotFound
	}
	return nil
}

// checkUnique must be called with the write lock held.
func (s *MemoryStore) checkUnique(acc *Account) error {
	if id, ok := s.byEmail[strings.ToLower(acc.Email)]; ok && id != acc.ID {
		return ErrEmailTaken
	}
	for _, ident := range acc.Identities {
		if id, ok := s.byIdent[ident]; ok && id != acc.ID {
			return ErrAlreadyLinked
		}
	}
	return nil
}

func (s *MemoryStore) put(acc *Account) {
	s.accounts[acc.ID] = acc
	s.byEmail[strings.ToLower(acc.Email)] = acc.ID
	for _, ident := range acc.Identities {
		s.byIdent[ident] = acc.ID
	}
}

func (s *MemoryStore) remove(acc *Account) {
	delete(s.byEmail, strings.ToLower(acc.Email))
	for _, ident := range acc.Identities {
		delete(s.byIdent, ident)
	}
}
