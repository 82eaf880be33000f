package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/dmitrymomot/accountkit/pkg/logger"
	"github.com/dmitrymomot/accountkit/pkg/sanitizer"
)

// ProviderIdentity is a provider profile reduced to what account resolution
// needs.
type ProviderIdentity struct {
	Provider      Provider
	ProviderID    string
	Email         string
	EmailVerified bool
	DisplayName   string
}

// Identity returns the provider pair.
func (p ProviderIdentity) Identity() Identity {
	return Identity{Provider: p.Provider, ProviderID: p.ProviderID}
}

// Linker attaches provider identities to accounts.
type Linker struct {
	store Store
	opts  options
}

// NewLinker creates a Linker.
func NewLinker(store Store, opts ...Option) *Linker {
	return &Linker{store: store, opts: buildOptions(opts)}
}

// Link attaches the identity to the account. Fails with ErrAlreadyLinked if
// any account, this one included, already holds the pair.
func (l *Linker) Link(ctx context.Context, accountID uuid.UUID, id Identity) (*Account, error) {
	if err := id.validate(); err != nil {
		return nil, err
	}

	if _, err := l.store.FindByIdentity(ctx, id); err == nil {
		return nil, ErrAlreadyLinked
	} else if !errors.Is(err, ErrAccountNotFound) {
		return nil, storeErr("link identity", err)
	}

	acc, err := mutate(ctx, l.store, l.opts.now, "link identity",
		loadByID(l.store, accountID),
		func(acc *Account) error {
			if acc.HasIdentity(id) {
				return ErrAlreadyLinked
			}
			acc.Identities = append(acc.Identities, id)
			return nil
		},
	)
	if err != nil {
		return nil, err
	}

	l.opts.logger.InfoContext(ctx, "identity linked",
		logger.AccountID(acc.ID),
		logger.Provider(id.Provider.String()),
		logger.Component("identity_linker"),
	)
	return acc, nil
}

// Unlink removes every identity of provider p from the account. Fails with
// ErrLastCredential when the account would be left with neither a password
// nor another identity.
func (l *Linker) Unlink(ctx context.Context, accountID uuid.UUID, p Provider) (*Account, error) {
	if !p.Valid() {
		return nil, ErrUnknownProvider
	}

	acc, err := mutate(ctx, l.store, l.opts.now, "unlink identity",
		loadByID(l.store, accountID),
		func(acc *Account) error {
			if err := checkUnlink(acc, p); err != nil {
				return err
			}
			acc.Identities = withoutProvider(acc.Identities, p)
			return nil
		},
	)
	if err != nil {
		return nil, err
	}

	l.opts.logger.InfoContext(ctx, "identity unlinked",
		logger.AccountID(acc.ID),
		logger.Provider(p.String()),
		logger.Component("identity_linker"),
	)
	return acc, nil
}

// ResolveOrCreateFromProvider maps a provider profile onto an account:
//  1. the account already linked to the pair;
//  2. otherwise the account registered under the profile email, with the
//     identity appended;
//  3. otherwise a new active account without a password.
//
// Merging into an account that was never activated activates it; the
// password and credential timestamp stay as they are.
func (l *Linker) ResolveOrCreateFromProvider(ctx context.Context, p ProviderIdentity) (*Account, error) {
	id := p.Identity()
	if err := id.validate(); err != nil {
		return nil, err
	}

	acc, err := l.store.FindByIdentity(ctx, id)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, storeErr("resolve identity", err)
	}

	email := sanitizer.NormalizeEmail(p.Email)
	if email == "" {
		return nil, ErrNoPrimaryEmail
	}

	acc, err = l.mergeByEmail(ctx, email, id)
	if !errors.Is(err, ErrAccountNotFound) {
		return acc, err
	}

	now := l.opts.now()
	acc = &Account{
		ID:         uuid.New(),
		Email:      email,
		Name:       sanitizer.Name(p.DisplayName, maxNameLength),
		Password:   NoPassword,
		Active:     true,
		Identities: []Identity{id},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	switch err := l.store.Create(ctx, acc); {
	case err == nil:
		l.opts.logger.InfoContext(ctx, "account created from provider",
			logger.AccountID(acc.ID),
			logger.Provider(id.Provider.String()),
			logger.Component("identity_linker"),
		)
		return acc, nil
	case errors.Is(err, ErrEmailTaken):
		// registered concurrently under the same email
		return l.mergeByEmail(ctx, email, id)
	case errors.Is(err, ErrAlreadyLinked):
		// the same provider user signed in concurrently
		acc, err := l.store.FindByIdentity(ctx, id)
		return acc, storeErr("resolve identity", err)
	default:
		return nil, storeErr("create account", err)
	}
}

func (l *Linker) mergeByEmail(ctx context.Context, email string, id Identity) (*Account, error) {
	acc, err := mutate(ctx, l.store, l.opts.now, "merge identity",
		func(ctx context.Context) (*Account, error) {
			acc, err := l.store.FindByEmail(ctx, email)
			if err != nil {
				return nil, storeErr("merge identity", err)
			}
			return acc, nil
		},
		func(acc *Account) error {
			if acc.HasIdentity(id) {
				return errNoChange
			}
			acc.Identities = append(acc.Identities, id)
			if !acc.Active {
				acc.Active = true
				acc.Activation = nil
			}
			return nil
		},
	)
	if err != nil {
		return nil, err
	}

	l.opts.logger.InfoContext(ctx, "identity merged by email",
		logger.AccountID(acc.ID),
		logger.Provider(id.Provider.String()),
		logger.Component("identity_linker"),
	)
	return acc, nil
}
