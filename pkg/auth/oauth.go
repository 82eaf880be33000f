package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/accountkit/pkg/logger"
	"github.com/dmitrymomot/accountkit/pkg/sanitizer"
)

// ProviderAdapter hides one identity provider's OAuth endpoints and profile
// shape behind a common interface.
type ProviderAdapter interface {
	Provider() Provider
	// AuthURL builds the consent URL carrying state.
	AuthURL(state string) string
	// ResolveProfile exchanges the authorization code and fetches the
	// profile. Exchange failures yield ErrInvalidCode.
	ResolveProfile(ctx context.Context, code string) (ProviderIdentity, error)
}

// IdentityResolver is the part of the account lifecycle the OAuth flow
// depends on. *Service and *Linker implement it.
type IdentityResolver interface {
	Link(ctx context.Context, accountID uuid.UUID, id Identity) (*Account, error)
	ResolveOrCreateFromProvider(ctx context.Context, p ProviderIdentity) (*Account, error)
}

var (
	_ IdentityResolver = (*Service)(nil)
	_ IdentityResolver = (*Linker)(nil)
)

// OAuthFlow runs the authorization code flow for a set of providers.
type OAuthFlow struct {
	resolver IdentityResolver
	states   StateStore
	adapters map[Provider]ProviderAdapter
	opts     options
}

// NewOAuthFlow creates an OAuthFlow. Defaults: state TTL 10 minutes,
// unverified provider emails rejected.
func NewOAuthFlow(resolver IdentityResolver, states StateStore, adapters []ProviderAdapter, opts ...Option) *OAuthFlow {
	m := make(map[Provider]ProviderAdapter, len(adapters))
	for _, a := range adapters {
		m[a.Provider()] = a
	}
	return &OAuthFlow{
		resolver: resolver,
		states:   states,
		adapters: m,
		opts:     buildOptions(opts),
	}
}

// Enabled reports whether an adapter is registered for p.
func (f *OAuthFlow) Enabled(p Provider) bool {
	_, ok := f.adapters[p]
	return ok
}

func (f *OAuthFlow) adapter(p Provider) (ProviderAdapter, error) {
	if !p.Valid() {
		return nil, ErrUnknownProvider
	}
	a, ok := f.adapters[p]
	if !ok {
		return nil, ErrProviderNotEnabled
	}
	return a, nil
}

// AuthURL generates a single-use state, stores it and returns the provider
// consent URL together with the state.
func (f *OAuthFlow) AuthURL(ctx context.Context, p Provider) (string, string, error) {
	a, err := f.adapter(p)
	if err != nil {
		return "", "", err
	}

	tok, err := f.opts.tokens.Generate()
	if err != nil {
		return "", "", unavailable("oauth state", err)
	}
	if err := f.states.StoreState(ctx, tok.Opaque, f.opts.stateTTL); err != nil {
		return "", "", unavailable("oauth state", err)
	}
	return a.AuthURL(tok.Opaque), tok.Opaque, nil
}

// Callback completes the flow. With linkTo set the provider identity is
// attached to that account; otherwise the profile signs in, merging into or
// creating an account as needed.
func (f *OAuthFlow) Callback(ctx context.Context, p Provider, code, state string, linkTo *uuid.UUID) (*Account, error) {
	a, err := f.adapter(p)
	if err != nil {
		return nil, err
	}
	if state == "" {
		return nil, ErrInvalidState
	}

	if err := f.states.ConsumeState(ctx, state); err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return nil, ErrInvalidState
		}
		return nil, unavailable("oauth state", err)
	}

	if code == "" {
		return nil, ErrInvalidCode
	}
	profile, err := a.ResolveProfile(ctx, code)
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			return nil, err
		}
		return nil, fmt.Errorf("resolve %s profile: %w", p, errors.Join(ErrUnavailable, err))
	}
	profile.Provider = p
	profile.Email = sanitizer.NormalizeEmail(profile.Email)

	if profile.ProviderID == "" {
		return nil, ErrInvalidProviderID
	}
	if profile.Email == "" {
		return nil, ErrNoPrimaryEmail
	}
	if f.opts.verifiedOnly && !profile.EmailVerified {
		f.opts.logger.WarnContext(ctx, "unverified provider email rejected",
			logger.Provider(p.String()),
			logger.Component("oauth"),
		)
		return nil, ErrUnverifiedEmail
	}

	if linkTo != nil {
		return f.resolver.Link(ctx, *linkTo, profile.Identity())
	}
	return f.resolver.ResolveOrCreateFromProvider(ctx, profile)
}
