package auth

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Provider identifies a third-party identity provider.
type Provider string

const (
	ProviderGoogle   Provider = "google"
	ProviderGitHub   Provider = "github"
	ProviderFacebook Provider = "facebook"
)

// ParseProvider validates a provider name.
func ParseProvider(s string) (Provider, error) {
	p := Provider(s)
	if !p.Valid() {
		return "", ErrUnknownProvider
	}
	return p, nil
}

// Valid reports whether p is one of the supported providers.
func (p Provider) Valid() bool {
	switch p {
	case ProviderGoogle, ProviderGitHub, ProviderFacebook:
		return true
	}
	return false
}

func (p Provider) String() string { return string(p) }

// Identity is an account's link to a provider user.
type Identity struct {
	Provider   Provider `json:"provider"`
	ProviderID string   `json:"provider_id"`
}

func (i Identity) validate() error {
	if !i.Provider.Valid() {
		return ErrUnknownProvider
	}
	if i.ProviderID == "" {
		return ErrInvalidProviderID
	}
	return nil
}

// Credential is the optional local password of an account. The zero value is
// NoPassword.
type Credential struct {
	hash string
}

// NoPassword marks accounts that can only sign in through a provider.
var NoPassword = Credential{}

// PasswordHash wraps a stored password digest.
func PasswordHash(digest string) Credential {
	return Credential{hash: digest}
}

// Hash returns the digest and whether a password is set.
func (c Credential) Hash() (string, bool) {
	return c.hash, c.hash != ""
}

// IsSet reports whether the account has a local password.
func (c Credential) IsSet() bool { return c.hash != "" }

// TokenKind names the purpose of a single-use token.
type TokenKind string

const (
	TokenActivation TokenKind = "activation"
	TokenReset      TokenKind = "reset"
)

func (k TokenKind) String() string { return string(k) }

// PendingToken is the stored half of an outstanding single-use token.
type PendingToken struct {
	Digest    string
	ExpiresAt time.Time
}

// Account is the persisted credential record.
type Account struct {
	ID                uuid.UUID
	Email             string
	Name              string
	Password          Credential
	Active            bool
	PasswordChangedAt time.Time
	Activation        *PendingToken
	Reset             *PendingToken
	Identities        []Identity
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Clone returns a deep copy of a.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.Activation != nil {
		t := *a.Activation
		c.Activation = &t
	}
	if a.Reset != nil {
		t := *a.Reset
		c.Reset = &t
	}
	c.Identities = slices.Clone(a.Identities)
	return &c
}

// Pending returns the outstanding token of the given kind, or nil.
func (a *Account) Pending(kind TokenKind) *PendingToken {
	switch kind {
	case TokenActivation:
		return a.Activation
	case TokenReset:
		return a.Reset
	}
	return nil
}

func (a *Account) setPending(kind TokenKind, p *PendingToken) {
	switch kind {
	case TokenActivation:
		a.Activation = p
	case TokenReset:
		a.Reset = p
	}
}

// HasIdentity reports whether the exact provider pair is linked.
func (a *Account) HasIdentity(id Identity) bool {
	return slices.Contains(a.Identities, id)
}

// HasProvider reports whether any identity of provider p is linked.
func (a *Account) HasProvider(p Provider) bool {
	return slices.ContainsFunc(a.Identities, func(i Identity) bool { return i.Provider == p })
}
