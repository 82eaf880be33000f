package mongostore

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/accountkit/pkg/auth"
)

type tokenDoc struct {
	Digest    string    `bson:"digest"`
	ExpiresAt time.Time `bson:"expires_at"`
}

type identityDoc struct {
	Provider   string `bson:"provider"`
	ProviderID string `bson:"provider_id"`
}

type accountDoc struct {
	ID                string        `bson:"_id"`
	Email             string        `bson:"email"`
	Name              string        `bson:"name"`
	PasswordHash      string        `bson:"password_hash,omitempty"`
	Active            bool          `bson:"active"`
	PasswordChangedAt *time.Time    `bson:"password_changed_at,omitempty"`
	Activation        *tokenDoc     `bson:"activation,omitempty"`
	Reset             *tokenDoc     `bson:"reset,omitempty"`
	Identities        []identityDoc `bson:"identities"`
	IdentityKeys      []string      `bson:"identity_keys,omitempty"`
	Version           int64         `bson:"version"`
	CreatedAt         time.Time     `bson:"created_at"`
	UpdatedAt         time.Time     `bson:"updated_at"`
}

func identityKey(id auth.Identity) string {
	return string(id.Provider) + ":" + id.ProviderID
}

func toDoc(acc *auth.Account) accountDoc {
	doc := accountDoc{
		ID:         acc.ID.String(),
		Email:      acc.Email,
		Name:       acc.Name,
		Active:     acc.Active,
		Identities: make([]identityDoc, 0, len(acc.Identities)),
		Version:    acc.Version,
		CreatedAt:  acc.CreatedAt,
		UpdatedAt:  acc.UpdatedAt,
	}
	doc.PasswordHash, _ = acc.Password.Hash()
	if !acc.PasswordChangedAt.IsZero() {
		t := acc.PasswordChangedAt
		doc.PasswordChangedAt = &t
	}
	if p := acc.Activation; p != nil {
		doc.Activation = &tokenDoc{Digest: p.Digest, ExpiresAt: p.ExpiresAt}
	}
	if p := acc.Reset; p != nil {
		doc.Reset = &tokenDoc{Digest: p.Digest, ExpiresAt: p.ExpiresAt}
	}
	for _, id := range acc.Identities {
		doc.Identities = append(doc.Identities, identityDoc{Provider: string(id.Provider), ProviderID: id.ProviderID})
		doc.IdentityKeys = append(doc.IdentityKeys, identityKey(id))
	}
	return doc
}

func (d accountDoc) toAccount() (*auth.Account, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("mongostore: malformed account id %q: %w", d.ID, err)
	}
	acc := &auth.Account{
		ID:        id,
		Email:     d.Email,
		Name:      d.Name,
		Password:  auth.PasswordHash(d.PasswordHash),
		Active:    d.Active,
		Version:   d.Version,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if d.PasswordChangedAt != nil {
		acc.PasswordChangedAt = *d.PasswordChangedAt
	}
	if d.Activation != nil {
		acc.Activation = &auth.PendingToken{Digest: d.Activation.Digest, ExpiresAt: d.Activation.ExpiresAt}
	}
	if d.Reset != nil {
		acc.Reset = &auth.PendingToken{Digest: d.Reset.Digest, ExpiresAt: d.Reset.ExpiresAt}
	}
	for _, i := range d.Identities {
		acc.Identities = append(acc.Identities, auth.Identity{Provider: auth.Provider(i.Provider), ProviderID: i.ProviderID})
	}
	return acc, nil
}
