package pgstore

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/accountkit/pkg/auth"
)

// accountRow mirrors the accounts table column order.
type accountRow struct {
	ID                  uuid.UUID
	Email               string
	Name                string
	PasswordHash        *string
	Active              bool
	PasswordChangedAt   *time.Time
	ActivationDigest    *string
	ActivationExpiresAt *time.Time
	ResetDigest         *string
	ResetExpiresAt      *time.Time
	Version             int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func toRow(acc *auth.Account) accountRow {
	row := accountRow{
		ID:        acc.ID,
		Email:     acc.Email,
		Name:      acc.Name,
		Active:    acc.Active,
		Version:   acc.Version,
		CreatedAt: acc.CreatedAt,
		UpdatedAt: acc.UpdatedAt,
	}
	if h, ok := acc.Password.Hash(); ok {
		row.PasswordHash = &h
	}
	if !acc.PasswordChangedAt.IsZero() {
		t := acc.PasswordChangedAt
		row.PasswordChangedAt = &t
	}
	if p := acc.Activation; p != nil {
		row.ActivationDigest, row.ActivationExpiresAt = &p.Digest, &p.ExpiresAt
	}
	if p := acc.Reset; p != nil {
		row.ResetDigest, row.ResetExpiresAt = &p.Digest, &p.ExpiresAt
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row
}

func (r accountRow) toAccount(ids []auth.Identity) *auth.Account {
	acc := &auth.Account{
		ID:         r.ID,
		Email:      r.Email,
		Name:       r.Name,
		Password:   auth.NoPassword,
		Active:     r.Active,
		Identities: ids,
		Version:    r.Version,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.PasswordHash != nil {
		acc.Password = auth.PasswordHash(*r.PasswordHash)
	}
	if r.PasswordChangedAt != nil {
		acc.PasswordChangedAt = *r.PasswordChangedAt
	}
	if r.ActivationDigest != nil && r.ActivationExpiresAt != nil {
		acc.Activation = &auth.PendingToken{Digest: *r.ActivationDigest, ExpiresAt: *r.ActivationExpiresAt}
	}
	if r.ResetDigest != nil && r.ResetExpiresAt != nil {
		acc.Reset = &auth.PendingToken{Digest: *r.ResetDigest, ExpiresAt: *r.ResetExpiresAt}
	}
	return acc
}
