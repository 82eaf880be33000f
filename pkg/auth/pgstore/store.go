// Package pgstore implements auth.Store on PostgreSQL.
package pgstore

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/accountkit/pkg/auth"
	"github.com/dmitrymomot/accountkit/pkg/pg"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	constraintEmail    = "accounts_email_key"
	constraintIdentity = "account_identities_pkey"
)

// Migrate creates or upgrades the account schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool, cfg pg.Config, log *slog.Logger) error {
	return pg.Migrate(ctx, pool, migrations, "migrations", cfg, log)
}

// Store is a PostgreSQL auth.Store.
type Store struct {
	pool *pgxpool.Pool
}

// New returns a Store using pool. Call Migrate first.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var _ auth.Store = (*Store)(nil)

const selectAccount = `
SELECT id, email, name, password_hash, active, password_changed_at,
       activation_digest, activation_expires_at, reset_digest, reset_expires_at,
       version, created_at, updated_at
FROM accounts`

func (s *Store) Create(ctx context.Context, acc *auth.Account) error {
	row := toRow(acc)
	row.Version = 0

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
INSERT INTO accounts (id, email, name, password_hash, active, password_changed_at,
    activation_digest, activation_expires_at, reset_digest, reset_expires_at,
    version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			row.ID, row.Email, row.Name, row.PasswordHash, row.Active, row.PasswordChangedAt,
			row.ActivationDigest, row.ActivationExpiresAt, row.ResetDigest, row.ResetExpiresAt,
			row.Version, row.CreatedAt, row.UpdatedAt,
		)
		if err != nil {
			return err
		}
		return insertIdentities(ctx, tx, acc.ID, acc.Identities)
	})
	if err != nil {
		return mapErr(err)
	}
	acc.Version = 0
	return nil
}

func (s *Store) FindByID(ctx context.Context, id uuid.UUID) (*auth.Account, error) {
	return s.findOne(ctx, selectAccount+` WHERE id = $1`, id)
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	return s.findOne(ctx, selectAccount+` WHERE email = $1`, email)
}

func (s *Store) FindByIdentity(ctx context.Context, id auth.Identity) (*auth.Account, error) {
	return s.findOne(ctx, selectAccount+`
WHERE id = (SELECT account_id FROM account_identities WHERE provider = $1 AND provider_id = $2)`,
		string(id.Provider), id.ProviderID)
}

func (s *Store) FindByTokenDigest(ctx context.Context, kind auth.TokenKind, digest string) (*auth.Account, error) {
	switch kind {
	case auth.TokenActivation:
		return s.findOne(ctx, selectAccount+` WHERE activation_digest = $1`, digest)
	case auth.TokenReset:
		return s.findOne(ctx, selectAccount+` WHERE reset_digest = $1`, digest)
	default:
		return nil, auth.ErrAccountNotFound
	}
}

func (s *Store) Update(ctx context.Context, acc *auth.Account) error {
	row := toRow(acc)

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
UPDATE accounts SET
    email = $3, name = $4, password_hash = $5, active = $6, password_changed_at = $7,
    activation_digest = $8, activation_expires_at = $9, reset_digest = $10, reset_expires_at = $11,
    updated_at = $12, version = version + 1
WHERE id = $1 AND version = $2`,
			row.ID, row.Version, row.Email, row.Name, row.PasswordHash, row.Active, row.PasswordChangedAt,
			row.ActivationDigest, row.ActivationExpiresAt, row.ResetDigest, row.ResetExpiresAt,
			row.UpdatedAt,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, row.ID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return auth.ErrAccountNotFound
			}
			return auth.ErrConflict
		}

		if _, err := tx.Exec(ctx, `DELETE FROM account_identities WHERE account_id = $1`, row.ID); err != nil {
			return err
		}
		return insertIdentities(ctx, tx, acc.ID, acc.Identities)
	})
	if err != nil {
		return mapErr(err)
	}
	acc.Version++
	return nil
}

func (s *Store) findOne(ctx context.Context, query string, args ...any) (*auth.Account, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgstore: query account: %w", err)
	}
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[accountRow])
	if pg.IsNotFoundError(err) {
		return nil, auth.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pgstore: scan account: %w", err)
	}

	idRows, err := s.pool.Query(ctx,
		`SELECT provider, provider_id FROM account_identities WHERE account_id = $1 ORDER BY created_at, provider`,
		row.ID)
	if err != nil {
		return nil, fmt.Errorf("pgstore: query identities: %w", err)
	}
	identities, err := pgx.CollectRows(idRows, func(r pgx.CollectableRow) (auth.Identity, error) {
		var provider, providerID string
		err := r.Scan(&provider, &providerID)
		return auth.Identity{Provider: auth.Provider(provider), ProviderID: providerID}, err
	})
	if err != nil {
		return nil, fmt.Errorf("pgstore: scan identities: %w", err)
	}

	return row.toAccount(identities), nil
}

func insertIdentities(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, ids []auth.Identity) error {
	if len(ids) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	now := time.Now()
	for i, id := range ids {
		batch.Queue(
			`INSERT INTO account_identities (provider, provider_id, account_id, created_at) VALUES ($1, $2, $3, $4)`,
			string(id.Provider), id.ProviderID, accountID, now.Add(time.Duration(i)*time.Microsecond),
		)
	}
	return tx.SendBatch(ctx, batch).Close()
}

func mapErr(err error) error {
	if errors.Is(err, auth.ErrConflict) || errors.Is(err, auth.ErrAccountNotFound) {
		return err
	}
	if pg.IsDuplicateKeyError(err) {
		switch pg.ConstraintName(err) {
		case constraintEmail:
			return auth.ErrEmailTaken
		case constraintIdentity:
			return auth.ErrAlreadyLinked
		}
	}
	return fmt.Errorf("pgstore: %w", err)
}
