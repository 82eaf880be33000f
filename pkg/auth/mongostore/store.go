// Package mongostore implements auth.Store on MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/accountkit/pkg/auth"
	mongox "github.com/dmitrymomot/accountkit/pkg/mongo"
)

const (
	// DefaultCollection is the collection used by New.
	DefaultCollection = "accounts"

	indexEmail      = "email_unique"
	indexIdentity   = "identity_keys_unique"
	indexActivation = "activation_digest_unique"
	indexReset      = "reset_digest_unique"
)

// Store is a MongoDB auth.Store. One document per account; identities are
// embedded and mirrored into identity_keys for the unique index.
type Store struct {
	coll *mongo.Collection
}

// New returns a Store over the accounts collection of db. Call EnsureIndexes
// before use.
func New(db *mongo.Database) *Store {
	return &Store{coll: db.Collection(DefaultCollection)}
}

var _ auth.Store = (*Store)(nil)

// EnsureIndexes creates the unique indexes the store relies on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName(indexEmail).SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "identity_keys", Value: 1}},
			Options: options.Index().SetName(indexIdentity).SetUnique(true).SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "activation.digest", Value: 1}},
			Options: options.Index().SetName(indexActivation).SetUnique(true).SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "reset.digest", Value: 1}},
			Options: options.Index().SetName(indexReset).SetUnique(true).SetSparse(true),
		},
	})
	if err != nil {
		return fmt.Errorf("mongostore: create indexes: %w", err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, acc *auth.Account) error {
	doc := toDoc(acc)
	doc.Version = 0
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return mapErr(err)
	}
	acc.Version = 0
	return nil
}

func (s *Store) FindByID(ctx context.Context, id uuid.UUID) (*auth.Account, error) {
	return s.findOne(ctx, bson.M{"_id": id.String()})
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *Store) FindByIdentity(ctx context.Context, id auth.Identity) (*auth.Account, error) {
	return s.findOne(ctx, bson.M{"identity_keys": identityKey(id)})
}

func (s *Store) FindByTokenDigest(ctx context.Context, kind auth.TokenKind, digest string) (*auth.Account, error) {
	switch kind {
	case auth.TokenActivation:
		return s.findOne(ctx, bson.M{"activation.digest": digest})
	case auth.TokenReset:
		return s.findOne(ctx, bson.M{"reset.digest": digest})
	default:
		return nil, auth.ErrAccountNotFound
	}
}

// Update replaces the document only while its version still matches.
func (s *Store) Update(ctx context.Context, acc *auth.Account) error {
	doc := toDoc(acc)
	doc.Version = acc.Version + 1

	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID, "version": acc.Version}, doc)
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		n, err := s.coll.CountDocuments(ctx, bson.M{"_id": doc.ID}, options.Count().SetLimit(1))
		if err != nil {
			return fmt.Errorf("mongostore: %w", err)
		}
		if n == 0 {
			return auth.ErrAccountNotFound
		}
		return auth.ErrConflict
	}
	acc.Version++
	return nil
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (*auth.Account, error) {
	var doc accountDoc
	err := s.coll.FindOne(ctx, filter).Decode(&doc)
	if mongox.IsNotFoundError(err) {
		return nil, auth.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongostore: find account: %w", err)
	}
	return doc.toAccount()
}

func mapErr(err error) error {
	if mongox.IsDuplicateKeyError(err) {
		msg := err.Error()
		switch {
		case strings.Contains(msg, indexEmail):
			return auth.ErrEmailTaken
		case strings.Contains(msg, indexIdentity):
			return auth.ErrAlreadyLinked
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("mongostore: %w", err)
}
