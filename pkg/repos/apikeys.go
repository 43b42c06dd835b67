package repos

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/goliatone/go-repository-docstore/docstore"
	"github.com/goliatone/go-repository-docstore/repository"
)

// APIKey is a credential record. Only the digest of the secret is
// persisted, never the secret itself. Keys are hard-deleted: a revoked
// credential has no business being restorable.
type APIKey struct {
	repository.Model `msgpack:",inline"`

	UserID     string     `msgpack:"userId" json:"userId"`
	Digest     string     `msgpack:"digest" json:"digest"`
	Label      string     `msgpack:"label" json:"label"`
	ExpiresAt  *time.Time `msgpack:"expiresAt,omitempty" json:"expiresAt,omitempty"`
	LastUsedAt *time.Time `msgpack:"lastUsedAt,omitempty" json:"lastUsedAt,omitempty"`
}

func (k *APIKey) Validate() error {
	return validation.ValidateStruct(k,
		validation.Field(&k.UserID, validation.Required),
		validation.Field(&k.Digest, validation.Required, validation.Length(16, 128)),
		validation.Field(&k.Label, validation.Length(0, 80)),
	)
}

// APIKeys provides query access to the api_keys collection.
type APIKeys struct {
	repository.Repository[*APIKey]
}

// APIKeyConfig returns the repository binding for the api_keys collection.
func APIKeyConfig() repository.Config[*APIKey] {
	return repository.Config[*APIKey]{
		Collection: "api_keys",
		Schema:     repository.Rules[*APIKey](),
		Handlers:   repository.ModelHandlers[*APIKey]{NewRecord: func() *APIKey { return &APIKey{} }},
	}
}

// NewAPIKeys builds an APIKeys repository over the given store.
func NewAPIKeys(store docstore.Store) (*APIKeys, error) {
	base, err := repository.New(store, APIKeyConfig())
	if err != nil {
		return nil, err
	}
	return &APIKeys{Repository: base}, nil
}

// WrapAPIKeys builds an APIKeys repository around an existing generic
// repository, typically a cached one.
func WrapAPIKeys(base repository.Repository[*APIKey]) *APIKeys {
	return &APIKeys{Repository: base}
}

// FindByDigest resolves a key by its secret digest. The hot path of
// request authentication, and the main beneficiary of the read cache.
func (k *APIKeys) FindByDigest(ctx context.Context, digest string) (*APIKey, bool, error) {
	return k.FindOne(ctx, docstore.Filter{"digest": digest})
}

// FindByUser lists a user's keys, newest first.
func (k *APIKeys) FindByUser(ctx context.Context, userID string) ([]*APIKey, error) {
	return k.Find(ctx, docstore.Filter{"userId": userID}, repository.WithSort("createdAt", true))
}

// TouchLastUsed stamps the key's last-use time.
func (k *APIKeys) TouchLastUsed(ctx context.Context, id string, at time.Time) (bool, error) {
	_, found, err := k.UpdateOne(ctx, id, docstore.Document{"lastUsedAt": at.UTC()})
	return found, err
}

// RevokeForUser deletes every key belonging to the user in one batch.
func (k *APIKeys) RevokeForUser(ctx context.Context, userID string) (int64, error) {
	keys, err := k.FindByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	ids := make([]string, len(keys))
	for i, key := range keys {
		ids[i] = key.ID
	}
	return k.BatchDelete(ctx, ids)
}

// PurgeExpired removes keys whose expiry is in the past. Retention
// cleanup; runs a true delete regardless of age.
func (k *APIKeys) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	expired, err := k.Find(ctx, docstore.Filter{"expiresAt": docstore.Lt(now.UTC())})
	if err != nil {
		return 0, err
	}
	ids := make([]string, len(expired))
	for i, key := range expired {
		ids[i] = key.ID
	}
	return k.BatchDelete(ctx, ids)
}
