package repos

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-repository-docstore/pkg/testsupport"
	"github.com/goliatone/go-repository-docstore/repository"
)

const testDigest = "5f4dcc3b5aa765d61d8327deb882cf99"

func newAPIKeys(t *testing.T) *APIKeys {
	t.Helper()
	keys, err := NewAPIKeys(testsupport.NewStore(t))
	require.NoError(t, err)
	return keys
}

func TestAPIKeyValidation(t *testing.T) {
	keys := newAPIKeys(t)
	ctx := context.Background()

	_, err := keys.InsertOne(ctx, &APIKey{Digest: testDigest})
	assert.True(t, repository.IsValidationError(err), "missing user id must fail")

	_, err = keys.InsertOne(ctx, &APIKey{UserID: "u-1", Digest: "short"})
	assert.True(t, repository.IsValidationError(err), "short digest must fail")
}

func TestAPIKeysFindByDigest(t *testing.T) {
	keys := newAPIKeys(t)
	ctx := context.Background()

	created, err := keys.InsertOne(ctx, &APIKey{UserID: "u-1", Digest: testDigest, Label: "ci"})
	require.NoError(t, err)

	key, found, err := keys.FindByDigest(ctx, testDigest)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, created.ID, key.ID)
	assert.Equal(t, "ci", key.Label)

	_, found, err = keys.FindByDigest(ctx, "0000000000000000")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAPIKeysFindByUser(t *testing.T) {
	keys := newAPIKeys(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := keys.InsertOne(ctx, &APIKey{
			UserID: "u-1",
			Digest: testDigest + string(rune('a'+i)),
		})
		require.NoError(t, err)
	}
	_, err := keys.InsertOne(ctx, &APIKey{UserID: "u-2", Digest: testDigest + "z"})
	require.NoError(t, err)

	mine, err := keys.FindByUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Len(t, mine, 3)
	for _, key := range mine {
		assert.Equal(t, "u-1", key.UserID)
	}
}

func TestAPIKeysTouchLastUsed(t *testing.T) {
	keys := newAPIKeys(t)
	ctx := context.Background()

	created, err := keys.InsertOne(ctx, &APIKey{UserID: "u-1", Digest: testDigest})
	require.NoError(t, err)
	require.Nil(t, created.LastUsedAt)

	at := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	found, err := keys.TouchLastUsed(ctx, created.ID, at)
	require.NoError(t, err)
	require.True(t, found)

	key, _, err := keys.FindByDigest(ctx, testDigest)
	require.NoError(t, err)
	require.NotNil(t, key.LastUsedAt)
	assert.True(t, key.LastUsedAt.Equal(at))

	found, err = keys.TouchLastUsed(ctx, "missing", at)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAPIKeysRevokeForUser(t *testing.T) {
	keys := newAPIKeys(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := keys.InsertOne(ctx, &APIKey{UserID: "u-1", Digest: testDigest + string(rune('a'+i))})
		require.NoError(t, err)
	}
	_, err := keys.InsertOne(ctx, &APIKey{UserID: "u-2", Digest: testDigest + "z"})
	require.NoError(t, err)

	n, err := keys.RevokeForUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// Hard delete: the records are gone, not marked.
	total, err := keys.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	n, err = keys.RevokeForUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAPIKeysPurgeExpired(t *testing.T) {
	keys := newAPIKeys(t)
	ctx := context.Background()
	now := time.Now().UTC()

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	_, err := keys.InsertOne(ctx, &APIKey{UserID: "u-1", Digest: testDigest + "a", ExpiresAt: &past})
	require.NoError(t, err)
	_, err = keys.InsertOne(ctx, &APIKey{UserID: "u-1", Digest: testDigest + "b", ExpiresAt: &future})
	require.NoError(t, err)
	// No expiry set at all.
	_, err = keys.InsertOne(ctx, &APIKey{UserID: "u-1", Digest: testDigest + "c"})
	require.NoError(t, err)

	n, err := keys.PurgeExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	total, err := keys.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}
