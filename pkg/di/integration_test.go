package di

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-repository-docstore/docstore"
	"github.com/goliatone/go-repository-docstore/pkg/repos"
)

// Wires the full stack the way an application would: container, memory
// cache, cached repository, domain wrapper. Exercises the read-through
// and invalidation cycle end to end.
func TestCachedUsersEndToEnd(t *testing.T) {
	ctx := context.Background()

	container, err := NewContainer(docstore.NewMemoryStore(), Config{
		CacheDriver: "memory",
		CacheTTL:    time.Minute,
		KeyPrefix:   "integration",
	})
	require.NoError(t, err)

	cached, err := NewCachedRepository(container, repos.UserConfig())
	require.NoError(t, err)
	users := repos.WrapUsers(cached)

	created, err := users.InsertOne(ctx, &repos.User{
		Email: "ada@example.com", Name: "Ada", Plan: repos.PlanFree,
	})
	require.NoError(t, err)

	// Cold read populates the cache in the background.
	got, found, err := users.FindByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, created.GetID(), got.GetID())

	svc := container.CacheService()
	require.Eventually(t, func() bool {
		return svc.Stats().Sets > 0
	}, time.Second, 5*time.Millisecond, "cache population never landed")

	// Warm read hits the cache.
	hitsBefore := svc.Stats().Hits
	got, found, err = users.FindByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, repos.PlanFree, got.Plan)
	assert.Greater(t, svc.Stats().Hits, hitsBefore)

	// A write through the decorated repository invalidates, so the next
	// read observes the new state.
	_, found, err = users.ChangePlan(ctx, created.GetID(), repos.PlanPro)
	require.NoError(t, err)
	require.True(t, found)

	got, found, err = users.FindByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, repos.PlanPro, got.Plan)
}

func TestCachedUsersTransactionEndToEnd(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()

	container, err := NewContainer(store, Config{CacheDriver: "memory", KeyPrefix: "txn"})
	require.NoError(t, err)

	cached, err := NewCachedRepository(container, repos.UserConfig())
	require.NoError(t, err)
	users := repos.WrapUsers(cached)

	err = users.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := users.InsertOne(txCtx, &repos.User{
			Email: "grace@example.com", Name: "Grace", Plan: repos.PlanPro,
		}); err != nil {
			return err
		}
		_, found, err := users.FindByEmail(txCtx, "grace@example.com")
		if err != nil {
			return err
		}
		assert.True(t, found, "transactional read must see the uncommitted insert")
		return nil
	})
	require.NoError(t, err)

	_, found, err := users.FindByEmail(ctx, "grace@example.com")
	require.NoError(t, err)
	assert.True(t, found)
}
