package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-repository-docstore/docstore"
)

type note struct {
	Model `msgpack:",inline"`

	Title string `msgpack:"title" json:"title"`
	Body  string `msgpack:"body" json:"body"`
	Rank  int    `msgpack:"rank" json:"rank"`
}

func (n *note) Validate() error {
	return validation.ValidateStruct(n,
		validation.Field(&n.Title, validation.Required, validation.Length(1, 120)),
	)
}

func newNotesRepo(t *testing.T, softDelete bool) (Repository[*note], *docstore.MemoryStore) {
	t.Helper()
	store := docstore.NewMemoryStore()
	repo, err := New(store, Config[*note]{
		Collection: "notes",
		Handlers:   ModelHandlers[*note]{NewRecord: func() *note { return &note{} }},
		SoftDelete: softDelete,
	})
	require.NoError(t, err)
	return repo, store
}

func seedNotes(t *testing.T, repo Repository[*note], n int) []*note {
	t.Helper()
	records := make([]*note, n)
	for i := range records {
		records[i] = &note{Title: "note", Rank: i}
	}
	records, err := repo.InsertMany(context.Background(), records)
	require.NoError(t, err)
	return records
}

func TestNewConfigErrors(t *testing.T) {
	store := docstore.NewMemoryStore()
	handlers := ModelHandlers[*note]{NewRecord: func() *note { return &note{} }}

	_, err := New(nil, Config[*note]{Collection: "notes", Handlers: handlers})
	assert.True(t, IsConfigurationError(err))

	_, err = New(store, Config[*note]{Handlers: handlers})
	assert.True(t, IsConfigurationError(err))

	_, err = New(store, Config[*note]{Collection: "notes"})
	assert.True(t, IsConfigurationError(err))
}

func TestInsertOneAndFindByID(t *testing.T) {
	ctx := context.Background()
	repo, _ := newNotesRepo(t, true)

	created, err := repo.InsertOne(ctx, &note{Title: "first", Body: "hello"})
	require.NoError(t, err)
	require.NotEmpty(t, created.GetID())
	assert.False(t, created.GetCreatedAt().IsZero())
	assert.True(t, created.GetCreatedAt().Equal(created.GetUpdatedAt()))

	got, found, err := repo.FindByID(ctx, created.GetID())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, created.GetID(), got.GetID())
	assert.Equal(t, "first", got.Title)
	assert.Equal(t, "hello", got.Body)
	assert.True(t, got.GetCreatedAt().Equal(created.GetCreatedAt()))
	assert.Nil(t, got.GetDeletedAt())
}

func TestInsertOneValidation(t *testing.T) {
	repo, _ := newNotesRepo(t, true)

	_, err := repo.InsertOne(context.Background(), &note{Body: "no title"})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "notes", ve.Collection)
}

func TestCreateAliasesInsertOne(t *testing.T) {
	ctx := context.Background()
	repo, _ := newNotesRepo(t, true)

	created, err := repo.Create(ctx, &note{Title: "via create"})
	require.NoError(t, err)

	_, found, err := repo.FindByID(ctx, created.GetID())
	require.NoError(t, err)
	assert.True(t, found)
}

func TestInsertManyValidatesAll(t *testing.T) {
	repo, _ := newNotesRepo(t, true)

	records, err := repo.InsertMany(context.Background(), []*note{
		{Title: "ok"},
		{Body: "missing title"},
	})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Nil(t, records)

	// Validation failed before any insert reached the store.
	n, err := repo.Count(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFindOneAndOrFailVariants(t *testing.T) {
	ctx := context.Background()
	repo, _ := newNotesRepo(t, true)
	created, err := repo.InsertOne(ctx, &note{Title: "findme"})
	require.NoError(t, err)

	got, found, err := repo.FindOne(ctx, docstore.Filter{"title": "findme"})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, created.GetID(), got.GetID())

	_, found, err = repo.FindOne(ctx, docstore.Filter{"title": "nope"})
	require.NoError(t, err)
	assert.False(t, found)

	_, err = repo.FindOneOrFail(ctx, docstore.Filter{"title": "nope"})
	assert.True(t, IsNotFoundError(err))

	_, err = repo.FindByIDOrFail(ctx, "missing-id")
	require.Error(t, err)
	var nfe *NotFoundError
	require.ErrorAs(t, err, &nfe)
	assert.Equal(t, "missing-id", nfe.ID)
	assert.Equal(t, "notes", nfe.Collection)
}

func TestFindWithOptions(t *testing.T) {
	ctx := context.Background()
	repo, _ := newNotesRepo(t, true)
	seedNotes(t, repo, 5)

	records, err := repo.Find(ctx, nil,
		WithSort("rank", true),
		WithSkip(1),
		WithLimit(2),
	)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 3, records[0].Rank)
	assert.Equal(t, 2, records[1].Rank)
}

func TestFindPaginated(t *testing.T) {
	ctx := context.Background()
	repo, _ := newNotesRepo(t, true)
	seedNotes(t, repo, 25)

	first, err := repo.FindPaginated(ctx, nil, 1, 10)
	require.NoError(t, err)
	assert.Len(t, first.Data, 10)
	assert.Equal(t, int64(25), first.Total)
	assert.Equal(t, 3, first.TotalPages)
	assert.True(t, first.HasNext)
	assert.False(t, first.HasPrev)

	last, err := repo.FindPaginated(ctx, nil, 3, 10)
	require.NoError(t, err)
	assert.Len(t, last.Data, 5)
	assert.False(t, last.HasNext)
	assert.True(t, last.HasPrev)

	// Pages partition the collection: no record repeats, none is skipped.
	seen := map[string]bool{}
	for page := 1; page <= 3; page++ {
		p, err := repo.FindPaginated(ctx, nil, page, 10)
		require.NoError(t, err)
		for _, rec := range p.Data {
			assert.False(t, seen[rec.GetID()])
			seen[rec.GetID()] = true
		}
	}
	assert.Len(t, seen, 25)

	// Page past the end is empty, not an error.
	empty, err := repo.FindPaginated(ctx, nil, 9, 10)
	require.NoError(t, err)
	assert.Empty(t, empty.Data)
	assert.Equal(t, int64(25), empty.Total)

	// Out-of-range page and limit fall back to sane defaults.
	defaulted, err := repo.FindPaginated(ctx, nil, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, defaulted.Page)
	assert.Equal(t, DefaultPageLimit, defaulted.Limit)
	assert.Len(t, defaulted.Data, DefaultPageLimit)
}

func TestFindByIDs(t *testing.T) {
	ctx := context.Background()
	repo, _ := newNotesRepo(t, true)
	records := seedNotes(t, repo, 3)

	got, err := repo.FindByIDs(ctx, []string{
		records[0].GetID(),
		records[2].GetID(),
		"missing",
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, records[0].Rank, got[records[0].GetID()].Rank)
	assert.Equal(t, records[2].Rank, got[records[2].GetID()].Rank)
	_, ok := got["missing"]
	assert.False(t, ok)

	empty, err := repo.FindByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestUpdateOneStripsManagedFields(t *testing.T) {
	ctx := context.Background()
	repo, _ := newNotesRepo(t, true)
	created, err := repo.InsertOne(ctx, &note{Title: "before"})
	require.NoError(t, err)

	updated, found, err := repo.UpdateOne(ctx, created.GetID(), docstore.Document{
		"title":     "after",
		"id":        "hijacked",
		"createdAt": time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC),
		"deletedAt": time.Now(),
	})
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, "after", updated.Title)
	assert.Equal(t, created.GetID(), updated.GetID())
	assert.True(t, updated.GetCreatedAt().Equal(created.GetCreatedAt()))
	assert.Nil(t, updated.GetDeletedAt())
	assert.False(t, updated.GetUpdatedAt().Before(created.GetUpdatedAt()))

	_, found, err = repo.UpdateOne(ctx, "missing", docstore.Document{"title": "x"})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUpdateOneByFilter(t *testing.T) {
	ctx := context.Background()
	repo, _ := newNotesRepo(t, true)
	seedNotes(t, repo, 3)

	updated, found, err := repo.UpdateOneByFilter(ctx,
		docstore.Filter{"rank": 1},
		docstore.Document{"body": "patched"},
	)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "patched", updated.Body)
	assert.Equal(t, 1, updated.Rank)
}

func TestUpdateMany(t *testing.T) {
	ctx := context.Background()
	repo, _ := newNotesRepo(t, true)
	seedNotes(t, repo, 4)

	n, err := repo.UpdateMany(ctx,
		docstore.Filter{"rank": docstore.Gte(2)},
		docstore.Document{"body": "bulk"},
	)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	patched, err := repo.Find(ctx, docstore.Filter{"body": "bulk"})
	require.NoError(t, err)
	assert.Len(t, patched, 2)
}

func TestBatchUpdate(t *testing.T) {
	ctx := context.Background()
	repo, _ := newNotesRepo(t, true)
	records := seedNotes(t, repo, 3)

	n, err := repo.BatchUpdate(ctx, []IDPatch{
		{ID: records[0].GetID(), Patch: docstore.Document{"body": "zero"}},
		{ID: records[1].GetID(), Patch: docstore.Document{"body": "one"}},
		{ID: "missing", Patch: docstore.Document{"body": "never"}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, _, err := repo.FindByID(ctx, records[1].GetID())
	require.NoError(t, err)
	assert.Equal(t, "one", got.Body)

	n, err = repo.BatchUpdate(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSoftDeleteAndRestore(t *testing.T) {
	ctx := context.Background()
	repo, store := newNotesRepo(t, true)
	created, err := repo.InsertOne(ctx, &note{Title: "ephemeral"})
	require.NoError(t, err)

	deleted, err := repo.DeleteOne(ctx, created.GetID())
	require.NoError(t, err)
	assert.True(t, deleted)

	// Invisible through the repository.
	_, found, err := repo.FindByID(ctx, created.GetID())
	require.NoError(t, err)
	assert.False(t, found)
	n, err := repo.Count(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	// Still physically present in the store.
	raw, err := store.Collection("notes").CountDocuments(ctx, docstore.Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), raw)

	restored, found, err := repo.Restore(ctx, created.GetID())
	require.NoError(t, err)
	require.True(t, found)
	assert.Nil(t, restored.GetDeletedAt())

	_, found, err = repo.FindByID(ctx, created.GetID())
	require.NoError(t, err)
	assert.True(t, found)

	// Restoring a live record is a no-op miss.
	_, found, err = repo.Restore(ctx, created.GetID())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDeleteOneIdempotent(t *testing.T) {
	ctx := context.Background()
	repo, _ := newNotesRepo(t, true)
	created, err := repo.InsertOne(ctx, &note{Title: "once"})
	require.NoError(t, err)

	deleted, err := repo.DeleteOne(ctx, created.GetID())
	require.NoError(t, err)
	assert.True(t, deleted)

	// The record is already out of scope, so a second delete misses.
	deleted, err = repo.DeleteOne(ctx, created.GetID())
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestRestoreRequiresSoftDelete(t *testing.T) {
	repo, _ := newNotesRepo(t, false)

	_, _, err := repo.Restore(context.Background(), "any")
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
}

func TestHardDeleteOne(t *testing.T) {
	ctx := context.Background()
	repo, store := newNotesRepo(t, true)
	created, err := repo.InsertOne(ctx, &note{Title: "gone"})
	require.NoError(t, err)

	deleted, err := repo.HardDeleteOne(ctx, created.GetID())
	require.NoError(t, err)
	assert.True(t, deleted)

	raw, err := store.Collection("notes").CountDocuments(ctx, docstore.Filter{})
	require.NoError(t, err)
	assert.Zero(t, raw)

	deleted, err = repo.HardDeleteOne(ctx, created.GetID())
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestHardDeleteReachesSoftDeletedRecords(t *testing.T) {
	ctx := context.Background()
	repo, store := newNotesRepo(t, true)
	created, err := repo.InsertOne(ctx, &note{Title: "doomed"})
	require.NoError(t, err)

	_, err = repo.DeleteOne(ctx, created.GetID())
	require.NoError(t, err)

	deleted, err := repo.HardDeleteOne(ctx, created.GetID())
	require.NoError(t, err)
	assert.True(t, deleted)

	raw, err := store.Collection("notes").CountDocuments(ctx, docstore.Filter{})
	require.NoError(t, err)
	assert.Zero(t, raw)
}

func TestBatchDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("soft", func(t *testing.T) {
		repo, store := newNotesRepo(t, true)
		records := seedNotes(t, repo, 3)

		n, err := repo.BatchDelete(ctx, []string{records[0].GetID(), records[1].GetID(), "missing"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		visible, err := repo.Count(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(1), visible)

		raw, err := store.Collection("notes").CountDocuments(ctx, docstore.Filter{})
		require.NoError(t, err)
		assert.Equal(t, int64(3), raw)
	})

	t.Run("hard", func(t *testing.T) {
		repo, store := newNotesRepo(t, false)
		records := seedNotes(t, repo, 3)

		n, err := repo.BatchDelete(ctx, []string{records[0].GetID(), records[2].GetID()})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		raw, err := store.Collection("notes").CountDocuments(ctx, docstore.Filter{})
		require.NoError(t, err)
		assert.Equal(t, int64(1), raw)
	})

	t.Run("empty", func(t *testing.T) {
		repo, _ := newNotesRepo(t, true)
		n, err := repo.BatchDelete(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestCountAndExists(t *testing.T) {
	ctx := context.Background()
	repo, _ := newNotesRepo(t, true)
	seedNotes(t, repo, 3)

	n, err := repo.Count(ctx, docstore.Filter{"rank": docstore.Gt(0)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ok, err := repo.Exists(ctx, docstore.Filter{"rank": 1})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Exists(ctx, docstore.Filter{"rank": 99})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAggregatePassesThrough(t *testing.T) {
	ctx := context.Background()
	repo, _ := newNotesRepo(t, true)
	seedNotes(t, repo, 4)

	docs, err := repo.Aggregate(ctx, docstore.Pipeline{
		docstore.MatchStage{Filter: docstore.Filter{"rank": docstore.Gte(2)}},
		docstore.CountStage{},
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, int64(2), docs[0]["count"])
}

func TestWithTransactionRollback(t *testing.T) {
	ctx := context.Background()
	repo, _ := newNotesRepo(t, true)
	seedNotes(t, repo, 1)

	boom := errors.New("boom")
	err := repo.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := repo.InsertOne(txCtx, &note{Title: "uncommitted"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	n, err := repo.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSchemaless(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	repo, err := New(store, Config[*note]{
		Collection: "notes",
		Schema:     Schemaless[*note](),
		Handlers:   ModelHandlers[*note]{NewRecord: func() *note { return &note{} }},
	})
	require.NoError(t, err)

	// A record the default rules would reject passes untouched.
	_, err = repo.InsertOne(ctx, &note{Body: "no title"})
	require.NoError(t, err)
}
