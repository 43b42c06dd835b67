// Package docstore defines the document store contract the repository
// layer is built against, together with an in-memory reference
// implementation used for tests and local development.
//
// A Store hands out named Collections exposing mongo-style operations:
// filtered finds with limit/skip/sort, inserts, merge updates,
// find-one-and-update with post-update semantics, deletes, counts, bulk
// writes, and a small aggregation pipeline. Multi-operation atomicity is
// provided by WithTransaction; the active session travels through the
// context so callers never thread session handles by hand.
package docstore

import (
	"context"
	"errors"
)

// ErrNoDocuments is returned by FindOne and FindOneAndUpdate when no
// document matches the filter. Absence is a normal outcome for callers;
// it is never wrapped with additional context at this layer.
var ErrNoDocuments = errors.New("docstore: no documents in result")

// Document is the wire shape of a single record inside a collection.
type Document = map[string]any

// Store provides access to named collections and transaction scoping.
type Store interface {
	// Collection returns a handle to the named collection, creating it
	// lazily on first use.
	Collection(name string) Collection

	// WithTransaction executes fn inside a transaction. The session is
	// injected into the context passed to fn; every collection operation
	// issued with that context joins the transaction. The store commits
	// when fn returns nil and rolls back when it returns an error.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Collection exposes the per-collection operation set.
type Collection interface {
	Name() string

	FindOne(ctx context.Context, filter Filter) (Document, error)
	Find(ctx context.Context, filter Filter, opts FindOptions) ([]Document, error)
	CountDocuments(ctx context.Context, filter Filter) (int64, error)

	// InsertOne stores the document and returns its identifier. When the
	// document carries no "id" field the store assigns one.
	InsertOne(ctx context.Context, doc Document) (string, error)
	InsertMany(ctx context.Context, docs []Document) ([]string, error)

	// FindOneAndUpdate applies the update to the first matching document
	// and returns the post-update document, or ErrNoDocuments.
	FindOneAndUpdate(ctx context.Context, filter Filter, update Update) (Document, error)
	UpdateOne(ctx context.Context, filter Filter, update Update) (int64, error)
	UpdateMany(ctx context.Context, filter Filter, update Update) (int64, error)

	DeleteOne(ctx context.Context, filter Filter) (int64, error)
	DeleteMany(ctx context.Context, filter Filter) (int64, error)

	BulkWrite(ctx context.Context, ops []WriteOp) (BulkResult, error)
	Aggregate(ctx context.Context, pipeline Pipeline) ([]Document, error)
}

// Update describes a merge-style mutation: Set fields are merged into the
// document, Unset fields are removed. Fields not named are left untouched.
type Update struct {
	Set   Document
	Unset []string
}

// WriteKind discriminates bulk write operations.
type WriteKind int

const (
	WriteInsert WriteKind = iota
	WriteUpdateOne
	WriteDeleteOne
)

// WriteOp is a single entry in a BulkWrite batch.
type WriteOp struct {
	Kind     WriteKind
	Filter   Filter
	Update   Update
	Document Document
}

// BulkResult reports how many documents a BulkWrite touched.
type BulkResult struct {
	Inserted int64
	Modified int64
	Deleted  int64
}

type sessionContextKey struct{}

// Session marks a context as participating in a store transaction.
// Callers treat it as opaque; the caching layer only checks for presence.
type Session struct {
	id string
}

// ID returns the session identifier, useful for debug logging.
func (s *Session) ID() string {
	if s == nil {
		return ""
	}
	return s.id
}

// WithSession returns a context carrying the transaction session.
func WithSession(ctx context.Context, s *Session) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if s == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionContextKey{}, s)
}

// SessionFromContext reports the active transaction session, if any.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(sessionContextKey{}).(*Session)
	return s, ok && s != nil
}
