package docstore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

// MemoryStore is an in-process Store implementation. It keeps every
// collection in memory, assigns uuid identifiers on insert, and supports
// transactions by serializing them behind a store-wide gate with
// snapshot/restore rollback.
//
// It exists for tests, examples, and local development; production
// deployments plug in a real document database behind the same Store
// interface.
type MemoryStore struct {
	collections *xsync.MapOf[string, *memoryCollection]

	// txMu gates mutations during a transaction: normal operations hold
	// the read side, a transaction holds the write side for its duration.
	// active is atomic because enter must read it without the lock; the
	// running transaction itself holds the write side.
	txMu   sync.RWMutex
	active atomic.Pointer[Session]
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: xsync.NewMapOf[string, *memoryCollection](),
	}
}

// Collection returns the named collection, creating it on first use.
func (s *MemoryStore) Collection(name string) Collection {
	col, _ := s.collections.LoadOrCompute(name, func() *memoryCollection {
		return &memoryCollection{
			store: s,
			name:  name,
			docs:  make(map[string]Document),
		}
	})
	return col
}

// WithTransaction runs fn atomically. The store state is snapshotted up
// front; if fn returns an error the snapshot is restored and the error
// propagated unchanged. Transactions are serialized with respect to each
// other and to all other operations.
func (s *MemoryStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := SessionFromContext(ctx); ok {
		return fmt.Errorf("docstore: nested transactions are not supported")
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	sess := &Session{id: uuid.NewString()}
	s.active.Store(sess)
	defer s.active.Store(nil)

	snapshot := s.snapshot()
	if err := fn(WithSession(ctx, sess)); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

// enter acquires the transaction gate for a single operation, unless the
// operation already runs inside the active transaction. The returned
// func releases whatever was acquired.
func (s *MemoryStore) enter(ctx context.Context) func() {
	if sess, ok := SessionFromContext(ctx); ok && sess == s.active.Load() {
		return func() {}
	}
	s.txMu.RLock()
	return s.txMu.RUnlock
}

type collectionState struct {
	docs  map[string]Document
	order []string
}

func (s *MemoryStore) snapshot() map[string]collectionState {
	states := make(map[string]collectionState)
	s.collections.Range(func(name string, col *memoryCollection) bool {
		col.mu.RLock()
		st := collectionState{
			docs:  make(map[string]Document, len(col.docs)),
			order: append([]string(nil), col.order...),
		}
		for id, doc := range col.docs {
			st.docs[id] = cloneDocument(doc)
		}
		col.mu.RUnlock()
		states[name] = st
		return true
	})
	return states
}

func (s *MemoryStore) restore(states map[string]collectionState) {
	s.collections.Range(func(name string, col *memoryCollection) bool {
		col.mu.Lock()
		if st, ok := states[name]; ok {
			col.docs = st.docs
			col.order = st.order
		} else {
			// Collection created inside the failed transaction.
			col.docs = make(map[string]Document)
			col.order = nil
		}
		col.mu.Unlock()
		return true
	})
}

type memoryCollection struct {
	store *MemoryStore
	name  string

	mu    sync.RWMutex
	docs  map[string]Document
	order []string
}

func (c *memoryCollection) Name() string { return c.name }

func (c *memoryCollection) FindOne(ctx context.Context, filter Filter) (Document, error) {
	defer c.store.enter(ctx)()
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, id := range c.order {
		if doc := c.docs[id]; filter.Matches(doc) {
			return cloneDocument(doc), nil
		}
	}
	return nil, ErrNoDocuments
}

func (c *memoryCollection) Find(ctx context.Context, filter Filter, opts FindOptions) ([]Document, error) {
	defer c.store.enter(ctx)()
	c.mu.RLock()
	matched := c.matchLocked(filter)
	c.mu.RUnlock()

	sortDocuments(matched, opts.Sort)

	if opts.Skip > 0 {
		if opts.Skip >= len(matched) {
			return nil, nil
		}
		matched = matched[opts.Skip:]
	}
	if opts.Limit > 0 && opts.Limit < len(matched) {
		matched = matched[:opts.Limit]
	}
	return matched, nil
}

func (c *memoryCollection) CountDocuments(ctx context.Context, filter Filter) (int64, error) {
	defer c.store.enter(ctx)()
	c.mu.RLock()
	defer c.mu.RUnlock()

	var n int64
	for _, id := range c.order {
		if filter.Matches(c.docs[id]) {
			n++
		}
	}
	return n, nil
}

func (c *memoryCollection) InsertOne(ctx context.Context, doc Document) (string, error) {
	defer c.store.enter(ctx)()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.insertLocked(doc)
}

func (c *memoryCollection) InsertMany(ctx context.Context, docs []Document) ([]string, error) {
	defer c.store.enter(ctx)()
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		id, err := c.insertLocked(doc)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *memoryCollection) insertLocked(doc Document) (string, error) {
	stored := cloneDocument(doc)
	id, _ := stored["id"].(string)
	if id == "" {
		id = uuid.NewString()
		stored["id"] = id
	}
	if _, exists := c.docs[id]; exists {
		return "", fmt.Errorf("docstore: duplicate id %q in collection %s", id, c.name)
	}
	c.docs[id] = stored
	c.order = append(c.order, id)
	return id, nil
}

func (c *memoryCollection) FindOneAndUpdate(ctx context.Context, filter Filter, update Update) (Document, error) {
	defer c.store.enter(ctx)()
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range c.order {
		doc := c.docs[id]
		if !filter.Matches(doc) {
			continue
		}
		applyUpdate(doc, update)
		return cloneDocument(doc), nil
	}
	return nil, ErrNoDocuments
}

func (c *memoryCollection) UpdateOne(ctx context.Context, filter Filter, update Update) (int64, error) {
	defer c.store.enter(ctx)()
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range c.order {
		doc := c.docs[id]
		if filter.Matches(doc) {
			applyUpdate(doc, update)
			return 1, nil
		}
	}
	return 0, nil
}

func (c *memoryCollection) UpdateMany(ctx context.Context, filter Filter, update Update) (int64, error) {
	defer c.store.enter(ctx)()
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int64
	for _, id := range c.order {
		doc := c.docs[id]
		if filter.Matches(doc) {
			applyUpdate(doc, update)
			n++
		}
	}
	return n, nil
}

func (c *memoryCollection) DeleteOne(ctx context.Context, filter Filter) (int64, error) {
	defer c.store.enter(ctx)()
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, id := range c.order {
		if filter.Matches(c.docs[id]) {
			delete(c.docs, id)
			c.order = append(c.order[:i], c.order[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (c *memoryCollection) DeleteMany(ctx context.Context, filter Filter) (int64, error) {
	defer c.store.enter(ctx)()
	c.mu.Lock()
	defer c.mu.Unlock()

	var deleted int64
	kept := c.order[:0]
	for _, id := range c.order {
		if filter.Matches(c.docs[id]) {
			delete(c.docs, id)
			deleted++
			continue
		}
		kept = append(kept, id)
	}
	c.order = kept
	return deleted, nil
}

func (c *memoryCollection) BulkWrite(ctx context.Context, ops []WriteOp) (BulkResult, error) {
	defer c.store.enter(ctx)()
	c.mu.Lock()
	defer c.mu.Unlock()

	var res BulkResult
	for _, op := range ops {
		switch op.Kind {
		case WriteInsert:
			if _, err := c.insertLocked(op.Document); err != nil {
				return res, err
			}
			res.Inserted++
		case WriteUpdateOne:
			for _, id := range c.order {
				doc := c.docs[id]
				if op.Filter.Matches(doc) {
					applyUpdate(doc, op.Update)
					res.Modified++
					break
				}
			}
		case WriteDeleteOne:
			for i, id := range c.order {
				if op.Filter.Matches(c.docs[id]) {
					delete(c.docs, id)
					c.order = append(c.order[:i], c.order[i+1:]...)
					res.Deleted++
					break
				}
			}
		default:
			return res, fmt.Errorf("docstore: unsupported bulk write kind %d", op.Kind)
		}
	}
	return res, nil
}

func (c *memoryCollection) Aggregate(ctx context.Context, pipeline Pipeline) ([]Document, error) {
	defer c.store.enter(ctx)()
	c.mu.RLock()
	working := c.matchLocked(Filter{})
	c.mu.RUnlock()

	return runPipeline(working, pipeline)
}

// Truncate drops every document in the collection. Test seeding helper,
// not part of the Collection interface.
func (c *memoryCollection) Truncate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = make(map[string]Document)
	c.order = nil
}

func (c *memoryCollection) matchLocked(filter Filter) []Document {
	var matched []Document
	for _, id := range c.order {
		if doc := c.docs[id]; filter.Matches(doc) {
			matched = append(matched, cloneDocument(doc))
		}
	}
	return matched
}

func applyUpdate(doc Document, update Update) {
	for k, v := range update.Set {
		doc[k] = cloneValue(v)
	}
	for _, k := range update.Unset {
		delete(doc, k)
	}
}

func cloneDocument(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch tv := v.(type) {
	case Document:
		return cloneDocument(tv)
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = cloneValue(e)
		}
		return out
	case time.Time:
		return tv
	default:
		return v
	}
}
