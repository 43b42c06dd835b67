// Package repository provides a generic, schema-validated CRUD and
// pagination contract over a single document store collection, with
// optional soft-delete semantics.
//
// A repository is bound at construction to a collection name, a Schema,
// and a soft-delete flag; the binding is immutable and repositories hold
// no other mutable state, so instances are safe to share across
// concurrent requests. Every write funnels through the bound schema and
// stamps the managed timestamps; every read transparently excludes
// soft-deleted records when that mode is enabled.
package repository

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-repository-docstore/docstore"
	"github.com/goliatone/go-repository-docstore/internal/logging"
)

// IDPatch pairs a record identifier with the fields to merge into it.
// Used by BatchUpdate to apply heterogeneous patches in one round trip.
type IDPatch struct {
	ID    string
	Patch docstore.Document
}

// Repository is the uniform operation surface over one collection. The
// caching decorator implements the same interface, so callers cannot
// tell a decorated repository from a bare one.
type Repository[T Entity] interface {
	// Collection returns the bound collection name.
	Collection() string

	FindByID(ctx context.Context, id string) (T, bool, error)
	FindByIDOrFail(ctx context.Context, id string) (T, error)
	FindOne(ctx context.Context, filter docstore.Filter) (T, bool, error)
	FindOneOrFail(ctx context.Context, filter docstore.Filter) (T, error)
	Find(ctx context.Context, filter docstore.Filter, opts ...FindOption) ([]T, error)
	FindPaginated(ctx context.Context, filter docstore.Filter, page, limit int) (Page[T], error)

	// FindByIDs resolves a batch of identifiers in one query, returning a
	// map keyed by id. Ids with no match are silently omitted.
	FindByIDs(ctx context.Context, ids []string) (map[string]T, error)

	InsertOne(ctx context.Context, record T) (T, error)
	// Create is an alias for InsertOne kept for callers that prefer the
	// create/read/update/delete vocabulary.
	Create(ctx context.Context, record T) (T, error)
	InsertMany(ctx context.Context, records []T) ([]T, error)

	UpdateOne(ctx context.Context, id string, patch docstore.Document) (T, bool, error)
	UpdateOneByFilter(ctx context.Context, filter docstore.Filter, patch docstore.Document) (T, bool, error)
	UpdateMany(ctx context.Context, filter docstore.Filter, patch docstore.Document) (int64, error)
	BatchUpdate(ctx context.Context, patches []IDPatch) (int64, error)

	DeleteOne(ctx context.Context, id string) (bool, error)
	HardDeleteOne(ctx context.Context, id string) (bool, error)
	Restore(ctx context.Context, id string) (T, bool, error)
	BatchDelete(ctx context.Context, ids []string) (int64, error)

	Count(ctx context.Context, filter docstore.Filter) (int64, error)
	Exists(ctx context.Context, filter docstore.Filter) (bool, error)
	Aggregate(ctx context.Context, pipeline docstore.Pipeline) ([]docstore.Document, error)

	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Config binds a repository to its collection. The zero Schema defaults
// to Rules[T], which validates records through their own ozzo rules.
type Config[T Entity] struct {
	Collection string
	Schema     Schema[T]
	Handlers   ModelHandlers[T]

	// SoftDelete switches DeleteOne and BatchDelete from physical deletes
	// to stamping the deletedAt marker, and makes every read path exclude
	// marked records.
	SoftDelete bool
}

// New constructs a repository over one collection of the given store.
func New[T Entity](store docstore.Store, cfg Config[T]) (Repository[T], error) {
	if store == nil {
		return nil, &ConfigurationError{Operation: "New", Message: "store is required"}
	}
	if cfg.Collection == "" {
		return nil, &ConfigurationError{Operation: "New", Message: "collection name is required"}
	}
	if cfg.Handlers.NewRecord == nil {
		return nil, &ConfigurationError{Operation: "New", Message: "Handlers.NewRecord is required"}
	}
	schema := cfg.Schema
	if schema == nil {
		schema = Rules[T]()
	}
	return &base[T]{
		store:      store,
		col:        store.Collection(cfg.Collection),
		schema:     schema,
		handlers:   cfg.Handlers,
		softDelete: cfg.SoftDelete,
		log:        logging.Named("repository").With(zap.String("collection", cfg.Collection)),
	}, nil
}

type base[T Entity] struct {
	store      docstore.Store
	col        docstore.Collection
	schema     Schema[T]
	handlers   ModelHandlers[T]
	softDelete bool
	log        *zap.Logger
}

// managedFields are stamped by the repository and stripped from caller
// patches. Only Restore may remove deletedAt, and nothing else may
// rewrite identity or creation time.
var managedFields = [...]string{"id", "createdAt", "updatedAt", "deletedAt"}

func (r *base[T]) Collection() string { return r.col.Name() }

// scope is the single funnel through which every read-path filter
// passes. With soft delete enabled it augments the caller's filter so
// logically deleted records stay invisible.
func (r *base[T]) scope(filter docstore.Filter) docstore.Filter {
	if filter == nil {
		filter = docstore.Filter{}
	}
	if !r.softDelete {
		return filter
	}
	scoped := filter.Clone()
	scoped["deletedAt"] = docstore.Exists(false)
	return scoped
}

func (r *base[T]) FindByID(ctx context.Context, id string) (T, bool, error) {
	return r.findOne(ctx, "FindByID", r.scope(docstore.Filter{"id": id}))
}

func (r *base[T]) FindByIDOrFail(ctx context.Context, id string) (T, error) {
	record, found, err := r.FindByID(ctx, id)
	if err != nil {
		return record, err
	}
	if !found {
		return record, &NotFoundError{Collection: r.col.Name(), ID: id}
	}
	return record, nil
}

func (r *base[T]) FindOne(ctx context.Context, filter docstore.Filter) (T, bool, error) {
	return r.findOne(ctx, "FindOne", r.scope(filter))
}

func (r *base[T]) FindOneOrFail(ctx context.Context, filter docstore.Filter) (T, error) {
	record, found, err := r.FindOne(ctx, filter)
	if err != nil {
		return record, err
	}
	if !found {
		return record, &NotFoundError{Collection: r.col.Name()}
	}
	return record, nil
}

func (r *base[T]) findOne(ctx context.Context, op string, filter docstore.Filter) (T, bool, error) {
	var zero T
	doc, err := r.col.FindOne(ctx, filter)
	if errors.Is(err, docstore.ErrNoDocuments) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, r.persistErr(op, err, nil)
	}
	record := r.handlers.NewRecord()
	if err := fromDocument(doc, record); err != nil {
		return zero, false, r.persistErr(op, err, nil)
	}
	return record, true, nil
}

func (r *base[T]) Find(ctx context.Context, filter docstore.Filter, opts ...FindOption) ([]T, error) {
	docs, err := r.col.Find(ctx, r.scope(filter), applyFindOptions(opts))
	if err != nil {
		return nil, r.persistErr("Find", err, nil)
	}
	return r.decodeAll("Find", docs)
}

func (r *base[T]) FindPaginated(ctx context.Context, filter docstore.Filter, page, limit int) (Page[T], error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}

	scoped := r.scope(filter)
	total, err := r.col.CountDocuments(ctx, scoped)
	if err != nil {
		return Page[T]{}, r.persistErr("FindPaginated", err, nil)
	}

	docs, err := r.col.Find(ctx, scoped, docstore.FindOptions{
		Skip:  (page - 1) * limit,
		Limit: limit,
	})
	if err != nil {
		return Page[T]{}, r.persistErr("FindPaginated", err, nil)
	}

	data, err := r.decodeAll("FindPaginated", docs)
	if err != nil {
		return Page[T]{}, err
	}
	return NewPage(data, total, page, limit), nil
}

func (r *base[T]) FindByIDs(ctx context.Context, ids []string) (map[string]T, error) {
	out := make(map[string]T, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	values := make([]any, len(ids))
	for i, id := range ids {
		values[i] = id
	}
	records, err := r.Find(ctx, docstore.Filter{"id": docstore.In(values...)})
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		out[record.GetID()] = record
	}
	return out, nil
}

func (r *base[T]) InsertOne(ctx context.Context, record T) (T, error) {
	var zero T
	if err := r.schema.Validate(ctx, record); err != nil {
		return zero, &ValidationError{Collection: r.col.Name(), Err: err}
	}

	now := time.Now().UTC()
	record.SetCreatedAt(now)
	record.SetUpdatedAt(now)

	doc, err := toDocument(record)
	if err != nil {
		return zero, r.persistErr("InsertOne", err, nil)
	}
	id, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		return zero, r.persistErr("InsertOne", err, fieldNames(doc))
	}
	record.SetID(id)
	return record, nil
}

func (r *base[T]) Create(ctx context.Context, record T) (T, error) {
	return r.InsertOne(ctx, record)
}

func (r *base[T]) InsertMany(ctx context.Context, records []T) ([]T, error) {
	if len(records) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	docs := make([]docstore.Document, len(records))
	for i, record := range records {
		if err := r.schema.Validate(ctx, record); err != nil {
			return nil, &ValidationError{Collection: r.col.Name(), Err: err}
		}
		record.SetCreatedAt(now)
		record.SetUpdatedAt(now)
		doc, err := toDocument(record)
		if err != nil {
			return nil, r.persistErr("InsertMany", err, nil)
		}
		docs[i] = doc
	}

	ids, err := r.col.InsertMany(ctx, docs)
	if err != nil {
		return nil, r.persistErr("InsertMany", err, fieldNames(docs[0]))
	}
	for i, id := range ids {
		records[i].SetID(id)
	}
	return records, nil
}

func (r *base[T]) UpdateOne(ctx context.Context, id string, patch docstore.Document) (T, bool, error) {
	return r.updateOne(ctx, "UpdateOne", r.scope(docstore.Filter{"id": id}), patch)
}

func (r *base[T]) UpdateOneByFilter(ctx context.Context, filter docstore.Filter, patch docstore.Document) (T, bool, error) {
	return r.updateOne(ctx, "UpdateOneByFilter", r.scope(filter), patch)
}

func (r *base[T]) updateOne(ctx context.Context, op string, filter docstore.Filter, patch docstore.Document) (T, bool, error) {
	var zero T
	doc, err := r.col.FindOneAndUpdate(ctx, filter, docstore.Update{Set: r.stampPatch(patch)})
	if errors.Is(err, docstore.ErrNoDocuments) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, r.persistErr(op, err, fieldNames(patch))
	}
	record := r.handlers.NewRecord()
	if err := fromDocument(doc, record); err != nil {
		return zero, false, r.persistErr(op, err, nil)
	}
	return record, true, nil
}

func (r *base[T]) UpdateMany(ctx context.Context, filter docstore.Filter, patch docstore.Document) (int64, error) {
	n, err := r.col.UpdateMany(ctx, r.scope(filter), docstore.Update{Set: r.stampPatch(patch)})
	if err != nil {
		return 0, r.persistErr("UpdateMany", err, fieldNames(patch))
	}
	return n, nil
}

func (r *base[T]) BatchUpdate(ctx context.Context, patches []IDPatch) (int64, error) {
	if len(patches) == 0 {
		return 0, nil
	}
	ops := make([]docstore.WriteOp, len(patches))
	for i, p := range patches {
		ops[i] = docstore.WriteOp{
			Kind:   docstore.WriteUpdateOne,
			Filter: r.scope(docstore.Filter{"id": p.ID}),
			Update: docstore.Update{Set: r.stampPatch(p.Patch)},
		}
	}
	res, err := r.col.BulkWrite(ctx, ops)
	if err != nil {
		return 0, r.persistErr("BatchUpdate", err, nil)
	}
	return res.Modified, nil
}

func (r *base[T]) DeleteOne(ctx context.Context, id string) (bool, error) {
	if r.softDelete {
		now := time.Now().UTC()
		n, err := r.col.UpdateOne(ctx, r.scope(docstore.Filter{"id": id}), docstore.Update{
			Set: docstore.Document{"deletedAt": now, "updatedAt": now},
		})
		if err != nil {
			return false, r.persistErr("DeleteOne", err, nil)
		}
		return n > 0, nil
	}
	return r.HardDeleteOne(ctx, id)
}

func (r *base[T]) HardDeleteOne(ctx context.Context, id string) (bool, error) {
	n, err := r.col.DeleteOne(ctx, docstore.Filter{"id": id})
	if err != nil {
		return false, r.persistErr("HardDeleteOne", err, nil)
	}
	return n > 0, nil
}

func (r *base[T]) Restore(ctx context.Context, id string) (T, bool, error) {
	var zero T
	if !r.softDelete {
		return zero, false, &ConfigurationError{
			Operation: "Restore",
			Message:   "soft delete is not enabled for collection " + r.col.Name(),
		}
	}

	doc, err := r.col.FindOneAndUpdate(ctx,
		docstore.Filter{"id": id, "deletedAt": docstore.Exists(true)},
		docstore.Update{
			Set:   docstore.Document{"updatedAt": time.Now().UTC()},
			Unset: []string{"deletedAt"},
		},
	)
	if errors.Is(err, docstore.ErrNoDocuments) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, r.persistErr("Restore", err, nil)
	}
	record := r.handlers.NewRecord()
	if err := fromDocument(doc, record); err != nil {
		return zero, false, r.persistErr("Restore", err, nil)
	}
	return record, true, nil
}

func (r *base[T]) BatchDelete(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	ops := make([]docstore.WriteOp, len(ids))
	if r.softDelete {
		now := time.Now().UTC()
		for i, id := range ids {
			ops[i] = docstore.WriteOp{
				Kind:   docstore.WriteUpdateOne,
				Filter: r.scope(docstore.Filter{"id": id}),
				Update: docstore.Update{Set: docstore.Document{"deletedAt": now, "updatedAt": now}},
			}
		}
	} else {
		for i, id := range ids {
			ops[i] = docstore.WriteOp{
				Kind:   docstore.WriteDeleteOne,
				Filter: docstore.Filter{"id": id},
			}
		}
	}

	res, err := r.col.BulkWrite(ctx, ops)
	if err != nil {
		return 0, r.persistErr("BatchDelete", err, nil)
	}
	if r.softDelete {
		return res.Modified, nil
	}
	return res.Deleted, nil
}

func (r *base[T]) Count(ctx context.Context, filter docstore.Filter) (int64, error) {
	n, err := r.col.CountDocuments(ctx, r.scope(filter))
	if err != nil {
		return 0, r.persistErr("Count", err, nil)
	}
	return n, nil
}

func (r *base[T]) Exists(ctx context.Context, filter docstore.Filter) (bool, error) {
	n, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *base[T]) Aggregate(ctx context.Context, pipeline docstore.Pipeline) ([]docstore.Document, error) {
	docs, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, r.persistErr("Aggregate", err, nil)
	}
	return docs, nil
}

func (r *base[T]) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.store.WithTransaction(ctx, fn)
}

func (r *base[T]) decodeAll(op string, docs []docstore.Document) ([]T, error) {
	records := make([]T, 0, len(docs))
	for _, doc := range docs {
		record := r.handlers.NewRecord()
		if err := fromDocument(doc, record); err != nil {
			return nil, r.persistErr(op, err, nil)
		}
		records = append(records, record)
	}
	return records, nil
}

// stampPatch copies the caller's patch without the repository-managed
// fields and refreshes updatedAt. Set-only semantics: a patch can never
// remove a field.
func (r *base[T]) stampPatch(patch docstore.Document) docstore.Document {
	stamped := make(docstore.Document, len(patch)+1)
	for k, v := range patch {
		stamped[k] = v
	}
	for _, k := range managedFields {
		delete(stamped, k)
	}
	stamped["updatedAt"] = time.Now().UTC()
	return stamped
}

func (r *base[T]) persistErr(op string, err error, fields []string) error {
	logFields := []zap.Field{zap.String("operation", op), zap.Error(err)}
	if len(fields) > 0 {
		logFields = append(logFields, zap.Strings("fields", fields))
	}
	r.log.Error("store operation failed", logFields...)
	return &PersistenceError{Collection: r.col.Name(), Operation: op, Err: err}
}
