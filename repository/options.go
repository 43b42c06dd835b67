package repository

import "github.com/goliatone/go-repository-docstore/docstore"

// FindOption narrows or orders the result window of a Find.
type FindOption func(*docstore.FindOptions)

// WithLimit bounds the number of records returned.
func WithLimit(n int) FindOption {
	return func(o *docstore.FindOptions) { o.Limit = n }
}

// WithSkip skips the first n matching records.
func WithSkip(n int) FindOption {
	return func(o *docstore.FindOptions) { o.Skip = n }
}

// WithSort orders results by a document field. Options compose; later
// sort fields break ties left by earlier ones.
func WithSort(field string, desc bool) FindOption {
	return func(o *docstore.FindOptions) {
		o.Sort = append(o.Sort, docstore.SortField{Field: field, Desc: desc})
	}
}

func applyFindOptions(opts []FindOption) docstore.FindOptions {
	var out docstore.FindOptions
	for _, opt := range opts {
		opt(&out)
	}
	return out
}
