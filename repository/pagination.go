package repository

// Page is the view over one page of a paginated query.
//
// Invariants: HasNext holds iff Page < TotalPages, HasPrev holds iff
// Page > 1, and len(Data) never exceeds Limit.
type Page[T any] struct {
	Data       []T   `msgpack:"data" json:"data"`
	Total      int64 `msgpack:"total" json:"total"`
	Page       int   `msgpack:"page" json:"page"`
	Limit      int   `msgpack:"limit" json:"limit"`
	TotalPages int   `msgpack:"totalPages" json:"totalPages"`
	HasNext    bool  `msgpack:"hasNext" json:"hasNext"`
	HasPrev    bool  `msgpack:"hasPrev" json:"hasPrev"`
}

// NewPage assembles a Page from a result slice and the matching total,
// deriving the page count and navigation flags.
func NewPage[T any](data []T, total int64, page, limit int) Page[T] {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Page[T]{
		Data:       data,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// DefaultPageLimit is applied when FindPaginated is called with a
// non-positive limit.
const DefaultPageLimit = 20
