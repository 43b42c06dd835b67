package repository

import "time"

// Entity is the minimal surface a record must expose so the repository
// can manage its identifier and timestamps. Embedding Model satisfies it.
type Entity interface {
	GetID() string
	SetID(id string)
	GetCreatedAt() time.Time
	SetCreatedAt(t time.Time)
	GetUpdatedAt() time.Time
	SetUpdatedAt(t time.Time)
	GetDeletedAt() *time.Time
	SetDeletedAt(t *time.Time)
}

// Model carries the repository-managed attributes every persisted record
// shares: an opaque identifier assigned by the store on creation, the
// creation and last-write timestamps, and the soft-delete marker.
// Domain types embed it and add their own fields.
type Model struct {
	ID        string     `msgpack:"id" json:"id"`
	CreatedAt time.Time  `msgpack:"createdAt" json:"createdAt"`
	UpdatedAt time.Time  `msgpack:"updatedAt" json:"updatedAt"`
	DeletedAt *time.Time `msgpack:"deletedAt,omitempty" json:"deletedAt,omitempty"`
}

func (m *Model) GetID() string             { return m.ID }
func (m *Model) SetID(id string)           { m.ID = id }
func (m *Model) GetCreatedAt() time.Time   { return m.CreatedAt }
func (m *Model) SetCreatedAt(t time.Time)  { m.CreatedAt = t }
func (m *Model) GetUpdatedAt() time.Time   { return m.UpdatedAt }
func (m *Model) SetUpdatedAt(t time.Time)  { m.UpdatedAt = t }
func (m *Model) GetDeletedAt() *time.Time  { return m.DeletedAt }
func (m *Model) SetDeletedAt(t *time.Time) { m.DeletedAt = t }

// ModelHandlers supplies the type-specific hooks the generic repository
// cannot derive on its own.
type ModelHandlers[T Entity] struct {
	// NewRecord allocates an empty record to decode a document into.
	NewRecord func() T
}
