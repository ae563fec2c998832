package ports

import (
	"context"
	"time"

	"github.com/aretw0/sessiondb/pkg/domain"
)

// Filter selects documents. A Filter selects the single document whose id
// equals ID, including the empty id, unless All is set.
type Filter struct {
	ID  string
	All bool
}

// All matches every document.
var All = Filter{All: true}

// Matches reports whether the record is selected by the filter.
func (f Filter) Matches(r *domain.Record) bool {
	return f.All || f.ID == r.ID
}

// Fields is the $set part of an update. Nil fields are left untouched.
// UpdatedAt is always refreshed by the collection.
type Fields struct {
	Session   domain.Session
	ExpiresAt *time.Time
}

// UpdateOptions controls how many documents an Update may touch.
type UpdateOptions struct {
	// Multi updates every matching document instead of the first one.
	Multi bool
	// Upsert inserts a new document when nothing matches. Not allowed with Filter.All.
	Upsert bool
}

// UpdateResult reports the outcome of an Update.
type UpdateResult struct {
	Affected int
	Upserted bool
}

// RemoveOptions controls how many documents a Remove may delete.
type RemoveOptions struct {
	Multi bool
}

// SerializationHook transforms the serialized form of a document on its way
// to or from durable storage (compression, encryption...).
type SerializationHook func([]byte) ([]byte, error)

// Collection is a keyed document collection with timestamp tracking.
type Collection interface {
	// Load prepares the collection for use. It is called exactly once,
	// before any other operation.
	Load(ctx context.Context) error

	// Update applies fields to the documents selected by filter.
	Update(ctx context.Context, filter Filter, fields Fields, opts UpdateOptions) (UpdateResult, error)

	// FindOne returns the first document selected by filter, or nil.
	FindOne(ctx context.Context, filter Filter) (*domain.Record, error)

	// Find returns every document selected by filter in collection order.
	Find(ctx context.Context, filter Filter) ([]domain.Record, error)

	// Remove deletes the documents selected by filter and returns how many were removed.
	Remove(ctx context.Context, filter Filter, opts RemoveOptions) (int, error)

	// Close releases the resources held by the collection.
	Close() error
}

// AutoCompactor is implemented by collections that can compact their
// durable storage in the background.
type AutoCompactor interface {
	SetAutocompactionInterval(interval time.Duration)
	StopAutocompaction()
}

// Compactor is implemented by collections that can compact on demand.
type Compactor interface {
	Compact(ctx context.Context) error
}
