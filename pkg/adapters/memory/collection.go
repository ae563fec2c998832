package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/sessiondb/pkg/domain"
	"github.com/aretw0/sessiondb/pkg/ports"
)

// Collection implements ports.Collection in memory.
// Safe for concurrent use. Nothing survives the process.
type Collection struct {
	mu    sync.RWMutex
	docs  map[string]*domain.Record
	order []string
	now   func() time.Time
}

var _ ports.Collection = (*Collection)(nil)

// New creates an empty in-memory collection.
func New() *Collection {
	return &Collection{
		docs: make(map[string]*domain.Record),
		now:  time.Now,
	}
}

// Load is a no-op: there is nothing to read back.
func (c *Collection) Load(ctx context.Context) error {
	return ctx.Err()
}

// Update applies fields to the selected documents, inserting one on upsert.
func (c *Collection) Update(ctx context.Context, filter ports.Filter, fields ports.Fields, opts ports.UpdateOptions) (ports.UpdateResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.UpdateResult{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	affected := 0
	for _, id := range c.order {
		doc := c.docs[id]
		if !filter.Matches(doc) {
			continue
		}
		apply(doc, fields, now)
		affected++
		if !opts.Multi {
			break
		}
	}

	if affected > 0 || !opts.Upsert {
		return ports.UpdateResult{Affected: affected}, nil
	}

	if filter.All {
		return ports.UpdateResult{}, fmt.Errorf("upsert requires a single document filter")
	}

	doc := &domain.Record{ID: filter.ID, CreatedAt: now}
	apply(doc, fields, now)
	c.docs[doc.ID] = doc
	c.order = append(c.order, doc.ID)

	return ports.UpdateResult{Affected: 1, Upserted: true}, nil
}

// FindOne returns a copy of the first selected document, or nil.
func (c *Collection) FindOne(ctx context.Context, filter ports.Filter) (*domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if !filter.All {
		doc, ok := c.docs[filter.ID]
		if !ok {
			return nil, nil
		}
		return doc.Clone(), nil
	}
	if len(c.order) == 0 {
		return nil, nil
	}
	return c.docs[c.order[0]].Clone(), nil
}

// Find returns copies of the selected documents in insertion order.
func (c *Collection) Find(ctx context.Context, filter ports.Filter) ([]domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Record, 0, len(c.order))
	for _, id := range c.order {
		doc := c.docs[id]
		if filter.Matches(doc) {
			out = append(out, *doc.Clone())
		}
	}
	return out, nil
}

// Remove deletes the selected documents.
func (c *Collection) Remove(ctx context.Context, filter ports.Filter, opts ports.RemoveOptions) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	kept := c.order[:0]
	for _, id := range c.order {
		if filter.Matches(c.docs[id]) && (opts.Multi || removed == 0) {
			delete(c.docs, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	c.order = kept

	return removed, nil
}

// Close drops every document.
func (c *Collection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = make(map[string]*domain.Record)
	c.order = nil
	return nil
}

func apply(doc *domain.Record, fields ports.Fields, now time.Time) {
	if fields.Session != nil {
		doc.Session = fields.Session.Clone()
	}
	if fields.ExpiresAt != nil {
		t := *fields.ExpiresAt
		doc.ExpiresAt = &t
	}
	doc.UpdatedAt = now
}
