package store

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
)

type accessor[T any] struct {
	items    func(*Document) *[]T
	id       func(*T) *string
	name     func(T) string
	stamps   func(*T) (created, updated *time.Time)
	clone    func(T) T
	validate func(T) error
}

// Collection is CRUD over one kind of record. Names are unique.
type Collection[T any] struct {
	store *Store
	kind  string
	acc   accessor[T]
}

// List returns every record in insertion order.
func (c *Collection[T]) List(ctx context.Context) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	items := *c.acc.items(&c.store.doc)
	out := make([]T, len(items))
	for i, item := range items {
		out[i] = c.acc.clone(item)
	}
	return out, nil
}

// Get returns the record with id.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	return c.find(ctx, func(item T) bool { return *c.acc.id(&item) == id }, id)
}

// GetByName returns the record named name.
func (c *Collection[T]) GetByName(ctx context.Context, name string) (T, error) {
	return c.find(ctx, func(item T) bool { return c.acc.name(item) == name }, name)
}

func (c *Collection[T]) find(ctx context.Context, match func(T) bool, key string) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	items := *c.acc.items(&c.store.doc)
	if idx := slices.IndexFunc(items, match); idx >= 0 {
		return c.acc.clone(items[idx]), nil
	}
	return zero, fmt.Errorf("%w: %s %q", ErrNotFound, c.kind, key)
}

// Create stores item, minting an id when it has none.
func (c *Collection[T]) Create(ctx context.Context, item T) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if err := c.acc.validate(item); err != nil {
		return zero, fmt.Errorf("%w: %s: %w", ErrInvalid, c.kind, err)
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	items := c.acc.items(&c.store.doc)
	name := c.acc.name(item)
	if slices.IndexFunc(*items, func(existing T) bool { return c.acc.name(existing) == name }) >= 0 {
		return zero, fmt.Errorf("%w: %s %q", ErrDuplicateName, c.kind, name)
	}

	item = c.acc.clone(item)
	id := c.acc.id(&item)
	for *id == "" || slices.IndexFunc(*items, func(existing T) bool { return *c.acc.id(&existing) == *id }) >= 0 {
		*id = c.store.newID()
	}
	created, updated := c.acc.stamps(&item)
	now := c.store.now()
	*created = now
	*updated = now

	*items = append(*items, item)
	if err := c.store.save(ctx); err != nil {
		*items = (*items)[:len(*items)-1]
		return zero, err
	}
	c.store.logger.Debug("record created", zap.String("kind", c.kind), zap.String("name", name))
	return c.acc.clone(item), nil
}

// Update replaces the record with the same id.
func (c *Collection[T]) Update(ctx context.Context, item T) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if err := c.acc.validate(item); err != nil {
		return zero, fmt.Errorf("%w: %s: %w", ErrInvalid, c.kind, err)
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	items := c.acc.items(&c.store.doc)
	id := *c.acc.id(&item)
	idx := slices.IndexFunc(*items, func(existing T) bool { return *c.acc.id(&existing) == id })
	if idx < 0 {
		return zero, fmt.Errorf("%w: %s %q", ErrNotFound, c.kind, id)
	}
	name := c.acc.name(item)
	for i, existing := range *items {
		if i != idx && c.acc.name(existing) == name {
			return zero, fmt.Errorf("%w: %s %q", ErrDuplicateName, c.kind, name)
		}
	}

	previous := (*items)[idx]
	item = c.acc.clone(item)
	prevCreated, _ := c.acc.stamps(&previous)
	created, updated := c.acc.stamps(&item)
	*created = *prevCreated
	*updated = c.store.now()

	(*items)[idx] = item
	if err := c.store.save(ctx); err != nil {
		(*items)[idx] = previous
		return zero, err
	}
	return c.acc.clone(item), nil
}

// Delete removes the record with id.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	items := c.acc.items(&c.store.doc)
	idx := slices.IndexFunc(*items, func(existing T) bool { return *c.acc.id(&existing) == id })
	if idx < 0 {
		return fmt.Errorf("%w: %s %q", ErrNotFound, c.kind, id)
	}
	previous := slices.Clone(*items)
	*items = slices.Delete(*items, idx, idx+1)
	if err := c.store.save(ctx); err != nil {
		*items = previous
		return err
	}
	return nil
}
