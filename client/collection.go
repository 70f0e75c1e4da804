package client

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// TempPrefix marks ids assigned locally to items the server has not stored yet.
const TempPrefix = "tmp-"

// ErrNotPersisted is returned for remote operations on a temporary item.
var ErrNotPersisted = errors.New("item has not been saved yet")

// IsTemp reports whether id was assigned locally.
func IsTemp(id string) bool {
	return strings.HasPrefix(id, TempPrefix)
}

// Endpoint is the remote side of a Collection.
type Endpoint[T any] interface {
	List(ctx context.Context) ([]T, error)
	Save(ctx context.Context, item T) (T, error)
	Delete(ctx context.Context, id string) error
	ID(item T) string
	WithID(item T, id string) T
}

type snapshot[T any] struct {
	items   []T
	version uint64
}

// Collection is an optimistic cache of one entity type. Writes are applied
// locally first and rolled back when the server rejects them.
//
// States are immutable snapshots swapped with compare-and-swap. Concurrent
// optimistic writes to the same item are not serialized: the last local
// write wins, and a failed write restores the whole snapshot only when no
// other write has replaced the state since. Otherwise just the failed item
// is put back to its previous value.
type Collection[T any] struct {
	endpoint Endpoint[T]
	state    atomic.Pointer[snapshot[T]]
}

// NewCollection creates an empty collection backed by endpoint.
func NewCollection[T any](endpoint Endpoint[T]) *Collection[T] {
	c := &Collection[T]{endpoint: endpoint}
	c.state.Store(&snapshot[T]{})
	return c
}

// Items returns a copy of the current items.
func (c *Collection[T]) Items() []T {
	s := c.state.Load()
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// Version increases on every local state change.
func (c *Collection[T]) Version() uint64 {
	return c.state.Load().version
}

// Get returns the cached item with id.
func (c *Collection[T]) Get(id string) (T, bool) {
	s := c.state.Load()
	if i := c.index(s.items, id); i >= 0 {
		return s.items[i], true
	}
	var zero T
	return zero, false
}

// Fetch replaces the cached items with the server list.
func (c *Collection[T]) Fetch(ctx context.Context) ([]T, error) {
	items, err := c.endpoint.List(ctx)
	if err != nil {
		return nil, err
	}
	c.mutate(func([]T) []T { return items })
	return c.Items(), nil
}

// Save shows item immediately and upserts it on the server. New items get a
// temporary id until the server answers with the real one.
func (c *Collection[T]) Save(ctx context.Context, item T) (T, error) {
	id := c.endpoint.ID(item)
	isNew := id == "" || IsTemp(id)
	if id == "" {
		id = TempPrefix + uuid.NewString()
		item = c.endpoint.WithID(item, id)
	}
	prev, hadPrev := c.Get(id)

	before, after := c.mutate(func(items []T) []T { return c.put(items, id, item) })

	send := item
	if isNew {
		send = c.endpoint.WithID(item, "")
	}
	saved, err := c.endpoint.Save(ctx, send)
	if err != nil {
		c.rollback(before, after, id, prev, hadPrev)
		var zero T
		return zero, err
	}
	c.mutate(func(items []T) []T { return c.replace(items, id, saved) })
	return saved, nil
}

// QuickUpdate applies local to the cached item and sends remote. The
// server's answer replaces the cached item.
func (c *Collection[T]) QuickUpdate(ctx context.Context, id string, local func(T) T, remote func(context.Context) (T, error)) (T, error) {
	var zero T
	if IsTemp(id) {
		return zero, ErrNotPersisted
	}
	prev, hadPrev := c.Get(id)

	var before, after *snapshot[T]
	if hadPrev {
		before, after = c.mutate(func(items []T) []T { return c.put(items, id, local(prev)) })
	}
	updated, err := remote(ctx)
	if err != nil {
		if hadPrev {
			c.rollback(before, after, id, prev, true)
		}
		return zero, err
	}
	c.mutate(func(items []T) []T { return c.put(items, id, updated) })
	return updated, nil
}

// Delete removes the item locally and on the server. Temporary items never
// reached the server and are only dropped locally.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	prev, hadPrev := c.Get(id)
	if IsTemp(id) {
		c.mutate(func(items []T) []T { return c.remove(items, id) })
		return nil
	}

	before, after := c.mutate(func(items []T) []T { return c.remove(items, id) })
	if err := c.endpoint.Delete(ctx, id); err != nil {
		c.rollback(before, after, id, prev, hadPrev)
		return err
	}
	return nil
}

// mutate swaps in a new state built from the current items and returns the
// states before and after the swap.
func (c *Collection[T]) mutate(fn func([]T) []T) (before, after *snapshot[T]) {
	for {
		before = c.state.Load()
		items := make([]T, len(before.items))
		copy(items, before.items)
		after = &snapshot[T]{items: fn(items), version: before.version + 1}
		if c.state.CompareAndSwap(before, after) {
			return before, after
		}
	}
}

// rollback restores before when after is still current. Otherwise only
// the item with id goes back to prev, or away when it did not exist.
func (c *Collection[T]) rollback(before, after *snapshot[T], id string, prev T, hadPrev bool) {
	restored := &snapshot[T]{items: before.items, version: after.version + 1}
	if c.state.CompareAndSwap(after, restored) {
		return
	}
	c.mutate(func(items []T) []T {
		if hadPrev {
			return c.put(items, id, prev)
		}
		return c.remove(items, id)
	})
}

func (c *Collection[T]) index(items []T, id string) int {
	for i, item := range items {
		if c.endpoint.ID(item) == id {
			return i
		}
	}
	return -1
}

// put replaces the item with id, or prepends it when absent.
func (c *Collection[T]) put(items []T, id string, item T) []T {
	if i := c.index(items, id); i >= 0 {
		items[i] = item
		return items
	}
	return append([]T{item}, items...)
}

// replace swaps the item with id for item, which may carry a new id.
func (c *Collection[T]) replace(items []T, id string, item T) []T {
	if newID := c.endpoint.ID(item); newID != id {
		items = c.remove(items, newID)
	}
	return c.put(items, id, item)
}

func (c *Collection[T]) remove(items []T, id string) []T {
	out := items[:0]
	for _, item := range items {
		if c.endpoint.ID(item) != id {
			out = append(out, item)
		}
	}
	return out
}
