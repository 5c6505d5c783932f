package document

import (
	"context"
	"sync"
)

// MemoryCollection 단일 프로세스용 마지막 쓰기 우선 컬렉션
type MemoryCollection[T Keyed] struct {
	boardID int64
	name    string

	mu    sync.RWMutex
	items map[string]T
	order []string

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(Change)
}

// NewMemoryCollection 빈 컬렉션 생성
func NewMemoryCollection[T Keyed](boardID int64, name string) *MemoryCollection[T] {
	return &MemoryCollection[T]{
		boardID: boardID,
		name:    name,
		items:   make(map[string]T),
		subs:    make(map[int]func(Change)),
	}
}

func (c *MemoryCollection[T]) List(ctx context.Context) ([]T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]T, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.items[id])
	}
	return out, nil
}

func (c *MemoryCollection[T]) Get(ctx context.Context, id string) (T, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[id]
	return item, ok, nil
}

func (c *MemoryCollection[T]) Insert(ctx context.Context, items ...T) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, 0, len(items))

	c.mu.Lock()
	for _, item := range items {
		id := item.Key()
		if id == "" {
			c.mu.Unlock()
			return ErrEmptyID
		}
		if _, exists := c.items[id]; !exists {
			c.order = append(c.order, id)
		}
		c.items[id] = item
		ids = append(ids, id)
	}
	c.mu.Unlock()

	c.notify(OpInsert, ids)
	return nil
}

func (c *MemoryCollection[T]) Patch(ctx context.Context, id string, fn func(*T)) (bool, error) {
	n, err := c.BatchPatch(ctx, []Patch[T]{{ID: id, Apply: fn}})
	return n > 0, err
}

func (c *MemoryCollection[T]) BatchPatch(ctx context.Context, patches []Patch[T]) (int, error) {
	var ids []string

	c.mu.Lock()
	for _, p := range patches {
		item, ok := c.items[p.ID]
		if !ok {
			continue
		}
		p.Apply(&item)
		c.items[p.ID] = item
		ids = append(ids, p.ID)
	}
	c.mu.Unlock()

	if len(ids) > 0 {
		c.notify(OpPatch, ids)
	}
	return len(ids), nil
}

func (c *MemoryCollection[T]) Delete(ctx context.Context, ids ...string) (int, error) {
	var removed []string

	c.mu.Lock()
	for _, id := range ids {
		if _, ok := c.items[id]; !ok {
			continue
		}
		delete(c.items, id)
		removed = append(removed, id)
	}
	if len(removed) > 0 {
		kept := c.order[:0]
		for _, id := range c.order {
			if _, ok := c.items[id]; ok {
				kept = append(kept, id)
			}
		}
		c.order = kept
	}
	c.mu.Unlock()

	if len(removed) > 0 {
		c.notify(OpDelete, removed)
	}
	return len(removed), nil
}

func (c *MemoryCollection[T]) Replace(ctx context.Context, items []T) error {
	next := make(map[string]T, len(items))
	order := make([]string, 0, len(items))
	for _, item := range items {
		id := item.Key()
		if id == "" {
			return ErrEmptyID
		}
		if _, dup := next[id]; !dup {
			order = append(order, id)
		}
		next[id] = item
	}

	c.mu.Lock()
	c.items = next
	c.order = order
	c.mu.Unlock()

	c.notify(OpReset, order)
	return nil
}

func (c *MemoryCollection[T]) Subscribe(fn func(Change)) func() {
	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

func (c *MemoryCollection[T]) notify(op Op, ids []string) {
	c.subMu.Lock()
	fns := make([]func(Change), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	change := Change{BoardID: c.boardID, Collection: c.name, Op: op, IDs: ids}
	for _, fn := range fns {
		fn(change)
	}
}
