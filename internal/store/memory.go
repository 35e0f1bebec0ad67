package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryBackend is an in-memory Backend used in tests and local development.
// Rows are stored as detached clones so callers never share entity pointers
// with the backend.
type MemoryBackend struct {
	mu     sync.Mutex
	tables map[string]*memTable
}

type memTable struct {
	order []string
	rows  map[string]Entity
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{tables: make(map[string]*memTable)}
}

func (b *MemoryBackend) table(name string) *memTable {
	t, ok := b.tables[name]
	if !ok {
		t = &memTable{rows: make(map[string]Entity)}
		b.tables[name] = t
	}
	return t
}

func (b *MemoryBackend) First(ctx context.Context, d *Descriptor, pred Predicate) (Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	t := b.table(d.Table)
	for _, id := range t.order {
		row, ok := t.rows[id]
		if !ok {
			continue
		}
		if pred.Matches(d, row) {
			return clone(d, row)
		}
	}
	return nil, ErrNotFound
}

func (b *MemoryBackend) List(ctx context.Context, d *Descriptor, pred Predicate) ([]Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	t := b.table(d.Table)
	var out []Entity
	for _, id := range t.order {
		row, ok := t.rows[id]
		if !ok {
			continue
		}
		if pred.Matches(d, row) {
			c, err := clone(d, row)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
	}
	return out, nil
}

func (b *MemoryBackend) Insert(ctx context.Context, d *Descriptor, ent Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	t := b.table(d.Table)
	id := ent.EntityID()
	if _, exists := t.rows[id]; exists {
		return fmt.Errorf("%w: duplicate id %s in %s", ErrConflict, id, d.Table)
	}
	c, err := clone(d, ent)
	if err != nil {
		return err
	}
	t.rows[id] = c
	t.order = append(t.order, id)
	return nil
}

func (b *MemoryBackend) Update(ctx context.Context, d *Descriptor, ent Entity, pred Predicate) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	t := b.table(d.Table)
	row, ok := t.rows[ent.EntityID()]
	if !ok || !pred.Matches(d, row) {
		return 0, nil
	}
	c, err := clone(d, ent)
	if err != nil {
		return 0, err
	}
	t.rows[ent.EntityID()] = c
	return 1, nil
}

func (b *MemoryBackend) DeleteHard(ctx context.Context, d *Descriptor, pred Predicate) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	t := b.table(d.Table)
	var n int64
	kept := t.order[:0]
	for _, id := range t.order {
		row, ok := t.rows[id]
		if ok && pred.Matches(d, row) {
			delete(t.rows, id)
			n++
			continue
		}
		kept = append(kept, id)
	}
	t.order = kept
	return n, nil
}

// clone copies ent through its descriptor bindings: column values are read
// from the source and assigned into a fresh entity's field pointers. Keeps
// the backend free of any shared state with callers, without reflection.
func clone(d *Descriptor, ent Entity) (Entity, error) {
	vals := d.Values(ent)
	fresh := d.New()
	fields := d.Fields(fresh)
	for i, f := range fields {
		if err := assign(f, vals[i]); err != nil {
			return nil, fmt.Errorf("%s.%s: %w", d.Table, d.Columns[i], err)
		}
	}
	return fresh, nil
}

func assign(dst, v any) error {
	switch p := dst.(type) {
	case *string:
		*p = v.(string)
	case *bool:
		*p = v.(bool)
	case *int64:
		*p = v.(int64)
	case *time.Time:
		*p = v.(time.Time)
	case **time.Time:
		if v == nil {
			*p = nil
			return nil
		}
		src, ok := v.(*time.Time)
		if !ok {
			return fmt.Errorf("unsupported nullable time value %T", v)
		}
		if src == nil {
			*p = nil
			return nil
		}
		t := *src
		*p = &t
	default:
		return fmt.Errorf("unsupported column type %T", dst)
	}
	return nil
}
