package store

import "context"

// Backend executes physical reads and writes for one descriptor-described
// table. Backends see fully stamped entities and fully composed predicates;
// they apply no conventions of their own.
type Backend interface {
	First(ctx context.Context, d *Descriptor, pred Predicate) (Entity, error)
	List(ctx context.Context, d *Descriptor, pred Predicate) ([]Entity, error)
	Insert(ctx context.Context, d *Descriptor, ent Entity) error
	// Update writes ent where id matches and pred holds, returning the number
	// of rows written. The gateway turns zero rows into ErrConflict.
	Update(ctx context.Context, d *Descriptor, ent Entity, pred Predicate) (int64, error)
	// DeleteHard physically removes rows matching pred.
	DeleteHard(ctx context.Context, d *Descriptor, pred Predicate) (int64, error)
}

// Gateway is the typed persistence surface for one entity type. Every commit
// passes through the convention engine's save hook exactly once, and every
// read through its filter composition.
type Gateway[T Entity] struct {
	engine *Engine
	desc   *Descriptor
	be     Backend
}

// NewGateway validates the descriptor against its declared capabilities and
// returns a gateway. A convention violation here is a startup error.
func NewGateway[T Entity](engine *Engine, desc *Descriptor, be Backend) (*Gateway[T], error) {
	if err := engine.Validate(desc); err != nil {
		return nil, err
	}
	return &Gateway[T]{engine: engine, desc: desc, be: be}, nil
}

// First returns the first record matching pred, with convention filters
// applied. Returns ErrNotFound when nothing matches.
func (g *Gateway[T]) First(ctx context.Context, pred Predicate) (T, error) {
	return g.first(ctx, pred, false)
}

// FirstUnfiltered is the hard-delete-capable read path: soft-deleted rows are
// visible. Ownership scoping still applies.
func (g *Gateway[T]) FirstUnfiltered(ctx context.Context, pred Predicate) (T, error) {
	return g.first(ctx, pred, true)
}

func (g *Gateway[T]) first(ctx context.Context, pred Predicate, unfiltered bool) (T, error) {
	var zero T
	full, err := g.engine.readFilter(ctx, g.desc, pred, unfiltered)
	if err != nil {
		return zero, err
	}
	raw, err := g.be.First(ctx, g.desc, full)
	if err != nil {
		return zero, err
	}
	return raw.(T), nil
}

// List returns all records matching pred, with convention filters applied.
func (g *Gateway[T]) List(ctx context.Context, pred Predicate) ([]T, error) {
	full, err := g.engine.readFilter(ctx, g.desc, pred, false)
	if err != nil {
		return nil, err
	}
	raws, err := g.be.List(ctx, g.desc, full)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raws))
	for _, r := range raws {
		out = append(out, r.(T))
	}
	return out, nil
}

// Insert stamps and persists a new entity.
func (g *Gateway[T]) Insert(ctx context.Context, ent T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := g.engine.beforeInsert(ctx, g.desc, ent); err != nil {
		return err
	}
	return g.be.Insert(ctx, g.desc, ent)
}

// Update stamps and writes an existing entity by id.
func (g *Gateway[T]) Update(ctx context.Context, ent T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.engine.beforeUpdate(g.desc, ent)
	n, err := g.be.Update(ctx, g.desc, ent, All())
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateGuarded writes ent only while guard still holds on the stored row, as
// a single atomic read-modify-write. A concurrent writer that invalidated the
// guard surfaces as ErrConflict; callers treat that as a benign retry
// collision.
func (g *Gateway[T]) UpdateGuarded(ctx context.Context, ent T, guard Predicate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.engine.beforeUpdate(g.desc, ent)
	n, err := g.be.Update(ctx, g.desc, ent, guard)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// Delete logically removes ent: soft-deletable entities are rewritten to an
// is_deleted update; anything else is physically removed.
func (g *Gateway[T]) Delete(ctx context.Context, ent T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if g.desc.Caps.Has(CapSoftDeletable) {
		sd := any(ent).(SoftDeletable)
		sd.SetDeletedFlag(true)
		return g.Update(ctx, ent)
	}
	return g.HardDelete(ctx, ent)
}

// HardDelete physically removes ent, bypassing the soft-delete rewrite.
func (g *Gateway[T]) HardDelete(ctx context.Context, ent T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := g.be.DeleteHard(ctx, g.desc, Eq(ColID, ent.EntityID()))
	return err
}

// HardDeleteWhere physically removes every row matching pred and reports how
// many were removed. Explicit operator path; no convention filters apply.
func (g *Gateway[T]) HardDeleteWhere(ctx context.Context, pred Predicate) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return g.be.DeleteHard(ctx, g.desc, pred)
}
