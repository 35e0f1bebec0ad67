package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Engine applies the persistence conventions: it validates descriptors at
// registration, conjoins read filters per query, and stamps entities before
// every write. One engine is shared across all requests; the actor used for
// ownership is resolved from the operation context on every call, never
// cached.
type Engine struct {
	clock func() time.Time
	newID func() string
}

// NewEngine returns an Engine using the real clock and UUID identifiers.
func NewEngine() *Engine {
	return &Engine{
		clock: func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.New().String() },
	}
}

// WithClock overrides the engine clock. Test hook.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

// Validate checks a descriptor against its declared capabilities. A declared
// capability whose interface the entity does not implement, or whose required
// column is missing, is an ErrConventionViolation. Called once at startup;
// violations are fatal there.
func (e *Engine) Validate(d *Descriptor) error {
	if d.Table == "" || d.New == nil || d.Values == nil || d.Fields == nil {
		return fmt.Errorf("%w: descriptor for %q is incomplete", ErrConventionViolation, d.Table)
	}
	probe := d.New()
	if len(d.Columns) == 0 || d.Columns[0] != ColID {
		return fmt.Errorf("%w: %s must lead its columns with %q", ErrConventionViolation, d.Table, ColID)
	}
	if n := len(d.Values(probe)); n != len(d.Columns) {
		return fmt.Errorf("%w: %s binds %d values for %d columns", ErrConventionViolation, d.Table, n, len(d.Columns))
	}
	if n := len(d.Fields(probe)); n != len(d.Columns) {
		return fmt.Errorf("%w: %s binds %d fields for %d columns", ErrConventionViolation, d.Table, n, len(d.Columns))
	}
	if d.Caps.Has(CapTrackable) {
		if _, ok := probe.(Trackable); !ok {
			return fmt.Errorf("%w: %s declares trackable but does not implement it", ErrConventionViolation, d.Table)
		}
		if d.columnIndex(ColCreatedAt) < 0 || d.columnIndex(ColUpdatedAt) < 0 {
			return fmt.Errorf("%w: %s declares trackable without %s/%s columns", ErrConventionViolation, d.Table, ColCreatedAt, ColUpdatedAt)
		}
	}
	if d.Caps.Has(CapOwnable) {
		if _, ok := probe.(Ownable); !ok {
			return fmt.Errorf("%w: %s declares ownable but does not implement it", ErrConventionViolation, d.Table)
		}
		if d.columnIndex(ColOwner) < 0 {
			return fmt.Errorf("%w: %s declares ownable without an %s column", ErrConventionViolation, d.Table, ColOwner)
		}
	}
	if d.Caps.Has(CapSoftDeletable) {
		if _, ok := probe.(SoftDeletable); !ok {
			return fmt.Errorf("%w: %s declares soft-deletable but does not implement it", ErrConventionViolation, d.Table)
		}
		if d.columnIndex(ColIsDeleted) < 0 {
			return fmt.Errorf("%w: %s declares soft-deletable without an %s column", ErrConventionViolation, d.Table, ColIsDeleted)
		}
	}
	return nil
}

// readFilter conjoins convention conditions onto pred. The soft-deletion
// filter is skipped on the unfiltered (hard-delete-capable) path; the
// ownership filter always applies to ownable entities, with the actor
// re-resolved from ctx on every call.
func (e *Engine) readFilter(ctx context.Context, d *Descriptor, pred Predicate, unfiltered bool) (Predicate, error) {
	if d.Caps.Has(CapSoftDeletable) && !unfiltered {
		pred = And(pred, Eq(ColIsDeleted, false))
	}
	if d.Caps.Has(CapOwnable) {
		actor, err := resolveActor(ctx)
		if err != nil {
			return Predicate{}, err
		}
		pred = And(pred, Eq(ColOwner, actor))
	}
	return pred, nil
}

// beforeInsert stamps identifier, timestamps, and owner on ent. CreatedAt is
// only set when zero so pre-seeded values survive.
func (e *Engine) beforeInsert(ctx context.Context, d *Descriptor, ent Entity) error {
	if ent.EntityID() == "" {
		ent.SetEntityID(e.newID())
	}
	now := e.clock()
	if d.Caps.Has(CapTrackable) {
		t := ent.(Trackable)
		if t.CreatedTime().IsZero() {
			t.SetCreatedTime(now)
		}
		t.SetUpdatedTime(now)
	}
	if d.Caps.Has(CapOwnable) {
		actor, err := resolveActor(ctx)
		if err != nil {
			return err
		}
		ent.(Ownable).SetOwnerActor(actor)
	}
	return nil
}

// beforeUpdate stamps the update timestamp on ent.
func (e *Engine) beforeUpdate(d *Descriptor, ent Entity) {
	if d.Caps.Has(CapTrackable) {
		ent.(Trackable).SetUpdatedTime(e.clock())
	}
}
