// Package store provides a generic persistence gateway with convention-driven
// entity handling: audit timestamps, ownership scoping, and soft deletion are
// applied by the gateway itself, never by business code.
package store

import (
	"errors"
	"time"
)

// Sentinel errors. Repositories and services map these at their boundaries.
var (
	// ErrNotFound is returned when no record matches the predicate.
	ErrNotFound = errors.New("record not found")
	// ErrUnavailable wraps backend failures that callers may retry (503).
	ErrUnavailable = errors.New("store unavailable")
	// ErrConflict is returned by UpdateGuarded when the guard predicate
	// matched no rows, i.e. a concurrent writer won the race.
	ErrConflict = errors.New("update conflict")
	// ErrOwnerUnresolved is returned when an ownable write runs under an
	// identity scope whose subject is empty. Indicates a broken upstream
	// authentication step, not a user-facing condition.
	ErrOwnerUnresolved = errors.New("owner identity unresolved")
	// ErrConventionViolation is returned at registration time when an entity
	// declares a capability it does not implement. Never a runtime condition.
	ErrConventionViolation = errors.New("entity convention violation")
)

// Capability flags declared per entity descriptor.
type Capability uint8

const (
	// CapTrackable entities get created_at/updated_at stamped on save.
	CapTrackable Capability = 1 << iota
	// CapOwnable entities get owner stamped on insert and reads scoped to
	// the current actor.
	CapOwnable
	// CapSoftDeletable entities have deletes rewritten to is_deleted updates
	// and default reads exclude deleted rows.
	CapSoftDeletable
)

// Has reports whether c includes cap.
func (c Capability) Has(cap Capability) bool { return c&cap != 0 }

// Entity is the minimal contract every stored entity satisfies.
type Entity interface {
	EntityID() string
	SetEntityID(id string)
}

// Trackable entities carry created_at/updated_at maintained exclusively by
// the gateway at save time.
type Trackable interface {
	CreatedTime() time.Time
	SetCreatedTime(t time.Time)
	SetUpdatedTime(t time.Time)
}

// Ownable entities carry an owner actor identifier, stamped on insert from
// the identity scope on the operation context.
type Ownable interface {
	OwnerActor() string
	SetOwnerActor(actor string)
}

// SoftDeletable entities carry an is_deleted flag; a delete flips the flag
// instead of removing the row.
type SoftDeletable interface {
	IsDeletedFlag() bool
	SetDeletedFlag(deleted bool)
}

// Convention column names the engine relies on.
const (
	ColID        = "id"
	ColOwner     = "owner"
	ColCreatedAt = "created_at"
	ColUpdatedAt = "updated_at"
	ColIsDeleted = "is_deleted"
)

// Descriptor describes one entity type to the gateway: its physical table,
// column order, declared capabilities, and column binding functions. Scan and
// value binding are explicit per type, so the gateway needs no reflection.
type Descriptor struct {
	// Table is the physical table name.
	Table string
	// Columns is the full physical column list, in binding order. Must start
	// with "id" and include the columns required by declared capabilities.
	Columns []string
	// Caps is the declared capability set.
	Caps Capability
	// New returns a fresh zero entity used for scanning and probing.
	New func() Entity
	// Values returns the column values of e, in Columns order.
	Values func(e Entity) []any
	// Fields returns pointers to the columns of e, in Columns order, used as
	// scan destinations.
	Fields func(e Entity) []any
}

func (d *Descriptor) columnIndex(col string) int {
	for i, c := range d.Columns {
		if c == col {
			return i
		}
	}
	return -1
}
