package domain

import (
	"time"

	"authgate/internal/store"
)

// Record is one entry in a user's activity trail, written on authenticated
// operations. It is ownable: the gateway stamps the owner from the
// authenticated actor on insert, and reads are scoped to that actor.
type Record struct {
	ID        string
	Owner     string
	Action    string
	Detail    string
	IsDeleted bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Convention capability accessors (trackable + ownable + soft-deletable).

func (r *Record) EntityID() string            { return r.ID }
func (r *Record) SetEntityID(id string)       { r.ID = id }
func (r *Record) CreatedTime() time.Time      { return r.CreatedAt }
func (r *Record) SetCreatedTime(t time.Time)  { r.CreatedAt = t }
func (r *Record) SetUpdatedTime(t time.Time)  { r.UpdatedAt = t }
func (r *Record) OwnerActor() string          { return r.Owner }
func (r *Record) SetOwnerActor(actor string)  { r.Owner = actor }
func (r *Record) IsDeletedFlag() bool         { return r.IsDeleted }
func (r *Record) SetDeletedFlag(deleted bool) { r.IsDeleted = deleted }

// Descriptor binds Record to the persistence gateway.
func Descriptor() *store.Descriptor {
	return &store.Descriptor{
		Table:   "activity_records",
		Columns: []string{"id", "owner", "action", "detail", "is_deleted", "created_at", "updated_at"},
		Caps:    store.CapTrackable | store.CapOwnable | store.CapSoftDeletable,
		New:     func() store.Entity { return &Record{} },
		Values: func(e store.Entity) []any {
			r := e.(*Record)
			return []any{r.ID, r.Owner, r.Action, r.Detail, r.IsDeleted, r.CreatedAt, r.UpdatedAt}
		},
		Fields: func(e store.Entity) []any {
			r := e.(*Record)
			return []any{&r.ID, &r.Owner, &r.Action, &r.Detail, &r.IsDeleted, &r.CreatedAt, &r.UpdatedAt}
		},
	}
}
