package domain

import (
	"errors"
	"time"

	"authgate/internal/store"
)

// User is an account record. Created by provisioning tooling; the session
// core only ever reads it.
type User struct {
	ID           string
	Name         string // login handle, unique
	PasswordHash string // bcrypt output, never the raw password
	Role         string // authorization tag embedded in access tokens
	IsDeleted    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate checks the user for persistence.
func (u *User) Validate() error {
	if u.Name == "" {
		return errors.New("name is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if u.Role == "" {
		u.Role = "user"
	}
	return nil
}

// Convention capability accessors (trackable + soft-deletable).

func (u *User) EntityID() string            { return u.ID }
func (u *User) SetEntityID(id string)       { u.ID = id }
func (u *User) CreatedTime() time.Time      { return u.CreatedAt }
func (u *User) SetCreatedTime(t time.Time)  { u.CreatedAt = t }
func (u *User) SetUpdatedTime(t time.Time)  { u.UpdatedAt = t }
func (u *User) IsDeletedFlag() bool         { return u.IsDeleted }
func (u *User) SetDeletedFlag(deleted bool) { u.IsDeleted = deleted }

// Descriptor binds User to the persistence gateway.
func Descriptor() *store.Descriptor {
	return &store.Descriptor{
		Table:   "users",
		Columns: []string{"id", "name", "password_hash", "role", "is_deleted", "created_at", "updated_at"},
		Caps:    store.CapTrackable | store.CapSoftDeletable,
		New:     func() store.Entity { return &User{} },
		Values: func(e store.Entity) []any {
			u := e.(*User)
			return []any{u.ID, u.Name, u.PasswordHash, u.Role, u.IsDeleted, u.CreatedAt, u.UpdatedAt}
		},
		Fields: func(e store.Entity) []any {
			u := e.(*User)
			return []any{&u.ID, &u.Name, &u.PasswordHash, &u.Role, &u.IsDeleted, &u.CreatedAt, &u.UpdatedAt}
		},
	}
}
