package domain

import (
	"time"

	"authgate/internal/store"
)

// Device binds a refresh token to one client of one user. Name is a
// client-supplied fingerprint (typically the User-Agent string) and is not
// guaranteed unique per user; the (OwnerID, Name) pair keys find-or-create
// on login. At most one live refresh-token hash is valid per device; rotation
// replaces it.
//
// Device is not ownable: it is created during unauthenticated login, and
// OwnerID is a plain foreign reference set by the auth service.
type Device struct {
	ID                    string
	Name                  string
	OwnerID               string
	RefreshTokenHash      string
	RefreshTokenExpiresAt *time.Time
	IsDeleted             bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// RefreshExpired reports whether the device's refresh token is unusable at
// now: no expiry recorded or the expiry has passed.
func (d *Device) RefreshExpired(now time.Time) bool {
	return d.RefreshTokenExpiresAt == nil || d.RefreshTokenExpiresAt.Before(now)
}

// Convention capability accessors (trackable + soft-deletable).

func (d *Device) EntityID() string            { return d.ID }
func (d *Device) SetEntityID(id string)       { d.ID = id }
func (d *Device) CreatedTime() time.Time      { return d.CreatedAt }
func (d *Device) SetCreatedTime(t time.Time)  { d.CreatedAt = t }
func (d *Device) SetUpdatedTime(t time.Time)  { d.UpdatedAt = t }
func (d *Device) IsDeletedFlag() bool         { return d.IsDeleted }
func (d *Device) SetDeletedFlag(deleted bool) { d.IsDeleted = deleted }

// Descriptor binds Device to the persistence gateway.
func Descriptor() *store.Descriptor {
	return &store.Descriptor{
		Table: "devices",
		Columns: []string{
			"id", "name", "owner_id", "refresh_token_hash",
			"refresh_token_expires_at", "is_deleted", "created_at", "updated_at",
		},
		Caps: store.CapTrackable | store.CapSoftDeletable,
		New:  func() store.Entity { return &Device{} },
		Values: func(e store.Entity) []any {
			d := e.(*Device)
			return []any{
				d.ID, d.Name, d.OwnerID, d.RefreshTokenHash,
				d.RefreshTokenExpiresAt, d.IsDeleted, d.CreatedAt, d.UpdatedAt,
			}
		},
		Fields: func(e store.Entity) []any {
			d := e.(*Device)
			return []any{
				&d.ID, &d.Name, &d.OwnerID, &d.RefreshTokenHash,
				&d.RefreshTokenExpiresAt, &d.IsDeleted, &d.CreatedAt, &d.UpdatedAt,
			}
		},
	}
}
