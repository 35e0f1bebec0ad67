package repository

import (
	"context"
	"errors"
	"time"

	"authgate/internal/device/domain"
	"authgate/internal/store"
)

// Repository is CRUD over device records through the persistence gateway.
type Repository struct {
	gw *store.Gateway[*domain.Device]
}

// New returns a device repository over the given engine and backend.
func New(engine *store.Engine, be store.Backend) (*Repository, error) {
	gw, err := store.NewGateway[*domain.Device](engine, domain.Descriptor(), be)
	if err != nil {
		return nil, err
	}
	return &Repository{gw: gw}, nil
}

// GetByOwnerAndName returns the device for (ownerID, fingerprint), or nil if
// not found.
func (r *Repository) GetByOwnerAndName(ctx context.Context, ownerID, name string) (*domain.Device, error) {
	d, err := r.gw.First(ctx, store.And(store.Eq("owner_id", ownerID), store.Eq("name", name)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return d, nil
}

// GetByRefreshHash returns the device holding the given refresh-token hash,
// or nil if not found.
func (r *Repository) GetByRefreshHash(ctx context.Context, hash string) (*domain.Device, error) {
	d, err := r.gw.First(ctx, store.Eq("refresh_token_hash", hash))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return d, nil
}

// Create persists a new device.
func (r *Repository) Create(ctx context.Context, d *domain.Device) error {
	return r.gw.Insert(ctx, d)
}

// SetRefreshToken stores a new refresh-token hash and expiry on the device.
// Unconditional write; used on login where the caller just loaded or created
// the row.
func (r *Repository) SetRefreshToken(ctx context.Context, d *domain.Device, hash string, expiresAt time.Time) error {
	d.RefreshTokenHash = hash
	d.RefreshTokenExpiresAt = &expiresAt
	return r.gw.Update(ctx, d)
}

// RotateRefreshToken replaces the stored hash with newHash only while oldHash
// is still the stored value, as one atomic compare-and-swap. When a
// concurrent rotation got there first this returns store.ErrConflict; callers
// treat that as a benign collision.
func (r *Repository) RotateRefreshToken(ctx context.Context, d *domain.Device, oldHash, newHash string, expiresAt time.Time) error {
	d.RefreshTokenHash = newHash
	d.RefreshTokenExpiresAt = &expiresAt
	return r.gw.UpdateGuarded(ctx, d, store.Eq("refresh_token_hash", oldHash))
}

// HardDelete physically removes the device, bypassing the soft-delete
// rewrite. Used on logout.
func (r *Repository) HardDelete(ctx context.Context, d *domain.Device) error {
	return r.gw.HardDelete(ctx, d)
}

// PurgeExpired physically removes devices whose refresh token expired before
// now. Explicit operator path; nothing purges automatically.
func (r *Repository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.gw.HardDeleteWhere(ctx, store.Lt("refresh_token_expires_at", now))
}
