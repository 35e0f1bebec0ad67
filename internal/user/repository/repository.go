package repository

import (
	"context"
	"errors"

	"authgate/internal/store"
	"authgate/internal/user/domain"
)

// Repository is read access to user records through the persistence gateway.
// Soft-deleted users are invisible to its lookups.
type Repository struct {
	gw *store.Gateway[*domain.User]
}

// New returns a user repository over the given engine and backend.
func New(engine *store.Engine, be store.Backend) (*Repository, error) {
	gw, err := store.NewGateway[*domain.User](engine, domain.Descriptor(), be)
	if err != nil {
		return nil, err
	}
	return &Repository{gw: gw}, nil
}

// GetByName returns the user with the given login handle, or nil if not
// found. Errors are returned only for store failures, not missing rows.
func (r *Repository) GetByName(ctx context.Context, name string) (*domain.User, error) {
	u, err := r.gw.First(ctx, store.Eq("name", name))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// GetByID returns the user for id, or nil if not found.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	u, err := r.gw.First(ctx, store.Eq("id", id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// Create persists a new user. Used by provisioning tooling (cmd/seed), not
// by the session core.
func (r *Repository) Create(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	return r.gw.Insert(ctx, u)
}
