package repository

import (
	"context"

	"authgate/internal/activity/domain"
	"authgate/internal/store"
)

// Repository persists and lists activity records through the persistence
// gateway. The gateway stamps the owner on insert and scopes reads to the
// acting user; this package never touches owner fields itself.
type Repository struct {
	gw *store.Gateway[*domain.Record]
}

// New returns an activity repository over the given engine and backend.
func New(engine *store.Engine, be store.Backend) (*Repository, error) {
	gw, err := store.NewGateway[*domain.Record](engine, domain.Descriptor(), be)
	if err != nil {
		return nil, err
	}
	return &Repository{gw: gw}, nil
}

// Record writes one activity entry for the acting user.
func (r *Repository) Record(ctx context.Context, action, detail string) error {
	return r.gw.Insert(ctx, &domain.Record{Action: action, Detail: detail})
}

// ListForActor returns the acting user's activity records. Records of other
// users are filtered out by the ownership convention.
func (r *Repository) ListForActor(ctx context.Context) ([]*domain.Record, error) {
	return r.gw.List(ctx, store.All())
}
