package repository

import (
	"context"

	"product-content-ai/internal/domain/model"
)

// ItemSource is the raw input collaborator keyed by slug.
// Get returns domain.ErrNotFound for unknown slugs.
type ItemSource interface {
	Get(ctx context.Context, slug string) (*model.Product, error)
	List(ctx context.Context) ([]string, error)
}

// RunStatusStore keeps recent run snapshots for the admin API. Not durable.
type RunStatusStore interface {
	Save(ctx context.Context, run *model.RunState) error
	Get(ctx context.Context, id string) (*model.RunState, error)
}
