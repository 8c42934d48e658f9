package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"product-content-ai/internal/domain"
	"product-content-ai/internal/domain/model"
	"product-content-ai/internal/domain/ports/repository"
	"product-content-ai/internal/infra/metrics"
)

var _ repository.RunStatusStore = (*RunStatusStore)(nil)

// RunStatusStore keeps run snapshots in process memory until ttl passes.
type RunStatusStore struct {
	c *gocache.Cache
}

func NewRunStatusStore(ttl time.Duration) *RunStatusStore {
	return &RunStatusStore{c: gocache.New(ttl, 2*ttl)}
}

func (s *RunStatusStore) Save(_ context.Context, run *model.RunState) error {
	cp := *run
	s.c.SetDefault(run.ID, &cp)
	return nil
}

func (s *RunStatusStore) Get(_ context.Context, id string) (*model.RunState, error) {
	v, ok := s.c.Get(id)
	if !ok {
		metrics.IncCacheRequest("run_status", "miss")
		return nil, domain.ErrNotFound
	}
	metrics.IncCacheRequest("run_status", "hit")
	cp := *v.(*model.RunState)
	return &cp, nil
}
