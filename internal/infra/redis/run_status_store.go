package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"product-content-ai/internal/domain"
	"product-content-ai/internal/domain/model"
	"product-content-ai/internal/domain/ports/repository"
)

// ErrMiss is a missing key.
var ErrMiss = errors.New("redis: key not found")

var _ repository.RunStatusStore = (*RunStatusStore)(nil)

// RunStatusStore keeps finished run snapshots as JSON with a TTL.
type RunStatusStore struct {
	kv  KV
	ttl time.Duration
}

func NewRunStatusStore(kv KV, ttl time.Duration) *RunStatusStore {
	return &RunStatusStore{kv: kv, ttl: ttl}
}

func runKey(id string) string { return "run_status:" + id }

func (s *RunStatusStore) Save(ctx context.Context, run *model.RunState) error {
	b, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run %s: %w", run.ID, err)
	}
	return s.kv.Set(ctx, runKey(run.ID), b, s.ttl)
}

func (s *RunStatusStore) Get(ctx context.Context, id string) (*model.RunState, error) {
	v, err := s.kv.Get(ctx, runKey(id))
	if errors.Is(err, ErrMiss) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var run model.RunState
	if err := json.Unmarshal([]byte(v), &run); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}
	return &run, nil
}
