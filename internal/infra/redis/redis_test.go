//go:build !integration

package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"product-content-ai/internal/domain"
	"product-content-ai/internal/domain/model"
)

// memKV mimics the redis commands over a map. Expiry is recorded, not enforced.
type memKV struct {
	mu   sync.Mutex
	vals map[string]string
	ttl  map[string]time.Duration
	fail error
}

func newMemKV() *memKV {
	return &memKV{vals: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (m *memKV) Set(_ context.Context, key string, value interface{}, exp time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	switch v := value.(type) {
	case []byte:
		m.vals[key] = string(v)
	default:
		m.vals[key] = fmt.Sprint(v)
	}
	m.ttl[key] = exp
	return nil
}

func (m *memKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vals[key]
	if !ok {
		return "", ErrMiss
	}
	return v, nil
}

func (m *memKV) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return 0, m.fail
	}
	var n int64
	fmt.Sscan(m.vals[key], &n)
	n++
	m.vals[key] = fmt.Sprint(n)
	return n, nil
}

func (m *memKV) Expire(_ context.Context, key string, exp time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ttl[key] = exp
	return nil
}

func TestRateLimiter_Allow(t *testing.T) {
	kv := newMemKV()
	rl := NewRateLimiter(kv)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "provider_window:openai", 3, time.Second)
		if err != nil || !ok {
			t.Fatalf("call %d should pass: %v", i, err)
		}
	}
	if ok, _ := rl.Allow(ctx, "provider_window:openai", 3, time.Second); ok {
		t.Fatal("fourth call in the window must be denied")
	}
	if kv.ttl["provider_window:openai"] != time.Second {
		t.Fatal("window expiry not set on first hit")
	}

	kv.fail = errors.New("conn refused")
	if _, err := rl.Allow(ctx, "provider_window:other", 3, time.Second); err == nil {
		t.Fatal("expected the redis error")
	}
}

func TestRunStatusStore(t *testing.T) {
	kv := newMemKV()
	store := NewRunStatusStore(kv, time.Hour)
	ctx := context.Background()

	t.Run("should round trip a run", func(t *testing.T) {
		run := &model.RunState{
			ID: "01HX", CommittedMicros: 1200, Cancelled: true,
			Outcomes: []model.ItemOutcome{{Slug: "a", Outcome: model.OutcomePublished}},
		}
		if err := store.Save(ctx, run); err != nil {
			t.Fatal(err)
		}
		got, err := store.Get(ctx, "01HX")
		if err != nil {
			t.Fatal(err)
		}
		if got.CommittedMicros != 1200 || !got.Cancelled || got.Outcomes[0].Slug != "a" {
			t.Fatalf("unexpected %+v", got)
		}
		if kv.ttl[runKey("01HX")] != time.Hour {
			t.Fatal("ttl not applied")
		}
	})

	t.Run("should map a miss to not found", func(t *testing.T) {
		if _, err := store.Get(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}
