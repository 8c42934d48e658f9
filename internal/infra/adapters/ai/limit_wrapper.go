package ai

import (
	"context"
	"errors"
	"math"
	"time"

	"golang.org/x/time/rate"

	"product-content-ai/internal/domain"
	"product-content-ai/internal/domain/model"
	"product-content-ai/internal/domain/ports/adapter"
)

// Allower is a shared fixed-window limiter (see redis.RateLimiter).
type Allower interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Compile-time check
var _ adapter.Backend = (*limitedBackend)(nil)

type limitedBackend struct {
	name    string
	inner   adapter.Backend
	sem     chan struct{}
	limiter *rate.Limiter
	window  Allower
	perSec  int
}

// NewLimitedBackend bounds concurrent calls, paces requests and, when window is
// set, consults a shared per-second window. Returns inner when nothing is limited.
func NewLimitedBackend(inner adapter.Backend, cfg model.ProviderConfig, window Allower) adapter.Backend {
	l := &limitedBackend{name: cfg.Name, inner: inner}
	if cfg.MaxConcurrent > 0 {
		l.sem = make(chan struct{}, cfg.MaxConcurrent)
	}
	if cfg.RatePerSecond > 0 {
		burst := int(math.Ceil(cfg.RatePerSecond))
		l.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
		if window != nil {
			l.window = window
			l.perSec = burst
		}
	}
	if l.sem == nil && l.limiter == nil {
		return inner
	}
	return l
}

func (l *limitedBackend) Invoke(ctx context.Context, req model.GenerationRequest) (*adapter.BackendReply, error) {
	if l.sem != nil {
		select {
		case l.sem <- struct{}{}:
			defer func() { <-l.sem }()
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			// Wait fails early when the deadline can't be met
			return nil, domain.NewProviderError(l.name, domain.KindRateLimited, 0, err)
		}
	}
	if l.window != nil {
		ok, err := l.window.Allow(ctx, windowKey(l.name), l.perSec, time.Second)
		if err == nil && !ok {
			return nil, domain.NewProviderError(l.name, domain.KindRateLimited, 0, errors.New("shared call window exhausted"))
		}
		// a broken shared limiter must not stop generation; local pacing still applies
	}
	return l.inner.Invoke(ctx, req)
}

func windowKey(provider string) string {
	return "provider_window:" + provider
}
