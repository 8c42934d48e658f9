package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"product-content-ai/internal/domain/model"
	"product-content-ai/internal/domain/ports/repository"
	"product-content-ai/internal/infra/metrics"
)

var _ repository.ItemSource = (*sourceCacheDecorator)(nil)

// sourceCacheDecorator caches product records by slug. List is never cached so
// new items show up on the next run.
type sourceCacheDecorator struct {
	inner repository.ItemSource
	c     *gocache.Cache
}

func NewSourceCacheDecorator(inner repository.ItemSource, ttl time.Duration) repository.ItemSource {
	return &sourceCacheDecorator{inner: inner, c: gocache.New(ttl, 2*ttl)}
}

func (d *sourceCacheDecorator) Get(ctx context.Context, slug string) (*model.Product, error) {
	if v, ok := d.c.Get(slug); ok {
		metrics.IncCacheRequest("product", "hit")
		p := *v.(*model.Product)
		return &p, nil
	}
	metrics.IncCacheRequest("product", "miss")
	p, err := d.inner.Get(ctx, slug)
	if err != nil {
		return nil, err
	}
	if p != nil {
		cp := *p
		d.c.SetDefault(slug, &cp)
	}
	return p, nil
}

func (d *sourceCacheDecorator) List(ctx context.Context) ([]string, error) {
	return d.inner.List(ctx)
}

// Flush drops every cached record, e.g. after the items file changed.
func Flush(src repository.ItemSource) {
	if d, ok := src.(*sourceCacheDecorator); ok {
		d.c.Flush()
	}
}
