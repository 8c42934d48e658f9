package source

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"product-content-ai/internal/domain"
	"product-content-ai/internal/domain/model"
	"product-content-ai/internal/domain/ports/repository"
)

var _ repository.ItemSource = (*FileSource)(nil)

// FileSource reads products from a YAML list. The file is re-read by List, so
// a run always sees the current contents; Get serves the last read.
type FileSource struct {
	path string

	mu    sync.RWMutex
	items map[string]model.Product
	order []string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read items %s: %v: %w", s.path, err, domain.ErrSource)
	}
	var list []model.Product
	if err := yaml.Unmarshal(b, &list); err != nil {
		return fmt.Errorf("parse items %s: %v: %w", s.path, err, domain.ErrSource)
	}
	items := make(map[string]model.Product, len(list))
	order := make([]string, 0, len(list))
	for i := range list {
		p := list[i]
		if err := Normalize(&p); err != nil {
			return fmt.Errorf("%v: %w", err, domain.ErrSource)
		}
		if p.Slug == "" {
			return fmt.Errorf("items %s: entry %d has no slug: %w", s.path, i, domain.ErrSource)
		}
		if _, dup := items[p.Slug]; dup {
			return fmt.Errorf("items %s: duplicate slug %q: %w", s.path, p.Slug, domain.ErrSource)
		}
		items[p.Slug] = p
		order = append(order, p.Slug)
	}
	s.mu.Lock()
	s.items, s.order = items, order
	s.mu.Unlock()
	return nil
}

// List returns slugs in file order.
func (s *FileSource) List(_ context.Context) ([]string, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...), nil
}

func (s *FileSource) Get(_ context.Context, slug string) (*model.Product, error) {
	s.mu.RLock()
	loaded := s.items != nil
	s.mu.RUnlock()
	if !loaded {
		if err := s.load(); err != nil {
			return nil, err
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.items[slug]
	if !ok {
		return nil, fmt.Errorf("product %q: %w", slug, domain.ErrNotFound)
	}
	p.VehicleTypes = append([]string(nil), p.VehicleTypes...)
	return &p, nil
}
