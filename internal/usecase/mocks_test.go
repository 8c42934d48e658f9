//go:build !integration

package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"product-content-ai/internal/domain"
	"product-content-ai/internal/domain/model"
	"product-content-ai/internal/domain/ports/adapter"
	ai "product-content-ai/internal/infra/adapters/ai"
)

// call is one backend invocation seen by a stub.
type call struct {
	Provider string
	Task     model.TaskType
	Req      model.GenerationRequest
	At       int
}

// callLog is shared by every stub backend of a test so order can be checked.
type callLog struct {
	mu    sync.Mutex
	seq   int
	calls []call
}

func (l *callLog) add(provider string, req model.GenerationRequest) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	l.calls = append(l.calls, call{Provider: provider, Task: req.TaskType, Req: req, At: l.seq})
}

func (l *callLog) all() []call {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]call(nil), l.calls...)
}

func (l *callLog) count(task model.TaskType) int {
	n := 0
	for _, c := range l.all() {
		if c.Task == task {
			n++
		}
	}
	return n
}

// itemKey identifies the item a request belongs to.
func itemKey(req model.GenerationRequest) string {
	switch {
	case req.Description != nil:
		return req.Description.ModelName
	case req.SEO != nil:
		return req.SEO.ProductName
	case req.FAQ != nil:
		return req.FAQ.ProductName
	}
	return ""
}

type replyFunc func(req model.GenerationRequest) (*adapter.BackendReply, error)

// stubBackend answers per task; tasks without a reply get a default output.
type stubBackend struct {
	name    string
	log     *callLog
	replies map[model.TaskType]replyFunc
	hook    func(req model.GenerationRequest)
}

func (s *stubBackend) Invoke(ctx context.Context, req model.GenerationRequest) (*adapter.BackendReply, error) {
	s.log.add(s.name, req)
	if s.hook != nil {
		s.hook(req)
	}
	if f, ok := s.replies[req.TaskType]; ok {
		return f(req)
	}
	return defaultReply(req), nil
}

func defaultReply(req model.GenerationRequest) *adapter.BackendReply {
	var out model.GenerationOutput
	switch req.TaskType {
	case model.TaskDescription:
		out.Description = &model.DescriptionOutput{
			ShortDescription: "Short about " + req.Description.ModelName,
			FullDescription:  "**Full** about " + req.Description.ModelName,
			Highlights:       []string{"h1-" + req.Description.ModelName, "h2-" + req.Description.ModelName},
		}
	case model.TaskSEO:
		out.SEO = &model.SEOOutput{Title: "Title " + req.SEO.ProductName, Description: "Desc " + req.SEO.ProductName}
	case model.TaskFAQ:
		out.FAQ = &model.FAQOutput{Entries: []model.FAQEntry{{Question: "Q?", Answer: "A."}}}
	}
	return &adapter.BackendReply{Output: out, Usage: model.Usage{InputUnits: 50, OutputUnits: 50, Reported: true}}
}

func failWith(kind domain.ErrorKind, status int) replyFunc {
	return func(model.GenerationRequest) (*adapter.BackendReply, error) {
		return nil, domain.NewProviderError("", kind, status, errors.New("stub failure"))
	}
}

func noSleep(context.Context, time.Duration) error { return nil }

// stubEnv wires the real registry, ledger, router and executor around stubs.
type stubEnv struct {
	log      *callLog
	backends map[string]*stubBackend
	registry *ai.Registry
	ledger   *Ledger
	router   *TaskRouter
	tasks    *TaskExecutor
}

func textProvider(name string, priority int, perCall int64) model.ProviderConfig {
	return model.ProviderConfig{
		Name: name, Kind: "stub", Enabled: true, Priority: priority,
		Pricing: model.Pricing{PerCallMicros: perCall},
	}
}

func newStubEnv(t *testing.T, cfgs []model.ProviderConfig, refUnits map[model.TaskType]int) *stubEnv {
	t.Helper()
	env := &stubEnv{log: &callLog{}, backends: make(map[string]*stubBackend)}
	for _, c := range cfgs {
		env.backends[model.NormalizeProviderName(c.Name)] = &stubBackend{
			name:    model.NormalizeProviderName(c.Name),
			log:     env.log,
			replies: make(map[model.TaskType]replyFunc),
		}
	}
	reg, err := ai.NewRegistry(cfgs,
		ai.WithSleep(noSleep),
		ai.WithBackend("stub", model.CategoryText, func(_ context.Context, cfg model.ProviderConfig) (adapter.Backend, error) {
			b, ok := env.backends[cfg.Name]
			if !ok {
				return nil, fmt.Errorf("no stub for %s", cfg.Name)
			}
			return b, nil
		}),
	)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	env.registry = reg
	env.ledger = NewLedger(nil)
	env.router = NewTaskRouter(reg, env.ledger, refUnits, nil)
	env.tasks = NewTaskExecutor(env.router, reg, env.ledger, nil)
	return env
}

// memSource is an in-memory raw input source.
type memSource struct {
	mu    sync.RWMutex
	items map[string]*model.Product
	order []string
}

func newMemSource(products ...model.Product) *memSource {
	s := &memSource{items: make(map[string]*model.Product)}
	for _, p := range products {
		cp := p
		s.items[p.Slug] = &cp
		s.order = append(s.order, p.Slug)
	}
	return s
}

func (m *memSource) Get(_ context.Context, slug string) (*model.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.items[slug]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memSource) List(context.Context) ([]string, error) {
	return append([]string(nil), m.order...), nil
}

func tyre(slug string, faq bool) model.Product {
	return model.Product{Slug: slug, ModelName: slug, Season: "summer", VehicleTypes: []string{"passenger"}, GenerateFAQ: faq}
}

// recordingPublisher keeps every bundle it was handed.
type recordingPublisher struct {
	mu      sync.Mutex
	bundles map[string]model.ContentBundle
	fail    map[string]error
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{bundles: make(map[string]model.ContentBundle), fail: make(map[string]error)}
}

func (r *recordingPublisher) Publish(_ context.Context, b model.ContentBundle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail[b.Slug]; err != nil {
		return err
	}
	r.bundles[b.Slug] = b
	return nil
}

func (r *recordingPublisher) get(slug string) (model.ContentBundle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bundles[slug]
	return b, ok
}

// upperMarkup marks transformed text so tests can tell it ran.
type upperMarkup struct{}

func (upperMarkup) Transform(s string) (string, error) { return "<p>" + strings.TrimSpace(s) + "</p>", nil }

// memStore and countingNotifier capture what the run scheduler publishes.
type memStore struct {
	mu   sync.Mutex
	runs map[string]*model.RunState
}

func (m *memStore) Save(_ context.Context, r *model.RunState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.runs == nil {
		m.runs = make(map[string]*model.RunState)
	}
	m.runs[r.ID] = r
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (*model.RunState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r, nil
}

type countingNotifier struct {
	mu   sync.Mutex
	runs []string
}

func (c *countingNotifier) RunFinished(_ context.Context, r *model.RunState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs = append(c.runs, r.ID)
	return nil
}
