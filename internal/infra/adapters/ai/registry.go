package ai

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"product-content-ai/internal/domain"
	"product-content-ai/internal/domain/model"
	"product-content-ai/internal/domain/ports/adapter"
)

// constructor builds the single-call backend for one provider config.
type constructor func(ctx context.Context, cfg model.ProviderConfig, d deps) (adapter.Backend, error)

// kindSpec pairs a constructor with the category the backend serves.
type kindSpec struct {
	category model.Category
	build    constructor
}

// constructors is the declarative kind -> constructor table.
var constructors = map[string]kindSpec{
	"openai":       {model.CategoryText, NewOpenAIBackend},
	"gemini":       {model.CategoryText, NewGeminiBackend},
	"anthropic":    {model.CategoryText, NewAnthropicBackend},
	"compatible":   {model.CategoryText, NewCompatibleBackend},
	"noop":         {model.CategoryText, NewNoopBackend},
	"openai_image": {model.CategoryImage, NewOpenAIImageBackend},
	"gemini_image": {model.CategoryImage, NewGeminiImageBackend},
	"noop_image":   {model.CategoryImage, NewNoopImageBackend},
}

// KnownKinds lists the registered backend kinds, sorted.
func KnownKinds() []string {
	out := make([]string, 0, len(constructors))
	for k := range constructors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type deps struct {
	log        *zerolog.Logger
	estimator  adapter.TokenEstimator
	policy     RetryPolicy
	sleep      SleepFunc
	window     Allower
	httpClient *http.Client
}

type Option func(*Registry)

func WithLogger(l *zerolog.Logger) Option { return func(r *Registry) { r.deps.log = l } }

func WithEstimator(e adapter.TokenEstimator) Option {
	return func(r *Registry) { r.deps.estimator = e }
}

func WithRetryPolicy(p RetryPolicy) Option { return func(r *Registry) { r.deps.policy = p } }

// WithSleep replaces the backoff wait; tests pass a recorder.
func WithSleep(s SleepFunc) Option { return func(r *Registry) { r.deps.sleep = s } }

// WithCallWindow enables the shared per-provider call window.
func WithCallWindow(a Allower) Option { return func(r *Registry) { r.deps.window = a } }

func WithHTTPClient(c *http.Client) Option { return func(r *Registry) { r.deps.httpClient = c } }

// WithBackend overrides the constructor for one kind (or adds a new kind).
func WithBackend(kind string, category model.Category, build func(ctx context.Context, cfg model.ProviderConfig) (adapter.Backend, error)) Option {
	return func(r *Registry) {
		r.kinds[kind] = kindSpec{category: category, build: func(ctx context.Context, cfg model.ProviderConfig, _ deps) (adapter.Backend, error) {
			return build(ctx, cfg)
		}}
	}
}

// Registry owns the immutable provider configuration and the built providers.
type Registry struct {
	configs []model.ProviderConfig
	index   map[string]int
	kinds   map[string]kindSpec
	deps    deps

	mu    sync.Mutex
	built map[string]adapter.Provider
}

// NewRegistry validates cfgs (declaration order is kept for tie-breaks).
// Failures wrap domain.ErrConfig.
func NewRegistry(cfgs []model.ProviderConfig, opts ...Option) (*Registry, error) {
	nop := zerolog.Nop()
	r := &Registry{
		index: make(map[string]int, len(cfgs)),
		kinds: make(map[string]kindSpec, len(constructors)),
		deps: deps{
			log:       &nop,
			estimator: HeuristicEstimator{},
			policy:    DefaultRetryPolicy(),
			sleep:     sleepCtx,
		},
		built: make(map[string]adapter.Provider),
	}
	for k, v := range constructors {
		r.kinds[k] = v
	}
	for _, o := range opts {
		o(r)
	}

	for _, c := range cfgs {
		c.Name = model.NormalizeProviderName(c.Name)
		if c.Name == "" {
			return nil, fmt.Errorf("provider without name: %w", domain.ErrConfig)
		}
		if _, dup := r.index[c.Name]; dup {
			return nil, fmt.Errorf("duplicate provider %q: %w", c.Name, domain.ErrConfig)
		}
		spec, ok := r.kinds[c.Kind]
		if !ok {
			return nil, fmt.Errorf("provider %q: unknown kind %q: %w", c.Name, c.Kind, domain.ErrConfig)
		}
		if c.Category == "" {
			c.Category = spec.category
		}
		if !c.Category.Valid() {
			return nil, fmt.Errorf("provider %q: invalid category %q: %w", c.Name, c.Category, domain.ErrConfig)
		}
		if c.Category != spec.category {
			return nil, fmt.Errorf("provider %q: kind %s serves %s, not %s: %w", c.Name, c.Kind, spec.category, c.Category, domain.ErrConfig)
		}
		if c.MaxOutputTokens < 0 {
			return nil, fmt.Errorf("provider %q: negative max_output_tokens: %w", c.Name, domain.ErrConfig)
		}
		if c.Category == model.CategoryText {
			// backends send this cap, so the estimate and the call agree
			c.MaxOutputTokens = c.OutputAllowance()
		}
		r.index[c.Name] = len(r.configs)
		r.configs = append(r.configs, c)
	}
	return r, nil
}

// Config returns the normalized config for name.
func (r *Registry) Config(name string) (model.ProviderConfig, bool) {
	i, ok := r.index[model.NormalizeProviderName(name)]
	if !ok {
		return model.ProviderConfig{}, false
	}
	return r.configs[i], true
}

// Configs returns all configs in declaration order.
func (r *Registry) Configs() []model.ProviderConfig {
	out := make([]model.ProviderConfig, len(r.configs))
	copy(out, r.configs)
	return out
}

// CandidatesFor lists enabled providers of the task's category, by ascending
// priority; ties keep declaration order.
func (r *Registry) CandidatesFor(task model.TaskType) []string {
	want := task.Category()
	var picked []model.ProviderConfig
	for _, c := range r.configs {
		if c.Enabled && c.Category == want {
			picked = append(picked, c)
		}
	}
	sort.SliceStable(picked, func(i, j int) bool { return picked[i].Priority < picked[j].Priority })
	names := make([]string, len(picked))
	for i, c := range picked {
		names[i] = c.Name
	}
	return names
}

// Create returns the provider for name, building it on first use. It fails
// with domain.ErrConfig for unknown or disabled names and category mismatches.
// Pass an empty category to skip the check.
func (r *Registry) Create(ctx context.Context, name string, expect model.Category) (adapter.Provider, error) {
	cfg, ok := r.Config(name)
	if !ok {
		return nil, fmt.Errorf("provider %q is not configured: %w", name, domain.ErrConfig)
	}
	if !cfg.Enabled {
		return nil, fmt.Errorf("provider %q is disabled: %w", cfg.Name, domain.ErrConfig)
	}
	if expect != "" && cfg.Category != expect {
		return nil, fmt.Errorf("provider %q serves %s, not %s: %w", cfg.Name, cfg.Category, expect, domain.ErrConfig)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.built[cfg.Name]; ok {
		return p, nil
	}
	backend, err := r.kinds[cfg.Kind].build(ctx, cfg, r.deps)
	if err != nil {
		return nil, fmt.Errorf("build provider %q: %v: %w", cfg.Name, err, domain.ErrConfig)
	}
	backend = NewLimitedBackend(backend, cfg, r.deps.window)
	p := newContractProvider(cfg, backend, r.deps)
	r.built[cfg.Name] = p
	r.deps.log.Debug().Str("provider", cfg.Name).Str("kind", cfg.Kind).Msg("provider built")
	return p, nil
}

// Get instantiates the first candidate for task.
func (r *Registry) Get(ctx context.Context, task model.TaskType) (adapter.Provider, error) {
	names := r.CandidatesFor(task)
	if len(names) == 0 {
		return nil, fmt.Errorf("task %s: %w", task, domain.ErrNoProviderAvailable)
	}
	return r.Create(ctx, names[0], task.Category())
}
