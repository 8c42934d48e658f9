package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"product-content-ai/internal/domain"
	"product-content-ai/internal/domain/model"
	"product-content-ai/internal/domain/ports/adapter"
	"product-content-ai/internal/infra/metrics"
)

// ProviderCatalog is the registry surface the core needs.
type ProviderCatalog interface {
	CandidatesFor(task model.TaskType) []string
	Config(name string) (model.ProviderConfig, bool)
	Create(ctx context.Context, name string, expect model.Category) (adapter.Provider, error)
}

// DefaultReferenceInputUnits is the input size routing prices candidates at.
var DefaultReferenceInputUnits = map[model.TaskType]int{
	model.TaskDescription: 800,
	model.TaskSEO:         400,
	model.TaskFAQ:         1200,
	model.TaskArticle:     1500,
	model.TaskImage:       0,
}

// TaskRouter orders affordable, usable candidates for one task.
type TaskRouter struct {
	catalog  ProviderCatalog
	ledger   CostLedger
	refUnits map[model.TaskType]int
	log      *zerolog.Logger
}

// NewTaskRouter builds a router. refUnits may be nil; missing tasks use the defaults.
func NewTaskRouter(catalog ProviderCatalog, ledger CostLedger, refUnits map[model.TaskType]int, logger *zerolog.Logger) *TaskRouter {
	units := make(map[model.TaskType]int, len(DefaultReferenceInputUnits))
	for k, v := range DefaultReferenceInputUnits {
		units[k] = v
	}
	for k, v := range refUnits {
		units[k] = v
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &TaskRouter{catalog: catalog, ledger: ledger, refUnits: units, log: logger}
}

// Route returns candidates in priority order, without providers disabled for
// the run and without those whose reference estimate exceeds the committed
// headroom of the run or the task. An empty affordable list is ErrBudgetExceeded.
// A non-empty override restricts the list to that provider.
func (r *TaskRouter) Route(runID string, task model.TaskType, override string) ([]string, error) {
	names := r.catalog.CandidatesFor(task)
	if override != "" {
		want := model.NormalizeProviderName(override)
		names = filterNames(names, func(n string) bool { return n == want })
		if len(names) == 0 {
			return nil, fmt.Errorf("override %q cannot serve %s: %w", override, task, domain.ErrNoProviderAvailable)
		}
	}
	names = filterNames(names, func(n string) bool { return !r.ledger.IsDisabled(runID, n) })
	if len(names) == 0 {
		return nil, fmt.Errorf("task %s: %w", task, domain.ErrNoProviderAvailable)
	}

	headroom, err := r.ledger.Headroom(runID, task)
	if err != nil {
		return nil, err
	}
	ref := r.refUnits[task]
	affordable := filterNames(names, func(n string) bool {
		cfg, ok := r.catalog.Config(n)
		return ok && cfg.EstimateCost(ref) <= headroom
	})
	if len(affordable) == 0 {
		metrics.BudgetBlocked(string(task), "route")
		r.log.Info().Str("run_id", runID).Str("task", string(task)).
			Str("headroom", model.FormatMicros(headroom)).Strs("candidates", names).
			Msg("no affordable provider")
		return nil, fmt.Errorf("task %s: no candidate fits %s headroom: %w", task, model.FormatMicros(headroom), domain.ErrBudgetExceeded)
	}
	return affordable, nil
}

func filterNames(in []string, keep func(string) bool) []string {
	out := make([]string, 0, len(in))
	for _, n := range in {
		if keep(n) {
			out = append(out, n)
		}
	}
	return out
}
