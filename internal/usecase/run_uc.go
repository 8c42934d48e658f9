package usecase

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"product-content-ai/internal/domain/model"
	"product-content-ai/internal/domain/ports/adapter"
	"product-content-ai/internal/domain/ports/repository"
	"product-content-ai/internal/infra/logging"
	"product-content-ai/internal/infra/metrics"
	"product-content-ai/internal/infra/worker"
)

// RunUseCase executes a batch of items as one budgeted run.
type RunUseCase interface {
	Run(ctx context.Context, slugs []string) (*model.RunState, error)
}

var _ RunUseCase = (*RunScheduler)(nil)

// RunScheduler runs item pipelines on a bounded worker pool. Cancelling ctx
// stops new items from starting; items already running finish their current
// stage and end at the next stage boundary.
type RunScheduler struct {
	pipeline ItemPipeline
	ledger   CostLedger
	limits   model.CostLimits
	workers  int
	store    repository.RunStatusStore
	notifier adapter.RunNotifier
	newID    func() string
	log      *zerolog.Logger
}

// NewRunScheduler wires the scheduler. store and notifier may be nil.
func NewRunScheduler(
	pipeline ItemPipeline,
	ledger CostLedger,
	limits model.CostLimits,
	workers int,
	store repository.RunStatusStore,
	notifier adapter.RunNotifier,
	logger *zerolog.Logger,
) *RunScheduler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &RunScheduler{
		pipeline: pipeline,
		ledger:   ledger,
		limits:   limits,
		workers:  workers,
		store:    store,
		notifier: notifier,
		newID:    func() string { return ulid.Make().String() },
		log:      logger,
	}
}

// Run returns once every item has a terminal outcome. Partial failure is not
// an error; the returned state carries one outcome per slug.
func (s *RunScheduler) Run(ctx context.Context, slugs []string) (*model.RunState, error) {
	runID := s.newID()
	if err := s.ledger.Open(runID, s.limits); err != nil {
		return nil, err
	}
	ctx = logging.WithRunID(ctx, runID)
	log := logging.With(ctx, s.log)
	log.Info().Int("items", len(slugs)).Int("workers", s.workers).
		Str("max_per_run", model.FormatMicros(s.limits.MaxPerRunMicros)).Msg("run started")
	metrics.RunStarted()
	started := time.Now()

	pool := worker.NewPool(s.workers, s.log)
	pool.Start(ctx)

	var begun atomic.Int32
	skip := func(slug string) {
		s.record(runID, model.ItemOutcome{Slug: slug, Outcome: model.OutcomeSkipped, LastStage: model.StagePending, ErrorKind: "cancelled"})
	}

	for i, slug := range slugs {
		if ctx.Err() != nil {
			for _, rest := range slugs[i:] {
				skip(rest)
			}
			break
		}
		err := pool.Submit(ctx, func(taskCtx context.Context) error {
			// the pool may hand over a task just as the run is cancelled
			if taskCtx.Err() != nil {
				skip(slug)
				return nil
			}
			begun.Add(1)
			s.record(runID, s.execute(taskCtx, runID, slug))
			return nil
		})
		if err != nil {
			for _, rest := range slugs[i:] {
				skip(rest)
			}
			break
		}
	}
	pool.Stop()

	if ctx.Err() != nil {
		s.ledger.MarkCancelled(runID)
	}
	state, err := s.ledger.Close(runID)
	if err != nil {
		return nil, err
	}
	metrics.RunFinished(state.Cancelled)

	counts := state.Counts()
	log.Info().
		Int("published", counts[model.OutcomePublished]).
		Int("failed", counts[model.OutcomeFailed]).
		Int("skipped", counts[model.OutcomeSkipped]).
		Int32("started", begun.Load()).
		Str("spent", model.FormatMicros(state.CommittedMicros)).
		Bool("cancelled", state.Cancelled).
		Dur("took", time.Since(started).Round(time.Millisecond)).
		Msg("run finished")

	s.publishState(ctx, state)
	return state, nil
}

func (s *RunScheduler) record(runID string, o model.ItemOutcome) {
	if o.Outcome == model.OutcomeSkipped {
		metrics.ObserveItemOutcome(string(o.Outcome), o.ErrorKind)
	}
	if err := s.ledger.RecordOutcome(runID, o); err != nil {
		s.log.Error().Err(err).Str("run_id", runID).Str("slug", o.Slug).Msg("record outcome")
	}
}

// execute runs one pipeline. A panic still yields a Failed outcome so the
// slug is never left without one.
func (s *RunScheduler) execute(ctx context.Context, runID, slug string) (out model.ItemOutcome) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error().Interface("panic", rec).Str("run_id", runID).Str("slug", slug).Msg("item pipeline panicked")
			out = model.ItemOutcome{
				Slug:      slug,
				Outcome:   model.OutcomeFailed,
				LastStage: model.StageFailed,
				Error:     fmt.Sprintf("pipeline panic: %v", rec),
				ErrorKind: "unknown",
			}
			metrics.ObserveItemOutcome(string(out.Outcome), out.ErrorKind)
		}
	}()
	return s.pipeline.Execute(ctx, runID, slug).Summary()
}

// publishState hands the final snapshot to the status store and notifier.
// Their failures are logged; the run result stands.
func (s *RunScheduler) publishState(ctx context.Context, state *model.RunState) {
	ctx = context.WithoutCancel(ctx)
	if s.store != nil {
		if err := s.store.Save(ctx, state); err != nil {
			s.log.Warn().Err(err).Str("run_id", state.ID).Msg("save run status")
		}
	}
	if s.notifier != nil {
		if err := s.notifier.RunFinished(ctx, state); err != nil {
			s.log.Warn().Err(err).Str("run_id", state.ID).Msg("notify run finished")
		}
	}
}
