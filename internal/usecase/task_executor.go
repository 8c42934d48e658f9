package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"product-content-ai/internal/domain"
	"product-content-ai/internal/domain/model"
	"product-content-ai/internal/infra/logging"
	"product-content-ai/internal/infra/metrics"
)

// TaskOutcome describes how one task went, successful or not.
type TaskOutcome struct {
	Result   *model.GenerationResult
	Provider string
	Attempts int
}

// TaskExecutor runs one generation task against the routed candidates in order.
type TaskExecutor struct {
	router  *TaskRouter
	catalog ProviderCatalog
	ledger  CostLedger
	log     *zerolog.Logger
}

func NewTaskExecutor(router *TaskRouter, catalog ProviderCatalog, ledger CostLedger, logger *zerolog.Logger) *TaskExecutor {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &TaskExecutor{router: router, catalog: catalog, ledger: ledger, log: logger}
}

// Execute walks the candidates: a failed reservation, exhausted attempts or an
// auth failure moves on to the next one; an invalid request stops at once.
// Auth failures disable the provider for the rest of the run. Provider calls
// are not interrupted by cancellation of ctx.
func (e *TaskExecutor) Execute(ctx context.Context, runID string, req model.GenerationRequest) (TaskOutcome, error) {
	var out TaskOutcome
	names, err := e.router.Route(runID, req.TaskType, req.ProviderOverride)
	if err != nil {
		return out, err
	}
	log := logging.With(ctx, e.log)
	callCtx := context.WithoutCancel(ctx)

	var lastErr error
	for _, name := range names {
		if e.ledger.IsDisabled(runID, name) {
			continue
		}
		p, err := e.catalog.Create(callCtx, name, req.TaskType.Category())
		if err != nil {
			lastErr = err
			log.Warn().Err(err).Str("provider", name).Msg("provider unavailable")
			continue
		}
		ticket, err := e.ledger.Reserve(runID, req.TaskType, p.Estimate(req))
		if err != nil {
			lastErr = err
			log.Debug().Err(err).Str("provider", name).Str("task", string(req.TaskType)).Msg("reservation refused")
			continue
		}

		res, err := p.Generate(callCtx, req)
		if err == nil {
			if cerr := e.ledger.Commit(ticket, res.CostMicros); cerr != nil {
				return out, fmt.Errorf("commit %s cost: %w", name, cerr)
			}
			out.Result = res
			out.Provider = name
			out.Attempts += res.RetryCount + 1
			return out, nil
		}

		if rerr := e.ledger.Release(ticket); rerr != nil {
			log.Warn().Err(rerr).Str("provider", name).Msg("release reservation")
		}
		out.Provider = name
		out.Attempts += attemptsOf(err)
		lastErr = err

		switch {
		case errors.Is(err, domain.ErrAuth):
			if e.ledger.DisableProvider(runID, name) {
				metrics.ProviderDisabled(name)
				log.Warn().Err(err).Str("provider", name).Msg("provider disabled for the rest of the run")
			}
		case errors.Is(err, domain.ErrInvalidRequest):
			return out, err
		default:
			log.Info().Err(err).Str("provider", name).Str("task", string(req.TaskType)).Msg("provider failed; trying next candidate")
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("task %s: every candidate is disabled: %w", req.TaskType, domain.ErrNoProviderAvailable)
	}
	return out, lastErr
}

func attemptsOf(err error) int {
	var ex *domain.AttemptsExhaustedError
	if errors.As(err, &ex) {
		return ex.Attempts
	}
	return 1
}
