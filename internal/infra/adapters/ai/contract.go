package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"product-content-ai/internal/domain"
	"product-content-ai/internal/domain/model"
	"product-content-ai/internal/domain/ports/adapter"
	"product-content-ai/internal/infra/logging"
	"product-content-ai/internal/infra/metrics"
)

// RetryPolicy is the backoff shared by every provider.
type RetryPolicy struct {
	BaseDelay time.Duration
	// RateLimitMultiplier stretches the delay after a RateLimited attempt.
	RateLimitMultiplier int
	MaxDelay            time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{BaseDelay: 500 * time.Millisecond, RateLimitMultiplier: 4, MaxDelay: 30 * time.Second}
}

// Delay returns the wait before retry number attempt (0-based) after a failure of kind.
func (p RetryPolicy) Delay(attempt int, kind domain.ErrorKind) time.Duration {
	d := p.BaseDelay << attempt
	if kind == domain.KindRateLimited && p.RateLimitMultiplier > 1 {
		d *= time.Duration(p.RateLimitMultiplier)
	}
	if p.MaxDelay > 0 && (d > p.MaxDelay || d < 0) {
		d = p.MaxDelay
	}
	return d
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ adapter.Provider = (*contractProvider)(nil)

// contractProvider implements adapter.Provider around a single-call Backend.
type contractProvider struct {
	cfg       model.ProviderConfig
	backend   adapter.Backend
	estimator adapter.TokenEstimator
	policy    RetryPolicy
	sleep     SleepFunc
	log       *zerolog.Logger
}

func newContractProvider(cfg model.ProviderConfig, backend adapter.Backend, d deps) *contractProvider {
	return &contractProvider{
		cfg:       cfg,
		backend:   backend,
		estimator: d.estimator,
		policy:    d.policy,
		sleep:     d.sleep,
		log:       d.log,
	}
}

func (p *contractProvider) Name() string                 { return p.cfg.Name }
func (p *contractProvider) Category() model.Category     { return p.cfg.Category }
func (p *contractProvider) Config() model.ProviderConfig { return p.cfg }

// Estimate prices one call for req with the whole output allowance.
func (p *contractProvider) Estimate(req model.GenerationRequest) int64 {
	return p.cfg.EstimateCost(p.inputUnits(req))
}

func (p *contractProvider) inputUnits(req model.GenerationRequest) int {
	if req.TaskType.Category() == model.CategoryImage {
		return 0
	}
	prompt, err := BuildPrompt(req)
	if err != nil {
		return 0
	}
	return p.estimator.Estimate(p.cfg.Model, prompt.System+"\n"+prompt.User)
}

// Generate validates req, then runs up to Retries()+1 attempts, each bounded by
// the call timeout. Only a successful attempt is priced.
func (p *contractProvider) Generate(ctx context.Context, req model.GenerationRequest) (*model.GenerationResult, error) {
	if req.TaskType.Category() != p.cfg.Category {
		return nil, domain.NewProviderError(p.cfg.Name, domain.KindInvalidRequest, 0,
			fmt.Errorf("task %s needs a %s provider, got %s", req.TaskType, req.TaskType.Category(), p.cfg.Category))
	}
	if err := req.Validate(); err != nil {
		return nil, domain.NewProviderError(p.cfg.Name, domain.KindInvalidRequest, 0, err)
	}

	log := logging.With(logging.WithProvider(ctx, p.cfg.Name), p.log)
	maxAttempts := p.cfg.Retries() + 1
	unknownSeen := false
	start := time.Now()

	for attempt := 0; ; attempt++ {
		reply, perr := p.attempt(ctx, req)
		if perr == nil {
			res := &model.GenerationResult{
				Output:       reply.Output,
				ProviderUsed: p.cfg.Name,
				Usage:        reply.Usage,
				CostMicros:   p.cost(req, reply.Usage),
				Latency:      time.Since(start),
				RetryCount:   attempt,
			}
			metrics.ObserveUsage(p.cfg.Name, string(req.TaskType), res.Usage.InputUnits, res.Usage.OutputUnits, res.CostMicros)
			return res, nil
		}

		ev := log.Debug()
		if !perr.Kind.Retryable() {
			ev = log.Warn()
		}
		ev.Err(perr).Int("attempt", attempt+1).Int("max_attempts", maxAttempts).
			Str("task", string(req.TaskType)).Msg("provider attempt failed")

		if !perr.Kind.Retryable() {
			return nil, perr
		}
		last := perr
		if perr.Kind == domain.KindUnknown {
			// an unknown failure ends as a transient exhaustion
			last = domain.NewProviderError(p.cfg.Name, domain.KindTransient, perr.StatusCode, perr)
			if unknownSeen {
				return nil, &domain.AttemptsExhaustedError{Provider: p.cfg.Name, Attempts: attempt + 1, Last: last}
			}
			unknownSeen = true
		}
		if attempt+1 >= maxAttempts {
			return nil, &domain.AttemptsExhaustedError{Provider: p.cfg.Name, Attempts: attempt + 1, Last: last}
		}
		if err := p.sleep(ctx, p.policy.Delay(attempt, perr.Kind)); err != nil {
			return nil, fmt.Errorf("%s: backoff interrupted: %w", p.cfg.Name, err)
		}
	}
}

// attempt performs one bounded call; a blown deadline is Transient.
func (p *contractProvider) attempt(ctx context.Context, req model.GenerationRequest) (*adapter.BackendReply, *domain.ProviderError) {
	actx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout())
	defer cancel()

	began := time.Now()
	reply, err := p.backend.Invoke(actx, req)
	elapsed := time.Since(began).Milliseconds()

	if err == nil && reply == nil {
		err = errors.New("backend returned no reply")
	}
	if err != nil {
		var perr *domain.ProviderError
		if actx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			perr = domain.NewProviderError(p.cfg.Name, domain.KindTransient, 0,
				fmt.Errorf("attempt timed out after %s: %w", p.cfg.CallTimeout(), err))
		} else {
			perr = classifyErr(p.cfg.Name, err)
		}
		metrics.ObserveAttempt(p.cfg.Name, string(perr.Kind), elapsed)
		return nil, perr
	}
	metrics.ObserveAttempt(p.cfg.Name, "ok", elapsed)
	return reply, nil
}

// cost prices reported usage; without usage the flat per-call price applies,
// and a usage-only table falls back to the conservative estimate.
func (p *contractProvider) cost(req model.GenerationRequest, u model.Usage) int64 {
	pr := p.cfg.Pricing
	switch {
	case u.Reported && pr.UsageBased():
		return pr.Cost(u.InputUnits, u.OutputUnits)
	case pr.PerCallMicros > 0 || !pr.UsageBased():
		return pr.PerCallMicros
	default:
		return p.Estimate(req)
	}
}
