package adapter

import (
	"context"

	"product-content-ai/internal/domain/model"
)

// BackendReply is what a concrete backend returns for one successful attempt.
type BackendReply struct {
	Output model.GenerationOutput
	Usage  model.Usage
}

// Backend performs exactly one call against an external API. It must classify
// every failure as a *domain.ProviderError; retries are not its concern.
type Backend interface {
	Invoke(ctx context.Context, req model.GenerationRequest) (*BackendReply, error)
}

// Provider is the uniform capability contract: validation, per-attempt timeout,
// classified retries and cost accounting around a Backend.
type Provider interface {
	Name() string
	Category() model.Category
	Config() model.ProviderConfig
	// Estimate returns the conservative cost of one call for req.
	Estimate(req model.GenerationRequest) int64
	Generate(ctx context.Context, req model.GenerationRequest) (*model.GenerationResult, error)
}

// TokenEstimator gives an upper-bound input size for a prompt.
type TokenEstimator interface {
	Estimate(model, text string) int
}
