package ai

import (
	"context"
	"errors"
	"time"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"
	"github.com/rs/zerolog"

	"product-content-ai/internal/domain"
	"product-content-ai/internal/domain/model"
	"product-content-ai/internal/domain/ports/adapter"
)

var _ adapter.Backend = (*AnthropicBackend)(nil)

// AnthropicBackend uses llmkit's Messages client. The client takes no context,
// so the call runs in its own goroutine and the attempt returns at the deadline.
// Usage is not surfaced by llmkit; the contract prices these calls per call
// or by estimate.
type AnthropicBackend struct {
	name      string
	apiKey    string
	model     string
	maxTokens int
	prompt    promptFunc
	log       *zerolog.Logger
}

// promptFunc is the blocking llmkit call. llmkit takes no context, so a call
// that outlives its attempt keeps running and may still be billed.
type promptFunc func(system, user, apiKey string, settings types.RequestSettings) (string, error)

func llmkitPrompt(system, user, apiKey string, settings types.RequestSettings) (string, error) {
	response, err := anthropic.PromptWithSettings(system, user, "", apiKey, settings)
	if err != nil {
		return "", err
	}
	if len(response.Content) == 0 {
		return "", errors.New("no content in response")
	}
	return response.Content[0].Text, nil
}

func NewAnthropicBackend(_ context.Context, cfg model.ProviderConfig, d deps) (adapter.Backend, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic api key empty")
	}
	return &AnthropicBackend{
		name:      cfg.Name,
		apiKey:    cfg.APIKey,
		model:     modelOrDefault(cfg.Model, "claude-3-5-haiku-latest"),
		maxTokens: cfg.OutputAllowance(),
		prompt:    llmkitPrompt,
		log:       d.log,
	}, nil
}

func (a *AnthropicBackend) Invoke(ctx context.Context, req model.GenerationRequest) (*adapter.BackendReply, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return nil, domain.NewProviderError(a.name, domain.KindInvalidRequest, 0, err)
	}
	settings := types.RequestSettings{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		Temperature: 0.3,
	}

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	started := time.Now()
	go func() {
		text, err := a.prompt(prompt.System, prompt.User, a.apiKey, settings)
		done <- result{text: text, err: err}
	}()

	var r result
	select {
	case r = <-done:
	case <-ctx.Done():
		a.log.Warn().Str("provider", a.name).Str("task", string(req.TaskType)).
			Msg("attempt abandoned; the anthropic call keeps running and may still be billed")
		go func() {
			late := <-done
			a.log.Warn().Str("provider", a.name).Bool("failed", late.err != nil).
				Dur("took", time.Since(started)).Msg("abandoned anthropic call finished")
		}()
		return nil, ctx.Err()
	}
	if r.err != nil {
		return nil, classifyErr(a.name, r.err)
	}
	out, err := ParseOutput(a.name, req.TaskType, r.text)
	if err != nil {
		return nil, err
	}
	return &adapter.BackendReply{Output: out}, nil
}
