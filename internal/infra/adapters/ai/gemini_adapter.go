package ai

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"

	"product-content-ai/internal/domain"
	"product-content-ai/internal/domain/model"
	"product-content-ai/internal/domain/ports/adapter"
)

var (
	_ adapter.Backend = (*GeminiBackend)(nil)
	_ adapter.Backend = (*GeminiImageBackend)(nil)
)

func newGenAIClient(ctx context.Context, cfg model.ProviderConfig, d deps) (*genai.Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: cfg.Endpoint,
		},
	}
	if d.httpClient != nil {
		cc.HTTPClient = d.httpClient
	}
	return genai.NewClient(ctx, cc)
}

func genAIError(provider string, err error) *domain.ProviderError {
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code != 0 {
		return statusError(provider, apiErr.Code, err)
	}
	return classifyErr(provider, err)
}

// GeminiBackend calls Models.GenerateContent with the system prompt as instruction.
type GeminiBackend struct {
	name   string
	model  string
	maxOut int
	client *genai.Client
}

// NewGeminiBackend creates a Gemini backend using the official SDK.
func NewGeminiBackend(ctx context.Context, cfg model.ProviderConfig, d deps) (adapter.Backend, error) {
	c, err := newGenAIClient(ctx, cfg, d)
	if err != nil {
		return nil, err
	}
	return &GeminiBackend{name: cfg.Name, model: modelOrDefault(cfg.Model, "gemini-2.0-flash"), maxOut: cfg.OutputAllowance(), client: c}, nil
}

func (g *GeminiBackend) Invoke(ctx context.Context, req model.GenerationRequest) (*adapter.BackendReply, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return nil, domain.NewProviderError(g.name, domain.KindInvalidRequest, 0, err)
	}
	gc := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: prompt.System}}},
		ResponseMIMEType:  "application/json",
	}
	if g.maxOut > 0 {
		gc.MaxOutputTokens = int32(g.maxOut)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt.User), gc)
	if err != nil {
		return nil, genAIError(g.name, err)
	}

	// Extract text
	var b strings.Builder
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, p := range resp.Candidates[0].Content.Parts {
			if p != nil {
				b.WriteString(p.Text)
			}
		}
	}
	if b.Len() == 0 {
		return nil, domain.NewProviderError(g.name, domain.KindUnknown, 0, errors.New("gemini: empty candidate"))
	}
	out, err := ParseOutput(g.name, req.TaskType, b.String())
	if err != nil {
		return nil, err
	}
	// Usage (if present)
	u := model.Usage{}
	if resp.UsageMetadata != nil {
		u.InputUnits = int(resp.UsageMetadata.PromptTokenCount)
		u.OutputUnits = int(resp.UsageMetadata.CandidatesTokenCount)
		u.Reported = true
	}
	return &adapter.BackendReply{Output: out, Usage: u}, nil
}

// GeminiImageBackend calls Models.GenerateImages (Imagen) for one image.
type GeminiImageBackend struct {
	name   string
	model  string
	client *genai.Client
}

func NewGeminiImageBackend(ctx context.Context, cfg model.ProviderConfig, d deps) (adapter.Backend, error) {
	c, err := newGenAIClient(ctx, cfg, d)
	if err != nil {
		return nil, err
	}
	return &GeminiImageBackend{name: cfg.Name, model: modelOrDefault(cfg.Model, "imagen-3.0-generate-002"), client: c}, nil
}

func (g *GeminiImageBackend) Invoke(ctx context.Context, req model.GenerationRequest) (*adapter.BackendReply, error) {
	resp, err := g.client.Models.GenerateImages(ctx, g.model, req.Image.Prompt, nil)
	if err != nil {
		return nil, genAIError(g.name, err)
	}
	if resp == nil || len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return nil, domain.NewProviderError(g.name, domain.KindUnknown, 0, errors.New("gemini: no image generated"))
	}
	img := resp.GeneratedImages[0].Image
	return &adapter.BackendReply{
		Output: model.GenerationOutput{Image: &model.ImageOutput{Data: img.ImageBytes, MIMEType: img.MIMEType}},
		Usage:  model.Usage{OutputUnits: len(resp.GeneratedImages), Reported: true},
	}, nil
}

func modelOrDefault(model, def string) string {
	if strings.TrimSpace(model) != "" {
		return model
	}
	return def
}
