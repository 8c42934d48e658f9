package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"product-content-ai/internal/domain"
	"product-content-ai/internal/domain/model"
	"product-content-ai/internal/domain/ports/adapter"
)

// Compile-time assurance these backends satisfy the port
var (
	_ adapter.Backend = (*OpenAIBackend)(nil)
	_ adapter.Backend = (*OpenAIImageBackend)(nil)
)

func openAIClient(cfg model.ProviderConfig, d deps) openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// retries belong to the capability contract
		option.WithMaxRetries(0),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.Endpoint, "/")+"/"))
	}
	if d.httpClient != nil {
		opts = append(opts, option.WithHTTPClient(d.httpClient))
	}
	return openai.NewClient(opts...)
}

func openAIError(provider string, err error) *domain.ProviderError {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return statusError(provider, apiErr.StatusCode, err)
	}
	return classifyErr(provider, err)
}

// OpenAIBackend uses the Chat Completions API with a JSON-only instruction.
type OpenAIBackend struct {
	name      string
	model     string
	maxTokens int
	client    openai.Client
}

func NewOpenAIBackend(_ context.Context, cfg model.ProviderConfig, d deps) (adapter.Backend, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key empty")
	}
	m := cfg.Model
	if m == "" {
		m = "gpt-4o-mini"
	}
	return &OpenAIBackend{name: cfg.Name, model: m, maxTokens: cfg.OutputAllowance(), client: openAIClient(cfg, d)}, nil
}

func (o *OpenAIBackend) Invoke(ctx context.Context, req model.GenerationRequest) (*adapter.BackendReply, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return nil, domain.NewProviderError(o.name, domain.KindInvalidRequest, 0, err)
	}
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt.System),
			openai.UserMessage(prompt.User),
		},
	}
	if o.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(o.maxTokens))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, openAIError(o.name, err)
	}
	text := ""
	for _, c := range resp.Choices {
		if c.Message.Content != "" {
			text = c.Message.Content
			break
		}
	}
	if text == "" {
		return nil, domain.NewProviderError(o.name, domain.KindUnknown, 0, errors.New("no choice content"))
	}
	out, err := ParseOutput(o.name, req.TaskType, text)
	if err != nil {
		return nil, err
	}
	return &adapter.BackendReply{
		Output: out,
		Usage: model.Usage{
			InputUnits:  int(resp.Usage.PromptTokens),
			OutputUnits: int(resp.Usage.CompletionTokens),
			Reported:    resp.Usage.PromptTokens > 0 || resp.Usage.CompletionTokens > 0,
		},
	}, nil
}

// OpenAIImageBackend generates one image per call; usage is counted in images.
type OpenAIImageBackend struct {
	name   string
	model  string
	client openai.Client
}

func NewOpenAIImageBackend(_ context.Context, cfg model.ProviderConfig, d deps) (adapter.Backend, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key empty")
	}
	m := cfg.Model
	if m == "" {
		m = "gpt-image-1"
	}
	return &OpenAIImageBackend{name: cfg.Name, model: m, client: openAIClient(cfg, d)}, nil
}

func (o *OpenAIImageBackend) Invoke(ctx context.Context, req model.GenerationRequest) (*adapter.BackendReply, error) {
	resp, err := o.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt: req.Image.Prompt,
		Model:  openai.ImageModel(o.model),
		N:      openai.Int(1),
	})
	if err != nil {
		return nil, openAIError(o.name, err)
	}
	if len(resp.Data) == 0 {
		return nil, domain.NewProviderError(o.name, domain.KindUnknown, 0, errors.New("no image in response"))
	}
	img := &model.ImageOutput{URL: resp.Data[0].URL, MIMEType: "image/png"}
	if b64 := resp.Data[0].B64JSON; b64 != "" {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, domain.NewProviderError(o.name, domain.KindUnknown, 0, err)
		}
		img.Data = raw
	}
	return &adapter.BackendReply{
		Output: model.GenerationOutput{Image: img},
		Usage:  model.Usage{OutputUnits: len(resp.Data), Reported: true},
	}, nil
}
