package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"product-content-ai/internal/domain"
	"product-content-ai/internal/domain/model"
	"product-content-ai/internal/domain/ports/adapter"
)

// Compile-time assurance this backend satisfies the port
var _ adapter.Backend = (*CompatibleBackend)(nil)

// CompatibleBackend talks to any OpenAI-compatible gateway (Metis, OpenRouter,
// vLLM, Ollama...). Chat completions path is the same as OpenAI: /chat/completions
// Authorization: Bearer <api_key>
type CompatibleBackend struct {
	name      string
	apiKey    string
	base      string // e.g., https://api.metisai.ir/openai/v1
	model     string
	maxTokens int
	client    *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func NewCompatibleBackend(_ context.Context, cfg model.ProviderConfig, d deps) (adapter.Backend, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("compatible backend needs an endpoint")
	}
	client := d.httpClient
	if client == nil {
		// per-attempt deadlines come from the caller's context
		client = &http.Client{}
	}
	return &CompatibleBackend{
		name:      cfg.Name,
		apiKey:    cfg.APIKey,
		base:      strings.TrimRight(cfg.Endpoint, "/"),
		model:     modelOrDefault(cfg.Model, "gpt-4o-mini"),
		maxTokens: cfg.OutputAllowance(),
		client:    client,
	}, nil
}

func (c *CompatibleBackend) Invoke(ctx context.Context, greq model.GenerationRequest) (*adapter.BackendReply, error) {
	prompt, err := BuildPrompt(greq)
	if err != nil {
		return nil, domain.NewProviderError(c.name, domain.KindInvalidRequest, 0, err)
	}
	reqBody := struct {
		Model     string        `json:"model"`
		Messages  []chatMessage `json:"messages"`
		MaxTokens int           `json:"max_tokens,omitempty"`
	}{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: prompt.System},
			{Role: "user", Content: prompt.User},
		},
		MaxTokens: c.maxTokens,
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return nil, domain.NewProviderError(c.name, domain.KindInvalidRequest, 0, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return nil, domain.NewProviderError(c.name, domain.KindInvalidRequest, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyErr(c.name, err)
	}
	defer resp.Body.Close()
	if perr := statusError(c.name, resp.StatusCode, nil); perr != nil {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		perr.Err = fmt.Errorf("%s", strings.TrimSpace(string(snippet)))
		return nil, perr
	}

	var payload struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
		Usage *struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, classifyErr(c.name, err)
	}
	text := ""
	for _, ch := range payload.Choices {
		if ch.Message.Content != "" {
			text = ch.Message.Content
			break
		}
	}
	if text == "" {
		return nil, domain.NewProviderError(c.name, domain.KindUnknown, 0, errors.New("no choice content"))
	}
	out, err := ParseOutput(c.name, greq.TaskType, text)
	if err != nil {
		return nil, err
	}
	reply := &adapter.BackendReply{Output: out}
	if payload.Usage != nil {
		reply.Usage = model.Usage{
			InputUnits:  payload.Usage.PromptTokens,
			OutputUnits: payload.Usage.CompletionTokens,
			Reported:    true,
		}
	}
	return reply, nil
}
