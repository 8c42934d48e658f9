//go:build !integration

package ai_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"product-content-ai/internal/domain"
	"product-content-ai/internal/domain/model"
	ai "product-content-ai/internal/infra/adapters/ai"
)

func compatibleRegistry(t *testing.T, url string, opts ...ai.Option) *ai.Registry {
	t.Helper()
	zero := 0
	reg, err := ai.NewRegistry([]model.ProviderConfig{{
		Name: "gateway", Kind: "compatible", Enabled: true, Endpoint: url, APIKey: "k", Model: "m",
		MaxRetries: &zero, Pricing: model.Pricing{InputPer1KMicros: 1000, OutputPer1KMicros: 1000},
	}}, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

func TestCompatibleBackend_ParsesReplyAndUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("missing bearer token")
		}
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role string `json:"role"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Model != "m" || len(body.Messages) != 2 {
			t.Errorf("unexpected body %+v", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{
				"role":    "assistant",
				"content": "```json\n{\"title\":\"Summer tyre\",\"description\":\"Grip.\"}\n```",
			}}},
			"usage": map[string]int{"prompt_tokens": 2000, "completion_tokens": 1000},
		})
	}))
	defer srv.Close()

	p, err := compatibleRegistry(t, srv.URL).Get(context.Background(), model.TaskSEO)
	if err != nil {
		t.Fatal(err)
	}
	res, err := p.Generate(context.Background(), seoRequest())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Output.SEO == nil || res.Output.SEO.Title != "Summer tyre" {
		t.Fatalf("unexpected output %+v", res.Output.SEO)
	}
	if res.CostMicros != 3000 || !res.Usage.Reported {
		t.Fatalf("expected cost 3000 from usage, got %d (%+v)", res.CostMicros, res.Usage)
	}
}

func TestCompatibleBackend_ClassifiesStatus(t *testing.T) {
	cases := []struct {
		status int
		kind   domain.ErrorKind
		target error
	}{
		{http.StatusUnauthorized, domain.KindAuth, domain.ErrAuth},
		{http.StatusBadRequest, domain.KindInvalidRequest, domain.ErrInvalidRequest},
		{http.StatusTooManyRequests, domain.KindRateLimited, domain.ErrRateLimited},
		{http.StatusBadGateway, domain.KindTransient, domain.ErrTransient},
	}
	for _, tc := range cases {
		var hits int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&hits, 1)
			http.Error(w, "nope", tc.status)
		}))
		p, err := compatibleRegistry(t, srv.URL).Get(context.Background(), model.TaskSEO)
		if err != nil {
			t.Fatal(err)
		}
		_, err = p.Generate(context.Background(), seoRequest())
		srv.Close()

		if !errors.Is(err, tc.target) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.target, err)
		}
		var pe *domain.ProviderError
		if !errors.As(err, &pe) || pe.Kind != tc.kind || pe.StatusCode != tc.status {
			t.Fatalf("status %d: unexpected provider error %#v", tc.status, pe)
		}
		if atomic.LoadInt32(&hits) != 1 {
			t.Fatalf("status %d: expected exactly one call with zero retries, got %d", tc.status, hits)
		}
	}
}

type denyAll struct{ calls int32 }

func (d *denyAll) Allow(context.Context, string, int, time.Duration) (bool, error) {
	atomic.AddInt32(&d.calls, 1)
	return false, nil
}

func TestLimitedBackend_SharedWindowDenialIsRateLimited(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	zero := 0
	window := &denyAll{}
	reg, err := ai.NewRegistry([]model.ProviderConfig{{
		Name: "gateway", Kind: "compatible", Enabled: true, Endpoint: srv.URL, MaxRetries: &zero, RatePerSecond: 100,
	}}, ai.WithCallWindow(window))
	if err != nil {
		t.Fatal(err)
	}
	p, _ := reg.Get(context.Background(), model.TaskSEO)
	_, err = p.Generate(context.Background(), seoRequest())
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 0 || atomic.LoadInt32(&window.calls) != 1 {
		t.Fatalf("expected no backend hit and one window check, got hits=%d checks=%d", hits, window.calls)
	}
}
