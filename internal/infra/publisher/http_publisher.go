package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"product-content-ai/internal/domain/model"
	"product-content-ai/internal/domain/ports/adapter"
)

var _ adapter.Publisher = (*HTTPPublisher)(nil)

// HTTPPublisher PUTs each bundle to <base>/products/<slug>/content.
type HTTPPublisher struct {
	base   string
	token  string
	client *http.Client
}

func NewHTTPPublisher(base, token string, timeout time.Duration, client *http.Client) *HTTPPublisher {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPPublisher{base: strings.TrimRight(base, "/"), token: token, client: client}
}

func (p *HTTPPublisher) Publish(ctx context.Context, bundle model.ContentBundle) error {
	b, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("marshal bundle %s: %w", bundle.Slug, err)
	}
	endpoint := p.base + "/products/" + url.PathEscape(bundle.Slug) + "/content"
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("cms request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("cms returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
