//go:build !integration

package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"product-content-ai/internal/domain/model"
)

func TestHTTPPublisher(t *testing.T) {
	bundle := model.ContentBundle{
		Slug: "demo tyre", SEOTitle: "Demo", SEODescription: "Desc",
		Benefits: []string{"quiet"}, FAQ: []model.FAQEntry{{Question: "Q", Answer: "A"}},
	}

	t.Run("should put the bundle with bearer auth", func(t *testing.T) {
		var got model.ContentBundle
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPut || r.URL.EscapedPath() != "/cms/products/demo%20tyre/content" {
				t.Errorf("unexpected %s %s", r.Method, r.URL.EscapedPath())
			}
			if r.Header.Get("Authorization") != "Bearer secret" {
				t.Errorf("missing auth header")
			}
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, &got)
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		p := NewHTTPPublisher(srv.URL+"/cms/", "secret", time.Second, nil)
		if err := p.Publish(context.Background(), bundle); err != nil {
			t.Fatalf("publish: %v", err)
		}
		if got.SEOTitle != "Demo" || len(got.FAQ) != 1 {
			t.Fatalf("unexpected payload %+v", got)
		}
	})

	t.Run("should fail on a non-2xx reply", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "schema mismatch", http.StatusUnprocessableEntity)
		}))
		defer srv.Close()

		err := NewHTTPPublisher(srv.URL, "", time.Second, nil).Publish(context.Background(), bundle)
		if err == nil || !strings.Contains(err.Error(), "422") || !strings.Contains(err.Error(), "schema mismatch") {
			t.Fatalf("expected status in error, got %v", err)
		}
	})
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	if err := NewLogPublisher(&logger).Publish(context.Background(), model.ContentBundle{Slug: "x", SEOTitle: "T"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"slug":"x"`) || !strings.Contains(buf.String(), "dry run") {
		t.Fatalf("unexpected log %s", buf.String())
	}
}

func TestMarkdownTransformer(t *testing.T) {
	tr := NewMarkdownTransformer()
	out, err := tr.Transform("## Grip\n\n**Wet** braking\n\n- quiet\n- durable\n\n<script>x</script>")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"<h2>Grip</h2>", "<strong>Wet</strong>", "<li>quiet</li>"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %s", want, out)
		}
	}
	if strings.Contains(out, "<script>") {
		t.Fatalf("raw html must not pass through: %s", out)
	}
}
