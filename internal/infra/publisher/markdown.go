package publisher

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"product-content-ai/internal/domain/ports/adapter"
)

var _ adapter.MarkupTransformer = (*MarkdownTransformer)(nil)

// MarkdownTransformer renders generated markdown to the HTML the CMS stores.
// Raw HTML in the input is escaped.
type MarkdownTransformer struct {
	md goldmark.Markdown
}

func NewMarkdownTransformer() *MarkdownTransformer {
	return &MarkdownTransformer{md: goldmark.New(goldmark.WithExtensions(extension.GFM))}
}

func (t *MarkdownTransformer) Transform(src string) (string, error) {
	var buf bytes.Buffer
	if err := t.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
