package publisher

import (
	"context"

	"github.com/rs/zerolog"

	"product-content-ai/internal/domain/model"
	"product-content-ai/internal/domain/ports/adapter"
	"product-content-ai/internal/infra/logging"
)

var _ adapter.Publisher = (*LogPublisher)(nil)

// LogPublisher is the dry-run publisher: it logs what would have been sent.
type LogPublisher struct {
	log *zerolog.Logger
}

func NewLogPublisher(logger *zerolog.Logger) *LogPublisher {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &LogPublisher{log: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, b model.ContentBundle) error {
	logging.With(ctx, p.log).Info().
		Str("slug", b.Slug).
		Str("seo_title", b.SEOTitle).
		Str("seo_description", b.SEODescription).
		Str("short_description", b.ShortDescription).
		Strs("benefits", b.Benefits).
		Int("faq_entries", len(b.FAQ)).
		Int("full_description_len", len(b.FullDescription)).
		Msg("dry run: bundle not sent")
	return nil
}
