package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"product-content-ai/internal/domain"
	"product-content-ai/internal/domain/model"
	"product-content-ai/internal/domain/ports/adapter"
)

var _ adapter.Backend = (*NoopBackend)(nil)

// NoopBackend produces deterministic content for local/dev runs without
// calling anything. Usage is reported from the heuristic estimator.
type NoopBackend struct {
	name  string
	delay time.Duration
	log   *zerolog.Logger
}

func NewNoopBackend(_ context.Context, cfg model.ProviderConfig, d deps) (adapter.Backend, error) {
	return &NoopBackend{name: cfg.Name, delay: 50 * time.Millisecond, log: d.log}, nil
}

func (n *NoopBackend) Invoke(ctx context.Context, req model.GenerationRequest) (*adapter.BackendReply, error) {
	// Simulate slight processing time and respect ctx
	select {
	case <-time.After(n.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var out model.GenerationOutput
	switch req.TaskType {
	case model.TaskDescription:
		in := req.Description
		name := strings.TrimSpace(in.Brand + " " + in.ModelName)
		out.Description = &model.DescriptionOutput{
			ShortDescription: fmt.Sprintf("%s %s tyre for %s.", name, in.Season, strings.Join(in.VehicleTypes, ", ")),
			FullDescription:  fmt.Sprintf("## %s\n\nA %s tyre built for **%s** vehicles.", name, in.Season, strings.Join(in.VehicleTypes, ", ")),
			Highlights: []string{
				"Stable handling",
				"Short braking distance",
				"Low rolling noise",
				"Even wear",
				fmt.Sprintf("Made for %s", in.Season),
			},
		}
	case model.TaskSEO:
		out.SEO = &model.SEOOutput{
			Title:       orDefault(req.SEO.ProductName, "Tyre") + " | " + req.SEO.ShortDescription,
			Description: req.SEO.ShortDescription + " " + strings.Join(req.SEO.Highlights, ". "),
		}
	case model.TaskFAQ:
		out.FAQ = &model.FAQOutput{Entries: []model.FAQEntry{
			{Question: "Which vehicles is it for?", Answer: req.FAQ.ShortDescription},
		}}
	case model.TaskArticle:
		out.Article = &model.ArticleOutput{Title: req.Article.Topic, Body: "# " + req.Article.Topic}
	default:
		return nil, domain.NewProviderError(n.name, domain.KindInvalidRequest, 0, fmt.Errorf("noop cannot serve %s", req.TaskType))
	}

	n.log.Debug().Str("provider", n.name).Str("task", string(req.TaskType)).Msg("noop generation")
	prompt, _ := BuildPrompt(req)
	return &adapter.BackendReply{
		Output: out,
		Usage: model.Usage{
			InputUnits:  HeuristicEstimator{}.Estimate("", prompt.System+prompt.User),
			OutputUnits: 64,
			Reported:    true,
		},
	}, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

var _ adapter.Backend = NoopImageBackend{}

// NoopImageBackend returns a 1x1 transparent PNG.
type NoopImageBackend struct{}

var transparentPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func NewNoopImageBackend(context.Context, model.ProviderConfig, deps) (adapter.Backend, error) {
	return NoopImageBackend{}, nil
}

func (NoopImageBackend) Invoke(ctx context.Context, _ model.GenerationRequest) (*adapter.BackendReply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &adapter.BackendReply{
		Output: model.GenerationOutput{Image: &model.ImageOutput{Data: transparentPNG, MIMEType: "image/png"}},
		Usage:  model.Usage{OutputUnits: 1, Reported: true},
	}, nil
}
