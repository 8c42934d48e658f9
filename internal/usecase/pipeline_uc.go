package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"product-content-ai/internal/domain"
	"product-content-ai/internal/domain/model"
	"product-content-ai/internal/domain/ports/adapter"
	"product-content-ai/internal/domain/ports/repository"
	"product-content-ai/internal/infra/logging"
	"product-content-ai/internal/infra/metrics"
)

const (
	DefaultTitleLimit       = 70
	DefaultDescriptionLimit = 170
)

// ItemPipeline runs one item to a terminal state.
type ItemPipeline interface {
	Execute(ctx context.Context, runID, slug string) *model.ItemPipelineState
}

// PublishLimits are the publisher's declared field lengths, in characters.
type PublishLimits struct {
	Title       int
	Description int
}

var _ ItemPipeline = (*Pipeline)(nil)

// Pipeline drives Pending -> DescriptionDone -> SEODone -> FAQDone ->
// ReadyToPublish -> Published, or Failed from any of them.
type Pipeline struct {
	source    repository.ItemSource
	tasks     *TaskExecutor
	markup    adapter.MarkupTransformer
	publisher adapter.Publisher
	limits    PublishLimits
	log       *zerolog.Logger
}

func NewPipeline(
	source repository.ItemSource,
	tasks *TaskExecutor,
	markup adapter.MarkupTransformer,
	publisher adapter.Publisher,
	limits PublishLimits,
	logger *zerolog.Logger,
) *Pipeline {
	if limits.Title <= 0 {
		limits.Title = DefaultTitleLimit
	}
	if limits.Description <= 0 {
		limits.Description = DefaultDescriptionLimit
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Pipeline{source: source, tasks: tasks, markup: markup, publisher: publisher, limits: limits, log: logger}
}

// Execute never returns a non-terminal state. Cancellation of ctx is observed
// between stages only.
func (p *Pipeline) Execute(ctx context.Context, runID, slug string) *model.ItemPipelineState {
	ctx = logging.WithSlug(logging.WithRunID(ctx, runID), slug)
	log := logging.With(ctx, p.log)
	defer logging.TraceDuration(log, "Pipeline.Execute")()

	st := model.NewItemPipelineState(slug)
	defer func() {
		metrics.ObserveItemOutcome(string(st.Outcome), st.ErrorKind)
		ev := log.Info()
		if st.Outcome == model.OutcomeFailed {
			ev = log.Warn().Err(st.Err).Str("error_kind", st.ErrorKind)
		}
		ev.Str("outcome", string(st.Outcome)).Str("last_stage", string(st.Stage)).Msg("item finished")
	}()

	if p.cancelled(ctx, st) {
		return st
	}
	product, err := p.source.Get(context.WithoutCancel(ctx), slug)
	if err == nil && product == nil {
		err = domain.ErrNotFound
	}
	if err != nil {
		st.Fail(fmt.Errorf("load %s: %w", slug, wrapSource(err)))
		return st
	}

	// description
	out, err := p.tasks.Execute(ctx, runID, product.DescriptionRequest())
	if err != nil {
		p.failStage(st, "description", out, err)
		return st
	}
	if out.Result.Output.Description == nil {
		p.failStage(st, "description", out, fmt.Errorf("description output missing: %w", domain.ErrUnknown))
		return st
	}
	st.Description = out.Result.Output.Description
	if !p.advance(st, model.StageDescriptionDone, doneRecord("description", out), log) {
		return st
	}
	if p.cancelled(ctx, st) {
		return st
	}

	// seo reads the stored description result, nothing else
	seoReq := model.GenerationRequest{
		TaskType: model.TaskSEO,
		SEO: &model.SEOInput{
			ProductName:      product.DisplayName(),
			ShortDescription: st.Description.ShortDescription,
			Highlights:       st.Description.Highlights,
		},
	}
	out, err = p.tasks.Execute(ctx, runID, seoReq)
	if err != nil {
		p.failStage(st, "seo", out, err)
		return st
	}
	if out.Result.Output.SEO == nil {
		p.failStage(st, "seo", out, fmt.Errorf("seo output missing: %w", domain.ErrUnknown))
		return st
	}
	st.SEO = out.Result.Output.SEO
	if !p.advance(st, model.StageSEODone, doneRecord("seo", out), log) {
		return st
	}
	if p.cancelled(ctx, st) {
		return st
	}

	// faq is optional enrichment; a failure leaves it absent
	if !p.advance(st, model.StageFAQDone, p.faqStage(ctx, runID, product, st, log), log) {
		return st
	}
	if p.cancelled(ctx, st) {
		return st
	}

	st.Bundle = p.bundle(st)
	if !p.advance(st, model.StageReadyToPublish, model.StageRecord{}, log) {
		return st
	}
	if p.cancelled(ctx, st) {
		return st
	}

	if err := p.publish(ctx, st); err != nil {
		metrics.ObserveStage("publish", string(model.StageStatusFailed))
		st.Record(model.StageRecord{Name: "publish", Status: model.StageStatusFailed, Error: err.Error(), ErrorKind: domain.Classify(err)})
		st.Fail(err)
		return st
	}
	p.advance(st, model.StagePublished, model.StageRecord{Name: "publish", Status: model.StageStatusDone}, log)
	return st
}

func (p *Pipeline) faqStage(ctx context.Context, runID string, product *model.Product, st *model.ItemPipelineState, log *zerolog.Logger) model.StageRecord {
	if !product.GenerateFAQ {
		return model.StageRecord{Name: "faq", Status: model.StageStatusSkipped}
	}
	req := model.GenerationRequest{
		TaskType: model.TaskFAQ,
		FAQ: &model.FAQInput{
			ProductName:      product.DisplayName(),
			ShortDescription: st.Description.ShortDescription,
			FullDescription:  st.Description.FullDescription,
			Highlights:       st.Description.Highlights,
		},
	}
	out, err := p.tasks.Execute(ctx, runID, req)
	if err == nil && out.Result.Output.FAQ == nil {
		err = fmt.Errorf("faq output missing: %w", domain.ErrUnknown)
	}
	if err != nil {
		log.Warn().Err(err).Msg("faq generation failed; publishing without it")
		rec := failedRecord("faq", out, err)
		rec.Status = model.StageStatusAbsent
		return rec
	}
	st.FAQ = out.Result.Output.FAQ
	return doneRecord("faq", out)
}

// bundle assembles the publishable content and truncates the SEO fields.
func (p *Pipeline) bundle(st *model.ItemPipelineState) *model.ContentBundle {
	b := &model.ContentBundle{
		Slug:             st.Slug,
		ShortDescription: st.Description.ShortDescription,
		FullDescription:  st.Description.FullDescription,
		Benefits:         append([]string(nil), st.Description.Highlights...),
		SEOTitle:         model.Truncate(st.SEO.Title, p.limits.Title),
		SEODescription:   model.Truncate(st.SEO.Description, p.limits.Description),
	}
	if st.FAQ != nil {
		b.FAQ = append([]model.FAQEntry(nil), st.FAQ.Entries...)
	}
	return b
}

func (p *Pipeline) publish(ctx context.Context, st *model.ItemPipelineState) error {
	bundle := *st.Bundle
	if p.markup != nil {
		html, err := p.markup.Transform(bundle.FullDescription)
		if err != nil {
			return fmt.Errorf("markup transform: %v: %w", err, domain.ErrPublish)
		}
		bundle.FullDescription = html
	}
	if err := p.publisher.Publish(context.WithoutCancel(ctx), bundle); err != nil {
		return fmt.Errorf("publish %s: %v: %w", st.Slug, err, domain.ErrPublish)
	}
	st.Bundle = &bundle
	return nil
}

// cancelled fails st when the run was cancelled before the next stage.
func (p *Pipeline) cancelled(ctx context.Context, st *model.ItemPipelineState) bool {
	if ctx.Err() == nil {
		return false
	}
	st.Fail(fmt.Errorf("stopped before %s: %w", nextStageName(st.Stage), domain.ErrRunCancelled))
	return true
}

func (p *Pipeline) advance(st *model.ItemPipelineState, to model.Stage, rec model.StageRecord, log *zerolog.Logger) bool {
	if rec.Name != "" {
		st.Record(rec)
		metrics.ObserveStage(rec.Name, string(rec.Status))
	}
	if err := st.Advance(to); err != nil {
		st.Fail(err)
		return false
	}
	log.Debug().Str("stage", string(to)).Msg("stage reached")
	return true
}

func (p *Pipeline) failStage(st *model.ItemPipelineState, name string, out TaskOutcome, err error) {
	metrics.ObserveStage(name, string(model.StageStatusFailed))
	st.Record(failedRecord(name, out, err))
	st.Fail(err)
}

func doneRecord(name string, out TaskOutcome) model.StageRecord {
	return model.StageRecord{
		Name:       name,
		Status:     model.StageStatusDone,
		Provider:   out.Provider,
		CostMicros: out.Result.CostMicros,
		Attempts:   out.Attempts,
	}
}

func failedRecord(name string, out TaskOutcome, err error) model.StageRecord {
	return model.StageRecord{
		Name:      name,
		Status:    model.StageStatusFailed,
		Provider:  out.Provider,
		Attempts:  out.Attempts,
		Error:     err.Error(),
		ErrorKind: domain.Classify(err),
	}
}

func nextStageName(s model.Stage) string {
	switch s {
	case model.StagePending:
		return "description"
	case model.StageDescriptionDone:
		return "seo"
	case model.StageSEODone:
		return "faq"
	case model.StageFAQDone:
		return "bundle"
	default:
		return "publish"
	}
}

func wrapSource(err error) error {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrSource) {
		return err
	}
	return fmt.Errorf("%v: %w", err, domain.ErrSource)
}
