package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"product-content-ai/internal/domain"
	"product-content-ai/internal/domain/model"
	"product-content-ai/internal/domain/ports/repository"
)

// GenerateReport is the result of a single-task generation.
type GenerateReport struct {
	RunID       string                                     `json:"run_id"`
	Task        model.TaskType                             `json:"task"`
	Results     map[model.TaskType]*model.GenerationResult `json:"results"`
	SpentMicros int64                                      `json:"spent_micros"`
}

// GenerateUseCase runs one task for one item outside the pipeline, with its own
// throwaway run budget. Tasks that depend on the description generate it first.
type GenerateUseCase struct {
	source repository.ItemSource
	tasks  *TaskExecutor
	ledger CostLedger
	limits model.CostLimits
	log    *zerolog.Logger
}

func NewGenerateUseCase(source repository.ItemSource, tasks *TaskExecutor, ledger CostLedger, limits model.CostLimits, logger *zerolog.Logger) *GenerateUseCase {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &GenerateUseCase{source: source, tasks: tasks, ledger: ledger, limits: limits, log: logger}
}

func (g *GenerateUseCase) Generate(ctx context.Context, task model.TaskType, slug, override string) (*GenerateReport, error) {
	if !task.Valid() {
		return nil, fmt.Errorf("task %q: %w", task, domain.ErrInvalidArgument)
	}
	product, err := g.source.Get(ctx, slug)
	if err != nil {
		return nil, err
	}

	runID := "gen-" + ulid.Make().String()
	if err := g.ledger.Open(runID, g.limits); err != nil {
		return nil, err
	}
	report := &GenerateReport{RunID: runID, Task: task, Results: make(map[model.TaskType]*model.GenerationResult)}
	defer func() {
		if st, err := g.ledger.Close(runID); err == nil {
			report.SpentMicros = st.CommittedMicros
		}
	}()

	run := func(req model.GenerationRequest) (*model.GenerationResult, error) {
		if req.TaskType == task {
			req.ProviderOverride = override
		}
		out, err := g.tasks.Execute(ctx, runID, req)
		if err != nil {
			return nil, err
		}
		report.Results[req.TaskType] = out.Result
		return out.Result, nil
	}

	var req model.GenerationRequest
	switch task {
	case model.TaskDescription:
		req = product.DescriptionRequest()
	case model.TaskSEO, model.TaskFAQ:
		res, err := run(product.DescriptionRequest())
		if err != nil {
			return report, fmt.Errorf("description prerequisite: %w", err)
		}
		d := res.Output.Description
		if d == nil {
			return report, fmt.Errorf("description output missing: %w", domain.ErrUnknown)
		}
		if task == model.TaskSEO {
			req = model.GenerationRequest{TaskType: task, SEO: &model.SEOInput{
				ProductName: product.DisplayName(), ShortDescription: d.ShortDescription, Highlights: d.Highlights,
			}}
		} else {
			req = model.GenerationRequest{TaskType: task, FAQ: &model.FAQInput{
				ProductName: product.DisplayName(), ShortDescription: d.ShortDescription,
				FullDescription: d.FullDescription, Highlights: d.Highlights,
			}}
		}
	case model.TaskArticle:
		req = model.GenerationRequest{TaskType: task, Article: &model.ArticleInput{
			Topic:    product.DisplayName() + " " + product.Season + " tyre review",
			Keywords: append([]string{product.Season}, product.VehicleTypes...),
			Context:  product.Notes,
		}}
	case model.TaskImage:
		req = model.GenerationRequest{TaskType: task, Image: &model.ImageInput{
			Prompt: fmt.Sprintf("Studio product photo of the %s %s tyre for %s vehicles, white background",
				product.DisplayName(), product.Season, strings.Join(product.VehicleTypes, ", ")),
		}}
	}
	if _, err := run(req); err != nil {
		return report, err
	}
	g.log.Debug().Str("run_id", runID).Str("task", string(task)).Str("slug", slug).Msg("single task generated")
	return report, nil
}
