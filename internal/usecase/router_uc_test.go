//go:build !integration

package usecase

import (
	"errors"
	"reflect"
	"testing"

	"product-content-ai/internal/domain"
	"product-content-ai/internal/domain/model"
)

func TestRouter_NeverReturnsDisabledProviders(t *testing.T) {
	off := textProvider("off", 0, 10)
	off.Enabled = false
	env := newStubEnv(t, []model.ProviderConfig{off, textProvider("a", 1, 10), textProvider("b", 2, 10)}, nil)
	_ = env.ledger.Open("run-1", model.CostLimits{MaxPerRunMicros: 1000, MaxPerTaskMicros: 1000})
	env.ledger.DisableProvider("run-1", "a")

	for _, task := range []model.TaskType{model.TaskDescription, model.TaskSEO, model.TaskFAQ, model.TaskArticle} {
		got, err := env.router.Route("run-1", task, "")
		if err != nil {
			t.Fatalf("%s: %v", task, err)
		}
		if !reflect.DeepEqual(got, []string{"b"}) {
			t.Fatalf("%s: expected [b], got %v", task, got)
		}
	}
	if _, err := env.router.Route("run-1", model.TaskImage, ""); !errors.Is(err, domain.ErrNoProviderAvailable) {
		t.Fatalf("expected no image provider, got %v", err)
	}
	if _, err := env.router.Route("run-1", model.TaskSEO, "off"); !errors.Is(err, domain.ErrNoProviderAvailable) {
		t.Fatalf("override to a disabled provider must fail, got %v", err)
	}
}

func TestRouter_FiltersByCommittedHeadroom(t *testing.T) {
	env := newStubEnv(t, []model.ProviderConfig{
		textProvider("premium", 1, 700),
		textProvider("budget", 2, 200),
	}, nil)
	_ = env.ledger.Open("run-1", model.CostLimits{MaxPerRunMicros: 1000, MaxPerTaskMicros: 800})

	got, err := env.router.Route("run-1", model.TaskSEO, "")
	if err != nil || !reflect.DeepEqual(got, []string{"premium", "budget"}) {
		t.Fatalf("expected both in priority order, got %v (%v)", got, err)
	}

	tk, _ := env.ledger.Reserve("run-1", model.TaskDescription, 500)
	_ = env.ledger.Commit(tk, 500)

	got, err = env.router.Route("run-1", model.TaskSEO, "")
	if err != nil || !reflect.DeepEqual(got, []string{"budget"}) {
		t.Fatalf("expected only budget after spend, got %v (%v)", got, err)
	}
}

func TestRouter_EmptyAffordableListIsBudgetExceeded(t *testing.T) {
	env := newStubEnv(t, []model.ProviderConfig{textProvider("cheapest", 1, 300), textProvider("dear", 2, 900)}, nil)
	_ = env.ledger.Open("run-1", model.CostLimits{MaxPerRunMicros: 250, MaxPerTaskMicros: 1000})

	got, err := env.router.Route("run-1", model.TaskDescription, "")
	if !errors.Is(err, domain.ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded, got %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no candidates, got %v", got)
	}
}

func TestRouter_ReferenceUnitsPriceUsageTables(t *testing.T) {
	cfg := model.ProviderConfig{
		Name: "metered", Kind: "stub", Enabled: true,
		Pricing: model.Pricing{InputPer1KMicros: 1000},
	}
	env := newStubEnv(t, []model.ProviderConfig{cfg}, map[model.TaskType]int{model.TaskFAQ: 5000, model.TaskSEO: 100})
	_ = env.ledger.Open("run-1", model.CostLimits{MaxPerRunMicros: 1000, MaxPerTaskMicros: 1000})

	if _, err := env.router.Route("run-1", model.TaskSEO, ""); err != nil {
		t.Fatalf("seo estimate 100 must fit: %v", err)
	}
	if _, err := env.router.Route("run-1", model.TaskFAQ, ""); !errors.Is(err, domain.ErrBudgetExceeded) {
		t.Fatalf("faq estimate 5000 must not fit, got %v", err)
	}
}

func TestRouter_UnsetOutputCapIsPricedAtDefaultAllowance(t *testing.T) {
	cfg := model.ProviderConfig{
		Name: "uncapped", Kind: "stub", Enabled: true,
		Pricing: model.Pricing{InputPer1KMicros: 1000, OutputPer1KMicros: 1000},
	}
	env := newStubEnv(t, []model.ProviderConfig{cfg}, map[model.TaskType]int{model.TaskSEO: 200})
	_ = env.ledger.Open("run-1", model.CostLimits{MaxPerRunMicros: 2000, MaxPerTaskMicros: 2000})

	// 200 input units plus the default 2000-token output allowance
	got, _ := env.registry.Config("uncapped")
	if est := got.EstimateCost(200); est != 2200 {
		t.Fatalf("expected estimate 2200, got %d", est)
	}
	if _, err := env.router.Route("run-1", model.TaskSEO, ""); !errors.Is(err, domain.ErrBudgetExceeded) {
		t.Fatalf("a call that could cost 2200 must not fit a 2000 budget, got %v", err)
	}
}
