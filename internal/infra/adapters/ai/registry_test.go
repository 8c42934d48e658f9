//go:build !integration

package ai_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"product-content-ai/internal/domain"
	"product-content-ai/internal/domain/model"
	ai "product-content-ai/internal/infra/adapters/ai"
)

func sampleConfigs() []model.ProviderConfig {
	return []model.ProviderConfig{
		{Name: "Backup", Kind: "noop", Enabled: true, Priority: 2},
		{Name: "primary", Kind: "noop", Enabled: true, Priority: 1},
		{Name: "off", Kind: "noop", Enabled: false, Priority: 0},
		{Name: "tie", Kind: "noop", Enabled: true, Priority: 2},
		{Name: "pictures", Kind: "noop_image", Enabled: true, Priority: 1},
	}
}

func TestRegistry_CandidatesOrderedAndEnabledOnly(t *testing.T) {
	reg, err := ai.NewRegistry(sampleConfigs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, task := range model.AllTaskTypes {
		got := reg.CandidatesFor(task)
		for _, name := range got {
			cfg, _ := reg.Config(name)
			if !cfg.Enabled {
				t.Fatalf("%s: disabled provider %s returned", task, name)
			}
			if cfg.Category != task.Category() {
				t.Fatalf("%s: wrong category provider %s", task, name)
			}
		}
	}
	if got, want := reg.CandidatesFor(model.TaskSEO), []string{"primary", "backup", "tie"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if got := reg.CandidatesFor(model.TaskImage); !reflect.DeepEqual(got, []string{"pictures"}) {
		t.Fatalf("unexpected image candidates %v", got)
	}
}

func TestRegistry_CreateErrors(t *testing.T) {
	reg, err := ai.NewRegistry(sampleConfigs())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := reg.Create(ctx, "missing", model.CategoryText); !errors.Is(err, domain.ErrConfig) {
		t.Errorf("expected ErrConfig for unknown name, got %v", err)
	}
	if _, err := reg.Create(ctx, "pictures", model.CategoryText); !errors.Is(err, domain.ErrConfig) {
		t.Errorf("expected ErrConfig for category mismatch, got %v", err)
	}
	if _, err := reg.Create(ctx, "off", model.CategoryText); !errors.Is(err, domain.ErrConfig) {
		t.Errorf("expected ErrConfig for disabled provider, got %v", err)
	}
	p1, err := reg.Create(ctx, "PRIMARY", model.CategoryText)
	if err != nil {
		t.Fatalf("create primary: %v", err)
	}
	p2, _ := reg.Create(ctx, "primary", "")
	if p1 != p2 {
		t.Error("expected providers to be built once and reused")
	}
	p, err := reg.Get(ctx, model.TaskDescription)
	if err != nil || p.Name() != "primary" {
		t.Fatalf("expected primary from Get, got %v (%v)", p, err)
	}
}

func TestRegistry_GetWithoutCandidates(t *testing.T) {
	reg, err := ai.NewRegistry([]model.ProviderConfig{{Name: "a", Kind: "noop", Enabled: true}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Get(context.Background(), model.TaskImage); !errors.Is(err, domain.ErrNoProviderAvailable) {
		t.Fatalf("expected ErrNoProviderAvailable, got %v", err)
	}
}

func TestNewRegistry_TextCapDefaults(t *testing.T) {
	reg, err := ai.NewRegistry([]model.ProviderConfig{
		{Name: "uncapped", Kind: "noop", Enabled: true},
		{Name: "capped", Kind: "noop", Enabled: true, MaxOutputTokens: 300},
		{Name: "pictures", Kind: "noop_image", Enabled: true},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	for name, want := range map[string]int{"uncapped": model.DefaultMaxOutputTokens, "capped": 300, "pictures": 0} {
		cfg, _ := reg.Config(name)
		if cfg.MaxOutputTokens != want {
			t.Fatalf("%s: expected cap %d, got %d", name, want, cfg.MaxOutputTokens)
		}
	}
}

func TestNewRegistry_ConfigErrors(t *testing.T) {
	cases := map[string][]model.ProviderConfig{
		"duplicate":         {{Name: "a", Kind: "noop"}, {Name: "A", Kind: "noop"}},
		"unknown kind":      {{Name: "a", Kind: "telepathy"}},
		"category mismatch": {{Name: "a", Kind: "noop", Category: model.CategoryImage}},
		"bad category":      {{Name: "a", Kind: "noop", Category: "sound"}},
		"no name":           {{Kind: "noop"}},
		"negative cap":      {{Name: "a", Kind: "noop", MaxOutputTokens: -1}},
	}
	for name, cfgs := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ai.NewRegistry(cfgs); !errors.Is(err, domain.ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestNoopBackendEndToEnd(t *testing.T) {
	reg, err := ai.NewRegistry([]model.ProviderConfig{{Name: "n", Kind: "noop", Enabled: true, Pricing: model.Pricing{PerCallMicros: 10}}})
	if err != nil {
		t.Fatal(err)
	}
	p, err := reg.Get(context.Background(), model.TaskDescription)
	if err != nil {
		t.Fatal(err)
	}
	req := model.Product{ModelName: "EcoGrip", Season: "summer", VehicleTypes: []string{"passenger"}}.DescriptionRequest()
	res, err := p.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Output.Description == nil || len(res.Output.Description.Highlights) != 5 {
		t.Fatalf("unexpected output %+v", res.Output)
	}
	if res.CostMicros != 10 {
		t.Fatalf("expected per-call cost 10, got %d", res.CostMicros)
	}
}
