//go:build !integration

package usecase

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"product-content-ai/internal/domain"
	"product-content-ai/internal/domain/model"
	"product-content-ai/internal/domain/ports/adapter"
)

const testRun = "run-1"

func newTestPipeline(t *testing.T, env *stubEnv, src *memSource, pub *recordingPublisher) *Pipeline {
	t.Helper()
	if err := env.ledger.Open(testRun, model.CostLimits{MaxPerRunMicros: 1_000_000, MaxPerTaskMicros: 1_000_000}); err != nil {
		t.Fatal(err)
	}
	return NewPipeline(src, env.tasks, upperMarkup{}, pub, PublishLimits{}, nil)
}

func stageRecord(st *model.ItemPipelineState, name string) (model.StageRecord, bool) {
	for _, r := range st.Records {
		if r.Name == name {
			return r, true
		}
	}
	return model.StageRecord{}, false
}

func TestPipeline_DemoTyreTruncatesSEOFields(t *testing.T) {
	env := newStubEnv(t, []model.ProviderConfig{textProvider("stub", 1, 100)}, nil)
	highlights := []string{"Wet grip A", "Quiet 68 dB", "Low rolling resistance", "Short braking", "Long life"}
	short := strings.Repeat("s", 40)
	title := strings.Repeat("T", 60) + strings.Repeat("t", 30)
	desc := strings.Repeat("D", 160) + strings.Repeat("d", 40)

	b := env.backends["stub"]
	b.replies[model.TaskDescription] = func(model.GenerationRequest) (*adapter.BackendReply, error) {
		return &adapter.BackendReply{Output: model.GenerationOutput{Description: &model.DescriptionOutput{
			ShortDescription: short, FullDescription: "## Demo", Highlights: highlights,
		}}}, nil
	}
	b.replies[model.TaskSEO] = func(model.GenerationRequest) (*adapter.BackendReply, error) {
		return &adapter.BackendReply{Output: model.GenerationOutput{SEO: &model.SEOOutput{Title: title, Description: desc}}}, nil
	}

	src := newMemSource(model.Product{Slug: "demo-tyre", ModelName: "Demo", Season: "summer", VehicleTypes: []string{"passenger"}})
	pub := newRecordingPublisher()
	st := newTestPipeline(t, env, src, pub).Execute(context.Background(), testRun, "demo-tyre")

	if st.Outcome != model.OutcomePublished || st.Stage != model.StagePublished {
		t.Fatalf("expected published, got %s at %s (%v)", st.Outcome, st.Stage, st.Err)
	}
	var seoReq *model.SEOInput
	for _, c := range env.log.all() {
		if c.Task == model.TaskSEO {
			seoReq = c.Req.SEO
		}
	}
	if seoReq == nil || !reflect.DeepEqual(seoReq.Highlights, highlights) || seoReq.ShortDescription != short {
		t.Fatalf("seo stage did not receive the description output verbatim: %+v", seoReq)
	}

	bundle, ok := pub.get("demo-tyre")
	if !ok {
		t.Fatal("bundle was not published")
	}
	if utf8.RuneCountInString(bundle.SEOTitle) != 70 || !strings.HasPrefix(title, bundle.SEOTitle) {
		t.Fatalf("title not an exact 70-char prefix: %q", bundle.SEOTitle)
	}
	if utf8.RuneCountInString(bundle.SEODescription) != 170 || !strings.HasPrefix(desc, bundle.SEODescription) {
		t.Fatalf("description not an exact 170-char prefix: %q", bundle.SEODescription)
	}
	if !reflect.DeepEqual(bundle.Benefits, highlights) || bundle.ShortDescription != short {
		t.Fatalf("unexpected bundle content %+v", bundle)
	}
	if bundle.FullDescription != "<p>## Demo</p>" {
		t.Fatalf("expected markup transform before publish, got %q", bundle.FullDescription)
	}
	if rec, ok := stageRecord(st, "faq"); !ok || rec.Status != model.StageStatusSkipped {
		t.Fatalf("expected explicit skipped faq record, got %+v", rec)
	}
	if env.log.count(model.TaskFAQ) != 0 {
		t.Fatal("faq must not be attempted when not requested")
	}
}

func TestPipeline_FAQFailureStillPublishes(t *testing.T) {
	env := newStubEnv(t, []model.ProviderConfig{textProvider("stub", 1, 100)}, nil)
	env.backends["stub"].replies[model.TaskFAQ] = failWith(domain.KindInvalidRequest, 400)
	pub := newRecordingPublisher()
	p := newTestPipeline(t, env, newMemSource(tyre("with-faq", true)), pub)

	st := p.Execute(context.Background(), testRun, "with-faq")
	if st.Outcome != model.OutcomePublished {
		t.Fatalf("faq failure must not fail the item: %s (%v)", st.Outcome, st.Err)
	}
	rec, ok := stageRecord(st, "faq")
	if !ok || rec.Status != model.StageStatusAbsent || rec.ErrorKind != "invalid_request" {
		t.Fatalf("expected absent faq record with classification, got %+v", rec)
	}
	if b, _ := pub.get("with-faq"); len(b.FAQ) != 0 {
		t.Fatalf("expected no faq entries, got %v", b.FAQ)
	}
	if env.log.count(model.TaskFAQ) != 1 {
		t.Fatalf("expected one faq attempt, got %d", env.log.count(model.TaskFAQ))
	}
}

func TestPipeline_FAQSuccessIsPublished(t *testing.T) {
	env := newStubEnv(t, []model.ProviderConfig{textProvider("stub", 1, 100)}, nil)
	pub := newRecordingPublisher()
	st := newTestPipeline(t, env, newMemSource(tyre("faq-ok", true)), pub).Execute(context.Background(), testRun, "faq-ok")
	if st.Outcome != model.OutcomePublished {
		t.Fatalf("expected published, got %v", st.Err)
	}
	if b, _ := pub.get("faq-ok"); len(b.FAQ) != 1 {
		t.Fatalf("expected faq in bundle, got %+v", b.FAQ)
	}
}

func TestPipeline_DescriptionExhaustionFailsItem(t *testing.T) {
	env := newStubEnv(t, []model.ProviderConfig{textProvider("stub", 1, 100)}, nil)
	env.backends["stub"].replies[model.TaskDescription] = failWith(domain.KindTransient, 503)
	pub := newRecordingPublisher()
	st := newTestPipeline(t, env, newMemSource(tyre("flaky", false)), pub).Execute(context.Background(), testRun, "flaky")

	if st.Outcome != model.OutcomeFailed || !errors.Is(st.Err, domain.ErrAttemptsExhausted) {
		t.Fatalf("expected exhausted failure, got %s (%v)", st.Outcome, st.Err)
	}
	if st.ErrorKind != "attempts_exhausted/transient" {
		t.Fatalf("unexpected classification %q", st.ErrorKind)
	}
	if env.log.count(model.TaskDescription) != 3 || env.log.count(model.TaskSEO) != 0 {
		t.Fatalf("expected 3 description attempts and no seo, got %d/%d",
			env.log.count(model.TaskDescription), env.log.count(model.TaskSEO))
	}
	rec, _ := stageRecord(st, "description")
	if rec.Attempts != 3 || rec.Status != model.StageStatusFailed {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestPipeline_AuthErrorFallsBackAndDisables(t *testing.T) {
	env := newStubEnv(t, []model.ProviderConfig{textProvider("primary", 1, 100), textProvider("backup", 2, 100)}, nil)
	env.backends["primary"].replies[model.TaskDescription] = failWith(domain.KindAuth, 401)
	pub := newRecordingPublisher()
	p := newTestPipeline(t, env, newMemSource(tyre("one", false), tyre("two", false)), pub)

	for _, slug := range []string{"one", "two"} {
		st := p.Execute(context.Background(), testRun, slug)
		if st.Outcome != model.OutcomePublished {
			t.Fatalf("%s: expected fallback to backup, got %v", slug, st.Err)
		}
		if rec, _ := stageRecord(st, "seo"); rec.Provider != "backup" {
			t.Fatalf("%s: expected seo via backup, got %q", slug, rec.Provider)
		}
	}
	primaryCalls := 0
	for _, c := range env.log.all() {
		if c.Provider == "primary" {
			primaryCalls++
		}
	}
	if primaryCalls != 1 {
		t.Fatalf("expected primary to be tried once then disabled, got %d calls", primaryCalls)
	}
	if !env.ledger.IsDisabled(testRun, "primary") {
		t.Fatal("expected sticky disable")
	}
}

func TestPipeline_InvalidRequestDoesNotFallBack(t *testing.T) {
	env := newStubEnv(t, []model.ProviderConfig{textProvider("primary", 1, 100), textProvider("backup", 2, 100)}, nil)
	env.backends["primary"].replies[model.TaskSEO] = failWith(domain.KindInvalidRequest, 422)
	st := newTestPipeline(t, env, newMemSource(tyre("bad", false)), newRecordingPublisher()).
		Execute(context.Background(), testRun, "bad")

	if st.Outcome != model.OutcomeFailed || st.ErrorKind != "invalid_request" || st.Stage != model.StageFailed {
		t.Fatalf("expected invalid_request failure, got %+v", st.Summary())
	}
	for _, c := range env.log.all() {
		if c.Provider == "backup" && c.Task == model.TaskSEO {
			t.Fatal("invalid request must not move to the next candidate")
		}
	}
}

func TestPipeline_PublishFailureKeepsSpend(t *testing.T) {
	env := newStubEnv(t, []model.ProviderConfig{textProvider("stub", 1, 100)}, nil)
	pub := newRecordingPublisher()
	pub.fail["nope"] = errors.New("cms down")
	st := newTestPipeline(t, env, newMemSource(tyre("nope", false)), pub).Execute(context.Background(), testRun, "nope")

	if st.Outcome != model.OutcomeFailed || !errors.Is(st.Err, domain.ErrPublish) || st.ErrorKind != "publish_error" {
		t.Fatalf("expected publish failure, got %s %q (%v)", st.Outcome, st.ErrorKind, st.Err)
	}
	snap, _ := env.ledger.Snapshot(testRun)
	if snap.CommittedMicros != 200 {
		t.Fatalf("expected description+seo spend to stay committed, got %d", snap.CommittedMicros)
	}
}

func TestPipeline_UnknownSlugIsSourceError(t *testing.T) {
	env := newStubEnv(t, []model.ProviderConfig{textProvider("stub", 1, 100)}, nil)
	st := newTestPipeline(t, env, newMemSource(), newRecordingPublisher()).Execute(context.Background(), testRun, "ghost")
	if st.Outcome != model.OutcomeFailed || st.ErrorKind != "source_error" {
		t.Fatalf("expected source_error, got %+v", st.Summary())
	}
	if len(env.log.all()) != 0 {
		t.Fatal("no provider call expected")
	}
}

func TestPipeline_CancelledBeforeStartFails(t *testing.T) {
	env := newStubEnv(t, []model.ProviderConfig{textProvider("stub", 1, 100)}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st := newTestPipeline(t, env, newMemSource(tyre("x", false)), newRecordingPublisher()).Execute(ctx, testRun, "x")
	if st.Outcome != model.OutcomeFailed || st.ErrorKind != "cancelled" {
		t.Fatalf("expected cancelled failure, got %+v", st.Summary())
	}
}
