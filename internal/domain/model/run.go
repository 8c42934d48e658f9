package model

import (
	"fmt"
	"time"

	"product-content-ai/internal/domain"
)

// Stage is one step of the per-item state machine. Order matters.
type Stage string

const (
	StagePending         Stage = "pending"
	StageDescriptionDone Stage = "description_done"
	StageSEODone         Stage = "seo_done"
	StageFAQDone         Stage = "faq_done"
	StageReadyToPublish  Stage = "ready_to_publish"
	StagePublished       Stage = "published"
	StageFailed          Stage = "failed"
)

var stageOrder = map[Stage]int{
	StagePending:         0,
	StageDescriptionDone: 1,
	StageSEODone:         2,
	StageFAQDone:         3,
	StageReadyToPublish:  4,
	StagePublished:       5,
}

func (s Stage) Terminal() bool { return s == StagePublished || s == StageFailed }

// CanAdvance reports whether to is the immediate successor of s, or Failed from any live stage.
func (s Stage) CanAdvance(to Stage) bool {
	if s.Terminal() {
		return false
	}
	if to == StageFailed {
		return true
	}
	from, ok1 := stageOrder[s]
	next, ok2 := stageOrder[to]
	return ok1 && ok2 && next == from+1
}

type Outcome string

const (
	OutcomePublished Outcome = "published"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

type StageStatus string

const (
	StageStatusDone    StageStatus = "done"
	StageStatusSkipped StageStatus = "skipped"
	StageStatusAbsent  StageStatus = "absent"
	StageStatusFailed  StageStatus = "failed"
)

// StageRecord is kept for every stage the item went through, including skipped ones.
type StageRecord struct {
	Name       string      `json:"name"`
	Status     StageStatus `json:"status"`
	Provider   string      `json:"provider,omitempty"`
	CostMicros int64       `json:"cost_micros"`
	Attempts   int         `json:"attempts"`
	Error      string      `json:"error,omitempty"`
	ErrorKind  string      `json:"error_kind,omitempty"`
}

// ItemPipelineState is owned by one worker for the lifetime of the item.
type ItemPipelineState struct {
	Slug        string             `json:"slug"`
	Stage       Stage              `json:"stage"`
	Description *DescriptionOutput `json:"description,omitempty"`
	SEO         *SEOOutput         `json:"seo,omitempty"`
	FAQ         *FAQOutput         `json:"faq,omitempty"`
	Bundle      *ContentBundle     `json:"bundle,omitempty"`
	Records     []StageRecord      `json:"records"`
	Outcome     Outcome            `json:"outcome,omitempty"`
	Err         error              `json:"-"`
	ErrorKind   string             `json:"error_kind,omitempty"`
}

func NewItemPipelineState(slug string) *ItemPipelineState {
	return &ItemPipelineState{Slug: slug, Stage: StagePending}
}

// Advance moves strictly forward. Illegal moves wrap domain.ErrIllegalTransition.
func (s *ItemPipelineState) Advance(to Stage) error {
	if !s.Stage.CanAdvance(to) {
		return fmt.Errorf("%s: %s -> %s: %w", s.Slug, s.Stage, to, domain.ErrIllegalTransition)
	}
	s.Stage = to
	switch to {
	case StagePublished:
		s.Outcome = OutcomePublished
	case StageFailed:
		s.Outcome = OutcomeFailed
	}
	return nil
}

// Fail records err and moves to the Failed terminal state.
func (s *ItemPipelineState) Fail(err error) {
	s.Err = err
	s.ErrorKind = domain.Classify(err)
	if !s.Stage.Terminal() {
		s.Stage = StageFailed
	}
	s.Outcome = OutcomeFailed
}

func (s *ItemPipelineState) Record(r StageRecord) { s.Records = append(s.Records, r) }

// Summary freezes the state into the outcome stored on the run.
func (s *ItemPipelineState) Summary() ItemOutcome {
	out := ItemOutcome{
		Slug:      s.Slug,
		Outcome:   s.Outcome,
		LastStage: s.Stage,
		ErrorKind: s.ErrorKind,
		Stages:    s.Records,
	}
	if s.Err != nil {
		out.Error = s.Err.Error()
	}
	for _, r := range s.Records {
		out.CostMicros += r.CostMicros
	}
	return out
}

// ItemOutcome is the read-only summary kept on the run.
type ItemOutcome struct {
	Slug       string        `json:"slug"`
	Outcome    Outcome       `json:"outcome"`
	LastStage  Stage         `json:"last_stage"`
	Error      string        `json:"error,omitempty"`
	ErrorKind  string        `json:"error_kind,omitempty"`
	CostMicros int64         `json:"cost_micros"`
	Stages     []StageRecord `json:"stages,omitempty"`
}

// RunState is the snapshot of one run. Mutated only through the ledger and the scheduler.
type RunState struct {
	ID                string             `json:"id"`
	StartedAt         time.Time          `json:"started_at"`
	FinishedAt        time.Time          `json:"finished_at,omitempty"`
	Limits            CostLimits         `json:"limits"`
	CommittedMicros   int64              `json:"committed_micros"`
	ReservedMicros    int64              `json:"reserved_micros"`
	TaskMicros        map[TaskType]int64 `json:"task_micros"`
	Outcomes          []ItemOutcome      `json:"outcomes"`
	DisabledProviders []string           `json:"disabled_providers,omitempty"`
	Cancelled         bool               `json:"cancelled"`
}

// Counts returns the number of items per outcome.
func (r *RunState) Counts() map[Outcome]int {
	m := map[Outcome]int{OutcomePublished: 0, OutcomeFailed: 0, OutcomeSkipped: 0}
	for _, o := range r.Outcomes {
		m[o.Outcome]++
	}
	return m
}

func (r *RunState) Finished() bool { return !r.FinishedAt.IsZero() }
