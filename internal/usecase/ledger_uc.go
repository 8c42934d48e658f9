package usecase

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"product-content-ai/internal/domain"
	"product-content-ai/internal/domain/model"
	"product-content-ai/internal/infra/metrics"
)

// Ticket is a provisional reservation against one run and task.
type Ticket struct {
	ID     string
	RunID  string
	Task   model.TaskType
	Amount int64
}

// CostLedger tracks committed and in-flight spend per run. It is the only
// state shared between concurrently running item pipelines.
type CostLedger interface {
	Open(runID string, limits model.CostLimits) error
	Reserve(runID string, task model.TaskType, estimate int64) (Ticket, error)
	Commit(t Ticket, actual int64) error
	Release(t Ticket) error
	// Headroom is what the committed spend still allows for task (in-flight excluded).
	Headroom(runID string, task model.TaskType) (int64, error)
	DisableProvider(runID, provider string) bool
	IsDisabled(runID, provider string) bool
	RecordOutcome(runID string, outcome model.ItemOutcome) error
	MarkCancelled(runID string)
	Snapshot(runID string) (*model.RunState, error)
	Close(runID string) (*model.RunState, error)
}

var _ CostLedger = (*Ledger)(nil)

type runBook struct {
	state        model.RunState
	reservedTask map[model.TaskType]int64
	tickets      map[string]Ticket
	disabled     map[string]bool
}

// Ledger serializes every operation through a single mutex. No call made while
// holding it blocks on I/O.
type Ledger struct {
	mu   sync.Mutex
	runs map[string]*runBook
	now  func() time.Time
	log  *zerolog.Logger
}

func NewLedger(logger *zerolog.Logger) *Ledger {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Ledger{runs: make(map[string]*runBook), now: time.Now, log: logger}
}

func (l *Ledger) Open(runID string, limits model.CostLimits) error {
	if err := limits.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.runs[runID]; ok {
		return fmt.Errorf("run %s: %w", runID, domain.ErrAlreadyExists)
	}
	l.runs[runID] = &runBook{
		state: model.RunState{
			ID:         runID,
			StartedAt:  l.now(),
			Limits:     limits,
			TaskMicros: make(map[model.TaskType]int64),
		},
		reservedTask: make(map[model.TaskType]int64),
		tickets:      make(map[string]Ticket),
		disabled:     make(map[string]bool),
	}
	return nil
}

func (l *Ledger) book(runID string) (*runBook, error) {
	b, ok := l.runs[runID]
	if !ok || b.state.Finished() {
		return nil, fmt.Errorf("run %s: %w", runID, domain.ErrRunNotOpen)
	}
	return b, nil
}

// Reserve admits estimate only if committed plus in-flight spend stays within
// both the run and the task limit.
func (l *Ledger) Reserve(runID string, task model.TaskType, estimate int64) (Ticket, error) {
	if estimate < 0 {
		return Ticket{}, fmt.Errorf("negative estimate %d: %w", estimate, domain.ErrInvalidArgument)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	b, err := l.book(runID)
	if err != nil {
		return Ticket{}, err
	}
	lim := b.state.Limits
	runUsed := b.state.CommittedMicros + b.state.ReservedMicros
	taskUsed := b.state.TaskMicros[task] + b.reservedTask[task]
	if runUsed+estimate > lim.MaxPerRunMicros {
		metrics.BudgetBlocked(string(task), "reserve")
		return Ticket{}, fmt.Errorf("run %s: %s needs %s, run has %s left: %w", runID, task,
			model.FormatMicros(estimate), model.FormatMicros(lim.MaxPerRunMicros-runUsed), domain.ErrBudgetExceeded)
	}
	if taskUsed+estimate > lim.MaxPerTaskMicros {
		metrics.BudgetBlocked(string(task), "reserve")
		return Ticket{}, fmt.Errorf("run %s: %s needs %s, task has %s left: %w", runID, task,
			model.FormatMicros(estimate), model.FormatMicros(lim.MaxPerTaskMicros-taskUsed), domain.ErrBudgetExceeded)
	}
	t := Ticket{ID: uuid.NewString(), RunID: runID, Task: task, Amount: estimate}
	b.tickets[t.ID] = t
	b.state.ReservedMicros += estimate
	b.reservedTask[task] += estimate
	return t, nil
}

// take removes the ticket's reservation; the caller holds the lock.
func (l *Ledger) take(t Ticket) (*runBook, error) {
	b, err := l.book(t.RunID)
	if err != nil {
		return nil, err
	}
	held, ok := b.tickets[t.ID]
	if !ok {
		return nil, fmt.Errorf("ticket %s: %w", t.ID, domain.ErrUnknownTicket)
	}
	delete(b.tickets, t.ID)
	b.state.ReservedMicros -= held.Amount
	b.reservedTask[held.Task] -= held.Amount
	return b, nil
}

// Commit replaces the reservation with the actual cost. An actual cost above
// the remaining budget is still recorded; the next reservation sees it.
func (l *Ledger) Commit(t Ticket, actual int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, err := l.take(t)
	if err != nil {
		return err
	}
	if actual < 0 {
		actual = 0
	}
	b.state.CommittedMicros += actual
	b.state.TaskMicros[t.Task] += actual
	if actual > t.Amount {
		l.log.Warn().Str("run_id", t.RunID).Str("task", string(t.Task)).
			Int64("estimate_micros", t.Amount).Int64("actual_micros", actual).
			Msg("actual cost above reservation")
	}
	return nil
}

func (l *Ledger) Release(t Ticket) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.take(t)
	return err
}

func (l *Ledger) Headroom(runID string, task model.TaskType) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, err := l.book(runID)
	if err != nil {
		return 0, err
	}
	run := b.state.Limits.MaxPerRunMicros - b.state.CommittedMicros
	per := b.state.Limits.MaxPerTaskMicros - b.state.TaskMicros[task]
	return min(run, per), nil
}

// DisableProvider removes provider from the run for good. Reports whether it was newly disabled.
func (l *Ledger) DisableProvider(runID, provider string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, err := l.book(runID)
	if err != nil || b.disabled[provider] {
		return false
	}
	b.disabled[provider] = true
	return true
}

func (l *Ledger) IsDisabled(runID, provider string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.runs[runID]
	return ok && b.disabled[provider]
}

func (l *Ledger) RecordOutcome(runID string, outcome model.ItemOutcome) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, err := l.book(runID)
	if err != nil {
		return err
	}
	b.state.Outcomes = append(b.state.Outcomes, outcome)
	return nil
}

func (l *Ledger) MarkCancelled(runID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.runs[runID]; ok {
		b.state.Cancelled = true
	}
}

// Snapshot returns a deep copy of the run state.
func (l *Ledger) Snapshot(runID string) (*model.RunState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", runID, domain.ErrNotFound)
	}
	return b.snapshot(), nil
}

// Close finalizes the run and forgets it. Outstanding tickets are dropped.
func (l *Ledger) Close(runID string) (*model.RunState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, err := l.book(runID)
	if err != nil {
		return nil, err
	}
	if len(b.tickets) > 0 {
		l.log.Warn().Str("run_id", runID).Int("tickets", len(b.tickets)).Msg("closing run with open reservations")
	}
	b.state.FinishedAt = l.now()
	b.state.ReservedMicros = 0
	snap := b.snapshot()
	delete(l.runs, runID)
	return snap, nil
}

func (b *runBook) snapshot() *model.RunState {
	s := b.state
	s.TaskMicros = make(map[model.TaskType]int64, len(b.state.TaskMicros))
	for k, v := range b.state.TaskMicros {
		s.TaskMicros[k] = v
	}
	s.Outcomes = append([]model.ItemOutcome(nil), b.state.Outcomes...)
	s.DisabledProviders = make([]string, 0, len(b.disabled))
	for name := range b.disabled {
		s.DisabledProviders = append(s.DisabledProviders, name)
	}
	sort.Strings(s.DisabledProviders)
	return &s
}
