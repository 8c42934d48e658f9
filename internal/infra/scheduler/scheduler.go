package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is one triggered unit of work. reason says what fired it ("cron", "watch", "api").
type Job func(ctx context.Context, reason string) error

// Scheduler fires a Job on a cron schedule and on demand. At most one job runs
// at a time; a trigger that arrives while a job is active is dropped.
type Scheduler struct {
	schedule cron.Schedule
	job      Job
	log      *zerolog.Logger
	now      func() time.Time

	active   sync.Mutex
	wg       sync.WaitGroup
	triggers chan string
}

// ParseCron accepts the classic five-field expression. "" means no schedule.
func ParseCron(expr string) (cron.Schedule, error) {
	if expr == "" {
		return nil, nil
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	s, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("cron %q: %w", expr, err)
	}
	return s, nil
}

// NewScheduler builds a scheduler for expr. An empty expr gives a trigger-only scheduler.
func NewScheduler(expr string, job Job, logger *zerolog.Logger) (*Scheduler, error) {
	schedule, err := ParseCron(expr)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Scheduler{
		schedule: schedule,
		job:      job,
		log:      logger,
		now:      time.Now,
		triggers: make(chan string, 1),
	}, nil
}

// Trigger asks for a run as soon as possible. Repeated triggers before the
// loop picks one up collapse into one.
func (s *Scheduler) Trigger(reason string) {
	select {
	case s.triggers <- reason:
	default:
	}
}

// Next returns the next cron fire time, zero when there is no schedule.
func (s *Scheduler) Next() time.Time {
	if s.schedule == nil {
		return time.Time{}
	}
	return s.schedule.Next(s.now())
}

// Run blocks until ctx is done, then waits for an active job to return.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info().Time("next", s.Next()).Msg("scheduler started")
	defer func() {
		s.wg.Wait()
		s.log.Info().Msg("scheduler stopped")
	}()

	for {
		var tick <-chan time.Time
		var timer *time.Timer
		if next := s.Next(); !next.IsZero() {
			timer = time.NewTimer(next.Sub(s.now()))
			tick = timer.C
		}
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case <-tick:
			s.fire(ctx, "cron")
		case reason := <-s.triggers:
			if timer != nil {
				timer.Stop()
			}
			s.fire(ctx, reason)
		}
	}
}

// fire starts the job unless one is already running.
func (s *Scheduler) fire(ctx context.Context, reason string) bool {
	if !s.active.TryLock() {
		s.log.Info().Str("reason", reason).Msg("job still running; trigger skipped")
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.active.Unlock()
		started := time.Now()
		if err := s.job(ctx, reason); err != nil {
			s.log.Error().Err(err).Str("reason", reason).Msg("scheduled job failed")
			return
		}
		s.log.Info().Str("reason", reason).Dur("took", time.Since(started).Round(time.Millisecond)).Msg("scheduled job done")
	}()
	return true
}
