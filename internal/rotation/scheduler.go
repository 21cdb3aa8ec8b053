package rotation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/roach88/featured/internal/catalog"
)

// cronParser accepts 5-field, 6-field (leading seconds) and descriptor
// expressions such as "@daily" or "@every 4s".
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule parses a cron expression.
func ParseSchedule(expr string) (cron.Schedule, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return sched, nil
}

// errScheduleExhausted is returned when the schedule has no future activation.
var errScheduleExhausted = errors.New("schedule has no upcoming activation")

// cycleRunner is the part of Rotator the scheduler drives.
type cycleRunner interface {
	TryRotate(ctx context.Context) (catalog.Artist, bool, error)
	Featured(ctx context.Context) (catalog.Artist, bool, error)
}

// Scheduler triggers rotation cycles on a cron schedule.
//
// Ticks are handled on the Run goroutine: a cycle that outlasts the next
// activation simply delays it, and activations missed meanwhile coalesce
// into one. A tick that finds a manual cycle in flight is skipped.
//
// Thread-safety: Run must be called from one goroutine; Stop is safe from any.
type Scheduler struct {
	runner        cycleRunner
	schedule      cron.Schedule
	clock         Clock
	location      *time.Location
	rotateOnStart bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	ticks atomic.Uint64
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerClock replaces the system clock used to compute activations.
func WithSchedulerClock(c Clock) SchedulerOption {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithLocation evaluates the schedule in loc. Default: UTC.
func WithLocation(loc *time.Location) SchedulerOption {
	return func(s *Scheduler) {
		s.location = loc
	}
}

// WithRotateOnStart runs one cycle at startup when no artist has ever
// been featured, so a fresh catalog has an artist of the day immediately.
func WithRotateOnStart(enabled bool) SchedulerOption {
	return func(s *Scheduler) {
		s.rotateOnStart = enabled
	}
}

// NewScheduler creates a scheduler driving r on schedule.
func NewScheduler(r cycleRunner, schedule cron.Schedule, opts ...SchedulerOption) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		runner:   r,
		schedule: schedule,
		clock:    SystemClock{},
		location: time.UTC,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ticks returns the number of activations handled so far.
func (s *Scheduler) Ticks() uint64 {
	return s.ticks.Load()
}

// Run blocks, firing a rotation at every activation, until ctx is
// cancelled or Stop is called.
//
// Returns ctx.Err() on cancellation and nil after Stop.
func (s *Scheduler) Run(ctx context.Context) error {
	s.wg.Add(1)
	defer s.wg.Done()

	if s.rotateOnStart {
		s.bootstrap(ctx)
	}

	slog.Info("rotation scheduler started")

	for {
		now := s.clock.Now().In(s.location)
		next := s.schedule.Next(now)
		if next.IsZero() {
			return errScheduleExhausted
		}

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Info("rotation scheduler stopping: context cancelled")
			return ctx.Err()

		case <-s.ctx.Done():
			timer.Stop()
			slog.Info("rotation scheduler stopping")
			return nil

		case <-timer.C:
			s.tick(ctx)
		}
	}
}

// Stop cancels Run and waits for it to return.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// tick runs one scheduled cycle. Failures are logged by the rotator;
// the scheduler keeps going.
func (s *Scheduler) tick(ctx context.Context) {
	n := s.ticks.Add(1)

	a, ran, err := s.runner.TryRotate(ctx)
	switch {
	case !ran:
		slog.Info("rotation tick skipped: cycle already in flight", "tick", n)
	case err != nil:
		slog.Debug("rotation tick failed", "tick", n, "error", err)
	default:
		slog.Debug("rotation tick done", "tick", n, "artist_id", a.ID)
	}
}

// bootstrap rotates once if the store has no featured artist yet.
func (s *Scheduler) bootstrap(ctx context.Context) {
	_, ok, err := s.runner.Featured(ctx)
	if err != nil {
		slog.Error("rotate-on-start: featured lookup failed", "error", err)
		return
	}
	if ok {
		return
	}
	slog.Info("rotate-on-start: no featured artist yet, rotating now")
	s.tick(ctx)
}
