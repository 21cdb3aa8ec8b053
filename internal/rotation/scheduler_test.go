package rotation

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/featured/internal/catalog"
	"github.com/roach88/featured/internal/testutil"
)

func TestParseSchedule(t *testing.T) {
	from := time.Date(2024, 3, 10, 12, 0, 1, 0, time.UTC)

	tests := []struct {
		expr string
		want time.Time
	}{
		{expr: "*/4 * * * * ?", want: time.Date(2024, 3, 10, 12, 0, 4, 0, time.UTC)},
		{expr: "0 0 * * *", want: time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)},
		{expr: "@daily", want: time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)},
		{expr: "@hourly", want: time.Date(2024, 3, 10, 13, 0, 0, 0, time.UTC)},
		{expr: "@every 10s", want: from.Add(10 * time.Second)},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			sched, err := ParseSchedule(tt.expr)
			require.NoError(t, err)
			assert.True(t, sched.Next(from).Equal(tt.want), "got %s", sched.Next(from))
		})
	}
}

func TestParseSchedule_Invalid(t *testing.T) {
	for _, expr := range []string{"", "every day", "61 * * * *", "* * * * * * *"} {
		_, err := ParseSchedule(expr)
		assert.Error(t, err, expr)
	}
}

// everySchedule fires every d. cron's own "@every" rounds up to a second.
type everySchedule time.Duration

func (e everySchedule) Next(t time.Time) time.Time {
	return t.Add(time.Duration(e))
}

// neverSchedule has no activations.
type neverSchedule struct{}

func (neverSchedule) Next(time.Time) time.Time { return time.Time{} }

// countingRunner is a cycleRunner stub.
type countingRunner struct {
	rotations atomic.Int32
	featured  atomic.Int32
	hasFeat   bool
}

func (r *countingRunner) TryRotate(context.Context) (catalog.Artist, bool, error) {
	r.rotations.Add(1)
	return catalog.Artist{ID: 1}, true, nil
}

func (r *countingRunner) Featured(context.Context) (catalog.Artist, bool, error) {
	r.featured.Add(1)
	return catalog.Artist{}, r.hasFeat, nil
}

func startScheduler(t *testing.T, ctx context.Context, s *Scheduler) <-chan error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Run(ctx)
	}()
	return errCh
}

func TestScheduler_FiresOnSchedule(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, everySchedule(10*time.Millisecond))

	errCh := startScheduler(t, context.Background(), s)

	require.Eventually(t, func() bool {
		return runner.rotations.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	assert.NoError(t, <-errCh)
	assert.GreaterOrEqual(t, s.Ticks(), uint64(3))
}

func TestScheduler_ContextCancel(t *testing.T) {
	sched, err := ParseSchedule("@hourly")
	require.NoError(t, err)
	s := NewScheduler(&countingRunner{}, sched)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := startScheduler(t, ctx, s)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop on context cancel")
	}
}

func TestScheduler_ExhaustedSchedule(t *testing.T) {
	s := NewScheduler(&countingRunner{}, neverSchedule{})

	err := s.Run(context.Background())
	assert.ErrorIs(t, err, errScheduleExhausted)
}

func TestScheduler_StopWithoutTicks(t *testing.T) {
	sched, err := ParseSchedule("@hourly")
	require.NoError(t, err)
	runner := &countingRunner{}
	s := NewScheduler(runner, sched)

	errCh := startScheduler(t, context.Background(), s)
	s.Stop()

	assert.NoError(t, <-errCh)
	assert.Equal(t, int32(0), runner.rotations.Load())
}

func TestScheduler_RotateOnStart(t *testing.T) {
	sched, err := ParseSchedule("@hourly")
	require.NoError(t, err)

	t.Run("fresh catalog rotates immediately", func(t *testing.T) {
		runner := &countingRunner{}
		s := NewScheduler(runner, sched, WithRotateOnStart(true))
		errCh := startScheduler(t, context.Background(), s)

		require.Eventually(t, func() bool {
			return runner.rotations.Load() == 1
		}, time.Second, 5*time.Millisecond)

		s.Stop()
		assert.NoError(t, <-errCh)
	})

	t.Run("featured artist present skips bootstrap", func(t *testing.T) {
		runner := &countingRunner{hasFeat: true}
		s := NewScheduler(runner, sched, WithRotateOnStart(true))
		errCh := startScheduler(t, context.Background(), s)

		require.Eventually(t, func() bool {
			return runner.featured.Load() == 1
		}, time.Second, 5*time.Millisecond)

		s.Stop()
		assert.NoError(t, <-errCh)
		assert.Equal(t, int32(0), runner.rotations.Load())
	})

	t.Run("disabled", func(t *testing.T) {
		runner := &countingRunner{}
		s := NewScheduler(runner, sched)
		errCh := startScheduler(t, context.Background(), s)

		s.Stop()
		assert.NoError(t, <-errCh)
		assert.Equal(t, int32(0), runner.featured.Load())
	})
}

func TestScheduler_TickSkippedDuringManualCycle(t *testing.T) {
	repo := testutil.NewMemoryRepository(names("A", "B")...)
	rot := New(repo, WithClock(testutil.NewManualClock(noon)))
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	repo.BeforeSave(func(catalog.Artist) {
		once.Do(func() { close(entered) })
		<-release
	})

	done := make(chan error, 1)
	go func() {
		_, err := rot.TriggerRotation(ctx)
		done <- err
	}()
	<-entered

	sched, err := ParseSchedule("@hourly")
	require.NoError(t, err)
	s := NewScheduler(rot, sched)
	s.tick(ctx)

	assert.Equal(t, uint64(1), s.Ticks())
	assert.Equal(t, uint64(1), rot.Stats().Skipped)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, uint64(1), rot.Stats().Rotations)
	assert.Equal(t, 1, repo.Calls(testutil.MethodSave), "skipped tick never reached the store")
}

func TestScheduler_DrivesRotator(t *testing.T) {
	repo := testutil.NewMemoryRepository(names("A", "B", "C")...)
	rot := New(repo)

	s := NewScheduler(rot, everySchedule(10*time.Millisecond), WithRotateOnStart(true))
	errCh := startScheduler(t, context.Background(), s)

	require.Eventually(t, func() bool {
		return rot.Stats().Rotations >= 3
	}, 2*time.Second, 5*time.Millisecond)
	s.Stop()
	require.NoError(t, <-errCh)

	// Three artists, one period: every artist exactly once, then nothing eligible
	for _, a := range repo.All() {
		assert.NotNil(t, a.FeaturedAt, a.Name)
		assert.Equal(t, int64(1), a.Version, a.Name)
	}
	assert.Equal(t, uint64(3), rot.Stats().Rotations)
}
