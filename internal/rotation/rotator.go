package rotation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/featured/internal/catalog"
)

// Repository is the store contract the rotation core depends on.
// Implemented by *store.Store (production) and testutil.MemoryRepository.
type Repository interface {
	// FindNextEligible returns the next artist to feature for the period
	// starting at periodStart, or catalog.ErrNotFound.
	FindNextEligible(ctx context.Context, periodStart time.Time) (catalog.Artist, error)

	// FindMostRecentlyFeatured returns the artist with the latest
	// featured_at (ties by lowest id), or catalog.ErrNotFound.
	FindMostRecentlyFeatured(ctx context.Context) (catalog.Artist, error)

	// Save persists the artist atomically. May fail with catalog.ErrConflict.
	Save(ctx context.Context, a catalog.Artist) (catalog.Artist, error)
}

// Clock supplies wall time to the rotator and scheduler.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now.
type SystemClock struct{}

// Now returns the current wall time.
func (SystemClock) Now() time.Time { return time.Now() }

// Rotation describes one completed cycle.
type Rotation struct {
	CycleID     string         `json:"cycle_id"`
	Artist      catalog.Artist `json:"artist"`
	StartedAt   time.Time      `json:"started_at"`
	PeriodStart time.Time      `json:"period_start"`
}

// Observer is notified after a cycle commits. Errors are logged, never
// propagated to the cycle.
type Observer interface {
	ArtistRotated(ctx context.Context, rot Rotation) error
}

// Stats are cumulative counters for a Rotator.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Fills     uint64 `json:"fills"`
	Rotations uint64 `json:"rotations"`
	Skipped   uint64 `json:"skipped"`
	Failures  uint64 `json:"failures"`
}

// Rotator runs rotation cycles and serves the featured artist.
//
// INVARIANTS:
//   - At most one cycle runs at a time (cycleMu)
//   - The store is written before the slot is touched
//   - A look-aside fill never overwrites a slot written after its miss
type Rotator struct {
	repo      Repository
	slot      Slot
	clock     Clock
	period    Period
	ids       IDGenerator
	observers []Observer
	onState   func(cycleID string, s State)

	cycleMu sync.Mutex
	state   atomic.Int32
	loads   singleflight.Group

	hits      atomic.Uint64
	misses    atomic.Uint64
	fills     atomic.Uint64
	rotations atomic.Uint64
	skipped   atomic.Uint64
	failures  atomic.Uint64
}

// Option configures a Rotator.
type Option func(*Rotator)

// WithSlot replaces the default MemorySlot.
func WithSlot(s Slot) Option {
	return func(r *Rotator) {
		r.slot = s
	}
}

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(r *Rotator) {
		r.clock = c
	}
}

// WithPeriod sets the rotation period. Default: daily in UTC.
func WithPeriod(p Period) Option {
	return func(r *Rotator) {
		r.period = p
	}
}

// WithIDGenerator replaces the UUIDv7 cycle id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(r *Rotator) {
		r.ids = g
	}
}

// WithObserver registers an observer for committed rotations.
func WithObserver(o Observer) Option {
	return func(r *Rotator) {
		r.observers = append(r.observers, o)
	}
}

// WithStateHook registers a callback for every state transition.
// The hook runs on the cycle goroutine and must not call back into the Rotator's
// rotation methods.
func WithStateHook(fn func(cycleID string, s State)) Option {
	return func(r *Rotator) {
		r.onState = fn
	}
}

// New creates a Rotator over repo.
func New(repo Repository, opts ...Option) *Rotator {
	r := &Rotator{
		repo:   repo,
		slot:   NewMemorySlot(),
		clock:  SystemClock{},
		period: Daily(time.UTC),
		ids:    UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the state of the in-flight cycle, or StateIdle.
func (r *Rotator) State() State {
	return State(r.state.Load())
}

// Period returns the configured rotation period.
func (r *Rotator) Period() Period {
	return r.period
}

// Stats returns a snapshot of the counters.
func (r *Rotator) Stats() Stats {
	return Stats{
		Hits:      r.hits.Load(),
		Misses:    r.misses.Load(),
		Fills:     r.fills.Load(),
		Rotations: r.rotations.Load(),
		Skipped:   r.skipped.Load(),
		Failures:  r.failures.Load(),
	}
}

// TriggerRotation runs one rotation cycle and returns the newly featured
// artist. Blocks while another cycle is in flight.
//
// Returns a *CycleError wrapping ErrNoEligibleArtist when nothing is eligible,
// ErrStoreUnavailable or catalog.ErrConflict when the store fails. In every
// error case the store and the slot are left as they were.
func (r *Rotator) TriggerRotation(ctx context.Context) (catalog.Artist, error) {
	r.cycleMu.Lock()
	defer r.cycleMu.Unlock()
	return r.runCycle(ctx)
}

// TryRotate runs one cycle unless another is in flight, in which case it
// returns ran=false immediately. The scheduler uses it so an overlapping
// tick is dropped instead of queued.
func (r *Rotator) TryRotate(ctx context.Context) (a catalog.Artist, ran bool, err error) {
	if !r.cycleMu.TryLock() {
		r.skipped.Add(1)
		return catalog.Artist{}, false, nil
	}
	defer r.cycleMu.Unlock()
	a, err = r.runCycle(ctx)
	return a, true, err
}

// runCycle executes Selecting -> Persisting -> CacheInvalidated -> CacheRepopulated.
// CRITICAL: caller holds cycleMu.
func (r *Rotator) runCycle(ctx context.Context) (catalog.Artist, error) {
	started := r.clock.Now()
	periodStart := r.period.Start(started)
	cycleID := r.ids.Generate()
	defer r.enter(cycleID, StateIdle)

	slog.Debug("rotation cycle starting",
		"cycle", cycleID,
		"period_start", periodStart,
	)

	// Selecting
	r.enter(cycleID, StateSelecting)
	candidate, err := r.repo.FindNextEligible(ctx, periodStart)
	if errors.Is(err, catalog.ErrNotFound) {
		return r.abort(cycleID, StateSelecting, ErrNoEligibleArtist)
	}
	if err != nil {
		return r.abort(cycleID, StateSelecting, fmt.Errorf("%w: %w", ErrStoreUnavailable, err))
	}
	next, err := SelectNext([]catalog.Artist{candidate}, periodStart)
	if err != nil {
		return r.abort(cycleID, StateSelecting, err)
	}

	// Persisting
	r.enter(cycleID, StatePersisting)
	featuredAt := started
	next.FeaturedAt = &featuredAt
	saved, err := r.repo.Save(ctx, next)
	if err != nil {
		if !errors.Is(err, catalog.ErrConflict) {
			err = fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		return r.abort(cycleID, StatePersisting, err)
	}

	// CacheInvalidated
	r.enter(cycleID, StateCacheInvalidated)
	if err := r.slot.Invalidate(); err != nil {
		slog.Warn("featured slot invalidate failed",
			"cycle", cycleID,
			"key", SlotKey,
			"error", err,
		)
	}

	// CacheRepopulated
	r.enter(cycleID, StateCacheRepopulated)
	if err := r.slot.Store(saved); err != nil {
		slog.Warn("featured slot repopulate failed, next read rehydrates from store",
			"cycle", cycleID,
			"key", SlotKey,
			"error", fmt.Errorf("%w: %w", ErrCacheWrite, err),
		)
	}

	r.rotations.Add(1)
	slog.Info("artist rotated",
		"cycle", cycleID,
		"artist_id", saved.ID,
		"name", saved.Name,
		"featured_at", featuredAt,
		"period_start", periodStart,
	)

	rot := Rotation{
		CycleID:     cycleID,
		Artist:      saved.Clone(),
		StartedAt:   started,
		PeriodStart: periodStart,
	}
	for _, o := range r.observers {
		if err := o.ArtistRotated(ctx, rot); err != nil {
			slog.Error("rotation observer failed",
				"cycle", cycleID,
				"error", err,
			)
		}
	}

	return saved, nil
}

func (r *Rotator) enter(cycleID string, s State) {
	r.state.Store(int32(s))
	if r.onState != nil {
		r.onState(cycleID, s)
	}
}

func (r *Rotator) abort(cycleID string, s State, err error) (catalog.Artist, error) {
	r.failures.Add(1)
	if IsNoEligible(err) {
		slog.Warn("rotation skipped: no eligible artist", "cycle", cycleID)
	} else {
		slog.Error("rotation cycle aborted",
			"cycle", cycleID,
			"state", s.String(),
			"error", err,
		)
	}
	return catalog.Artist{}, &CycleError{CycleID: cycleID, State: s, Err: err}
}

// Featured returns the current featured artist.
//
// A slot hit returns without touching the store. On a miss the most recently
// featured artist is loaded from the store (concurrent misses share one
// query) and cached if no rotation wrote the slot in the meantime.
//
// The shared load does not inherit any caller's cancellation. A caller whose
// ctx ends stops waiting and gets ctx.Err(); the load still completes for
// the other waiters.
//
// Returns ok=false with a nil error when no artist has ever been featured.
func (r *Rotator) Featured(ctx context.Context) (a catalog.Artist, ok bool, err error) {
	cached, gen, hit := r.slot.Load()
	if hit {
		r.hits.Add(1)
		return cached, true, nil
	}
	r.misses.Add(1)

	loadCtx := context.WithoutCancel(ctx)
	ch := r.loads.DoChan(SlotKey+"#"+strconv.FormatUint(gen, 10), func() (any, error) {
		return r.rehydrate(loadCtx, gen)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return catalog.Artist{}, false, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return catalog.Artist{}, false, fmt.Errorf("load featured artist: %w: %w", ErrStoreUnavailable, res.Err)
	}
	if res.Val == nil {
		return catalog.Artist{}, false, nil
	}
	return res.Val.(catalog.Artist).Clone(), true, nil
}

// rehydrate loads the most recently featured artist and fills the slot if
// it still holds generation gen. Returns a nil value when nothing has been
// featured.
func (r *Rotator) rehydrate(ctx context.Context, gen uint64) (any, error) {
	current, err := r.repo.FindMostRecentlyFeatured(ctx)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	stored, err := r.slot.StoreIfCurrent(gen, current)
	switch {
	case err != nil:
		slog.Warn("featured slot fill failed",
			"key", SlotKey,
			"error", fmt.Errorf("%w: %w", ErrCacheWrite, err),
		)
	case stored:
		r.fills.Add(1)
	default:
		slog.Debug("featured slot fill skipped: slot changed during load", "key", SlotKey)
	}
	return current, nil
}
