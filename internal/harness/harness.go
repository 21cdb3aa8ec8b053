package harness

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/featured/internal/catalog"
	"github.com/roach88/featured/internal/rotation"
	"github.com/roach88/featured/internal/store"
	"github.com/roach88/featured/internal/testutil"
)

// Harness is the scenario execution engine.
// It runs scenarios against a fresh store with a manual clock.
type Harness struct {
	store   *store.Store
	repo    *faultRepository
	rotator *rotation.Rotator
	clock   *testutil.ManualClock
	result  *Result

	// cycle is the id reported by the most recent state transition
	cycle string
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Execution flow:
//  1. Create fresh in-memory database
//  2. Seed the catalog
//  3. Execute steps, checking step expectations
//  4. Evaluate assertions against the trace and the store
func Run(scenario *Scenario) (*Result, error) {
	start := scenario.Start
	if start.IsZero() {
		start = DefaultStart
	}
	clock := testutil.NewManualClock(start.UTC())

	loc := time.UTC
	if scenario.Timezone != "" {
		var err error
		if loc, err = time.LoadLocation(scenario.Timezone); err != nil {
			return nil, fmt.Errorf("load timezone: %w", err)
		}
	}
	period, err := rotation.ParsePeriod(scenario.Period, loc)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:", store.WithClock(clock.Now))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := seed(ctx, st, scenario.Artists); err != nil {
		return nil, fmt.Errorf("failed to seed catalog: %w", err)
	}

	h := &Harness{
		store:  st,
		repo:   newFaultRepository(st),
		clock:  clock,
		result: NewResult(),
	}
	h.rotator = rotation.New(h.repo,
		rotation.WithClock(clock),
		rotation.WithPeriod(period),
		rotation.WithIDGenerator(testutil.NewSequentialIDs("cycle")),
		rotation.WithStateHook(h.onState),
	)

	for i, step := range scenario.Steps {
		ev, err := h.execute(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		if msg := matchExpect(ev, step.Expect); msg != "" {
			h.result.AddError(fmt.Sprintf("steps[%d] (%s): %s", i, step.Op, msg))
		}
	}

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions, actx) {
		h.result.AddError(msg)
	}

	return h.result, nil
}

// seed inserts the scenario catalog in order.
func seed(ctx context.Context, st *store.Store, artists []SeedArtist) error {
	for _, a := range artists {
		if _, err := st.Insert(ctx, catalog.Artist{
			Name:       a.Name,
			Bio:        a.Bio,
			Aliases:    a.Aliases,
			FeaturedAt: a.FeaturedAt,
		}); err != nil {
			return err
		}
	}
	return nil
}

// execute runs one step and returns the event it recorded.
func (h *Harness) execute(ctx context.Context, step Step) (TraceEvent, error) {
	switch step.Op {
	case OpRotate:
		artist, err := h.rotator.TriggerRotation(ctx)
		ev := TraceEvent{
			Op:      OpRotate,
			CycleID: h.cycle,
			Outcome: outcomeOf(err),
		}
		if err == nil {
			ev.Artist = artist.Name
			ev.At = formatTime(*artist.FeaturedAt)
		}
		return h.result.Record(ev), nil

	case OpFeatured:
		before := h.rotator.Stats().Hits
		artist, ok, err := h.rotator.Featured(ctx)
		ev := TraceEvent{Op: OpFeatured, Outcome: outcomeOf(err)}
		switch {
		case err != nil:
		case !ok:
			ev.Outcome = OutcomeNone
		default:
			ev.Artist = artist.Name
		}
		if err == nil {
			ev.Source = SourceStore
			if h.rotator.Stats().Hits > before {
				ev.Source = SourceCache
			}
		}
		return h.result.Record(ev), nil

	case OpAdvance:
		d, err := time.ParseDuration(step.Duration)
		if err != nil {
			return TraceEvent{}, err
		}
		now := h.clock.Advance(d)
		return h.result.Record(TraceEvent{Op: OpAdvance, At: formatTime(now)}), nil

	case OpFail:
		h.repo.failNext(step.Method)
		return h.result.Record(TraceEvent{Op: OpFail, Method: step.Method}), nil

	default:
		return TraceEvent{}, fmt.Errorf("unknown op %q", step.Op)
	}
}

// onState records every rotation state transition.
func (h *Harness) onState(cycleID string, s rotation.State) {
	h.cycle = cycleID
	h.result.Record(TraceEvent{Op: OpState, CycleID: cycleID, State: s.String()})
}

// matchExpect returns a mismatch message, or "" if every expected field
// matches the event.
func matchExpect(ev TraceEvent, expect map[string]string) string {
	for _, key := range sortedKeys(expect) {
		got, ok := ev.field(key)
		if !ok {
			return fmt.Sprintf("unknown expect field %q", key)
		}
		if got != expect[key] {
			return fmt.Sprintf("expected %s=%q, got %q", key, expect[key], got)
		}
	}
	return ""
}

// outcomeOf classifies a rotator error.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case rotation.IsNoEligible(err):
		return OutcomeNoEligible
	case errors.Is(err, catalog.ErrConflict):
		return OutcomeConflict
	case errors.Is(err, rotation.ErrStoreUnavailable):
		return OutcomeStoreUnavailable
	default:
		return OutcomeError
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// errInjected is returned by a store call broken with a fail step.
var errInjected = errors.New("injected store failure")

// faultRepository wraps the SQLite store so fail steps can break the next
// call to one method.
type faultRepository struct {
	*store.Store

	mu      sync.Mutex
	pending map[string]bool
}

func newFaultRepository(st *store.Store) *faultRepository {
	return &faultRepository{Store: st, pending: make(map[string]bool)}
}

func (r *faultRepository) failNext(method string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[method] = true
}

func (r *faultRepository) take(method string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending[method] {
		delete(r.pending, method)
		return fmt.Errorf("%s: %w", method, errInjected)
	}
	return nil
}

func (r *faultRepository) FindNextEligible(ctx context.Context, periodStart time.Time) (catalog.Artist, error) {
	if err := r.take(testutil.MethodFindNextEligible); err != nil {
		return catalog.Artist{}, err
	}
	return r.Store.FindNextEligible(ctx, periodStart)
}

func (r *faultRepository) FindMostRecentlyFeatured(ctx context.Context) (catalog.Artist, error) {
	if err := r.take(testutil.MethodFindMostRecentlyFeatured); err != nil {
		return catalog.Artist{}, err
	}
	return r.Store.FindMostRecentlyFeatured(ctx)
}

func (r *faultRepository) Save(ctx context.Context, a catalog.Artist) (catalog.Artist, error) {
	if err := r.take(testutil.MethodSave); err != nil {
		return catalog.Artist{}, err
	}
	return r.Store.Save(ctx, a)
}
