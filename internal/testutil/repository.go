package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/featured/internal/catalog"
)

// Method names accepted by Calls, FailNext and FailAlways.
const (
	MethodFindNextEligible         = "FindNextEligible"
	MethodFindMostRecentlyFeatured = "FindMostRecentlyFeatured"
	MethodSave                     = "Save"
)

// MemoryRepository is an in-memory rotation.Repository with call counters
// and fault injection.
//
// It applies the same eligibility and ordering rules as the SQLite store, so
// rotation tests can run without a database and assert on store traffic
// (e.g. "the second read was a cache hit").
//
// Thread-safety: all methods are safe for concurrent use.
type MemoryRepository struct {
	mu         sync.Mutex
	artists    map[int64]catalog.Artist
	nextID     int64
	calls      map[string]int
	failNext   map[string]error
	failAlways map[string]error
	beforeSave func(a catalog.Artist)
}

// NewMemoryRepository creates a repository holding artists. Artists with a
// zero ID get the next free one, in argument order.
func NewMemoryRepository(artists ...catalog.Artist) *MemoryRepository {
	r := &MemoryRepository{
		artists:    make(map[int64]catalog.Artist),
		calls:      make(map[string]int),
		failNext:   make(map[string]error),
		failAlways: make(map[string]error),
	}
	for _, a := range artists {
		r.Add(a)
	}
	return r
}

// Add inserts an artist and returns it with its ID.
func (r *MemoryRepository) Add(a catalog.Artist) catalog.Artist {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.ID == 0 {
		r.nextID++
		a.ID = r.nextID
	} else if a.ID > r.nextID {
		r.nextID = a.ID
	}
	if a.ArtistID == uuid.Nil {
		a.ArtistID = catalog.NewArtistID()
	}
	a.Name = catalog.NormalizeName(a.Name)
	r.artists[a.ID] = a.Clone()
	return a.Clone()
}

// FindNextEligible implements rotation.Repository.
func (r *MemoryRepository) FindNextEligible(_ context.Context, periodStart time.Time) (catalog.Artist, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enter(MethodFindNextEligible); err != nil {
		return catalog.Artist{}, err
	}

	var candidates []catalog.Artist
	for _, a := range r.artists {
		if a.EligibleAt(periodStart) {
			candidates = append(candidates, a)
		}
	}
	if len(candidates) == 0 {
		return catalog.Artist{}, fmt.Errorf("find next eligible: %w", catalog.ErrNotFound)
	}
	sort.Slice(candidates, func(i, j int) bool { return catalog.Less(candidates[i], candidates[j]) })
	return candidates[0].Clone(), nil
}

// FindMostRecentlyFeatured implements rotation.Repository.
func (r *MemoryRepository) FindMostRecentlyFeatured(_ context.Context) (catalog.Artist, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enter(MethodFindMostRecentlyFeatured); err != nil {
		return catalog.Artist{}, err
	}

	var (
		best  catalog.Artist
		found bool
	)
	for _, a := range r.artists {
		if !a.Featured() {
			continue
		}
		if !found || catalog.MoreRecent(a, best) {
			best = a
			found = true
		}
	}
	if !found {
		return catalog.Artist{}, fmt.Errorf("find most recently featured: %w", catalog.ErrNotFound)
	}
	return best.Clone(), nil
}

// Save implements rotation.Repository with an optimistic version check.
func (r *MemoryRepository) Save(_ context.Context, a catalog.Artist) (catalog.Artist, error) {
	r.mu.Lock()
	hook := r.beforeSave
	r.mu.Unlock()

	// Run outside the lock so a blocking hook doesn't stall readers
	if hook != nil {
		hook(a.Clone())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enter(MethodSave); err != nil {
		return catalog.Artist{}, err
	}

	cur, ok := r.artists[a.ID]
	if !ok {
		return catalog.Artist{}, fmt.Errorf("save artist %d: %w", a.ID, catalog.ErrNotFound)
	}
	if cur.Version != a.Version {
		return catalog.Artist{}, fmt.Errorf("save artist %d (version %d): %w", a.ID, a.Version, catalog.ErrConflict)
	}

	a = a.Clone()
	a.Version++
	r.artists[a.ID] = a
	return a.Clone(), nil
}

// Get returns the stored artist by id, without counting as a call.
func (r *MemoryRepository) Get(id int64) (catalog.Artist, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.artists[id]
	return a.Clone(), ok
}

// All returns every artist ordered by id, without counting as a call.
func (r *MemoryRepository) All() []catalog.Artist {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]catalog.Artist, 0, len(r.artists))
	for _, a := range r.artists {
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Calls returns how many times method was invoked.
func (r *MemoryRepository) Calls(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[method]
}

// ResetCalls zeroes all call counters.
func (r *MemoryRepository) ResetCalls() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = make(map[string]int)
}

// FailNext makes the next call to method fail with err.
func (r *MemoryRepository) FailNext(method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNext[method] = err
}

// FailAlways makes every call to method fail with err. A nil err clears it.
func (r *MemoryRepository) FailAlways(method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.failAlways, method)
		return
	}
	r.failAlways[method] = err
}

// BeforeSave installs a hook run at the start of every Save, outside the
// repository lock. Tests use it to hold a cycle inside Persisting.
func (r *MemoryRepository) BeforeSave(fn func(a catalog.Artist)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beforeSave = fn
}

// enter counts the call and returns any injected failure.
// CRITICAL: caller holds r.mu.
func (r *MemoryRepository) enter(method string) error {
	r.calls[method]++
	if err, ok := r.failNext[method]; ok {
		delete(r.failNext, method)
		return err
	}
	if err, ok := r.failAlways[method]; ok {
		return err
	}
	return nil
}
