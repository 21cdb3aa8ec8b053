// Package rotation implements the featured-artist rotation and its
// single-slot read cache.
//
// The package has four parts:
//
// Selector: SelectNext picks the next artist to feature from a candidate set.
// Candidates featured at or after the current period start are ineligible;
// the rest are ordered never-featured first, then oldest featured_at, then
// lowest id. Every artist is featured once before any artist repeats.
//
// Slot: a process-wide cache holding the current featured artist under the
// fixed key SlotKey. Every write bumps a generation counter, and look-aside
// fills are conditional on the generation they started from, so a fill that
// raced a rotation never caches the pre-rotation artist.
//
// Rotator: runs one rotation cycle at a time through the states
//
//	Idle -> Selecting -> Persisting -> CacheInvalidated -> CacheRepopulated -> Idle
//
// The store write happens first. Cache invalidation and repopulation follow
// and are best-effort: if either fails, the next read rehydrates from the
// store. A cycle that fails before Persisting completes leaves both store and
// cache untouched.
//
// Scheduler: fires TryRotate on a cron schedule. Ticks that arrive while a
// cycle is in flight are skipped, never run concurrently.
//
// CONCURRENCY:
//   - Featured(): safe from any goroutine, never waits for a rotation cycle
//   - TriggerRotation(): safe from any goroutine, blocks behind an in-flight cycle
//   - TryRotate(): safe from any goroutine, returns immediately if a cycle is in flight
package rotation
