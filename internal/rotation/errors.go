package rotation

import (
	"errors"
	"fmt"
)

var (
	// ErrNoEligibleArtist means every artist was already featured in the
	// current period, or the catalog is empty. Nothing was mutated.
	ErrNoEligibleArtist = errors.New("no eligible artists found for rotation")

	// ErrStoreUnavailable wraps any store failure while selecting,
	// persisting or rehydrating.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrCacheWrite marks a failed slot write. Never returned from a cycle;
	// reads fall back to the store instead.
	ErrCacheWrite = errors.New("featured cache write failed")
)

// CycleError records where a rotation cycle aborted.
type CycleError struct {
	// CycleID correlates log lines for one cycle.
	CycleID string

	// State is the state the cycle was in when it failed.
	State State

	// Err is the cause.
	Err error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("rotation cycle %s aborted in %s: %v", e.CycleID, e.State, e.Err)
}

func (e *CycleError) Unwrap() error {
	return e.Err
}

// IsNoEligible returns true if err is, or wraps, ErrNoEligibleArtist.
func IsNoEligible(err error) bool {
	return errors.Is(err, ErrNoEligibleArtist)
}

// AbortedIn returns the state a failed cycle stopped in.
// Uses errors.As to handle wrapped errors.
func AbortedIn(err error) (State, bool) {
	var ce *CycleError
	if errors.As(err, &ce) {
		return ce.State, true
	}
	return StateIdle, false
}
