package rotation

import "fmt"

// State is a rotation cycle state.
type State int32

const (
	// StateIdle waits for the next tick or manual trigger.
	StateIdle State = iota
	// StateSelecting queries the store for the next eligible artist.
	StateSelecting
	// StatePersisting writes featured_at for the chosen artist.
	StatePersisting
	// StateCacheInvalidated has cleared the featured slot.
	StateCacheInvalidated
	// StateCacheRepopulated has written the new artist to the slot.
	StateCacheRepopulated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateSelecting:
		return "Selecting"
	case StatePersisting:
		return "Persisting"
	case StateCacheInvalidated:
		return "CacheInvalidated"
	case StateCacheRepopulated:
		return "CacheRepopulated"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}
