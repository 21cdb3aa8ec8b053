package rotation

import (
	"sync"

	"github.com/roach88/featured/internal/catalog"
)

// SlotKey is the fixed key of the featured slot.
const SlotKey = "artist-of-the-day"

// Slot holds the current featured artist.
//
// Every successful Store or Invalidate bumps the generation. StoreIfCurrent
// writes only if the generation still matches the one the caller observed
// on its miss, which keeps a slow look-aside fill from resurrecting a value
// a rotation already replaced.
type Slot interface {
	// Load returns the cached artist, the current generation and whether
	// the slot holds a value.
	Load() (catalog.Artist, uint64, bool)

	// Store unconditionally replaces the slot value.
	Store(a catalog.Artist) error

	// StoreIfCurrent fills the slot only if the generation is still gen.
	StoreIfCurrent(gen uint64, a catalog.Artist) (bool, error)

	// Invalidate empties the slot.
	Invalidate() error
}

// MemorySlot is the in-process Slot.
//
// Thread-safety: all methods are safe for concurrent use. Readers share
// an RWMutex read lock; writers hold the write lock only for the swap.
type MemorySlot struct {
	mu    sync.RWMutex
	value catalog.Artist
	ok    bool
	gen   uint64
}

// NewMemorySlot returns an empty slot at generation 0.
func NewMemorySlot() *MemorySlot {
	return &MemorySlot{}
}

// Load returns a copy of the cached artist.
func (s *MemorySlot) Load() (catalog.Artist, uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ok {
		return catalog.Artist{}, s.gen, false
	}
	return s.value.Clone(), s.gen, true
}

// Store replaces the slot value.
func (s *MemorySlot) Store(a catalog.Artist) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = a.Clone()
	s.ok = true
	s.gen++
	return nil
}

// StoreIfCurrent fills the slot if no write happened since gen was observed.
func (s *MemorySlot) StoreIfCurrent(gen uint64, a catalog.Artist) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false, nil
	}
	s.value = a.Clone()
	s.ok = true
	s.gen++
	return true, nil
}

// Invalidate empties the slot.
func (s *MemorySlot) Invalidate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = catalog.Artist{}
	s.ok = false
	s.gen++
	return nil
}
