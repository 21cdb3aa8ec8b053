package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/roach88/featured/internal/catalog"
)

// baseTime is the fixed wall clock used by store tests.
var baseTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// steppingClock returns baseTime plus one second per call.
type steppingClock struct {
	mu sync.Mutex
	n  int
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return baseTime.Add(time.Duration(c.n) * time.Second)
}

// createTestStore creates a new temp-dir store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	clock := &steppingClock{}
	s, err := Open(path, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// insertTestArtist inserts an artist with the given name and optional featured time.
func insertTestArtist(t *testing.T, s *Store, name string, featuredAt *time.Time) catalog.Artist {
	t.Helper()
	a, err := s.Insert(context.Background(), catalog.Artist{Name: name, FeaturedAt: featuredAt})
	if err != nil {
		t.Fatalf("Insert(%q) failed: %v", name, err)
	}
	return a
}

func timePtr(t time.Time) *time.Time { return &t }
