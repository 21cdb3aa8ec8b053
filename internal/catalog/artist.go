package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrNotFound is returned by store lookups that match no artist.
	ErrNotFound = errors.New("artist not found")

	// ErrConflict is returned when a save races another writer
	// (optimistic version check failed).
	ErrConflict = errors.New("artist was modified concurrently")

	// ErrInvalidArtist is returned when an artist fails validation.
	ErrInvalidArtist = errors.New("invalid artist")
)

// Artist is a featurable catalog entity.
type Artist struct {
	ID         int64      `json:"id" yaml:"id"`
	ArtistID   uuid.UUID  `json:"artist_id" yaml:"artist_id"`
	Name       string     `json:"name" yaml:"name"`
	Bio        string     `json:"bio,omitempty" yaml:"bio,omitempty"`
	Aliases    []string   `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	FeaturedAt *time.Time `json:"featured_at,omitempty" yaml:"featured_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" yaml:"updated_at"`
	Version    int64      `json:"version" yaml:"version"`
}

// NewArtistID returns a fresh time-sortable public identifier.
func NewArtistID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NormalizeName trims surrounding whitespace and applies Unicode NFC.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// Validate checks the fields a store requires before insert or save.
func (a Artist) Validate() error {
	if NormalizeName(a.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidArtist)
	}
	for i, alias := range a.Aliases {
		if NormalizeName(alias) == "" {
			return fmt.Errorf("%w: alias %d is empty", ErrInvalidArtist, i)
		}
	}
	return nil
}

// Featured reports whether the artist has ever been featured.
func (a Artist) Featured() bool {
	return a.FeaturedAt != nil
}

// EligibleAt reports whether the artist can be featured in a rotation
// period starting at periodStart: never featured, or featured strictly
// before the period began.
func (a Artist) EligibleAt(periodStart time.Time) bool {
	return a.FeaturedAt == nil || a.FeaturedAt.Before(periodStart)
}

// Clone returns a deep copy so callers can mutate the result without
// touching a cached snapshot.
func (a Artist) Clone() Artist {
	out := a
	if a.FeaturedAt != nil {
		t := *a.FeaturedAt
		out.FeaturedAt = &t
	}
	if a.Aliases != nil {
		out.Aliases = append([]string(nil), a.Aliases...)
	}
	return out
}

func (a Artist) String() string {
	if a.FeaturedAt == nil {
		return fmt.Sprintf("%s (id=%d, never featured)", a.Name, a.ID)
	}
	return fmt.Sprintf("%s (id=%d, featured %s)", a.Name, a.ID, a.FeaturedAt.UTC().Format(time.RFC3339))
}

// Less orders artists for rotation: never-featured first, then oldest
// FeaturedAt, then ascending ID.
func Less(a, b Artist) bool {
	switch {
	case a.FeaturedAt == nil && b.FeaturedAt != nil:
		return true
	case a.FeaturedAt != nil && b.FeaturedAt == nil:
		return false
	case a.FeaturedAt != nil && b.FeaturedAt != nil && !a.FeaturedAt.Equal(*b.FeaturedAt):
		return a.FeaturedAt.Before(*b.FeaturedAt)
	}
	return a.ID < b.ID
}

// MoreRecent orders artists for the "currently featured" lookup: latest
// FeaturedAt first, never-featured last, ties by ascending ID.
func MoreRecent(a, b Artist) bool {
	switch {
	case a.FeaturedAt != nil && b.FeaturedAt == nil:
		return true
	case a.FeaturedAt == nil && b.FeaturedAt != nil:
		return false
	case a.FeaturedAt != nil && b.FeaturedAt != nil && !a.FeaturedAt.Equal(*b.FeaturedAt):
		return a.FeaturedAt.After(*b.FeaturedAt)
	}
	return a.ID < b.ID
}
