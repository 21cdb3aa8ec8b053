package rotation

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/featured/internal/catalog"
)

// SelectNext returns the artist to feature in the period starting at
// periodStart.
//
// Candidates featured at or after periodStart are skipped. The remaining
// artists are ordered by catalog.Less (never featured first, oldest
// featured_at next, lowest id last) and the first one wins.
//
// Returns ErrNoEligibleArtist if no candidate is eligible.
func SelectNext(candidates []catalog.Artist, periodStart time.Time) (catalog.Artist, error) {
	var (
		best  catalog.Artist
		found bool
	)
	for _, a := range candidates {
		if !a.EligibleAt(periodStart) {
			continue
		}
		if !found || catalog.Less(a, best) {
			best = a
			found = true
		}
	}
	if !found {
		return catalog.Artist{}, ErrNoEligibleArtist
	}
	return best.Clone(), nil
}

// Period is the rotation window an artist can be featured in at most once.
type Period struct {
	// Length of one period. 24h aligns to local midnight. Lengths that
	// divide a day evenly (hourly, 90m) count from local midnight, so they
	// line up with local cron ticks in half-hour zones. Other lengths
	// truncate to a multiple of Length since the zero time.
	Length time.Duration

	// Location for day alignment. Nil means UTC.
	Location *time.Location
}

// Daily returns a calendar-day period in loc.
func Daily(loc *time.Location) Period {
	return Period{Length: 24 * time.Hour, Location: loc}
}

// Start returns the start of the period containing now.
func (p Period) Start(now time.Time) time.Time {
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	t := now.In(loc)

	switch {
	case p.Length == 24*time.Hour:
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	case p.Length <= 0:
		return t
	case (24*time.Hour)%p.Length == 0:
		y, m, d := t.Date()
		midnight := time.Date(y, m, d, 0, 0, 0, 0, loc)
		return midnight.Add(t.Sub(midnight).Truncate(p.Length))
	default:
		return t.Truncate(p.Length)
	}
}

func (p Period) String() string {
	if p.Length == 24*time.Hour {
		return "daily"
	}
	return p.Length.String()
}

// ParsePeriod accepts "daily", "hourly" or a Go duration string.
func ParsePeriod(s string, loc *time.Location) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "daily":
		return Daily(loc), nil
	case "hourly":
		return Period{Length: time.Hour, Location: loc}, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return Period{}, fmt.Errorf("invalid period %q: %w", s, err)
	}
	if d <= 0 {
		return Period{}, fmt.Errorf("invalid period %q: must be positive", s)
	}
	return Period{Length: d, Location: loc}, nil
}
