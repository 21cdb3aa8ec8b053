package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/featured/internal/catalog"
)

const artistColumns = `id, artist_id, name, bio, aliases, featured_at, created_at, updated_at, version`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// FindNextEligible returns the artist that should be featured next in the
// period starting at periodStart: never featured, or featured strictly before
// periodStart. Never-featured artists come first, then the oldest featured_at,
// then the lowest id.
//
// Returns catalog.ErrNotFound if every artist was already featured in the period
// or the catalog is empty.
func (s *Store) FindNextEligible(ctx context.Context, periodStart time.Time) (catalog.Artist, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+artistColumns+`
		FROM artists
		WHERE featured_at IS NULL OR featured_at < ?
		ORDER BY featured_at IS NOT NULL ASC, featured_at ASC, id ASC
		LIMIT 1
	`, toNanos(periodStart))

	a, err := scanArtist(row)
	if err != nil {
		return catalog.Artist{}, fmt.Errorf("find next eligible: %w", err)
	}
	return a, nil
}

// FindMostRecentlyFeatured returns the artist with the latest featured_at,
// ties broken by lowest id. This query is not bounded by a rotation period.
//
// Returns catalog.ErrNotFound if no artist has ever been featured.
func (s *Store) FindMostRecentlyFeatured(ctx context.Context) (catalog.Artist, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+artistColumns+`
		FROM artists
		WHERE featured_at IS NOT NULL
		ORDER BY featured_at DESC, id ASC
		LIMIT 1
	`)

	a, err := scanArtist(row)
	if err != nil {
		return catalog.Artist{}, fmt.Errorf("find most recently featured: %w", err)
	}
	return a, nil
}

// Get retrieves a single artist by store id.
// Returns catalog.ErrNotFound if not found.
func (s *Store) Get(ctx context.Context, id int64) (catalog.Artist, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+artistColumns+`
		FROM artists
		WHERE id = ?
	`, id)

	a, err := scanArtist(row)
	if err != nil {
		return catalog.Artist{}, fmt.Errorf("get artist %d: %w", id, err)
	}
	return a, nil
}

// GetByArtistID retrieves a single artist by public id.
// Returns catalog.ErrNotFound if not found.
func (s *Store) GetByArtistID(ctx context.Context, artistID uuid.UUID) (catalog.Artist, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+artistColumns+`
		FROM artists
		WHERE artist_id = ?
	`, artistID.String())

	a, err := scanArtist(row)
	if err != nil {
		return catalog.Artist{}, fmt.Errorf("get artist %s: %w", artistID, err)
	}
	return a, nil
}

// List returns all artists ordered by id.
// Returns an empty slice (not nil) for an empty catalog.
func (s *Store) List(ctx context.Context) ([]catalog.Artist, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+artistColumns+`
		FROM artists
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query artists: %w", err)
	}
	defer rows.Close()

	artists := []catalog.Artist{}
	for rows.Next() {
		a, err := scanArtist(rows)
		if err != nil {
			return nil, err
		}
		artists = append(artists, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artists: %w", err)
	}

	return artists, nil
}

// Count returns the number of artists in the catalog.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM artists`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count artists: %w", err)
	}
	return n, nil
}

// scanArtist reads one artist row. sql.ErrNoRows becomes catalog.ErrNotFound.
func scanArtist(row rowScanner) (catalog.Artist, error) {
	var (
		a          catalog.Artist
		artistID   string
		aliases    string
		featuredAt sql.NullInt64
		createdAt  int64
		updatedAt  int64
	)

	err := row.Scan(
		&a.ID,
		&artistID,
		&a.Name,
		&a.Bio,
		&aliases,
		&featuredAt,
		&createdAt,
		&updatedAt,
		&a.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Artist{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Artist{}, fmt.Errorf("scan artist: %w", err)
	}

	a.ArtistID, err = uuid.Parse(artistID)
	if err != nil {
		return catalog.Artist{}, fmt.Errorf("scan artist %d: parse artist_id: %w", a.ID, err)
	}

	a.Aliases, err = unmarshalAliases(aliases)
	if err != nil {
		return catalog.Artist{}, fmt.Errorf("scan artist %d: %w", a.ID, err)
	}

	a.FeaturedAt = optionalTime(featuredAt)
	a.CreatedAt = fromNanos(createdAt)
	a.UpdatedAt = fromNanos(updatedAt)

	return a, nil
}
