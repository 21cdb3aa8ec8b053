package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/roach88/featured/internal/catalog"
)

// Insert adds a new artist and returns it with its store-assigned ID.
//
// The name is normalised before insert. A zero ArtistID is replaced with a
// fresh UUIDv7. FeaturedAt is kept as given so seed data can carry prior
// rotation state; inserts do not append to featured history.
func (s *Store) Insert(ctx context.Context, a catalog.Artist) (catalog.Artist, error) {
	if err := a.Validate(); err != nil {
		return catalog.Artist{}, fmt.Errorf("insert artist: %w", err)
	}

	a = normalize(a)
	if a.ArtistID == uuid.Nil {
		a.ArtistID = catalog.NewArtistID()
	}
	now := canonicalTime(s.now())
	a.CreatedAt = now
	a.UpdatedAt = now
	a.Version = 0

	aliasesJSON, err := marshalAliases(a.Aliases)
	if err != nil {
		return catalog.Artist{}, fmt.Errorf("insert artist: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO artists
		(artist_id, name, bio, aliases, featured_at, created_at, updated_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ArtistID.String(),
		a.Name,
		a.Bio,
		aliasesJSON,
		nullableNanos(a.FeaturedAt),
		toNanos(a.CreatedAt),
		toNanos(a.UpdatedAt),
		a.Version,
	)
	if err != nil {
		return catalog.Artist{}, fmt.Errorf("insert artist %q: %w", a.Name, mapConstraintError(err))
	}

	a.ID, err = result.LastInsertId()
	if err != nil {
		return catalog.Artist{}, fmt.Errorf("insert artist: last insert id: %w", err)
	}

	return a, nil
}

// Save persists a mutated artist in a single UPDATE guarded by its version.
//
// Returns catalog.ErrConflict if the row was saved by someone else since a was
// read, and catalog.ErrNotFound if the row no longer exists. On success the
// returned artist carries the incremented version and new updated_at.
func (s *Store) Save(ctx context.Context, a catalog.Artist) (catalog.Artist, error) {
	if err := a.Validate(); err != nil {
		return catalog.Artist{}, fmt.Errorf("save artist %d: %w", a.ID, err)
	}

	a = normalize(a)
	a.UpdatedAt = canonicalTime(s.now())

	aliasesJSON, err := marshalAliases(a.Aliases)
	if err != nil {
		return catalog.Artist{}, fmt.Errorf("save artist %d: %w", a.ID, err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE artists
		SET name = ?, bio = ?, aliases = ?, featured_at = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?
	`,
		a.Name,
		a.Bio,
		aliasesJSON,
		nullableNanos(a.FeaturedAt),
		toNanos(a.UpdatedAt),
		a.ID,
		a.Version,
	)
	if err != nil {
		return catalog.Artist{}, fmt.Errorf("save artist %d: %w", a.ID, mapConstraintError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return catalog.Artist{}, fmt.Errorf("save artist %d: rows affected: %w", a.ID, err)
	}

	if rowsAffected == 0 {
		// Either the row is gone or the version moved on
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM artists WHERE id = ?`, a.ID).Scan(&exists)
		if err != nil {
			return catalog.Artist{}, fmt.Errorf("save artist %d: %w", a.ID, err)
		}
		if exists == 0 {
			return catalog.Artist{}, fmt.Errorf("save artist %d: %w", a.ID, catalog.ErrNotFound)
		}
		return catalog.Artist{}, fmt.Errorf("save artist %d (version %d): %w", a.ID, a.Version, catalog.ErrConflict)
	}

	a.Version++
	return a, nil
}

// normalize applies the catalog's canonical forms before a write.
func normalize(a catalog.Artist) catalog.Artist {
	a = a.Clone()
	a.Name = catalog.NormalizeName(a.Name)
	for i, alias := range a.Aliases {
		a.Aliases[i] = catalog.NormalizeName(alias)
	}
	if a.FeaturedAt != nil {
		t := canonicalTime(*a.FeaturedAt)
		a.FeaturedAt = &t
	}
	return a
}

// mapConstraintError turns a unique-name violation into catalog.ErrInvalidArtist.
func mapConstraintError(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%w: name or artist_id already exists (%v)", catalog.ErrInvalidArtist, err)
	}
	return err
}
