package store

import (
	"context"
	"fmt"
	"time"
)

// HistoryEntry is one featured_history row joined with the artist name.
type HistoryEntry struct {
	Seq        int64     `json:"seq"`
	ArtistID   int64     `json:"artist_id"`
	Name       string    `json:"name"`
	FeaturedAt time.Time `json:"featured_at"`
}

// History returns the most recent featured_history rows, newest first.
// A limit <= 0 returns all rows.
//
// Rows are appended by the trg_artists_featured trigger whenever Save moves
// an artist's featured_at, so history reflects every committed rotation.
func (s *Store) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT h.seq, h.artist_id, a.name, h.featured_at
		FROM featured_history h
		JOIN artists a ON a.id = h.artist_id
		ORDER BY h.seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	entries := []HistoryEntry{}
	for rows.Next() {
		var (
			e          HistoryEntry
			featuredAt int64
		)
		if err := rows.Scan(&e.Seq, &e.ArtistID, &e.Name, &featuredAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.FeaturedAt = fromNanos(featuredAt)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}

	return entries, nil
}
