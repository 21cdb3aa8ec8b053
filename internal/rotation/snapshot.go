package rotation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/natefinch/atomic"
)

// SnapshotPublisher writes the newly featured artist to a JSON file after
// each committed rotation, for consumers that poll a file instead of the API.
//
// The file is replaced atomically, so readers see either the previous
// snapshot or the new one.
type SnapshotPublisher struct {
	path string
}

// NewSnapshotPublisher creates a publisher writing to path.
func NewSnapshotPublisher(path string) *SnapshotPublisher {
	return &SnapshotPublisher{path: path}
}

// snapshot is the on-disk document.
type snapshot struct {
	Key      string   `json:"key"`
	Rotation Rotation `json:"rotation"`
}

// ArtistRotated implements Observer.
func (p *SnapshotPublisher) ArtistRotated(_ context.Context, rot Rotation) error {
	data, err := json.MarshalIndent(snapshot{Key: SlotKey, Rotation: rot}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	data = append(data, '\n')

	if err := atomic.WriteFile(p.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write snapshot %s: %w", p.path, err)
	}
	return nil
}

// ReadSnapshot loads a snapshot written by SnapshotPublisher.
func ReadSnapshot(data []byte) (Rotation, error) {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Rotation{}, fmt.Errorf("parse snapshot: %w", err)
	}
	if s.Key != SlotKey {
		return Rotation{}, fmt.Errorf("parse snapshot: unexpected key %q", s.Key)
	}
	return s.Rotation, nil
}
