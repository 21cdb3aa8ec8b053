package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/featured/internal/catalog"
	"github.com/roach88/featured/internal/store"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	StoreFlags
}

// SeedFile is the YAML document accepted by the seed command.
type SeedFile struct {
	Artists []SeedArtist `yaml:"artists"`
}

// SeedArtist is one catalog entry in a seed file.
type SeedArtist struct {
	Name       string     `yaml:"name"`
	Bio        string     `yaml:"bio,omitempty"`
	Aliases    []string   `yaml:"aliases,omitempty"`
	FeaturedAt *time.Time `yaml:"featured_at,omitempty"`
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Load artists into the catalog",
		Long: `Insert the artists listed in a YAML file into the catalog.

The file holds a single "artists" list. featured_at is optional and lets
seed data carry earlier rotations:

  artists:
    - name: Nina Simone
      bio: High Priestess of Soul
      aliases: [Eunice Waymon]
    - name: Miles Davis
      featured_at: 2024-01-01T00:00:00Z

Exit codes:
  0 - All artists inserted
  1 - Seed file rejected or an insert failed
  2 - Command error (file not found, database unreadable)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(opts, args[0], cmd)
		},
	}

	addStoreFlags(cmd, &opts.StoreFlags)

	return cmd
}

// ParseSeedFile decodes a seed document. Unknown keys are rejected.
func ParseSeedFile(data []byte) (*SeedFile, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f SeedFile
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	if len(f.Artists) == 0 {
		return nil, errors.New("seed file lists no artists")
	}
	for i, a := range f.Artists {
		if catalog.NormalizeName(a.Name) == "" {
			return nil, fmt.Errorf("artists[%d]: name is required", i)
		}
	}
	return &f, nil
}

func runSeed(opts *SeedOptions, path string, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions, cmd, opts.StoreFlags.overrides())
	if err != nil {
		return err
	}
	setupLogging(opts.RootOptions, cfg, cmd.ErrOrStderr())

	out := newFormatter(opts.RootOptions, cmd)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			_ = out.Error(ErrCodeNotFound, "seed file not found", map[string]string{"file": path})
			return NewExitError(ExitCommandError, fmt.Sprintf("seed file not found: %s", path))
		}
		return WrapExitError(ExitCommandError, "failed to read seed file", err)
	}

	file, err := ParseSeedFile(data)
	if err != nil {
		_ = out.Error(ErrCodeInvalidSeed, err.Error(), map[string]string{"file": path})
		return WrapExitError(ExitFailure, "invalid seed file", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(st)

	inserted, err := insertAll(cmdContext(cmd), st, file.Artists)
	if err != nil {
		_ = out.Error(ErrCodeInvalidSeed, err.Error(), map[string]string{"file": path})
		return WrapExitError(ExitFailure, "seed failed", err)
	}

	return out.Render(inserted, func(w io.Writer) {
		for _, a := range inserted {
			fmt.Fprintln(w, formatArtistLine(a))
		}
		fmt.Fprintf(w, "\nSeeded %d artist(s)\n", len(inserted))
	})
}

// insertAll inserts artists in file order, stopping at the first failure.
// Rows inserted before the failure stay committed.
func insertAll(ctx context.Context, st *store.Store, artists []SeedArtist) ([]catalog.Artist, error) {
	inserted := make([]catalog.Artist, 0, len(artists))
	for i, a := range artists {
		saved, err := st.Insert(ctx, catalog.Artist{
			Name:       a.Name,
			Bio:        a.Bio,
			Aliases:    a.Aliases,
			FeaturedAt: a.FeaturedAt,
		})
		if err != nil {
			return inserted, fmt.Errorf("artists[%d] %q: %w", i, a.Name, err)
		}
		inserted = append(inserted, saved)
	}
	return inserted, nil
}
