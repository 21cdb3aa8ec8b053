package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/featured/internal/catalog"
	"github.com/roach88/featured/internal/config"
	"github.com/roach88/featured/internal/rotation"
	"github.com/roach88/featured/internal/store"
)

// Error codes for CLI responses.
const (
	ErrCodeGeneric          = "E001" // Generic/unknown error
	ErrCodeNotFound         = "E005" // File or directory not found
	ErrCodeInvalidConfig    = "E010" // Config file rejected
	ErrCodeNoEligible       = "E201" // Every artist featured this period
	ErrCodeStoreUnavailable = "E202" // Store read or write failed
	ErrCodeNothingFeatured  = "E203" // No artist has been featured yet
	ErrCodeConflict         = "E204" // Concurrent save
	ErrCodeInvalidSeed      = "E205" // Seed file rejected
)

// StoreFlags are the per-command flags that override config file values.
type StoreFlags struct {
	Database string
	Period   string
	Timezone string
	Snapshot string
}

// addStoreFlags registers --db, --period, --timezone and --snapshot.
func addStoreFlags(cmd *cobra.Command, f *StoreFlags) {
	cmd.Flags().StringVar(&f.Database, "db", "", "path to SQLite database (default from config, else featured.db)")
	cmd.Flags().StringVar(&f.Period, "period", "", "rotation period: daily, hourly or a duration")
	cmd.Flags().StringVar(&f.Timezone, "timezone", "", "IANA time zone for day boundaries")
	cmd.Flags().StringVar(&f.Snapshot, "snapshot", "", "write a JSON snapshot here after each rotation")
}

// overrides converts flags into a config layer for Merge.
func (f StoreFlags) overrides() config.Config {
	return config.Config{
		Database:     f.Database,
		Period:       f.Period,
		Timezone:     f.Timezone,
		SnapshotPath: f.Snapshot,
	}
}

// loadConfig layers defaults, the --config file and flag overrides, then
// validates the result. Failures are reported on the command's output as
// E005 (config file missing) or E010 before returning.
func loadConfig(opts *RootOptions, cmd *cobra.Command, overrides config.Config) (config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		code := ErrCodeInvalidConfig
		if errors.Is(err, fs.ErrNotExist) {
			code = ErrCodeNotFound
		}
		_ = newFormatter(opts, cmd).Error(code, err.Error(), map[string]string{"file": opts.Config})
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	cfg = cfg.Merge(overrides)
	if err := cfg.Validate(); err != nil {
		_ = newFormatter(opts, cmd).Error(ErrCodeInvalidConfig, err.Error(), nil)
		return config.Config{}, WrapExitError(ExitCommandError, "invalid config", err)
	}
	return cfg, nil
}

// setupLogging installs a text slog handler on w. --verbose forces debug.
func setupLogging(opts *RootOptions, cfg config.Config, w io.Writer) {
	level := cfg.SlogLevel()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

// openStore opens the configured database.
func openStore(cfg config.Config) (*store.Store, error) {
	slog.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// closeStore closes st and logs any error.
func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// newRotator builds a rotator over st from cfg. A snapshot publisher is
// registered when cfg.SnapshotPath is set.
func newRotator(cfg config.Config, st rotation.Repository, extra ...rotation.Option) (*rotation.Rotator, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}
	period, err := rotation.ParsePeriod(cfg.Period, loc)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}

	opts := []rotation.Option{rotation.WithPeriod(period)}
	if cfg.SnapshotPath != "" {
		opts = append(opts, rotation.WithObserver(rotation.NewSnapshotPublisher(cfg.SnapshotPath)))
	}
	opts = append(opts, extra...)
	return rotation.New(st, opts...), nil
}

// errorCode maps rotation and catalog errors onto CLI error codes.
func errorCode(err error) string {
	switch {
	case rotation.IsNoEligible(err):
		return ErrCodeNoEligible
	case errors.Is(err, catalog.ErrConflict):
		return ErrCodeConflict
	case errors.Is(err, rotation.ErrStoreUnavailable):
		return ErrCodeStoreUnavailable
	default:
		return ErrCodeGeneric
	}
}

// cmdContext returns the command context, or Background when unset.
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// newFormatter builds an OutputFormatter writing to the command's streams.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// formatArtistLine renders an artist for text listings.
func formatArtistLine(a catalog.Artist) string {
	featured := "never featured"
	if a.FeaturedAt != nil {
		featured = "featured " + a.FeaturedAt.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("%4d  %-30s  %s", a.ID, a.Name, featured)
}
