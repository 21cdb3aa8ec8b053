package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/featured/internal/catalog"
	"github.com/roach88/featured/internal/rotation"
)

// CurrentOptions holds flags for the current command.
type CurrentOptions struct {
	*RootOptions
	StoreFlags
}

// CurrentResult is the JSON payload of the current command.
type CurrentResult struct {
	Artist catalog.Artist `json:"artist"`
	Stats  rotation.Stats `json:"stats"`
}

// NewCurrentCommand creates the current command.
func NewCurrentCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CurrentOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "current",
		Short: "Show the featured artist",
		Long: `Show the artist of the day: the most recently featured artist.

Exit codes:
  0 - Printed the featured artist
  1 - No artist has been featured yet, or the store failed
  2 - Command error

Example:
  featured current --db ./featured.db
  featured current --db ./featured.db -v   # include cache counters`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCurrent(opts, cmd)
		},
	}

	addStoreFlags(cmd, &opts.StoreFlags)

	return cmd
}

func runCurrent(opts *CurrentOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions, cmd, opts.StoreFlags.overrides())
	if err != nil {
		return err
	}
	setupLogging(opts.RootOptions, cfg, cmd.ErrOrStderr())

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(st)

	rot, err := newRotator(cfg, st)
	if err != nil {
		return err
	}

	out := newFormatter(opts.RootOptions, cmd)
	artist, ok, err := rot.Featured(cmdContext(cmd))
	if err != nil {
		_ = out.Error(errorCode(err), err.Error(), nil)
		return WrapExitError(ExitFailure, "featured lookup failed", err)
	}
	if !ok {
		_ = out.Error(ErrCodeNothingFeatured, "artist of the day not found", nil)
		return NewExitError(ExitFailure, "artist of the day not found")
	}

	stats := rot.Stats()
	return out.Render(CurrentResult{Artist: artist, Stats: stats}, func(w io.Writer) {
		fmt.Fprintf(w, "Artist of the day: %s\n", artist)
		if artist.Bio != "" {
			fmt.Fprintf(w, "  %s\n", artist.Bio)
		}
		out.VerboseLog("cache: hits=%d misses=%d fills=%d", stats.Hits, stats.Misses, stats.Fills)
	})
}
