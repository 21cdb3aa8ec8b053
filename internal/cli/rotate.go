package cli

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/roach88/featured/internal/rotation"
)

// RotateOptions holds flags for the rotate command.
type RotateOptions struct {
	*RootOptions
	StoreFlags
}

// NewRotateCommand creates the rotate command.
func NewRotateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RotateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Run one rotation cycle now",
		Long: `Run a single rotation cycle against the database and print the newly
featured artist.

Exit codes:
  0 - An artist was featured
  1 - No eligible artist (everyone was featured this period) or store failure
  2 - Command error (invalid config, database unreadable)

Example:
  featured rotate --db ./featured.db
  featured rotate --db ./featured.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRotate(opts, cmd)
		},
	}

	addStoreFlags(cmd, &opts.StoreFlags)

	return cmd
}

// cycleRecorder captures the committed rotation for output.
type cycleRecorder struct {
	mu  sync.Mutex
	rot rotation.Rotation
}

func (r *cycleRecorder) ArtistRotated(_ context.Context, rot rotation.Rotation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rot = rot
	return nil
}

func runRotate(opts *RotateOptions, cmd *cobra.Command) error {
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

	rec := &cycleRecorder{}
	rot, err := newRotator(cfg, st, rotation.WithObserver(rec))
	if err != nil {
		return err
	}

	out := newFormatter(opts.RootOptions, cmd)
	artist, err := rot.TriggerRotation(cmdContext(cmd))
	if err != nil {
		_ = out.Error(errorCode(err), err.Error(), nil)
		if rotation.IsNoEligible(err) {
			return WrapExitError(ExitFailure, "no eligible artist", err)
		}
		return WrapExitError(ExitFailure, "rotation failed", err)
	}

	return out.Rotated(rec.rot.CycleID, rec.rot, func(w io.Writer) {
		fmt.Fprintf(w, "Featured: %s\n", artist)
		out.VerboseLog("cycle %s, period starting %s", rec.rot.CycleID, rec.rot.PeriodStart)
	})
}
