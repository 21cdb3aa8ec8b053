package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	StoreFlags
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past rotations",
		Long: `Show committed rotations, newest first.

Example:
  featured history --db ./featured.db --limit 7`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	addStoreFlags(cmd, &opts.StoreFlags)
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum rows to show (0 for all)")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
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

	entries, err := st.History(cmdContext(cmd), opts.Limit)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read history", err)
	}

	out := newFormatter(opts.RootOptions, cmd)
	return out.Render(entries, func(w io.Writer) {
		if len(entries) == 0 {
			fmt.Fprintln(w, "No rotations yet.")
			return
		}
		for _, e := range entries {
			fmt.Fprintf(w, "%s  %s (id=%d)\n", e.FeaturedAt.UTC().Format(time.RFC3339), e.Name, e.ArtistID)
		}
	})
}
