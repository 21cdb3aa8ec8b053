package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	StoreFlags
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the catalog",
		Long: `List every artist in id order with when it was last featured.

Example:
  featured list --db ./featured.db
  featured list --db ./featured.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	addStoreFlags(cmd, &opts.StoreFlags)

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
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

	artists, err := st.List(cmdContext(cmd))
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list artists", err)
	}

	out := newFormatter(opts.RootOptions, cmd)
	return out.Render(artists, func(w io.Writer) {
		if len(artists) == 0 {
			fmt.Fprintln(w, "No artists.")
			return
		}
		for _, a := range artists {
			fmt.Fprintln(w, formatArtistLine(a))
		}
		fmt.Fprintf(w, "\n%d artist(s)\n", len(artists))
	})
}
