package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/featured/internal/config"
	"github.com/roach88/featured/internal/rotation"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	StoreFlags
	Schedule      string
	RotateOnStart bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the rotation scheduler",
		Long: `Start the rotation daemon.

Opens the SQLite database (creating it if it doesn't exist) and rotates the
featured artist at every activation of the cron schedule. Ticks that find a
rotation still in flight are skipped. Stops on SIGINT or SIGTERM.

Schedules accept an optional leading seconds field and descriptors:
  "0 0 0 * * *"     daily at midnight (default)
  "*/4 * * * * ?"   every 4 seconds
  "@hourly"

Example:
  featured run --db ./featured.db
  featured run --config featured.yaml --rotate-on-start --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScheduler(opts, cmd)
		},
	}

	addStoreFlags(cmd, &opts.StoreFlags)
	cmd.Flags().StringVar(&opts.Schedule, "schedule", "", "cron expression (default from config)")
	cmd.Flags().BoolVar(&opts.RotateOnStart, "rotate-on-start", false, "rotate at startup when nothing is featured yet")

	return cmd
}

func runScheduler(opts *RunOptions, cmd *cobra.Command) error {
	overrides := opts.StoreFlags.overrides()
	overrides.Schedule = opts.Schedule

	cfg, err := loadConfig(opts.RootOptions, cmd, overrides)
	if err != nil {
		return err
	}
	// An explicit --rotate-on-start=false overrides the config file.
	if cmd.Flags().Changed("rotate-on-start") {
		cfg.RotateOnStart = opts.RotateOnStart
	}
	setupLogging(opts.RootOptions, cfg, cmd.ErrOrStderr())

	schedule, err := rotation.ParseSchedule(cfg.Schedule)
	if err != nil {
		_ = newFormatter(opts.RootOptions, cmd).Error(ErrCodeInvalidConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid config", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(st)
	slog.Info("database ready", "path", cfg.Database)

	rot, err := newRotator(cfg, st)
	if err != nil {
		return err
	}
	loc, _ := cfg.Location()
	sched := rotation.NewScheduler(rot, schedule,
		rotation.WithLocation(loc),
		rotation.WithRotateOnStart(cfg.RotateOnStart),
	)

	// Use the command's context if set (tests), else Background
	ctx, cancel := context.WithCancel(cmdContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	logStartup(cfg)
	fmt.Fprintf(cmd.OutOrStdout(), "Scheduler started (%s, period %s). Press Ctrl-C to stop.\n",
		cfg.Schedule, rot.Period())

	if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "scheduler error", err)
	}

	stats := rot.Stats()
	slog.Info("scheduler stopped gracefully",
		"ticks", sched.Ticks(),
		"rotations", stats.Rotations,
		"skipped", stats.Skipped,
		"failures", stats.Failures,
	)
	return nil
}

func logStartup(cfg config.Config) {
	slog.Info("scheduler starting",
		"db", cfg.Database,
		"schedule", cfg.Schedule,
		"period", cfg.Period,
		"timezone", cfg.Timezone,
		"rotate_on_start", cfg.RotateOnStart,
		"snapshot", cfg.SnapshotPath,
	)
}
