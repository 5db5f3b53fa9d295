package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nikivdev/flow/internal/config"
	"github.com/nikivdev/flow/internal/logging"
	"github.com/nikivdev/flow/internal/schedule"
)

func newWatchCmd() *cobra.Command {
	var (
		f      buildFlags
		expr   string
		runNow bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild snapshots on a cron schedule",
		Long: "Runs the build on a cron expression until interrupted. Overlapping runs are\n" +
			"skipped. Each run gets a fresh timestamped snapshot unless a name is configured.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadBuildConfig(cmd, &f)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("cron") {
				cfg.Schedule.Cron = expr
			}
			if cfg.Schedule.Cron == "" {
				return errors.New("no schedule: set schedule.cron or --cron")
			}
			ctx, cancel := signalContext()
			defer cancel()
			return runWatch(ctx, cmd, cfg, runNow)
		},
	}

	addConfigFlag(cmd, &f.configPath)
	cmd.Flags().StringVar(&expr, "cron", config.Default().Schedule.Cron, "cron expression (5 fields or @every/@hourly)")
	cmd.Flags().BoolVar(&runNow, "now", false, "build once immediately before waiting for the schedule")
	cmd.Flags().StringVar(&f.root, "root", "", "dataset root (overrides config)")
	cmd.Flags().StringVar(&f.snapshot, "snapshot", "", "snapshot name (default: UTC timestamp per run)")
	cmd.Flags().BoolVar(&f.writeLatest, "write-latest", false, "mirror each snapshot into latest/")
	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, cfg *config.Config, runNow bool) error {
	log := logging.Named("watch")
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Watching with schedule %q (Ctrl-C to stop)\n", cfg.Schedule.Cron)

	job := func(ctx context.Context) error {
		err := runBuild(ctx, out, cfg)
		var ee *exitError
		if errors.As(err, &ee) {
			// a failing gate is reported, not fatal to the loop
			log.Warn().Msg(ee.msg)
			return nil
		}
		return err
	}
	return schedule.Run(ctx, cfg.Schedule.Cron, job, schedule.Options{Logger: log, RunNow: runNow})
}
