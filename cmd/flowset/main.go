package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nikivdev/flow/internal/logging"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// exitError carries a non-zero exit status that is not a usage problem.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func newRootCmd() *cobra.Command {
	var logLevel, logFormat string

	cmd := &cobra.Command{
		Use:   "flowset",
		Short: "Curate runtime telemetry into training dataset snapshots",
		Long: "Flowset turns flow RL signals and seq memory logs into reproducible,\n" +
			"quality-gated SFT/RL dataset snapshots.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opt := logging.FromEnv()
			if cmd.Flags().Changed("log-level") {
				opt.Level = logLevel
			}
			if cmd.Flags().Changed("log-format") {
				opt.Format = logFormat
			}
			opt.Writer = cmd.ErrOrStderr()
			logging.Init(opt)
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error, off)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", logging.FormatAuto, "log format (auto, console, json)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newBuildCmd())
	cmd.AddCommand(newVerifyCmd())
	cmd.AddCommand(newSummarizeCmd())
	cmd.AddCommand(newRunsCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newDoctorCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "flowset %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	err := cmd.Execute()
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.msg != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), ee.msg)
		}
		return ee.code
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
	return 1
}

func main() {
	os.Exit(execute(newRootCmd()))
}
