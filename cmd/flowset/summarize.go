package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nikivdev/flow/internal/config"
	"github.com/nikivdev/flow/internal/jsonl"
	"github.com/nikivdev/flow/internal/summary"
)

func newSummarizeCmd() *cobra.Command {
	var (
		last   int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "summarize [path]",
		Short: "Summarize a flow RL signal log",
		Long:  "Prints row, event, error class and duration percentile counts for a flow RL signal JSONL file.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Default().Flow.Path
			if len(args) == 1 {
				path = args[0]
			}
			return runSummarize(cmd.OutOrStdout(), path, last, asJSON)
		},
	}

	cmd.Flags().IntVar(&last, "last", 0, "only process the last N lines (0 = all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")
	return cmd
}

func runSummarize(out io.Writer, path string, last int, asJSON bool) error {
	path = config.ExpandHome(path)
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if _, err := os.Stat(path); err != nil {
		return &exitError{code: 1, msg: fmt.Sprintf("missing file: %s", path)}
	}

	res, err := jsonl.ReadTail(path, last)
	if err != nil {
		return err
	}
	s := summary.Summarize(res.Records)
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}
	return summary.Write(out, path, s)
}
