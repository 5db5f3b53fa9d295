package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nikivdev/flow/internal/config"
	"github.com/nikivdev/flow/internal/schema"
	"github.com/nikivdev/flow/internal/snapshot"
)

func newVerifyCmd() *cobra.Command {
	var configPath, root string

	cmd := &cobra.Command{
		Use:   "verify <snapshot>",
		Short: "Check a published snapshot against the dataset schemas",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("root") {
				cfg.SetRoot(root)
			}
			return runVerify(cmd.OutOrStdout(), snapshot.NewLayout(cfg.Output.Root, args[0]))
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&root, "root", "", "dataset root (overrides config)")
	return cmd
}

func runVerify(out io.Writer, l snapshot.Layout) error {
	results, err := schema.VerifySnapshot(l)
	if err != nil {
		return err
	}
	for _, r := range results {
		status := "ok"
		if !r.OK() {
			status = "FAIL"
		}
		fmt.Fprintf(out, "%-4s  %s (%s, %s records)\n", status, r.Path, r.Kind, formatCount(r.Records))
		for _, e := range r.Errors {
			fmt.Fprintf(out, "      %s\n", e)
		}
	}
	if failed := schema.Failed(results); failed > 0 {
		return &exitError{code: 1, msg: fmt.Sprintf("%d of %d files failed verification", failed, len(results))}
	}
	fmt.Fprintf(out, "snapshot %s verified (%d files)\n", l.Name, len(results))
	return nil
}
