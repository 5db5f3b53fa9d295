package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/nikivdev/flow/internal/config"
	"github.com/nikivdev/flow/internal/db"
	"github.com/nikivdev/flow/internal/models"
)

func newRunsCmd() *cobra.Command {
	var (
		configPath string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded snapshot builds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(configPath)
			if err != nil {
				return err
			}
			if !cfg.Catalog.Enabled {
				return errors.New("catalog is disabled (set catalog.enabled in the config)")
			}
			gdb, err := openCatalog(cfg)
			if err != nil {
				return err
			}
			defer closeCatalog(gdb)
			return runRuns(cmd.OutOrStdout(), gdb, limit)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "max runs to show (0 = all)")
	return cmd
}

func runRuns(out io.Writer, gdb *gorm.DB, limit int) error {
	runs, err := db.ListRuns(gdb, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GENERATED\tSNAPSHOT\tROWS\tTRAIN/VAL/TEST\tOK\tDOMINANT\tRUN")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.GeneratedAt.UTC().Format("2006-01-02 15:04:05"),
			r.Snapshot,
			formatCount(r.DedupedRows),
			splitCounts(r),
			okLabel(r.OK),
			dominant(r),
			r.RunID,
		)
	}
	return w.Flush()
}

func splitCounts(r models.SnapshotRun) string {
	return fmt.Sprintf("%s/%s/%s", formatCount(r.TrainRows), formatCount(r.ValRows), formatCount(r.TestRows))
}

func okLabel(ok bool) string {
	if ok {
		return "yes"
	}
	return "NO"
}

func dominant(r models.SnapshotRun) string {
	if r.DominantEvent == "" {
		return "-"
	}
	return fmt.Sprintf("%s (%s)", r.DominantEvent, formatRatio(r.DominanceRatio))
}
