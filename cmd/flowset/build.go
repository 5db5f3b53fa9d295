package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nikivdev/flow/internal/config"
	"github.com/nikivdev/flow/internal/logging"
	"github.com/nikivdev/flow/internal/pipeline"
)

// buildFlags mirrors the build-time config keys. A flag only overrides the
// config when it was set on the command line.
type buildFlags struct {
	configPath       string
	root             string
	snapshot         string
	flowSignals      string
	seqMem           string
	flowLast         int
	seqLast          int
	seed             int64
	valPercent       int
	testPercent      int
	maxPerEvent      int
	minRows          int
	minUniqueEvents  int
	maxDominance     float64
	writeLatest      bool
	allowQualityFail bool
}

func newBuildCmd() *cobra.Command {
	var f buildFlags

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a dataset snapshot",
		Long: "Reads the flow and seq logs, normalizes, deduplicates, caps and splits the\n" +
			"rows, runs the quality gate and publishes a snapshot. Exits 1 when the gate\n" +
			"fails unless --allow-quality-fail is set.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadBuildConfig(cmd, &f)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			return runBuild(ctx, cmd.OutOrStdout(), cfg)
		},
	}

	bindBuildFlags(cmd, &f)
	return cmd
}

func bindBuildFlags(cmd *cobra.Command, f *buildFlags) {
	addConfigFlag(cmd, &f.configPath)
	d := config.Default()
	fl := cmd.Flags()
	fl.StringVar(&f.root, "root", d.Output.Root, "dataset root (snapshots go under <root>/data)")
	fl.StringVar(&f.snapshot, "snapshot", "", "snapshot name (default: UTC timestamp)")
	fl.StringVar(&f.flowSignals, "flow-signals", d.Flow.Path, "path to flow RL signals JSONL")
	fl.StringVar(&f.seqMem, "seq-mem", d.Seq.Path, "path to seq memory JSONL")
	fl.IntVar(&f.flowLast, "flow-last", d.Flow.Last, "trailing flow lines to read (0 = all)")
	fl.IntVar(&f.seqLast, "seq-last", d.Seq.Last, "trailing seq lines to read (0 = all)")
	fl.Int64Var(&f.seed, "seed", d.Sampling.Seed, "split seed")
	fl.IntVar(&f.valPercent, "val-percent", d.Sampling.ValPercent, "validation split percent")
	fl.IntVar(&f.testPercent, "test-percent", d.Sampling.TestPercent, "test split percent")
	fl.IntVar(&f.maxPerEvent, "max-per-event", d.Sampling.MaxPerEvent, "max rows kept per event name (0 = no cap)")
	fl.IntVar(&f.minRows, "min-rows", d.Quality.MinRows, "quality gate: minimum rows")
	fl.IntVar(&f.minUniqueEvents, "min-unique-events", d.Quality.MinUniqueEvents, "quality gate: minimum distinct events")
	fl.Float64Var(&f.maxDominance, "max-dominance", d.Quality.MaxDominance, "quality gate: max share of the top event")
	fl.BoolVar(&f.writeLatest, "write-latest", false, "mirror the snapshot into latest/")
	fl.BoolVar(&f.allowQualityFail, "allow-quality-fail", false, "exit 0 even when the quality gate fails")
}

func addConfigFlag(cmd *cobra.Command, p *string) {
	cmd.Flags().StringVarP(p, "config", "c", "", "path to flowset config file (default: built-in defaults)")
}

// loadBuildConfig loads the config file and applies explicitly set flags.
func loadBuildConfig(cmd *cobra.Command, f *buildFlags) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(f.configPath)
	if err != nil {
		return nil, err
	}
	changed := cmd.Flags().Changed
	if changed("root") {
		cfg.SetRoot(f.root)
	}
	if changed("snapshot") {
		cfg.Output.Snapshot = f.snapshot
	}
	if changed("flow-signals") {
		cfg.Flow.Path = config.ExpandHome(f.flowSignals)
	}
	if changed("seq-mem") {
		cfg.Seq.Path = config.ExpandHome(f.seqMem)
	}
	if changed("flow-last") {
		cfg.Flow.Last = f.flowLast
	}
	if changed("seq-last") {
		cfg.Seq.Last = f.seqLast
	}
	if changed("seed") {
		cfg.Sampling.Seed = f.seed
	}
	if changed("val-percent") {
		cfg.Sampling.ValPercent = f.valPercent
	}
	if changed("test-percent") {
		cfg.Sampling.TestPercent = f.testPercent
	}
	if changed("max-per-event") {
		cfg.Sampling.MaxPerEvent = f.maxPerEvent
	}
	if changed("min-rows") {
		cfg.Quality.MinRows = f.minRows
	}
	if changed("min-unique-events") {
		cfg.Quality.MinUniqueEvents = f.minUniqueEvents
	}
	if changed("max-dominance") {
		cfg.Quality.MaxDominance = f.maxDominance
	}
	if changed("write-latest") {
		cfg.Output.WriteLatest = f.writeLatest
	}
	if changed("allow-quality-fail") {
		cfg.Quality.AllowFail = f.allowQualityFail
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runBuild(ctx context.Context, out io.Writer, cfg *config.Config) error {
	opts := pipeline.OptionsFromConfig(cfg)
	opts.Logger = logging.Named("pipeline")

	res, err := pipeline.Build(ctx, opts)
	if err != nil {
		return err
	}
	printBuild(out, res)
	afterBuild(ctx, cfg, res)

	if code := pipeline.ExitCode(res.Report, cfg.Quality.AllowFail); code != 0 {
		return &exitError{code: code, msg: "quality gate failed"}
	}
	return nil
}

func printBuild(out io.Writer, res *pipeline.Result) {
	c := res.Manifest.Counts
	fmt.Fprintf(out, "Built flow runtime dataset snapshot: %s\n", res.Layout.Name)
	fmt.Fprintf(out, "  flow rows mapped: %s\n", formatCount(c.FlowRowsMapped))
	fmt.Fprintf(out, "  seq rows mapped:  %s\n", formatCount(c.SeqRowsMapped))
	fmt.Fprintf(out, "  deduped rows:     %s\n", formatCount(c.DedupedRows))
	fmt.Fprintf(out, "  train/val/test:   %s/%s/%s\n", formatCount(c.TrainRows), formatCount(c.ValRows), formatCount(c.TestRows))
	fmt.Fprintf(out, "  quality ok:       %t\n", res.Report.OK)
	fmt.Fprintf(out, "  raw:              %s\n", res.Layout.RawDir())
	fmt.Fprintf(out, "  prepared:         %s\n", res.Layout.PreparedDir())
	for _, e := range res.Report.Errors {
		fmt.Fprintf(out, "  error:            %s\n", e)
	}
	for _, w := range res.Report.Warnings {
		fmt.Fprintf(out, "  warning:          %s\n", w)
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
