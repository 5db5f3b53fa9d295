// Package pipeline runs one dataset build: read both producer logs, normalize,
// deduplicate, cap, split, gate and publish a snapshot.
package pipeline

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/nikivdev/flow/internal/config"
	"github.com/nikivdev/flow/internal/dataset"
	"github.com/nikivdev/flow/internal/jsonl"
	"github.com/nikivdev/flow/internal/logging"
	"github.com/nikivdev/flow/internal/normalize"
	"github.com/nikivdev/flow/internal/quality"
	"github.com/nikivdev/flow/internal/sampling"
	"github.com/nikivdev/flow/internal/snapshot"
)

// Options holds the parameters of one build.
type Options struct {
	FlowPath    string
	FlowLast    int
	SeqPath     string
	SeqLast     int
	SeqPatterns []string // nil uses normalize.HighSignalPatterns

	Root        string
	Snapshot    string
	WriteLatest bool

	Seed        int64
	ValPercent  int
	TestPercent int
	MaxPerEvent int
	Thresholds  quality.Thresholds

	RunID  string           // generated when empty
	Now    func() time.Time // defaults to time.Now
	Logger *logging.Logger  // defaults to the "pipeline" logger
}

// OptionsFromConfig maps a loaded configuration onto build options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		FlowPath:    cfg.Flow.Path,
		FlowLast:    cfg.Flow.Last,
		SeqPath:     cfg.Seq.Path,
		SeqLast:     cfg.Seq.Last,
		SeqPatterns: patternsOrNil(cfg.Seq.HighSignalPatterns),
		Root:        cfg.Output.Root,
		Snapshot:    cfg.Output.Snapshot,
		WriteLatest: cfg.Output.WriteLatest,
		Seed:        cfg.Sampling.Seed,
		ValPercent:  cfg.Sampling.ValPercent,
		TestPercent: cfg.Sampling.TestPercent,
		MaxPerEvent: cfg.Sampling.MaxPerEvent,
		Thresholds: quality.Thresholds{
			MinRows:         cfg.Quality.MinRows,
			MinUniqueEvents: cfg.Quality.MinUniqueEvents,
			MaxDominance:    cfg.Quality.MaxDominance,
		},
	}
}

// Result describes a finished build.
type Result struct {
	RunID       string
	Layout      snapshot.Layout
	Manifest    snapshot.Manifest
	Report      quality.Report
	FlowStats   normalize.Stats
	SeqStats    normalize.Stats
	EventCounts []quality.EventCount
	Written     []string
	StartedAt   time.Time
	Duration    time.Duration
}

// OK reports whether the snapshot passed the quality gate.
func (r *Result) OK() bool { return r.Report.OK }

// ExitCode maps a gate verdict to a process exit status.
func ExitCode(report quality.Report, allowQualityFail bool) int {
	if report.OK || allowQualityFail {
		return 0
	}
	return 1
}

// Build runs the pipeline once. Only configuration and I/O problems are
// returned as errors; a failing quality gate is reported in Result.Report and
// the snapshot is still published.
func Build(ctx context.Context, opt Options) (*Result, error) {
	now := time.Now
	if opt.Now != nil {
		now = opt.Now
	}
	log := opt.Logger
	if log == nil {
		log = logging.Named("pipeline")
	}
	started := now()

	name, err := snapshot.ResolveName(opt.Snapshot, started)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	matcher := normalize.DefaultMatcher()
	if opt.SeqPatterns != nil {
		if matcher, err = normalize.CompileMatcher(opt.SeqPatterns); err != nil {
			return nil, fmt.Errorf("pipeline: compile seq patterns: %w", err)
		}
	}
	runID := opt.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	l := log.With().Str("run_id", runID).Str("snapshot", name).Logger()

	flowRaw, err := readSource(ctx, &l, "flow", opt.FlowPath, opt.FlowLast)
	if err != nil {
		return nil, err
	}
	seqRaw, err := readSource(ctx, &l, "seq", opt.SeqPath, opt.SeqLast)
	if err != nil {
		return nil, err
	}

	flowRows, flowStats := normalize.Flow(flowRaw.Records)
	seqRows, seqStats := normalize.Seq(seqRaw.Records, matcher)
	logStats(&l, "flow", flowStats)
	logStats(&l, "seq", seqStats)

	merged := make([]dataset.Row, 0, len(flowRows)+len(seqRows))
	merged = append(merged, flowRows...)
	merged = append(merged, seqRows...)
	deduped := dataset.Dedup(merged)

	maxPerEvent := max(0, opt.MaxPerEvent)
	rows, dropped := sampling.Cap(deduped, maxPerEvent, opt.Seed)
	pct := sampling.NormalizePercentages(opt.ValPercent, opt.TestPercent)
	splits := sampling.Split(rows, pct, opt.Seed)
	l.Info().
		Int("merged", len(merged)).
		Int("deduped", len(deduped)).
		Int("capped", len(rows)).
		Int("train", len(splits.Train)).
		Int("val", len(splits.Val)).
		Int("test", len(splits.Test)).
		Msg("rows partitioned")

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	generatedAt := snapshot.FormatTime(now())
	report := quality.Evaluate(rows, splits, opt.Thresholds, generatedAt)
	eventCounts := quality.CountEvents(rows)

	layout := snapshot.NewLayout(opt.Root, name)
	manifest := snapshot.Manifest{
		SchemaVersion: snapshot.SchemaVersion,
		RunID:         runID,
		GeneratedAt:   generatedAt,
		Snapshot:      name,
		Seed:          opt.Seed,
		Split:         pct,
		Cap:           snapshot.Cap{MaxPerEvent: maxPerEvent, DroppedByEvent: dropped},
		Counts: snapshot.Counts{
			FlowRowsRaw:    len(flowRaw.Records),
			SeqRowsRaw:     len(seqRaw.Records),
			FlowRowsMapped: len(flowRows),
			SeqRowsMapped:  len(seqRows),
			DedupedRows:    len(rows),
			TrainRows:      len(splits.Train),
			ValRows:        len(splits.Val),
			TestRows:       len(splits.Test),
		},
		Paths: layout.Paths(),
	}

	written, err := snapshot.Publish(layout, snapshot.Contents{
		Manifest:    manifest,
		Report:      report,
		Events:      rows,
		Splits:      splits,
		EventCounts: eventCounts,
	}, opt.WriteLatest)
	if err != nil {
		return nil, fmt.Errorf("pipeline: publish: %w", err)
	}

	res := &Result{
		RunID:       runID,
		Layout:      layout,
		Manifest:    manifest,
		Report:      report,
		FlowStats:   flowStats,
		SeqStats:    seqStats,
		EventCounts: eventCounts,
		Written:     written,
		StartedAt:   started,
		Duration:    now().Sub(started),
	}

	ev := l.Info()
	if !report.OK {
		ev = l.Warn().Strs("errors", report.Errors)
	}
	ev.Bool("ok", report.OK).
		Strs("warnings", report.Warnings).
		Int("files", len(written)).
		Dur("took", res.Duration).
		Msg("snapshot published")
	return res, nil
}

func readSource(ctx context.Context, log *logging.Logger, source, path string, last int) (jsonl.ReadResult, error) {
	if err := ctx.Err(); err != nil {
		return jsonl.ReadResult{}, fmt.Errorf("pipeline: %w", err)
	}
	res, err := jsonl.ReadTail(path, max(0, last))
	if err != nil {
		return jsonl.ReadResult{}, fmt.Errorf("pipeline: read %s source: %w", source, err)
	}
	if res.Missing {
		log.Warn().Str("source", source).Str("path", path).Msg("input missing, treating as empty")
		return res, nil
	}
	log.Info().
		Str("source", source).
		Int("lines", res.Lines).
		Int("records", len(res.Records)).
		Int("skipped", res.Skipped).
		Msg("input read")
	return res, nil
}

func logStats(log *logging.Logger, source string, s normalize.Stats) {
	log.Info().
		Str("source", source).
		Int("input", s.Input).
		Int("mapped", s.Mapped).
		Int("sft", s.SFT).
		Msg("normalized")
	if len(s.Dropped) == 0 {
		return
	}
	d := log.Debug().Str("source", source)
	reasons := make([]string, 0, len(s.Dropped))
	for reason := range s.Dropped {
		reasons = append(reasons, reason)
	}
	slices.Sort(reasons)
	for _, reason := range reasons {
		d = d.Int("dropped_"+reason, s.Dropped[reason])
	}
	d.Msg("records dropped")
}

func patternsOrNil(p []string) []string {
	if len(p) == 0 {
		return nil
	}
	return p
}
