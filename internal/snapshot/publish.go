package snapshot

import (
	"fmt"

	"github.com/nikivdev/flow/internal/dataset"
	"github.com/nikivdev/flow/internal/jsonl"
	"github.com/nikivdev/flow/internal/quality"
	"github.com/nikivdev/flow/internal/sampling"
)

// Contents is everything a build publishes for one snapshot.
type Contents struct {
	Manifest    Manifest
	Report      quality.Report
	Events      []dataset.Row
	Splits      sampling.Splits
	EventCounts []quality.EventCount
}

// Publish writes c into layout l and, when writeLatest is set, mirrors every
// file into the latest snapshot. Files are replaced whole. It returns the
// paths written, in write order.
func Publish(l Layout, c Contents, writeLatest bool) ([]string, error) {
	if err := ValidateName(l.Name); err != nil {
		return nil, err
	}
	if c.Manifest.Cap.DroppedByEvent == nil {
		c.Manifest.Cap.DroppedByEvent = map[string]int{}
	}
	if c.EventCounts == nil {
		c.EventCounts = quality.CountEvents(c.Events)
	}

	written, err := publishTo(l, c)
	if err != nil {
		return written, err
	}
	if !writeLatest {
		return written, nil
	}
	mirrored, err := publishTo(l.Latest(), c)
	return append(written, mirrored...), err
}

func publishTo(l Layout, c Contents) ([]string, error) {
	steps := []struct {
		path  string
		write func(string) error
	}{
		{l.EventsPath(), rowsWriter(c.Events)},
		{l.TrainPath(), rowsWriter(c.Splits.Train)},
		{l.ValPath(), rowsWriter(c.Splits.Val)},
		{l.TestPath(), rowsWriter(c.Splits.Test)},
		{l.EventCountsPath(), func(p string) error { return jsonl.WriteFile(p, c.EventCounts) }},
		{l.SummaryPath(), documentWriter(c.Manifest)},
		{l.ManifestPath(), documentWriter(c.Manifest)},
		{l.ReportPath(), documentWriter(c.Report)},
	}

	var written []string
	for _, s := range steps {
		if err := s.write(s.path); err != nil {
			return written, fmt.Errorf("snapshot: write %s: %w", s.path, err)
		}
		written = append(written, s.path)
	}
	return written, nil
}

func rowsWriter(rows []dataset.Row) func(string) error {
	return func(p string) error { return jsonl.WriteFile(p, dataset.Records(rows)) }
}

func documentWriter(v any) func(string) error {
	return func(p string) error { return jsonl.WriteDocument(p, v) }
}
