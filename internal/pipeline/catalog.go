package pipeline

import (
	"encoding/json"
	"time"

	"github.com/nikivdev/flow/internal/models"
)

// CatalogRun converts a build result into its catalog row. Errors and
// warnings are stored as JSON arrays.
func (r *Result) CatalogRun() *models.SnapshotRun {
	generated, err := time.Parse(time.RFC3339Nano, r.Manifest.GeneratedAt)
	if err != nil {
		generated = r.StartedAt
	}
	rep := r.Report
	run := &models.SnapshotRun{
		RunID:          r.RunID,
		Snapshot:       r.Manifest.Snapshot,
		GeneratedAt:    generated.UTC(),
		Seed:           r.Manifest.Seed,
		ValPercent:     r.Manifest.Split.Val,
		TestPercent:    r.Manifest.Split.Test,
		MaxPerEvent:    r.Manifest.Cap.MaxPerEvent,
		FlowRowsRaw:    r.Manifest.Counts.FlowRowsRaw,
		SeqRowsRaw:     r.Manifest.Counts.SeqRowsRaw,
		FlowRowsMapped: r.Manifest.Counts.FlowRowsMapped,
		SeqRowsMapped:  r.Manifest.Counts.SeqRowsMapped,
		DedupedRows:    r.Manifest.Counts.DedupedRows,
		TrainRows:      r.Manifest.Counts.TrainRows,
		ValRows:        r.Manifest.Counts.ValRows,
		TestRows:       r.Manifest.Counts.TestRows,
		UniqueEvents:   rep.Counts.UniqueEvents,
		SuccessRate:    rep.Counts.SuccessRate,
		DominantEvent:  rep.Dominance.EventName,
		DominanceRatio: rep.Dominance.Ratio,
		OK:             rep.OK,
		Errors:         jsonList(rep.Errors),
		Warnings:       jsonList(rep.Warnings),
		RawDir:         r.Layout.RawDir(),
		PreparedDir:    r.Layout.PreparedDir(),
		DurationMs:     r.Duration.Milliseconds(),
	}

	dropped := r.Manifest.Cap.DroppedByEvent
	for _, ec := range r.EventCounts {
		run.Events = append(run.Events, models.SnapshotEvent{
			RunID:     r.RunID,
			EventName: ec.EventName,
			Count:     ec.Count,
			Dropped:   dropped[ec.EventName],
		})
	}
	return run
}

func jsonList(items []string) string {
	if items == nil {
		items = []string{}
	}
	data, _ := json.Marshal(items)
	return string(data)
}
