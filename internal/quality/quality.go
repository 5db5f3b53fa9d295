// Package quality implements the dataset quality gate.
package quality

import (
	"fmt"
	"sort"

	"github.com/nikivdev/flow/internal/dataset"
	"github.com/nikivdev/flow/internal/reward"
	"github.com/nikivdev/flow/internal/sampling"
)

// SchemaVersion tags validation reports.
const SchemaVersion = "flow_runtime_validation_v1"

// Success-rate band outside of which a warning is raised.
const (
	MinSuccessRate = 0.05
	MaxSuccessRate = 0.98
)

// Thresholds configure the hard failure conditions of the gate.
type Thresholds struct {
	MinRows         int
	MinUniqueEvents int
	MaxDominance    float64
}

// Normalize clamps thresholds into their valid ranges.
func (t Thresholds) Normalize() Thresholds {
	return Thresholds{
		MinRows:         max(1, t.MinRows),
		MinUniqueEvents: max(1, t.MinUniqueEvents),
		MaxDominance:    max(0.0, min(t.MaxDominance, 1.0)),
	}
}

// Counts summarizes the evaluated row set.
type Counts struct {
	Rows         int            `json:"rows"`
	TrainRows    int            `json:"train_rows"`
	ValRows      int            `json:"val_rows"`
	TestRows     int            `json:"test_rows"`
	UniqueEvents int            `json:"unique_events"`
	SuccessRate  float64        `json:"success_rate"`
	RecordTypes  map[string]int `json:"record_types"`
	SFTOnly      bool           `json:"sft_only"`
}

// Dominance names the most frequent event and its share of all rows.
type Dominance struct {
	EventName string  `json:"event_name"`
	Ratio     float64 `json:"ratio"`
}

// Report is the gate verdict for one snapshot.
type Report struct {
	SchemaVersion string    `json:"schema_version"`
	GeneratedAt   string    `json:"generated_at"`
	OK            bool      `json:"ok"`
	Counts        Counts    `json:"counts"`
	Dominance     Dominance `json:"dominance"`
	Errors        []string  `json:"errors"`
	Warnings      []string  `json:"warnings"`
}

// EventCount is one entry of an event frequency index.
type EventCount struct {
	EventName string `json:"event_name"`
	Count     int    `json:"count"`
}

// CountEvents returns event frequencies sorted by count descending. Ties
// keep first-occurrence order.
func CountEvents(rows []dataset.Row) []EventCount {
	index := map[string]int{}
	var out []EventCount
	for _, r := range rows {
		i, ok := index[r.EventName]
		if !ok {
			i = len(out)
			index[r.EventName] = i
			out = append(out, EventCount{EventName: r.EventName})
		}
		out[i].Count++
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// Evaluate runs the gate over rows and their split. generatedAt is recorded
// verbatim.
func Evaluate(rows []dataset.Row, splits sampling.Splits, th Thresholds, generatedAt string) Report {
	th = th.Normalize()
	errs := []string{}
	warnings := []string{}

	total := len(rows)
	if total < th.MinRows {
		errs = append(errs, fmt.Sprintf("rows below threshold: %d < %d", total, th.MinRows))
	}
	if len(splits.Train) == 0 {
		errs = append(errs, "train split is empty")
	}

	events := CountEvents(rows)
	recordTypes := map[string]int{}
	success := 0
	for _, r := range rows {
		recordTypes[r.RecordType()]++
		if r.Success {
			success++
		}
	}
	sftOnly := total > 0 && len(recordTypes) == 1 && recordTypes[dataset.RecordTypeSFT] == total

	uniqueGate := th.MinUniqueEvents
	if sftOnly {
		uniqueGate = 1
	}
	if len(events) < uniqueGate {
		errs = append(errs, fmt.Sprintf("unique event names below threshold: %d < %d", len(events), uniqueGate))
	}

	var dom Dominance
	if len(events) > 0 && total > 0 {
		dom.EventName = events[0].EventName
		ratio := float64(events[0].Count) / float64(total)
		gate := th.MaxDominance
		if sftOnly {
			gate = 1.0
		}
		if ratio > gate {
			errs = append(errs, fmt.Sprintf("event dominance too high: %s=%.3f > %.3f", dom.EventName, ratio, gate))
		}
		dom.Ratio = reward.Round(ratio)
	}

	rate := 0.0
	if total > 0 {
		rate = float64(success) / float64(total)
		if rate < MinSuccessRate || rate > MaxSuccessRate {
			warnings = append(warnings, fmt.Sprintf("success rate skewed: %.3f", rate))
		}
	}

	return Report{
		SchemaVersion: SchemaVersion,
		GeneratedAt:   generatedAt,
		OK:            len(errs) == 0,
		Counts: Counts{
			Rows:         total,
			TrainRows:    len(splits.Train),
			ValRows:      len(splits.Val),
			TestRows:     len(splits.Test),
			UniqueEvents: len(events),
			SuccessRate:  reward.Round(rate),
			RecordTypes:  recordTypes,
			SFTOnly:      sftOnly,
		},
		Dominance: dom,
		Errors:    errs,
		Warnings:  warnings,
	}
}
