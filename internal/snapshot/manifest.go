package snapshot

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nikivdev/flow/internal/quality"
	"github.com/nikivdev/flow/internal/sampling"
)

// Manifest describes how a snapshot was built. The same document is written
// as summary.json next to the raw events and manifest.json next to the
// prepared splits.
type Manifest struct {
	SchemaVersion string               `json:"schema_version"`
	RunID         string               `json:"run_id"`
	GeneratedAt   string               `json:"generated_at"`
	Snapshot      string               `json:"snapshot"`
	Seed          int64                `json:"seed"`
	Split         sampling.Percentages `json:"split"`
	Cap           Cap                  `json:"cap"`
	Counts        Counts               `json:"counts"`
	Paths         Paths                `json:"paths"`
}

type Cap struct {
	MaxPerEvent    int            `json:"max_per_event"`
	DroppedByEvent map[string]int `json:"dropped_by_event"`
}

type Counts struct {
	FlowRowsRaw    int `json:"flow_rows_raw"`
	SeqRowsRaw     int `json:"seq_rows_raw"`
	FlowRowsMapped int `json:"flow_rows_mapped"`
	SeqRowsMapped  int `json:"seq_rows_mapped"`
	DedupedRows    int `json:"deduped_rows"`
	TrainRows      int `json:"train_rows"`
	ValRows        int `json:"val_rows"`
	TestRows       int `json:"test_rows"`
}

type Paths struct {
	RawEvents   string `json:"raw_events"`
	Train       string `json:"train"`
	Val         string `json:"val"`
	Test        string `json:"test"`
	EventCounts string `json:"event_counts"`
}

// ReadManifest loads a manifest.json or summary.json document.
func ReadManifest(path string) (Manifest, error) {
	var m Manifest
	if err := readDocument(path, &m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// ReadReport loads a validation_report.json document.
func ReadReport(path string) (quality.Report, error) {
	var r quality.Report
	if err := readDocument(path, &r); err != nil {
		return quality.Report{}, err
	}
	return r, nil
}

func readDocument(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("snapshot: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("snapshot: decode %s: %w", path, err)
	}
	return nil
}
