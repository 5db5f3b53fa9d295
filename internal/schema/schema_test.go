package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nikivdev/flow/internal/pipeline"
	"github.com/nikivdev/flow/internal/quality"
	"github.com/nikivdev/flow/internal/snapshot"
)

func buildSnapshot(t *testing.T, writeLatest bool) snapshot.Layout {
	t.Helper()
	dir := t.TempDir()
	flow := filepath.Join(dir, "flow.jsonl")
	seq := filepath.Join(dir, "seq.jsonl")

	var lines []string
	for i := 0; i < 30; i++ {
		rec := map[string]any{
			"event_type":  "everruns.runtime_event",
			"stage":       []string{"plan", "tool", "reply"}[i%3],
			"session_id":  "s1",
			"event_id":    fmt.Sprintf("e-%d", i),
			"ts_unix_ms":  1000 + i,
			"ok":          i%5 != 0,
			"duration_ms": 50 * i,
		}
		data, _ := json.Marshal(rec)
		lines = append(lines, string(data))
	}
	qa, _ := json.Marshal(map[string]any{
		"event_type":    "everruns.qa_pair",
		"session_id":    "s1",
		"event_id":      "qa-1",
		"ts_unix_ms":    5000,
		"prompt_text":   "how do I list files",
		"response_text": "use ls",
	})
	lines = append(lines, string(qa))
	if err := os.WriteFile(flow, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	seqLine := `{"name":"cli.run.local","ts_ms":6,"ok":true,"dur_us":2500,"subject":"ls"}` + "\n"
	if err := os.WriteFile(seq, []byte(seqLine), 0o644); err != nil {
		t.Fatal(err)
	}

	nop := zerolog.Nop()
	res, err := pipeline.Build(context.Background(), pipeline.Options{
		FlowPath:    flow,
		SeqPath:     seq,
		Root:        filepath.Join(dir, "harbor"),
		Snapshot:    "verify-me",
		WriteLatest: writeLatest,
		Seed:        42,
		ValPercent:  10,
		TestPercent: 10,
		MaxPerEvent: 120,
		Thresholds:  quality.Thresholds{MinRows: 1, MinUniqueEvents: 1, MaxDominance: 1},
		RunID:       "run-verify",
		Now:         func() time.Time { return time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC) },
		Logger:      &nop,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return res.Layout
}

func TestVerifySnapshot_Clean(t *testing.T) {
	l := buildSnapshot(t, false)
	results, err := VerifySnapshot(l)
	if err != nil {
		t.Fatalf("VerifySnapshot: %v", err)
	}
	if len(results) != 8 {
		t.Fatalf("results = %d, want 8", len(results))
	}
	for _, r := range results {
		if !r.OK() {
			t.Errorf("%s (%s): %v", r.Path, r.Kind, r.Errors)
		}
	}
	if Failed(results) != 0 {
		t.Errorf("Failed = %d", Failed(results))
	}
	if results[0].Records != 32 {
		t.Errorf("events records = %d, want 32", results[0].Records)
	}
}

func TestVerifySnapshot_Latest(t *testing.T) {
	l := buildSnapshot(t, true)
	results, err := VerifySnapshot(l.Latest())
	if err != nil {
		t.Fatalf("VerifySnapshot(latest): %v", err)
	}
	if Failed(results) != 0 {
		t.Errorf("latest mirror failed verification: %+v", results)
	}
}

func TestVerifySnapshot_DetectsCorruption(t *testing.T) {
	l := buildSnapshot(t, false)

	train, err := os.ReadFile(l.TrainPath())
	if err != nil {
		t.Fatal(err)
	}
	bad := string(train) + `{"record_type":"other","id":"x"}` + "\n" + "not json\n"
	if err := os.WriteFile(l.TrainPath(), []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(l.ReportPath(), []byte(`{"schema_version":"flow_runtime_validation_v1","ok":"yes"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(l.ValPath()); err != nil {
		t.Fatal(err)
	}

	results, err := VerifySnapshot(l)
	if err != nil {
		t.Fatalf("VerifySnapshot: %v", err)
	}
	byPath := map[string]Result{}
	for _, r := range results {
		byPath[r.Path] = r
	}

	tr := byPath[l.TrainPath()]
	if len(tr.Errors) != 2 {
		t.Fatalf("train errors = %v, want 2", tr.Errors)
	}
	if !strings.Contains(tr.Errors[1], "invalid json") {
		t.Errorf("second train error = %q", tr.Errors[1])
	}
	if byPath[l.ReportPath()].OK() {
		t.Error("broken report passed")
	}
	if byPath[l.ValPath()].OK() {
		t.Error("missing val.jsonl passed")
	}
	if !byPath[l.ManifestPath()].OK() {
		t.Errorf("manifest errors = %v", byPath[l.ManifestPath()].Errors)
	}
	if Failed(results) != 3 {
		t.Errorf("Failed = %d, want 3", Failed(results))
	}
}

func TestVerifySnapshot_InvalidName(t *testing.T) {
	if _, err := VerifySnapshot(snapshot.NewLayout(t.TempDir(), "../x")); err == nil {
		t.Error("expected error for invalid name")
	}
}

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name    string
		kind    string
		doc     string
		wantErr bool
	}{
		{"event count", KindEventCount, `{"event_name":"a","count":2}`, false},
		{"zero count", KindEventCount, `{"event_name":"a","count":0}`, true},
		{"extra field", KindEventCount, `{"event_name":"a","count":1,"x":1}`, true},
		{"fractional count", KindEventCount, `{"event_name":"a","count":1.5}`, true},
		{"trailing data", KindEventCount, `{"event_name":"a","count":1} {}`, true},
		{"unknown kind", "nope", `{}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument(tt.kind, []byte(tt.doc))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDocument() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestVerifyLines_CapsErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	if err := os.WriteFile(path, []byte(strings.Repeat("{}\n", 50)), 0o644); err != nil {
		t.Fatal(err)
	}
	r := VerifyLines(path, KindEventCount)
	if r.Records != 50 {
		t.Errorf("records = %d, want 50", r.Records)
	}
	if len(r.Errors) != maxErrorsPerFile+1 || r.Errors[maxErrorsPerFile] != "further errors omitted" {
		t.Errorf("errors = %d, last %q", len(r.Errors), r.Errors[len(r.Errors)-1])
	}
}
