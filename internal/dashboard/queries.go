package dashboard

import (
	"errors"
	"io/fs"
	"os"
	"sort"

	"github.com/nikivdev/flow/internal/jsonl"
	"github.com/nikivdev/flow/internal/quality"
	"github.com/nikivdev/flow/internal/rawrec"
	"github.com/nikivdev/flow/internal/snapshot"
)

// SnapshotRow describes one published snapshot on disk.
type SnapshotRow struct {
	Name        string `json:"name"`
	HasManifest bool   `json:"has_manifest"`
	HasReport   bool   `json:"has_report"`
	OK          *bool  `json:"ok,omitempty"`
}

// ListSnapshots returns the prepared snapshots under root sorted by name,
// with "latest" last.
func ListSnapshots(root string) ([]SnapshotRow, error) {
	dir := snapshot.NewLayout(root, snapshot.LatestName).PreparedParent()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []SnapshotRow{}, nil
	}
	if err != nil {
		return nil, err
	}

	rows := []SnapshotRow{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		l := snapshot.NewLayout(root, e.Name())
		row := SnapshotRow{Name: e.Name()}
		if _, err := os.Stat(l.ManifestPath()); err == nil {
			row.HasManifest = true
		}
		if r, err := snapshot.ReadReport(l.ReportPath()); err == nil {
			row.HasReport = true
			ok := r.OK
			row.OK = &ok
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		li, lj := rows[i].Name == snapshot.LatestName, rows[j].Name == snapshot.LatestName
		if li != lj {
			return lj
		}
		return rows[i].Name < rows[j].Name
	})
	return rows, nil
}

// EventCounts reads the event frequency index of a snapshot.
func EventCounts(l snapshot.Layout) ([]quality.EventCount, error) {
	if _, err := os.Stat(l.EventCountsPath()); err != nil {
		return nil, err
	}
	res, err := jsonl.ReadTail(l.EventCountsPath(), 0)
	if err != nil {
		return nil, err
	}
	out := make([]quality.EventCount, 0, len(res.Records))
	for _, rec := range res.Records {
		out = append(out, quality.EventCount{
			EventName: rec.Str("event_name"),
			Count:     int(rawrec.Int(rec.Value("count"), 0)),
		})
	}
	return out, nil
}
