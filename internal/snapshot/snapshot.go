// Package snapshot lays out and publishes dataset snapshots on disk.
package snapshot

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// SchemaVersion tags manifests.
const SchemaVersion = "flow_runtime_dataset_v1"

// LatestName is the mirror snapshot updated by write_latest builds.
const LatestName = "latest"

const (
	rawDirName      = "flow_runtime"
	preparedDirName = "flow_runtime_prepared"
	nameLayout      = "20060102-150405"
	timeLayout      = "2006-01-02T15:04:05.000000-07:00"
)

// ErrInvalidName is returned for snapshot names that are not a single path
// element or that collide with the latest mirror.
var ErrInvalidName = errors.New("snapshot: invalid name")

// DefaultName returns the timestamp name of a snapshot built at now.
func DefaultName(now time.Time) string {
	return now.UTC().Format(nameLayout)
}

// FormatTime renders generated_at timestamps in UTC with an explicit offset.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ValidateName checks that name can be used as a snapshot directory.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case name == LatestName:
		return fmt.Errorf("%w: %q is reserved", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	return nil
}

// ResolveName trims name, falls back to DefaultName(now) when empty, and
// validates the result.
func ResolveName(name string, now time.Time) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName(now)
	}
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}

// Layout locates the files of one snapshot under an output root.
type Layout struct {
	Root string
	Name string
}

// NewLayout returns the layout of snapshot name under root.
func NewLayout(root, name string) Layout {
	return Layout{Root: root, Name: name}
}

// Latest returns the layout of the latest mirror under the same root.
func (l Layout) Latest() Layout {
	return Layout{Root: l.Root, Name: LatestName}
}

func (l Layout) RawDir() string {
	return filepath.Join(l.Root, "data", rawDirName, l.Name)
}

func (l Layout) PreparedDir() string {
	return filepath.Join(l.Root, "data", preparedDirName, l.Name)
}

// PreparedParent is the directory holding every prepared snapshot under the
// layout's root.
func (l Layout) PreparedParent() string {
	return filepath.Join(l.Root, "data", preparedDirName)
}

func (l Layout) EventsPath() string      { return filepath.Join(l.RawDir(), "events.jsonl") }
func (l Layout) SummaryPath() string     { return filepath.Join(l.RawDir(), "summary.json") }
func (l Layout) TrainPath() string       { return filepath.Join(l.PreparedDir(), "train.jsonl") }
func (l Layout) ValPath() string         { return filepath.Join(l.PreparedDir(), "val.jsonl") }
func (l Layout) TestPath() string        { return filepath.Join(l.PreparedDir(), "test.jsonl") }
func (l Layout) EventCountsPath() string { return filepath.Join(l.PreparedDir(), "event_counts.jsonl") }
func (l Layout) ManifestPath() string    { return filepath.Join(l.PreparedDir(), "manifest.json") }
func (l Layout) ReportPath() string      { return filepath.Join(l.PreparedDir(), "validation_report.json") }

// Paths returns the manifest paths section for this layout.
func (l Layout) Paths() Paths {
	return Paths{
		RawEvents:   l.EventsPath(),
		Train:       l.TrainPath(),
		Val:         l.ValPath(),
		Test:        l.TestPath(),
		EventCounts: l.EventCountsPath(),
	}
}
