// Package sampling holds the seeded, order-independent sampling steps of a
// build: per-event capping and train/val/test assignment.
package sampling

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"

	"github.com/nikivdev/flow/internal/dataset"
)

// Split names.
const (
	Train = "train"
	Val   = "val"
	Test  = "test"
)

// Buckets is the number of split buckets.
const Buckets = 100

// Key returns the seeded hex digest used to rank and bucket a row id.
func Key(seed int64, id string) string {
	sum := sha256.Sum256([]byte(strconv.FormatInt(seed, 10) + ":" + id))
	return hex.EncodeToString(sum[:])
}

// Bucket maps (seed, id) to 0..99 using the first 32 bits of Key.
func Bucket(id string, seed int64) int {
	v, _ := strconv.ParseUint(Key(seed, id)[:8], 16, 32)
	return int(v % Buckets)
}

// Cap keeps at most maxPerEvent rows per event name, chosen by seeded hash
// rank rather than time. A non-positive maxPerEvent disables capping. The
// returned map counts dropped rows per event name and only lists events that
// lost rows. Kept rows are sorted by (AtMs, ID).
func Cap(rows []dataset.Row, maxPerEvent int, seed int64) ([]dataset.Row, map[string]int) {
	dropped := map[string]int{}
	if maxPerEvent <= 0 {
		return rows, dropped
	}

	groups := map[string][]dataset.Row{}
	var order []string
	for _, r := range rows {
		if _, ok := groups[r.EventName]; !ok {
			order = append(order, r.EventName)
		}
		groups[r.EventName] = append(groups[r.EventName], r)
	}

	kept := make([]dataset.Row, 0, len(rows))
	for _, name := range order {
		group := groups[name]
		if len(group) <= maxPerEvent {
			kept = append(kept, group...)
			continue
		}
		keys := make(map[string]string, len(group))
		for _, r := range group {
			keys[r.ID] = Key(seed, r.ID)
		}
		sort.SliceStable(group, func(i, j int) bool {
			return keys[group[i].ID] < keys[group[j].ID]
		})
		kept = append(kept, group[:maxPerEvent]...)
		dropped[name] = len(group) - maxPerEvent
	}
	dataset.Sort(kept)
	return kept, dropped
}

// Percentages are the normalized split percentages of a build.
type Percentages struct {
	Val  int `json:"val_percent"`
	Test int `json:"test_percent"`
}

// NormalizePercentages clamps val into [0,100] and test into [0,100-val].
func NormalizePercentages(val, test int) Percentages {
	val = clamp(val, 0, 100)
	test = clamp(test, 0, 100-val)
	return Percentages{Val: val, Test: test}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// Assign returns the split of one row.
func (p Percentages) Assign(id string, seed int64) string {
	b := Bucket(id, seed)
	switch {
	case b < p.Test:
		return Test
	case b < p.Test+p.Val:
		return Val
	default:
		return Train
	}
}

// Splits is the partition of a row set.
type Splits struct {
	Train []dataset.Row
	Val   []dataset.Row
	Test  []dataset.Row
}

// Len returns the total number of rows across all splits.
func (s Splits) Len() int { return len(s.Train) + len(s.Val) + len(s.Test) }

// Split partitions rows, preserving their order within each split.
func Split(rows []dataset.Row, p Percentages, seed int64) Splits {
	var s Splits
	for _, r := range rows {
		switch p.Assign(r.ID, seed) {
		case Test:
			s.Test = append(s.Test, r)
		case Val:
			s.Val = append(s.Val, r)
		default:
			s.Train = append(s.Train, r)
		}
	}
	return s
}
