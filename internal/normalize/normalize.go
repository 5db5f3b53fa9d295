// Package normalize maps producer-specific runtime log records onto the
// canonical dataset row. Each producer has its own normalizer; both are pure
// and never fail on bad input: a record that cannot be mapped is dropped.
package normalize

import (
	"fmt"

	"github.com/nikivdev/flow/internal/dataset"
	"github.com/nikivdev/flow/internal/rawrec"
	"github.com/nikivdev/flow/internal/sanitize"
)

// Stats counts what a normalizer did with its input.
type Stats struct {
	Input   int
	Mapped  int
	SFT     int
	Dropped map[string]int // reason -> count
}

func (s *Stats) drop(reason string) {
	if s.Dropped == nil {
		s.Dropped = map[string]int{}
	}
	s.Dropped[reason]++
}

func (s *Stats) keep(row dataset.Row) {
	s.Mapped++
	if row.RecordType() == dataset.RecordTypeSFT {
		s.SFT++
	}
}

// Drop reasons.
const (
	DropNamespace = "namespace"
	DropNoName    = "no_name"
	DropEmptyQA   = "empty_qa"
	DropLowSignal = "low_signal"
)

// fallbackID is used when a record carries no event id. idx is 1-based.
func fallbackID(prefix string, idx int) string {
	return fmt.Sprintf("%s-event-%d", prefix, idx)
}

func clampNonNegative(n int64) int64 {
	return max(n, 0)
}

// qaText truncates prompt/response text for identity hashing.
func qaText(s string) string {
	return sanitize.Truncate(s, dataset.TextKeyLen)
}

// timestamp reads a millisecond timestamp field, clamped to >= 0.
func timestamp(r rawrec.Record, key string) int64 {
	return clampNonNegative(r.Int(key, 0))
}
