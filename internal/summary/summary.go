// Package summary aggregates raw flow RL signal records for a quick health
// read of the producer log.
package summary

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/nikivdev/flow/internal/rawrec"
)

// UnknownEvent names records without an event_type.
const UnknownEvent = "unknown"

// Count is one entry of a frequency table.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Durations holds duration percentiles for one event type.
type Durations struct {
	Event string `json:"event"`
	P50   int64  `json:"p50"`
	P95   int64  `json:"p95"`
	P99   int64  `json:"p99"`
	N     int    `json:"n"`
}

// Summary is the aggregate over a set of signal records.
type Summary struct {
	Rows         int         `json:"rows"`
	Events       []Count     `json:"events"`
	ErrorClasses []Count     `json:"error_classes"`
	Durations    []Durations `json:"durations"`
}

// Summarize aggregates records. Event and error tables are ordered by count
// descending with ties in first-seen order; durations are ordered by event
// name. Only non-negative integer duration_ms values are sampled.
func Summarize(records []rawrec.Record) Summary {
	var events, errs counter
	samples := map[string][]int64{}

	for _, rec := range records {
		event := eventType(rec)
		events.add(event)
		if cls := rec.Str("error_class"); cls != "" {
			errs.add(cls)
		}
		if d, ok := durationMs(rec.Value("duration_ms")); ok {
			samples[event] = append(samples[event], d)
		}
	}

	s := Summary{
		Rows:         len(records),
		Events:       events.sorted(),
		ErrorClasses: errs.sorted(),
		Durations:    []Durations{},
	}
	names := make([]string, 0, len(samples))
	for name := range samples {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		values := samples[name]
		sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
		s.Durations = append(s.Durations, Durations{
			Event: name,
			P50:   Percentile(values, 0.50),
			P95:   Percentile(values, 0.95),
			P99:   Percentile(values, 0.99),
			N:     len(values),
		})
	}
	return s
}

// Percentile returns the value at index int((n-1)*pct) of sorted values, or
// 0 when there are none.
func Percentile(sorted []int64, pct float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * pct)
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}

// Write renders s as text.
func Write(w io.Writer, path string, s Summary) error {
	var b strings.Builder
	fmt.Fprintf(&b, "file: %s\n", path)
	fmt.Fprintf(&b, "rows: %d\n", s.Rows)
	b.WriteString("\nevent counts:\n")
	for _, c := range s.Events {
		fmt.Fprintf(&b, "  %s: %d\n", c.Name, c.Count)
	}
	if len(s.ErrorClasses) > 0 {
		b.WriteString("\nerror classes:\n")
		for _, c := range s.ErrorClasses {
			fmt.Fprintf(&b, "  %s: %d\n", c.Name, c.Count)
		}
	}
	if len(s.Durations) > 0 {
		b.WriteString("\nduration ms:\n")
		for _, d := range s.Durations {
			fmt.Fprintf(&b, "  %s: p50=%d p95=%d p99=%d n=%d\n", d.Event, d.P50, d.P95, d.P99, d.N)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func eventType(rec rawrec.Record) string {
	v := rec.Value("event_type")
	switch t := v.(type) {
	case nil:
		return UnknownEvent
	case string:
		return t
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return UnknownEvent
		}
		return string(data)
	}
}

// durationMs accepts only integer literals; 12.0 and booleans are ignored.
func durationMs(v any) (int64, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	d, err := n.Int64()
	if err != nil || d < 0 {
		return 0, false
	}
	return d, true
}

type counter struct {
	index map[string]int
	items []Count
}

func (c *counter) add(name string) {
	if c.index == nil {
		c.index = map[string]int{}
	}
	i, ok := c.index[name]
	if !ok {
		c.index[name] = len(c.items)
		c.items = append(c.items, Count{Name: name})
		i = len(c.items) - 1
	}
	c.items[i].Count++
}

func (c *counter) sorted() []Count {
	out := append([]Count{}, c.items...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}
