package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/nikivdev/flow/internal/dataset"
	"github.com/nikivdev/flow/internal/rawrec"
	"github.com/nikivdev/flow/internal/sanitize"
)

// SeqQAPair is the seq event carrying a captured question/answer pair.
const SeqQAPair = "agent.qa.pair"

// HighSignalPatterns is the default allow-list of seq event names kept in a
// dataset. Names matching none of these are dropped.
var HighSignalPatterns = []string{
	`^seqd\.request$`,
	`^seqd\.run(\.|$)`,
	`^cli\.run(\.|$)`,
	`^cli\.agent$`,
	`^cli\.open_app_toggle(\.|$)`,
	`^seq\.sequence\.`,
	`^menu\.select\.`,
	`^open_url(\.|$)`,
	`^app\.activate$`,
	`^actions\.`,
	`^AX_(STATUS|PROMPT)$`,
}

// Matcher decides whether a seq event name is high signal.
type Matcher struct {
	re *regexp.Regexp
}

// CompileMatcher builds a matcher from an allow-list. An empty list matches
// nothing.
func CompileMatcher(patterns []string) (*Matcher, error) {
	if len(patterns) == 0 {
		return &Matcher{}, nil
	}
	parts := make([]string, len(patterns))
	for i, p := range patterns {
		if _, err := regexp.Compile(p); err != nil {
			return nil, err
		}
		parts[i] = "(?:" + p + ")"
	}
	re, err := regexp.Compile(strings.Join(parts, "|"))
	if err != nil {
		return nil, err
	}
	return &Matcher{re: re}, nil
}

// DefaultMatcher returns the matcher for HighSignalPatterns.
func DefaultMatcher() *Matcher {
	m, err := CompileMatcher(HighSignalPatterns)
	if err != nil {
		panic(err)
	}
	return m
}

// Match reports whether name is on the allow-list.
func (m *Matcher) Match(name string) bool {
	if m == nil || m.re == nil {
		return false
	}
	return m.re.MatchString(name)
}

// Seq normalizes seq memory log records. A nil matcher uses DefaultMatcher.
func Seq(records []rawrec.Record, m *Matcher) ([]dataset.Row, Stats) {
	if m == nil {
		m = DefaultMatcher()
	}
	stats := Stats{Input: len(records)}
	rows := make([]dataset.Row, 0, len(records))
	for i, rec := range records {
		row, reason, ok := seqRow(rec, i+1, m)
		if !ok {
			stats.drop(reason)
			continue
		}
		stats.keep(row)
		rows = append(rows, row)
	}
	return rows, stats
}

// Subject decodes a qa-pair subject that may be an embedded JSON string or
// a nested object. Anything else, including malformed JSON, yields an empty
// record.
func Subject(v any) rawrec.Record {
	switch t := v.(type) {
	case map[string]any:
		return rawrec.Record(t)
	case string:
		if rec, ok := rawrec.Decode([]byte(t)); ok {
			return rec
		}
	}
	return rawrec.Record{}
}

func seqRow(rec rawrec.Record, idx int, m *Matcher) (dataset.Row, string, bool) {
	name := rec.FirstStr("name", "event", "kind")
	if name == "" {
		return dataset.Row{}, DropNoName, false
	}

	eventID := rec.Str("event_id")
	if eventID == "" {
		eventID = fallbackID("seq", idx)
	}
	atMs := timestamp(rec, "ts_ms")
	ts := strconv.FormatInt(atMs, 10)
	base := dataset.Record{
		Source:     dataset.SourceSeq,
		EventName:  name,
		AtMs:       atMs,
		Success:    rec.Bool("ok", true),
		DurationMs: clampNonNegative(rec.Int("dur_us", 0)) / 1000,
	}

	if name == SeqQAPair {
		subject := Subject(rec.Value("subject"))
		prompt := sanitize.Field(subject, "question")
		response := sanitize.Field(subject, "answer")
		if prompt == "" || response == "" {
			return dataset.Row{}, DropEmptyQA, false
		}
		sessionID := rec.Str("session_id")
		if sessionID == "" {
			sessionID = subject.Str("session_id")
		}
		base.RecordType = dataset.RecordTypeSFT
		base.ID = dataset.StableID("seq_qa", sessionID, eventID, ts, qaText(prompt), qaText(response))
		base.SessionID = sessionID
		base.Prompt = prompt
		base.Response = response
		base.Metadata = dataset.SeqSFTMetadata{
			Agent:       sanitize.Field(subject, "agent"),
			ProjectPath: sanitize.Field(subject, "project_path"),
			SourcePath:  sanitize.Field(subject, "source_path"),
			LineOffset:  subject.Int("offset", 0),
		}
		return dataset.NewRow(base), "", true
	}

	if !m.Match(name) {
		return dataset.Row{}, DropLowSignal, false
	}

	sessionID := rec.Str("session_id")
	base.RecordType = dataset.RecordTypeRuntime
	base.ID = dataset.StableID("seq", sessionID, eventID, name, ts)
	base.SessionID = sessionID
	base.Metadata = dataset.SeqEventMetadata{
		EventID:     eventID,
		Subject:     sanitize.Field(rec, "subject"),
		ContentHash: sanitize.Field(rec, "content_hash"),
	}
	return dataset.NewRow(base), "", true
}
