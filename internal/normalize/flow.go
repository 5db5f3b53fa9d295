package normalize

import (
	"strconv"
	"strings"

	"github.com/nikivdev/flow/internal/dataset"
	"github.com/nikivdev/flow/internal/rawrec"
	"github.com/nikivdev/flow/internal/sanitize"
)

// Flow signal event types.
const (
	FlowNamespace    = "everruns."
	FlowQAPair       = "everruns.qa_pair"
	FlowRuntimeEvent = "everruns.runtime_event"
	flowStagePrefix  = "everruns.stage."
)

// FlowEventName returns the dataset event name of a flow record. Runtime
// events with a stage are remapped to a dotted stage name.
func FlowEventName(eventType, stage string) string {
	if eventType == FlowRuntimeEvent && stage != "" {
		return flowStagePrefix + stage
	}
	return eventType
}

// Flow normalizes flow RL signal records.
func Flow(records []rawrec.Record) ([]dataset.Row, Stats) {
	stats := Stats{Input: len(records)}
	rows := make([]dataset.Row, 0, len(records))
	for i, rec := range records {
		row, reason, ok := flowRow(rec, i+1)
		if !ok {
			stats.drop(reason)
			continue
		}
		stats.keep(row)
		rows = append(rows, row)
	}
	return rows, stats
}

func flowRow(rec rawrec.Record, idx int) (dataset.Row, string, bool) {
	eventType := rec.Str("event_type")
	if !strings.HasPrefix(eventType, FlowNamespace) {
		return dataset.Row{}, DropNamespace, false
	}

	eventName := FlowEventName(eventType, rec.Str("stage"))
	sessionID := rec.Str("session_id")
	eventID := rec.Str("event_id")
	if eventID == "" {
		eventID = fallbackID("flow", idx)
	}
	atMs := timestamp(rec, "ts_unix_ms")
	base := dataset.Record{
		Source:     dataset.SourceFlow,
		EventName:  eventName,
		AtMs:       atMs,
		Success:    rec.Bool("ok", true),
		DurationMs: clampNonNegative(rec.Int("duration_ms", 0)),
		ErrorClass: sanitize.Field(rec, "error_class"),
		SessionID:  sessionID,
	}
	ts := strconv.FormatInt(atMs, 10)

	if eventType == FlowQAPair {
		prompt := sanitize.Captured(rec.Value("prompt_text"))
		response := sanitize.Captured(rec.Value("response_text"))
		if prompt == "" || response == "" {
			return dataset.Row{}, DropEmptyQA, false
		}
		base.RecordType = dataset.RecordTypeSFT
		base.ID = dataset.StableID("flow_qa", sessionID, eventID, ts, qaText(prompt), qaText(response))
		base.Prompt = prompt
		base.Response = response
		base.Metadata = dataset.FlowSFTMetadata{
			Runtime:        rec.Str("runtime"),
			InputMessageID: sanitize.Field(rec, "input_message_id"),
			EventID:        eventID,
		}
		return dataset.NewRow(base), "", true
	}

	attrs := rec.Value("attrs")
	if !rec.Has("attrs") {
		attrs = map[string]any{}
	}
	base.RecordType = dataset.RecordTypeRuntime
	base.ID = dataset.StableID("flow", sessionID, eventID, eventName, ts)
	base.Metadata = dataset.FlowEventMetadata{
		Runtime:    rec.Str("runtime"),
		ToolCallID: sanitize.Field(rec, "tool_call_id"),
		ToolName:   sanitize.Field(rec, "tool_name"),
		SeqOp:      sanitize.Field(rec, "seq_op"),
		Attrs:      attrs,
	}
	return dataset.NewRow(base), "", true
}
