// Package dataset defines the canonical row produced by the normalizers and
// the identity and deduplication rules applied to it.
package dataset

import "github.com/nikivdev/flow/internal/reward"

// Source tags identify the producer a row came from.
const (
	SourceFlow = "flow_rl_signals"
	SourceSeq  = "seq_mem"
)

// Record types.
const (
	RecordTypeSFT     = "assistant_sft_example"
	RecordTypeRuntime = "runtime_training_event"
)

// Row is a normalized dataset row. Once it leaves a normalizer it is never
// modified.
type Row struct {
	ID         string
	Source     string
	EventName  string
	AtMs       int64
	Success    bool
	DurationMs int64
	ErrorClass string
	Record     Record
}

// RecordType returns the record type of the row's payload.
func (r Row) RecordType() string { return r.Record.RecordType }

// Record is the persisted JSON payload of a row. Field order is the on-disk
// order.
type Record struct {
	RecordType       string           `json:"record_type"`
	ID               string           `json:"id"`
	Source           string           `json:"source"`
	EventName        string           `json:"event_name"`
	AtMs             int64            `json:"at_ms"`
	Success          bool             `json:"success"`
	DurationMs       int64            `json:"duration_ms"`
	ErrorClass       string           `json:"error_class"`
	SessionID        string           `json:"session_id"`
	Prompt           string           `json:"prompt,omitempty"`
	Response         string           `json:"response,omitempty"`
	RewardComponents RewardComponents `json:"reward_components"`
	RewardComposite  float64          `json:"reward_composite"`
	Metadata         any              `json:"metadata"`
}

// RewardComponents is the persisted reward breakdown.
type RewardComponents struct {
	Success    float64 `json:"success"`
	Efficiency float64 `json:"efficiency"`
}

// FlowSFTMetadata is attached to flow qa-pair records.
type FlowSFTMetadata struct {
	Runtime        string `json:"runtime"`
	InputMessageID string `json:"input_message_id"`
	EventID        string `json:"event_id"`
}

// FlowEventMetadata is attached to flow runtime events.
type FlowEventMetadata struct {
	Runtime    string `json:"runtime"`
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
	SeqOp      string `json:"seq_op"`
	Attrs      any    `json:"attrs"`
}

// SeqSFTMetadata is attached to seq qa-pair records.
type SeqSFTMetadata struct {
	Agent       string `json:"agent"`
	ProjectPath string `json:"project_path"`
	SourcePath  string `json:"source_path"`
	LineOffset  int64  `json:"line_offset"`
}

// SeqEventMetadata is attached to seq runtime events.
type SeqEventMetadata struct {
	EventID     string `json:"event_id"`
	Subject     string `json:"subject"`
	ContentHash string `json:"content_hash"`
}

// NewRow assembles a row and its record from the shared fields. The record
// carries the scored reward for (success, durationMs).
func NewRow(rec Record) Row {
	score := reward.Score(rec.Success, rec.DurationMs)
	rec.RewardComponents = RewardComponents{Success: score.Success, Efficiency: score.Efficiency}
	rec.RewardComposite = score.Composite
	return Row{
		ID:         rec.ID,
		Source:     rec.Source,
		EventName:  rec.EventName,
		AtMs:       rec.AtMs,
		Success:    rec.Success,
		DurationMs: rec.DurationMs,
		ErrorClass: rec.ErrorClass,
		Record:     rec,
	}
}
