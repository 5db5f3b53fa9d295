package models

import "time"

// SnapshotRun records one dataset build and its quality verdict.
type SnapshotRun struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	RunID          string    `gorm:"size:36;uniqueIndex;not null" json:"run_id"`
	Snapshot       string    `gorm:"size:128;index;not null" json:"snapshot"`
	GeneratedAt    time.Time `gorm:"index" json:"generated_at"`
	Seed           int64     `json:"seed"`
	ValPercent     int       `json:"val_percent"`
	TestPercent    int       `json:"test_percent"`
	MaxPerEvent    int       `json:"max_per_event"`
	FlowRowsRaw    int       `json:"flow_rows_raw"`
	SeqRowsRaw     int       `json:"seq_rows_raw"`
	FlowRowsMapped int       `json:"flow_rows_mapped"`
	SeqRowsMapped  int       `json:"seq_rows_mapped"`
	DedupedRows    int       `json:"deduped_rows"`
	TrainRows      int       `json:"train_rows"`
	ValRows        int       `json:"val_rows"`
	TestRows       int       `json:"test_rows"`
	UniqueEvents   int       `json:"unique_events"`
	SuccessRate    float64   `json:"success_rate"`
	DominantEvent  string    `gorm:"size:255" json:"dominant_event"`
	DominanceRatio float64   `json:"dominance_ratio"`
	OK             bool      `gorm:"index" json:"ok"`
	Errors         string    `gorm:"type:text" json:"errors"`
	Warnings       string    `gorm:"type:text" json:"warnings"`
	RawDir         string    `gorm:"size:1024" json:"raw_dir"`
	PreparedDir    string    `gorm:"size:1024" json:"prepared_dir"`
	DurationMs     int64     `json:"duration_ms"`
	CreatedAt      time.Time `json:"created_at"`

	Events []SnapshotEvent `gorm:"foreignKey:RunID;references:RunID" json:"events,omitempty"`
}

// SnapshotEvent is the per-event row count of one build after capping.
type SnapshotEvent struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"-"`
	RunID     string `gorm:"size:36;index;not null" json:"run_id"`
	EventName string `gorm:"size:255;not null" json:"event_name"`
	Count     int    `json:"count"`
	Dropped   int    `json:"dropped"`
}
