package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/nikivdev/flow/internal/db"
	"github.com/nikivdev/flow/internal/models"
)

// runEvent is sent when a new build lands in the catalog.
type runEvent struct {
	RunID       string    `json:"run_id"`
	Snapshot    string    `json:"snapshot"`
	GeneratedAt time.Time `json:"generated_at"`
	OK          bool      `json:"ok"`
	DedupedRows int       `json:"deduped_rows"`
}

func newRunEvent(r models.SnapshotRun) runEvent {
	return runEvent{
		RunID:       r.RunID,
		Snapshot:    r.Snapshot,
		GeneratedAt: r.GeneratedAt,
		OK:          r.OK,
		DedupedRows: r.DedupedRows,
	}
}

// handleSSE streams a "run" event for every build recorded after the client
// connected.
func handleSSE(gdb *gorm.DB, poll time.Duration) gin.HandlerFunc {
	if poll <= 0 {
		poll = 3 * time.Second
	}
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		// Only runs recorded after connecting are announced.
		var lastSeenID uint
		if gdb != nil {
			var newest models.SnapshotRun
			if err := gdb.Order("id DESC").Limit(1).Find(&newest).Error; err == nil {
				lastSeenID = newest.ID
			}
		}

		writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
		c.Writer.Flush()

		if gdb == nil {
			return
		}

		ctx := c.Request.Context()
		ticker := time.NewTicker(poll)
		heartbeat := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case <-ticker.C:
				runs, err := db.RunsAfter(gdb, lastSeenID)
				if err != nil || len(runs) == 0 {
					continue
				}
				for _, r := range runs {
					writeSSE(c.Writer, "run", newRunEvent(r))
				}
				lastSeenID = runs[len(runs)-1].ID
				c.Writer.Flush()
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
