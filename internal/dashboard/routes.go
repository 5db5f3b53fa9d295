package dashboard

import (
	"errors"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/nikivdev/flow/internal/db"
	"github.com/nikivdev/flow/internal/snapshot"
)

// defaultRunLimit caps /api/runs when no limit is given.
const defaultRunLimit = 50

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	router.GET("/healthz", handleHealth(opts.DB))

	api := router.Group("/api")
	api.GET("/runs", handleRunList(opts.DB))
	api.GET("/runs/:id", handleRunDetail(opts.DB))
	api.GET("/snapshots", handleSnapshotList(opts.Root))
	api.GET("/snapshots/:name/manifest", handleManifest(opts.Root))
	api.GET("/snapshots/:name/report", handleReport(opts.Root))
	api.GET("/snapshots/:name/event_counts", handleEventCounts(opts.Root))
	api.GET("/events", handleSSE(opts.DB, opts.PollInterval))
}

func handleHealth(gdb *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "catalog": gdb != nil})
	}
}

func handleRunList(gdb *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCatalog(c, gdb) {
			return
		}
		limit := defaultRunLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
				return
			}
			limit = n
		}
		runs, err := db.ListRuns(gdb, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"runs": runs})
	}
}

func handleRunDetail(gdb *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireCatalog(c, gdb) {
			return
		}
		run, err := db.GetRun(gdb, c.Param("id"))
		if errors.Is(err, db.ErrNoRuns) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, run)
	}
}

func handleSnapshotList(root string) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := ListSnapshots(root)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"snapshots": rows})
	}
}

func handleManifest(root string) gin.HandlerFunc {
	return func(c *gin.Context) {
		l, ok := layoutParam(c, root)
		if !ok {
			return
		}
		m, err := snapshot.ReadManifest(l.ManifestPath())
		if writeReadError(c, err) {
			return
		}
		c.JSON(http.StatusOK, m)
	}
}

func handleReport(root string) gin.HandlerFunc {
	return func(c *gin.Context) {
		l, ok := layoutParam(c, root)
		if !ok {
			return
		}
		r, err := snapshot.ReadReport(l.ReportPath())
		if writeReadError(c, err) {
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

func handleEventCounts(root string) gin.HandlerFunc {
	return func(c *gin.Context) {
		l, ok := layoutParam(c, root)
		if !ok {
			return
		}
		counts, err := EventCounts(l)
		if writeReadError(c, err) {
			return
		}
		c.JSON(http.StatusOK, gin.H{"event_counts": counts})
	}
}

// layoutParam resolves the :name parameter. "latest" is accepted.
func layoutParam(c *gin.Context, root string) (snapshot.Layout, bool) {
	name := c.Param("name")
	if name != snapshot.LatestName {
		if err := snapshot.ValidateName(name); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return snapshot.Layout{}, false
		}
	}
	return snapshot.NewLayout(root, name), true
}

func writeReadError(c *gin.Context, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, fs.ErrNotExist):
		c.JSON(http.StatusNotFound, gin.H{"error": "snapshot not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
	return true
}

func requireCatalog(c *gin.Context, gdb *gorm.DB) bool {
	if gdb == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "catalog disabled"})
		return false
	}
	return true
}
