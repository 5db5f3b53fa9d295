package main

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/nikivdev/flow/internal/config"
	"github.com/nikivdev/flow/internal/db"
	"github.com/nikivdev/flow/internal/logging"
	"github.com/nikivdev/flow/internal/notify"
	"github.com/nikivdev/flow/internal/pipeline"
)

// openCatalog connects to the configured catalog. It returns nil when the
// catalog is disabled.
func openCatalog(cfg *config.Config) (*gorm.DB, error) {
	if !cfg.Catalog.Enabled {
		return nil, nil
	}
	gdb, err := db.Open(cfg.Catalog)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	return gdb, nil
}

func closeCatalog(gdb *gorm.DB) {
	if gdb == nil {
		return
	}
	if sqlDB, err := gdb.DB(); err == nil {
		sqlDB.Close()
	}
}

// afterBuild records res in the catalog and sends notifications. Failures are
// logged; the snapshot on disk is already the source of truth.
func afterBuild(ctx context.Context, cfg *config.Config, res *pipeline.Result) {
	log := logging.Named("flowset")

	if cfg.Catalog.Enabled {
		gdb, err := openCatalog(cfg)
		if err != nil {
			log.Warn().Err(err).Msg("catalog unavailable; run not recorded")
		} else {
			if err := db.RecordRun(gdb, res.CatalogRun()); err != nil {
				log.Warn().Err(err).Str("run_id", res.RunID).Msg("record run failed")
			} else {
				log.Debug().Str("run_id", res.RunID).Msg("run recorded")
			}
			closeCatalog(gdb)
		}
	}

	n, err := notify.FromConfig(cfg.Notify)
	if err != nil {
		log.Warn().Err(err).Msg("notifier setup failed")
		return
	}
	v := notify.Verdict{
		RunID:       res.RunID,
		Snapshot:    res.Layout.Name,
		PreparedDir: res.Layout.PreparedDir(),
		Report:      res.Report,
	}
	sent, err := notify.Send(ctx, n, cfg.Notify.On, v)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("notification failed")
	case sent:
		log.Info().Str("snapshot", v.Snapshot).Bool("ok", v.Report.OK).Msg("notification sent")
	}
}
