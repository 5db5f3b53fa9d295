package db

import (
	"errors"
	"fmt"

	"github.com/nikivdev/flow/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNoRuns is returned by LatestRun when the catalog holds no matching build.
var ErrNoRuns = errors.New("db: no snapshot runs recorded")

// AllModels returns the list of all catalog models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.SnapshotRun{},
		&models.SnapshotEvent{},
	}
}

// AutoMigrate creates or updates all catalog tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// RecordRun stores a build and its event counts. Recording the same run id
// again replaces the earlier row and its events.
func RecordRun(db *gorm.DB, run *models.SnapshotRun) error {
	events := run.Events
	run.Events = nil
	defer func() { run.Events = events }()

	err := db.Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "run_id"}},
			UpdateAll: true,
		}).Create(run)
		if result.Error != nil {
			return result.Error
		}
		if err := tx.Where("run_id = ?", run.RunID).Delete(&models.SnapshotEvent{}).Error; err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}
		rows := make([]models.SnapshotEvent, len(events))
		for i, e := range events {
			e.ID = 0
			e.RunID = run.RunID
			rows[i] = e
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("db: record run %s: %w", run.RunID, err)
	}
	return nil
}

// ListRuns returns up to limit builds, newest first. limit <= 0 returns all.
func ListRuns(db *gorm.DB, limit int) ([]models.SnapshotRun, error) {
	var runs []models.SnapshotRun
	q := db.Order("generated_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("db: list runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the newest build, restricted to snapshot when it is not
// empty. Event counts are preloaded.
func LatestRun(db *gorm.DB, snapshot string) (*models.SnapshotRun, error) {
	var run models.SnapshotRun
	q := db.Preload("Events", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("count DESC").Order("id ASC")
	}).Order("generated_at DESC").Order("id DESC")
	if snapshot != "" {
		q = q.Where("snapshot = ?", snapshot)
	}
	err := q.First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, fmt.Errorf("db: latest run: %w", err)
	}
	return &run, nil
}

// GetRun returns the build with runID and its event counts.
func GetRun(db *gorm.DB, runID string) (*models.SnapshotRun, error) {
	var run models.SnapshotRun
	err := db.Preload("Events", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("count DESC").Order("id ASC")
	}).Where("run_id = ?", runID).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, fmt.Errorf("db: get run %s: %w", runID, err)
	}
	return &run, nil
}

// RunsAfter returns builds recorded with a primary key above id, oldest
// first.
func RunsAfter(db *gorm.DB, id uint) ([]models.SnapshotRun, error) {
	var runs []models.SnapshotRun
	if err := db.Where("id > ?", id).Order("id ASC").Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("db: runs after %d: %w", id, err)
	}
	return runs, nil
}
