package db

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nikivdev/flow/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DSN builds a MySQL-compatible DSN for connecting to a Dolt database.
func DSN(user, host string, port int, database string) string {
	return fmt.Sprintf("%s@tcp(%s:%d)/%s?parseTime=true", user, host, port, database)
}

// Open connects to the catalog described by cfg and migrates its tables.
// The sqlite file and its directory are created when missing; for mysql the
// database is created on the server first.
func Open(cfg config.CatalogConfig) (*gorm.DB, error) {
	var (
		gdb *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "sqlite":
		gdb, err = OpenSQLite(cfg.Path)
	case "mysql":
		gdb, err = Connect(cfg.Dolt)
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(gdb); err != nil {
		return nil, err
	}
	return gdb, nil
}

// OpenSQLite opens a sqlite catalog at path. ":memory:" is accepted.
func OpenSQLite(path string) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("db: sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("db: mkdir %s: %w", filepath.Dir(path), err)
		}
	}
	gdb, err := gorm.Open(sqlite.Open(path), silent())
	if err != nil {
		return nil, fmt.Errorf("db: open sqlite %s: %w", path, err)
	}
	return gdb, nil
}

// Connect opens a GORM connection to a Dolt database, creating the database
// if it does not exist yet.
func Connect(d config.DoltConfig) (*gorm.DB, error) {
	admin, err := ConnectAdmin(d)
	if err != nil {
		return nil, err
	}
	if err := CreateDatabase(admin, d.Database); err != nil {
		return nil, err
	}
	if sqlDB, err := admin.DB(); err == nil {
		sqlDB.Close()
	}

	gdb, err := gorm.Open(mysql.Open(DSN(d.User, d.Host, d.Port, d.Database)), silent())
	if err != nil {
		return nil, fmt.Errorf("db: connect to %s:%d/%s: %w", d.Host, d.Port, d.Database, err)
	}
	return gdb, nil
}

// ConnectAdmin opens a GORM connection to the Dolt server without selecting
// a specific database, used for CREATE DATABASE operations.
func ConnectAdmin(d config.DoltConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s@tcp(%s:%d)/?parseTime=true", d.User, d.Host, d.Port)
	gdb, err := gorm.Open(mysql.Open(dsn), silent())
	if err != nil {
		return nil, fmt.Errorf("db: admin connect to %s:%d: %w", d.Host, d.Port, err)
	}
	return gdb, nil
}

// CreateDatabase creates the named database if it doesn't already exist.
func CreateDatabase(adminDB *gorm.DB, name string) error {
	sql := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", name)
	if err := adminDB.Exec(sql).Error; err != nil {
		return fmt.Errorf("db: create database %s: %w", name, err)
	}
	return nil
}

func silent() *gorm.Config {
	return &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
}
