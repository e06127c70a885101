// Package state persists catalog snapshots and recently browsed collections
// in a local SQLite database under general.data_root.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"giftscope/internal/config"
)

type DB struct {
	Gorm *gorm.DB
	Path string
}

func Open(cfg *config.Config) (*DB, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if cfg.General.DataRoot == "" {
		return nil, errors.New("general.data_root required")
	}
	if err := os.MkdirAll(cfg.General.DataRoot, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(cfg.General.DataRoot, "state.db")
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	return openDSN(dsn, path)
}

// OpenMemory opens a private in-memory database, used by tests and --no-cache.
func OpenMemory() (*DB, error) {
	return openDSN(":memory:", ":memory:")
}

func openDSN(dsn, path string) (*DB, error) {
	g, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	if sqlDB, err := g.DB(); err == nil {
		// one writer; also keeps a :memory: database alive across calls
		sqlDB.SetMaxOpenConns(1)
	}
	if err := g.AutoMigrate(&CatalogSnapshot{}, &RecentCollection{}); err != nil {
		return nil, fmt.Errorf("migrate state db: %w", err)
	}
	return &DB{Gorm: g, Path: path}, nil
}

func (db *DB) Close() error {
	if db == nil || db.Gorm == nil {
		return nil
	}
	sqlDB, err := db.Gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
