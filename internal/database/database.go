package database

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/healco/foodresolver/config"
	"github.com/healco/foodresolver/internal/models"
)

// New opens the cache database. A postgres DSN takes precedence when
// configured; otherwise an embedded sqlite file is used.
func New(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if cfg.CacheDSN != "" {
		dialector = postgres.Open(cfg.CacheDSN)
	} else {
		if dir := filepath.Dir(cfg.CacheDBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create cache directory: %w", err)
			}
		}
		dialector = sqlite.Open(cfg.CacheDBPath)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if err := db.AutoMigrate(&models.CacheEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate cache schema: %w", err)
	}

	return db, nil
}

var memorySeq atomic.Int64

// NewMemory opens a fresh in-memory sqlite database, used by tests. Each call
// gets its own database so tests do not share state.
func NewMemory() (*gorm.DB, error) {
	name := fmt.Sprintf("file:cache_mem_%d?mode=memory&cache=shared", memorySeq.Add(1))
	db, err := gorm.Open(sqlite.Open(name), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	if err := db.AutoMigrate(&models.CacheEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate cache schema: %w", err)
	}
	return db, nil
}
