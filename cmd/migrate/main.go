package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/healco/foodresolver/config"
	"github.com/healco/foodresolver/internal/database"
	"github.com/healco/foodresolver/internal/models"
)

// Applies the cache schema and optionally reports on or prunes the table.
// The API server migrates on startup too; this exists for operating on the
// cache without bringing the service up.
func main() {
	stats := flag.Bool("stats", false, "Print cache size and entry count")
	pruneExpired := flag.Bool("prune-expired", false, "Delete expired cache entries")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Fatalf("failed to open cache database: %v", err)
	}
	fmt.Println("cache schema is up to date")

	if *pruneExpired {
		now := time.Now().Unix()
		res := db.Where("ttl > 0 AND last_used + ttl < ?", now).Delete(&models.CacheEntry{})
		if res.Error != nil {
			log.Fatalf("failed to prune expired entries: %v", res.Error)
		}
		fmt.Printf("pruned %d expired entries\n", res.RowsAffected)
	}

	if *stats {
		var count int64
		if err := db.Model(&models.CacheEntry{}).Count(&count).Error; err != nil {
			log.Fatalf("failed to count cache entries: %v", err)
		}
		var size int64
		if err := db.Model(&models.CacheEntry{}).
			Select("COALESCE(SUM(size_bytes), 0)").Scan(&size).Error; err != nil {
			log.Fatalf("failed to sum cache size: %v", err)
		}
		fmt.Printf("entries: %d, bytes: %d (budget %d)\n", count, size, cfg.CacheLimitBytes())
	}
}
