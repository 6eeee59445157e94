package cache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/healco/foodresolver/internal/models"
)

// evictBatch is how many LRU rows each eviction sweep removes at once, so the
// sweep runs a bounded number of delete statements.
const evictBatch = 50

// SQLStore is the durable cache backed by the cache table. Reads refresh
// last_used; writes keep total size_bytes under the configured byte budget by
// evicting the least recently used rows.
type SQLStore struct {
	db         *gorm.DB
	limitBytes int64
	logger     *zap.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewSQLStore creates a store with the given byte budget.
func NewSQLStore(db *gorm.DB, limitBytes int64, logger *zap.Logger) *SQLStore {
	return &SQLStore{
		db:         db,
		limitBytes: limitBytes,
		logger:     logger,
		now:        time.Now,
	}
}

// Get returns the payload for key, or ErrMiss. An expired entry is deleted
// and reported as a miss; a live entry has its last_used refreshed.
func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	var (
		payload []byte
		expired bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry models.CacheEntry
		if err := tx.First(&entry, "key = ?", key).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrMiss
			}
			return fmt.Errorf("failed to read cache entry: %w", err)
		}

		now := s.now().Unix()
		if entry.Expired(now) {
			// The closure must return nil so the delete commits; the miss
			// is reported after the transaction.
			expired = true
			if err := tx.Delete(&models.CacheEntry{}, "key = ?", key).Error; err != nil {
				return fmt.Errorf("failed to delete expired entry: %w", err)
			}
			return nil
		}

		if err := tx.Model(&models.CacheEntry{}).Where("key = ?", key).
			Update("last_used", now).Error; err != nil {
			return fmt.Errorf("failed to refresh last_used: %w", err)
		}

		payload = entry.Payload
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, ErrMiss
	}
	return payload, nil
}

// Put upserts the payload under key and sweeps the table back under the byte
// budget when the write pushed it over.
func (s *SQLStore) Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	entry := models.CacheEntry{
		Key:       key,
		Payload:   payload,
		LastUsed:  s.now().Unix(),
		TTL:       int64(ttl / time.Second),
		SizeBytes: int64(len(payload)),
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "last_used", "ttl", "size_bytes"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}

	return s.evict(ctx)
}

// TotalSize returns the summed size_bytes across all entries.
func (s *SQLStore) TotalSize(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&models.CacheEntry{}).
		Select("COALESCE(SUM(size_bytes), 0)").Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum cache size: %w", err)
	}
	return total, nil
}

func (s *SQLStore) evict(ctx context.Context) error {
	for {
		total, err := s.TotalSize(ctx)
		if err != nil {
			return err
		}
		if total <= s.limitBytes {
			return nil
		}

		var victims []string
		err = s.db.WithContext(ctx).Model(&models.CacheEntry{}).
			Order("last_used ASC").Limit(evictBatch).Pluck("key", &victims).Error
		if err != nil {
			return fmt.Errorf("failed to select eviction batch: %w", err)
		}
		if len(victims) == 0 {
			return nil
		}

		if err := s.db.WithContext(ctx).Delete(&models.CacheEntry{}, "key IN ?", victims).Error; err != nil {
			return fmt.Errorf("failed to evict cache entries: %w", err)
		}
		s.logger.Debug("evicted cache entries",
			zap.Int("count", len(victims)),
			zap.Int64("total_bytes", total),
			zap.Int64("limit_bytes", s.limitBytes))
	}
}
