package models

// CacheEntry is one row of the persistent result cache, the only durable
// state owned by the resolver. TTL is in seconds; zero means never expires.
type CacheEntry struct {
	Key       string `gorm:"primaryKey" json:"key"`
	Payload   []byte `gorm:"not null" json:"payload"`
	LastUsed  int64  `gorm:"not null;index" json:"last_used"`
	TTL       int64  `gorm:"not null" json:"ttl"`
	SizeBytes int64  `gorm:"not null" json:"size_bytes"`
}

func (CacheEntry) TableName() string {
	return "cache"
}

// Expired reports whether the entry is stale at the given unix timestamp.
func (e *CacheEntry) Expired(now int64) bool {
	return e.TTL > 0 && e.LastUsed+e.TTL < now
}
