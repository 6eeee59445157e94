package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the resolver service.
type Config struct {
	// Server configuration
	ServerHost string
	ServerPort string

	// Structured nutrition provider (FatSecret) credentials
	FatSecretKey    string
	FatSecretSecret string

	// Google Custom Search credentials
	GoogleCSEKey string
	GoogleCSEID  string

	// Google Vision OCR credentials
	VisionKey string

	// Cache configuration
	CacheDBPath  string
	CacheDSN     string // postgres DSN; sqlite file is used when empty
	CacheSchema  string
	CacheLimitMB int

	// Redis configuration (optional, used for the page-fetch cache)
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// TTLs
	SearchCacheTTL time.Duration
	PageCacheTTL   time.Duration

	// Resolution tuning
	MaxQueryLen    int
	ScrapeInterval time.Duration
	UserAgent      string
}

// Load creates a Config from environment variables. Secrets may be supplied
// either directly (NAME) or via a file path (NAME_FILE).
func Load() (*Config, error) {
	cfg := &Config{
		ServerHost: getEnv("SERVER_HOST", "0.0.0.0"),
		ServerPort: getEnv("SERVER_PORT", "8080"),

		FatSecretKey:    readSecret("FATSECRET_KEY"),
		FatSecretSecret: readSecret("FATSECRET_SECRET"),
		GoogleCSEKey:    readSecret("GOOGLE_CSE_KEY"),
		GoogleCSEID:     readSecret("GOOGLE_CSE_ID"),
		VisionKey:       readSecret("VISION_KEY"),

		CacheDBPath: getEnv("CACHE_DB_PATH", "./data/cache.db"),
		CacheDSN:    os.Getenv("CACHE_DSN"),
		CacheSchema: getEnv("CACHE_SCHEMA", "r1"),

		RedisHost:     os.Getenv("REDIS_HOST"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		UserAgent: getEnv("USER_AGENT", "healco-lite/1.0"),
	}

	var err error
	if cfg.CacheLimitMB, err = getEnvInt("CACHE_LIMIT_MB", 50); err != nil {
		return nil, err
	}
	if cfg.MaxQueryLen, err = getEnvInt("MAX_QUERY_LEN", 80); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}

	cacheDays, err := getEnvInt("CACHE_DAYS", 30)
	if err != nil {
		return nil, err
	}
	searchTTLSecs, err := getEnvInt("SEARCH_CACHE_TTL", cacheDays*24*60*60)
	if err != nil {
		return nil, err
	}
	cfg.SearchCacheTTL = time.Duration(searchTTLSecs) * time.Second

	pageTTLSecs, err := getEnvInt("PAGE_CACHE_TTL", 3*24*60*60)
	if err != nil {
		return nil, err
	}
	cfg.PageCacheTTL = time.Duration(pageTTLSecs) * time.Second

	intervalMS, err := getEnvInt("SCRAPE_INTERVAL_MS", 1000)
	if err != nil {
		return nil, err
	}
	cfg.ScrapeInterval = time.Duration(intervalMS) * time.Millisecond

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration invariants. Missing provider credentials are
// not errors: each provider degrades to "unavailable" on its own.
func Validate(cfg *Config) error {
	if cfg.CacheLimitMB <= 0 {
		return fmt.Errorf("CACHE_LIMIT_MB must be positive, got %d", cfg.CacheLimitMB)
	}
	if cfg.MaxQueryLen <= 0 {
		return fmt.Errorf("MAX_QUERY_LEN must be positive, got %d", cfg.MaxQueryLen)
	}
	if cfg.ScrapeInterval <= 0 {
		return fmt.Errorf("SCRAPE_INTERVAL_MS must be positive, got %s", cfg.ScrapeInterval)
	}
	if cfg.SearchCacheTTL < 0 || cfg.PageCacheTTL < 0 {
		return fmt.Errorf("cache TTLs must not be negative")
	}
	if cfg.CacheDSN == "" && cfg.CacheDBPath == "" {
		return fmt.Errorf("either CACHE_DSN or CACHE_DB_PATH must be set")
	}
	return nil
}

// CacheLimitBytes returns the cache byte budget.
func (c *Config) CacheLimitBytes() int64 {
	return int64(c.CacheLimitMB) * 1024 * 1024
}

// HasFatSecret reports whether structured-provider credentials are configured.
func (c *Config) HasFatSecret() bool {
	return c.FatSecretKey != "" && c.FatSecretSecret != ""
}

// HasRedis reports whether a redis endpoint is configured.
func (c *Config) HasRedis() bool {
	return c.RedisHost != ""
}

// readSecret resolves a secret from NAME or, failing that, from the file named
// by NAME_FILE. An unresolvable secret is an empty string, never an error.
func readSecret(name string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	if path := os.Getenv(name + "_FILE"); path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(content))
	}
	return ""
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(name string, fallback int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, v, err)
	}
	return n, nil
}
