package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/healco/foodresolver/config"
	"github.com/healco/foodresolver/internal/cache"
	"github.com/healco/foodresolver/internal/database"
	"github.com/healco/foodresolver/internal/scrape"
	"github.com/healco/foodresolver/internal/server"
	"github.com/healco/foodresolver/internal/service"
)

func main() {
	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Persistent result cache
	db, err := database.New(cfg)
	if err != nil {
		logger.Fatal("failed to open cache database", zap.Error(err))
	}
	resultStore := cache.NewSQLStore(db, cfg.CacheLimitBytes(), logger)

	// Page fetches go to redis when configured, otherwise share the SQL store
	var pageStore cache.Store = resultStore
	if cfg.HasRedis() {
		redisClient, err := database.NewRedisClient(cfg)
		if err != nil {
			logger.Warn("redis unavailable, page cache falls back to database", zap.Error(err))
		} else {
			pageStore = cache.NewRedisStore(redisClient, "page:")
		}
	}

	fatsecret := service.NewFatSecretClient(cfg, logger)
	if !fatsecret.Available() {
		logger.Warn("fatsecret credentials not set, structured tier disabled")
	}
	searcher := service.NewCSEClient(cfg, logger)
	ocr := service.NewVisionClient(cfg, logger)

	// One av.ru request per interval, shared across all resolutions
	limiter := rate.NewLimiter(rate.Every(cfg.ScrapeInterval), 1)
	registry := scrape.NewRegistry(
		scrape.NewAvRuScraper(limiter, pageStore, cfg.PageCacheTTL, cfg.UserAgent, logger),
		scrape.NewFatSecretItemHandler(fatsecret),
		scrape.NewRetailScraper(fatsecret, logger),
	)

	resolver := service.NewResolver(cfg, fatsecret, searcher, ocr, registry, resultStore, logger)

	// Create and start server
	srv := server.NewServer(cfg, resolver, logger)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	case sig := <-quit:
		logger.Info("received signal", zap.String("signal", sig.String()))
	}

	// Gracefully shutdown the server
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server shutdown error", zap.Error(err))
	}
	logger.Info("server stopped")
}
