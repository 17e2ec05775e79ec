package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cachememory "github.com/davidpet/product-price-service/internal/adapters/cache/memory"
	cacheredis "github.com/davidpet/product-price-service/internal/adapters/cache/redis"
	storagememory "github.com/davidpet/product-price-service/internal/adapters/storage/memory"
	"github.com/davidpet/product-price-service/internal/adapters/storage/postgresql"
	"github.com/davidpet/product-price-service/internal/adapters/web"
	"github.com/davidpet/product-price-service/internal/application/ports"
	"github.com/davidpet/product-price-service/internal/application/usecases"
	"github.com/davidpet/product-price-service/internal/config"
	"github.com/davidpet/product-price-service/internal/logger"
)

func main() {
	var (
		port = flag.Int("port", 0, "Port number (overrides config)")
		help = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		printUsage()
		return
	}

	// Initialize logger
	log := logger.New()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage backend
	var storage ports.StoragePort
	switch cfg.Storage.Backend {
	case config.StoragePostgres:
		storage, err = postgresql.New(cfg.Storage.Postgres)
	default:
		storage = storagememory.New()
	}
	if err != nil {
		log.Error("Failed to initialize storage", "backend", cfg.Storage.Backend, "error", err)
		os.Exit(1)
	}
	defer storage.Close()

	// Initialize read cache
	var cache ports.CachePort
	switch cfg.Cache.Backend {
	case config.CacheRedis:
		cache, err = cacheredis.New(cfg.Cache.Redis)
	default:
		cache = cachememory.New()
	}
	if err != nil {
		log.Error("Failed to initialize cache", "backend", cfg.Cache.Backend, "error", err)
		os.Exit(1)
	}
	defer cache.Close()

	log.Info("Backends selected",
		"storage", cfg.Storage.Backend, "cache", cfg.Cache.Backend)

	// Initialize use cases
	recordUseCase := usecases.NewRecordObservationUseCase(storage, cache, log)
	queryUseCase := usecases.NewPriceQueryUseCase(storage, cache, log)

	// Initialize web server
	webServer := web.NewServer(cfg.Server.Port, cfg.Server.Debug, recordUseCase, queryUseCase, log)

	go func() {
		if err := webServer.Start(); err != nil {
			log.Error("Failed to start web server", "error", err)
			cancel()
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info("Received shutdown signal")
	case <-ctx.Done():
		log.Info("Context cancelled")
	}

	// Graceful shutdown
	log.Info("Shutting down gracefully...")
	webServer.Shutdown(ctx)
	log.Info("Shutdown complete")
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  pricesvc [--port <N>]")
	fmt.Println("  pricesvc --help")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --port N     Port number (overrides config)")
}
