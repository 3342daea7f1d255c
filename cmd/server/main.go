package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/stwalsh4118/zoning-engine/internal/cache"
	"github.com/stwalsh4118/zoning-engine/internal/config"
	"github.com/stwalsh4118/zoning-engine/internal/database"
	apierrors "github.com/stwalsh4118/zoning-engine/internal/errors"
	"github.com/stwalsh4118/zoning-engine/internal/fetcher"
	"github.com/stwalsh4118/zoning-engine/internal/handlers"
	"github.com/stwalsh4118/zoning-engine/internal/logger"
	"github.com/stwalsh4118/zoning-engine/internal/middleware"
	"github.com/stwalsh4118/zoning-engine/internal/parser"
	"github.com/stwalsh4118/zoning-engine/internal/registry"
	"github.com/stwalsh4118/zoning-engine/internal/repository"
	"github.com/stwalsh4118/zoning-engine/internal/services"
	"github.com/stwalsh4118/zoning-engine/internal/telemetry"
)

const (
	shutdownTimeout = 30 * time.Second
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.New(cfg.Server.Env)
	if cfg.Server.LogLevel != "" {
		log = log.WithLevel(logger.ParseLevel(cfg.Server.LogLevel))
	}
	log.Info("Starting zoning engine", map[string]interface{}{
		"version":     handlers.APIVersion,
		"environment": cfg.Server.Env,
		"port":        cfg.Server.Port,
	})

	// Create database connection pool
	ctx := context.Background()
	db, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", err, map[string]interface{}{
			"host": cfg.Database.Host,
			"port": cfg.Database.Port,
			"name": cfg.Database.Name,
		})
	}
	defer db.Close()

	log.Info("Database connection established", map[string]interface{}{
		"host":     cfg.Database.Host,
		"port":     cfg.Database.Port,
		"database": cfg.Database.Name,
		"pool_min": cfg.Database.PoolMin,
		"pool_max": cfg.Database.PoolMax,
	})

	if err := db.RunMigrations(cfg.Database.MigrationsPath, log); err != nil {
		log.Fatal("Failed to run migrations", err, map[string]interface{}{
			"path": cfg.Database.MigrationsPath,
		})
	}

	// Parser first: the registry rejects manifests naming unknown variants
	ordinanceParser, err := parser.New(parser.DefaultAdapters(), cfg.Engine.ParseMemoSize)
	if err != nil {
		log.Fatal("Failed to create parser", err, nil)
	}

	reg, err := registry.LoadManifest(cfg.Engine.ManifestPath, ordinanceParser.Variants())
	if err != nil {
		log.Fatal("Failed to load jurisdiction manifest", err, map[string]interface{}{
			"path": cfg.Engine.ManifestPath,
		})
	}
	log.Info("Jurisdiction manifest loaded", map[string]interface{}{
		"version":       reg.ManifestVersion(),
		"jurisdictions": len(reg.List()),
	})

	store, cachePinger := newCacheStore(cfg.Cache, db, log)
	ordinanceCache := cache.New(store, cfg.Cache.TTL)

	sink := telemetry.NewAsyncSink(log, cfg.Telemetry.BufferSize)
	defer sink.Close()

	districtRepo := repository.NewDistrictRepository(db)
	analysisService := services.NewAnalysisService(services.Dependencies{
		Registry: reg,
		Cache:    ordinanceCache,
		Fetcher: fetcher.New(fetcher.Options{
			Timeout:      cfg.Fetch.Timeout,
			MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
			UserAgent:    cfg.Fetch.UserAgent,
		}, log),
		Parser:    ordinanceParser,
		Analyses:  repository.NewAnalysisRepository(db),
		Districts: districtRepo,
		Sink:      sink,
		Log:       log,
	}, services.Options{
		FetchTimeout: cfg.Fetch.Timeout,
	})

	// Setup Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	apierrors.UseJSONFieldNames()
	router := gin.New()

	// Add middleware in order: RequestID -> Logger -> Recovery -> CORS
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log, sink))
	router.Use(middleware.CORS(cfg.CORS.Origins))

	// Register health check routes
	healthHandler := handlers.NewHealthHandler(db, cachePinger, cfg.Server.Env, reg.ManifestVersion())
	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)
	router.GET("/api/v1/info", healthHandler.Info)

	// Initialize handlers
	analysisHandler := handlers.NewAnalysisHandler(analysisService)
	jurisdictionHandler := handlers.NewJurisdictionHandler(reg, districtRepo)

	// Register API v1 routes
	v1 := router.Group("/api/v1")
	{
		analyses := v1.Group("/analyses")
		{
			analyses.POST("", analysisHandler.Create)
			analyses.GET("/:id", analysisHandler.Get)
		}
		v1.GET("/properties/:propertyId/analyses", analysisHandler.History)

		jurisdictions := v1.Group("/jurisdictions")
		{
			jurisdictions.GET("", jurisdictionHandler.List)
			jurisdictions.GET("/:id", jurisdictionHandler.Get)
			jurisdictions.GET("/:id/districts/:code/versions", jurisdictionHandler.DistrictVersions)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server listening", map[string]interface{}{
			"port": cfg.Server.Port,
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", err, nil)
		}
	}()

	// Wait for interrupt signal (SIGINT or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	log.Info("Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}

	log.Info("Server exited", map[string]interface{}{
		"telemetry_dropped": sink.Dropped(),
	})
}

// newCacheStore builds the configured ordinance cache backend. The returned
// Pinger is nil when readiness is already covered by the database check.
func newCacheStore(cfg config.CacheConfig, db *database.Database, log *logger.Logger) (cache.Store, handlers.Pinger) {
	switch cfg.Backend {
	case config.CacheBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store := cache.NewRedisStore(client, cfg.RedisPrefix)
		log.Info("Using redis ordinance cache", map[string]interface{}{
			"addr":   cfg.RedisAddr,
			"prefix": cfg.RedisPrefix,
		})
		return store, store
	case config.CacheBackendMemory:
		log.Warn("Using in-memory ordinance cache; entries are lost on restart", nil)
		return cache.NewMemoryStore(), nil
	default:
		log.Info("Using postgres ordinance cache", nil)
		return repository.NewOrdinanceCacheRepository(db), nil
	}
}
