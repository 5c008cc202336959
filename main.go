// Package main provides the main entry point for the StoreKeep pricing core
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/storekeep/pricing-core/app/handlers"
	"github.com/storekeep/pricing-core/app/router"
	"github.com/storekeep/pricing-core/app/scheduler"
	"github.com/storekeep/pricing-core/app/services"
	businessflow "github.com/storekeep/pricing-core/business_flow"
	"github.com/storekeep/pricing-core/config"
	"github.com/storekeep/pricing-core/repository"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	stopFuncs []func()
}

func main() {
	log.Println("Starting pricing-core...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg.Logging)

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Standalone metrics endpoint
	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics)
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.router.Start(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.router.GetApp().ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// setupLogging routes the standard logger to a rotating file when configured
func setupLogging(cfg config.LoggingConfig) {
	if cfg.Output != "file" {
		return
	}

	log.SetOutput(&lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	})
}

// serveMetrics exposes Prometheus metrics on a dedicated port
func serveMetrics(cfg config.MetricsConfig) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())

	address := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("Metrics server listening on %s%s", address, cfg.Path)
	if err := http.ListenAndServe(address, mux); err != nil {
		log.Printf("Metrics server stopped: %v", err)
	}
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor periodically pings Redis to surface connectivity
// issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	if client == nil {
		return func() {}
	}

	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	// Initialize database
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, 30*time.Second))

	// Initialize repositories
	siteRepo := repository.NewSiteRepository(db)
	unitRepo := repository.NewUnitRepository(db)
	adjustmentRepo := repository.NewPriceAdjustmentRepository(db)
	experimentRepo := repository.NewPricingExperimentRepository(db)
	exposureRepo := repository.NewExperimentExposureRepository(db)
	competitorRepo := repository.NewCompetitorPriceRepository(db)
	forecastRepo := repository.NewDemandForecastRepository(db)

	// External price signal provider is optional
	var signalProvider services.PriceSignalProvider
	if cfg.SignalProvider.APIURL != "" {
		signalProvider = services.NewPriceSignalProvider(&cfg.SignalProvider)
		log.Printf("Price signal provider enabled at %s", cfg.SignalProvider.APIURL)
	}

	// Initialize flows
	adjustmentFlow := businessflow.NewPriceAdjustmentFlow(
		unitRepo,
		adjustmentRepo,
		siteRepo,
		competitorRepo,
		forecastRepo,
		signalProvider,
		cfg.Pricing,
		db,
	)

	experimentFlow := businessflow.NewExperimentFlow(
		experimentRepo,
		exposureRepo,
		unitRepo,
		siteRepo,
		adjustmentFlow,
		cfg.Pricing,
		db,
	)

	competitorFlow := businessflow.NewCompetitorAnalysisFlow(
		competitorRepo,
		unitRepo,
		siteRepo,
		rc,
		&cfg.Cache,
	)

	forecastFlow := businessflow.NewDemandForecastFlow(
		forecastRepo,
		unitRepo,
		siteRepo,
	)

	historyFlow := businessflow.NewAdjustmentHistoryFlow(adjustmentRepo)

	// Initialize handlers
	pricingHandler := handlers.NewPricingHandler(adjustmentFlow)
	experimentHandler := handlers.NewExperimentHandler(experimentFlow)
	analyticsHandler := handlers.NewAnalyticsHandler(competitorFlow, forecastFlow, historyFlow)

	// Initialize router
	appRouter := router.NewFiberRouter(cfg, pricingHandler, experimentHandler, analyticsHandler)

	// Start the pricing scheduler
	if cfg.Scheduler.Enabled {
		sched := scheduler.NewPricingScheduler(
			siteRepo,
			experimentRepo,
			adjustmentFlow,
			experimentFlow,
			cfg.Scheduler,
			log.Default(),
		)
		stopFuncs = append(stopFuncs, sched.Start(context.Background()))
		log.Printf("Pricing scheduler started (pricing every %s, experiments every %s)",
			cfg.Scheduler.PricingInterval, cfg.Scheduler.ExperimentInterval)
	}

	return &Application{
		router:    appRouter,
		config:    cfg,
		stopFuncs: stopFuncs,
	}, nil
}
