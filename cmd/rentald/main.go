package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"fleet-rental-backend/config"
	"fleet-rental-backend/internal/api"
	"fleet-rental-backend/internal/broadcast"
	"fleet-rental-backend/internal/cache"
	"fleet-rental-backend/internal/command"
	"fleet-rental-backend/internal/db"
	"fleet-rental-backend/internal/metrics"
	"fleet-rental-backend/internal/mw"
	"fleet-rental-backend/internal/notification"
	"fleet-rental-backend/internal/reconcile"
	"fleet-rental-backend/internal/store"
	"fleet-rental-backend/internal/workflow"
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "rental-backend ", log.LstdFlags)

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	if cfg.Backend.BaseURL == "" {
		logger.Fatalf("backend.base_url must be configured")
	}

	var webpushOptions *webpush.Options
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
	} else {
		logger.Println("VAPID keys are not configured; push notifications are disabled")
	}

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	if err := db.Migrate(gormDB); err != nil {
		logger.Fatalf("failed to migrate database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(prometheus.DefaultRegisterer)
	}

	client := command.NewClient(cfg.Backend)
	snapshots := cache.New()
	hub := broadcast.NewHub(64)
	refresher := reconcile.NewRefresher(client, snapshots)
	if m != nil {
		client.SetObserver(m)
		refresher.SetObserver(m)
		go m.WatchSignals(ctx, hub)
	}

	machine := workflow.New(client, snapshots, refresher, hub, appStore, workflow.Options{
		RefreshDelay: cfg.Reconcile.Delay,
		MarkerWindow: cfg.Workflow.MarkerWindow,
	})

	// Warm the cache so vehicles can be acted on by id right away.
	warmCtx, warmCancel := context.WithTimeout(ctx, cfg.Backend.Timeout)
	if err := refresher.RefreshAll(warmCtx); err != nil {
		logger.Printf("initial refresh incomplete: %v", err)
	}
	warmCancel()

	if webpushOptions != nil {
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, webpushOptions, snapshots)
		if m != nil {
			pool.SetObserver(m)
		}
		pool.Start(ctx)
		go pool.Listen(ctx, hub)
	}

	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		go broadcast.NewRelay(hub, rdb, cfg.Redis.Channel).Run(ctx)
	}

	if cfg.Reconcile.Enabled {
		scheduler, err := reconcile.NewScheduler(cfg.Reconcile.Schedule, refresher, hub, cfg.Backend.Timeout)
		if err != nil {
			logger.Fatalf("invalid reconcile schedule %q: %v", cfg.Reconcile.Schedule, err)
		}
		scheduler.Start(ctx)
	}

	ttl := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	responseCache := mw.NewResponseCache(ttl)
	go responseCache.FlushOn(ctx, hub)

	handler := api.NewHandler(api.Deps{
		Store:    appStore,
		WebPush:  webpushOptions,
		Machine:  machine,
		Cache:    snapshots,
		Vehicles: client,
		Hub:      hub,
	})
	router := api.NewRouter(handler, cfg, responseCache, m)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start the server in a goroutine
	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
