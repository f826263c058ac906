package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"live-auction/internal/api"
	"live-auction/internal/config"
	"live-auction/internal/domain"
	"live-auction/internal/infrastructure/memory"
	"live-auction/internal/infrastructure/mysql"
	redisstore "live-auction/internal/infrastructure/redis"
	"live-auction/internal/infrastructure/websocket"
	"live-auction/internal/services"
	"live-auction/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/gorilla/mux"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	log := logger.New()
	log.Info("Starting auction engine")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Initialize cache store
	var cache domain.CacheStore
	switch cfg.Cache.Driver {
	case "memory":
		cache = memory.NewCacheStore()
		log.Info("Using in-memory cache store")
	default:
		rdb := redisClient.NewClient(&redisClient.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		log.Info("Connected to Redis", "address", cfg.Redis.Address)

		cache = redisstore.NewCacheStore(rdb)
	}

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		log.Error("Failed to connect to MySQL", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	// Test MySQL connection
	if err := db.PingContext(ctx); err != nil {
		log.Error("Failed to ping MySQL", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to MySQL")

	ledger := mysql.NewBidLedger(db)

	// Initialize core services
	limiter := services.NewWindowRateLimiter(cache, cfg.Limiter.Window, log)
	admission := services.NewAdmissionEngine(cache, cfg.Admission.RetryBudget, log)
	rooms := services.NewRooms(log)
	writer := services.NewPersistenceWriter(ledger, cfg.Persistence.QueueSize,
		cfg.Persistence.MaxRetries, cfg.Persistence.RetryBackoff, log)
	coordinator := services.NewAuctionCoordinator(limiter, admission, rooms,
		writer, cache, cfg.Auction.SnapshotTTL, log)
	reconciler := services.NewReconciler(writer, ledger, cache, log)

	// Start background services
	writerCtx, writerCancel := context.WithCancel(context.Background())
	writer.Start(writerCtx)

	if err := reconciler.Start(context.Background()); err != nil {
		log.Error("Failed to start reconciler", "error", err)
		writerCancel()
		os.Exit(1)
	}

	// WebSocket server
	wsHandler := websocket.NewHandler(coordinator, log)

	router := mux.NewRouter()
	router.Use(websocket.NewBlacklistFilter(cache, log))
	router.HandleFunc("/ws", wsHandler.HandleConnection)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	wsServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Info("Starting WebSocket server", "address", wsServer.Addr)
		if err := wsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("WebSocket server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// REST API server
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	apiHandler := api.NewHandler(cache, ledger, coordinator, writer, log)
	apiHandler.Register(e)

	go func() {
		apiAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.API.Port)
		log.Info("Starting API server", "address", apiAddr)
		if err := e.Start(apiAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("API server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down auction engine...")

	// Graceful shutdown
	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := reconciler.Stop(); err != nil {
		log.Error("Failed to stop reconciler", "error", err)
	}

	writerCancel()
	writer.Stop()

	if err := wsServer.Shutdown(ctx); err != nil {
		log.Error("WebSocket server forced to shutdown", "error", err)
	}
	if err := e.Shutdown(ctx); err != nil {
		log.Error("API server forced to shutdown", "error", err)
	}

	log.Info("Auction engine stopped")
}
