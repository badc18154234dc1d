package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/parts-ledger/internal/adapter/handler"
	"github.com/rl1809/parts-ledger/internal/adapter/storage"
	"github.com/rl1809/parts-ledger/internal/config"
	"github.com/rl1809/parts-ledger/internal/core/service"
	"github.com/rl1809/parts-ledger/internal/logger"
	"github.com/rl1809/parts-ledger/internal/port"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logg := logger.New(cfg.LogLevel, cfg.LogFormat)

	// Initialize the authoritative ledger
	var (
		ledger   port.Ledger
		catalog  port.CatalogWriter
		projects port.BOMRepository
		txlog    port.TransactionLog

		db       *sql.DB
		fsClient *firestore.Client
	)
	switch cfg.Storage.Driver {
	case config.DriverMySQL:
		db, err = sql.Open("mysql", cfg.Storage.MySQLDSN)
		if err != nil {
			log.Fatalf("failed to connect mysql: %v", err)
		}
		db.SetMaxOpenConns(cfg.Storage.MySQLMaxConns)
		db.SetMaxIdleConns(cfg.Storage.MySQLMaxIdle)
		db.SetConnMaxLifetime(cfg.Storage.MySQLMaxLifetime)
		if err := db.PingContext(ctx); err != nil {
			log.Fatalf("failed to ping mysql: %v", err)
		}
		adapter := storage.NewMySQLAdapter(db)
		ledger, catalog, projects, txlog = adapter, adapter, adapter, adapter
		logg.Info("connected to mysql")

	case config.DriverFirestore:
		fsClient, err = firestore.NewClient(ctx, cfg.Storage.FirestoreProject)
		if err != nil {
			log.Fatalf("failed to connect firestore: %v", err)
		}
		adapter := storage.NewFirestoreAdapter(fsClient)
		ledger, catalog, projects, txlog = adapter, adapter, adapter, adapter
		logg.Info("connected to firestore", "project", cfg.Storage.FirestoreProject)
	}

	// Optional stock mirror / notification fan-out
	var (
		notifier port.StockNotifier
		rdb      *redis.Client
	)
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		redisNotifier := storage.NewRedisNotifier(rdb)
		notifier = redisNotifier
		logg.Info("connected to redis", "addr", cfg.Redis.Addr)

		events, stopWatch := redisNotifier.Watch(ctx)
		defer stopWatch()
		go func() {
			for changes := range events {
				logg.Debug("stock changed", "entries", len(changes))
			}
		}()
	}

	// Initialize services
	settlements := service.NewSettlementService(ledger, projects, txlog, notifier, logg)
	circulation := service.NewCirculationService(ledger, txlog, notifier, logg)
	catalogSvc := service.NewCatalogService(ledger, catalog, txlog, notifier, logg)
	transactions := service.NewTransactionService(txlog)

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(settlements, circulation, catalogSvc, transactions, logg)
	mux := http.NewServeMux()
	mux.HandleFunc("/health", httpHandler.HealthCheck)
	mux.HandleFunc("/api/settlements/check", httpHandler.CheckSettlement)
	mux.HandleFunc("/api/settlements/commit", httpHandler.CommitSettlement)
	mux.HandleFunc("/api/circulation", httpHandler.Circulate)
	mux.HandleFunc("/api/stock/add", httpHandler.AddStock)
	mux.HandleFunc("/api/transactions", httpHandler.ListTransactions)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		logg.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logg.Error("HTTP server error", "err", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logg.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logg.Info("HTTP server stopped")

	if rdb != nil {
		rdb.Close()
	}
	if db != nil {
		db.Close()
	}
	if fsClient != nil {
		fsClient.Close()
	}
	logg.Info("connections closed")
}
