package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/khliao/invest-command/internal/api"
	"github.com/khliao/invest-command/internal/config"
	"github.com/khliao/invest-command/internal/database"
	"github.com/khliao/invest-command/internal/kafka"
	"github.com/khliao/invest-command/internal/models"
	"github.com/khliao/invest-command/internal/quote"
	"github.com/khliao/invest-command/internal/redis"
	"github.com/khliao/invest-command/internal/store"
	"github.com/khliao/invest-command/internal/valuation"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Pick the table-store backend
	tableStore, err := newStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize %s store: %v", cfg.Storage.Backend, err)
	}
	defer tableStore.Close()
	log.Printf("Table store ready (backend: %s)", cfg.Storage.Backend)

	// Connect to Redis
	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v (continuing without cache)", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
		log.Println("Connected to Redis cache")
	}

	// Quote client, valuator and the valuation snapshot holder
	var priceCache quote.PriceCache
	var mirror valuation.ContextMirror
	if redisClient != nil {
		priceCache = redisClient
		mirror = redisClient
	}
	quotes := quote.NewClient(cfg.Quote, priceCache)
	valuator := valuation.NewValuator(quotes, cfg.Quote.MaxParallel)
	holder := valuation.NewContextHolder(mirror)

	// Create Kafka producer
	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer producer.Close()
	log.Printf("Kafka producer initialized (brokers: %v)", cfg.Kafka.Brokers)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create and start Kafka consumer for executed trades
	tradesConsumer := kafka.NewTradesConsumer(
		cfg.Kafka.Brokers,
		cfg.Kafka.TradesTopic,
		cfg.Kafka.ConsumerGroup,
		tableStore,
	)
	go func() {
		log.Printf("Starting Kafka trades consumer for topic: %s (group: %s-trades)",
			cfg.Kafka.TradesTopic, cfg.Kafka.ConsumerGroup)
		if err := tradesConsumer.Start(ctx); err != nil {
			log.Printf("Kafka trades consumer error: %v", err)
		}
	}()

	// Create and start Kafka consumer for portfolio snapshots
	positionsConsumer := kafka.NewPositionsConsumer(
		cfg.Kafka.Brokers,
		cfg.Kafka.PositionsTopic,
		cfg.Kafka.ConsumerGroup,
		portfolioRepo{tableStore},
	)
	go func() {
		log.Printf("Starting Kafka positions consumer for topic: %s (group: %s-positions)",
			cfg.Kafka.PositionsTopic, cfg.Kafka.ConsumerGroup)
		if err := positionsConsumer.Start(ctx); err != nil {
			log.Printf("Kafka positions consumer error: %v", err)
		}
	}()

	// Set up HTTP handler and routes
	var cache api.CachePinger
	if redisClient != nil {
		cache = redisClient
	}
	handler := api.NewHandler(tableStore, quotes, valuator, holder, producer, cache,
		cfg.Thresholds, cfg.Quote.VIXSymbol)
	router := api.SetupRoutes(handler)

	// Create HTTP server
	addr := cfg.Server.Host + ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // a valuation pass waits on upstream quotes
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Cancel context to stop Kafka consumers
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	// Close Kafka consumers
	if err := tradesConsumer.Close(); err != nil {
		log.Printf("Error closing Kafka trades consumer: %v", err)
	}
	if err := positionsConsumer.Close(); err != nil {
		log.Printf("Error closing Kafka positions consumer: %v", err)
	}

	log.Println("Server stopped")
}

// newStore builds the configured table-store backend. The Postgres
// backend runs migrations first; the CSV backend just needs its
// directory.
func newStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendCSV:
		return store.NewCSVStore(cfg.Storage.CSVDir)
	default:
		db, err := database.New(cfg.Database.ConnectionString())
		if err != nil {
			return nil, err
		}
		if err := runMigrations(cfg.Database.ConnectionString()); err != nil {
			db.Close()
			return nil, err
		}
		log.Println("Connected to PostgreSQL database")
		return db, nil
	}
}

// portfolioRepo narrows the store to what the positions consumer
// needs; the CSV backend replaces via SavePositions.
type portfolioRepo struct {
	store.Store
}

func (r portfolioRepo) ReplacePositions(positions []models.Position) error {
	return r.SavePositions(positions)
}

func runMigrations(databaseUrl string) error {
	// The "file://" prefix tells the migrate library to use the file driver
	m, err := migrate.New(
		"file://./db/migrations",
		databaseUrl)
	if err != nil {
		return err
	}

	// Apply all available migrations up to the latest version
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}

	log.Println("Database migrations up to date")
	return nil
}
