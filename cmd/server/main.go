package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nekogravitycat/court-booking-engine/internal/api"
	"github.com/nekogravitycat/court-booking-engine/internal/app"
	"github.com/nekogravitycat/court-booking-engine/internal/config"
	"github.com/nekogravitycat/court-booking-engine/internal/db"
	"github.com/nekogravitycat/court-booking-engine/internal/events"
	"github.com/nekogravitycat/court-booking-engine/internal/kv"
	"github.com/nekogravitycat/court-booking-engine/internal/obs"
)

func main() {
	// For receiving Ctrl+C / SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("failed to load timezone: %v", err)
	}

	// Tracing
	shutdownTracer, err := obs.InitTracer(ctx, cfg.ServiceName, cfg.OTLPEndpoint, cfg.AppEnv)
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}

	// Migrate and connect DB
	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.DBDSN); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
	}
	pool, err := db.NewPool(ctx, cfg.DBDSN, cfg.DBMaxConns)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer pool.Close()

	// Shared lock/cache backend
	var backend kv.Backend
	switch cfg.KVBackend {
	case config.KVBackendMemory:
		log.Printf("using in-memory kv backend, locks are not shared between instances")
		backend = kv.NewMemory()
	default:
		backend, err = kv.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
	}
	defer backend.Close()

	// Event publisher
	var publisher events.Publisher = events.Nop{}
	if cfg.RabbitURL != "" {
		p, err := events.NewAMQPPublisher(cfg.RabbitURL, cfg.EventExchange)
		if err != nil {
			log.Fatalf("failed to connect to rabbitmq: %v", err)
		}
		publisher = p
	}
	defer publisher.Close()

	container := app.NewContainer(app.Config{
		IsProduction:        cfg.IsProduction(),
		ProdOrigins:         cfg.ProdOrigins,
		DBPool:              pool,
		KV:                  backend,
		Publisher:           publisher,
		JWTSecret:           cfg.JWTSecret,
		JWTIssuer:           cfg.JWTIssuer,
		JWTTTL:              cfg.JWTTTL,
		Location:            loc,
		LockTTL:             cfg.LockTTL,
		ConflictCacheTTL:    cfg.ConflictCacheTTL,
		ConflictCacheMargin: cfg.ConflictCacheMargin,
		StatsCacheTTL:       cfg.StatsCacheTTL,
		CancelCutoff:        cfg.CancelCutoff,
		SlotStride:          cfg.SlotStride,
		BulkConcurrency:     cfg.BulkConcurrency,
		Health:              map[string]api.Pinger{"db": pool},
	})

	// Use http.Server for graceful shutdown
	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: container.Router,
	}

	// Run server in separate goroutine
	go func() {
		log.Printf("server running on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Wait for Ctrl+C
	<-ctx.Done()
	log.Println("shutdown signal received")

	// Create a shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Printf("tracer shutdown: %v", err)
	}

	log.Println("server exited gracefully")
}
