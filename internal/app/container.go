package app

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nekogravitycat/court-booking-engine/internal/api"
	"github.com/nekogravitycat/court-booking-engine/internal/auth"
	"github.com/nekogravitycat/court-booking-engine/internal/availability"
	"github.com/nekogravitycat/court-booking-engine/internal/booking"
	"github.com/nekogravitycat/court-booking-engine/internal/conflictcache"
	"github.com/nekogravitycat/court-booking-engine/internal/court"
	"github.com/nekogravitycat/court-booking-engine/internal/db"
	"github.com/nekogravitycat/court-booking-engine/internal/events"
	"github.com/nekogravitycat/court-booking-engine/internal/kv"
	"github.com/nekogravitycat/court-booking-engine/internal/lock"
	"github.com/nekogravitycat/court-booking-engine/internal/obs"
)

// Config holds the dependencies and settings required to start the application.
type Config struct {
	IsProduction bool
	ProdOrigins  string
	DBPool       db.Querier
	KV           kv.Backend
	Publisher    events.Publisher
	JWTSecret    string
	JWTIssuer    string
	JWTTTL       time.Duration
	Location     *time.Location

	// Stores default to the Postgres repositories over DBPool.
	BookingRepo booking.Repository
	CourtRepo   court.Repository

	LockTTL             time.Duration
	ConflictCacheTTL    time.Duration
	ConflictCacheMargin time.Duration
	StatsCacheTTL       time.Duration
	CancelCutoff        time.Duration
	SlotStride          time.Duration
	BulkConcurrency     int
	Now                 func() time.Time

	// Health lists extra dependencies probed by /healthz. The kv backend is always probed.
	Health map[string]api.Pinger
}

// Container holds the initialized components that are needed externally.
type Container struct {
	Router         *gin.Engine
	JWTManager     *auth.JWTManager
	BookingService booking.Service
	Resolver       *availability.Resolver
	Registry       *prometheus.Registry
}

// NewContainer initializes all modules and returns the container.
func NewContainer(cfg Config) *Container {
	// Init Components
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := obs.NewMetrics(registry)

	// Stores
	bookingRepo := cfg.BookingRepo
	if bookingRepo == nil {
		bookingRepo = booking.NewPgxRepository(cfg.DBPool)
	}
	courtRepo := cfg.CourtRepo
	if courtRepo == nil {
		courtRepo = court.NewPgxRepository(cfg.DBPool)
	}

	// Coordination
	lockManager := lock.NewManager(cfg.KV, cfg.LockTTL, metrics)
	cache := conflictcache.New(cfg.KV, conflictcache.Options{
		TTL:    cfg.ConflictCacheTTL,
		Margin: marginOption(cfg.ConflictCacheMargin),
	})

	// Availability Module
	resolver := availability.NewResolver(bookingRepo, courtRepo, cache, availability.Options{
		Stride:      cfg.SlotStride,
		Concurrency: cfg.BulkConcurrency,
		Now:         cfg.Now,
	}, metrics)

	// Booking Module
	bookingService := booking.NewService(booking.Dependencies{
		Repo:      bookingRepo,
		Courts:    courtRepo,
		Locks:     lockManager,
		Cache:     cache,
		Checker:   resolver,
		KV:        cfg.KV,
		Publisher: cfg.Publisher,
		Metrics:   metrics,
	}, booking.Options{
		CancelCutoff: cfg.CancelCutoff,
		StatsTTL:     cfg.StatsCacheTTL,
		Location:     cfg.Location,
		Now:          cfg.Now,
	})

	health := map[string]api.Pinger{"kv": cfg.KV}
	for name, p := range cfg.Health {
		health[name] = p
	}

	// Router
	router := api.NewRouter(api.Config{
		IsProduction:   cfg.IsProduction,
		ProdOrigins:    cfg.ProdOrigins,
		BookingService: bookingService,
		Resolver:       resolver,
		JWTManager:     jwtManager,
		Location:       cfg.Location,
		Registry:       registry,
		Health:         health,
	})

	return &Container{
		Router:         router,
		JWTManager:     jwtManager,
		BookingService: bookingService,
		Resolver:       resolver,
		Registry:       registry,
	}
}

// marginOption maps a configured margin to conflictcache options, where zero means default.
func marginOption(d time.Duration) time.Duration {
	if d == 0 {
		return -1
	}
	return d
}
