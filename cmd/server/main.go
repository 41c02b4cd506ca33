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

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"shuttle/internal/app"
	"shuttle/internal/auth"
	"shuttle/internal/config"
	"shuttle/internal/events"
	"shuttle/internal/handler"
	"shuttle/internal/live"
	"shuttle/internal/metrics"
	"shuttle/internal/repository"
	"shuttle/internal/repository/memory"
	"shuttle/internal/repository/postgres"
	"shuttle/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// New Relic comes first so the database and Redis clients are instrumented.
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Printf("failed to initialize New Relic: %v", err)
		} else {
			log.Printf("New Relic enabled: app=%s (with DB instrumentation)", cfg.NewRelic.AppName)
		}
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector()
	}

	var store repository.Store
	switch cfg.Storage.Driver {
	case "memory":
		store = memory.NewStore()
		log.Println("Using in-memory storage; data is lost on restart")
	default:
		db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		defer db.Close()
		log.Println("Connected to PostgreSQL")
		migrate(ctx, db, cfg.Database.AutoMigrate)
		store = postgres.NewStore(db)
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = app.NewRedisClient(ctx, cfg.Redis, nrApp)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		log.Println("Connected to Redis")
	} else {
		log.Println("REDIS_ADDR not set; using in-process stores (single replica only)")
	}

	sessions := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	hub := live.NewHub(sessions, collector, cfg.Server.CORSOrigins)
	defer hub.Close()

	publishers := []events.Publisher{hub}
	if cfg.NATS.URL != "" {
		nats, err := events.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix, collector)
		if err != nil {
			log.Printf("NATS unavailable, events go to the live feed only: %v", err)
		} else {
			defer nats.Close()
			publishers = append(publishers, nats)
			log.Printf("Publishing events to NATS under %q", cfg.NATS.SubjectPrefix)
		}
	}

	server := wireServer(cfg, store, app.NewStores(redisClient), sessions, hub, publishers, collector, nrApp)

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	log.Println("Server exited")
}

func migrate(ctx context.Context, db *sql.DB, enabled bool) {
	if !enabled {
		return
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}
	log.Println("Database migrations applied")
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(
	cfg *config.Config,
	store repository.Store,
	stores app.Stores,
	sessions *auth.JWTService,
	hub *live.Hub,
	publishers []events.Publisher,
	collector *metrics.Collector,
	nrApp *newrelic.Application,
) *http.Server {
	loc := cfg.Operations.Location
	signer := auth.NewQRSigner(cfg.CheckIn.QRSecret)

	// Initialize services.
	notificationService := service.NewNotificationService(collector, publishers...)
	locationService := service.NewLocationService(store)
	scheduleService := service.NewScheduleService(store)
	shuttleService := service.NewShuttleService(store, stores.Locks, stores.Positions, notificationService, loc, cfg.Operations.AssignLockTTL)
	tripService := service.NewTripService(store, stores.Positions, stores.Views, notificationService, collector, service.TripSettings{
		Location:        loc,
		StartLead:       cfg.Operations.TripStartLead,
		AverageSpeedKmh: cfg.Operations.AverageSpeedKmh,
	})
	bookingService := service.NewBookingService(store, stores.Views, notificationService, collector)
	checkInService := service.NewCheckInService(store, stores.Handles, signer, stores.Views, notificationService, collector, cfg.CheckIn.HandleTTL)
	receiptService := service.NewReceiptService(store, loc)

	router := app.NewRouter(app.RouterDeps{
		BookingHandler:  handler.NewBookingHandler(bookingService, checkInService, receiptService),
		TripHandler:     handler.NewTripHandler(tripService, loc),
		DriverHandler:   handler.NewDriverHandler(checkInService, shuttleService),
		ShuttleHandler:  handler.NewShuttleHandler(shuttleService),
		LocationHandler: handler.NewLocationHandler(locationService),
		ScheduleHandler: handler.NewScheduleHandler(scheduleService),
		Sessions:        sessions,
		ResponseCache:   stores.Responses,
		LiveFeed:        hub.ServeWS,
		Metrics:         collector,
		MetricsPath:     cfg.Metrics.Path,
		NewRelicApp:     nrApp,
		CORSOrigins:     cfg.Server.CORSOrigins,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
