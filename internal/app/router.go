package app

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"

	"shuttle/internal/domain"
	"shuttle/internal/handler"
	"shuttle/internal/metrics"
	"shuttle/internal/middleware"
	"shuttle/internal/redis"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	BookingHandler  *handler.BookingHandler
	TripHandler     *handler.TripHandler
	DriverHandler   *handler.DriverHandler
	ShuttleHandler  *handler.ShuttleHandler
	LocationHandler *handler.LocationHandler
	ScheduleHandler *handler.ScheduleHandler

	Sessions      middleware.TokenValidator
	ResponseCache redis.ResponseCacheInterface
	LiveFeed      http.HandlerFunc // websocket endpoint, optional
	Metrics       *metrics.Collector
	MetricsPath   string
	NewRelicApp   *newrelic.Application
	CORSOrigins   []string
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(cors.New(corsConfig(deps.CORSOrigins)))
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}
	if deps.Metrics != nil {
		router.Use(middleware.Metrics(deps.Metrics))
		path := deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, gin.WrapH(deps.Metrics.Handler()))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// The hub authenticates the upgrade itself; browsers cannot set headers on it.
	if deps.LiveFeed != nil {
		router.GET("/ws", gin.WrapF(deps.LiveFeed))
	}

	authed := router.Group("")
	authed.Use(middleware.Auth(deps.Sessions), middleware.NewRelicActor(), middleware.Idempotency(deps.ResponseCache))

	api := authed.Group("/api")
	{
		bookings := api.Group("/bookings")
		{
			bookings.POST("", deps.BookingHandler.Create)
			bookings.GET("", deps.BookingHandler.List)
			bookings.POST("/confirm", deps.BookingHandler.Confirm)
			bookings.POST("/reject", deps.BookingHandler.Reject)
			bookings.GET("/:id", deps.BookingHandler.Get)
			bookings.POST("/:id/cancel", deps.BookingHandler.Cancel)
			bookings.PUT("/:id/payment", deps.BookingHandler.UpdatePayment)
			bookings.POST("/:id/unwaive", deps.BookingHandler.Unwaive)
			bookings.GET("/:id/events", deps.BookingHandler.Events)
			bookings.GET("/:id/qr", deps.BookingHandler.QR)
			bookings.GET("/:id/receipt", deps.BookingHandler.Receipt)
		}

		instances := api.Group("/trip-instances")
		{
			instances.GET("", deps.TripHandler.List)
			instances.POST("/materialize", deps.TripHandler.Materialize)
			instances.GET("/:id", deps.TripHandler.Get)
			instances.POST("/:id/cancel", deps.TripHandler.Cancel)
		}

		trips := api.Group("/trips")
		{
			trips.POST("", deps.ScheduleHandler.Create)
			trips.GET("", deps.ScheduleHandler.List)
			trips.GET("/:id", deps.ScheduleHandler.Get)
			trips.PUT("/:id", deps.ScheduleHandler.Update)
			trips.DELETE("/:id", deps.ScheduleHandler.Delete)
		}

		shuttles := api.Group("/shuttles")
		{
			shuttles.POST("", deps.ShuttleHandler.Create)
			shuttles.GET("", deps.ShuttleHandler.List)
			shuttles.GET("/:id", deps.ShuttleHandler.Get)
			shuttles.PUT("/:id", deps.ShuttleHandler.Update)
			shuttles.DELETE("/:id", deps.ShuttleHandler.Delete)
		}

		assignments := api.Group("/assignments")
		{
			assignments.POST("", deps.ShuttleHandler.Assign)
			assignments.GET("", deps.ShuttleHandler.Assignments)
			assignments.DELETE("/:driverId", deps.ShuttleHandler.Unassign)
		}

		locations := api.Group("/locations")
		{
			locations.POST("", deps.LocationHandler.Create)
			locations.GET("", deps.LocationHandler.List)
			locations.POST("/import", deps.LocationHandler.Import)
			locations.GET("/:id", deps.LocationHandler.Get)
			locations.PATCH("/:id", deps.LocationHandler.Update)
			locations.DELETE("/:id", deps.LocationHandler.Delete)
		}
	}

	// Driver app.
	driverOnly := middleware.RequireRoles(domain.RoleDriver)
	driverTrips := authed.Group("/trips", driverOnly)
	{
		driverTrips.GET("/current", deps.TripHandler.Current)
		driverTrips.GET("/available", deps.TripHandler.Available)
		driverTrips.POST("/start", deps.TripHandler.Start)
		driverTrips.POST("/:id/end", deps.TripHandler.End)
		driverTrips.POST("/:id/transition", deps.TripHandler.Transition)
		driverTrips.POST("/legs/:routeId/complete", deps.TripHandler.CompleteLeg)
		driverTrips.POST("/legs/:routeId/skip", deps.TripHandler.SkipLeg)
	}

	driver := authed.Group("/driver", driverOnly)
	{
		driver.POST("/check-qr", deps.DriverHandler.CheckQR)
		driver.POST("/confirm-checkin", deps.DriverHandler.ConfirmCheckIn)
		driver.POST("/location", deps.DriverHandler.UpdateLocation)
		driver.GET("/shuttles", deps.DriverHandler.AvailableShuttles)
		driver.POST("/shuttle", deps.DriverHandler.SelectShuttle)
		driver.DELETE("/shuttle", deps.DriverHandler.ReleaseShuttle)
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type", "Idempotency-Key"},
		ExposeHeaders: []string{"Content-Disposition", "Idempotent-Replay"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
