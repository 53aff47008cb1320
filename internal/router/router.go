package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/presence-go-api/internal/config"
	"github.com/noah-isme/presence-go-api/internal/handler"
	"github.com/noah-isme/presence-go-api/internal/middleware"
	"github.com/noah-isme/presence-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ScanHandler         *handler.ScanHandler
	AttendanceHandler   *handler.AttendanceHandler
	NotificationHandler *handler.NotificationHandler
	JWTMiddleware       fiber.Handler
	ScanLimiter         fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	scanLimiter := deps.ScanLimiter
	if scanLimiter == nil && cfg.ScanRateLimit > 0 {
		scanLimiter = middleware.RateLimit("scans", cfg.ScanRateLimit, time.Minute)
	}

	// Scanning stations
	if deps.ScanHandler != nil {
		scans := api.Group("/scans", jwtMiddleware, middleware.RequireRole("station", "admin"))
		deps.ScanHandler.Register(scans, scanLimiter)
	}

	// Attendance records, stats & justifications
	if deps.AttendanceHandler != nil {
		attendance := api.Group("/attendance", jwtMiddleware)
		deps.AttendanceHandler.Register(attendance)
	}

	// Notifications
	if deps.NotificationHandler != nil {
		notifications := api.Group("/notifications", jwtMiddleware)
		deps.NotificationHandler.Register(notifications)
	}
}
