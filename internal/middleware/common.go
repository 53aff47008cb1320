package middleware

import (
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
)

const accessLogFormat = "${time} | ${status} | ${latency} | ${method} ${path} | cid=${locals:correlation_id} station=${locals:station_id}\n"

// Config customises the middleware registration pipeline.
type Config struct {
	Logger *zerolog.Logger
	// AllowOrigins is a comma separated CORS origin list. Empty means "*".
	AllowOrigins string
	// AccessLog receives the plain access log. Defaults to stdout.
	AccessLog io.Writer
}

// Register attaches the middlewares shared by every route.
func Register(app *fiber.App, cfg Config) {
	requestLogger := zerolog.New(io.Discard)
	if cfg.Logger != nil {
		requestLogger = *cfg.Logger
	}

	origins := strings.TrimSpace(cfg.AllowOrigins)
	if origins == "" {
		origins = "*"
	}

	accessLog := logger.Config{Format: accessLogFormat}
	if cfg.AccessLog != nil {
		accessLog.Output = cfg.AccessLog
	}

	app.Use(recover.New())
	app.Use(CorrelationID())
	app.Use(Observability(requestLogger))
	app.Use(logger.New(accessLog))
	app.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, " + HeaderCorrelationID + ", " + HeaderStationID,
		AllowMethods:  "GET,POST,PATCH,OPTIONS",
		ExposeHeaders: HeaderCorrelationID,
	}))
}
