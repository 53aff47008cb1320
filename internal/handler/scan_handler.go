package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/presence-go-api/internal/dto"
	"github.com/noah-isme/presence-go-api/internal/middleware"
	"github.com/noah-isme/presence-go-api/internal/service"
	"github.com/noah-isme/presence-go-api/internal/utils"
)

const liveFeedWriteTimeout = 5 * time.Second

// ScanHandler serves the scanning station endpoints.
type ScanHandler struct {
	scans  service.ScanService
	feed   service.ScanFeed
	logger zerolog.Logger
}

// NewScanHandler constructs a scan handler.
func NewScanHandler(scans service.ScanService, feed service.ScanFeed, logger zerolog.Logger) *ScanHandler {
	return &ScanHandler{
		scans:  scans,
		feed:   feed,
		logger: logger.With().Str("component", "scan_handler").Logger(),
	}
}

// Register binds the scan routes. limiter, when set, guards the ingest endpoints.
func (h *ScanHandler) Register(router fiber.Router, limiter fiber.Handler) {
	if limiter == nil {
		limiter = func(c *fiber.Ctx) error { return c.Next() }
	}

	router.Post("", limiter, h.ingest)
	router.Post("/meals", limiter, h.ingestMeal)

	if h.feed != nil {
		router.Use("/live", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				c.Locals("request_ctx", requestContext(c))
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		router.Get("/live", websocket.New(h.live))
	}
}

func (h *ScanHandler) ingest(c *fiber.Ctx) error {
	var payload dto.ScanRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.scans.Ingest(requestContext(c), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	status := fiber.StatusCreated
	message := "scan recorded"
	switch {
	case response.Ignored:
		status = fiber.StatusOK
		message = "scan ignored"
	case response.AlreadyScanned:
		status = fiber.StatusOK
		message = "already scanned"
	}

	return utils.SendSuccessWithStatus(c, status, message, response)
}

func (h *ScanHandler) ingestMeal(c *fiber.Ctx) error {
	var payload dto.MealScanRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.scans.IngestMeal(requestContext(c), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "meal recorded", response)
}

func (h *ScanHandler) live(conn *websocket.Conn) {
	ctx, _ := conn.Locals("request_ctx").(context.Context)
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, cleanup := h.feed.Subscribe()
	defer cleanup()

	logger := h.logger.With().
		Str("correlation_id", middleware.CorrelationIDFromContext(ctx)).
		Str("station_id", middleware.StationIDFromContext(ctx)).
		Interface("user_id", conn.Locals(middleware.LocalUserID)).
		Logger()
	logger.Info().Msg("live feed connected")
	defer logger.Info().Msg("live feed disconnected")

	// Stations only listen; a read error means the peer went away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(liveFeedWriteTimeout))
			if err := conn.WriteJSON(event); err != nil {
				logger.Debug().Err(err).Msg("failed to write live feed event")
				return
			}
		}
	}
}
