package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/presence-go-api/internal/config"
	"github.com/noah-isme/presence-go-api/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
	Timezone    string    `json:"timezone"`
	LateCutoff  string    `json:"late_cutoff"`
}

// HealthCheck returns a handler that reports application health and the
// attendance day settings the node is running with.
func HealthCheck(cfg config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		timezone := cfg.Timezone
		if loc, err := cfg.Location(); err == nil {
			timezone = loc.String()
		}

		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
			Timezone:    timezone,
			LateCutoff:  cfg.LateCutoff,
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}
