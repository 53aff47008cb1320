package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	// HeaderCorrelationID carries the request correlation identifier.
	HeaderCorrelationID = "X-Correlation-ID"
	// HeaderStationID is sent by scanning stations to name the device.
	HeaderStationID = "X-Station-ID"

	LocalCorrelationID = "correlation_id"
	LocalStationID     = "station_id"

	maxTraceValueLength = 64
)

type traceKey int

const (
	correlationKey traceKey = iota
	stationKey
)

// CorrelationID tags every request with a correlation id and, for scanning
// stations, the station id. Malformed incoming values are replaced or dropped.
func CorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		correlationID := traceValue(c.Get(HeaderCorrelationID))
		if correlationID == "" {
			correlationID = traceValue(c.Get("X-Request-ID"))
		}
		if correlationID == "" {
			correlationID = uuid.NewString()
		}

		c.Locals(LocalCorrelationID, correlationID)
		c.Set(HeaderCorrelationID, correlationID)

		ctx := ContextWithCorrelation(c.UserContext(), correlationID)
		if stationID := traceValue(c.Get(HeaderStationID)); stationID != "" {
			c.Locals(LocalStationID, stationID)
			ctx = context.WithValue(ctx, stationKey, stationID)
		}
		c.SetUserContext(ctx)

		return c.Next()
	}
}

// traceValue accepts short identifiers made of letters, digits, dot, dash,
// underscore and colon. Anything else would end up verbatim in log lines.
func traceValue(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" || len(value) > maxTraceValueLength {
		return ""
	}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.', r == ':':
		default:
			return ""
		}
	}
	return value
}

// CorrelationIDFromContext extracts the correlation identifier from context, if present.
func CorrelationIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, correlationKey)
}

// StationIDFromContext returns the scanning station bound to ctx, if any.
func StationIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, stationKey)
}

func stringFromContext(ctx context.Context, key traceKey) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(key).(string); ok {
		return id
	}
	return ""
}

// GetCorrelationID returns the correlation identifier bound to the active request.
func GetCorrelationID(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	if id, ok := c.Locals(LocalCorrelationID).(string); ok {
		return id
	}
	return CorrelationIDFromContext(c.UserContext())
}

// GetStationID returns the station id the request was sent from.
func GetStationID(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	id, _ := c.Locals(LocalStationID).(string)
	return id
}

// ContextWithCorrelation attaches the correlation identifier to the provided context.
func ContextWithCorrelation(ctx context.Context, correlationID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(correlationID) == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey, strings.TrimSpace(correlationID))
}
