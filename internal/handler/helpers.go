package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/presence-go-api/internal/middleware"
	"github.com/noah-isme/presence-go-api/internal/service"
	"github.com/noah-isme/presence-go-api/internal/utils"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func parseQueryUint(c *fiber.Ctx, key string) (*uint, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return nil, err
	}
	result := uint(parsed)
	return &result, nil
}

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	value := strings.TrimSpace(c.Params(name))
	if value == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return uint(parsed), nil
}

func userIDFromContext(c *fiber.Ctx) uint {
	if v := c.Locals(middleware.LocalUserID); v != nil {
		if id, ok := v.(uint); ok {
			return id
		}
		if id, ok := v.(int); ok {
			if id < 0 {
				return 0
			}
			return uint(id)
		}
	}
	return 0
}

func userRoleFromContext(c *fiber.Ctx) string {
	if v := c.Locals(middleware.LocalUserRole); v != nil {
		if role, ok := v.(string); ok {
			return role
		}
	}
	return ""
}

func userIDStringFromContext(c *fiber.Ctx) string {
	id := userIDFromContext(c)
	if id == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(id), 10)
}

func identityFromContext(c *fiber.Ctx) service.Identity {
	return service.Identity{
		ActorID: userIDFromContext(c),
		Role:    userRoleFromContext(c),
	}
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c == nil {
		return &logger
	}
	fields := logger.With()
	if correlation := middleware.GetCorrelationID(c); correlation != "" {
		fields = fields.Str("correlation_id", correlation)
	}
	if station := middleware.GetStationID(c); station != "" {
		fields = fields.Str("station_id", station)
	}
	logger = fields.Logger()
	return &logger
}

// sendServiceError maps engine errors onto HTTP statuses. Unknown errors are
// logged and hidden behind a generic 500.
func sendServiceError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	var (
		validationErrors validator.ValidationErrors
		fieldError       *service.ValidationError
		stateError       *service.InvalidStateError
	)

	switch {
	case errors.As(err, &validationErrors):
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(validationErrors))
	case errors.As(err, &fieldError):
		return utils.Fail(c, fiber.StatusBadRequest, fieldError.Error(), fiber.Map{fieldError.Field: fieldError.Message})
	case errors.Is(err, service.ErrValidation):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrActorNotFound):
		return utils.SendError(c, fiber.StatusNotFound, service.ErrActorNotFound.Error())
	case errors.Is(err, service.ErrRecordNotFound):
		return utils.SendError(c, fiber.StatusNotFound, service.ErrRecordNotFound.Error())
	case errors.Is(err, service.ErrInactiveActor):
		return utils.SendError(c, fiber.StatusForbidden, service.ErrInactiveActor.Error())
	case errors.Is(err, service.ErrForbidden):
		return utils.SendError(c, fiber.StatusForbidden, service.ErrForbidden.Error())
	case errors.As(err, &stateError):
		return utils.Fail(c, fiber.StatusConflict, stateError.Error(), fiber.Map{"status": string(stateError.Current)})
	case errors.Is(err, service.ErrDuplicateScan):
		return utils.SendError(c, fiber.StatusConflict, service.ErrDuplicateScan.Error())
	case errors.Is(err, service.ErrStorageUnavailable):
		return utils.SendError(c, fiber.StatusServiceUnavailable, service.ErrStorageUnavailable.Error())
	default:
		requestLogger(logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

func validationDetails(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fieldErr := range errs {
		details[strings.ToLower(fieldErr.Field())] = fieldErr.Tag()
	}
	return details
}
