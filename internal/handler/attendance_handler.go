package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/presence-go-api/internal/dto"
	"github.com/noah-isme/presence-go-api/internal/middleware"
	"github.com/noah-isme/presence-go-api/internal/service"
	"github.com/noah-isme/presence-go-api/internal/utils"
)

// AttendanceHandler exposes attendance records, stats and the justification workflow.
type AttendanceHandler struct {
	records        service.AttendanceQueryService
	stats          service.StatsService
	sweep          service.SweepService
	justifications service.JustificationService
	activity       service.ActivityService
	logger         zerolog.Logger
}

// AttendanceHandlerDeps groups the services the attendance routes depend on.
type AttendanceHandlerDeps struct {
	Records        service.AttendanceQueryService
	Stats          service.StatsService
	Sweep          service.SweepService
	Justifications service.JustificationService
	Activity       service.ActivityService
}

// NewAttendanceHandler constructs an attendance handler.
func NewAttendanceHandler(deps AttendanceHandlerDeps, logger zerolog.Logger) *AttendanceHandler {
	return &AttendanceHandler{
		records:        deps.Records,
		stats:          deps.Stats,
		sweep:          deps.Sweep,
		justifications: deps.Justifications,
		activity:       deps.Activity,
		logger:         logger.With().Str("component", "attendance_handler").Logger(),
	}
}

// Register binds the attendance routes.
func (h *AttendanceHandler) Register(router fiber.Router) {
	actor := middleware.AuthOptions{Role: middleware.AuthRoleActor}
	admin := middleware.AuthOptions{Role: middleware.AuthRoleAdmin}

	router.Get("/me", middleware.WithAuth(h.listMine, actor))
	router.Get("/me/stats", middleware.WithAuth(h.myStats, actor))
	router.Get("", middleware.WithAuth(h.list, admin))
	router.Get("/stats", middleware.WithAuth(h.queryStats, admin))
	router.Post("/sweep", middleware.WithAuth(h.runSweep, admin))
	router.Post("/:id/justification", middleware.WithAuth(h.submitJustification, middleware.AuthOptions{RequireUser: true}))
	router.Patch("/:id/review", middleware.WithAuth(h.review, admin))
	router.Get("/:id/history", middleware.WithAuth(h.history, admin))
}

func (h *AttendanceHandler) listMine(c *fiber.Ctx) error {
	var query dto.AttendanceQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	records, err := h.records.ListMine(requestContext(c), identityFromContext(c), query)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "attendance records", records)
}

func (h *AttendanceHandler) myStats(c *fiber.Ctx) error {
	identity := identityFromContext(c)
	stats, err := h.stats.ForActor(requestContext(c), identity.ActorID, c.Query("from"), c.Query("to"))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "attendance stats", stats)
}

func (h *AttendanceHandler) list(c *fiber.Ctx) error {
	var query dto.AttendanceQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	records, err := h.records.List(requestContext(c), identityFromContext(c), query)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "attendance records", records)
}

func (h *AttendanceHandler) queryStats(c *fiber.Ctx) error {
	var query dto.StatsQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	stats, err := h.stats.Query(requestContext(c), query)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "attendance stats", stats)
}

func (h *AttendanceHandler) runSweep(c *fiber.Ctx) error {
	var payload dto.SweepRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	result, err := h.sweep.Run(requestContext(c), identityFromContext(c), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "absence sweep completed", result)
}

func (h *AttendanceHandler) submitJustification(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	payload := dto.JustificationSubmitRequest{Justification: c.FormValue("justification")}

	// The attachment is optional; only a malformed multipart body is an error.
	document, err := c.FormFile("document")
	if err != nil {
		document = nil
	}

	record, err := h.justifications.Submit(requestContext(c), identityFromContext(c), id, payload, document)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "justification submitted", record)
}

func (h *AttendanceHandler) review(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.JustificationReviewRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	record, err := h.justifications.Review(requestContext(c), identityFromContext(c), id, payload)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "justification reviewed", record)
}

func (h *AttendanceHandler) history(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}

	entries, err := h.activity.History(requestContext(c), id, page, pageSize)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "justification history", entries)
}
