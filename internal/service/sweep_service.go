package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/presence-go-api/internal/dto"
	"github.com/noah-isme/presence-go-api/internal/models"
	"github.com/noah-isme/presence-go-api/internal/repository"
)

// SweepService creates absence records for active actors with no record on a day.
type SweepService interface {
	Run(ctx context.Context, identity Identity, req dto.SweepRequest) (dto.SweepResponse, error)
}

type sweepService struct {
	actors    repository.ActorRepository
	recorder  AttendanceService
	activity  ActivityRecorder
	schedule  DaySchedule
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewSweepService constructs the absence sweep. activity may be nil.
func NewSweepService(actors repository.ActorRepository, recorder AttendanceService, activity ActivityRecorder, schedule DaySchedule, validate *validator.Validate, logger zerolog.Logger) SweepService {
	return &sweepService{
		actors:    actors,
		recorder:  recorder,
		activity:  activity,
		schedule:  schedule,
		validator: validate,
		logger:    logger.With().Str("component", "sweep_service").Logger(),
		now:       time.Now,
	}
}

func (s *sweepService) Run(ctx context.Context, identity Identity, req dto.SweepRequest) (dto.SweepResponse, error) {
	if !identity.IsAdmin() {
		return dto.SweepResponse{}, ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.SweepResponse{}, err
	}

	day := req.Date
	if day == "" {
		day = s.schedule.Day(s.now())
	}

	var filter repository.ActorFilter
	if req.Kind != "" {
		kind := models.ActorKind(req.Kind)
		filter.Kind = &kind
	}

	actors, err := s.actors.ListActiveWithoutRecord(ctx, day, filter)
	if err != nil {
		return dto.SweepResponse{}, fmt.Errorf("list actors without record: %w", err)
	}

	response := dto.SweepResponse{Date: day}
	for _, actor := range actors {
		_, created, err := s.recorder.RecordAbsence(ctx, actor.ID, actor.Kind, day)
		if err != nil {
			return response, err
		}
		if created {
			response.Created++
		} else {
			response.Skipped++
		}
	}

	s.logger.Info().
		Str("date", day).
		Int("created", response.Created).
		Int("skipped", response.Skipped).
		Msg("absence sweep completed")

	if s.activity != nil {
		if _, err := s.activity.Record(ctx, ActivityEntry{
			ActorID:    identity.ActorID,
			ActorRole:  identity.Role,
			Action:     ActivityAbsenceSweep,
			EntityType: "attendance_day",
			Metadata: map[string]interface{}{
				"date":    day,
				"kind":    req.Kind,
				"created": response.Created,
				"skipped": response.Skipped,
			},
		}); err != nil {
			s.logger.Warn().Err(err).Msg("failed to record sweep activity")
		}
	}

	return response, nil
}
