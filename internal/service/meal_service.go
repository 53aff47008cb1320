package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/presence-go-api/internal/models"
	"github.com/noah-isme/presence-go-api/internal/repository"
)

// MealService records at most one scan per learner, day and meal type.
type MealService interface {
	RecordMeal(ctx context.Context, learnerID uint, mealType models.MealType, timestamp time.Time) (models.MealScan, error)
	ListByDate(ctx context.Context, day string, mealType *models.MealType) ([]models.MealScan, error)
}

type mealService struct {
	repo     repository.MealScanRepository
	schedule DaySchedule
	logger   zerolog.Logger
}

// NewMealService constructs the meal recorder.
func NewMealService(repo repository.MealScanRepository, schedule DaySchedule, logger zerolog.Logger) MealService {
	return &mealService{
		repo:     repo,
		schedule: schedule,
		logger:   logger.With().Str("component", "meal_service").Logger(),
	}
}

func (s *mealService) RecordMeal(ctx context.Context, learnerID uint, mealType models.MealType, timestamp time.Time) (models.MealScan, error) {
	mealType = models.MealType(strings.ToUpper(strings.TrimSpace(string(mealType))))
	if !mealType.Valid() {
		return models.MealScan{}, invalidField("meal_type", "must be BREAKFAST or LUNCH")
	}

	scan := models.MealScan{
		LearnerID: learnerID,
		Date:      s.schedule.Day(timestamp),
		MealType:  mealType,
		ScannedAt: timestamp.UTC(),
	}

	created, err := s.repo.InsertIfAbsent(ctx, &scan)
	if err != nil {
		return models.MealScan{}, fmt.Errorf("record meal scan: %w", err)
	}
	if !created {
		s.logger.Debug().Uint("learner_id", learnerID).Str("meal_type", string(mealType)).Msg("duplicate meal scan")
		return models.MealScan{}, ErrDuplicateScan
	}
	return scan, nil
}

func (s *mealService) ListByDate(ctx context.Context, day string, mealType *models.MealType) ([]models.MealScan, error) {
	date, err := ParseDay(day)
	if err != nil {
		return nil, err
	}
	if mealType != nil && !mealType.Valid() {
		return nil, invalidField("meal_type", "must be BREAKFAST or LUNCH")
	}
	return s.repo.ListByDate(ctx, date, mealType)
}
