package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/presence-go-api/internal/models"
)

// MealScanRepository persists canteen scans.
type MealScanRepository interface {
	// InsertIfAbsent reports false when (learner, date, meal type) was already recorded.
	InsertIfAbsent(ctx context.Context, scan *models.MealScan) (bool, error)
	ListByDate(ctx context.Context, date string, mealType *models.MealType) ([]models.MealScan, error)
}

type mealScanRepository struct {
	db *gorm.DB
}

// NewMealScanRepository instantiates the repository.
func NewMealScanRepository(db *gorm.DB) MealScanRepository {
	return &mealScanRepository{db: db}
}

func (r *mealScanRepository) InsertIfAbsent(ctx context.Context, scan *models.MealScan) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "learner_id"}, {Name: "date"}, {Name: "meal_type"}},
		DoNothing: true,
	}).Create(scan)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *mealScanRepository) ListByDate(ctx context.Context, date string, mealType *models.MealType) ([]models.MealScan, error) {
	query := r.db.WithContext(ctx).Where("date = ?", date)
	if mealType != nil {
		query = query.Where("meal_type = ?", *mealType)
	}

	var scans []models.MealScan
	if err := query.Order("scanned_at ASC").Find(&scans).Error; err != nil {
		return nil, err
	}
	return scans, nil
}
