package models

import "time"

// MealType enumerates served meals tracked by the canteen scanner.
type MealType string

const (
	MealBreakfast MealType = "BREAKFAST"
	MealLunch     MealType = "LUNCH"
)

// Valid reports whether the meal type is one the canteen serves.
func (m MealType) Valid() bool {
	return m == MealBreakfast || m == MealLunch
}

// MealScan records that a learner was served a meal. (learner_id, date, meal_type) is unique.
type MealScan struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	LearnerID uint      `gorm:"not null;uniqueIndex:idx_meal_learner_day_type,priority:1" json:"learner_id"`
	Date      string    `gorm:"size:10;not null;uniqueIndex:idx_meal_learner_day_type,priority:2" json:"date"`
	MealType  MealType  `gorm:"size:16;not null;uniqueIndex:idx_meal_learner_day_type,priority:3" json:"meal_type"`
	ScannedAt time.Time `gorm:"not null" json:"scanned_at"`
	CreatedAt time.Time `json:"created_at"`
}
