package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/presence-go-api/internal/models"
)

// ActorFilter narrows directory reads.
type ActorFilter struct {
	Kind      *models.ActorKind
	GroupCode string
}

// ActorRepository reads the learner/coach directory.
type ActorRepository interface {
	FindByID(ctx context.Context, id uint) (models.Actor, error)
	FindByMatricule(ctx context.Context, matricule string) (models.Actor, error)
	ListActive(ctx context.Context, filter ActorFilter) ([]models.Actor, error)
	ListActiveWithoutRecord(ctx context.Context, date string, filter ActorFilter) ([]models.Actor, error)
}

type actorRepository struct {
	db *gorm.DB
}

// NewActorRepository instantiates the directory reader.
func NewActorRepository(db *gorm.DB) ActorRepository {
	return &actorRepository{db: db}
}

func (r *actorRepository) FindByID(ctx context.Context, id uint) (models.Actor, error) {
	var actor models.Actor
	if err := r.db.WithContext(ctx).First(&actor, id).Error; err != nil {
		return models.Actor{}, err
	}
	return actor, nil
}

func (r *actorRepository) FindByMatricule(ctx context.Context, matricule string) (models.Actor, error) {
	var actor models.Actor
	if err := r.db.WithContext(ctx).Where("matricule = ?", matricule).First(&actor).Error; err != nil {
		return models.Actor{}, err
	}
	return actor, nil
}

func (r *actorRepository) activeQuery(ctx context.Context, filter ActorFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.Actor{}).Where("actors.active = ?", true)
	if filter.Kind != nil {
		query = query.Where("actors.kind = ?", *filter.Kind)
	}
	if filter.GroupCode != "" {
		query = query.Where("actors.group_code = ?", filter.GroupCode)
	}
	return query
}

func (r *actorRepository) ListActive(ctx context.Context, filter ActorFilter) ([]models.Actor, error) {
	var actors []models.Actor
	if err := r.activeQuery(ctx, filter).Order("actors.id ASC").Find(&actors).Error; err != nil {
		return nil, err
	}
	return actors, nil
}

func (r *actorRepository) ListActiveWithoutRecord(ctx context.Context, date string, filter ActorFilter) ([]models.Actor, error) {
	sub := r.db.Model(&models.AttendanceRecord{}).
		Select("1").
		Where("attendance_records.actor_id = actors.id AND attendance_records.date = ?", date)

	var actors []models.Actor
	if err := r.activeQuery(ctx, filter).
		Where("NOT EXISTS (?)", sub).
		Order("actors.id ASC").
		Find(&actors).Error; err != nil {
		return nil, err
	}
	return actors, nil
}
