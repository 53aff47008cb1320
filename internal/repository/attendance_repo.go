package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/presence-go-api/internal/models"
)

// AttendanceFilter narrows attendance record queries.
type AttendanceFilter struct {
	ActorID   *uint
	ActorKind *models.ActorKind
	GroupCode string
	From      string
	To        string
	Status    *models.JustificationStatus
}

// RecordSetRevision identifies the state of a filtered record set. Rows are
// never deleted and only check_out changes after insert, so both counters only grow.
type RecordSetRevision struct {
	Records    int64 `gorm:"column:records"`
	CheckedOut int64 `gorm:"column:checked_out"`
}

// AttendanceRepository persists daily attendance records.
type AttendanceRepository interface {
	// InsertIfAbsent creates the record unless one already exists for (actor, date).
	// On conflict the stored row is loaded into record and created is false.
	InsertIfAbsent(ctx context.Context, record *models.AttendanceRecord) (bool, error)
	GetByID(ctx context.Context, id uint) (models.AttendanceRecord, error)
	GetByActorAndDate(ctx context.Context, actorID uint, date string) (models.AttendanceRecord, error)
	// SetCheckOut stores the checkout only while it is still empty.
	SetCheckOut(ctx context.Context, id uint, checkOut time.Time) (bool, error)
	// TransitionStatus applies updates only if the stored status is still one of from.
	TransitionStatus(ctx context.Context, id uint, from []models.JustificationStatus, updates map[string]interface{}) (bool, error)
	List(ctx context.Context, filter AttendanceFilter) ([]models.AttendanceRecord, error)
	Revision(ctx context.Context, filter AttendanceFilter) (RecordSetRevision, error)
}

type attendanceRepository struct {
	db *gorm.DB
}

// NewAttendanceRepository instantiates the repository.
func NewAttendanceRepository(db *gorm.DB) AttendanceRepository {
	return &attendanceRepository{db: db}
}

func (r *attendanceRepository) InsertIfAbsent(ctx context.Context, record *models.AttendanceRecord) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "actor_id"}, {Name: "date"}},
		DoNothing: true,
	}).Create(record)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	existing, err := r.GetByActorAndDate(ctx, record.ActorID, record.Date)
	if err != nil {
		return false, err
	}
	*record = existing
	return false, nil
}

func (r *attendanceRepository) GetByID(ctx context.Context, id uint) (models.AttendanceRecord, error) {
	var record models.AttendanceRecord
	if err := r.db.WithContext(ctx).First(&record, id).Error; err != nil {
		return models.AttendanceRecord{}, err
	}
	return record, nil
}

func (r *attendanceRepository) GetByActorAndDate(ctx context.Context, actorID uint, date string) (models.AttendanceRecord, error) {
	var record models.AttendanceRecord
	if err := r.db.WithContext(ctx).
		Where("actor_id = ? AND date = ?", actorID, date).
		First(&record).Error; err != nil {
		return models.AttendanceRecord{}, err
	}
	return record, nil
}

func (r *attendanceRepository) SetCheckOut(ctx context.Context, id uint, checkOut time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.AttendanceRecord{}).
		Where("id = ? AND check_in IS NOT NULL AND check_out IS NULL", id).
		Update("check_out", checkOut)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *attendanceRepository) TransitionStatus(ctx context.Context, id uint, from []models.JustificationStatus, updates map[string]interface{}) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.AttendanceRecord{}).
		Where("id = ? AND justification_status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *attendanceRepository) filtered(ctx context.Context, filter AttendanceFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.AttendanceRecord{})

	if filter.ActorID != nil {
		query = query.Where("attendance_records.actor_id = ?", *filter.ActorID)
	}
	if filter.ActorKind != nil {
		query = query.Where("attendance_records.actor_kind = ?", *filter.ActorKind)
	}
	if filter.GroupCode != "" {
		query = query.Joins("JOIN actors ON actors.id = attendance_records.actor_id").
			Where("actors.group_code = ?", filter.GroupCode)
	}
	if filter.From != "" {
		query = query.Where("attendance_records.date >= ?", filter.From)
	}
	if filter.To != "" {
		query = query.Where("attendance_records.date <= ?", filter.To)
	}
	if filter.Status != nil {
		query = query.Where("attendance_records.justification_status = ?", *filter.Status)
	}
	return query
}

func (r *attendanceRepository) List(ctx context.Context, filter AttendanceFilter) ([]models.AttendanceRecord, error) {
	query := r.filtered(ctx, filter)

	var records []models.AttendanceRecord
	if err := query.Order("attendance_records.date DESC, attendance_records.id DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *attendanceRepository) Revision(ctx context.Context, filter AttendanceFilter) (RecordSetRevision, error) {
	var revision RecordSetRevision
	err := r.filtered(ctx, filter).
		Select("COUNT(*) AS records, COUNT(attendance_records.check_out) AS checked_out").
		Scan(&revision).Error
	if err != nil {
		return RecordSetRevision{}, err
	}
	return revision, nil
}
