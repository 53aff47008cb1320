package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/presence-go-api/internal/models"
	"github.com/noah-isme/presence-go-api/internal/repository"
)

// ScanAction names what a scan did to the daily record.
type ScanAction string

const (
	ScanActionCheckIn  ScanAction = "checkin"
	ScanActionCheckOut ScanAction = "checkout"
	ScanActionNone     ScanAction = "none"
)

// ScanResult is returned by both recorders. AlreadyScanned is set when the day
// already had a record that the scan left untouched; Ignored marks a coach
// near-duplicate read.
type ScanResult struct {
	Record         models.AttendanceRecord
	Action         ScanAction
	AlreadyScanned bool
	Ignored        bool
	IsLate         bool
}

// AttendanceService records learner presence, one record per learner per day.
type AttendanceService interface {
	RecordScan(ctx context.Context, learnerID uint, timestamp time.Time) (ScanResult, error)
	RecordAbsence(ctx context.Context, actorID uint, kind models.ActorKind, day string) (models.AttendanceRecord, bool, error)
}

type attendanceService struct {
	repo     repository.AttendanceRepository
	schedule DaySchedule
	logger   zerolog.Logger
}

// NewAttendanceService constructs the learner recorder.
func NewAttendanceService(repo repository.AttendanceRepository, schedule DaySchedule, logger zerolog.Logger) AttendanceService {
	return &attendanceService{
		repo:     repo,
		schedule: schedule,
		logger:   logger.With().Str("component", "attendance_service").Logger(),
	}
}

func (s *attendanceService) RecordScan(ctx context.Context, learnerID uint, timestamp time.Time) (ScanResult, error) {
	scanTime := timestamp.UTC()
	isLate := s.schedule.IsLate(timestamp)
	status := models.JustificationNone
	if isLate {
		status = models.JustificationToJustify
	}

	record := models.AttendanceRecord{
		ActorID:             learnerID,
		ActorKind:           models.ActorKindLearner,
		Date:                s.schedule.Day(timestamp),
		IsPresent:           true,
		IsLate:              isLate,
		ScanTime:            &scanTime,
		JustificationStatus: status,
	}

	created, err := s.repo.InsertIfAbsent(ctx, &record)
	if err != nil {
		return ScanResult{}, fmt.Errorf("record learner scan: %w", err)
	}

	if !created {
		s.logger.Debug().Uint("learner_id", learnerID).Str("date", record.Date).Msg("learner already scanned today")
		return ScanResult{
			Record:         record,
			Action:         ScanActionNone,
			AlreadyScanned: true,
			IsLate:         record.IsLate,
		}, nil
	}

	return ScanResult{
		Record: record,
		Action: ScanActionCheckIn,
		IsLate: record.IsLate,
	}, nil
}

// RecordAbsence creates an absent record awaiting justification. An existing
// record for the day is returned unchanged with created=false.
func (s *attendanceService) RecordAbsence(ctx context.Context, actorID uint, kind models.ActorKind, day string) (models.AttendanceRecord, bool, error) {
	date, err := ParseDay(day)
	if err != nil {
		return models.AttendanceRecord{}, false, err
	}

	record := models.AttendanceRecord{
		ActorID:             actorID,
		ActorKind:           kind,
		Date:                date,
		IsPresent:           false,
		IsLate:              false,
		JustificationStatus: models.JustificationToJustify,
	}

	created, err := s.repo.InsertIfAbsent(ctx, &record)
	if err != nil {
		return models.AttendanceRecord{}, false, fmt.Errorf("record absence: %w", err)
	}
	return record, created, nil
}
