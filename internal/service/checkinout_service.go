package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/presence-go-api/internal/models"
	"github.com/noah-isme/presence-go-api/internal/repository"
)

// DefaultCheckoutMinGap is the shortest accepted interval between check-in and check-out.
const DefaultCheckoutMinGap = 60 * time.Second

// CheckInOutService toggles a coach through NotArrived, CheckedIn and Completed.
type CheckInOutService interface {
	RecordScan(ctx context.Context, coachID uint, timestamp time.Time) (ScanResult, error)
}

type checkInOutService struct {
	repo     repository.AttendanceRepository
	schedule DaySchedule
	minGap   time.Duration
	logger   zerolog.Logger
}

// NewCheckInOutService constructs the coach recorder.
func NewCheckInOutService(repo repository.AttendanceRepository, schedule DaySchedule, minGap time.Duration, logger zerolog.Logger) CheckInOutService {
	if minGap <= 0 {
		minGap = DefaultCheckoutMinGap
	}
	return &checkInOutService{
		repo:     repo,
		schedule: schedule,
		minGap:   minGap,
		logger:   logger.With().Str("component", "checkinout_service").Logger(),
	}
}

func (s *checkInOutService) RecordScan(ctx context.Context, coachID uint, timestamp time.Time) (ScanResult, error) {
	day := s.schedule.Day(timestamp)

	var current *models.AttendanceRecord
	existing, err := s.repo.GetByActorAndDate(ctx, coachID, day)
	switch {
	case err == nil:
		current = &existing
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return ScanResult{}, fmt.Errorf("load coach record: %w", err)
	}

	switch models.CoachStateOf(current) {
	case models.CoachNotArrived:
		if current != nil {
			// an absence row from the sweep closes the day
			return alreadyScanned(*current), nil
		}
		return s.checkIn(ctx, coachID, day, timestamp)
	case models.CoachCheckedIn:
		return s.checkOut(ctx, *current, timestamp)
	default:
		return alreadyScanned(*current), nil
	}
}

func (s *checkInOutService) checkIn(ctx context.Context, coachID uint, day string, timestamp time.Time) (ScanResult, error) {
	checkIn := timestamp.UTC()
	isLate := s.schedule.IsLate(timestamp)
	status := models.JustificationNone
	if isLate {
		status = models.JustificationToJustify
	}

	record := models.AttendanceRecord{
		ActorID:             coachID,
		ActorKind:           models.ActorKindCoach,
		Date:                day,
		IsPresent:           true,
		IsLate:              isLate,
		CheckIn:             &checkIn,
		JustificationStatus: status,
	}

	created, err := s.repo.InsertIfAbsent(ctx, &record)
	if err != nil {
		return ScanResult{}, fmt.Errorf("record coach check-in: %w", err)
	}
	if created {
		return ScanResult{Record: record, Action: ScanActionCheckIn, IsLate: record.IsLate}, nil
	}

	// lost the race against a concurrent first scan; act on the stored row
	if models.CoachStateOf(&record) == models.CoachCheckedIn {
		return s.checkOut(ctx, record, timestamp)
	}
	return alreadyScanned(record), nil
}

func (s *checkInOutService) checkOut(ctx context.Context, record models.AttendanceRecord, timestamp time.Time) (ScanResult, error) {
	checkOut := timestamp.UTC()
	if checkOut.Before(*record.CheckIn) || checkOut.Sub(*record.CheckIn) < s.minGap {
		s.logger.Debug().
			Uint("coach_id", record.ActorID).
			Dur("since_check_in", checkOut.Sub(*record.CheckIn)).
			Msg("ignoring near-duplicate coach scan")
		return ScanResult{Record: record, Action: ScanActionNone, Ignored: true, IsLate: record.IsLate}, nil
	}

	updated, err := s.repo.SetCheckOut(ctx, record.ID, checkOut)
	if err != nil {
		return ScanResult{}, fmt.Errorf("record coach check-out: %w", err)
	}

	stored, err := s.repo.GetByID(ctx, record.ID)
	if err != nil {
		return ScanResult{}, fmt.Errorf("reload coach record: %w", err)
	}
	if !updated {
		return alreadyScanned(stored), nil
	}

	return ScanResult{Record: stored, Action: ScanActionCheckOut, IsLate: stored.IsLate}, nil
}

func alreadyScanned(record models.AttendanceRecord) ScanResult {
	return ScanResult{
		Record:         record,
		Action:         ScanActionNone,
		AlreadyScanned: true,
		IsLate:         record.IsLate,
	}
}
