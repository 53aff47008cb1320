package service

import (
	"context"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/presence-go-api/internal/dto"
	"github.com/noah-isme/presence-go-api/internal/models"
	"github.com/noah-isme/presence-go-api/internal/repository"
)

// AttendanceQueryService reads records by actor, group and period.
type AttendanceQueryService interface {
	ListMine(ctx context.Context, identity Identity, query dto.AttendanceQuery) ([]dto.AttendanceRecordResponse, error)
	List(ctx context.Context, identity Identity, query dto.AttendanceQuery) ([]dto.AttendanceRecordResponse, error)
}

type attendanceQueryService struct {
	repo      repository.AttendanceRepository
	validator *validator.Validate
}

// NewAttendanceQueryService constructs the read side.
func NewAttendanceQueryService(repo repository.AttendanceRepository, validate *validator.Validate) AttendanceQueryService {
	return &attendanceQueryService{repo: repo, validator: validate}
}

func (s *attendanceQueryService) ListMine(ctx context.Context, identity Identity, query dto.AttendanceQuery) ([]dto.AttendanceRecordResponse, error) {
	if identity.ActorID == 0 {
		return nil, ErrForbidden
	}
	actorID := identity.ActorID
	query.ActorID = &actorID
	query.Group = ""
	return s.list(ctx, query)
}

func (s *attendanceQueryService) List(ctx context.Context, identity Identity, query dto.AttendanceQuery) ([]dto.AttendanceRecordResponse, error) {
	if !identity.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.list(ctx, query)
}

func (s *attendanceQueryService) list(ctx context.Context, query dto.AttendanceQuery) ([]dto.AttendanceRecordResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, err
	}

	from, to, err := normalizePeriod(query.From, query.To)
	if err != nil {
		return nil, err
	}

	filter := repository.AttendanceFilter{
		ActorID:   query.ActorID,
		GroupCode: query.Group,
		From:      from,
		To:        to,
	}
	if query.Status != nil {
		status := models.JustificationStatus(*query.Status)
		filter.Status = &status
	}

	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return dto.NewAttendanceRecordResponseSlice(records), nil
}
