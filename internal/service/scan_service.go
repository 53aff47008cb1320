package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/presence-go-api/internal/dto"
	"github.com/noah-isme/presence-go-api/internal/middleware"
	"github.com/noah-isme/presence-go-api/internal/models"
	"github.com/noah-isme/presence-go-api/internal/observability"
)

// ScanService resolves scanned codes and dispatches them to the recorder for the actor kind.
type ScanService interface {
	Ingest(ctx context.Context, req dto.ScanRequest) (dto.ScanResponse, error)
	IngestMeal(ctx context.Context, req dto.MealScanRequest) (dto.MealScanResponse, error)
}

type scanService struct {
	resolver  IdentityResolver
	learners  AttendanceService
	coaches   CheckInOutService
	meals     MealService
	feed      ScanFeed
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewScanService wires the ingestor. feed may be nil when no station listens.
func NewScanService(resolver IdentityResolver, learners AttendanceService, coaches CheckInOutService, meals MealService, feed ScanFeed, validate *validator.Validate, logger zerolog.Logger) ScanService {
	return &scanService{
		resolver:  resolver,
		learners:  learners,
		coaches:   coaches,
		meals:     meals,
		feed:      feed,
		validator: validate,
		logger:    logger.With().Str("component", "scan_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/presence-go-api/internal/service/scan"),
		now:       time.Now,
	}
}

func (s *scanService) Ingest(ctx context.Context, req dto.ScanRequest) (dto.ScanResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ScanResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "scans.ingest")
	defer span.End()

	actor, err := s.resolve(ctx, req.Payload, req.ID)
	if err != nil {
		s.fail(span, err, "resolve failed")
		return dto.ScanResponse{}, err
	}
	span.SetAttributes(
		attribute.Int("scan.actor_id", int(actor.ID)),
		attribute.String("scan.actor_kind", string(actor.Kind)),
	)

	timestamp := s.timestamp(req.ScannedAt)

	var result ScanResult
	switch actor.Kind {
	case models.ActorKindCoach:
		result, err = s.coaches.RecordScan(ctx, actor.ID, timestamp)
	case models.ActorKindLearner:
		result, err = s.learners.RecordScan(ctx, actor.ID, timestamp)
	default:
		err = ErrActorNotFound
	}
	if err != nil {
		s.fail(span, err, "record failed")
		return dto.ScanResponse{}, err
	}

	observability.Scans().WithLabelValues(string(actor.Kind), scanOutcome(result)).Inc()
	span.SetAttributes(
		attribute.String("scan.action", string(result.Action)),
		attribute.Bool("scan.already_scanned", result.AlreadyScanned),
	)
	span.SetStatus(codes.Ok, "recorded")

	s.logger.Info().
		Str("correlation_id", middleware.CorrelationIDFromContext(ctx)).
		Str("station_id", middleware.StationIDFromContext(ctx)).
		Uint("actor_id", actor.ID).
		Str("kind", string(actor.Kind)).
		Str("action", string(result.Action)).
		Bool("already_scanned", result.AlreadyScanned).
		Bool("late", result.IsLate).
		Msg("scan recorded")

	s.publish(ctx, actor, result, timestamp)

	return dto.ScanResponse{
		Actor:          scanActorSummary(actor),
		Action:         string(result.Action),
		AlreadyScanned: result.AlreadyScanned,
		Ignored:        result.Ignored,
		IsLate:         result.IsLate,
		Record:         dto.NewAttendanceRecordResponse(result.Record),
	}, nil
}

func (s *scanService) IngestMeal(ctx context.Context, req dto.MealScanRequest) (dto.MealScanResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.MealScanResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "scans.meal", trace.WithAttributes(attribute.String("meal.type", req.MealType)))
	defer span.End()

	actor, err := s.resolve(ctx, req.Payload, req.ID)
	if err != nil {
		s.fail(span, err, "resolve failed")
		return dto.MealScanResponse{}, err
	}
	if actor.Kind != models.ActorKindLearner {
		err := invalidField("payload", "meal scans are recorded for learners only")
		s.fail(span, err, "not a learner")
		return dto.MealScanResponse{}, err
	}

	scan, err := s.meals.RecordMeal(ctx, actor.ID, models.MealType(req.MealType), s.timestamp(req.ScannedAt))
	if err != nil {
		if errors.Is(err, ErrDuplicateScan) {
			observability.MealScans().WithLabelValues(req.MealType, "duplicate").Inc()
		}
		s.fail(span, err, "meal not recorded")
		return dto.MealScanResponse{}, err
	}

	observability.MealScans().WithLabelValues(string(scan.MealType), "recorded").Inc()
	span.SetStatus(codes.Ok, "recorded")

	return dto.MealScanResponse{
		ID:        scan.ID,
		Actor:     scanActorSummary(actor),
		Date:      scan.Date,
		MealType:  string(scan.MealType),
		ScannedAt: scan.ScannedAt,
	}, nil
}

func (s *scanService) resolve(ctx context.Context, payload, id string) (models.Actor, error) {
	var (
		code ScanCode
		err  error
	)
	if trimmed := strings.TrimSpace(id); trimmed != "" {
		code = ScanCode{ID: trimmed}
	} else if code, err = ParseScanPayload(payload); err != nil {
		return models.Actor{}, err
	}

	actor, err := s.resolver.Resolve(ctx, code)
	if err != nil {
		if errors.Is(err, ErrActorNotFound) {
			s.logger.Info().
				Str("station_id", middleware.StationIDFromContext(ctx)).
				Str("code", code.String()).
				Msg("unrecognized scan code")
		}
		return models.Actor{}, err
	}
	if !actor.Active {
		return models.Actor{}, ErrInactiveActor
	}
	return actor, nil
}

func (s *scanService) timestamp(scannedAt *time.Time) time.Time {
	if scannedAt != nil && !scannedAt.IsZero() {
		return *scannedAt
	}
	return s.now()
}

func (s *scanService) publish(ctx context.Context, actor models.Actor, result ScanResult, at time.Time) {
	if s.feed == nil {
		return
	}
	s.feed.Publish(ctx, dto.ScanEvent{
		ActorID:        actor.ID,
		Matricule:      actor.Matricule,
		FullName:       actor.FullName,
		Kind:           string(actor.Kind),
		Action:         string(result.Action),
		AlreadyScanned: result.AlreadyScanned,
		IsLate:         result.IsLate,
		Date:           result.Record.Date,
		StationID:      middleware.StationIDFromContext(ctx),
		OccurredAt:     at.UTC(),
	})
}

func (s *scanService) fail(span trace.Span, err error, description string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, description)
	if errors.Is(err, ErrActorNotFound) || errors.Is(err, ErrInactiveActor) {
		observability.Scans().WithLabelValues("unknown", "rejected").Inc()
	}
}

func scanOutcome(result ScanResult) string {
	switch {
	case result.Ignored:
		return "ignored"
	case result.AlreadyScanned:
		return "already_scanned"
	default:
		return string(result.Action)
	}
}

func scanActorSummary(actor models.Actor) dto.ScanActorSummary {
	return dto.ScanActorSummary{
		ID:        actor.ID,
		Matricule: actor.Matricule,
		FullName:  actor.FullName,
		Kind:      string(actor.Kind),
	}
}
