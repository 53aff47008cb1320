package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/presence-go-api/internal/dto"
	"github.com/noah-isme/presence-go-api/internal/models"
	"github.com/noah-isme/presence-go-api/internal/repository"
)

// Aggregate summarises a record set. Late arrivals count as attended in the rate.
func Aggregate(records []models.AttendanceRecord) dto.AttendanceStats {
	var stats dto.AttendanceStats
	for _, record := range records {
		switch {
		case !record.IsPresent:
			stats.Absent++
		case record.IsLate:
			stats.Late++
		default:
			stats.Present++
		}

		if record.CheckIn != nil && record.CheckOut != nil {
			stats.CompletedDays++
			stats.TotalHoursWorked += record.HoursWorked()
		}
	}

	stats.Total = stats.Present + stats.Late + stats.Absent
	if stats.Total > 0 {
		stats.AttendanceRate = int(math.Round(float64(stats.Present+stats.Late) / float64(stats.Total) * 100))
	}
	if stats.CompletedDays > 0 {
		stats.AverageHoursPerDay = roundHours(stats.TotalHoursWorked / float64(stats.CompletedDays))
	}
	stats.TotalHoursWorked = roundHours(stats.TotalHoursWorked)

	return stats
}

func roundHours(value float64) float64 {
	return math.Round(value*100) / 100
}

// StatsService loads record sets and caches their summaries.
type StatsService interface {
	ForActor(ctx context.Context, actorID uint, from, to string) (dto.AttendanceStatsResponse, error)
	ForGroup(ctx context.Context, group, from, to string) (dto.AttendanceStatsResponse, error)
	Query(ctx context.Context, query dto.StatsQuery) (dto.AttendanceStatsResponse, error)
}

type statsService struct {
	repo      repository.AttendanceRepository
	cache     *redis.Client
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewStatsService constructs the stats service. cache may be nil.
func NewStatsService(repo repository.AttendanceRepository, cache *redis.Client, ttl time.Duration, validate *validator.Validate, logger zerolog.Logger) StatsService {
	return &statsService{
		repo:      repo,
		cache:     cache,
		cacheTTL:  ttl,
		validator: validate,
		logger:    logger.With().Str("component", "stats_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/presence-go-api/internal/service/stats"),
		now:       time.Now,
	}
}

func (s *statsService) Query(ctx context.Context, query dto.StatsQuery) (dto.AttendanceStatsResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return dto.AttendanceStatsResponse{}, err
	}
	switch {
	case query.ActorID != nil:
		return s.ForActor(ctx, *query.ActorID, query.From, query.To)
	case strings.TrimSpace(query.Group) != "":
		return s.ForGroup(ctx, query.Group, query.From, query.To)
	default:
		return dto.AttendanceStatsResponse{}, invalidField("actor_id", "either actor_id or group is required")
	}
}

func (s *statsService) ForActor(ctx context.Context, actorID uint, from, to string) (dto.AttendanceStatsResponse, error) {
	filter := repository.AttendanceFilter{ActorID: &actorID}
	scope := fmt.Sprintf("actor:%d", actorID)
	return s.compute(ctx, scope, filter, from, to)
}

func (s *statsService) ForGroup(ctx context.Context, group, from, to string) (dto.AttendanceStatsResponse, error) {
	group = strings.TrimSpace(group)
	if group == "" {
		return dto.AttendanceStatsResponse{}, invalidField("group", "is required")
	}
	filter := repository.AttendanceFilter{GroupCode: group}
	return s.compute(ctx, "group:"+group, filter, from, to)
}

func (s *statsService) compute(ctx context.Context, scope string, filter repository.AttendanceFilter, from, to string) (dto.AttendanceStatsResponse, error) {
	from, to, err := normalizePeriod(from, to)
	if err != nil {
		return dto.AttendanceStatsResponse{}, err
	}
	filter.From = from
	filter.To = to

	ctx, span := s.tracer.Start(ctx, "stats.aggregate", trace.WithAttributes(attribute.String("stats.scope", scope)))
	defer span.End()

	var cacheKey string
	if s.cache != nil {
		revision, err := s.repo.Revision(ctx, filter)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "record_revision_failed")
			return dto.AttendanceStatsResponse{}, err
		}
		cacheKey = statsCacheKey(scope, from, to, revision)
		span.SetAttributes(attribute.String("stats.cache_key", cacheKey))

		cached, err := s.cache.Get(ctx, cacheKey).Result()
		if err == nil {
			var response dto.AttendanceStatsResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				response.CacheHit = true
				span.SetAttributes(attribute.Bool("stats.cache_hit", true))
				return response, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read stats cache")
			span.RecordError(err)
		}
	}

	records, err := s.repo.List(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list_records_failed")
		return dto.AttendanceStatsResponse{}, err
	}

	response := dto.AttendanceStatsResponse{
		Scope:       scope,
		From:        from,
		To:          to,
		Stats:       Aggregate(records),
		GeneratedAt: s.now().UTC(),
	}
	span.SetAttributes(attribute.Int("stats.record_count", len(records)))

	if cacheKey != "" && s.cacheTTL > 0 {
		payload, err := json.Marshal(response)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store stats cache")
				span.RecordError(err)
			}
		}
	}

	return response, nil
}

// statsCacheKey embeds the record set revision so any insert or checkout in
// the scope moves readers to a fresh key.
func statsCacheKey(scope, from, to string, revision repository.RecordSetRevision) string {
	return fmt.Sprintf("stats:%s:%s:%s:r%d.%d", scope, from, to, revision.Records, revision.CheckedOut)
}

func normalizePeriod(from, to string) (string, string, error) {
	var err error
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from != "" {
		if from, err = ParseDay(from); err != nil {
			return "", "", invalidField("from", "must be formatted as YYYY-MM-DD")
		}
	}
	if to != "" {
		if to, err = ParseDay(to); err != nil {
			return "", "", invalidField("to", "must be formatted as YYYY-MM-DD")
		}
	}
	if from != "" && to != "" && from > to {
		return "", "", invalidField("from", "must not be after to")
	}
	return from, to, nil
}
