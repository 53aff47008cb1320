package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"mime/multipart"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/presence-go-api/internal/dto"
	"github.com/noah-isme/presence-go-api/internal/models"
	"github.com/noah-isme/presence-go-api/internal/observability"
	"github.com/noah-isme/presence-go-api/internal/repository"
)

const (
	maxJustificationLength = 4000
	maxReviewCommentLength = 2000
)

var (
	submittableStatuses = []models.JustificationStatus{models.JustificationToJustify, models.JustificationRejected}
	reviewableStatuses  = []models.JustificationStatus{models.JustificationPending}
)

// JustificationService drives the absence and lateness justification review.
type JustificationService interface {
	Submit(ctx context.Context, identity Identity, recordID uint, req dto.JustificationSubmitRequest, document *multipart.FileHeader) (dto.AttendanceRecordResponse, error)
	Approve(ctx context.Context, identity Identity, recordID uint, comment string) (dto.AttendanceRecordResponse, error)
	Reject(ctx context.Context, identity Identity, recordID uint, reason string) (dto.AttendanceRecordResponse, error)
	Review(ctx context.Context, identity Identity, recordID uint, req dto.JustificationReviewRequest) (dto.AttendanceRecordResponse, error)
}

type justificationService struct {
	repo      repository.AttendanceRepository
	storage   DocumentStorage
	notifier  Notifier
	activity  ActivityRecorder
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	maxBytes  int64
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewJustificationService constructs the workflow. storage, notifier and activity may be nil.
func NewJustificationService(repo repository.AttendanceRepository, storage DocumentStorage, notifier Notifier, activity ActivityRecorder, maxDocumentMB int, validate *validator.Validate, logger zerolog.Logger) JustificationService {
	if maxDocumentMB <= 0 {
		maxDocumentMB = DefaultMaxDocumentMB
	}
	return &justificationService{
		repo:      repo,
		storage:   storage,
		notifier:  notifier,
		activity:  activity,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		maxBytes:  int64(maxDocumentMB) * 1024 * 1024,
		logger:    logger.With().Str("component", "justification_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/presence-go-api/internal/service/justification"),
		now:       time.Now,
	}
}

func (s *justificationService) Submit(ctx context.Context, identity Identity, recordID uint, req dto.JustificationSubmitRequest, document *multipart.FileHeader) (dto.AttendanceRecordResponse, error) {
	ctx, span := s.tracer.Start(ctx, "justifications.submit", trace.WithAttributes(
		attribute.Int("attendance.record_id", int(recordID)),
		attribute.Bool("justification.has_document", document != nil),
	))
	defer span.End()

	text := plainText(s.sanitizer, req.Justification)
	if text == "" {
		return s.fail(span, invalidField("justification", "is required"))
	}
	if len([]rune(text)) > maxJustificationLength {
		return s.fail(span, invalidField("justification", fmt.Sprintf("must be at most %d characters", maxJustificationLength)))
	}

	attachment, err := readDocument(document, s.maxBytes)
	if err != nil {
		return s.fail(span, err)
	}
	if attachment != nil && s.storage == nil {
		return s.fail(span, ErrStorageUnavailable)
	}

	record, err := s.load(ctx, recordID)
	if err != nil {
		return s.fail(span, err)
	}
	if !identity.IsAdmin() && !identity.Owns(record.ActorID) {
		return s.fail(span, ErrForbidden)
	}
	if !statusIn(record.JustificationStatus, submittableStatuses) {
		return s.fail(span, &InvalidStateError{Current: record.JustificationStatus, Required: submittableStatuses})
	}

	updates := map[string]interface{}{
		"justification_status": models.JustificationPending,
		"justification":        text,
		"review_comment":       "",
		"reviewed_by":          nil,
		"reviewed_at":          nil,
	}

	if attachment != nil {
		ref, err := s.storage.Upload(ctx, attachment.name, bytes.NewReader(attachment.payload))
		if err != nil {
			observability.DocumentRejected().WithLabelValues("storage").Inc()
			return s.fail(span, fmt.Errorf("store justification document: %w", err))
		}
		stored := attachment.describe(ref)
		updates["document_ref"] = stored.StorageRef
		updates["document_mime"] = stored.MimeType
		updates["document_size"] = stored.SizeBytes
	}

	updated, err := s.transition(ctx, record.ID, submittableStatuses, updates)
	if err != nil {
		return s.fail(span, err)
	}

	s.afterTransition(ctx, identity, record, updated, ActivityJustificationSubmitted, map[string]interface{}{
		"has_document": attachment != nil,
	})
	span.SetStatus(codes.Ok, "submitted")

	return dto.NewAttendanceRecordResponse(updated), nil
}

func (s *justificationService) Approve(ctx context.Context, identity Identity, recordID uint, comment string) (dto.AttendanceRecordResponse, error) {
	ctx, span := s.tracer.Start(ctx, "justifications.approve", trace.WithAttributes(attribute.Int("attendance.record_id", int(recordID))))
	defer span.End()

	comment = plainText(s.sanitizer, comment)
	return s.review(ctx, span, identity, recordID, models.JustificationApproved, comment)
}

func (s *justificationService) Reject(ctx context.Context, identity Identity, recordID uint, reason string) (dto.AttendanceRecordResponse, error) {
	ctx, span := s.tracer.Start(ctx, "justifications.reject", trace.WithAttributes(attribute.Int("attendance.record_id", int(recordID))))
	defer span.End()

	reason = plainText(s.sanitizer, reason)
	if reason == "" {
		return s.fail(span, invalidField("comment", "a reason is required when rejecting"))
	}
	return s.review(ctx, span, identity, recordID, models.JustificationRejected, reason)
}

func (s *justificationService) Review(ctx context.Context, identity Identity, recordID uint, req dto.JustificationReviewRequest) (dto.AttendanceRecordResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AttendanceRecordResponse{}, err
	}

	switch models.JustificationStatus(req.Status) {
	case models.JustificationApproved:
		return s.Approve(ctx, identity, recordID, req.Comment)
	case models.JustificationRejected:
		return s.Reject(ctx, identity, recordID, req.Comment)
	default:
		return dto.AttendanceRecordResponse{}, invalidField("status", "must be APPROVED or REJECTED")
	}
}

func (s *justificationService) review(ctx context.Context, span trace.Span, identity Identity, recordID uint, target models.JustificationStatus, comment string) (dto.AttendanceRecordResponse, error) {
	if !identity.IsAdmin() {
		return s.fail(span, ErrForbidden)
	}
	if len([]rune(comment)) > maxReviewCommentLength {
		return s.fail(span, invalidField("comment", fmt.Sprintf("must be at most %d characters", maxReviewCommentLength)))
	}

	record, err := s.load(ctx, recordID)
	if err != nil {
		return s.fail(span, err)
	}
	if !statusIn(record.JustificationStatus, reviewableStatuses) {
		return s.fail(span, &InvalidStateError{Current: record.JustificationStatus, Required: reviewableStatuses})
	}

	updated, err := s.transition(ctx, record.ID, reviewableStatuses, map[string]interface{}{
		"justification_status": target,
		"review_comment":       comment,
		"reviewed_by":          identity.ActorID,
		"reviewed_at":          s.now().UTC(),
	})
	if err != nil {
		return s.fail(span, err)
	}

	action := ActivityJustificationApproved
	if target == models.JustificationRejected {
		action = ActivityJustificationRejected
	}
	s.afterTransition(ctx, identity, record, updated, action, map[string]interface{}{
		"comment": comment,
	})
	span.SetStatus(codes.Ok, strings.ToLower(string(target)))

	return dto.NewAttendanceRecordResponse(updated), nil
}

// transition applies updates only while the stored status is still one of from.
func (s *justificationService) transition(ctx context.Context, recordID uint, from []models.JustificationStatus, updates map[string]interface{}) (models.AttendanceRecord, error) {
	applied, err := s.repo.TransitionStatus(ctx, recordID, from, updates)
	if err != nil {
		return models.AttendanceRecord{}, fmt.Errorf("update justification: %w", err)
	}

	current, err := s.load(ctx, recordID)
	if err != nil {
		return models.AttendanceRecord{}, err
	}
	if !applied {
		return models.AttendanceRecord{}, &InvalidStateError{Current: current.JustificationStatus, Required: from}
	}
	return current, nil
}

func (s *justificationService) load(ctx context.Context, recordID uint) (models.AttendanceRecord, error) {
	record, err := s.repo.GetByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.AttendanceRecord{}, ErrRecordNotFound
		}
		return models.AttendanceRecord{}, fmt.Errorf("load attendance record: %w", err)
	}
	return record, nil
}

func (s *justificationService) afterTransition(ctx context.Context, identity Identity, before, after models.AttendanceRecord, action string, metadata map[string]interface{}) {
	observability.JustificationTransitions().WithLabelValues(string(after.JustificationStatus)).Inc()

	s.logger.Info().
		Uint("record_id", after.ID).
		Uint("actor_id", after.ActorID).
		Str("from", string(before.JustificationStatus)).
		Str("to", string(after.JustificationStatus)).
		Msg("justification transition")

	recordID := after.ID
	if s.activity != nil {
		metadata["from"] = string(before.JustificationStatus)
		metadata["to"] = string(after.JustificationStatus)
		if _, err := s.activity.Record(ctx, ActivityEntry{
			ActorID:    identity.ActorID,
			ActorRole:  identity.Role,
			Action:     action,
			EntityType: "attendance_record",
			EntityID:   &recordID,
			Metadata:   metadata,
		}); err != nil {
			s.logger.Warn().Err(err).Uint("record_id", recordID).Msg("failed to record justification activity")
		}
	}

	if s.notifier == nil {
		return
	}
	kind, message := justificationNotice(after)
	if err := s.notifier.Notify(ctx, after.ActorID, kind, message, &recordID); err != nil {
		s.logger.Warn().Err(err).Uint("record_id", recordID).Msg("failed to notify actor of justification transition")
	}
}

func (s *justificationService) fail(span trace.Span, err error) (dto.AttendanceRecordResponse, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, "justification rejected")
	return dto.AttendanceRecordResponse{}, err
}

func justificationNotice(record models.AttendanceRecord) (string, string) {
	switch record.JustificationStatus {
	case models.JustificationApproved:
		return NotificationJustificationApproved, fmt.Sprintf("Your justification for %s was approved.", record.Date)
	case models.JustificationRejected:
		return NotificationJustificationRejected, fmt.Sprintf("Your justification for %s was rejected: %s", record.Date, record.ReviewComment)
	default:
		return NotificationJustificationPending, fmt.Sprintf("Your justification for %s was received and is awaiting review.", record.Date)
	}
}

// plainText strips markup and keeps the typed characters. Escaping is left to
// whoever renders the value as HTML.
func plainText(policy *bluemonday.Policy, value string) string {
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(value)))
}

func statusIn(status models.JustificationStatus, allowed []models.JustificationStatus) bool {
	for _, candidate := range allowed {
		if status == candidate {
			return true
		}
	}
	return false
}
