package dto

import (
	"time"

	"github.com/noah-isme/presence-go-api/internal/models"
)

// AttendanceRecordResponse is the public shape of one daily attendance record.
type AttendanceRecordResponse struct {
	ID            uint       `json:"id"`
	ActorID       uint       `json:"actor_id"`
	ActorKind     string     `json:"actor_kind"`
	Date          string     `json:"date"`
	IsPresent     bool       `json:"is_present"`
	IsLate        bool       `json:"is_late"`
	ScanTime      *time.Time `json:"scan_time,omitempty"`
	CheckIn       *time.Time `json:"check_in,omitempty"`
	CheckOut      *time.Time `json:"check_out,omitempty"`
	Status        string     `json:"status"`
	Justification string     `json:"justification,omitempty"`
	DocumentRef   string     `json:"document_ref,omitempty"`
	Comment       string     `json:"comment,omitempty"`
	ReviewedAt    *time.Time `json:"reviewed_at,omitempty"`
}

// AttendanceQuery describes query string filters for listing records.
type AttendanceQuery struct {
	ActorID *uint   `query:"actor_id"`
	Group   string  `query:"group" validate:"omitempty,max=64"`
	From    string  `query:"from" validate:"omitempty,datetime=2006-01-02"`
	To      string  `query:"to" validate:"omitempty,datetime=2006-01-02"`
	Status  *string `query:"status" validate:"omitempty,oneof=NONE TO_JUSTIFY PENDING APPROVED REJECTED"`
}

// SweepRequest asks for absence records to be generated for one day.
type SweepRequest struct {
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Kind string `json:"kind" validate:"omitempty,oneof=learner coach"`
}

// SweepResponse reports the outcome of an absence sweep.
type SweepResponse struct {
	Date    string `json:"date"`
	Created int    `json:"created"`
	Skipped int    `json:"skipped"`
}

// NewAttendanceRecordResponse converts a record model into its public shape.
func NewAttendanceRecordResponse(model models.AttendanceRecord) AttendanceRecordResponse {
	response := AttendanceRecordResponse{
		ID:            model.ID,
		ActorID:       model.ActorID,
		ActorKind:     string(model.ActorKind),
		Date:          model.Date,
		IsPresent:     model.IsPresent,
		IsLate:        model.IsLate,
		Status:        string(model.JustificationStatus),
		Justification: model.Justification,
		DocumentRef:   model.DocumentRef,
		Comment:       model.ReviewComment,
		ReviewedAt:    model.ReviewedAt,
	}

	if model.ActorKind == models.ActorKindCoach {
		response.CheckIn = model.CheckIn
		response.CheckOut = model.CheckOut
	} else {
		response.ScanTime = model.ScanTime
	}

	return response
}

// NewAttendanceRecordResponseSlice converts record models into DTOs.
func NewAttendanceRecordResponseSlice(items []models.AttendanceRecord) []AttendanceRecordResponse {
	responses := make([]AttendanceRecordResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewAttendanceRecordResponse(item))
	}
	return responses
}
