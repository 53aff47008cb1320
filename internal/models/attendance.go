package models

import "time"

// JustificationStatus tracks where a record sits in the justification review.
type JustificationStatus string

const (
	JustificationNone      JustificationStatus = "NONE"
	JustificationToJustify JustificationStatus = "TO_JUSTIFY"
	JustificationPending   JustificationStatus = "PENDING"
	JustificationApproved  JustificationStatus = "APPROVED"
	JustificationRejected  JustificationStatus = "REJECTED"
)

// DateLayout is the calendar-day key format stored on attendance rows.
const DateLayout = "2006-01-02"

// AttendanceRecord is the single daily attendance row of an actor.
// (actor_id, date) is unique.
type AttendanceRecord struct {
	ID                  uint                `gorm:"primaryKey" json:"id"`
	ActorID             uint                `gorm:"not null;uniqueIndex:idx_attendance_actor_day,priority:1" json:"actor_id"`
	ActorKind           ActorKind           `gorm:"size:16;not null" json:"actor_kind"`
	Date                string              `gorm:"size:10;not null;index;uniqueIndex:idx_attendance_actor_day,priority:2" json:"date"`
	IsPresent           bool                `gorm:"not null;default:false" json:"is_present"`
	IsLate              bool                `gorm:"not null;default:false" json:"is_late"`
	ScanTime            *time.Time          `json:"scan_time"`
	CheckIn             *time.Time          `json:"check_in"`
	CheckOut            *time.Time          `json:"check_out"`
	JustificationStatus JustificationStatus `gorm:"size:16;not null;default:NONE;index" json:"justification_status"`
	Justification       string              `gorm:"type:text" json:"justification"`
	DocumentRef         string              `gorm:"size:512" json:"document_ref"`
	DocumentMime        string              `gorm:"size:64" json:"document_mime"`
	DocumentSize        int64               `json:"document_size"`
	ReviewComment       string              `gorm:"type:text" json:"review_comment"`
	ReviewedBy          *uint               `json:"reviewed_by"`
	ReviewedAt          *time.Time          `json:"reviewed_at"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// NeedsJustification reports whether the record qualifies for the review workflow.
func (r AttendanceRecord) NeedsJustification() bool {
	return !r.IsPresent || r.IsLate
}

// CoachState is the explicit check-in/check-out state of a coach for one day.
type CoachState int

const (
	CoachNotArrived CoachState = iota
	CoachCheckedIn
	CoachCompleted
)

func (s CoachState) String() string {
	switch s {
	case CoachCheckedIn:
		return "checked_in"
	case CoachCompleted:
		return "completed"
	default:
		return "not_arrived"
	}
}

// CoachStateOf derives the coach state from a stored record; nil means no record today.
func CoachStateOf(record *AttendanceRecord) CoachState {
	switch {
	case record == nil || record.CheckIn == nil:
		return CoachNotArrived
	case record.CheckOut == nil:
		return CoachCheckedIn
	default:
		return CoachCompleted
	}
}

// HoursWorked returns the checked-in duration in hours, or 0 when the day is incomplete.
func (r AttendanceRecord) HoursWorked() float64 {
	if r.CheckIn == nil || r.CheckOut == nil {
		return 0
	}
	return r.CheckOut.Sub(*r.CheckIn).Hours()
}
