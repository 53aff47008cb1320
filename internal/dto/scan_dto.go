package dto

import "time"

// ScanRequest is posted by a scanning station for every QR read. Payload is the
// raw QR text; ID is accepted when the station already decoded a structured code.
type ScanRequest struct {
	Payload   string     `json:"payload" validate:"required_without=ID,max=512"`
	ID        string     `json:"id" validate:"max=128"`
	ScannedAt *time.Time `json:"scanned_at"`
}

// MealScanRequest is posted by the canteen scanner.
type MealScanRequest struct {
	Payload   string     `json:"payload" validate:"required_without=ID,max=512"`
	ID        string     `json:"id" validate:"max=128"`
	MealType  string     `json:"meal_type" validate:"required,oneof=BREAKFAST LUNCH"`
	ScannedAt *time.Time `json:"scanned_at"`
}

// ScanActorSummary identifies the resolved actor without exposing directory details.
type ScanActorSummary struct {
	ID        uint   `json:"id"`
	Matricule string `json:"matricule"`
	FullName  string `json:"full_name"`
	Kind      string `json:"kind"`
}

// ScanResponse reports what a scan did.
type ScanResponse struct {
	Actor          ScanActorSummary         `json:"actor"`
	Action         string                   `json:"action"`
	AlreadyScanned bool                     `json:"already_scanned"`
	Ignored        bool                     `json:"ignored"`
	IsLate         bool                     `json:"is_late"`
	Record         AttendanceRecordResponse `json:"record"`
}

// MealScanResponse reports a recorded meal.
type MealScanResponse struct {
	ID        uint             `json:"id"`
	Actor     ScanActorSummary `json:"actor"`
	Date      string           `json:"date"`
	MealType  string           `json:"meal_type"`
	ScannedAt time.Time        `json:"scanned_at"`
}

// ScanEvent is pushed to scanning stations on the live feed.
type ScanEvent struct {
	ActorID        uint      `json:"actor_id"`
	Matricule      string    `json:"matricule"`
	FullName       string    `json:"full_name"`
	Kind           string    `json:"kind"`
	Action         string    `json:"action"`
	AlreadyScanned bool      `json:"already_scanned"`
	IsLate         bool      `json:"is_late"`
	Date           string    `json:"date"`
	StationID      string    `json:"station_id,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}
