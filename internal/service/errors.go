package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/presence-go-api/internal/models"
)

var (
	// ErrActorNotFound indicates the scanned code matches no known actor.
	ErrActorNotFound = errors.New("unrecognized code")
	// ErrInactiveActor indicates the actor exists but may not scan.
	ErrInactiveActor = errors.New("actor is inactive")
	// ErrAlreadyScanned marks a repeated scan for a day that already has a record.
	ErrAlreadyScanned = errors.New("already scanned today")
	// ErrDuplicateScan indicates the meal was already served to the learner today.
	ErrDuplicateScan = errors.New("meal already scanned today")
	// ErrInvalidState indicates a justification transition from a disallowed status.
	ErrInvalidState = errors.New("invalid justification state")
	// ErrValidation indicates input was rejected before any state change.
	ErrValidation = errors.New("validation failed")
	// ErrRecordNotFound indicates the attendance record does not exist.
	ErrRecordNotFound = errors.New("attendance record not found")
	// ErrForbidden indicates the caller may not act on the record.
	ErrForbidden = errors.New("operation not permitted for this actor")
)

// InvalidStateError names the status found and the statuses the transition requires.
type InvalidStateError struct {
	Current  models.JustificationStatus
	Required []models.JustificationStatus
}

func (e *InvalidStateError) Error() string {
	required := make([]string, 0, len(e.Required))
	for _, status := range e.Required {
		required = append(required, string(status))
	}
	return fmt.Sprintf("justification is %s, requires %s", e.Current, strings.Join(required, " or "))
}

// Unwrap lets callers match with errors.Is(err, ErrInvalidState).
func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidState
}

// ValidationError reports one rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap lets callers match with errors.Is(err, ErrValidation).
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalidField(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// ErrStorageUnavailable indicates a document was attached but no storage backend is configured.
var ErrStorageUnavailable = errors.New("document storage is not configured")
