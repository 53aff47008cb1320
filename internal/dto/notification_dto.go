package dto

import (
	"time"

	"github.com/noah-isme/presence-go-api/internal/models"
)

// NotificationCreateRequest describes a notification addressed to one actor.
type NotificationCreateRequest struct {
	UserID   string `json:"user_id" validate:"required,max=64"`
	Type     string `json:"type" validate:"required,max=64"`
	Message  string `json:"message" validate:"required,min=1,max=2000"`
	RecordID *uint  `json:"record_id"`
}

// NotificationResponse represents notification data returned to clients.
type NotificationResponse struct {
	ID        uint      `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	RecordID  *uint     `json:"record_id,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// NewNotificationResponse converts a notification model to DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        model.ID,
		UserID:    model.UserID,
		Type:      model.Type,
		Message:   model.Message,
		RecordID:  model.RecordID,
		Read:      model.Read,
		CreatedAt: model.CreatedAt,
	}
}

// NewNotificationResponseSlice converts a slice to DTOs.
func NewNotificationResponseSlice(items []models.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewNotificationResponse(item))
	}
	return out
}
