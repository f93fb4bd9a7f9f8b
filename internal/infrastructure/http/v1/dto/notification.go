package dto

import (
	"time"

	"fretops/internal/domain/notification"
)

// NotificationResponse represents one in-app notification.
type NotificationResponse struct {
	ID          string    `json:"id"`
	OperationID string    `json:"operationId"`
	Type        string    `json:"type"`
	Message     string    `json:"message"`
	Lu          bool      `json:"lu"`
	CreatedAt   time.Time `json:"createdAt"`
}

// FromNotification creates response from domain notification.
func FromNotification(n *notification.Notification) *NotificationResponse {
	return &NotificationResponse{
		ID:          n.ID.String(),
		OperationID: n.OperationID.String(),
		Type:        n.Type,
		Message:     n.Message,
		Lu:          n.Lu,
		CreatedAt:   n.CreatedAt,
	}
}

// UnreadCountResponse is the badge counter.
type UnreadCountResponse struct {
	Unread int64 `json:"unread"`
}
