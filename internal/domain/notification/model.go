// Package notification provides in-app notifications and the fan-out that
// turns committed operation events into per-recipient deliveries.
package notification

import (
	"context"
	"time"

	"fretops/internal/core/id"
	"fretops/internal/domain"
)

// Notification is one in-app message for one recipient.
type Notification struct {
	ID          id.ID     `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"userId"`
	OperationID id.ID     `db:"operation_id" json:"operationId"`
	Type        string    `db:"type" json:"type"`
	Message     string    `db:"message" json:"message"`
	Lu          bool      `db:"lu" json:"lu"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// New creates an unread notification.
func New(userID string, operationID id.ID, eventType, message string) *Notification {
	return &Notification{
		ID:          id.New(),
		UserID:      userID,
		OperationID: operationID,
		Type:        eventType,
		Message:     message,
		CreatedAt:   time.Now().UTC(),
	}
}

// ListFilter narrows notification queries.
type ListFilter struct {
	domain.Page

	UserID     string
	OnlyUnread bool
}

// Repository is the persistence contract for notifications.
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Notification], error)
	CountUnread(ctx context.Context, userID string) (int64, error)

	// MarkRead flips Lu for one notification owned by userID.
	MarkRead(ctx context.Context, notificationID id.ID, userID string) error

	// MarkAllRead flips Lu for every unread notification of userID.
	MarkAllRead(ctx context.Context, userID string) error
}
