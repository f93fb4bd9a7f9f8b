package notification

import (
	"context"

	"fretops/internal/core/apperror"
	appctx "fretops/internal/core/context"
	"fretops/internal/core/id"
	"fretops/internal/domain"
)

// Service exposes a user's own notification feed.
type Service struct {
	repo Repository
}

// NewService creates the notification service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) actor(ctx context.Context) (*appctx.UserContext, error) {
	user := appctx.GetUser(ctx)
	if user == nil || user.UserID == "" {
		return nil, apperror.NewUnauthorized("authentication required")
	}
	return user, nil
}

// List returns the caller's notifications, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Notification], error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.ListResult[*Notification]{}, err
	}
	filter.UserID = actor.UserID
	filter.Normalize()
	return s.repo.List(ctx, filter)
}

// CountUnread returns the caller's unread badge count.
func (s *Service) CountUnread(ctx context.Context) (int64, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return 0, err
	}
	return s.repo.CountUnread(ctx, actor.UserID)
}

// MarkRead marks one of the caller's notifications as read.
func (s *Service) MarkRead(ctx context.Context, notificationID id.ID) error {
	actor, err := s.actor(ctx)
	if err != nil {
		return err
	}
	return s.repo.MarkRead(ctx, notificationID, actor.UserID)
}

// MarkAllRead marks all of the caller's notifications as read.
func (s *Service) MarkAllRead(ctx context.Context) error {
	actor, err := s.actor(ctx)
	if err != nil {
		return err
	}
	return s.repo.MarkAllRead(ctx, actor.UserID)
}
