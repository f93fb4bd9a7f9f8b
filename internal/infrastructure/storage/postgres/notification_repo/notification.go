// Package notification_repo provides the PostgreSQL implementation of the
// notification repository.
package notification_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"fretops/internal/core/apperror"
	"fretops/internal/core/id"
	"fretops/internal/domain"
	"fretops/internal/domain/notification"
	"fretops/internal/infrastructure/storage/postgres"
)

const notificationsTable = "notifications"

// Compile-time check.
var _ notification.Repository = (*Repo)(nil)

// Repo implements notification.Repository on PostgreSQL.
type Repo struct {
	txManager *postgres.TxManager
	cols      []string
}

// NewRepo creates the notification repository.
func NewRepo(txManager *postgres.TxManager) *Repo {
	return &Repo{
		txManager: txManager,
		cols:      postgres.ExtractDBColumns[notification.Notification](),
	}
}

func (r *Repo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Create inserts a notification.
func (r *Repo) Create(ctx context.Context, n *notification.Notification) error {
	q := r.builder().Insert(notificationsTable).SetMap(postgres.StructToMap(n))

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// List retrieves a user's notifications, newest first.
func (r *Repo) List(ctx context.Context, filter notification.ListFilter) (domain.ListResult[*notification.Notification], error) {
	result := domain.ListResult[*notification.Notification]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.builder().
		Select(r.cols...).
		From(notificationsTable).
		Where(squirrel.Eq{"user_id": filter.UserID})
	if filter.OnlyUnread {
		q = q.Where(squirrel.Eq{"lu": false})
	}

	countQ := r.builder().Select("COUNT(*)").FromSelect(q, "sub")
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}
	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count notifications: %w", err)
	}

	q = q.OrderBy("created_at DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list notifications: %w", err)
	}
	return result, nil
}

// CountUnread returns the unread badge count.
func (r *Repo) CountUnread(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.txManager.GetQuerier(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND lu = false
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

// MarkRead flips lu for one notification owned by userID.
func (r *Repo) MarkRead(ctx context.Context, notificationID id.ID, userID string) error {
	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE notifications SET lu = true WHERE id = $1 AND user_id = $2
	`, notificationID, userID)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("notification", notificationID.String())
	}
	return nil
}

// MarkAllRead flips lu for every unread notification of userID.
func (r *Repo) MarkAllRead(ctx context.Context, userID string) error {
	_, err := r.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE notifications SET lu = true WHERE user_id = $1 AND lu = false
	`, userID)
	if err != nil {
		return fmt.Errorf("mark all read: %w", err)
	}
	return nil
}
