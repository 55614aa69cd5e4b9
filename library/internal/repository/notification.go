package repository

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/errs"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/model"
)

var notificationColumns = []string{"id", "reservation_id", "user_id", "type", "message", "created_at", "read_at", "status"}

func (r *repository) ListNotifications(ctx context.Context, userID int, unreadOnly bool) ([]model.Notification, error) {
	where := sq.Eq{"user_id": userID}
	if unreadOnly {
		where["status"] = model.NotificationUnread
	}
	query, args, err := qb.Select(notificationColumns...).
		From(notificationsTableName).
		Where(where).
		OrderBy("created_at desc", "id desc").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.Notification])
	if err != nil {
		return nil, fmt.Errorf("pgx.CollectRows: %w", err)
	}
	return notes, nil
}

// MarkNotificationRead only touches notifications owned by userID.
func (r *repository) MarkNotificationRead(ctx context.Context, id, userID int, at time.Time) error {
	query, args, err := qb.Update(notificationsTableName).
		Set("status", model.NotificationRead).
		Set("read_at", sq.Expr("coalesce(read_at, ?)", at)).
		Where(sq.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return err
	}
	n, err := affected(r.db.Exec(ctx, query, args...))
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrapf(errs.ErrNotFound, "notification %d", id)
	}
	return nil
}

func (r *repository) MarkAllNotificationsRead(ctx context.Context, userID int, at time.Time) (int, error) {
	query, args, err := qb.Update(notificationsTableName).
		Set("status", model.NotificationRead).
		Set("read_at", at).
		Where(sq.Eq{"user_id": userID, "status": model.NotificationUnread}).
		ToSql()
	if err != nil {
		return 0, err
	}
	return affected(r.db.Exec(ctx, query, args...))
}

func (r *repository) DeleteNotification(ctx context.Context, id, userID int) error {
	query, args, err := qb.Delete(notificationsTableName).
		Where(sq.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return err
	}
	n, err := affected(r.db.Exec(ctx, query, args...))
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrapf(errs.ErrNotFound, "notification %d", id)
	}
	return nil
}
