package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"threaded_messaging/internal/domain"
	apperrors "threaded_messaging/pkg/errors"
	"threaded_messaging/pkg/logger"
)

type notificationRepository struct {
	db  querier
	log logger.Logger
}

const notificationColumns = `id, user_id, message_id, notification_type, content, is_read, created_at`

func scanNotification(row pgx.Row) (*domain.Notification, error) {
	n := &domain.Notification{}
	err := row.Scan(&n.ID, &n.UserID, &n.MessageID, &n.Type, &n.Content, &n.IsRead, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (r *notificationRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Notification, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to query notifications", "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			r.log.Error("Failed to scan notification", "error", err)
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, message_id, notification_type, content, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Exec(ctx, query, n.ID, n.UserID, n.MessageID, string(n.Type), n.Content, n.IsRead, n.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperrors.NotFound("notification recipient", n.UserID)
		}
		r.log.Error("Failed to create notification", "error", err, "user_id", n.UserID)
		return err
	}

	return nil
}

func (r *notificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`

	n, err := scanNotification(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("notification", id)
		}
		r.log.Error("Failed to get notification", "error", err, "notification_id", id)
		return nil, err
	}
	return n, nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND is_read = FALSE`
	}
	query += ` ORDER BY created_at DESC, seq DESC`
	return r.list(ctx, query, userID)
}

func (r *notificationRepository) ListByMessage(ctx context.Context, messageID uuid.UUID) ([]*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE message_id = $1 ORDER BY created_at, seq`
	return r.list(ctx, query, messageID)
}

func (r *notificationRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int, int, error) {
	query := `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE is_read = FALSE)
		FROM notifications
		WHERE user_id = $1
	`

	var total, unread int
	if err := r.db.QueryRow(ctx, query, userID).Scan(&total, &unread); err != nil {
		r.log.Error("Failed to count notifications", "error", err, "user_id", userID)
		return 0, 0, err
	}
	return total, unread, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		r.log.Error("Failed to mark notification read", "error", err, "notification_id", id)
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("notification", id)
	}
	return nil
}

func (r *notificationRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM notifications WHERE user_id = $1`, userID)
	if err != nil {
		r.log.Error("Failed to delete notifications", "error", err, "user_id", userID)
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
