package repository

import (
	"context"

	"github.com/google/uuid"

	"threaded_messaging/internal/domain"
	"threaded_messaging/pkg/logger"
)

type historyRepository struct {
	db  querier
	log logger.Logger
}

func (r *historyRepository) Create(ctx context.Context, history *domain.MessageHistory) error {
	query := `
		INSERT INTO message_history (id, message_id, old_content, edited_at, edited_by)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Exec(ctx, query,
		history.ID, history.MessageID, history.OldContent, history.EditedAt, history.EditedBy,
	)
	if err != nil {
		r.log.Error("Failed to create message history", "error", err, "message_id", history.MessageID)
		return err
	}

	return nil
}

func (r *historyRepository) ListByMessage(ctx context.Context, messageID uuid.UUID) ([]*domain.MessageHistory, error) {
	query := `
		SELECT id, message_id, old_content, edited_at, edited_by
		FROM message_history
		WHERE message_id = $1
		ORDER BY edited_at, seq
	`

	rows, err := r.db.Query(ctx, query, messageID)
	if err != nil {
		r.log.Error("Failed to list message history", "error", err, "message_id", messageID)
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.MessageHistory
	for rows.Next() {
		h := &domain.MessageHistory{}
		if err := rows.Scan(&h.ID, &h.MessageID, &h.OldContent, &h.EditedAt, &h.EditedBy); err != nil {
			r.log.Error("Failed to scan message history", "error", err)
			return nil, err
		}
		entries = append(entries, h)
	}

	return entries, rows.Err()
}

func (r *historyRepository) CountByMessage(ctx context.Context, messageID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM message_history WHERE message_id = $1`, messageID).Scan(&n)
	if err != nil {
		r.log.Error("Failed to count message history", "error", err, "message_id", messageID)
		return 0, err
	}
	return n, nil
}

func (r *historyRepository) CountByEditor(ctx context.Context, editorID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM message_history WHERE edited_by = $1`, editorID).Scan(&n)
	if err != nil {
		r.log.Error("Failed to count edits", "error", err, "user_id", editorID)
		return 0, err
	}
	return n, nil
}

func (r *historyRepository) ClearEditor(ctx context.Context, editorID uuid.UUID) (int, error) {
	tag, err := r.db.Exec(ctx, `UPDATE message_history SET edited_by = NULL WHERE edited_by = $1`, editorID)
	if err != nil {
		r.log.Error("Failed to detach history editor", "error", err, "user_id", editorID)
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
