package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"threaded_messaging/internal/domain"
	apperrors "threaded_messaging/pkg/errors"
	"threaded_messaging/pkg/logger"
)

type messageRepository struct {
	db  querier
	log logger.Logger
}

const messageColumns = `id, sender_id, receiver_id, parent_message_id, content, created_at, edited, last_edited_at, read`

// maxThreadDepth bounds the recursive thread walk so corrupted parent links
// cannot loop forever.
const maxThreadDepth = 10000

func scanMessage(row pgx.Row, extra ...any) (*domain.Message, error) {
	m := &domain.Message{}
	dest := []any{
		&m.ID, &m.SenderID, &m.ReceiverID, &m.ParentID, &m.Content,
		&m.CreatedAt, &m.Edited, &m.LastEditedAt, &m.Read,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *messageRepository) collect(rows pgx.Rows, err error) ([]*domain.Message, error) {
	if err != nil {
		r.log.Error("Failed to query messages", "error", err)
		return nil, err
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			r.log.Error("Failed to scan message", "error", err)
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (r *messageRepository) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		r.log.Error("Failed to count messages", "error", err)
		return 0, err
	}
	return n, nil
}

func (r *messageRepository) Create(ctx context.Context, message *domain.Message) error {
	query := `
		INSERT INTO messages (id, sender_id, receiver_id, parent_message_id, content, created_at, edited, last_edited_at, read)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Exec(ctx, query,
		message.ID, message.SenderID, message.ReceiverID, message.ParentID, message.Content,
		message.CreatedAt, message.Edited, message.LastEditedAt, message.Read,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			r.log.Warn("Message references a missing row", "error", err, "message_id", message.ID)
			return apperrors.NotFound("referenced user or parent message", nil)
		}
		r.log.Error("Failed to create message", "error", err)
		return err
	}

	return nil
}

func (r *messageRepository) get(ctx context.Context, id uuid.UUID, forUpdate bool) (*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	m, err := scanMessage(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("message", id)
		}
		r.log.Error("Failed to get message", "error", err, "message_id", id)
		return nil, err
	}
	return m, nil
}

func (r *messageRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	return r.get(ctx, id, false)
}

func (r *messageRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	return r.get(ctx, id, true)
}

func (r *messageRepository) Update(ctx context.Context, message *domain.Message) error {
	query := `
		UPDATE messages
		SET content = $2, edited = $3, last_edited_at = $4, read = $5
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query,
		message.ID, message.Content, message.Edited, message.LastEditedAt, message.Read,
	)
	if err != nil {
		r.log.Error("Failed to update message", "error", err, "message_id", message.ID)
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("message", message.ID)
	}
	return nil
}

func (r *messageRepository) Delete(ctx context.Context, id uuid.UUID) (int, error) {
	query := `
		WITH RECURSIVE subtree AS (
			SELECT id FROM messages WHERE id = $1
			UNION
			SELECT m.id FROM messages m JOIN subtree s ON m.parent_message_id = s.id
		)
		DELETE FROM messages WHERE id IN (SELECT id FROM subtree)
	`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		r.log.Error("Failed to delete message", "error", err, "message_id", id)
		return 0, err
	}
	if tag.RowsAffected() == 0 {
		return 0, apperrors.NotFound("message", id)
	}
	return int(tag.RowsAffected()), nil
}

func (r *messageRepository) DeleteByParticipant(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `
		WITH RECURSIVE doomed AS (
			SELECT id FROM messages WHERE sender_id = $1 OR receiver_id = $1
			UNION
			SELECT m.id FROM messages m JOIN doomed d ON m.parent_message_id = d.id
		)
		DELETE FROM messages WHERE id IN (SELECT id FROM doomed)
	`

	tag, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		r.log.Error("Failed to delete messages of user", "error", err, "user_id", userID)
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *messageRepository) ListThread(ctx context.Context, rootID uuid.UUID) ([]*domain.Message, error) {
	query := fmt.Sprintf(`
		WITH RECURSIVE thread AS (
			SELECT %[1]s, seq, 0 AS depth FROM messages WHERE id = $1
			UNION ALL
			SELECT m.id, m.sender_id, m.receiver_id, m.parent_message_id, m.content, m.created_at,
			       m.edited, m.last_edited_at, m.read, m.seq, t.depth + 1
			FROM messages m JOIN thread t ON m.parent_message_id = t.id
			WHERE t.depth < %[2]d
		)
		SELECT %[1]s FROM thread ORDER BY created_at, seq
	`, messageColumns, maxThreadDepth)

	messages, err := r.collect(r.db.Query(ctx, query, rootID))
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, apperrors.NotFound("message", rootID)
	}
	return messages, nil
}

func (r *messageRepository) ListReplies(ctx context.Context, parentID uuid.UUID) ([]*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE parent_message_id = $1 ORDER BY created_at, seq`
	return r.collect(r.db.Query(ctx, query, parentID))
}

func (r *messageRepository) ListRoots(ctx context.Context, userID uuid.UUID) ([]*domain.ConversationSummary, error) {
	query := `
		SELECT ` + messageColumns + `,
		       (SELECT COUNT(*) FROM messages r WHERE r.parent_message_id = messages.id)
		FROM messages
		WHERE (sender_id = $1 OR receiver_id = $1) AND parent_message_id IS NULL
		ORDER BY created_at DESC, seq DESC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.log.Error("Failed to list conversations", "error", err, "user_id", userID)
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ConversationSummary
	for rows.Next() {
		var replies int
		m, err := scanMessage(rows, &replies)
		if err != nil {
			r.log.Error("Failed to scan conversation", "error", err)
			return nil, err
		}
		out = append(out, &domain.ConversationSummary{Root: m, ReplyCount: replies})
	}
	return out, rows.Err()
}

func (r *messageRepository) ListSent(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE sender_id = $1 ORDER BY created_at DESC, seq DESC LIMIT $2`
	return r.collect(r.db.Query(ctx, query, userID, limitOrAll(limit)))
}

func (r *messageRepository) ListReceived(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE receiver_id = $1 ORDER BY created_at DESC, seq DESC LIMIT $2`
	return r.collect(r.db.Query(ctx, query, userID, limitOrAll(limit)))
}

func (r *messageRepository) ListPreview(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.MessagePreview, error) {
	query := `
		SELECT m.id, s.username, rc.username, m.content, m.created_at, m.read
		FROM messages m
		JOIN users s ON s.id = m.sender_id
		JOIN users rc ON rc.id = m.receiver_id
		WHERE m.sender_id = $1 OR m.receiver_id = $1
		ORDER BY m.created_at DESC, m.seq DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, userID, limitOrAll(limit))
	if err != nil {
		r.log.Error("Failed to query message previews", "error", err, "user_id", userID)
		return nil, err
	}
	defer rows.Close()

	var previews []*domain.MessagePreview
	for rows.Next() {
		p := &domain.MessagePreview{}
		if err := rows.Scan(&p.MessageID, &p.Sender, &p.Receiver, &p.Content, &p.Timestamp, &p.Read); err != nil {
			r.log.Error("Failed to scan message preview", "error", err)
			return nil, err
		}
		previews = append(previews, p)
	}
	return previews, rows.Err()
}

func (r *messageRepository) CountSent(ctx context.Context, userID uuid.UUID) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM messages WHERE sender_id = $1`, userID)
}

func (r *messageRepository) CountReceived(ctx context.Context, userID uuid.UUID) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM messages WHERE receiver_id = $1`, userID)
}

func unreadWhere(receiverID uuid.UUID, filter domain.UnreadFilter) (string, []any) {
	where := `receiver_id = $1 AND read = FALSE`
	args := []any{receiverID}
	if filter.SenderID != nil {
		args = append(args, *filter.SenderID)
		where += fmt.Sprintf(` AND sender_id = $%d`, len(args))
	}
	if filter.RootOnly {
		where += ` AND parent_message_id IS NULL`
	}
	return where, args
}

func (r *messageRepository) ListUnread(ctx context.Context, receiverID uuid.UUID, filter domain.UnreadFilter) ([]*domain.Message, error) {
	where, args := unreadWhere(receiverID, filter)
	query := `SELECT ` + messageColumns + ` FROM messages WHERE ` + where + ` ORDER BY created_at DESC, seq DESC`
	return r.collect(r.db.Query(ctx, query, args...))
}

func (r *messageRepository) CountUnread(ctx context.Context, receiverID uuid.UUID, filter domain.UnreadFilter) (int, error) {
	where, args := unreadWhere(receiverID, filter)
	return r.count(ctx, `SELECT COUNT(*) FROM messages WHERE `+where, args...)
}

func (r *messageRepository) MarkAllRead(ctx context.Context, receiverID uuid.UUID) (int, error) {
	tag, err := r.db.Exec(ctx, `UPDATE messages SET read = TRUE WHERE receiver_id = $1 AND read = FALSE`, receiverID)
	if err != nil {
		r.log.Error("Failed to mark messages read", "error", err, "user_id", receiverID)
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// limitOrAll maps a non-positive limit to NULL, which LIMIT treats as no limit.
func limitOrAll(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}
