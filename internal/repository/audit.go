package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"threaded_messaging/internal/domain"
	"threaded_messaging/pkg/logger"
)

type AuditRepository interface {
	CreateLog(ctx context.Context, log *domain.AuditLog) error
	ListByMessage(ctx context.Context, messageID uuid.UUID) ([]*domain.AuditLog, error)
}

type auditRepository struct {
	db  querier
	log logger.Logger
}

func (r *auditRepository) CreateLog(ctx context.Context, auditLog *domain.AuditLog) error {
	query := `
		INSERT INTO audit_log (event_time, actor_user_id, message_id, event_type, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	payload, err := json.Marshal(auditLog.Payload)
	if err != nil {
		return err
	}

	err = r.db.QueryRow(ctx, query,
		auditLog.EventTime, auditLog.ActorUserID, auditLog.MessageID, auditLog.EventType, payload,
	).Scan(&auditLog.ID)
	if err != nil {
		r.log.Error("Failed to create audit log", "error", err)
		return err
	}

	return nil
}

func (r *auditRepository) ListByMessage(ctx context.Context, messageID uuid.UUID) ([]*domain.AuditLog, error) {
	query := `
		SELECT id, event_time, actor_user_id, message_id, event_type, payload
		FROM audit_log
		WHERE message_id = $1
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query, messageID)
	if err != nil {
		r.log.Error("Failed to list audit logs", "error", err, "message_id", messageID)
		return nil, err
	}
	defer rows.Close()

	var logs []*domain.AuditLog
	for rows.Next() {
		entry := &domain.AuditLog{}
		var payload []byte
		if err := rows.Scan(&entry.ID, &entry.EventTime, &entry.ActorUserID, &entry.MessageID, &entry.EventType, &payload); err != nil {
			r.log.Error("Failed to scan audit log", "error", err)
			return nil, err
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &entry.Payload); err != nil {
				return nil, err
			}
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}
