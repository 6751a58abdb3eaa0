package memory

import (
	"context"

	"github.com/google/uuid"

	"threaded_messaging/internal/domain"
)

type auditRepository struct {
	h *handle
}

func (r *auditRepository) CreateLog(ctx context.Context, log *domain.AuditLog) error {
	return r.h.write(func(s *state) error {
		log.ID = int64(len(s.audit) + 1)
		entry := *log
		s.appendAudit(&entry)
		return nil
	})
}

func (r *auditRepository) ListByMessage(ctx context.Context, messageID uuid.UUID) ([]*domain.AuditLog, error) {
	var out []*domain.AuditLog
	err := r.h.read(func(s *state) error {
		for _, a := range s.audit {
			if a.MessageID != nil && *a.MessageID == messageID {
				entry := *a
				out = append(out, &entry)
			}
		}
		return nil
	})
	return out, err
}
