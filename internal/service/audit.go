package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"threaded_messaging/internal/domain"
	"threaded_messaging/internal/repository"
	"threaded_messaging/pkg/logger"
)

type AuditService interface {
	// LogEvent writes through tx so the entry commits or rolls back with the
	// mutation it describes.
	LogEvent(ctx context.Context, tx repository.Store, actorUserID *uuid.UUID, messageID *uuid.UUID, eventType string, payload map[string]interface{}) error
	MessageEvents(ctx context.Context, messageID uuid.UUID) ([]*domain.AuditLog, error)
}

type auditService struct {
	store repository.Store
	log   logger.Logger
}

func NewAuditService(store repository.Store, log logger.Logger) AuditService {
	return &auditService{
		store: store,
		log:   log,
	}
}

func (s *auditService) LogEvent(ctx context.Context, tx repository.Store, actorUserID *uuid.UUID, messageID *uuid.UUID, eventType string, payload map[string]interface{}) error {
	if payload == nil {
		payload = make(map[string]interface{})
	}

	auditLog := &domain.AuditLog{
		EventTime:   time.Now().UTC(),
		ActorUserID: actorUserID,
		MessageID:   messageID,
		EventType:   eventType,
		Payload:     payload,
	}

	return tx.Audit().CreateLog(ctx, auditLog)
}

func (s *auditService) MessageEvents(ctx context.Context, messageID uuid.UUID) ([]*domain.AuditLog, error) {
	return s.store.Audit().ListByMessage(ctx, messageID)
}
