package service

import (
	"context"

	"github.com/google/uuid"

	"threaded_messaging/internal/domain"
	"threaded_messaging/internal/repository"
	apperrors "threaded_messaging/pkg/errors"
	"threaded_messaging/pkg/logger"
)

type NotificationService interface {
	List(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]*domain.Notification, error)
	ForMessage(ctx context.Context, messageID uuid.UUID) ([]*domain.Notification, error)
	// MarkRead is idempotent. Notifications of other users are reported as
	// missing.
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) (*domain.Notification, error)
}

type notificationService struct {
	store repository.Store
	log   logger.Logger
}

func NewNotificationService(store repository.Store, log logger.Logger) NotificationService {
	return &notificationService{
		store: store,
		log:   log,
	}
}

func (s *notificationService) List(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]*domain.Notification, error) {
	notifications, err := s.store.Notifications().ListByUser(ctx, userID, unreadOnly)
	if err != nil {
		return nil, err
	}
	if notifications == nil {
		notifications = []*domain.Notification{}
	}
	return notifications, nil
}

func (s *notificationService) ForMessage(ctx context.Context, messageID uuid.UUID) ([]*domain.Notification, error) {
	return s.store.Notifications().ListByMessage(ctx, messageID)
}

func (s *notificationService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) (*domain.Notification, error) {
	n, err := s.store.Notifications().GetByID(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if n.UserID != userID {
		return nil, apperrors.NotFound("notification", notificationID)
	}
	if n.IsRead {
		return n, nil
	}

	if err := s.store.Notifications().MarkRead(ctx, notificationID); err != nil {
		return nil, err
	}
	n.IsRead = true
	return n, nil
}
