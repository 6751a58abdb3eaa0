package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"threaded_messaging/internal/domain"
	"threaded_messaging/internal/repository"
	"threaded_messaging/pkg/logger"
)

type UserService interface {
	GetMe(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Summary(ctx context.Context, userID uuid.UUID) (*domain.UserDataSummary, error)
	// Delete removes the user and runs CleanupUser in the same transaction.
	Delete(ctx context.Context, userID uuid.UUID) (*domain.CleanupReport, error)
}

type userService struct {
	store repository.Store
	audit AuditService
	log   logger.Logger
}

func NewUserService(store repository.Store, audit AuditService, log logger.Logger) UserService {
	return &userService{
		store: store,
		audit: audit,
		log:   log,
	}
}

func (s *userService) GetMe(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *userService) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.store.Users().GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *userService) Summary(ctx context.Context, userID uuid.UUID) (*domain.UserDataSummary, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	sent, err := s.store.Messages().CountSent(ctx, userID)
	if err != nil {
		return nil, err
	}
	received, err := s.store.Messages().CountReceived(ctx, userID)
	if err != nil {
		return nil, err
	}
	notifications, unread, err := s.store.Notifications().CountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	edits, err := s.store.Histories().CountByEditor(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &domain.UserDataSummary{
		Username:                 user.Username,
		Email:                    user.Email,
		SentMessagesCount:        sent,
		ReceivedMessagesCount:    received,
		TotalMessages:            sent + received,
		NotificationsCount:       notifications,
		UnreadNotificationsCount: unread,
		MessageEditsCount:        edits,
		AccountCreated:           user.CreatedAt,
	}, nil
}

func (s *userService) Delete(ctx context.Context, userID uuid.UUID) (*domain.CleanupReport, error) {
	var (
		report   *domain.CleanupReport
		username string
	)
	start := time.Now()
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		user, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			return err
		}
		username = user.Username

		report, err = CleanupUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		if err := tx.Users().Delete(ctx, userID); err != nil {
			return err
		}

		return s.audit.LogEvent(ctx, tx, &userID, nil, domain.EventTypeUserDeleted, map[string]interface{}{
			"username":              username,
			"messages_deleted":      report.MessagesDeleted,
			"notifications_deleted": report.NotificationsDeleted,
			"history_detached":      report.HistoryDetached,
		})
	})
	if err != nil {
		s.log.Error("Failed to delete user", "error", err, "user_id", userID)
		return nil, err
	}

	s.log.Info("User deleted",
		"user_id", userID,
		"username", username,
		"messages_deleted", report.MessagesDeleted,
		"notifications_deleted", report.NotificationsDeleted,
		"history_detached", report.HistoryDetached,
		"duration", time.Since(start),
	)
	return report, nil
}
