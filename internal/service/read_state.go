package service

import (
	"context"

	"github.com/google/uuid"

	"threaded_messaging/internal/domain"
	"threaded_messaging/internal/repository"
	apperrors "threaded_messaging/pkg/errors"
	"threaded_messaging/pkg/logger"
)

const defaultInboxPageSize = 50

// ReadStateService answers unread queries for a receiver. Every list is
// newest first.
type ReadStateService interface {
	UnreadFor(ctx context.Context, userID uuid.UUID) ([]*domain.Message, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
	UnreadFromSender(ctx context.Context, userID, senderID uuid.UUID) ([]*domain.Message, error)
	UnreadRootThreads(ctx context.Context, userID uuid.UUID) ([]*domain.Message, error)
	Counts(ctx context.Context, userID uuid.UUID) (*domain.UnreadCounts, error)
	Inbox(ctx context.Context, userID uuid.UUID) (*domain.Inbox, error)

	// MarkAllRead returns how many messages changed state.
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int, error)
	// MarkRead and MarkUnread only accept the message's receiver and succeed
	// without a write when the message is already in the requested state.
	MarkRead(ctx context.Context, userID, messageID uuid.UUID) (*domain.Message, error)
	MarkUnread(ctx context.Context, userID, messageID uuid.UUID) (*domain.Message, error)
}

type readStateService struct {
	store    repository.Store
	pageSize int
	log      logger.Logger
}

func NewReadStateService(store repository.Store, pageSize int, log logger.Logger) ReadStateService {
	if pageSize <= 0 {
		pageSize = defaultInboxPageSize
	}
	return &readStateService{
		store:    store,
		pageSize: pageSize,
		log:      log,
	}
}

func (s *readStateService) UnreadFor(ctx context.Context, userID uuid.UUID) ([]*domain.Message, error) {
	return s.store.Messages().ListUnread(ctx, userID, domain.UnreadFilter{})
}

func (s *readStateService) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.store.Messages().CountUnread(ctx, userID, domain.UnreadFilter{})
}

func (s *readStateService) UnreadFromSender(ctx context.Context, userID, senderID uuid.UUID) ([]*domain.Message, error) {
	return s.store.Messages().ListUnread(ctx, userID, domain.UnreadFilter{SenderID: &senderID})
}

func (s *readStateService) UnreadRootThreads(ctx context.Context, userID uuid.UUID) ([]*domain.Message, error) {
	return s.store.Messages().ListUnread(ctx, userID, domain.UnreadFilter{RootOnly: true})
}

func (s *readStateService) Counts(ctx context.Context, userID uuid.UUID) (*domain.UnreadCounts, error) {
	unread, err := s.store.Messages().CountUnread(ctx, userID, domain.UnreadFilter{})
	if err != nil {
		return nil, err
	}
	threads, err := s.store.Messages().CountUnread(ctx, userID, domain.UnreadFilter{RootOnly: true})
	if err != nil {
		return nil, err
	}
	return &domain.UnreadCounts{UnreadCount: unread, UnreadThreads: threads}, nil
}

func (s *readStateService) Inbox(ctx context.Context, userID uuid.UUID) (*domain.Inbox, error) {
	received, err := s.store.Messages().ListReceived(ctx, userID, s.pageSize)
	if err != nil {
		return nil, err
	}
	counts, err := s.Counts(ctx, userID)
	if err != nil {
		return nil, err
	}
	if received == nil {
		received = []*domain.Message{}
	}
	return &domain.Inbox{Messages: received, UnreadCounts: *counts}, nil
}

func (s *readStateService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int, error) {
	n, err := s.store.Messages().MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.log.Info("Messages marked read", "user_id", userID, "count", n)
	return n, nil
}

func (s *readStateService) MarkRead(ctx context.Context, userID, messageID uuid.UUID) (*domain.Message, error) {
	return s.setRead(ctx, userID, messageID, true)
}

func (s *readStateService) MarkUnread(ctx context.Context, userID, messageID uuid.UUID) (*domain.Message, error) {
	return s.setRead(ctx, userID, messageID, false)
}

func (s *readStateService) setRead(ctx context.Context, userID, messageID uuid.UUID, read bool) (*domain.Message, error) {
	var msg *domain.Message
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		var err error
		msg, err = tx.Messages().GetForUpdate(ctx, messageID)
		if err != nil {
			return err
		}
		// other users' messages are reported as missing
		if msg.ReceiverID != userID {
			return apperrors.NotFound("message", messageID)
		}
		if msg.Read == read {
			return nil
		}
		msg.Read = read
		return tx.Messages().Update(ctx, msg)
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}
