package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"threaded_messaging/internal/domain"
	"threaded_messaging/internal/repository"
	apperrors "threaded_messaging/pkg/errors"
	"threaded_messaging/pkg/logger"
)

const (
	defaultMaxContentLength = 10000
	previewLimit            = 20
)

type CreateMessageInput struct {
	SenderID   uuid.UUID
	ReceiverID uuid.UUID
	Content    string
	ParentID   *uuid.UUID
}

type MessageService interface {
	// Create stores the message and its notifications atomically.
	Create(ctx context.Context, in CreateMessageInput) (*domain.Message, error)
	// Reply answers parentID. The receiver is the parent's sender, or the
	// parent's receiver when senderID wrote the parent.
	Reply(ctx context.Context, senderID, parentID uuid.UUID, content string) (*domain.Message, error)
	// Edit replaces the content. Identical content is a no-op.
	Edit(ctx context.Context, messageID uuid.UUID, content string, editorID uuid.UUID) (*domain.Message, error)
	// Delete removes the message with its reply subtree and returns how many
	// messages were removed.
	Delete(ctx context.Context, messageID uuid.UUID, actorID uuid.UUID) (int, error)

	Get(ctx context.Context, messageID uuid.UUID) (*domain.Message, error)
	// History returns edit history entries oldest first.
	History(ctx context.Context, messageID uuid.UUID) ([]*domain.MessageHistory, error)
	HistoryJSON(ctx context.Context, viewerID, messageID uuid.UUID) (*domain.MessageHistoryJSON, error)
	Detail(ctx context.Context, viewerID, messageID uuid.UUID) (*domain.MessageDetail, error)
	Sent(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Message, error)
	Received(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Message, error)
	// Preview lists the 20 newest messages the user sent or received.
	Preview(ctx context.Context, userID uuid.UUID) ([]*domain.MessagePreview, error)
}

type messageService struct {
	store      repository.Store
	dispatcher NotificationDispatcher
	threads    ThreadService
	audit      AuditService
	log        logger.Logger
	now        func() time.Time

	maxContentLength int
}

// NewMessageService falls back to 10000 bytes when maxContentLength is not
// positive.
func NewMessageService(store repository.Store, dispatcher NotificationDispatcher, threads ThreadService, audit AuditService, maxContentLength int, log logger.Logger) MessageService {
	if maxContentLength <= 0 {
		maxContentLength = defaultMaxContentLength
	}
	return &messageService{
		store:            store,
		dispatcher:       dispatcher,
		threads:          threads,
		audit:            audit,
		log:              log,
		now:              func() time.Time { return time.Now().UTC() },
		maxContentLength: maxContentLength,
	}
}

func (s *messageService) validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return apperrors.Validation("content", "must not be empty")
	}
	if len(content) > s.maxContentLength {
		return apperrors.Validation("content", fmt.Sprintf("must be at most %d bytes", s.maxContentLength))
	}
	return nil
}

func (s *messageService) Create(ctx context.Context, in CreateMessageInput) (*domain.Message, error) {
	var msg *domain.Message
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		var err error
		msg, err = s.create(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Message created", "message_id", msg.ID, "sender_id", msg.SenderID, "receiver_id", msg.ReceiverID, "is_reply", msg.IsReply())
	return msg, nil
}

func (s *messageService) create(ctx context.Context, tx repository.Store, in CreateMessageInput) (*domain.Message, error) {
	if in.SenderID == uuid.Nil {
		return nil, apperrors.Validation("sender", "is required")
	}
	if in.ReceiverID == uuid.Nil {
		return nil, apperrors.Validation("receiver", "is required")
	}
	if err := s.validateContent(in.Content); err != nil {
		return nil, err
	}

	sender, err := tx.Users().GetByID(ctx, in.SenderID)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Users().GetByID(ctx, in.ReceiverID); err != nil {
		return nil, err
	}

	var parent *domain.Message
	if in.ParentID != nil {
		parent, err = tx.Messages().GetByID(ctx, *in.ParentID)
		if err != nil {
			return nil, err
		}
	}

	msg := &domain.Message{
		ID:         uuid.New(),
		SenderID:   in.SenderID,
		ReceiverID: in.ReceiverID,
		Content:    in.Content,
		CreatedAt:  s.now(),
	}
	if parent != nil {
		parentID := parent.ID
		msg.ParentID = &parentID
	}

	if err := tx.Messages().Create(ctx, msg); err != nil {
		return nil, err
	}

	if _, err := s.dispatcher.Dispatch(ctx, tx, msg, parent, sender); err != nil {
		return nil, err
	}

	payload := map[string]interface{}{"receiver_id": msg.ReceiverID.String()}
	if parent != nil {
		payload["parent_message_id"] = parent.ID.String()
	}
	if err := s.audit.LogEvent(ctx, tx, &msg.SenderID, &msg.ID, domain.EventTypeMessageCreated, payload); err != nil {
		return nil, err
	}

	return msg, nil
}

func (s *messageService) Reply(ctx context.Context, senderID, parentID uuid.UUID, content string) (*domain.Message, error) {
	var msg *domain.Message
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		parent, err := tx.Messages().GetByID(ctx, parentID)
		if err != nil {
			return err
		}

		receiverID := parent.SenderID
		if parent.SenderID == senderID {
			receiverID = parent.ReceiverID
		}

		msg, err = s.create(ctx, tx, CreateMessageInput{
			SenderID:   senderID,
			ReceiverID: receiverID,
			Content:    content,
			ParentID:   &parentID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Reply created", "message_id", msg.ID, "parent_message_id", parentID, "sender_id", senderID)
	return msg, nil
}

func (s *messageService) Edit(ctx context.Context, messageID uuid.UUID, content string, editorID uuid.UUID) (*domain.Message, error) {
	if err := s.validateContent(content); err != nil {
		return nil, err
	}

	var (
		msg      *domain.Message
		snapshot *domain.MessageHistory
	)
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		var err error
		msg, err = tx.Messages().GetForUpdate(ctx, messageID)
		if err != nil {
			return err
		}

		snapshot = TrackEdit(msg, content, s.now())
		if snapshot == nil {
			return nil
		}

		if err := tx.Histories().Create(ctx, snapshot); err != nil {
			return err
		}
		if err := tx.Messages().Update(ctx, msg); err != nil {
			return err
		}

		return s.audit.LogEvent(ctx, tx, &editorID, &msg.ID, domain.EventTypeMessageEdited, map[string]interface{}{
			"history_id": snapshot.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	if snapshot == nil {
		s.log.Debug("Edit with unchanged content ignored", "message_id", messageID)
	} else {
		s.log.Info("Message edited", "message_id", messageID, "history_id", snapshot.ID, "editor_id", editorID)
	}
	return msg, nil
}

func (s *messageService) Delete(ctx context.Context, messageID uuid.UUID, actorID uuid.UUID) (int, error) {
	var removed int
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Messages().GetForUpdate(ctx, messageID); err != nil {
			return err
		}

		var err error
		removed, err = tx.Messages().Delete(ctx, messageID)
		if err != nil {
			return err
		}

		return s.audit.LogEvent(ctx, tx, &actorID, &messageID, domain.EventTypeMessageDeleted, map[string]interface{}{
			"messages_removed": removed,
		})
	})
	if err != nil {
		return 0, err
	}

	s.log.Info("Message deleted", "message_id", messageID, "messages_removed", removed)
	return removed, nil
}

func (s *messageService) Get(ctx context.Context, messageID uuid.UUID) (*domain.Message, error) {
	return s.store.Messages().GetByID(ctx, messageID)
}

func (s *messageService) History(ctx context.Context, messageID uuid.UUID) ([]*domain.MessageHistory, error) {
	if _, err := s.store.Messages().GetByID(ctx, messageID); err != nil {
		return nil, err
	}
	return s.store.Histories().ListByMessage(ctx, messageID)
}

func (s *messageService) HistoryJSON(ctx context.Context, viewerID, messageID uuid.UUID) (*domain.MessageHistoryJSON, error) {
	msg, err := s.store.Messages().GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !msg.Involves(viewerID) {
		return nil, fmt.Errorf("%w: not a participant of this message", apperrors.ErrForbidden)
	}

	entries, err := s.store.Histories().ListByMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}

	var editorIDs []uuid.UUID
	for _, h := range entries {
		if h.EditedBy != nil {
			editorIDs = append(editorIDs, *h.EditedBy)
		}
	}
	editors, err := s.store.Users().ListByIDs(ctx, editorIDs)
	if err != nil {
		return nil, err
	}
	names := usernames(editors)

	out := &domain.MessageHistoryJSON{
		MessageID:      msg.ID,
		CurrentContent: msg.Content,
		Edited:         msg.Edited,
		LastEditedAt:   msg.LastEditedAt,
		History:        make([]domain.HistoryEntryJSON, 0, len(entries)),
	}
	for i := len(entries) - 1; i >= 0; i-- {
		h := entries[i]
		entry := domain.HistoryEntryJSON{
			HistoryID:  h.ID,
			OldContent: h.OldContent,
			EditedAt:   h.EditedAt,
		}
		if h.EditedBy != nil {
			if name, ok := names[*h.EditedBy]; ok {
				entry.EditedBy = &name
			}
		}
		out.History = append(out.History, entry)
	}
	return out, nil
}

func (s *messageService) Detail(ctx context.Context, viewerID, messageID uuid.UUID) (*domain.MessageDetail, error) {
	t, err := s.threads.Load(ctx, messageID)
	if err != nil {
		return nil, err
	}

	participantIDs, err := t.Index.Participants(t.Root.ID)
	if err != nil {
		return nil, err
	}
	if err := ensureParticipant(participantIDs, viewerID); err != nil {
		return nil, err
	}

	msg, ok := t.Index.Get(messageID)
	if !ok {
		return nil, apperrors.NotFound("message", messageID)
	}

	entries, err := s.store.Histories().ListByMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	newestFirst := make([]*domain.MessageHistory, len(entries))
	for i, h := range entries {
		newestFirst[len(entries)-1-i] = h
	}

	total, err := t.Index.TotalReplyCount(messageID)
	if err != nil {
		return nil, err
	}

	participants, err := orderedUsers(ctx, s.store.Users(), participantIDs)
	if err != nil {
		return nil, err
	}

	return &domain.MessageDetail{
		Message:         msg,
		History:         newestFirst,
		IsReply:         msg.IsReply(),
		RootMessageID:   t.Root.ID,
		ReplyCount:      t.Index.ReplyCount(messageID),
		TotalReplyCount: total,
		Participants:    participants,
	}, nil
}

func (s *messageService) Sent(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Message, error) {
	return s.store.Messages().ListSent(ctx, userID, limit)
}

func (s *messageService) Received(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Message, error) {
	return s.store.Messages().ListReceived(ctx, userID, limit)
}

func (s *messageService) Preview(ctx context.Context, userID uuid.UUID) ([]*domain.MessagePreview, error) {
	previews, err := s.store.Messages().ListPreview(ctx, userID, previewLimit)
	if err != nil {
		return nil, err
	}
	if previews == nil {
		previews = []*domain.MessagePreview{}
	}
	return previews, nil
}
