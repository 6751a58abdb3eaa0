package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"threaded_messaging/internal/domain"
	"threaded_messaging/internal/repository"
	"threaded_messaging/pkg/logger"
)

const (
	newMessageTemplate   = "You have a new message from %s"
	newReplyTemplate     = "You have a new reply from %s"
	repliedToYouTemplate = "%s replied to your message"
)

// PlanNotifications decides who hears about a freshly created message.
// parent is nil for root messages.
//
// The receiver always gets one notification. For a reply, the author of the
// parent message gets a second one unless they are the sender or the
// receiver of the reply.
func PlanNotifications(msg, parent *domain.Message, senderName string) []domain.NotificationIntent {
	if parent == nil {
		return []domain.NotificationIntent{{
			UserID:    msg.ReceiverID,
			MessageID: msg.ID,
			Type:      domain.NotificationTypeMessage,
			Content:   fmt.Sprintf(newMessageTemplate, senderName),
		}}
	}

	intents := []domain.NotificationIntent{{
		UserID:    msg.ReceiverID,
		MessageID: msg.ID,
		Type:      domain.NotificationTypeReply,
		Content:   fmt.Sprintf(newReplyTemplate, senderName),
	}}

	original := parent.SenderID
	if original != msg.ReceiverID && original != msg.SenderID {
		intents = append(intents, domain.NotificationIntent{
			UserID:    original,
			MessageID: msg.ID,
			Type:      domain.NotificationTypeReply,
			Content:   fmt.Sprintf(repliedToYouTemplate, senderName),
		})
	}

	return intents
}

// NotificationDispatcher persists the notifications for a new message inside
// the transaction that created it.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, tx repository.Store, msg, parent *domain.Message, sender *domain.User) ([]*domain.Notification, error)
}

type notificationDispatcher struct {
	log logger.Logger
}

func NewNotificationDispatcher(log logger.Logger) NotificationDispatcher {
	return &notificationDispatcher{log: log}
}

func (d *notificationDispatcher) Dispatch(ctx context.Context, tx repository.Store, msg, parent *domain.Message, sender *domain.User) ([]*domain.Notification, error) {
	intents := PlanNotifications(msg, parent, sender.Username)

	created := make([]*domain.Notification, 0, len(intents))
	for _, intent := range intents {
		messageID := intent.MessageID
		n := &domain.Notification{
			ID:        uuid.New(),
			UserID:    intent.UserID,
			MessageID: &messageID,
			Type:      intent.Type,
			Content:   intent.Content,
			CreatedAt: msg.CreatedAt,
		}
		if err := tx.Notifications().Create(ctx, n); err != nil {
			d.log.Error("Failed to dispatch notification", "error", err, "message_id", msg.ID, "user_id", intent.UserID)
			return nil, fmt.Errorf("dispatch notification: %w", err)
		}
		created = append(created, n)
	}

	d.log.Debug("Notifications dispatched", "message_id", msg.ID, "count", len(created))
	return created, nil
}
