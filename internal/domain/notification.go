package domain

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationTypeMessage NotificationType = "message"
	NotificationTypeReply   NotificationType = "reply"
	NotificationTypeSystem  NotificationType = "system"
)

type Notification struct {
	ID        uuid.UUID        `json:"notification_id"`
	UserID    uuid.UUID        `json:"user_id"`
	MessageID *uuid.UUID       `json:"message_id,omitempty"`
	Type      NotificationType `json:"notification_type"`
	Content   string           `json:"content"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}

func (n *Notification) Clone() *Notification {
	if n == nil {
		return nil
	}
	c := *n
	if n.MessageID != nil {
		id := *n.MessageID
		c.MessageID = &id
	}
	return &c
}

// NotificationIntent is a notification that has been decided on but not persisted.
type NotificationIntent struct {
	UserID    uuid.UUID
	MessageID uuid.UUID
	Type      NotificationType
	Content   string
}
