package domain

import (
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID          int64                  `json:"id"`
	EventTime   time.Time              `json:"event_time"`
	ActorUserID *uuid.UUID             `json:"actor_user_id,omitempty"`
	MessageID   *uuid.UUID             `json:"message_id,omitempty"`
	EventType   string                 `json:"event_type"`
	Payload     map[string]interface{} `json:"payload"`
}

const (
	EventTypeMessageCreated = "MESSAGE_CREATED"
	EventTypeMessageEdited  = "MESSAGE_EDITED"
	EventTypeMessageDeleted = "MESSAGE_DELETED"
	EventTypeUserDeleted    = "USER_DELETED"
)
