package domain

import (
	"time"

	"github.com/google/uuid"
)

// ConversationTreeJSON is the wire shape of a conversation tree node.
type ConversationTreeJSON struct {
	MessageID uuid.UUID               `json:"message_id"`
	Sender    string                  `json:"sender"`
	Receiver  string                  `json:"receiver"`
	Content   string                  `json:"content"`
	Timestamp time.Time               `json:"timestamp"`
	Edited    bool                    `json:"edited"`
	IsReply   bool                    `json:"is_reply"`
	Replies   []*ConversationTreeJSON `json:"replies"`
}

type HistoryEntryJSON struct {
	HistoryID  uuid.UUID `json:"history_id"`
	OldContent string    `json:"old_content"`
	EditedAt   time.Time `json:"edited_at"`
	EditedBy   *string   `json:"edited_by"`
}

// MessageHistoryJSON is the wire shape of a message's edit history, newest entry first.
type MessageHistoryJSON struct {
	MessageID      uuid.UUID          `json:"message_id"`
	CurrentContent string             `json:"current_content"`
	Edited         bool               `json:"edited"`
	LastEditedAt   *time.Time         `json:"last_edited_at"`
	History        []HistoryEntryJSON `json:"history"`
}
