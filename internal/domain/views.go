package domain

import (
	"time"

	"github.com/google/uuid"
)

// MessageDetail is a message with its edit history (newest first) and its
// position in the thread.
type MessageDetail struct {
	Message         *Message          `json:"message"`
	History         []*MessageHistory `json:"history"`
	IsReply         bool              `json:"is_reply"`
	RootMessageID   uuid.UUID         `json:"root_message_id"`
	ReplyCount      int               `json:"reply_count"`
	TotalReplyCount int               `json:"total_reply_count"`
	Participants    []*User           `json:"participants"`
}

// ConversationThread is the full thread around one message.
type ConversationThread struct {
	RootMessageID    uuid.UUID             `json:"root_message_id"`
	CurrentMessageID uuid.UUID             `json:"current_message_id"`
	MessageCount     int                   `json:"message_count"`
	Participants     []*User               `json:"participants"`
	Tree             *ConversationTreeJSON `json:"tree"`
}

type UnreadCounts struct {
	UnreadCount   int `json:"unread_count"`
	UnreadThreads int `json:"unread_threads"`
}

type Inbox struct {
	Messages []*Message `json:"received_messages"`
	UnreadCounts
}

// MessagePreview is the narrow listing row of a message the user sent or
// received.
type MessagePreview struct {
	MessageID uuid.UUID `json:"message_id"`
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}
