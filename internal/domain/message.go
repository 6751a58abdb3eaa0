package domain

import (
	"time"

	"github.com/google/uuid"
)

type Message struct {
	ID           uuid.UUID  `json:"message_id"`
	SenderID     uuid.UUID  `json:"sender_id"`
	ReceiverID   uuid.UUID  `json:"receiver_id"`
	ParentID     *uuid.UUID `json:"parent_message_id,omitempty"`
	Content      string     `json:"content"`
	CreatedAt    time.Time  `json:"timestamp"`
	Edited       bool       `json:"edited"`
	LastEditedAt *time.Time `json:"last_edited_at,omitempty"`
	Read         bool       `json:"read"`
}

func (m *Message) IsReply() bool {
	return m.ParentID != nil
}

func (m *Message) IsRoot() bool {
	return m.ParentID == nil
}

// Involves reports whether the user sent or received the message.
func (m *Message) Involves(userID uuid.UUID) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}

func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	if m.ParentID != nil {
		parent := *m.ParentID
		c.ParentID = &parent
	}
	if m.LastEditedAt != nil {
		editedAt := *m.LastEditedAt
		c.LastEditedAt = &editedAt
	}
	return &c
}

// MessageHistory is an immutable snapshot of content that an edit overwrote.
type MessageHistory struct {
	ID         uuid.UUID  `json:"history_id"`
	MessageID  uuid.UUID  `json:"message_id"`
	OldContent string     `json:"old_content"`
	EditedAt   time.Time  `json:"edited_at"`
	EditedBy   *uuid.UUID `json:"edited_by,omitempty"`
}

func (h *MessageHistory) Clone() *MessageHistory {
	if h == nil {
		return nil
	}
	c := *h
	if h.EditedBy != nil {
		editor := *h.EditedBy
		c.EditedBy = &editor
	}
	return &c
}

// UnreadFilter narrows unread queries for a receiver.
type UnreadFilter struct {
	SenderID *uuid.UUID
	RootOnly bool
}

// ConversationSummary is a root message with its direct reply count.
type ConversationSummary struct {
	Root       *Message `json:"root"`
	ReplyCount int      `json:"reply_count"`
}
