package service

import (
	"time"

	"github.com/google/uuid"

	"threaded_messaging/internal/domain"
)

// TrackEdit applies newContent to msg. When the content actually changes it
// returns the snapshot of the overwritten content, attributed to the
// message's sender, and marks the message edited. Identical content leaves
// msg untouched and returns nil.
//
// The snapshot must be persisted before the updated message.
func TrackEdit(msg *domain.Message, newContent string, at time.Time) *domain.MessageHistory {
	if msg.Content == newContent {
		return nil
	}

	editor := msg.SenderID
	snapshot := &domain.MessageHistory{
		ID:         uuid.New(),
		MessageID:  msg.ID,
		OldContent: msg.Content,
		EditedAt:   at,
		EditedBy:   &editor,
	}

	editedAt := at
	msg.Content = newContent
	msg.Edited = true
	msg.LastEditedAt = &editedAt

	return snapshot
}
