package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is owned by the identity subsystem; the messaging core only references it.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// UserDataSummary is what an account owner sees before deleting the account.
type UserDataSummary struct {
	Username                 string    `json:"username"`
	Email                    string    `json:"email"`
	SentMessagesCount        int       `json:"sent_messages_count"`
	ReceivedMessagesCount    int       `json:"received_messages_count"`
	TotalMessages            int       `json:"total_messages"`
	NotificationsCount       int       `json:"notifications_count"`
	UnreadNotificationsCount int       `json:"unread_notifications_count"`
	MessageEditsCount        int       `json:"message_edits_count"`
	AccountCreated           time.Time `json:"account_created"`
}

// CleanupReport counts what a user deletion removed or detached.
type CleanupReport struct {
	MessagesDeleted      int `json:"messages_deleted"`
	NotificationsDeleted int `json:"notifications_deleted"`
	HistoryDetached      int `json:"history_detached"`
}
