package repository

import (
	"context"

	"github.com/google/uuid"

	"threaded_messaging/internal/domain"
)

// Store is the entity store. Repositories obtained from a Store passed to an
// InTx callback share that transaction; InTx on such a Store joins the
// running transaction instead of opening a new one.
type Store interface {
	Users() UserRepository
	Messages() MessageRepository
	Histories() HistoryRepository
	Notifications() NotificationRepository
	Audit() AuditRepository
	InTx(ctx context.Context, fn func(tx Store) error) error
}

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type MessageRepository interface {
	Create(ctx context.Context, message *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	// GetForUpdate loads the message and holds it against concurrent writers
	// until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	Update(ctx context.Context, message *domain.Message) error
	// Delete removes the message and its whole reply subtree together with
	// their history and notifications. Returns the number of messages removed.
	Delete(ctx context.Context, id uuid.UUID) (int, error)
	// DeleteByParticipant removes every message the user sent or received,
	// cascading like Delete.
	DeleteByParticipant(ctx context.Context, userID uuid.UUID) (int, error)

	// ListThread returns the root and all of its descendants, oldest first.
	ListThread(ctx context.Context, rootID uuid.UUID) ([]*domain.Message, error)
	ListReplies(ctx context.Context, parentID uuid.UUID) ([]*domain.Message, error)
	ListRoots(ctx context.Context, userID uuid.UUID) ([]*domain.ConversationSummary, error)
	ListSent(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Message, error)
	ListReceived(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Message, error)
	// ListPreview returns the newest messages the user sent or received with
	// the participants' usernames.
	ListPreview(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.MessagePreview, error)
	CountSent(ctx context.Context, userID uuid.UUID) (int, error)
	CountReceived(ctx context.Context, userID uuid.UUID) (int, error)

	// ListUnread returns unread messages received by the user, newest first.
	ListUnread(ctx context.Context, receiverID uuid.UUID, filter domain.UnreadFilter) ([]*domain.Message, error)
	CountUnread(ctx context.Context, receiverID uuid.UUID, filter domain.UnreadFilter) (int, error)
	MarkAllRead(ctx context.Context, receiverID uuid.UUID) (int, error)
}

type HistoryRepository interface {
	Create(ctx context.Context, history *domain.MessageHistory) error
	// ListByMessage returns history entries oldest first.
	ListByMessage(ctx context.Context, messageID uuid.UUID) ([]*domain.MessageHistory, error)
	CountByMessage(ctx context.Context, messageID uuid.UUID) (int, error)
	CountByEditor(ctx context.Context, editorID uuid.UUID) (int, error)
	// ClearEditor nulls the editor of every entry the user authored.
	ClearEditor(ctx context.Context, editorID uuid.UUID) (int, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, notification *domain.Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error)
	// ListByUser returns notifications newest first.
	ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]*domain.Notification, error)
	ListByMessage(ctx context.Context, messageID uuid.UUID) ([]*domain.Notification, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (total int, unread int, err error)
	MarkRead(ctx context.Context, id uuid.UUID) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) (int, error)
}
