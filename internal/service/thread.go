package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"threaded_messaging/internal/domain"
	"threaded_messaging/internal/repository"
	"threaded_messaging/internal/thread"
	apperrors "threaded_messaging/pkg/errors"
	"threaded_messaging/pkg/logger"
)

// Thread is one conversation loaded in a single pass: its root and an index
// over every message below it.
type Thread struct {
	Root  *domain.Message
	Index *thread.Index
}

type ThreadService interface {
	Load(ctx context.Context, messageID uuid.UUID) (*Thread, error)
	Root(ctx context.Context, messageID uuid.UUID) (*domain.Message, error)
	DirectReplies(ctx context.Context, messageID uuid.UUID) ([]*domain.Message, error)
	ReplyCount(ctx context.Context, messageID uuid.UUID) (int, error)
	TotalReplyCount(ctx context.Context, messageID uuid.UUID) (int, error)
	// ThreadMessages returns every message of the thread containing
	// messageID, oldest first.
	ThreadMessages(ctx context.Context, messageID uuid.UUID) ([]*domain.Message, error)
	ConversationTree(ctx context.Context, messageID uuid.UUID) (*thread.Node, error)
	Participants(ctx context.Context, messageID uuid.UUID) ([]*domain.User, error)

	// Conversation and ConversationTreeJSON reject viewers that took no part
	// in the thread.
	Conversation(ctx context.Context, viewerID, messageID uuid.UUID) (*domain.ConversationThread, error)
	ConversationTreeJSON(ctx context.Context, viewerID, messageID uuid.UUID) (*domain.ConversationTreeJSON, error)
	Conversations(ctx context.Context, userID uuid.UUID) ([]*domain.ConversationSummary, error)
}

type threadService struct {
	store repository.Store
	log   logger.Logger
}

func NewThreadService(store repository.Store, log logger.Logger) ThreadService {
	return &threadService{
		store: store,
		log:   log,
	}
}

func (s *threadService) Root(ctx context.Context, messageID uuid.UUID) (*domain.Message, error) {
	msg, err := s.store.Messages().GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	return thread.ResolveRoot(ctx, msg, s.store.Messages().GetByID)
}

func (s *threadService) Load(ctx context.Context, messageID uuid.UUID) (*Thread, error) {
	root, err := s.Root(ctx, messageID)
	if err != nil {
		return nil, err
	}

	msgs, err := s.store.Messages().ListThread(ctx, root.ID)
	if err != nil {
		return nil, fmt.Errorf("load thread %s: %w", root.ID, err)
	}

	return &Thread{Root: root, Index: thread.New(msgs)}, nil
}

func (s *threadService) DirectReplies(ctx context.Context, messageID uuid.UUID) ([]*domain.Message, error) {
	if _, err := s.store.Messages().GetByID(ctx, messageID); err != nil {
		return nil, err
	}
	return s.store.Messages().ListReplies(ctx, messageID)
}

func (s *threadService) ReplyCount(ctx context.Context, messageID uuid.UUID) (int, error) {
	replies, err := s.DirectReplies(ctx, messageID)
	if err != nil {
		return 0, err
	}
	return len(replies), nil
}

func (s *threadService) TotalReplyCount(ctx context.Context, messageID uuid.UUID) (int, error) {
	t, err := s.Load(ctx, messageID)
	if err != nil {
		return 0, err
	}
	return t.Index.TotalReplyCount(messageID)
}

func (s *threadService) ThreadMessages(ctx context.Context, messageID uuid.UUID) ([]*domain.Message, error) {
	t, err := s.Load(ctx, messageID)
	if err != nil {
		return nil, err
	}
	return t.Index.ThreadMessages(t.Root.ID)
}

func (s *threadService) ConversationTree(ctx context.Context, messageID uuid.UUID) (*thread.Node, error) {
	t, err := s.Load(ctx, messageID)
	if err != nil {
		return nil, err
	}
	return t.Index.Tree(t.Root.ID)
}

func (s *threadService) Participants(ctx context.Context, messageID uuid.UUID) ([]*domain.User, error) {
	t, err := s.Load(ctx, messageID)
	if err != nil {
		return nil, err
	}
	ids, err := t.Index.Participants(t.Root.ID)
	if err != nil {
		return nil, err
	}
	return orderedUsers(ctx, s.store.Users(), ids)
}

func (s *threadService) Conversation(ctx context.Context, viewerID, messageID uuid.UUID) (*domain.ConversationThread, error) {
	t, err := s.Load(ctx, messageID)
	if err != nil {
		return nil, err
	}

	ids, err := t.Index.Participants(t.Root.ID)
	if err != nil {
		return nil, err
	}
	if err := ensureParticipant(ids, viewerID); err != nil {
		return nil, err
	}

	users, err := orderedUsers(ctx, s.store.Users(), ids)
	if err != nil {
		return nil, err
	}

	tree, err := t.Index.Tree(t.Root.ID)
	if err != nil {
		return nil, err
	}

	return &domain.ConversationThread{
		RootMessageID:    t.Root.ID,
		CurrentMessageID: messageID,
		MessageCount:     tree.Size(),
		Participants:     users,
		Tree:             treeJSON(tree, usernames(users)),
	}, nil
}

func (s *threadService) ConversationTreeJSON(ctx context.Context, viewerID, messageID uuid.UUID) (*domain.ConversationTreeJSON, error) {
	conv, err := s.Conversation(ctx, viewerID, messageID)
	if err != nil {
		return nil, err
	}
	return conv.Tree, nil
}

func (s *threadService) Conversations(ctx context.Context, userID uuid.UUID) ([]*domain.ConversationSummary, error) {
	return s.store.Messages().ListRoots(ctx, userID)
}

func ensureParticipant(participants []uuid.UUID, viewerID uuid.UUID) error {
	for _, id := range participants {
		if id == viewerID {
			return nil
		}
	}
	return fmt.Errorf("%w: not a participant of this conversation", apperrors.ErrForbidden)
}

// orderedUsers loads users and returns them in the order of ids.
func orderedUsers(ctx context.Context, repo repository.UserRepository, ids []uuid.UUID) ([]*domain.User, error) {
	users, err := repo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*domain.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	out := make([]*domain.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func usernames(users []*domain.User) map[uuid.UUID]string {
	names := make(map[uuid.UUID]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Username
	}
	return names
}

func treeJSON(node *thread.Node, names map[uuid.UUID]string) *domain.ConversationTreeJSON {
	m := node.Message
	out := &domain.ConversationTreeJSON{
		MessageID: m.ID,
		Sender:    names[m.SenderID],
		Receiver:  names[m.ReceiverID],
		Content:   m.Content,
		Timestamp: m.CreatedAt,
		Edited:    m.Edited,
		IsReply:   m.IsReply(),
		Replies:   make([]*domain.ConversationTreeJSON, 0, len(node.Children)),
	}
	for _, child := range node.Children {
		out.Replies = append(out.Replies, treeJSON(child, names))
	}
	return out
}
