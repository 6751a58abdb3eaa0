package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"threaded_messaging/internal/domain"
	apperrors "threaded_messaging/pkg/errors"
)

type messageRepository struct {
	h *handle
}

func (r *messageRepository) Create(ctx context.Context, message *domain.Message) error {
	return r.h.write(func(s *state) error {
		if _, ok := s.messages[message.ID]; ok {
			return apperrors.Integrity("message %s already exists", message.ID)
		}
		if _, ok := s.users[message.SenderID]; !ok {
			return apperrors.NotFound("sender", message.SenderID)
		}
		if _, ok := s.users[message.ReceiverID]; !ok {
			return apperrors.NotFound("receiver", message.ReceiverID)
		}
		if message.ParentID != nil {
			if *message.ParentID == message.ID {
				return apperrors.Integrity("message %s cannot be its own parent", message.ID)
			}
			if _, ok := s.messages[*message.ParentID]; !ok {
				return apperrors.NotFound("parent message", *message.ParentID)
			}
			appendIndex(s, s.children, *message.ParentID, message.ID)
		}
		setKey(s, s.messages, message.ID, &messageRecord{msg: message.Clone(), seq: s.nextSeq()})
		return nil
	})
}

func (r *messageRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	var found *domain.Message
	err := r.h.read(func(s *state) error {
		rec, ok := s.messages[id]
		if !ok {
			return apperrors.NotFound("message", id)
		}
		found = rec.msg.Clone()
		return nil
	})
	return found, err
}

// GetForUpdate needs no row lock here: a transaction already holds the
// store's write lock for its whole duration.
func (r *messageRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	return r.GetByID(ctx, id)
}

func (r *messageRepository) Update(ctx context.Context, message *domain.Message) error {
	return r.h.write(func(s *state) error {
		rec, ok := s.messages[message.ID]
		if !ok {
			return apperrors.NotFound("message", message.ID)
		}
		updated := rec.msg.Clone()
		updated.Content = message.Content
		updated.Edited = message.Edited
		updated.Read = message.Read
		if message.LastEditedAt != nil {
			t := *message.LastEditedAt
			updated.LastEditedAt = &t
		} else {
			updated.LastEditedAt = nil
		}
		s.setMessage(rec, updated)
		return nil
	})
}

func (r *messageRepository) Delete(ctx context.Context, id uuid.UUID) (int, error) {
	var removed int
	err := r.h.write(func(s *state) error {
		if _, ok := s.messages[id]; !ok {
			return apperrors.NotFound("message", id)
		}
		doomed := s.subtree([]uuid.UUID{id})
		s.removeMessages(doomed)
		removed = len(doomed)
		return nil
	})
	return removed, err
}

func (r *messageRepository) DeleteByParticipant(ctx context.Context, userID uuid.UUID) (int, error) {
	var removed int
	err := r.h.write(func(s *state) error {
		removed = s.deleteParticipant(userID)
		return nil
	})
	return removed, err
}

func (s *state) deleteParticipant(userID uuid.UUID) int {
	var start []uuid.UUID
	for id, rec := range s.messages {
		if rec.msg.Involves(userID) {
			start = append(start, id)
		}
	}
	if len(start) == 0 {
		return 0
	}
	doomed := s.subtree(start)
	s.removeMessages(doomed)
	return len(doomed)
}

// sortedMessages orders records by creation time, breaking ties by insertion.
func sortedMessages(recs []*messageRecord, newestFirst bool) []*domain.Message {
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if !a.msg.CreatedAt.Equal(b.msg.CreatedAt) {
			if newestFirst {
				return a.msg.CreatedAt.After(b.msg.CreatedAt)
			}
			return a.msg.CreatedAt.Before(b.msg.CreatedAt)
		}
		if newestFirst {
			return a.seq > b.seq
		}
		return a.seq < b.seq
	})
	out := make([]*domain.Message, len(recs))
	for i, rec := range recs {
		out[i] = rec.msg.Clone()
	}
	return out
}

func (r *messageRepository) filter(match func(m *domain.Message) bool, newestFirst bool, limit int) ([]*domain.Message, error) {
	var out []*domain.Message
	err := r.h.read(func(s *state) error {
		var recs []*messageRecord
		for _, rec := range s.messages {
			if match(rec.msg) {
				recs = append(recs, rec)
			}
		}
		out = sortedMessages(recs, newestFirst)
		return nil
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (r *messageRepository) count(match func(m *domain.Message) bool) (int, error) {
	var n int
	err := r.h.read(func(s *state) error {
		for _, rec := range s.messages {
			if match(rec.msg) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *messageRepository) ListThread(ctx context.Context, rootID uuid.UUID) ([]*domain.Message, error) {
	var out []*domain.Message
	err := r.h.read(func(s *state) error {
		if _, ok := s.messages[rootID]; !ok {
			return apperrors.NotFound("message", rootID)
		}
		ids := s.subtree([]uuid.UUID{rootID})
		recs := make([]*messageRecord, 0, len(ids))
		for id := range ids {
			recs = append(recs, s.messages[id])
		}
		out = sortedMessages(recs, false)
		return nil
	})
	return out, err
}

func (r *messageRepository) ListReplies(ctx context.Context, parentID uuid.UUID) ([]*domain.Message, error) {
	var out []*domain.Message
	err := r.h.read(func(s *state) error {
		recs := make([]*messageRecord, 0, len(s.children[parentID]))
		for _, id := range s.children[parentID] {
			recs = append(recs, s.messages[id])
		}
		out = sortedMessages(recs, false)
		return nil
	})
	return out, err
}

func (r *messageRepository) ListRoots(ctx context.Context, userID uuid.UUID) ([]*domain.ConversationSummary, error) {
	var out []*domain.ConversationSummary
	err := r.h.read(func(s *state) error {
		var recs []*messageRecord
		for _, rec := range s.messages {
			if rec.msg.IsRoot() && rec.msg.Involves(userID) {
				recs = append(recs, rec)
			}
		}
		for _, m := range sortedMessages(recs, true) {
			out = append(out, &domain.ConversationSummary{Root: m, ReplyCount: len(s.children[m.ID])})
		}
		return nil
	})
	return out, err
}

func (r *messageRepository) ListSent(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Message, error) {
	return r.filter(func(m *domain.Message) bool { return m.SenderID == userID }, true, limit)
}

func (r *messageRepository) ListReceived(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Message, error) {
	return r.filter(func(m *domain.Message) bool { return m.ReceiverID == userID }, true, limit)
}

func (r *messageRepository) ListPreview(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.MessagePreview, error) {
	var out []*domain.MessagePreview
	err := r.h.read(func(s *state) error {
		var recs []*messageRecord
		for _, rec := range s.messages {
			if rec.msg.Involves(userID) {
				recs = append(recs, rec)
			}
		}
		msgs := sortedMessages(recs, true)
		if limit > 0 && len(msgs) > limit {
			msgs = msgs[:limit]
		}
		for _, m := range msgs {
			out = append(out, &domain.MessagePreview{
				MessageID: m.ID,
				Sender:    s.users[m.SenderID].Username,
				Receiver:  s.users[m.ReceiverID].Username,
				Content:   m.Content,
				Timestamp: m.CreatedAt,
				Read:      m.Read,
			})
		}
		return nil
	})
	return out, err
}

func (r *messageRepository) CountSent(ctx context.Context, userID uuid.UUID) (int, error) {
	return r.count(func(m *domain.Message) bool { return m.SenderID == userID })
}

func (r *messageRepository) CountReceived(ctx context.Context, userID uuid.UUID) (int, error) {
	return r.count(func(m *domain.Message) bool { return m.ReceiverID == userID })
}

func unreadMatcher(receiverID uuid.UUID, f domain.UnreadFilter) func(m *domain.Message) bool {
	return func(m *domain.Message) bool {
		if m.ReceiverID != receiverID || m.Read {
			return false
		}
		if f.SenderID != nil && m.SenderID != *f.SenderID {
			return false
		}
		return !f.RootOnly || m.IsRoot()
	}
}

func (r *messageRepository) ListUnread(ctx context.Context, receiverID uuid.UUID, f domain.UnreadFilter) ([]*domain.Message, error) {
	return r.filter(unreadMatcher(receiverID, f), true, 0)
}

func (r *messageRepository) CountUnread(ctx context.Context, receiverID uuid.UUID, f domain.UnreadFilter) (int, error) {
	return r.count(unreadMatcher(receiverID, f))
}

func (r *messageRepository) MarkAllRead(ctx context.Context, receiverID uuid.UUID) (int, error) {
	var n int
	err := r.h.write(func(s *state) error {
		for _, rec := range s.messages {
			if rec.msg.ReceiverID == receiverID && !rec.msg.Read {
				updated := rec.msg.Clone()
				updated.Read = true
				s.setMessage(rec, updated)
				n++
			}
		}
		return nil
	})
	return n, err
}
