package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"threaded_messaging/internal/domain"
	apperrors "threaded_messaging/pkg/errors"
)

type notificationRepository struct {
	h *handle
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	return r.h.write(func(s *state) error {
		if _, ok := s.users[n.UserID]; !ok {
			return apperrors.NotFound("notification recipient", n.UserID)
		}
		if n.MessageID != nil {
			if _, ok := s.messages[*n.MessageID]; !ok {
				return apperrors.NotFound("message", *n.MessageID)
			}
		}
		setKey(s, s.notifications, n.ID, &notificationRecord{n: n.Clone(), seq: s.nextSeq()})
		return nil
	})
}

func (r *notificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	var found *domain.Notification
	err := r.h.read(func(s *state) error {
		rec, ok := s.notifications[id]
		if !ok {
			return apperrors.NotFound("notification", id)
		}
		found = rec.n.Clone()
		return nil
	})
	return found, err
}

func (r *notificationRepository) collect(match func(n *domain.Notification) bool, newestFirst bool) ([]*domain.Notification, error) {
	var out []*domain.Notification
	err := r.h.read(func(s *state) error {
		var recs []*notificationRecord
		for _, rec := range s.notifications {
			if match(rec.n) {
				recs = append(recs, rec)
			}
		}
		sort.Slice(recs, func(i, j int) bool {
			a, b := recs[i], recs[j]
			if !a.n.CreatedAt.Equal(b.n.CreatedAt) {
				return a.n.CreatedAt.After(b.n.CreatedAt) == newestFirst
			}
			return (a.seq > b.seq) == newestFirst
		})
		for _, rec := range recs {
			out = append(out, rec.n.Clone())
		}
		return nil
	})
	return out, err
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]*domain.Notification, error) {
	return r.collect(func(n *domain.Notification) bool {
		return n.UserID == userID && (!unreadOnly || !n.IsRead)
	}, true)
}

func (r *notificationRepository) ListByMessage(ctx context.Context, messageID uuid.UUID) ([]*domain.Notification, error) {
	return r.collect(func(n *domain.Notification) bool {
		return n.MessageID != nil && *n.MessageID == messageID
	}, false)
}

func (r *notificationRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int, int, error) {
	var total, unread int
	err := r.h.read(func(s *state) error {
		for _, rec := range s.notifications {
			if rec.n.UserID != userID {
				continue
			}
			total++
			if !rec.n.IsRead {
				unread++
			}
		}
		return nil
	})
	return total, unread, err
}

func (r *notificationRepository) MarkRead(ctx context.Context, id uuid.UUID) error {
	return r.h.write(func(s *state) error {
		rec, ok := s.notifications[id]
		if !ok {
			return apperrors.NotFound("notification", id)
		}
		updated := rec.n.Clone()
		updated.IsRead = true
		s.setNotification(rec, updated)
		return nil
	})
}

func (r *notificationRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := r.h.write(func(s *state) error {
		for id, rec := range s.notifications {
			if rec.n.UserID == userID {
				deleteKey(s, s.notifications, id)
				n++
			}
		}
		return nil
	})
	return n, err
}
