package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"threaded_messaging/internal/domain"
	apperrors "threaded_messaging/pkg/errors"
)

type historyRepository struct {
	h *handle
}

func (r *historyRepository) Create(ctx context.Context, history *domain.MessageHistory) error {
	return r.h.write(func(s *state) error {
		if _, ok := s.messages[history.MessageID]; !ok {
			return apperrors.NotFound("message", history.MessageID)
		}
		setKey(s, s.histories, history.ID, &historyRecord{entry: history.Clone(), seq: s.nextSeq()})
		appendIndex(s, s.historyByMessage, history.MessageID, history.ID)
		return nil
	})
}

func (r *historyRepository) ListByMessage(ctx context.Context, messageID uuid.UUID) ([]*domain.MessageHistory, error) {
	var out []*domain.MessageHistory
	err := r.h.read(func(s *state) error {
		recs := make([]*historyRecord, 0, len(s.historyByMessage[messageID]))
		for _, id := range s.historyByMessage[messageID] {
			recs = append(recs, s.histories[id])
		}
		sort.Slice(recs, func(i, j int) bool {
			a, b := recs[i], recs[j]
			if !a.entry.EditedAt.Equal(b.entry.EditedAt) {
				return a.entry.EditedAt.Before(b.entry.EditedAt)
			}
			return a.seq < b.seq
		})
		for _, rec := range recs {
			out = append(out, rec.entry.Clone())
		}
		return nil
	})
	return out, err
}

func (r *historyRepository) CountByMessage(ctx context.Context, messageID uuid.UUID) (int, error) {
	var n int
	err := r.h.read(func(s *state) error {
		n = len(s.historyByMessage[messageID])
		return nil
	})
	return n, err
}

func (r *historyRepository) CountByEditor(ctx context.Context, editorID uuid.UUID) (int, error) {
	var n int
	err := r.h.read(func(s *state) error {
		for _, rec := range s.histories {
			if rec.entry.EditedBy != nil && *rec.entry.EditedBy == editorID {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *historyRepository) ClearEditor(ctx context.Context, editorID uuid.UUID) (int, error) {
	var n int
	err := r.h.write(func(s *state) error {
		n = s.detachEditor(editorID)
		return nil
	})
	return n, err
}
