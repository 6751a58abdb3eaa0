package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"threaded_messaging/internal/domain"
	apperrors "threaded_messaging/pkg/errors"
)

type userRepository struct {
	h *handle
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	return r.h.write(func(s *state) error {
		for _, u := range s.users {
			if u.ID == user.ID || u.Username == user.Username || strings.EqualFold(u.Email, user.Email) {
				return apperrors.ErrUserAlreadyExists
			}
		}
		setKey(s, s.users, user.ID, user.Clone())
		return nil
	})
}

func (r *userRepository) find(match func(u *domain.User) bool, notFound error) (*domain.User, error) {
	var found *domain.User
	err := r.h.read(func(s *state) error {
		for _, u := range s.users {
			if match(u) {
				found = u.Clone()
				return nil
			}
		}
		return notFound
	})
	return found, err
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var found *domain.User
	err := r.h.read(func(s *state) error {
		u, ok := s.users[id]
		if !ok {
			return apperrors.NotFound("user", id)
		}
		found = u.Clone()
		return nil
	})
	return found, err
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Username == username },
		&apperrors.NotFoundError{Entity: "user", ID: username})
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.find(func(u *domain.User) bool { return strings.EqualFold(u.Email, email) },
		&apperrors.NotFoundError{Entity: "user", ID: email})
}

func (r *userRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.User, error) {
	var users []*domain.User
	err := r.h.read(func(s *state) error {
		seen := make(map[uuid.UUID]bool, len(ids))
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			if u, ok := s.users[id]; ok {
				users = append(users, u.Clone())
			}
		}
		return nil
	})
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, err
}

// Delete removes the user the way the foreign keys of the SQL schema would:
// messages and notifications referencing the user are removed, history
// entries keep their content but lose the editor.
func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.h.write(func(s *state) error {
		if _, ok := s.users[id]; !ok {
			return apperrors.NotFound("user", id)
		}
		s.deleteParticipant(id)
		for nid, rec := range s.notifications {
			if rec.n.UserID == id {
				deleteKey(s, s.notifications, nid)
			}
		}
		s.detachEditor(id)
		deleteKey(s, s.users, id)
		return nil
	})
}
