// Package memory is an in-process implementation of repository.Store used by
// tests and by the server when no database is configured. It keeps the same
// referential rules the PostgreSQL schema enforces: replies cascade with their
// parent, a user's messages and notifications go with the user, and history
// entries lose their editor instead of disappearing.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"threaded_messaging/internal/domain"
	"threaded_messaging/internal/repository"
	"threaded_messaging/pkg/logger"
)

type messageRecord struct {
	msg *domain.Message
	seq int64
}

type historyRecord struct {
	entry *domain.MessageHistory
	seq   int64
}

type notificationRecord struct {
	n   *domain.Notification
	seq int64
}

// state is the whole arena. Every entity is keyed by id; children and
// historyByMessage are secondary indexes kept in insertion order.
type state struct {
	seq int64

	users            map[uuid.UUID]*domain.User
	messages         map[uuid.UUID]*messageRecord
	children         map[uuid.UUID][]uuid.UUID
	histories        map[uuid.UUID]*historyRecord
	historyByMessage map[uuid.UUID][]uuid.UUID
	notifications    map[uuid.UUID]*notificationRecord
	audit            []*domain.AuditLog

	journal    []func()
	journaling bool
}

func newState() *state {
	return &state{
		users:            make(map[uuid.UUID]*domain.User),
		messages:         make(map[uuid.UUID]*messageRecord),
		children:         make(map[uuid.UUID][]uuid.UUID),
		histories:        make(map[uuid.UUID]*historyRecord),
		historyByMessage: make(map[uuid.UUID][]uuid.UUID),
		notifications:    make(map[uuid.UUID]*notificationRecord),
	}
}

func (s *state) nextSeq() int64 {
	s.seq++
	return s.seq
}

// Store guards a single arena. Writes and transactions mutate it in place
// under the write lock and undo their journal when they fail.
type Store struct {
	mu    sync.RWMutex
	state *state
	log   logger.Logger
}

var (
	_ repository.Store = (*Store)(nil)
	_ repository.Store = (*handle)(nil)
)

func NewStore(log logger.Logger) *Store {
	return &Store{state: newState(), log: log}
}

// handle is the view repositories operate through. Outside a transaction it
// locks the store for every call; inside one the lock is already held.
type handle struct {
	store *Store
	tx    *state
}

func (h *handle) read(fn func(s *state) error) error {
	if h.tx != nil {
		return fn(h.tx)
	}
	h.store.mu.RLock()
	defer h.store.mu.RUnlock()
	return fn(h.store.state)
}

func (h *handle) write(fn func(s *state) error) error {
	if h.tx != nil {
		return fn(h.tx)
	}
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return h.store.atomically(func() error { return fn(h.store.state) })
}

func (s *Store) root() *handle { return &handle{store: s} }

func (s *Store) Users() repository.UserRepository                 { return s.root().Users() }
func (s *Store) Messages() repository.MessageRepository           { return s.root().Messages() }
func (s *Store) Histories() repository.HistoryRepository          { return s.root().Histories() }
func (s *Store) Notifications() repository.NotificationRepository { return s.root().Notifications() }
func (s *Store) Audit() repository.AuditRepository                { return s.root().Audit() }

func (s *Store) InTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.root().InTx(ctx, fn)
}

func (h *handle) Users() repository.UserRepository {
	return &userRepository{h: h}
}

func (h *handle) Messages() repository.MessageRepository {
	return &messageRepository{h: h}
}

func (h *handle) Histories() repository.HistoryRepository {
	return &historyRepository{h: h}
}

func (h *handle) Notifications() repository.NotificationRepository {
	return &notificationRepository{h: h}
}

func (h *handle) Audit() repository.AuditRepository {
	return &auditRepository{h: h}
}

func (h *handle) InTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if h.tx != nil {
		return fn(h)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	err := h.store.atomically(func() error {
		return fn(&handle{store: h.store, tx: h.store.state})
	})
	if err != nil {
		h.store.log.Debug("Transaction rolled back", "error", err)
	}
	return err
}

// atomically runs fn with the journal on. Errors and panics undo every
// mutation fn made. The caller holds the write lock.
func (s *Store) atomically(fn func() error) (err error) {
	st := s.state
	st.begin()
	committed := false
	defer func() {
		if !committed {
			st.rollback()
		}
	}()

	if err = fn(); err != nil {
		return err
	}
	st.commit()
	committed = true
	return nil
}

// removeMessages deletes the given messages together with their history and
// notifications and unlinks them from the children index.
func (s *state) removeMessages(ids map[uuid.UUID]struct{}) {
	for id := range ids {
		r, ok := s.messages[id]
		if !ok {
			continue
		}
		for _, hid := range s.historyByMessage[id] {
			deleteKey(s, s.histories, hid)
		}
		deleteKey(s, s.historyByMessage, id)
		deleteKey(s, s.children, id)
		if r.msg.ParentID != nil {
			if _, parentGone := ids[*r.msg.ParentID]; !parentGone {
				removeIndex(s, s.children, *r.msg.ParentID, id)
			}
		}
		deleteKey(s, s.messages, id)
	}
	for nid, r := range s.notifications {
		if r.n.MessageID == nil {
			continue
		}
		if _, gone := ids[*r.n.MessageID]; gone {
			deleteKey(s, s.notifications, nid)
		}
	}
}

// subtree collects the starting messages and every descendant of them.
func (s *state) subtree(start []uuid.UUID) map[uuid.UUID]struct{} {
	seen := make(map[uuid.UUID]struct{}, len(start))
	queue := append([]uuid.UUID(nil), start...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		queue = append(queue, s.children[id]...)
	}
	return seen
}

func without(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
