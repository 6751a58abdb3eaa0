package memory

import (
	"github.com/google/uuid"

	"threaded_messaging/internal/domain"
)

// Every mutation of the arena goes through the helpers below. Each one pushes
// the inverse operation onto the journal so a failed write can be replayed
// backwards. The sequence counter is never rewound, matching a database
// sequence.

func (s *state) begin() {
	s.journal = s.journal[:0]
	s.journaling = true
}

func (s *state) commit() {
	s.journal = s.journal[:0]
	s.journaling = false
}

func (s *state) rollback() {
	for i := len(s.journal) - 1; i >= 0; i-- {
		s.journal[i]()
	}
	s.commit()
}

func (s *state) record(undo func()) {
	if s.journaling {
		s.journal = append(s.journal, undo)
	}
}

func setKey[K comparable, V any](s *state, m map[K]V, k K, v V) {
	old, had := m[k]
	s.record(func() {
		if had {
			m[k] = old
		} else {
			delete(m, k)
		}
	})
	m[k] = v
}

func deleteKey[K comparable, V any](s *state, m map[K]V, k K) {
	old, had := m[k]
	if !had {
		return
	}
	s.record(func() { m[k] = old })
	delete(m, k)
}

// appendIndex adds id to an index list. The stored slice is always replaced,
// never grown in place, so a journaled header stays valid.
func appendIndex(s *state, index map[uuid.UUID][]uuid.UUID, key, id uuid.UUID) {
	old := index[key]
	next := make([]uuid.UUID, len(old), len(old)+1)
	copy(next, old)
	setKey(s, index, key, append(next, id))
}

func removeIndex(s *state, index map[uuid.UUID][]uuid.UUID, key, id uuid.UUID) {
	if _, ok := index[key]; !ok {
		return
	}
	setKey(s, index, key, without(index[key], id))
}

func (s *state) setMessage(rec *messageRecord, msg *domain.Message) {
	old := rec.msg
	s.record(func() { rec.msg = old })
	rec.msg = msg
}

func (s *state) setHistory(rec *historyRecord, entry *domain.MessageHistory) {
	old := rec.entry
	s.record(func() { rec.entry = old })
	rec.entry = entry
}

func (s *state) setNotification(rec *notificationRecord, n *domain.Notification) {
	old := rec.n
	s.record(func() { rec.n = old })
	rec.n = n
}

func (s *state) appendAudit(entry *domain.AuditLog) {
	old := s.audit
	s.record(func() { s.audit = old })
	s.audit = append(s.audit, entry)
}

// detachEditor clears the editor on every history entry written by userID.
func (s *state) detachEditor(userID uuid.UUID) int {
	n := 0
	for _, rec := range s.histories {
		if rec.entry.EditedBy != nil && *rec.entry.EditedBy == userID {
			updated := rec.entry.Clone()
			updated.EditedBy = nil
			s.setHistory(rec, updated)
			n++
		}
	}
	return n
}
