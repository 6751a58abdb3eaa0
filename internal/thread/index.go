// Package thread derives reply-tree structure from the parent links of a set
// of messages. Nothing here is persisted: an Index is built per request from
// the messages a store returns and discarded afterwards.
package thread

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"threaded_messaging/internal/domain"
	apperrors "threaded_messaging/pkg/errors"
)

// Node is one message of a conversation tree with its replies ordered by
// creation time.
type Node struct {
	Message  *domain.Message
	Children []*Node
}

// Size counts the node and all of its descendants.
func (n *Node) Size() int {
	size := 1
	for _, child := range n.Children {
		size += child.Size()
	}
	return size
}

// Index is an arena of messages keyed by id with a parent -> replies index.
// Not safe for concurrent mutation; build one per request.
type Index struct {
	messages map[uuid.UUID]*domain.Message
	position map[uuid.UUID]int
	children map[uuid.UUID][]*domain.Message
	roots    map[uuid.UUID]*domain.Message
}

// New builds an index. The slice order is used to break ties between
// messages created at the same instant, so callers pass messages in
// insertion order.
func New(messages []*domain.Message) *Index {
	idx := &Index{
		messages: make(map[uuid.UUID]*domain.Message, len(messages)),
		position: make(map[uuid.UUID]int, len(messages)),
		children: make(map[uuid.UUID][]*domain.Message),
		roots:    make(map[uuid.UUID]*domain.Message),
	}
	for i, m := range messages {
		if m == nil {
			continue
		}
		if _, dup := idx.messages[m.ID]; dup {
			continue
		}
		idx.messages[m.ID] = m
		idx.position[m.ID] = i
		if m.ParentID != nil {
			idx.children[*m.ParentID] = append(idx.children[*m.ParentID], m)
		}
	}
	for parentID := range idx.children {
		idx.sortChronologically(idx.children[parentID])
	}
	return idx
}

func (idx *Index) sortChronologically(msgs []*domain.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		a, b := msgs[i], msgs[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return idx.position[a.ID] < idx.position[b.ID]
	})
}

func (idx *Index) Len() int {
	return len(idx.messages)
}

func (idx *Index) Get(id uuid.UUID) (*domain.Message, bool) {
	m, ok := idx.messages[id]
	return m, ok
}

// Root walks parent links until a message without a parent. Results are
// memoized for every message on the walked path.
func (idx *Index) Root(id uuid.UUID) (*domain.Message, error) {
	if root, ok := idx.roots[id]; ok {
		return root, nil
	}
	current, ok := idx.messages[id]
	if !ok {
		return nil, apperrors.NotFound("message", id)
	}

	visited := map[uuid.UUID]bool{}
	var path []uuid.UUID
	for current.ParentID != nil {
		if visited[current.ID] {
			return nil, apperrors.Integrity("message %s is its own ancestor", current.ID)
		}
		visited[current.ID] = true
		path = append(path, current.ID)

		if root, ok := idx.roots[*current.ParentID]; ok {
			current = root
			break
		}
		parent, ok := idx.messages[*current.ParentID]
		if !ok {
			return nil, apperrors.NotFound("parent message", *current.ParentID)
		}
		current = parent
	}

	idx.roots[current.ID] = current
	for _, mid := range path {
		idx.roots[mid] = current
	}
	return current, nil
}

func (idx *Index) DirectReplies(id uuid.UUID) []*domain.Message {
	replies := idx.children[id]
	out := make([]*domain.Message, len(replies))
	copy(out, replies)
	return out
}

func (idx *Index) ReplyCount(id uuid.UUID) int {
	return len(idx.children[id])
}

// TotalReplyCount counts every transitive descendant of id.
func (idx *Index) TotalReplyCount(id uuid.UUID) (int, error) {
	descendants, err := idx.descendants(id)
	if err != nil {
		return 0, err
	}
	return len(descendants), nil
}

// descendants walks the reply tree depth-first without recursion.
func (idx *Index) descendants(id uuid.UUID) ([]*domain.Message, error) {
	if _, ok := idx.messages[id]; !ok {
		return nil, apperrors.NotFound("message", id)
	}

	visited := map[uuid.UUID]bool{id: true}
	stack := []uuid.UUID{id}
	var out []*domain.Message
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, reply := range idx.children[current] {
			if visited[reply.ID] {
				return nil, apperrors.Integrity("message %s is its own ancestor", reply.ID)
			}
			visited[reply.ID] = true
			out = append(out, reply)
			stack = append(stack, reply.ID)
		}
	}
	return out, nil
}

// ThreadMessages returns the root and every message below it, oldest first.
func (idx *Index) ThreadMessages(rootID uuid.UUID) ([]*domain.Message, error) {
	descendants, err := idx.descendants(rootID)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Message, 0, len(descendants)+1)
	out = append(out, idx.messages[rootID])
	out = append(out, descendants...)
	idx.sortChronologically(out)
	return out, nil
}

func (idx *Index) Tree(rootID uuid.UUID) (*Node, error) {
	root, ok := idx.messages[rootID]
	if !ok {
		return nil, apperrors.NotFound("message", rootID)
	}
	visited := map[uuid.UUID]bool{}
	return idx.buildNode(root, visited)
}

func (idx *Index) buildNode(m *domain.Message, visited map[uuid.UUID]bool) (*Node, error) {
	if visited[m.ID] {
		return nil, apperrors.Integrity("message %s is its own ancestor", m.ID)
	}
	visited[m.ID] = true

	node := &Node{Message: m, Children: make([]*Node, 0, len(idx.children[m.ID]))}
	for _, reply := range idx.children[m.ID] {
		child, err := idx.buildNode(reply, visited)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

// Participants lists distinct senders and receivers of the thread in order
// of first appearance.
func (idx *Index) Participants(rootID uuid.UUID) ([]uuid.UUID, error) {
	msgs, err := idx.ThreadMessages(rootID)
	if err != nil {
		return nil, err
	}
	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for _, m := range msgs {
		for _, id := range []uuid.UUID{m.SenderID, m.ReceiverID} {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out, nil
}

// Fetcher loads a single message by id.
type Fetcher func(ctx context.Context, id uuid.UUID) (*domain.Message, error)

// ResolveRoot walks parent links through a store, one lookup per level.
func ResolveRoot(ctx context.Context, start *domain.Message, fetch Fetcher) (*domain.Message, error) {
	visited := map[uuid.UUID]bool{}
	current := start
	for current.ParentID != nil {
		if visited[current.ID] {
			return nil, apperrors.Integrity("message %s is its own ancestor", current.ID)
		}
		visited[current.ID] = true

		parent, err := fetch(ctx, *current.ParentID)
		if err != nil {
			return nil, err
		}
		current = parent
	}
	return current, nil
}
