package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threaded_messaging/internal/domain"
	"threaded_messaging/internal/repository"
	apperrors "threaded_messaging/pkg/errors"
	"threaded_messaging/pkg/logger"
)

func TestMessageService_CreateNotifiesReceiver(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	msg := f.send(t, alice, bob, "hi bob", nil)

	assert.True(t, msg.IsRoot())
	assert.False(t, msg.Edited)
	assert.False(t, msg.Read)

	notes, err := f.svc.Notification.ForMessage(f.ctx, msg.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, bob.ID, notes[0].UserID)
	assert.Equal(t, domain.NotificationTypeMessage, notes[0].Type)
	assert.Equal(t, "You have a new message from alice", notes[0].Content)
	assert.False(t, notes[0].IsRead)
}

func TestMessageService_ThirdPartyReplyNotifiesTwice(t *testing.T) {
	f := newFixture(t)
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")

	root := f.send(t, alice, bob, "root", nil)
	reply := f.send(t, carol, bob, "chiming in", root)

	notes, err := f.svc.Notification.ForMessage(f.ctx, reply.ID)
	require.NoError(t, err)
	require.Len(t, notes, 2)

	byUser := map[uuid.UUID]*domain.Notification{}
	for _, n := range notes {
		byUser[n.UserID] = n
	}
	require.Contains(t, byUser, bob.ID)
	require.Contains(t, byUser, alice.ID)
	assert.Equal(t, "You have a new reply from carol", byUser[bob.ID].Content)
	assert.Equal(t, "carol replied to your message", byUser[alice.ID].Content)
	assert.Equal(t, domain.NotificationTypeReply, byUser[alice.ID].Type)
}

func TestMessageService_ReplyToSenderNotifiesOnce(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	root := f.send(t, alice, bob, "root", nil)
	reply := f.send(t, bob, alice, "answer", root)

	notes, err := f.svc.Notification.ForMessage(f.ctx, reply.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, alice.ID, notes[0].UserID)
}

func TestMessageService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	missing := uuid.New()

	tests := []struct {
		name  string
		in    CreateMessageInput
		check func(error) bool
	}{
		{"empty content", CreateMessageInput{SenderID: alice.ID, ReceiverID: bob.ID, Content: "   "}, apperrors.IsValidation},
		{"missing receiver", CreateMessageInput{SenderID: alice.ID, Content: "x"}, apperrors.IsValidation},
		{"unknown receiver", CreateMessageInput{SenderID: alice.ID, ReceiverID: missing, Content: "x"}, apperrors.IsNotFound},
		{"unknown parent", CreateMessageInput{SenderID: alice.ID, ReceiverID: bob.ID, Content: "x", ParentID: &missing}, apperrors.IsNotFound},
		{"content over configured limit", CreateMessageInput{SenderID: alice.ID, ReceiverID: bob.ID, Content: strings.Repeat("a", 201)}, apperrors.IsValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Message.Create(f.ctx, tt.in)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error kind: %v", err)
		})
	}

	sent, err := f.svc.Message.Sent(f.ctx, alice.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, sent)
}

func TestMessageService_ContentLimit(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	msg := f.send(t, alice, bob, strings.Repeat("a", 200), nil)

	_, err := f.svc.Message.Edit(f.ctx, msg.ID, strings.Repeat("b", 201), alice.ID)
	assert.True(t, apperrors.IsValidation(err), "unexpected error: %v", err)

	got, err := f.svc.Message.Get(f.ctx, msg.ID)
	require.NoError(t, err)
	assert.False(t, got.Edited)

	// a non-positive limit falls back to the default
	svc := NewMessageService(f.store, NewNotificationDispatcher(logger.Nop()), f.svc.Thread, f.svc.Audit, 0, logger.Nop())
	_, err = svc.Create(f.ctx, CreateMessageInput{SenderID: alice.ID, ReceiverID: bob.ID, Content: strings.Repeat("c", defaultMaxContentLength)})
	require.NoError(t, err)
	_, err = svc.Create(f.ctx, CreateMessageInput{SenderID: alice.ID, ReceiverID: bob.ID, Content: strings.Repeat("c", defaultMaxContentLength+1)})
	assert.True(t, apperrors.IsValidation(err), "unexpected error: %v", err)
}

type failingDispatcher struct{}

func (failingDispatcher) Dispatch(ctx context.Context, tx repository.Store, msg, parent *domain.Message, sender *domain.User) ([]*domain.Notification, error) {
	return nil, errors.New("notification backend unavailable")
}

func TestMessageService_DispatchFailureRollsBackMessage(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	svc := NewMessageService(f.store, failingDispatcher{}, f.svc.Thread, f.svc.Audit, 0, logger.Nop())
	_, err := svc.Create(f.ctx, CreateMessageInput{SenderID: alice.ID, ReceiverID: bob.ID, Content: "hello"})
	require.Error(t, err)

	received, err := f.svc.Message.Received(f.ctx, bob.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, received)

	notes, err := f.svc.Notification.List(f.ctx, bob.ID, false)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestMessageService_Reply(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	root := f.send(t, alice, bob, "root", nil)

	answer, err := f.svc.Message.Reply(f.ctx, bob.ID, root.ID, "answer")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, answer.ReceiverID)
	require.NotNil(t, answer.ParentID)
	assert.Equal(t, root.ID, *answer.ParentID)

	followUp, err := f.svc.Message.Reply(f.ctx, alice.ID, root.ID, "also")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, followUp.ReceiverID)

	_, err = f.svc.Message.Reply(f.ctx, bob.ID, uuid.New(), "lost")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestMessageService_EditVersions(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	msg := f.send(t, alice, bob, "Version 1", nil)

	for _, content := range []string{"Version 2", "Version 3", "Version 4"} {
		_, err := f.svc.Message.Edit(f.ctx, msg.ID, content, alice.ID)
		require.NoError(t, err)
	}

	history, err := f.svc.Message.History(f.ctx, msg.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, want := range []string{"Version 1", "Version 2", "Version 3"} {
		assert.Equal(t, want, history[i].OldContent)
		require.NotNil(t, history[i].EditedBy)
		assert.Equal(t, alice.ID, *history[i].EditedBy)
	}
	assert.True(t, history[0].EditedAt.Before(history[2].EditedAt))

	current, err := f.svc.Message.Get(f.ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "Version 4", current.Content)
	assert.True(t, current.Edited)
	assert.NotNil(t, current.LastEditedAt)

	// edits never notify anyone
	notes, err := f.svc.Notification.ForMessage(f.ctx, msg.ID)
	require.NoError(t, err)
	assert.Len(t, notes, 1)
}

func TestMessageService_EditIdenticalContent(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	msg := f.send(t, alice, bob, "unchanged", nil)

	got, err := f.svc.Message.Edit(f.ctx, msg.ID, "unchanged", alice.ID)
	require.NoError(t, err)
	assert.False(t, got.Edited)
	assert.Nil(t, got.LastEditedAt)

	history, err := f.svc.Message.History(f.ctx, msg.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	events, err := f.svc.Audit.MessageEvents(f.ctx, msg.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventTypeMessageCreated, events[0].EventType)
}

func TestMessageService_EditRecordsSenderAsEditor(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	msg := f.send(t, alice, bob, "original", nil)

	_, err := f.svc.Message.Edit(f.ctx, msg.ID, "changed by bob", bob.ID)
	require.NoError(t, err)

	history, err := f.svc.Message.History(f.ctx, msg.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, alice.ID, *history[0].EditedBy)

	events, err := f.svc.Audit.MessageEvents(f.ctx, msg.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventTypeMessageEdited, events[1].EventType)
	assert.Equal(t, bob.ID, *events[1].ActorUserID)
}

func TestMessageService_EditErrors(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	msg := f.send(t, alice, bob, "original", nil)

	_, err := f.svc.Message.Edit(f.ctx, uuid.New(), "x", alice.ID)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = f.svc.Message.Edit(f.ctx, msg.ID, "", alice.ID)
	assert.True(t, apperrors.IsValidation(err))
}

func TestMessageService_ConcurrentEditsKeepEveryOverwrite(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	msg := f.send(t, alice, bob, "v0", nil)

	const writers = 16
	var wg sync.WaitGroup
	for i := 1; i <= writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Message.Edit(f.ctx, msg.ID, fmt.Sprintf("v%d", i), alice.ID)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	history, err := f.svc.Message.History(f.ctx, msg.ID)
	require.NoError(t, err)
	require.Len(t, history, writers)

	current, err := f.svc.Message.Get(f.ctx, msg.ID)
	require.NoError(t, err)

	seen := map[string]bool{current.Content: true}
	for _, h := range history {
		assert.False(t, seen[h.OldContent], "content %q overwritten twice", h.OldContent)
		seen[h.OldContent] = true
	}
	assert.Len(t, seen, writers+1)
	assert.True(t, seen["v0"])
}

func TestMessageService_DeleteCascades(t *testing.T) {
	f := newFixture(t)
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")

	root := f.send(t, alice, bob, "root", nil)
	reply := f.send(t, bob, alice, "reply", root)
	nested := f.send(t, carol, bob, "nested", reply)
	_, err := f.svc.Message.Edit(f.ctx, nested.ID, "nested, edited", carol.ID)
	require.NoError(t, err)
	other := f.send(t, alice, carol, "unrelated", nil)

	removed, err := f.svc.Message.Delete(f.ctx, root.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	for _, id := range []uuid.UUID{root.ID, reply.ID, nested.ID} {
		_, err := f.svc.Message.Get(f.ctx, id)
		assert.True(t, apperrors.IsNotFound(err))
	}
	_, err = f.svc.Message.History(f.ctx, nested.ID)
	assert.True(t, apperrors.IsNotFound(err))

	notes, err := f.svc.Notification.List(f.ctx, bob.ID, false)
	require.NoError(t, err)
	assert.Empty(t, notes)

	_, err = f.svc.Message.Get(f.ctx, other.ID)
	assert.NoError(t, err)

	events, err := f.svc.Audit.MessageEvents(f.ctx, root.ID)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, domain.EventTypeMessageDeleted, events[len(events)-1].EventType)

	_, err = f.svc.Message.Delete(f.ctx, root.ID, alice.ID)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestMessageService_HistoryJSON(t *testing.T) {
	f := newFixture(t)
	alice, bob, dave := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "dave")
	msg := f.send(t, alice, bob, "first", nil)

	_, err := f.svc.Message.Edit(f.ctx, msg.ID, "second", alice.ID)
	require.NoError(t, err)
	_, err = f.svc.Message.Edit(f.ctx, msg.ID, "third", alice.ID)
	require.NoError(t, err)

	got, err := f.svc.Message.HistoryJSON(f.ctx, bob.ID, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "third", got.CurrentContent)
	assert.True(t, got.Edited)
	require.Len(t, got.History, 2)
	assert.Equal(t, "second", got.History[0].OldContent)
	assert.Equal(t, "first", got.History[1].OldContent)
	require.NotNil(t, got.History[0].EditedBy)
	assert.Equal(t, "alice", *got.History[0].EditedBy)

	_, err = f.svc.Message.HistoryJSON(f.ctx, dave.ID, msg.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestMessageService_Detail(t *testing.T) {
	f := newFixture(t)
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")

	root := f.send(t, alice, bob, "root", nil)
	reply := f.send(t, bob, alice, "reply", root)
	f.send(t, alice, bob, "nested", reply)
	f.send(t, carol, alice, "second reply", root)

	detail, err := f.svc.Message.Detail(f.ctx, bob.ID, reply.ID)
	require.NoError(t, err)
	assert.Equal(t, reply.ID, detail.Message.ID)
	assert.True(t, detail.IsReply)
	assert.Equal(t, root.ID, detail.RootMessageID)
	assert.Equal(t, 1, detail.ReplyCount)
	assert.Equal(t, 1, detail.TotalReplyCount)
	assert.Empty(t, detail.History)
	assert.Len(t, detail.Participants, 3)

	outsider := f.user(t, "dave")
	_, err = f.svc.Message.Detail(f.ctx, outsider.ID, root.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestMessageService_Preview(t *testing.T) {
	f := newFixture(t)
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")

	for i := 0; i < 22; i++ {
		f.send(t, alice, bob, fmt.Sprintf("note %d", i), nil)
	}
	f.send(t, carol, bob, "unrelated", nil)
	last := f.send(t, bob, alice, "latest", nil)

	previews, err := f.svc.Message.Preview(f.ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, previews, previewLimit)

	assert.Equal(t, &domain.MessagePreview{
		MessageID: last.ID,
		Sender:    "bob",
		Receiver:  "alice",
		Content:   "latest",
		Timestamp: last.CreatedAt,
		Read:      false,
	}, previews[0])
	assert.Equal(t, "note 21", previews[1].Content)
	assert.Equal(t, "note 3", previews[previewLimit-1].Content)
	for _, p := range previews {
		assert.NotEqual(t, "unrelated", p.Content)
	}

	empty, err := f.svc.Message.Preview(f.ctx, f.user(t, "dave").ID)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
