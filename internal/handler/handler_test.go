package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threaded_messaging/internal/config"
	"threaded_messaging/internal/domain"
	"threaded_messaging/internal/middleware"
	"threaded_messaging/internal/repository"
	"threaded_messaging/internal/repository/memory"
	"threaded_messaging/internal/service"
	"threaded_messaging/pkg/logger"
)

type testServer struct {
	t      *testing.T
	router *gin.Engine
}

type account struct {
	ID    uuid.UUID
	Token string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Environment: "test",
		Storage:     config.StorageConfig{Driver: config.StorageDriverMemory},
		JWT: config.JWTConfig{
			AccessSecret: "handler-test-secret",
			AccessTTL:    time.Hour,
			Issuer:       "threaded-messaging-test",
		},
		Inbox: config.InboxConfig{PageSize: 50},
	}
	log := logger.Nop()

	repos := repository.NewRepositories(memory.NewStore(log), nil, log)
	services := service.NewServices(repos, cfg, log)
	handlers := NewHandlers(services, cfg, log)
	router := NewRouter(handlers, middleware.NewAuthMiddleware(services.Auth, log), nil, cfg, log)

	return &testServer{t: t, router: router}
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (s *testServer) signup(name string) account {
	s.t.Helper()

	w := s.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"username": name,
		"email":    name + "@example.com",
		"password": "correct-horse",
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	user := decode[domain.User](s.t, w)

	w = s.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"login":    name,
		"password": "correct-horse",
	})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	login := decode[service.LoginResponse](s.t, w)

	return account{ID: user.ID, Token: login.AccessToken}
}

func (s *testServer) send(from, to account, content string) domain.Message {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/v1/messages", from.Token, gin.H{
		"receiver_id": to.ID,
		"content":     content,
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[domain.Message](s.t, w)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[map[string]string](t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, config.StorageDriverMemory, body["storage"])
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/v1/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/api/v1/users/me", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup("alice")

	w := s.do(http.MethodGet, "/api/v1/users/me", alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[domain.User](t, w)
	assert.Equal(t, alice.ID, me.ID)
	assert.Equal(t, "alice", me.Username)
	assert.NotContains(t, w.Body.String(), "password")

	w = s.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"username": "alice",
		"email":    "other@example.com",
		"password": "correct-horse",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"login":    "alice@example.com",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSendAndReply(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup("alice")
	bob := s.signup("bob")
	carol := s.signup("carol")

	root := s.send(alice, bob, "hello bob")
	assert.Equal(t, alice.ID, root.SenderID)
	assert.False(t, root.Read)

	w := s.do(http.MethodPost, "/api/v1/messages/"+root.ID.String()+"/replies", bob.Token, gin.H{"content": "hi alice"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	reply := decode[domain.Message](t, w)
	assert.Equal(t, alice.ID, reply.ReceiverID)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, root.ID, *reply.ParentID)

	w = s.do(http.MethodPost, "/api/v1/messages/"+root.ID.String()+"/replies", carol.Token, gin.H{"content": "me too"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, "/api/v1/messages/"+reply.ID.String(), alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode[domain.MessageDetail](t, w)
	assert.True(t, detail.IsReply)
	assert.Equal(t, root.ID, detail.RootMessageID)

	w = s.do(http.MethodGet, "/api/v1/messages/"+root.ID.String(), carol.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, "/api/v1/conversations/"+reply.ID.String()+"/tree", bob.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	tree := decode[domain.ConversationTreeJSON](t, w)
	assert.Equal(t, root.ID, tree.MessageID)
	require.Len(t, tree.Replies, 1)
	assert.Equal(t, "bob", tree.Replies[0].Sender)
}

func TestSendWithParentRequiresParticipant(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup("alice")
	bob := s.signup("bob")
	carol := s.signup("carol")
	root := s.send(alice, bob, "private")

	w := s.do(http.MethodPost, "/api/v1/messages", carol.Token, gin.H{
		"receiver_id":       alice.ID,
		"content":           "butting in",
		"parent_message_id": root.ID,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, "/api/v1/messages/"+root.ID.String(), alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, decode[domain.MessageDetail](t, w).ReplyCount)

	w = s.do(http.MethodPost, "/api/v1/messages", bob.Token, gin.H{
		"receiver_id":       alice.ID,
		"content":           "answering",
		"parent_message_id": root.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	reply := decode[domain.Message](t, w)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, root.ID, *reply.ParentID)

	w = s.do(http.MethodPost, "/api/v1/messages", bob.Token, gin.H{
		"receiver_id":       alice.ID,
		"content":           "lost",
		"parent_message_id": uuid.New(),
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSendValidation(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup("alice")

	w := s.do(http.MethodPost, "/api/v1/messages", alice.Token, gin.H{
		"receiver_id": uuid.New(),
		"content":     "nobody home",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/api/v1/messages", alice.Token, gin.H{"content": "no receiver"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/v1/messages/not-a-uuid", alice.Token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEditOnlyBySender(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup("alice")
	bob := s.signup("bob")
	msg := s.send(alice, bob, "Version 1")
	path := "/api/v1/messages/" + msg.ID.String()

	w := s.do(http.MethodPut, path, bob.Token, gin.H{"content": "hijacked"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPut, path, alice.Token, gin.H{"content": "Version 2"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	edited := decode[domain.Message](t, w)
	assert.True(t, edited.Edited)
	assert.Equal(t, "Version 2", edited.Content)

	w = s.do(http.MethodGet, path+"/history", bob.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode[domain.MessageHistoryJSON](t, w)
	assert.Equal(t, "Version 2", history.CurrentContent)
	require.Len(t, history.History, 1)
	assert.Equal(t, "Version 1", history.History[0].OldContent)
}

func TestDeleteMessage(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup("alice")
	bob := s.signup("bob")
	root := s.send(alice, bob, "root")

	w := s.do(http.MethodPost, "/api/v1/messages/"+root.ID.String()+"/replies", bob.Token, gin.H{"content": "reply"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(http.MethodDelete, "/api/v1/messages/"+root.ID.String(), bob.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodDelete, "/api/v1/messages/"+root.ID.String(), alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decode[map[string]int](t, w)["messages_removed"])

	w = s.do(http.MethodGet, "/api/v1/messages/"+root.ID.String(), alice.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUnreadFlow(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup("alice")
	bob := s.signup("bob")

	first := s.send(alice, bob, "one")
	s.send(alice, bob, "two")

	w := s.do(http.MethodGet, "/api/v1/unread/count", bob.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.UnreadCounts{UnreadCount: 2, UnreadThreads: 2}, decode[domain.UnreadCounts](t, w))

	w = s.do(http.MethodPost, "/api/v1/messages/"+first.ID.String()+"/read", alice.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/api/v1/messages/"+first.ID.String()+"/read", bob.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[domain.Message](t, w).Read)

	w = s.do(http.MethodGet, "/api/v1/unread/from/alice", bob.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[map[string][]domain.Message](t, w)["messages"], 1)

	w = s.do(http.MethodGet, "/api/v1/unread/from/nobody", bob.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/api/v1/unread/mark-all-read", bob.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[map[string]int](t, w)["marked_read"])

	w = s.do(http.MethodGet, "/api/v1/inbox", bob.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	inbox := decode[domain.Inbox](t, w)
	assert.Len(t, inbox.Messages, 2)
	assert.Zero(t, inbox.UnreadCount)
}

func TestNotifications(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup("alice")
	bob := s.signup("bob")
	s.send(alice, bob, "ping")

	w := s.do(http.MethodGet, "/api/v1/notifications?unread=true", bob.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[map[string][]domain.Notification](t, w)["notifications"]
	require.Len(t, list, 1)

	path := "/api/v1/notifications/" + list[0].ID.String() + "/read"
	w = s.do(http.MethodPost, path, alice.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, path, bob.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[domain.Notification](t, w).IsRead)

	w = s.do(http.MethodGet, "/api/v1/notifications?unread=true", bob.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[map[string][]domain.Notification](t, w)["notifications"])
}

func TestDeleteAccount(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup("alice")
	bob := s.signup("bob")
	s.send(alice, bob, "bye")

	w := s.do(http.MethodDelete, "/api/v1/users/me", alice.Token, gin.H{"confirmation": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/v1/users/me/summary", alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[domain.UserDataSummary](t, w).SentMessagesCount)

	w = s.do(http.MethodDelete, "/api/v1/users/me", alice.Token, gin.H{"confirmation": "DELETE"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/v1/users/me", alice.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/api/v1/inbox", bob.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[domain.Inbox](t, w).Messages)
}

func TestPreview(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup("alice")
	bob := s.signup("bob")
	s.send(alice, bob, "first")
	s.send(bob, alice, "second")

	w := s.do(http.MethodGet, "/api/v1/messages/preview", alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	previews := decode[map[string][]domain.MessagePreview](t, w)["messages"]
	require.Len(t, previews, 2)
	for _, p := range previews {
		assert.ElementsMatch(t, []string{"alice", "bob"}, []string{p.Sender, p.Receiver})
	}
}
