package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"threaded_messaging/internal/config"
	"threaded_messaging/internal/domain"
	"threaded_messaging/internal/repository"
	"threaded_messaging/internal/repository/memory"
	"threaded_messaging/pkg/logger"
)

var epoch = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	ctx   context.Context
	store *memory.Store
	svc   *Services
}

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			AccessSecret: "test-secret",
			AccessTTL:    time.Hour,
			Issuer:       "threaded-messaging-test",
		},
		Inbox:   config.InboxConfig{PageSize: 50},
		Message: config.MessageConfig{MaxContentLength: 200},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore(logger.Nop())
	repos := repository.NewRepositories(store, nil, logger.Nop())
	svc := NewServices(repos, testConfig(), logger.Nop())

	// every message gets a distinct, increasing timestamp
	clock := epoch
	svc.Message.(*messageService).now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	return &fixture{ctx: context.Background(), store: store, svc: svc}
}

func (f *fixture) user(t *testing.T, name string) *domain.User {
	t.Helper()
	u := &domain.User{
		ID:           uuid.New(),
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "x",
		CreatedAt:    epoch,
		UpdatedAt:    epoch,
	}
	require.NoError(t, f.store.Users().Create(f.ctx, u))
	return u
}

func (f *fixture) send(t *testing.T, from, to *domain.User, content string, parent *domain.Message) *domain.Message {
	t.Helper()
	in := CreateMessageInput{SenderID: from.ID, ReceiverID: to.ID, Content: content}
	if parent != nil {
		in.ParentID = &parent.ID
	}
	msg, err := f.svc.Message.Create(f.ctx, in)
	require.NoError(t, err)
	return msg
}

func messageIDs(msgs []*domain.Message) []uuid.UUID {
	out := make([]uuid.UUID, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}
