package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fathima-sithara/dm-client/internal/models"
	"github.com/fathima-sithara/dm-client/internal/store/memstore"
)

func TestUserRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	users := NewUserRepository(memstore.New())

	_, err := users.GetByID(ctx, "u1")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, users.Create(ctx, &models.UserProfile{ID: "u1", Username: "ali", Email: "ali@example.com"}))
	got, err := users.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "ali", got.Username)
	assert.Empty(t, got.Blocked)

	require.NoError(t, users.AddBlocked(ctx, "u1", "u2"))
	require.NoError(t, users.AddBlocked(ctx, "u1", "u2"))
	got, _ = users.GetByID(ctx, "u1")
	assert.Equal(t, []string{"u2"}, got.Blocked)

	require.NoError(t, users.RemoveBlocked(ctx, "u1", "u2"))
	got, _ = users.GetByID(ctx, "u1")
	assert.Empty(t, got.Blocked)
}

func TestFindByUsernameExactMatch(t *testing.T) {
	ctx := context.Background()
	users := NewUserRepository(memstore.New())
	require.NoError(t, users.Create(ctx, &models.UserProfile{ID: "1", Username: "Ali"}))
	require.NoError(t, users.Create(ctx, &models.UserProfile{ID: "2", Username: "Alice"}))

	found, err := users.FindByUsername(ctx, "Ali")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "1", found[0].ID)

	found, err = users.FindByUsername(ctx, "ali")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestUserChatsAppendAndReplace(t *testing.T) {
	ctx := context.Background()
	repo := NewUserChatsRepository(memstore.New())
	require.NoError(t, repo.Init(ctx, "u1"))

	now := time.Now().UTC().Truncate(time.Millisecond)
	e := models.ThreadIndexEntry{ChatID: "c1", ReceiverID: "u2", UpdatedAt: now}
	require.NoError(t, repo.Append(ctx, "u1", e))

	uc, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, uc.Chats, 1)
	assert.Equal(t, "u2", uc.Chats[0].ReceiverID)
	assert.True(t, uc.Chats[0].UpdatedAt.Equal(now))

	uc.Chats[0].IsSeen = true
	uc.Chats[0].LastMessage = "hi"
	require.NoError(t, repo.Replace(ctx, "u1", uc.Chats))

	uc, err = repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, uc.Chats[0].IsSeen)
	assert.Equal(t, "hi", uc.Chats[0].LastMessage)
}

func TestChatRepositoryKeepsAppendOrder(t *testing.T) {
	ctx := context.Background()
	chats := NewChatRepository(memstore.New())
	require.NoError(t, chats.Create(ctx, "c1", &models.Thread{CreatedAt: time.Now()}))

	for _, id := range []string{"m1", "m2", "m3"} {
		require.NoError(t, chats.AppendMessage(ctx, "c1", models.Message{ID: id, SenderID: "u1", Text: "same"}))
	}

	thread, err := chats.Get(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, thread.Messages, 3)
	assert.Equal(t, "m1", thread.Messages[0].ID)
	assert.Equal(t, "m3", thread.Messages[2].ID)
}

func TestMediaRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewMediaRepo(memstore.New())
	require.NoError(t, repo.Insert(ctx, &models.Media{ID: "m1", UserID: "u1", Key: "images/x.png", Type: "image"}))

	m, err := repo.GetByID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "images/x.png", m.Key)
}
