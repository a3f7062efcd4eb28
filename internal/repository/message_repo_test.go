package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/noah-isme/onquest-api/internal/models"
)

func seedMessages(t *testing.T, chatID string, senders ...string) []models.Message {
	t.Helper()
	base := time.Now().UTC().Add(-time.Hour)
	messages := make([]models.Message, 0, len(senders))
	for i, sender := range senders {
		messages = append(messages, models.Message{
			ID:        NewID(),
			ChatID:    chatID,
			SenderID:  sender,
			Content:   fmt.Sprintf("message %d", i),
			Type:      models.MessageTypeText,
			ReadBy:    datatypes.JSONSlice[string]{sender},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	return messages
}

func TestMessageRepositoryListByChatKeepsNewestInOrder(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	messages := seedMessages(t, "chat-1", "alice", "bob", "alice", "bob")
	require.NoError(t, db.Create(&messages).Error)
	other := seedMessages(t, "chat-2", "carol")
	require.NoError(t, db.Create(&other).Error)

	all, err := repo.ListByChat(ctx, "chat-1", 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	require.Equal(t, "message 0", all[0].Content)

	recent, err := repo.ListByChat(ctx, "chat-1", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "message 2", recent[0].Content)
	require.Equal(t, "message 3", recent[1].Content)
}

func TestMessageRepositoryMarkReadSkipsOwnAndRead(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	messages := seedMessages(t, "chat-1", "alice", "bob", "bob")
	require.NoError(t, db.Create(&messages).Error)

	marked, err := repo.MarkRead(ctx, "chat-1", "alice")
	require.NoError(t, err)
	require.Equal(t, 2, marked)

	marked, err = repo.MarkRead(ctx, "chat-1", "alice")
	require.NoError(t, err)
	require.Zero(t, marked)

	stored, err := repo.Get(ctx, messages[1].ID)
	require.NoError(t, err)
	require.True(t, stored.IsReadBy("alice"))
	require.True(t, stored.IsReadBy("bob"))
}

func TestMessageRepositoryMutate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	messages := seedMessages(t, "chat-1", "alice")
	require.NoError(t, db.Create(&messages).Error)

	updated, err := repo.Mutate(ctx, messages[0].ID, func(message *models.Message) error {
		message.Content = "edited"
		message.Edited = true
		return nil
	})
	require.NoError(t, err)
	require.True(t, updated.Edited)

	rejected := errors.New("rejected")
	_, err = repo.Mutate(ctx, messages[0].ID, func(message *models.Message) error {
		message.Content = "lost"
		return rejected
	})
	require.ErrorIs(t, err, rejected)

	stored, err := repo.Get(ctx, messages[0].ID)
	require.NoError(t, err)
	require.Equal(t, "edited", stored.Content)

	_, err = repo.Mutate(ctx, "missing", func(*models.Message) error { return nil })
	require.ErrorIs(t, err, models.ErrNotFound)
}
