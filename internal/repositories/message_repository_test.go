package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-room/internal/models"
	"chat-room/internal/testutil"
)

func strPtr(s string) *string { return &s }

func TestMessageRepoInsertListAndSoftDelete(t *testing.T) {
	database, _ := testutil.SetupTestDB(t)
	repo := NewMessageRepo(database)
	ctx := context.Background()

	msgs, err := repo.ListMessages(ctx)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	first, err := repo.InsertMessage(ctx, models.NewMessage{
		UserID: "u-1", UserName: strPtr("alexander"), Provider: "email", MessageContent: "hi",
	})
	require.NoError(t, err)
	second, err := repo.InsertMessage(ctx, models.NewMessage{
		UserID: "u-2", Provider: "github", MessageContent: "hello",
	})
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)
	assert.False(t, first.CreatedAt.IsZero())
	assert.Nil(t, second.UserName)

	require.NoError(t, repo.SoftDeleteMessage(ctx, first.ID))
	require.NoError(t, repo.SoftDeleteMessage(ctx, first.ID))

	msgs, err = repo.ListMessages(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, first.ID, msgs[0].ID)
	assert.True(t, msgs[0].Deleted)
	assert.Equal(t, "hi", msgs[0].MessageContent)
	assert.False(t, msgs[1].Deleted)
}

func TestMessageRepoMissingMessage(t *testing.T) {
	database, _ := testutil.SetupTestDB(t)
	repo := NewMessageRepo(database)

	_, err := repo.GetMessage(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrMessageNotFound)
	assert.ErrorIs(t, repo.SoftDeleteMessage(context.Background(), 9999), ErrMessageNotFound)
}
