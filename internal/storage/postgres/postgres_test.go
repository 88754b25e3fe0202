package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ButyrinIA/community/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestPostgresStorage(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:13",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "user",
			"POSTGRES_PASSWORD": "password",
			"POSTGRES_DB":       "community",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(time.Minute),
	}
	postgresC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	defer postgresC.Terminate(ctx)

	host, err := postgresC.Host(ctx)
	require.NoError(t, err)
	port, err := postgresC.MappedPort(ctx, "5432")
	require.NoError(t, err)
	dsn := "postgres://user:password@" + host + ":" + port.Port() + "/community?sslmode=disable"

	store, err := New(dsn)
	if err != nil {
		t.Fatalf("failed to initialize PostgresStorage: %v", err)
	}
	defer store.Close()

	newItem := func(kind string) *models.FeedItem {
		now := time.Now().UTC().Truncate(time.Microsecond)
		item := &models.FeedItem{
			ID:        uuid.New().String(),
			Kind:      kind,
			Author:    models.Author{ID: "user1", Name: "User One"},
			Body:      "Содержимое",
			CreatedAt: now,
			UpdatedAt: now,
		}
		require.NoError(t, store.CreateItem(ctx, item))
		return item
	}
	newComment := func(itemID string, parentID *string) *models.CommentNode {
		now := time.Now().UTC().Truncate(time.Microsecond)
		c := &models.CommentNode{
			ID:        uuid.New().String(),
			ItemID:    itemID,
			ParentID:  parentID,
			Author:    models.Author{ID: "user2", Name: "User Two"},
			Body:      "Тестовый комментарий",
			CreatedAt: now,
			UpdatedAt: now,
		}
		require.NoError(t, store.CreateComment(ctx, c))
		return c
	}

	t.Run("CreateItem and GetItem", func(t *testing.T) {
		item := newItem(models.KindPosts)

		got, err := store.GetItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, item.ID, got.ID)
		assert.Equal(t, item.Author, got.Author)
		assert.True(t, item.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("GetItem Not Found", func(t *testing.T) {
		_, err := store.GetItem(ctx, "non-existent-id")
		assert.True(t, errors.Is(err, models.ErrNotFound))
	})

	t.Run("ListItems", func(t *testing.T) {
		first := newItem(models.KindAnnouncements)
		second := newItem(models.KindAnnouncements)

		page, err := store.ListItems(ctx, models.KindAnnouncements, 1, 1)
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, second.ID, page.Items[0].ID)
		assert.Equal(t, 2, page.Pagination.Total)
		assert.True(t, page.Pagination.HasNextPage)

		page, err = store.ListItems(ctx, models.KindAnnouncements, 2, 1)
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, first.ID, page.Items[0].ID)
	})

	t.Run("ToggleLike", func(t *testing.T) {
		item := newItem(models.KindPosts)

		state, err := store.ToggleLike(ctx, item.ID, "user1")
		require.NoError(t, err)
		assert.Equal(t, models.LikeState{IsLiked: true, LikesCount: 1}, *state)

		liked, err := store.LikedBy(ctx, "user1", []string{item.ID})
		require.NoError(t, err)
		assert.True(t, liked[item.ID])

		state, err = store.ToggleLike(ctx, item.ID, "user1")
		require.NoError(t, err)
		assert.Equal(t, models.LikeState{IsLiked: false, LikesCount: 0}, *state)

		_, err = store.ToggleLike(ctx, "missing", "user1")
		assert.True(t, errors.Is(err, models.ErrNotFound))
	})

	t.Run("comments with replies", func(t *testing.T) {
		item := newItem(models.KindFeedback)
		parent := newComment(item.ID, nil)
		other := newComment(item.ID, nil)
		reply := newComment(item.ID, &parent.ID)

		page, err := store.GetComments(ctx, item.ID, 1, 10)
		require.NoError(t, err)
		require.Len(t, page.Comments, 2)
		assert.Equal(t, other.ID, page.Comments[0].ID)
		assert.True(t, page.Comments[1].HasReplies)
		assert.Equal(t, 2, page.Pagination.Total)
		assert.Equal(t, 3, *page.Pagination.TotalWithReplies)

		replies, err := store.GetReplies(ctx, []string{parent.ID, other.ID})
		require.NoError(t, err)
		require.Len(t, replies[parent.ID], 1)
		assert.Equal(t, reply.ID, replies[parent.ID][0].ID)

		updated, err := store.UpdateComment(ctx, reply.ID, "edited", time.Now())
		require.NoError(t, err)
		assert.Equal(t, "edited", updated.Body)
		require.NotNil(t, updated.ParentID)
		assert.Equal(t, parent.ID, *updated.ParentID)

		removed, err := store.DeleteComment(ctx, parent.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, removed)
		_, err = store.GetComment(ctx, reply.ID)
		assert.True(t, errors.Is(err, models.ErrNotFound))

		got, err := store.GetItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.CommentsCount)
	})

	t.Run("CreateComment on unknown parent", func(t *testing.T) {
		item := newItem(models.KindPosts)
		missing := uuid.New().String()
		err := store.CreateComment(ctx, &models.CommentNode{
			ID: uuid.New().String(), ItemID: item.ID, ParentID: &missing, Body: "x",
			CreatedAt: time.Now(), UpdatedAt: time.Now(),
		})
		assert.True(t, errors.Is(err, models.ErrNotFound))
	})

	t.Run("DeleteItem", func(t *testing.T) {
		item := newItem(models.KindPosts)
		c := newComment(item.ID, nil)

		require.NoError(t, store.DeleteItem(ctx, item.ID))
		_, err := store.GetComment(ctx, c.ID)
		assert.True(t, errors.Is(err, models.ErrNotFound))
		assert.True(t, errors.Is(store.DeleteItem(ctx, item.ID), models.ErrNotFound))
	})
}
