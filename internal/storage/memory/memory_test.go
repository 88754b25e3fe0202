package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ButyrinIA/community/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newItem(kind string) *models.FeedItem {
	now := time.Now()
	return &models.FeedItem{
		ID:        uuid.New().String(),
		Kind:      kind,
		Author:    models.Author{ID: "user1", Name: "User One"},
		Body:      "Содержимое",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newComment(itemID string, parentID *string) *models.CommentNode {
	now := time.Now()
	return &models.CommentNode{
		ID:        uuid.New().String(),
		ItemID:    itemID,
		ParentID:  parentID,
		Author:    models.Author{ID: "user2", Name: "User Two"},
		Body:      "Тестовый комментарий",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateItem and GetItem", func(t *testing.T) {
		store := New()
		item := newItem(models.KindPosts)
		require.NoError(t, store.CreateItem(ctx, item))

		got, err := store.GetItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, item.ID, got.ID)
		assert.Equal(t, item.Body, got.Body)
		assert.Error(t, store.CreateItem(ctx, item), "duplicate id")
	})

	t.Run("GetItem Not Found", func(t *testing.T) {
		_, err := New().GetItem(ctx, "non-existent-id")
		assert.True(t, errors.Is(err, models.ErrNotFound))
	})

	t.Run("ListItems pages one kind newest first", func(t *testing.T) {
		store := New()
		first := newItem(models.KindPosts)
		second := newItem(models.KindPosts)
		other := newItem(models.KindFeedback)
		require.NoError(t, store.CreateItem(ctx, first))
		require.NoError(t, store.CreateItem(ctx, other))
		require.NoError(t, store.CreateItem(ctx, second))

		page, err := store.ListItems(ctx, models.KindPosts, 1, 1)
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, second.ID, page.Items[0].ID)
		assert.Equal(t, 2, page.Pagination.Total)
		assert.True(t, page.Pagination.HasNextPage)

		page, err = store.ListItems(ctx, models.KindPosts, 2, 1)
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, first.ID, page.Items[0].ID)
		assert.False(t, page.Pagination.HasNextPage)

		page, err = store.ListItems(ctx, models.KindPosts, 5, 1)
		require.NoError(t, err)
		assert.Empty(t, page.Items)
	})

	t.Run("UpdateItem", func(t *testing.T) {
		store := New()
		item := newItem(models.KindAnnouncements)
		require.NoError(t, store.CreateItem(ctx, item))

		at := time.Now().Add(time.Minute)
		got, err := store.UpdateItem(ctx, item.ID, "new body", at)
		require.NoError(t, err)
		assert.Equal(t, "new body", got.Body)
		assert.Equal(t, at, got.UpdatedAt)

		_, err = store.UpdateItem(ctx, "missing", "x", at)
		assert.True(t, errors.Is(err, models.ErrNotFound))
	})

	t.Run("ToggleLike", func(t *testing.T) {
		store := New()
		item := newItem(models.KindPosts)
		require.NoError(t, store.CreateItem(ctx, item))

		state, err := store.ToggleLike(ctx, item.ID, "user1")
		require.NoError(t, err)
		assert.Equal(t, models.LikeState{IsLiked: true, LikesCount: 1}, *state)

		_, err = store.ToggleLike(ctx, item.ID, "user2")
		require.NoError(t, err)
		liked, err := store.LikedBy(ctx, "user2", []string{item.ID, "other"})
		require.NoError(t, err)
		assert.Equal(t, map[string]bool{item.ID: true, "other": false}, liked)

		state, err = store.ToggleLike(ctx, item.ID, "user1")
		require.NoError(t, err)
		assert.Equal(t, models.LikeState{IsLiked: false, LikesCount: 1}, *state)

		got, _ := store.GetItem(ctx, item.ID)
		assert.Equal(t, 1, got.LikesCount)
	})

	t.Run("CreateComment and GetComments", func(t *testing.T) {
		store := New()
		item := newItem(models.KindPosts)
		require.NoError(t, store.CreateItem(ctx, item))

		older := newComment(item.ID, nil)
		newer := newComment(item.ID, nil)
		require.NoError(t, store.CreateComment(ctx, older))
		require.NoError(t, store.CreateComment(ctx, newer))
		require.NoError(t, store.CreateComment(ctx, newComment(item.ID, &older.ID)))

		page, err := store.GetComments(ctx, item.ID, 1, 10)
		require.NoError(t, err)
		require.Len(t, page.Comments, 2)
		assert.Equal(t, newer.ID, page.Comments[0].ID)
		assert.Equal(t, older.ID, page.Comments[1].ID)
		assert.True(t, page.Comments[1].HasReplies)
		assert.False(t, page.Comments[0].HasReplies)
		assert.Equal(t, 2, page.Pagination.Total)
		require.NotNil(t, page.Pagination.TotalWithReplies)
		assert.Equal(t, 3, *page.Pagination.TotalWithReplies)

		got, _ := store.GetItem(ctx, item.ID)
		assert.Equal(t, 3, got.CommentsCount)
	})

	t.Run("CreateComment rejects unknown targets", func(t *testing.T) {
		store := New()
		item := newItem(models.KindPosts)
		require.NoError(t, store.CreateItem(ctx, item))

		assert.True(t, errors.Is(store.CreateComment(ctx, newComment("missing", nil)), models.ErrNotFound))
		missing := "missing"
		assert.True(t, errors.Is(store.CreateComment(ctx, newComment(item.ID, &missing)), models.ErrNotFound))
	})

	t.Run("GetReplies", func(t *testing.T) {
		store := New()
		item := newItem(models.KindFeedback)
		require.NoError(t, store.CreateItem(ctx, item))
		a := newComment(item.ID, nil)
		b := newComment(item.ID, nil)
		require.NoError(t, store.CreateComment(ctx, a))
		require.NoError(t, store.CreateComment(ctx, b))
		r1 := newComment(item.ID, &a.ID)
		r2 := newComment(item.ID, &a.ID)
		require.NoError(t, store.CreateComment(ctx, r1))
		require.NoError(t, store.CreateComment(ctx, r2))

		replies, err := store.GetReplies(ctx, []string{a.ID, b.ID})
		require.NoError(t, err)
		require.Len(t, replies[a.ID], 2)
		assert.Equal(t, r1.ID, replies[a.ID][0].ID)
		assert.Equal(t, r2.ID, replies[a.ID][1].ID)
		assert.Empty(t, replies[b.ID])
	})

	t.Run("DeleteComment cascades to replies", func(t *testing.T) {
		store := New()
		item := newItem(models.KindPosts)
		require.NoError(t, store.CreateItem(ctx, item))
		parent := newComment(item.ID, nil)
		require.NoError(t, store.CreateComment(ctx, parent))
		reply := newComment(item.ID, &parent.ID)
		require.NoError(t, store.CreateComment(ctx, reply))

		removed, err := store.DeleteComment(ctx, parent.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, removed)

		_, err = store.GetComment(ctx, reply.ID)
		assert.True(t, errors.Is(err, models.ErrNotFound))
		_, err = store.DeleteComment(ctx, parent.ID)
		assert.True(t, errors.Is(err, models.ErrNotFound))
	})

	t.Run("UpdateComment", func(t *testing.T) {
		store := New()
		item := newItem(models.KindPosts)
		require.NoError(t, store.CreateItem(ctx, item))
		c := newComment(item.ID, nil)
		require.NoError(t, store.CreateComment(ctx, c))

		got, err := store.UpdateComment(ctx, c.ID, "edited", time.Now())
		require.NoError(t, err)
		assert.Equal(t, "edited", got.Body)
		assert.Equal(t, c.Author, got.Author)
	})

	t.Run("DeleteItem drops its comments", func(t *testing.T) {
		store := New()
		item := newItem(models.KindPosts)
		require.NoError(t, store.CreateItem(ctx, item))
		c := newComment(item.ID, nil)
		require.NoError(t, store.CreateComment(ctx, c))

		require.NoError(t, store.DeleteItem(ctx, item.ID))
		_, err := store.GetComment(ctx, c.ID)
		assert.Error(t, err)
		page, err := store.ListItems(ctx, models.KindPosts, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, 0, page.Pagination.Total)
	})

	t.Run("Close", func(t *testing.T) {
		store := New()
		item := newItem(models.KindPosts)
		require.NoError(t, store.CreateItem(ctx, item))

		require.NoError(t, store.Close())

		_, err := store.GetItem(ctx, item.ID)
		assert.Error(t, err, "storage is emptied on close")
	})
}
