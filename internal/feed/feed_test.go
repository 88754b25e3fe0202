package feed

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ButyrinIA/community/internal/kind"
	"github.com/ButyrinIA/community/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) ListItems(ctx context.Context, page, limit int) (*models.ItemPage, error) {
	args := m.Called(ctx, page, limit)
	return args.Get(0).(*models.ItemPage), args.Error(1)
}

func (m *mockBackend) CreateItem(ctx context.Context, input models.ItemInput) (*models.FeedItem, error) {
	args := m.Called(ctx, input)
	return args.Get(0).(*models.FeedItem), args.Error(1)
}

func (m *mockBackend) UpdateItem(ctx context.Context, id string, input models.ItemInput) (*models.FeedItem, error) {
	args := m.Called(ctx, id, input)
	return args.Get(0).(*models.FeedItem), args.Error(1)
}

func (m *mockBackend) DeleteItem(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func items(ids ...string) []models.FeedItem {
	out := make([]models.FeedItem, len(ids))
	for i, id := range ids {
		out[i] = models.FeedItem{ID: id, Kind: models.KindPosts, Body: "body " + id}
	}
	return out
}

func page(total int, ids ...string) *models.ItemPage {
	return &models.ItemPage{Items: items(ids...), Pagination: models.Pagination{Total: total}}
}

func loaded(t *testing.T, total int, ids ...string) (*Collection[kind.Post], *mockBackend) {
	backend := &mockBackend{}
	backend.On("ListItems", mock.Anything, 1, 2).Return(page(total, ids...), nil).Once()
	c := New[kind.Post](backend, 2)
	require.NoError(t, c.Fetch(context.Background()))
	return c, backend
}

func TestFetch(t *testing.T) {
	c, backend := loaded(t, 3, "p1", "p2")

	s := c.Snapshot()
	assert.Len(t, s.Items, 2)
	assert.Equal(t, 3, s.Total)
	assert.True(t, s.HasMore)
	assert.False(t, s.Loading)
	assert.Equal(t, "posts", c.Kind())
	backend.AssertExpectations(t)
}

func TestFetch_Error(t *testing.T) {
	backend := &mockBackend{}
	backend.On("ListItems", mock.Anything, 1, 2).Return((*models.ItemPage)(nil), errors.New("boom"))
	c := New[kind.Announcement](backend, 2)

	err := c.Fetch(context.Background())
	assert.EqualError(t, err, "fetch announcements: boom")
	s := c.Snapshot()
	assert.False(t, s.Loading)
	assert.EqualError(t, s.Err, "boom")
}

func TestFetchMore(t *testing.T) {
	c, backend := loaded(t, 3, "p1", "p2")
	backend.On("ListItems", mock.Anything, 2, 2).Return(page(3, "p2", "p3"), nil).Once()

	require.NoError(t, c.FetchMore(context.Background()))

	s := c.Snapshot()
	ids := []string{}
	for _, it := range s.Items {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"p1", "p2", "p3"}, ids)
	assert.Equal(t, 2, s.Page)
	assert.False(t, s.HasMore)

	t.Run("no request once everything is loaded", func(t *testing.T) {
		require.NoError(t, c.FetchMore(context.Background()))
		backend.AssertNumberOfCalls(t, "ListItems", 2)
	})
}

func TestFetchMore_AfterDelete(t *testing.T) {
	c, backend := loaded(t, 4, "p1", "p2")
	backend.On("DeleteItem", mock.Anything, "p1").Return(nil)
	require.NoError(t, c.Delete(context.Background(), "p1"))

	// p1 is gone on the server too, so p3 moved up into page 1.
	more := page(3, "p2", "p3")
	more.Pagination.HasNextPage = true
	backend.On("ListItems", mock.Anything, 1, 2).Return(more, nil).Once()
	backend.On("ListItems", mock.Anything, 2, 2).Return(page(3, "p4"), nil).Once()

	require.NoError(t, c.FetchMore(context.Background()))
	s := c.Snapshot()
	assert.Len(t, s.Items, 2)
	assert.True(t, s.HasMore)

	require.NoError(t, c.FetchMore(context.Background()))
	s = c.Snapshot()
	ids := []string{}
	for _, it := range s.Items {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"p2", "p3", "p4"}, ids)
	assert.False(t, s.HasMore)

	require.NoError(t, c.FetchMore(context.Background()))
	backend.AssertNumberOfCalls(t, "ListItems", 3)
}

func TestFetchMore_ExhaustedServer(t *testing.T) {
	c, backend := loaded(t, 3, "p1", "p2")
	// Another client removed p3: the next page is empty but the stale
	// total still claims more.
	backend.On("ListItems", mock.Anything, 2, 2).Return(page(3), nil).Once()

	require.NoError(t, c.FetchMore(context.Background()))
	s := c.Snapshot()
	assert.Equal(t, 2, s.Total)
	assert.False(t, s.HasMore)

	require.NoError(t, c.FetchMore(context.Background()))
	backend.AssertNumberOfCalls(t, "ListItems", 2)
}

func TestCreate(t *testing.T) {
	c, backend := loaded(t, 2, "p1", "p2")
	created := &models.FeedItem{ID: "p0", Body: "new"}
	backend.On("CreateItem", mock.Anything, models.ItemInput{Body: "new"}).Return(created, nil)

	item, err := c.Create(context.Background(), "  new ")
	require.NoError(t, err)
	assert.Equal(t, "p0", item.ID)

	s := c.Snapshot()
	assert.Equal(t, "p0", s.Items[0].ID)
	assert.Equal(t, 3, s.Total)
	assert.False(t, s.HasMore)

	t.Run("empty body is rejected locally", func(t *testing.T) {
		_, err := c.Create(context.Background(), "   ")
		assert.True(t, errors.Is(err, models.ErrValidation))
		backend.AssertNumberOfCalls(t, "CreateItem", 1)
	})
}

func TestEdit(t *testing.T) {
	c, backend := loaded(t, 2, "p1", "p2")
	c.Update("p1", func(it *models.FeedItem) { it.CommentsCount = 4 })
	updated := &models.FeedItem{ID: "p1", Body: "edited", CanEdit: true}
	backend.On("UpdateItem", mock.Anything, "p1", models.ItemInput{Body: "edited"}).Return(updated, nil)

	_, err := c.Edit(context.Background(), "p1", "edited")
	require.NoError(t, err)

	it, _ := c.Item("p1")
	assert.Equal(t, "edited", it.Body)
	assert.True(t, it.CanEdit)
	assert.False(t, it.IsEditing)
	assert.Equal(t, 4, it.CommentsCount)
}

func TestEdit_Error(t *testing.T) {
	c, backend := loaded(t, 2, "p1", "p2")
	backend.On("UpdateItem", mock.Anything, "p1", mock.Anything).Return((*models.FeedItem)(nil), errors.New("boom"))

	_, err := c.Edit(context.Background(), "p1", "edited")
	assert.Error(t, err)

	it, _ := c.Item("p1")
	assert.Equal(t, "body p1", it.Body)
	assert.False(t, it.IsEditing)
	assert.EqualError(t, c.Snapshot().Err, "boom")
}

func TestDelete(t *testing.T) {
	c, backend := loaded(t, 5, "p1", "p2")
	backend.On("DeleteItem", mock.Anything, "p1").Return(nil)

	require.NoError(t, c.Delete(context.Background(), "p1"))
	s := c.Snapshot()
	assert.Len(t, s.Items, 1)
	assert.Equal(t, 4, s.Total)
	assert.True(t, s.HasMore)

	t.Run("unknown item", func(t *testing.T) {
		err := c.Delete(context.Background(), "nope")
		assert.True(t, errors.Is(err, models.ErrNotFound))
	})

	t.Run("total is clamped at zero", func(t *testing.T) {
		c, backend := loaded(t, 0, "p1")
		backend.On("DeleteItem", mock.Anything, "p1").Return(nil)
		require.NoError(t, c.Delete(context.Background(), "p1"))
		assert.Equal(t, 0, c.Snapshot().Total)
	})
}

func TestDelete_Error(t *testing.T) {
	c, backend := loaded(t, 2, "p1", "p2")
	backend.On("DeleteItem", mock.Anything, "p2").Return(fmt.Errorf("wrapped: %w", models.ErrForbidden))

	err := c.Delete(context.Background(), "p2")
	assert.True(t, errors.Is(err, models.ErrForbidden))
	it, ok := c.Item("p2")
	require.True(t, ok)
	assert.False(t, it.IsDeleting)
}

func TestSubscribe(t *testing.T) {
	c, backend := loaded(t, 2, "p1", "p2")
	backend.On("DeleteItem", mock.Anything, "p1").Return(nil)

	states, stop := c.Subscribe()
	first := <-states
	assert.Len(t, first.Items, 2)

	threads, stopThread := c.SubscribeThread("p1")
	assert.False(t, (<-threads).Removed)

	require.NoError(t, c.Delete(context.Background(), "p1"))

	latest := <-states
	assert.Len(t, latest.Items, 1)
	assert.True(t, (<-threads).Removed)

	stop()
	stopThread()
	_, open := <-states
	assert.False(t, open)
	_, open = <-threads
	assert.False(t, open)
}

func TestItemOfComment(t *testing.T) {
	c, _ := loaded(t, 2, "p1", "p2")
	c.Update("p2", func(it *models.FeedItem) {
		it.Comments = []models.CommentNode{{ID: "c1", Children: []models.CommentNode{{ID: "r1"}}}}
	})

	id, ok := c.ItemOfComment("r1")
	assert.True(t, ok)
	assert.Equal(t, "p2", id)
	_, ok = c.ItemOfComment("zz")
	assert.False(t, ok)
}
