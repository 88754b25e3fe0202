// Package feed keeps the ordered, paginated collection of items of one kind
// and serializes every change made to it.
package feed

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ButyrinIA/community/internal/kind"
	"github.com/ButyrinIA/community/internal/models"
	"github.com/golang/glog"
)

const DefaultPageSize = 10

// Backend is the item-level half of the remote collaborator.
type Backend interface {
	ListItems(ctx context.Context, page, limit int) (*models.ItemPage, error)
	CreateItem(ctx context.Context, input models.ItemInput) (*models.FeedItem, error)
	UpdateItem(ctx context.Context, id string, input models.ItemInput) (*models.FeedItem, error)
	DeleteItem(ctx context.Context, id string) error
}

// State is a snapshot of a collection.
type State struct {
	Items       []models.FeedItem
	Total       int
	Page        int
	HasMore     bool
	Loading     bool
	LoadingMore bool
	Err         error
}

// Collection holds the items of kind K. All mutations go through update,
// which applies them under one lock and then notifies subscribers; requests
// to the backend are made outside of it.
type Collection[K kind.Kind] struct {
	backend Backend
	limit   int

	mu          sync.RWMutex
	state       State
	listeners   []chan State
	threadSubs  map[string][]chan Thread
	commentHome map[string]string
}

func New[K kind.Kind](backend Backend, limit int) *Collection[K] {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	return &Collection[K]{
		backend:     backend,
		limit:       limit,
		threadSubs:  make(map[string][]chan Thread),
		commentHome: make(map[string]string),
	}
}

func (c *Collection[K]) Kind() string {
	return kind.Name[K]()
}

// Snapshot returns a deep copy of the current state.
func (c *Collection[K]) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot()
}

func (c *Collection[K]) snapshot() State {
	s := c.state
	s.Items = make([]models.FeedItem, len(c.state.Items))
	for i, it := range c.state.Items {
		s.Items[i] = it.Clone()
	}
	return s
}

// Item returns a copy of item id.
func (c *Collection[K]) Item(id string) (models.FeedItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.indexOf(id); i >= 0 {
		return c.state.Items[i].Clone(), true
	}
	return models.FeedItem{}, false
}

// ItemOfComment returns the id of the item whose loaded thread holds
// commentID.
func (c *Collection[K]) ItemOfComment(commentID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.commentHome[commentID]
	return id, ok
}

// Update applies fn to item id. It reports false, without calling fn, when
// the item is not in the collection.
func (c *Collection[K]) Update(id string, fn func(*models.FeedItem)) bool {
	found := false
	c.update(func(s *State) {
		if i := c.indexOf(id); i >= 0 {
			fn(&s.Items[i])
			found = true
		}
	})
	return found
}

// Fetch replaces the collection with the first page.
func (c *Collection[K]) Fetch(ctx context.Context) error {
	c.update(func(s *State) {
		s.Loading = true
		s.Err = nil
	})

	page, err := c.backend.ListItems(ctx, 1, c.limit)
	if err != nil {
		glog.Errorf("[feed][%s] fetch: %v", c.Kind(), err)
		c.update(func(s *State) {
			s.Loading = false
			s.Err = err
		})
		return fmt.Errorf("fetch %s: %w", c.Kind(), err)
	}

	c.update(func(s *State) {
		s.Items = dedupe(nil, page.Items)
		s.Total = page.Pagination.Total
		s.Page = 1
		s.Loading = false
	})
	glog.V(1).Infof("[feed][%s] fetched %d of %d", c.Kind(), len(page.Items), page.Pagination.Total)
	return nil
}

// FetchMore appends the next page. It does nothing while another fetch is in
// flight or when every item is already loaded.
func (c *Collection[K]) FetchMore(ctx context.Context) error {
	next := 0
	c.update(func(s *State) {
		if s.Loading || s.LoadingMore || !s.HasMore {
			return
		}
		s.LoadingMore = true
		s.Err = nil
		next = nextPage(len(s.Items), c.limit)
	})
	if next == 0 {
		return nil
	}

	page, err := c.backend.ListItems(ctx, next, c.limit)
	if err != nil {
		glog.Errorf("[feed][%s] fetch page %d: %v", c.Kind(), next, err)
		c.update(func(s *State) {
			s.LoadingMore = false
			s.Err = err
		})
		return fmt.Errorf("fetch %s page %d: %w", c.Kind(), next, err)
	}

	c.update(func(s *State) {
		before := len(s.Items)
		s.Items = dedupe(s.Items, page.Items)
		s.Total = page.Pagination.Total
		if len(s.Items) == before && !page.Pagination.HasNextPage {
			// The server has nothing past what is loaded.
			s.Total = len(s.Items)
		}
		s.Page = next
		s.LoadingMore = false
	})
	return nil
}

// nextPage is the page holding the first record past the loaded ones. Local
// deletes shift server offsets, so it is derived from the count rather than
// from the last page requested; dedupe absorbs the overlap.
func nextPage(loaded, limit int) int {
	return loaded/limit + 1
}

// Create publishes a new item and puts it at the head of the collection.
func (c *Collection[K]) Create(ctx context.Context, body string) (*models.FeedItem, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("item body is empty: %w", models.ErrValidation)
	}

	item, err := c.backend.CreateItem(ctx, models.ItemInput{Body: body})
	if err != nil {
		c.setErr(err)
		return nil, fmt.Errorf("create %s item: %w", c.Kind(), err)
	}

	c.update(func(s *State) {
		if c.indexOf(item.ID) >= 0 {
			return
		}
		items := make([]models.FeedItem, 0, len(s.Items)+1)
		items = append(items, *item)
		s.Items = append(items, s.Items...)
		s.Total++
	})
	return item, nil
}

// Edit replaces the body of item id with the server-confirmed copy. The
// displayed body is not changed before the server answers.
func (c *Collection[K]) Edit(ctx context.Context, id, body string) (*models.FeedItem, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("item body is empty: %w", models.ErrValidation)
	}
	if !c.Update(id, func(it *models.FeedItem) {
		it.IsEditing = true
		it.IsDeleting = false
	}) {
		return nil, fmt.Errorf("%s item %s: %w", c.Kind(), id, models.ErrNotFound)
	}

	updated, err := c.backend.UpdateItem(ctx, id, models.ItemInput{Body: body})
	if err != nil {
		c.Update(id, func(it *models.FeedItem) { it.IsEditing = false })
		c.setErr(err)
		return nil, fmt.Errorf("edit %s item %s: %w", c.Kind(), id, err)
	}

	if !c.Update(id, func(it *models.FeedItem) { mergeItem(it, updated) }) {
		glog.V(1).Infof("[feed][%s] item %s gone before edit landed", c.Kind(), id)
	}
	return updated, nil
}

// Delete removes item id once the server confirms.
func (c *Collection[K]) Delete(ctx context.Context, id string) error {
	if !c.Update(id, func(it *models.FeedItem) {
		it.IsDeleting = true
		it.IsEditing = false
	}) {
		return fmt.Errorf("%s item %s: %w", c.Kind(), id, models.ErrNotFound)
	}

	if err := c.backend.DeleteItem(ctx, id); err != nil {
		c.Update(id, func(it *models.FeedItem) { it.IsDeleting = false })
		c.setErr(err)
		return fmt.Errorf("delete %s item %s: %w", c.Kind(), id, err)
	}

	c.update(func(s *State) {
		i := c.indexOf(id)
		if i < 0 {
			return
		}
		items := make([]models.FeedItem, 0, len(s.Items)-1)
		items = append(items, s.Items[:i]...)
		s.Items = append(items, s.Items[i+1:]...)
		s.Total = max(s.Total-1, 0)
	})
	return nil
}

func (c *Collection[K]) setErr(err error) {
	c.update(func(s *State) { s.Err = err })
}

// update is the only writer of c.state.
func (c *Collection[K]) update(fn func(*State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.state)
	c.state.HasMore = len(c.state.Items) < c.state.Total
	c.reindex()
	c.notify()
}

func (c *Collection[K]) indexOf(id string) int {
	for i, it := range c.state.Items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func (c *Collection[K]) reindex() {
	clear(c.commentHome)
	for _, it := range c.state.Items {
		index(c.commentHome, it.ID, it.Comments)
	}
}

func index(home map[string]string, itemID string, nodes []models.CommentNode) {
	for _, n := range nodes {
		home[n.ID] = itemID
		index(home, itemID, n.Children)
	}
}

// mergeItem copies the server-owned fields of updated into it, leaving the
// local thread state alone.
func mergeItem(it *models.FeedItem, updated *models.FeedItem) {
	it.Body = updated.Body
	it.UpdatedAt = updated.UpdatedAt
	it.CanEdit = updated.CanEdit
	it.CanDelete = updated.CanDelete
	if !updated.Author.IsZero() {
		it.Author = updated.Author
	}
	it.IsEditing = false
}

func dedupe(items []models.FeedItem, page []models.FeedItem) []models.FeedItem {
	seen := make(map[string]struct{}, len(items)+len(page))
	out := make([]models.FeedItem, 0, len(items)+len(page))
	for _, it := range items {
		seen[it.ID] = struct{}{}
		out = append(out, it)
	}
	for _, it := range page {
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		out = append(out, it)
	}
	return out
}
