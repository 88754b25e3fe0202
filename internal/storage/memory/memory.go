package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ButyrinIA/community/internal/models"
	"github.com/ButyrinIA/community/internal/storage"
)

type MemoryStorage struct {
	items     map[string]*models.FeedItem
	itemOrder []string
	comments  map[string]*models.CommentNode
	// commentOrder holds comment ids per item in creation order.
	commentOrder map[string][]string
	likes        map[string]map[string]struct{}
	mu           sync.RWMutex
}

func New() *MemoryStorage {
	s := &MemoryStorage{}
	s.reset()
	return s
}

func (s *MemoryStorage) reset() {
	s.items = make(map[string]*models.FeedItem)
	s.itemOrder = nil
	s.comments = make(map[string]*models.CommentNode)
	s.commentOrder = make(map[string][]string)
	s.likes = make(map[string]map[string]struct{})
}

func (s *MemoryStorage) CreateItem(ctx context.Context, item *models.FeedItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[item.ID]; exists {
		return fmt.Errorf("item %s already exists", item.ID)
	}
	stored := *item
	s.items[item.ID] = &stored
	s.itemOrder = append(s.itemOrder, item.ID)
	return nil
}

func (s *MemoryStorage) GetItem(ctx context.Context, id string) (*models.FeedItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.items[id]
	if !exists {
		return nil, fmt.Errorf("item %s: %w", id, models.ErrNotFound)
	}
	out := s.itemView(item)
	return &out, nil
}

func (s *MemoryStorage) ListItems(ctx context.Context, kind string, page, limit int) (*models.ItemPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for i := len(s.itemOrder) - 1; i >= 0; i-- {
		if s.items[s.itemOrder[i]].Kind == kind {
			ids = append(ids, s.itemOrder[i])
		}
	}

	start, end := storage.Window(len(ids), page, limit)
	items := make([]models.FeedItem, 0, end-start)
	for _, id := range ids[start:end] {
		items = append(items, s.itemView(s.items[id]))
	}
	return &models.ItemPage{Items: items, Pagination: storage.Paginate(len(ids), page, limit)}, nil
}

func (s *MemoryStorage) UpdateItem(ctx context.Context, id, body string, at time.Time) (*models.FeedItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.items[id]
	if !exists {
		return nil, fmt.Errorf("item %s: %w", id, models.ErrNotFound)
	}
	item.Body = body
	item.UpdatedAt = at
	out := s.itemView(item)
	return &out, nil
}

func (s *MemoryStorage) DeleteItem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; !exists {
		return fmt.Errorf("item %s: %w", id, models.ErrNotFound)
	}
	for _, cid := range s.commentOrder[id] {
		delete(s.comments, cid)
	}
	delete(s.commentOrder, id)
	delete(s.likes, id)
	delete(s.items, id)
	s.itemOrder = without(s.itemOrder, map[string]struct{}{id: {}})
	return nil
}

func (s *MemoryStorage) ToggleLike(ctx context.Context, itemID, userID string) (*models.LikeState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[itemID]; !exists {
		return nil, fmt.Errorf("item %s: %w", itemID, models.ErrNotFound)
	}
	users, ok := s.likes[itemID]
	if !ok {
		users = make(map[string]struct{})
		s.likes[itemID] = users
	}
	_, liked := users[userID]
	if liked {
		delete(users, userID)
	} else {
		users[userID] = struct{}{}
	}
	return &models.LikeState{IsLiked: !liked, LikesCount: len(users)}, nil
}

func (s *MemoryStorage) LikedBy(ctx context.Context, userID string, itemIDs []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]bool, len(itemIDs))
	for _, id := range itemIDs {
		_, out[id] = s.likes[id][userID]
	}
	return out, nil
}

func (s *MemoryStorage) CreateComment(ctx context.Context, comment *models.CommentNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[comment.ItemID]; !exists {
		return fmt.Errorf("item %s: %w", comment.ItemID, models.ErrNotFound)
	}
	if comment.ParentID != nil {
		parent, exists := s.comments[*comment.ParentID]
		if !exists || parent.ItemID != comment.ItemID {
			return fmt.Errorf("parent comment %s: %w", *comment.ParentID, models.ErrNotFound)
		}
	}
	stored := *comment
	stored.Children = nil
	s.comments[comment.ID] = &stored
	s.commentOrder[comment.ItemID] = append(s.commentOrder[comment.ItemID], comment.ID)
	return nil
}

func (s *MemoryStorage) GetComment(ctx context.Context, id string) (*models.CommentNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.comments[id]
	if !exists {
		return nil, fmt.Errorf("comment %s: %w", id, models.ErrNotFound)
	}
	out := s.commentView(c)
	return &out, nil
}

func (s *MemoryStorage) UpdateComment(ctx context.Context, id, content string, at time.Time) (*models.CommentNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, exists := s.comments[id]
	if !exists {
		return nil, fmt.Errorf("comment %s: %w", id, models.ErrNotFound)
	}
	c.Body = content
	c.UpdatedAt = at
	out := s.commentView(c)
	return &out, nil
}

func (s *MemoryStorage) DeleteComment(ctx context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, exists := s.comments[id]
	if !exists {
		return 0, fmt.Errorf("comment %s: %w", id, models.ErrNotFound)
	}
	removed := map[string]struct{}{id: {}}
	for _, cid := range s.commentOrder[c.ItemID] {
		if p := s.comments[cid].ParentID; p != nil && *p == id {
			removed[cid] = struct{}{}
		}
	}
	for cid := range removed {
		delete(s.comments, cid)
	}
	s.commentOrder[c.ItemID] = without(s.commentOrder[c.ItemID], removed)
	return len(removed), nil
}

func (s *MemoryStorage) GetComments(ctx context.Context, itemID string, page, limit int) (*models.CommentPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.items[itemID]; !exists {
		return nil, fmt.Errorf("item %s: %w", itemID, models.ErrNotFound)
	}

	order := s.commentOrder[itemID]
	var top []string
	for i := len(order) - 1; i >= 0; i-- {
		if s.comments[order[i]].ParentID == nil {
			top = append(top, order[i])
		}
	}

	start, end := storage.Window(len(top), page, limit)
	comments := make([]models.CommentNode, 0, end-start)
	for _, id := range top[start:end] {
		comments = append(comments, s.commentView(s.comments[id]))
	}

	pagination := storage.Paginate(len(top), page, limit)
	withReplies := len(order)
	pagination.TotalWithReplies = &withReplies
	return &models.CommentPage{Comments: comments, Pagination: pagination}, nil
}

func (s *MemoryStorage) GetReplies(ctx context.Context, parentIDs []string) (map[string][]models.CommentNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]models.CommentNode, len(parentIDs))
	for _, pid := range parentIDs {
		parent, exists := s.comments[pid]
		if !exists {
			continue
		}
		for _, cid := range s.commentOrder[parent.ItemID] {
			c := s.comments[cid]
			if c.ParentID != nil && *c.ParentID == pid {
				out[pid] = append(out[pid], s.commentView(c))
			}
		}
	}
	return out, nil
}

func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}

// itemView copies item with its derived counters filled in.
func (s *MemoryStorage) itemView(item *models.FeedItem) models.FeedItem {
	out := *item
	out.LikesCount = len(s.likes[item.ID])
	out.CommentsCount = len(s.commentOrder[item.ID])
	return out
}

func (s *MemoryStorage) commentView(c *models.CommentNode) models.CommentNode {
	out := *c
	if c.ParentID != nil {
		p := *c.ParentID
		out.ParentID = &p
	}
	out.Children = nil
	out.HasReplies = false
	if c.ParentID == nil {
		for _, cid := range s.commentOrder[c.ItemID] {
			if p := s.comments[cid].ParentID; p != nil && *p == c.ID {
				out.HasReplies = true
				break
			}
		}
	}
	return out
}

func without(ids []string, drop map[string]struct{}) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, skip := drop[id]; !skip {
			out = append(out, id)
		}
	}
	return out
}
