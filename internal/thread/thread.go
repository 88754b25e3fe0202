// Package thread drives the comment thread of feed items against the remote
// backend.
//
// Nodes only enter a thread once the server has confirmed them. Deletes dim
// the node while the request is in flight; edits only flag it, the displayed
// body stays as it was until the server returns the new copy.
package thread

import (
	"context"
	"fmt"
	"strings"

	"github.com/ButyrinIA/community/internal/models"
	"github.com/ButyrinIA/community/internal/tree"
	"github.com/golang/glog"
)

const DefaultPageSize = 20

// Backend is the comment half of the remote collaborator.
type Backend interface {
	FetchComments(ctx context.Context, itemID string, page, limit int, includeReplies bool) (*models.CommentPage, error)
	CreateComment(ctx context.Context, itemID string, input models.CommentInput) (*models.CommentNode, error)
	UpdateComment(ctx context.Context, commentID, content string) (*models.CommentNode, error)
	DeleteComment(ctx context.Context, commentID string) error
	ToggleLike(ctx context.Context, itemID string) (*models.LikeState, error)
}

// Store owns the items whose threads the controller manages.
type Store interface {
	Item(id string) (models.FeedItem, bool)
	ItemOfComment(commentID string) (string, bool)
	Update(id string, fn func(*models.FeedItem)) bool
}

type Controller struct {
	store   Store
	backend Backend
	user    models.Author
	limit   int
	tag     string
}

// New returns a controller for the items of store. user is the identity of
// the current session, used only to label freshly created comments that come
// back without an author.
func New(store Store, backend Backend, user models.Author, limit int, tag string) *Controller {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	return &Controller{store: store, backend: backend, user: user, limit: limit, tag: tag}
}

// OpenThread loads the first page of the thread of itemID. It does nothing
// when the thread is already loading or loaded.
func (c *Controller) OpenThread(ctx context.Context, itemID string) error {
	return c.loadFirstPage(ctx, itemID, false)
}

// RefreshThread reloads the first page even when the thread is loaded,
// replacing every node with the server's copy.
func (c *Controller) RefreshThread(ctx context.Context, itemID string) error {
	return c.loadFirstPage(ctx, itemID, true)
}

func (c *Controller) loadFirstPage(ctx context.Context, itemID string, force bool) error {
	start := false
	if !c.store.Update(itemID, func(it *models.FeedItem) {
		switch it.CommentsStatus {
		case models.ThreadLoading:
			return
		case models.ThreadReady:
			if !force {
				return
			}
		}
		it.CommentsStatus = models.ThreadLoading
		it.CommentsLoading = true
		it.CommentsErr = nil
		start = true
	}) {
		return fmt.Errorf("%s item %s: %w", c.tag, itemID, models.ErrNotFound)
	}
	if !start {
		return nil
	}

	page, err := c.backend.FetchComments(ctx, itemID, 1, c.limit, true)
	if err != nil {
		glog.Errorf("[thread][%s] open %s: %v", c.tag, itemID, err)
		c.store.Update(itemID, func(it *models.FeedItem) {
			it.CommentsStatus = models.ThreadFailed
			it.CommentsLoading = false
			it.CommentsInitialized = true
			it.CommentsErr = err
		})
		return fmt.Errorf("load comments of %s: %w", itemID, err)
	}

	c.apply(itemID, func(it *models.FeedItem) {
		it.Comments = models.CloneNodes(page.Comments)
		if it.Comments == nil {
			it.Comments = []models.CommentNode{}
		}
		it.CommentsStatus = models.ThreadReady
		it.CommentsLoading = false
		it.CommentsInitialized = true
		it.CommentsPage = pageOf(page.Pagination, 1)
		it.CommentsHasMore = page.Pagination.HasNextPage
		it.CommentsCount = reconcile(page.Pagination)
	})
	glog.V(1).Infof("[thread][%s] opened %s with %d comments", c.tag, itemID, len(page.Comments))
	return nil
}

// LoadMore fetches the next page of a loaded thread. Without a further page,
// or outside the ready state, it neither requests nor changes anything.
func (c *Controller) LoadMore(ctx context.Context, itemID string) error {
	next := 0
	if !c.store.Update(itemID, func(it *models.FeedItem) {
		if it.CommentsStatus != models.ThreadReady || !it.CommentsHasMore {
			return
		}
		it.CommentsStatus = models.ThreadLoading
		it.CommentsLoading = true
		it.CommentsErr = nil
		// Counted from the loaded top-level comments, since a local delete
		// shifts the server's offsets.
		next = len(it.Comments)/c.limit + 1
	}) {
		return fmt.Errorf("%s item %s: %w", c.tag, itemID, models.ErrNotFound)
	}
	if next == 0 {
		return nil
	}

	page, err := c.backend.FetchComments(ctx, itemID, next, c.limit, true)
	if err != nil {
		glog.Errorf("[thread][%s] load page %d of %s: %v", c.tag, next, itemID, err)
		c.store.Update(itemID, func(it *models.FeedItem) {
			it.CommentsStatus = models.ThreadReady
			it.CommentsLoading = false
			it.CommentsErr = err
		})
		return fmt.Errorf("load comments of %s page %d: %w", itemID, next, err)
	}

	c.apply(itemID, func(it *models.FeedItem) {
		it.Comments = tree.MergeTopLevel(it.Comments, models.CloneNodes(page.Comments))
		it.CommentsStatus = models.ThreadReady
		it.CommentsLoading = false
		it.CommentsPage = pageOf(page.Pagination, next)
		it.CommentsHasMore = page.Pagination.HasNextPage
		it.CommentsCount = reconcile(page.Pagination)
	})
	return nil
}

// CreateComment posts content on itemID, as a reply when parentID is set.
// Replies are only accepted on top-level comments of the loaded thread.
func (c *Controller) CreateComment(ctx context.Context, itemID, content string, parentID *string) (*models.CommentNode, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("comment is empty: %w", models.ErrValidation)
	}
	it, ok := c.store.Item(itemID)
	if !ok {
		return nil, fmt.Errorf("%s item %s: %w", c.tag, itemID, models.ErrNotFound)
	}
	if parentID != nil {
		parent, ok := tree.Find(it.Comments, *parentID)
		if !ok {
			return nil, fmt.Errorf("parent comment %s is not in the thread: %w", *parentID, models.ErrValidation)
		}
		if !parent.IsTopLevel() {
			return nil, fmt.Errorf("parent comment %s is itself a reply: %w", *parentID, models.ErrValidation)
		}
	}

	created, err := c.backend.CreateComment(ctx, itemID, models.CommentInput{Content: content, ParentID: parentID})
	if err != nil {
		glog.Errorf("[thread][%s] create comment on %s: %v", c.tag, itemID, err)
		return nil, fmt.Errorf("create comment on %s: %w", itemID, err)
	}
	node := withDisplayAuthor(*created, c.user)

	c.apply(itemID, func(it *models.FeedItem) {
		if !it.CommentsInitialized {
			// The thread is fetched whole on first open.
			it.CommentsCount++
			return
		}
		if _, dup := tree.Find(it.Comments, node.ID); dup {
			return
		}
		before := tree.CountAll(it.Comments)
		if parentID != nil {
			it.Comments = tree.InsertReply(it.Comments, *parentID, node)
		} else {
			it.Comments = tree.Prepend(it.Comments, node)
		}
		it.CommentsCount += tree.CountAll(it.Comments) - before
	})
	return &node, nil
}

// EditComment sends new content for commentID. The node is flagged as
// editing until the server answers; its body only changes on success.
func (c *Controller) EditComment(ctx context.Context, commentID, content string) (*models.CommentNode, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("comment is empty: %w", models.ErrValidation)
	}
	itemID, ok := c.store.ItemOfComment(commentID)
	if !ok {
		return nil, fmt.Errorf("comment %s: %w", commentID, models.ErrNotFound)
	}
	c.store.Update(itemID, func(it *models.FeedItem) {
		it.Comments = tree.SetTransient(it.Comments, commentID, tree.Editing, true)
	})

	updated, err := c.backend.UpdateComment(ctx, commentID, content)
	if err != nil {
		glog.Errorf("[thread][%s] edit comment %s: %v", c.tag, commentID, err)
		c.store.Update(itemID, func(it *models.FeedItem) {
			it.Comments = tree.SetTransient(it.Comments, commentID, tree.Editing, false)
		})
		return nil, fmt.Errorf("edit comment %s: %w", commentID, err)
	}

	c.apply(itemID, func(it *models.FeedItem) {
		if _, ok := tree.Find(it.Comments, commentID); !ok {
			glog.V(1).Infof("[thread][%s] comment %s gone before edit landed", c.tag, commentID)
			return
		}
		it.Comments = tree.ReplaceNode(it.Comments, commentID, *updated)
	})
	if node, ok := c.comment(itemID, commentID); ok {
		return node, nil
	}
	return updated, nil
}

// DeleteComment removes commentID and its replies once the server confirms.
func (c *Controller) DeleteComment(ctx context.Context, commentID string) error {
	itemID, ok := c.store.ItemOfComment(commentID)
	if !ok {
		return fmt.Errorf("comment %s: %w", commentID, models.ErrNotFound)
	}
	c.store.Update(itemID, func(it *models.FeedItem) {
		it.Comments = tree.SetTransient(it.Comments, commentID, tree.Deleting, true)
	})

	if err := c.backend.DeleteComment(ctx, commentID); err != nil {
		glog.Errorf("[thread][%s] delete comment %s: %v", c.tag, commentID, err)
		c.store.Update(itemID, func(it *models.FeedItem) {
			it.Comments = tree.SetTransient(it.Comments, commentID, tree.Deleting, false)
		})
		return fmt.Errorf("delete comment %s: %w", commentID, err)
	}

	c.apply(itemID, func(it *models.FeedItem) {
		before := tree.CountAll(it.Comments)
		it.Comments = tree.RemoveNode(it.Comments, commentID)
		it.CommentsCount = max(it.CommentsCount-(before-tree.CountAll(it.Comments)), 0)
	})
	return nil
}

// ToggleLike flips the like of the current user on itemID and stores the
// state the server reports.
func (c *Controller) ToggleLike(ctx context.Context, itemID string) (*models.LikeState, error) {
	if _, ok := c.store.Item(itemID); !ok {
		return nil, fmt.Errorf("%s item %s: %w", c.tag, itemID, models.ErrNotFound)
	}
	state, err := c.backend.ToggleLike(ctx, itemID)
	if err != nil {
		glog.Errorf("[thread][%s] toggle like on %s: %v", c.tag, itemID, err)
		return nil, fmt.Errorf("toggle like on %s: %w", itemID, err)
	}
	c.apply(itemID, func(it *models.FeedItem) {
		it.IsLiked = state.IsLiked
		it.LikesCount = state.LikesCount
	})
	return state, nil
}

// apply writes a confirmed server result into itemID. An item that left the
// store while the request was in flight is skipped.
func (c *Controller) apply(itemID string, fn func(*models.FeedItem)) {
	if !c.store.Update(itemID, fn) {
		glog.V(1).Infof("[thread][%s] item %s gone before response landed", c.tag, itemID)
	}
}

func (c *Controller) comment(itemID, commentID string) (*models.CommentNode, bool) {
	it, ok := c.store.Item(itemID)
	if !ok {
		return nil, false
	}
	n, ok := tree.Find(it.Comments, commentID)
	if !ok {
		return nil, false
	}
	return &n, true
}

// withDisplayAuthor fills in the current user as author of a node the server
// returned without one. The result is for display only and is marked
// provisional; the next fetch of the thread overwrites it.
func withDisplayAuthor(n models.CommentNode, user models.Author) models.CommentNode {
	if n.Author.IsZero() && !user.IsZero() {
		n.Author = user
		n.AuthorProvisional = true
	}
	return n
}

func reconcile(p models.Pagination) int {
	if p.TotalWithReplies != nil {
		return *p.TotalWithReplies
	}
	return p.Total
}

func pageOf(p models.Pagination, requested int) int {
	if p.Page > 0 {
		return p.Page
	}
	return requested
}
