package storage

import (
	"context"
	"time"

	"github.com/ButyrinIA/community/internal/models"
)

// Storage is the authoritative record of items, likes and comments. Item and
// comment ids are unique across kinds. Lookups of unknown ids fail with an
// error wrapping models.ErrNotFound.
type Storage interface {
	CreateItem(ctx context.Context, item *models.FeedItem) error
	GetItem(ctx context.Context, id string) (*models.FeedItem, error)
	// ListItems pages the items of kind, newest first.
	ListItems(ctx context.Context, kind string, page, limit int) (*models.ItemPage, error)
	UpdateItem(ctx context.Context, id, body string, at time.Time) (*models.FeedItem, error)
	// DeleteItem removes the item with its likes and comments.
	DeleteItem(ctx context.Context, id string) error

	ToggleLike(ctx context.Context, itemID, userID string) (*models.LikeState, error)
	LikedBy(ctx context.Context, userID string, itemIDs []string) (map[string]bool, error)

	CreateComment(ctx context.Context, comment *models.CommentNode) error
	GetComment(ctx context.Context, id string) (*models.CommentNode, error)
	UpdateComment(ctx context.Context, id, content string, at time.Time) (*models.CommentNode, error)
	// DeleteComment removes the comment and its replies and reports how many
	// comments were removed.
	DeleteComment(ctx context.Context, id string) (int, error)
	// GetComments pages the top-level comments of an item, newest first.
	// Pagination.Total counts top-level comments, TotalWithReplies all of them.
	GetComments(ctx context.Context, itemID string, page, limit int) (*models.CommentPage, error)
	// GetReplies returns the replies of each parent, oldest first.
	GetReplies(ctx context.Context, parentIDs []string) (map[string][]models.CommentNode, error)

	Close() error
}

// Window returns the slice bounds of page (1-based) over total records.
func Window(total, page, limit int) (start, end int) {
	if page < 1 {
		page = 1
	}
	start = (page - 1) * limit
	if start > total {
		start = total
	}
	end = start + limit
	if end > total {
		end = total
	}
	return start, end
}

// Paginate builds the pagination block for page over total records.
func Paginate(total, page, limit int) models.Pagination {
	if page < 1 {
		page = 1
	}
	_, end := Window(total, page, limit)
	return models.Pagination{Page: page, Limit: limit, HasNextPage: end < total, Total: total}
}
