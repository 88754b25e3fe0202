// Package community assembles the per-kind feeds of a session.
package community

import (
	"context"

	"github.com/ButyrinIA/community/internal/feed"
	"github.com/ButyrinIA/community/internal/kind"
	"github.com/ButyrinIA/community/internal/models"
	"github.com/ButyrinIA/community/internal/thread"
	"github.com/golang/glog"
)

// Backend serves both the item and the comment requests of one kind.
type Backend interface {
	feed.Backend
	thread.Backend
}

// Backends hands out the backend of a kind by its wire name.
type Backends interface {
	Kind(name string) Backend
}

type Options struct {
	FeedPageSize    int
	CommentPageSize int
}

// Feed is the collection and thread controller of kind K.
type Feed[K kind.Kind] struct {
	*feed.Collection[K]
	*thread.Controller
}

func newFeed[K kind.Kind](backends Backends, user models.Author, opts Options) *Feed[K] {
	name := kind.Name[K]()
	backend := backends.Kind(name)
	collection := feed.New[K](backend, opts.FeedPageSize)
	return &Feed[K]{
		Collection: collection,
		Controller: thread.New(collection, backend, user, opts.CommentPageSize, name),
	}
}

// Community owns the state of one session: the three feeds and the identity
// of the signed-in user.
type Community struct {
	User          models.Author
	Posts         *Feed[kind.Post]
	Announcements *Feed[kind.Announcement]
	Feedback      *Feed[kind.Feedback]
}

func New(backends Backends, user models.Author, opts Options) *Community {
	glog.V(1).Infof("[community] session for %s", user.ID)
	return &Community{
		User:          user,
		Posts:         newFeed[kind.Post](backends, user, opts),
		Announcements: newFeed[kind.Announcement](backends, user, opts),
		Feedback:      newFeed[kind.Feedback](backends, user, opts),
	}
}

// Surface is the contract every Feed exposes, whatever its kind.
type Surface interface {
	Kind() string
	Snapshot() feed.State
	Item(id string) (models.FeedItem, bool)
	Subscribe() (<-chan feed.State, func())
	SubscribeThread(itemID string) (<-chan feed.Thread, func())

	Fetch(ctx context.Context) error
	FetchMore(ctx context.Context) error
	Create(ctx context.Context, body string) (*models.FeedItem, error)
	Edit(ctx context.Context, id, body string) (*models.FeedItem, error)
	Delete(ctx context.Context, id string) error

	OpenThread(ctx context.Context, itemID string) error
	RefreshThread(ctx context.Context, itemID string) error
	LoadMore(ctx context.Context, itemID string) error
	CreateComment(ctx context.Context, itemID, content string, parentID *string) (*models.CommentNode, error)
	EditComment(ctx context.Context, commentID, content string) (*models.CommentNode, error)
	DeleteComment(ctx context.Context, commentID string) error
	ToggleLike(ctx context.Context, itemID string) (*models.LikeState, error)
}

var (
	_ Surface = (*Feed[kind.Post])(nil)
	_ Surface = (*Feed[kind.Announcement])(nil)
	_ Surface = (*Feed[kind.Feedback])(nil)
)

// ByKind returns the feed with the given wire name.
func (c *Community) ByKind(name string) (Surface, bool) {
	switch name {
	case models.KindPosts:
		return c.Posts, true
	case models.KindAnnouncements:
		return c.Announcements, true
	case models.KindFeedback:
		return c.Feedback, true
	}
	return nil, false
}
