package models

import "time"

const (
	KindPosts         = "posts"
	KindAnnouncements = "announcements"
	KindFeedback      = "feedback"
)

// Kinds lists every item kind served by the feed.
var Kinds = []string{KindPosts, KindAnnouncements, KindFeedback}

func ValidKind(kind string) bool {
	for _, k := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

type Author struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (a Author) IsZero() bool {
	return a.ID == ""
}

// ThreadStatus is the lifecycle of a feed item's comment thread.
type ThreadStatus int

const (
	ThreadIdle ThreadStatus = iota
	ThreadLoading
	ThreadReady
	ThreadFailed
)

func (s ThreadStatus) String() string {
	switch s {
	case ThreadLoading:
		return "loading"
	case ThreadReady:
		return "ready"
	case ThreadFailed:
		return "failed"
	default:
		return "idle"
	}
}

type FeedItem struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	Author        Author    `json:"author"`
	Body          string    `json:"body"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	LikesCount    int       `json:"likesCount"`
	IsLiked       bool      `json:"isLiked"`
	CommentsCount int       `json:"commentsCount"`
	CanEdit       bool      `json:"canEdit"`
	CanDelete     bool      `json:"canDelete"`

	// Client-side state, never sent over the wire.
	IsEditing           bool          `json:"-"`
	IsDeleting          bool          `json:"-"`
	Comments            []CommentNode `json:"-"`
	CommentsLoading     bool          `json:"-"`
	CommentsInitialized bool          `json:"-"`
	CommentsPage        int           `json:"-"`
	CommentsHasMore     bool          `json:"-"`
	CommentsStatus      ThreadStatus  `json:"-"`
	CommentsErr         error         `json:"-"`
}

// Clone returns a copy of the item that shares no comment nodes with it.
func (i FeedItem) Clone() FeedItem {
	i.Comments = CloneNodes(i.Comments)
	return i
}

type CommentNode struct {
	ID         string        `json:"id"`
	ItemID     string        `json:"itemId"`
	Author     Author        `json:"author"`
	Body       string        `json:"body"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
	ParentID   *string       `json:"parentCommentId"`
	Children   []CommentNode `json:"children"`
	CanEdit    bool          `json:"canEdit"`
	CanDelete  bool          `json:"canDelete"`
	HasReplies bool          `json:"hasReplies"`

	IsEditing  bool `json:"-"`
	IsDeleting bool `json:"-"`

	// AuthorProvisional marks an Author filled in locally for display because
	// the server response carried none. The next fetch replaces it.
	AuthorProvisional bool `json:"-"`
}

func (n CommentNode) IsTopLevel() bool {
	return n.ParentID == nil
}

func CloneNodes(nodes []CommentNode) []CommentNode {
	if nodes == nil {
		return nil
	}
	out := make([]CommentNode, len(nodes))
	for i, n := range nodes {
		if n.ParentID != nil {
			p := *n.ParentID
			n.ParentID = &p
		}
		n.Children = CloneNodes(n.Children)
		out[i] = n
	}
	return out
}

type Pagination struct {
	Page             int  `json:"page"`
	Limit            int  `json:"limit"`
	HasNextPage      bool `json:"hasNextPage"`
	Total            int  `json:"total"`
	TotalWithReplies *int `json:"totalWithReplies,omitempty"`
}

type CommentPage struct {
	Comments   []CommentNode `json:"comments"`
	Pagination Pagination    `json:"pagination"`
}

type ItemPage struct {
	Items      []FeedItem `json:"items"`
	Pagination Pagination `json:"pagination"`
}

type LikeState struct {
	IsLiked    bool `json:"isLiked"`
	LikesCount int  `json:"likesCount"`
}

type CommentInput struct {
	Content  string  `json:"content" validate:"required,max=2000"`
	ParentID *string `json:"parentCommentId,omitempty" validate:"omitempty,uuid"`
}

type CommentUpdate struct {
	Content string `json:"content" validate:"required,max=2000"`
}

type ItemInput struct {
	Body string `json:"body" validate:"required,max=5000"`
}
