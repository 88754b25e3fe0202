// Package kind holds the type markers that parameterize the per-kind feed
// machinery.
package kind

import "github.com/ButyrinIA/community/internal/models"

type Post struct{}

func (Post) Name() string { return models.KindPosts }

type Announcement struct{}

func (Announcement) Name() string { return models.KindAnnouncements }

type Feedback struct{}

func (Feedback) Name() string { return models.KindFeedback }

// Kind is satisfied by exactly the three item kinds.
type Kind interface {
	Post | Announcement | Feedback
	Name() string
}

// Name returns the wire name of K.
func Name[K Kind]() string {
	var k K
	return k.Name()
}
