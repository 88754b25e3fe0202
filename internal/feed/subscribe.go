package feed

import "github.com/ButyrinIA/community/internal/models"

// Thread is the observable comment state of one item.
type Thread struct {
	ItemID        string
	Status        models.ThreadStatus
	Comments      []models.CommentNode
	CommentsCount int
	Loading       bool
	HasMore       bool
	Err           error
	// Removed is set once the item has left the collection.
	Removed bool
}

func threadOf(it models.FeedItem) Thread {
	return Thread{
		ItemID:        it.ID,
		Status:        it.CommentsStatus,
		Comments:      models.CloneNodes(it.Comments),
		CommentsCount: it.CommentsCount,
		Loading:       it.CommentsLoading,
		HasMore:       it.CommentsHasMore,
		Err:           it.CommentsErr,
	}
}

// Subscribe streams collection snapshots, starting with the current one.
// Slow readers only see the latest snapshot. The returned func stops the
// stream and closes the channel.
func (c *Collection[K]) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	c.mu.Lock()
	c.listeners = append(c.listeners, ch)
	offer(ch, c.snapshot())
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, l := range c.listeners {
			if l == ch {
				c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
				close(ch)
				return
			}
		}
	}
}

// SubscribeThread streams the thread state of item itemID.
func (c *Collection[K]) SubscribeThread(itemID string) (<-chan Thread, func()) {
	ch := make(chan Thread, 1)

	c.mu.Lock()
	c.threadSubs[itemID] = append(c.threadSubs[itemID], ch)
	offer(ch, c.threadState(itemID))
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		subs := c.threadSubs[itemID]
		for i, l := range subs {
			if l == ch {
				subs = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
		if len(subs) == 0 {
			delete(c.threadSubs, itemID)
		} else {
			c.threadSubs[itemID] = subs
		}
	}
}

func (c *Collection[K]) threadState(itemID string) Thread {
	if i := c.indexOf(itemID); i >= 0 {
		return threadOf(c.state.Items[i])
	}
	return Thread{ItemID: itemID, Removed: true}
}

// notify runs with c.mu held.
func (c *Collection[K]) notify() {
	if len(c.listeners) > 0 {
		s := c.snapshot()
		for _, l := range c.listeners {
			offer(l, s)
		}
	}
	for itemID, subs := range c.threadSubs {
		t := c.threadState(itemID)
		for _, l := range subs {
			offer(l, t)
		}
	}
}

// offer replaces whatever is pending in ch with v. Callers hold c.mu, so
// there is a single sender per channel.
func offer[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
