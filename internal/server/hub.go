package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/ButyrinIA/community/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/golang/glog"
	"github.com/gorilla/websocket"
)

const (
	EventCommentCreated = "comment.created"
	EventCommentUpdated = "comment.updated"
	EventCommentDeleted = "comment.deleted"
	EventItemDeleted    = "item.deleted"
)

const (
	eventBufferSize = 16
	writeTimeout    = 10 * time.Second
	pingInterval    = 30 * time.Second
)

// Event is pushed to every websocket watching an item.
type Event struct {
	Type      string              `json:"type"`
	ItemID    string              `json:"itemId"`
	Comment   *models.CommentNode `json:"comment,omitempty"`
	CommentID string              `json:"commentId,omitempty"`
	// Removed is the number of comments a delete took with it.
	Removed int `json:"removed,omitempty"`
}

type hub struct {
	mu     sync.RWMutex
	subs   map[string]map[chan Event]struct{}
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[chan Event]struct{})}
}

func (h *hub) subscribe(itemID string) (<-chan Event, func()) {
	ch := make(chan Event, eventBufferSize)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	if h.subs[itemID] == nil {
		h.subs[itemID] = make(map[chan Event]struct{})
	}
	h.subs[itemID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[itemID][ch]; !ok {
				return
			}
			delete(h.subs[itemID], ch)
			if len(h.subs[itemID]) == 0 {
				delete(h.subs, itemID)
			}
			close(ch)
		})
	}
}

// publish never blocks; a subscriber with a full buffer misses the event.
func (h *hub) publish(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[e.ItemID] {
		select {
		case ch <- e:
		default:
			glog.V(1).Infof("[hub]drop %s for %s", e.Type, e.ItemID)
		}
	}
}

// watchers reports how many sockets follow itemID.
func (h *hub) watchers(itemID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[itemID])
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, subs := range h.subs {
		for ch := range subs {
			close(ch)
		}
	}
	h.subs = make(map[string]map[chan Event]struct{})
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	item, err := s.item(r.Context(), chi.URLParam(r, "kind"), chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, err)
		return
	}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Infof("[ws] upgrade %s: %v", item.ID, err)
		return
	}
	defer ws.Close()

	events, cancel := s.hub.subscribe(item.ID)
	defer cancel()
	glog.V(1).Infof("[ws] %s watching %s (%d)", userFrom(r.Context()).ID, item.ID, s.hub.watchers(item.ID))

	// The read side only watches for the peer going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				glog.V(2).Infof("[ws]%s<- error = %v", item.ID, err)
				return
			}
		}
	}()

	user := userFrom(r.Context())
	for {
		select {
		case <-gone:
			return
		case e, ok := <-events:
			if !ok {
				ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
					time.Now().Add(writeTimeout))
				return
			}
			if e.Comment != nil {
				nodes := []models.CommentNode{*e.Comment}
				decorateComments(user, item.Author.ID, nodes)
				e.Comment = &nodes[0]
			}
			ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteJSON(e); err != nil {
				glog.Infof("[ws]%s-> error = %v", item.ID, err)
				return
			}
			glog.V(2).Infof("[ws]%s-> %s", item.ID, e.Type)
		case <-time.After(pingInterval):
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
