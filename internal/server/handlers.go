package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/ButyrinIA/community/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (s *Server) kind(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if kind := chi.URLParam(r, "kind"); !models.ValidKind(kind) {
			writeError(w, fmt.Errorf("kind %q: %w", kind, models.ErrNotFound))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// item loads an item and hides it when it belongs to another kind.
func (s *Server) item(ctx context.Context, kind, id string) (*models.FeedItem, error) {
	item, err := s.storage.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Kind != kind {
		return nil, fmt.Errorf("item %s: %w", id, models.ErrNotFound)
	}
	return item, nil
}

// comment loads a comment together with its item.
func (s *Server) comment(ctx context.Context, kind, id string) (*models.CommentNode, *models.FeedItem, error) {
	c, err := s.storage.GetComment(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	item, err := s.item(ctx, kind, c.ItemID)
	if err != nil {
		return nil, nil, fmt.Errorf("comment %s: %w", id, models.ErrNotFound)
	}
	return c, item, nil
}

func (s *Server) decorateItems(ctx context.Context, user models.Author, items []models.FeedItem) error {
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	liked, err := s.storage.LikedBy(ctx, user.ID, ids)
	if err != nil {
		return err
	}
	for i := range items {
		own := items[i].Author.ID == user.ID
		items[i].IsLiked = liked[items[i].ID]
		items[i].CanEdit = own
		items[i].CanDelete = own
	}
	return nil
}

func decorateComments(user models.Author, itemAuthor string, nodes []models.CommentNode) {
	for i := range nodes {
		own := nodes[i].Author.ID == user.ID
		nodes[i].CanEdit = own
		nodes[i].CanDelete = own || itemAuthor == user.ID
		if len(nodes[i].Children) > 0 {
			nodes[i].HasReplies = true
		}
		decorateComments(user, itemAuthor, nodes[i].Children)
	}
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, limit, err := s.pageParams(r, s.cfg.Feed.PageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := s.storage.ListItems(ctx, chi.URLParam(r, "kind"), page, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.decorateItems(ctx, userFrom(ctx), result.Items); err != nil {
		writeError(w, err)
		return
	}
	if result.Items == nil {
		result.Items = []models.FeedItem{}
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var input models.ItemInput
	if err := s.decodeTrimmed(r, &input, &input.Body); err != nil {
		writeError(w, err)
		return
	}
	user := userFrom(ctx)
	now := s.now()
	item := &models.FeedItem{
		ID:        uuid.New().String(),
		Kind:      chi.URLParam(r, "kind"),
		Author:    user,
		Body:      input.Body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.storage.CreateItem(ctx, item); err != nil {
		writeError(w, err)
		return
	}
	s.respondItem(w, r, http.StatusCreated, item.ID)
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	item, err := s.item(ctx, chi.URLParam(r, "kind"), chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if item.Author.ID != userFrom(ctx).ID {
		writeError(w, fmt.Errorf("edit item %s: %w", item.ID, models.ErrForbidden))
		return
	}
	var input models.ItemInput
	if err := s.decodeTrimmed(r, &input, &input.Body); err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.storage.UpdateItem(ctx, item.ID, input.Body, s.now()); err != nil {
		writeError(w, err)
		return
	}
	s.respondItem(w, r, http.StatusOK, item.ID)
}

func (s *Server) respondItem(w http.ResponseWriter, r *http.Request, status int, id string) {
	ctx := r.Context()
	item, err := s.storage.GetItem(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	items := []models.FeedItem{*item}
	if err := s.decorateItems(ctx, userFrom(ctx), items); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status, items[0])
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	item, err := s.item(ctx, chi.URLParam(r, "kind"), chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if item.Author.ID != userFrom(ctx).ID {
		writeError(w, fmt.Errorf("delete item %s: %w", item.ID, models.ErrForbidden))
		return
	}
	if err := s.storage.DeleteItem(ctx, item.ID); err != nil {
		writeError(w, err)
		return
	}
	s.hub.publish(Event{Type: EventItemDeleted, ItemID: item.ID})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	item, err := s.item(ctx, chi.URLParam(r, "kind"), chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, err)
		return
	}
	state, err := s.storage.ToggleLike(ctx, item.ID, userFrom(ctx).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	item, err := s.item(ctx, chi.URLParam(r, "kind"), chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, err)
		return
	}
	page, limit, err := s.pageParams(r, s.cfg.Feed.CommentPageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := s.storage.GetComments(ctx, item.ID, page, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if r.URL.Query().Get("includeReplies") == "true" {
		if err := attachReplies(ctx, result.Comments); err != nil {
			writeError(w, err)
			return
		}
	}
	decorateComments(userFrom(ctx), item.Author.ID, result.Comments)
	if result.Comments == nil {
		result.Comments = []models.CommentNode{}
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	item, err := s.item(ctx, chi.URLParam(r, "kind"), chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, err)
		return
	}
	var input models.CommentInput
	if err := s.decodeTrimmed(r, &input, &input.Content); err != nil {
		writeError(w, err)
		return
	}
	if input.ParentID != nil {
		parent, err := s.storage.GetComment(ctx, *input.ParentID)
		switch {
		case err != nil:
			writeError(w, fmt.Errorf("%w: parent comment %s: %v", models.ErrValidation, *input.ParentID, err))
			return
		case parent.ItemID != item.ID:
			writeError(w, fmt.Errorf("%w: parent comment %s belongs to another item", models.ErrValidation, parent.ID))
			return
		case !parent.IsTopLevel():
			writeError(w, fmt.Errorf("%w: replies to replies are not allowed", models.ErrValidation))
			return
		}
	}

	user := userFrom(ctx)
	now := s.now()
	comment := &models.CommentNode{
		ID:        uuid.New().String(),
		ItemID:    item.ID,
		Author:    user,
		Body:      input.Content,
		CreatedAt: now,
		UpdatedAt: now,
		ParentID:  input.ParentID,
	}
	if err := s.storage.CreateComment(ctx, comment); err != nil {
		writeError(w, err)
		return
	}
	stored, err := s.storage.GetComment(ctx, comment.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	s.hub.publish(Event{Type: EventCommentCreated, ItemID: item.ID, Comment: stored})

	nodes := []models.CommentNode{*stored}
	decorateComments(user, item.Author.ID, nodes)
	writeJSON(w, http.StatusCreated, nodes[0])
}

func (s *Server) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userFrom(ctx)
	comment, item, err := s.comment(ctx, chi.URLParam(r, "kind"), chi.URLParam(r, "commentID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if comment.Author.ID != user.ID {
		writeError(w, fmt.Errorf("edit comment %s: %w", comment.ID, models.ErrForbidden))
		return
	}
	var input models.CommentUpdate
	if err := s.decodeTrimmed(r, &input, &input.Content); err != nil {
		writeError(w, err)
		return
	}
	updated, err := s.storage.UpdateComment(ctx, comment.ID, input.Content, s.now())
	if err != nil {
		writeError(w, err)
		return
	}
	s.hub.publish(Event{Type: EventCommentUpdated, ItemID: item.ID, Comment: updated})

	nodes := []models.CommentNode{*updated}
	decorateComments(user, item.Author.ID, nodes)
	writeJSON(w, http.StatusOK, nodes[0])
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userFrom(ctx)
	comment, item, err := s.comment(ctx, chi.URLParam(r, "kind"), chi.URLParam(r, "commentID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if comment.Author.ID != user.ID && item.Author.ID != user.ID {
		writeError(w, fmt.Errorf("delete comment %s: %w", comment.ID, models.ErrForbidden))
		return
	}
	removed, err := s.storage.DeleteComment(ctx, comment.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	s.hub.publish(Event{Type: EventCommentDeleted, ItemID: item.ID, CommentID: comment.ID, Removed: removed})
	w.WriteHeader(http.StatusNoContent)
}

// decodeTrimmed decodes the body, trims the text field it points at, and only
// then validates, so whitespace-only text is rejected.
func (s *Server) decodeTrimmed(r *http.Request, dst interface{}, text *string) error {
	if err := decode(r, dst); err != nil {
		return err
	}
	*text = strings.TrimSpace(*text)
	return s.check(dst)
}
