package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ButyrinIA/community/internal/models"
	"github.com/graph-gophers/dataloader/v7"
)

type replyDataLoader = dataloader.Loader[string, []models.CommentNode]

// replyLoader installs a per-request loader that collects reply lookups into
// a single storage call.
func (s *Server) replyLoader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		loader := dataloader.NewBatchedLoader(s.batchReplies,
			dataloader.WithWait[string, []models.CommentNode](2*time.Millisecond),
			dataloader.WithCache[string, []models.CommentNode](&dataloader.NoCache[string, []models.CommentNode]{}),
		)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), replyLoaderKey, loader)))
	})
}

func (s *Server) batchReplies(ctx context.Context, parentIDs []string) []*dataloader.Result[[]models.CommentNode] {
	results := make([]*dataloader.Result[[]models.CommentNode], len(parentIDs))
	replies, err := s.storage.GetReplies(ctx, parentIDs)
	for i, id := range parentIDs {
		if err != nil {
			results[i] = &dataloader.Result[[]models.CommentNode]{Error: err}
			continue
		}
		results[i] = &dataloader.Result[[]models.CommentNode]{Data: replies[id]}
	}
	return results
}

// attachReplies fills in the children of every top-level comment.
func attachReplies(ctx context.Context, comments []models.CommentNode) error {
	if len(comments) == 0 {
		return nil
	}
	loader, ok := ctx.Value(replyLoaderKey).(*replyDataLoader)
	if !ok {
		return errors.New("reply loader not found in context")
	}
	ids := make([]string, len(comments))
	for i, c := range comments {
		ids[i] = c.ID
	}
	replies, errs := loader.LoadMany(ctx, ids)()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	for i := range comments {
		comments[i].Children = replies[i]
	}
	return nil
}
