package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ButyrinIA/community/internal/models"
	"github.com/ButyrinIA/community/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
	CREATE TABLE IF NOT EXISTS items (
		seq BIGSERIAL,
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		author_id TEXT NOT NULL,
		author_name TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	CREATE TABLE IF NOT EXISTS likes (
		item_id TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		PRIMARY KEY (item_id, user_id)
	);
	CREATE TABLE IF NOT EXISTS comments (
		seq BIGSERIAL,
		id TEXT PRIMARY KEY,
		item_id TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
		parent_id TEXT REFERENCES comments(id) ON DELETE CASCADE,
		author_id TEXT NOT NULL,
		author_name TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_items_kind_seq ON items(kind, seq);
	CREATE INDEX IF NOT EXISTS idx_comments_item_id ON comments(item_id);
	CREATE INDEX IF NOT EXISTS idx_comments_parent_id ON comments(parent_id);
`

const itemColumns = `
	i.id, i.kind, i.author_id, i.author_name, i.body, i.created_at, i.updated_at,
	(SELECT COUNT(*) FROM likes l WHERE l.item_id = i.id),
	(SELECT COUNT(*) FROM comments c WHERE c.item_id = i.id)`

const commentColumns = `
	c.id, c.item_id, c.parent_id, c.author_id, c.author_name, c.content, c.created_at, c.updated_at,
	EXISTS (SELECT 1 FROM comments r WHERE r.parent_id = c.id)`

type PostgresStorage struct {
	pool *pgxpool.Pool
}

func New(dsn string) (*PostgresStorage, error) {
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return &PostgresStorage{pool: pool}, nil
}

func (s *PostgresStorage) CreateItem(ctx context.Context, item *models.FeedItem) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO items (id, kind, author_id, author_name, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		item.ID, item.Kind, item.Author.ID, item.Author.Name, item.Body, item.CreatedAt, item.UpdatedAt)
	return err
}

func (s *PostgresStorage) GetItem(ctx context.Context, id string) (*models.FeedItem, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM items i WHERE i.id = $1`, id)
	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *PostgresStorage) ListItems(ctx context.Context, kind string, page, limit int) (*models.ItemPage, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM items WHERE kind = $1`, kind).Scan(&total); err != nil {
		return nil, err
	}

	start, _ := storage.Window(total, page, limit)
	rows, err := s.pool.Query(ctx, `
		SELECT `+itemColumns+`
		FROM items i
		WHERE i.kind = $1
		ORDER BY i.seq DESC
		LIMIT $2 OFFSET $3`, kind, limit, start)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.FeedItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &models.ItemPage{Items: items, Pagination: storage.Paginate(total, page, limit)}, nil
}

func (s *PostgresStorage) UpdateItem(ctx context.Context, id, body string, at time.Time) (*models.FeedItem, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE items SET body = $2, updated_at = $3 WHERE id = $1`, id, body, at)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("item %s: %w", id, models.ErrNotFound)
	}
	return s.GetItem(ctx, id)
}

func (s *PostgresStorage) DeleteItem(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func (s *PostgresStorage) ToggleLike(ctx context.Context, itemID, userID string) (*models.LikeState, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var locked string
	err = tx.QueryRow(ctx, `SELECT id FROM items WHERE id = $1 FOR UPDATE`, itemID).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", itemID, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx, `DELETE FROM likes WHERE item_id = $1 AND user_id = $2`, itemID, userID)
	if err != nil {
		return nil, err
	}
	liked := tag.RowsAffected() == 0
	if liked {
		if _, err := tx.Exec(ctx, `INSERT INTO likes (item_id, user_id) VALUES ($1, $2)`, itemID, userID); err != nil {
			return nil, err
		}
	}

	state := &models.LikeState{IsLiked: liked}
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM likes WHERE item_id = $1`, itemID).Scan(&state.LikesCount); err != nil {
		return nil, err
	}
	return state, tx.Commit(ctx)
}

func (s *PostgresStorage) LikedBy(ctx context.Context, userID string, itemIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(itemIDs))
	for _, id := range itemIDs {
		out[id] = false
	}
	rows, err := s.pool.Query(ctx, `SELECT item_id FROM likes WHERE user_id = $1 AND item_id = ANY($2)`, userID, itemIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

func (s *PostgresStorage) CreateComment(ctx context.Context, comment *models.CommentNode) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO comments (id, item_id, parent_id, author_id, author_name, content, created_at, updated_at)
		SELECT $1::TEXT, $2::TEXT, $3::TEXT, $4::TEXT, $5::TEXT, $6::TEXT, $7::TIMESTAMPTZ, $8::TIMESTAMPTZ
		WHERE EXISTS (SELECT 1 FROM items WHERE id = $2)
		AND ($3::TEXT IS NULL OR EXISTS (SELECT 1 FROM comments WHERE id = $3 AND item_id = $2))`,
		comment.ID, comment.ItemID, comment.ParentID, comment.Author.ID, comment.Author.Name,
		comment.Body, comment.CreatedAt, comment.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item %s or parent comment: %w", comment.ItemID, models.ErrNotFound)
	}
	return nil
}

func (s *PostgresStorage) GetComment(ctx context.Context, id string) (*models.CommentNode, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+commentColumns+` FROM comments c WHERE c.id = $1`, id)
	c, err := scanComment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("comment %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStorage) UpdateComment(ctx context.Context, id, content string, at time.Time) (*models.CommentNode, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE comments SET content = $2, updated_at = $3 WHERE id = $1`, id, content, at)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("comment %s: %w", id, models.ErrNotFound)
	}
	return s.GetComment(ctx, id)
}

func (s *PostgresStorage) DeleteComment(ctx context.Context, id string) (int, error) {
	var removed int
	err := s.pool.QueryRow(ctx, `
		WITH doomed AS (
			DELETE FROM comments WHERE id = $1 OR parent_id = $1 RETURNING id
		)
		SELECT COUNT(*) FROM doomed`, id).Scan(&removed)
	if err != nil {
		return 0, err
	}
	if removed == 0 {
		return 0, fmt.Errorf("comment %s: %w", id, models.ErrNotFound)
	}
	return removed, nil
}

func (s *PostgresStorage) GetComments(ctx context.Context, itemID string, page, limit int) (*models.CommentPage, error) {
	var exists bool
	var total, withReplies int
	err := s.pool.QueryRow(ctx, `
		SELECT
			EXISTS (SELECT 1 FROM items WHERE id = $1),
			COUNT(*) FILTER (WHERE parent_id IS NULL),
			COUNT(*)
		FROM comments
		WHERE item_id = $1`, itemID).Scan(&exists, &total, &withReplies)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("item %s: %w", itemID, models.ErrNotFound)
	}

	start, _ := storage.Window(total, page, limit)
	rows, err := s.pool.Query(ctx, `
		SELECT `+commentColumns+`
		FROM comments c
		WHERE c.item_id = $1 AND c.parent_id IS NULL
		ORDER BY c.seq DESC
		LIMIT $2 OFFSET $3`, itemID, limit, start)
	if err != nil {
		return nil, err
	}
	comments, err := collectComments(rows)
	if err != nil {
		return nil, err
	}

	pagination := storage.Paginate(total, page, limit)
	pagination.TotalWithReplies = &withReplies
	return &models.CommentPage{Comments: comments, Pagination: pagination}, nil
}

func (s *PostgresStorage) GetReplies(ctx context.Context, parentIDs []string) (map[string][]models.CommentNode, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+commentColumns+`
		FROM comments c
		WHERE c.parent_id = ANY($1)
		ORDER BY c.seq ASC`, parentIDs)
	if err != nil {
		return nil, err
	}
	replies, err := collectComments(rows)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]models.CommentNode, len(parentIDs))
	for _, r := range replies {
		out[*r.ParentID] = append(out[*r.ParentID], r)
	}
	return out, nil
}

func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}

func scanItem(row pgx.Row) (models.FeedItem, error) {
	var it models.FeedItem
	err := row.Scan(&it.ID, &it.Kind, &it.Author.ID, &it.Author.Name, &it.Body,
		&it.CreatedAt, &it.UpdatedAt, &it.LikesCount, &it.CommentsCount)
	return it, err
}

func scanComment(row pgx.Row) (models.CommentNode, error) {
	var c models.CommentNode
	err := row.Scan(&c.ID, &c.ItemID, &c.ParentID, &c.Author.ID, &c.Author.Name, &c.Body,
		&c.CreatedAt, &c.UpdatedAt, &c.HasReplies)
	return c, err
}

func collectComments(rows pgx.Rows) ([]models.CommentNode, error) {
	defer rows.Close()
	comments := []models.CommentNode{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}
