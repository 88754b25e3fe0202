package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ButyrinIA/community/internal/community"
	"github.com/ButyrinIA/community/internal/models"
	"github.com/golang/glog"
)

// ErrNetwork marks requests that never got an HTTP response.
var ErrNetwork = errors.New("network error")

// ServerError is a response the client has no sentinel for.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server error: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("server error: %d %s", e.Status, e.Message)
}

func (e *ServerError) Unwrap() error {
	return models.ErrServer
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token asks the server to issue a token for user.
func (c *Client) Token(ctx context.Context, user models.Author) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	body := map[string]string{"userId": user.ID, "name": user.Name}
	if err := c.do(ctx, http.MethodPost, "/token", nil, body, &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}

// Kind returns the backend of one item kind.
func (c *Client) Kind(name string) community.Backend {
	return &kindClient{client: c, kind: name}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	glog.V(2).Infof("[client] %s %s", method, u)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ServerError{Status: resp.StatusCode, Message: "malformed response: " + err.Error()}
	}
	return nil
}

func statusError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(data, &body) != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(data))
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", models.ErrValidation, body.Error)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", models.ErrForbidden, body.Error)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", models.ErrNotFound, body.Error)
	}
	return &ServerError{Status: resp.StatusCode, Message: body.Error}
}

type kindClient struct {
	client *Client
	kind   string
}

var _ community.Backend = (*kindClient)(nil)

func (k *kindClient) path(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return "/api/" + k.kind + "/" + strings.Join(escaped, "/")
}

func pageQuery(page, limit int) url.Values {
	return url.Values{
		"page":  {strconv.Itoa(page)},
		"limit": {strconv.Itoa(limit)},
	}
}

func (k *kindClient) ListItems(ctx context.Context, page, limit int) (*models.ItemPage, error) {
	var out models.ItemPage
	if err := k.client.do(ctx, http.MethodGet, "/api/"+k.kind, pageQuery(page, limit), nil, &out); err != nil {
		return nil, fmt.Errorf("list %s: %w", k.kind, err)
	}
	return &out, nil
}

func (k *kindClient) CreateItem(ctx context.Context, input models.ItemInput) (*models.FeedItem, error) {
	var out models.FeedItem
	if err := k.client.do(ctx, http.MethodPost, "/api/"+k.kind, nil, input, &out); err != nil {
		return nil, fmt.Errorf("create %s item: %w", k.kind, err)
	}
	return &out, nil
}

func (k *kindClient) UpdateItem(ctx context.Context, id string, input models.ItemInput) (*models.FeedItem, error) {
	var out models.FeedItem
	if err := k.client.do(ctx, http.MethodPatch, k.path(id), nil, input, &out); err != nil {
		return nil, fmt.Errorf("update item %s: %w", id, err)
	}
	return &out, nil
}

func (k *kindClient) DeleteItem(ctx context.Context, id string) error {
	if err := k.client.do(ctx, http.MethodDelete, k.path(id), nil, nil, nil); err != nil {
		return fmt.Errorf("delete item %s: %w", id, err)
	}
	return nil
}

func (k *kindClient) FetchComments(ctx context.Context, itemID string, page, limit int, includeReplies bool) (*models.CommentPage, error) {
	q := pageQuery(page, limit)
	if includeReplies {
		q.Set("includeReplies", "true")
	}
	var out models.CommentPage
	if err := k.client.do(ctx, http.MethodGet, k.path(itemID, "comments"), q, nil, &out); err != nil {
		return nil, fmt.Errorf("fetch comments of %s: %w", itemID, err)
	}
	return &out, nil
}

func (k *kindClient) CreateComment(ctx context.Context, itemID string, input models.CommentInput) (*models.CommentNode, error) {
	var out models.CommentNode
	if err := k.client.do(ctx, http.MethodPost, k.path(itemID, "comments"), nil, input, &out); err != nil {
		return nil, fmt.Errorf("comment on %s: %w", itemID, err)
	}
	return &out, nil
}

func (k *kindClient) UpdateComment(ctx context.Context, commentID, content string) (*models.CommentNode, error) {
	var out models.CommentNode
	if err := k.client.do(ctx, http.MethodPatch, k.path("comments", commentID), nil, models.CommentUpdate{Content: content}, &out); err != nil {
		return nil, fmt.Errorf("update comment %s: %w", commentID, err)
	}
	return &out, nil
}

func (k *kindClient) DeleteComment(ctx context.Context, commentID string) error {
	if err := k.client.do(ctx, http.MethodDelete, k.path("comments", commentID), nil, nil, nil); err != nil {
		return fmt.Errorf("delete comment %s: %w", commentID, err)
	}
	return nil
}

func (k *kindClient) ToggleLike(ctx context.Context, itemID string) (*models.LikeState, error) {
	var out models.LikeState
	if err := k.client.do(ctx, http.MethodPost, k.path(itemID, "like"), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("toggle like on %s: %w", itemID, err)
	}
	return &out, nil
}
