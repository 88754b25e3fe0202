package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ButyrinIA/community/internal/client"
	"github.com/ButyrinIA/community/internal/community"
	"github.com/ButyrinIA/community/internal/config"
	"github.com/ButyrinIA/community/internal/models"
	"github.com/docopt/docopt-go"
	"github.com/golang-jwt/jwt/v5"
	"github.com/golang/glog"
)

const FeedCtlVersion = "0.1.0"

const usage = `Community feed control.

The api url and token default to the client section of the config file,
then to COMMUNITY_API_URL and COMMUNITY_TOKEN.

Usage:
    feedctl token --user=<user_id> --name=<name> [options]
    feedctl list <kind> [--pages=<n>] [options]
    feedctl post <kind> <body> [options]
    feedctl comments <kind> <item_id> [--all] [options]
    feedctl comment <kind> <item_id> <content> [options]
    feedctl reply <kind> <item_id> <comment_id> <content> [options]
    feedctl edit-comment <kind> <item_id> <comment_id> <content> [options]
    feedctl delete-comment <kind> <item_id> <comment_id> [options]
    feedctl like <kind> <item_id> [options]

Options:
    -h --help              Show this screen.
    --version              Show version.
    --config=<path>        Config file [default: config.yaml].
    --api_url=<api_url>    Server base url.
    --token=<jwt>          Your JWT.
    --user=<user_id>       User id to issue a token for.
    --name=<name>          Display name to issue a token for.
    --pages=<n>            Pages to load [default: 1].
    --all                  Load every page of the thread.
    --json                 Print JSON instead of text.`

type command func(ctx context.Context, c *community.Community, opts docopt.Opts) error

func main() {
	flag.Set("logtostderr", "true")
	flag.CommandLine.Parse(nil)
	defer glog.Flush()

	opts, err := docopt.ParseArgs(usage, os.Args[1:], FeedCtlVersion)
	if err != nil {
		fail(err)
	}

	path, _ := opts.String("--config")
	cfg, err := config.Load(path)
	if err != nil {
		fail(err)
	}
	if v, _ := opts.String("--api_url"); v != "" {
		cfg.Client.BaseURL = v
	}
	if v, _ := opts.String("--token"); v != "" {
		cfg.Client.Token = v
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.Client.Timeout)
	defer cancel()

	if isToken, _ := opts.Bool("token"); isToken {
		if err := issueToken(ctx, cfg, opts); err != nil {
			fail(err)
		}
		return
	}

	commands := map[string]command{
		"list":           list,
		"post":           post,
		"comments":       comments,
		"comment":        comment,
		"reply":          reply,
		"edit-comment":   editComment,
		"delete-comment": deleteComment,
		"like":           like,
	}
	for name, run := range commands {
		if on, _ := opts.Bool(name); !on {
			continue
		}
		c, err := session(cfg)
		if err != nil {
			fail(err)
		}
		if err := run(ctx, c, opts); err != nil {
			fail(err)
		}
		return
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "feedctl: %v\n", err)
	glog.Flush()
	os.Exit(1)
}

func issueToken(ctx context.Context, cfg *config.Config, opts docopt.Opts) error {
	userID, _ := opts.String("--user")
	name, _ := opts.String("--name")
	token, err := client.New(cfg.Client.BaseURL, "", client.WithTimeout(cfg.Client.Timeout)).
		Token(ctx, models.Author{ID: userID, Name: name})
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

// session builds the facade for the user named in the token. The token is
// only decoded here; the server verifies it.
func session(cfg *config.Config) (*community.Community, error) {
	if cfg.Client.Token == "" {
		return nil, errors.New("no token, run feedctl token first")
	}
	var claims struct {
		UserID string `json:"user_id"`
		Name   string `json:"name"`
		jwt.RegisteredClaims
	}
	if _, _, err := jwt.NewParser().ParseUnverified(cfg.Client.Token, &claims); err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	user := models.Author{ID: claims.UserID, Name: claims.Name}
	backends := client.New(cfg.Client.BaseURL, cfg.Client.Token, client.WithTimeout(cfg.Client.Timeout))
	return community.New(backends, user, community.Options{
		FeedPageSize:    cfg.Feed.PageSize,
		CommentPageSize: cfg.Feed.CommentPageSize,
	}), nil
}

func surface(c *community.Community, opts docopt.Opts) (community.Surface, error) {
	name, _ := opts.String("<kind>")
	s, ok := c.ByKind(name)
	if !ok {
		return nil, fmt.Errorf("unknown kind %q, want one of %s", name, strings.Join(models.Kinds, ", "))
	}
	return s, nil
}

// locate pages through the feed until itemID is loaded.
func locate(ctx context.Context, s community.Surface, itemID string) error {
	if err := s.Fetch(ctx); err != nil {
		return err
	}
	for {
		if _, ok := s.Item(itemID); ok {
			return nil
		}
		if !s.Snapshot().HasMore {
			return fmt.Errorf("%s item %s: %w", s.Kind(), itemID, models.ErrNotFound)
		}
		if err := s.FetchMore(ctx); err != nil {
			return err
		}
	}
}

// openThread loads the thread of itemID, continuing until commentID (when
// given) is present or the thread is exhausted.
func openThread(ctx context.Context, s community.Surface, itemID, commentID string, all bool) (models.FeedItem, error) {
	if err := locate(ctx, s, itemID); err != nil {
		return models.FeedItem{}, err
	}
	if err := s.OpenThread(ctx, itemID); err != nil {
		return models.FeedItem{}, err
	}
	for {
		it, _ := s.Item(itemID)
		if !it.CommentsHasMore || (!all && (commentID == "" || hasComment(it.Comments, commentID))) {
			return it, nil
		}
		if err := s.LoadMore(ctx, itemID); err != nil {
			return models.FeedItem{}, err
		}
	}
}

func hasComment(nodes []models.CommentNode, id string) bool {
	for _, n := range nodes {
		if n.ID == id || hasComment(n.Children, id) {
			return true
		}
	}
	return false
}

func list(ctx context.Context, c *community.Community, opts docopt.Opts) error {
	s, err := surface(c, opts)
	if err != nil {
		return err
	}
	pages, err := opts.Int("--pages")
	if err != nil {
		return fmt.Errorf("--pages: %w", err)
	}
	if err := s.Fetch(ctx); err != nil {
		return err
	}
	for i := 1; i < pages && s.Snapshot().HasMore; i++ {
		if err := s.FetchMore(ctx); err != nil {
			return err
		}
	}
	state := s.Snapshot()
	if asJSON(opts) {
		return printJSON(state.Items)
	}
	for _, it := range state.Items {
		printItem(it)
	}
	fmt.Printf("-- %d of %d\n", len(state.Items), state.Total)
	return nil
}

func post(ctx context.Context, c *community.Community, opts docopt.Opts) error {
	s, err := surface(c, opts)
	if err != nil {
		return err
	}
	body, _ := opts.String("<body>")
	it, err := s.Create(ctx, body)
	if err != nil {
		return err
	}
	if asJSON(opts) {
		return printJSON(it)
	}
	printItem(*it)
	return nil
}

func comments(ctx context.Context, c *community.Community, opts docopt.Opts) error {
	s, err := surface(c, opts)
	if err != nil {
		return err
	}
	itemID, _ := opts.String("<item_id>")
	all, _ := opts.Bool("--all")
	it, err := openThread(ctx, s, itemID, "", all)
	if err != nil {
		return err
	}
	if asJSON(opts) {
		return printJSON(it.Comments)
	}
	printItem(it)
	printTree(it.Comments, 1)
	if it.CommentsHasMore {
		fmt.Println("-- more comments, use --all")
	}
	return nil
}

func comment(ctx context.Context, c *community.Community, opts docopt.Opts) error {
	s, err := surface(c, opts)
	if err != nil {
		return err
	}
	itemID, _ := opts.String("<item_id>")
	content, _ := opts.String("<content>")
	if err := locate(ctx, s, itemID); err != nil {
		return err
	}
	node, err := s.CreateComment(ctx, itemID, content, nil)
	if err != nil {
		return err
	}
	return printNode(opts, *node)
}

func reply(ctx context.Context, c *community.Community, opts docopt.Opts) error {
	s, err := surface(c, opts)
	if err != nil {
		return err
	}
	itemID, _ := opts.String("<item_id>")
	parentID, _ := opts.String("<comment_id>")
	content, _ := opts.String("<content>")
	if _, err := openThread(ctx, s, itemID, parentID, false); err != nil {
		return err
	}
	node, err := s.CreateComment(ctx, itemID, content, &parentID)
	if err != nil {
		return err
	}
	return printNode(opts, *node)
}

func editComment(ctx context.Context, c *community.Community, opts docopt.Opts) error {
	s, err := surface(c, opts)
	if err != nil {
		return err
	}
	itemID, _ := opts.String("<item_id>")
	commentID, _ := opts.String("<comment_id>")
	content, _ := opts.String("<content>")
	if _, err := openThread(ctx, s, itemID, commentID, false); err != nil {
		return err
	}
	node, err := s.EditComment(ctx, commentID, content)
	if err != nil {
		return err
	}
	return printNode(opts, *node)
}

func deleteComment(ctx context.Context, c *community.Community, opts docopt.Opts) error {
	s, err := surface(c, opts)
	if err != nil {
		return err
	}
	itemID, _ := opts.String("<item_id>")
	commentID, _ := opts.String("<comment_id>")
	if _, err := openThread(ctx, s, itemID, commentID, false); err != nil {
		return err
	}
	if err := s.DeleteComment(ctx, commentID); err != nil {
		return err
	}
	it, _ := s.Item(itemID)
	fmt.Printf("deleted %s, %d comments left\n", commentID, it.CommentsCount)
	return nil
}

func like(ctx context.Context, c *community.Community, opts docopt.Opts) error {
	s, err := surface(c, opts)
	if err != nil {
		return err
	}
	itemID, _ := opts.String("<item_id>")
	if err := locate(ctx, s, itemID); err != nil {
		return err
	}
	state, err := s.ToggleLike(ctx, itemID)
	if err != nil {
		return err
	}
	if asJSON(opts) {
		return printJSON(state)
	}
	fmt.Printf("liked=%t likes=%d\n", state.IsLiked, state.LikesCount)
	return nil
}

func asJSON(opts docopt.Opts) bool {
	on, _ := opts.Bool("--json")
	return on
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printItem(it models.FeedItem) {
	fmt.Printf("%s  %s  %s  likes=%d comments=%d\n    %s\n",
		it.ID, it.CreatedAt.Format(time.DateTime), it.Author.Name, it.LikesCount, it.CommentsCount, it.Body)
}

func printNode(opts docopt.Opts, n models.CommentNode) error {
	if asJSON(opts) {
		return printJSON(n)
	}
	printTree([]models.CommentNode{n}, 0)
	return nil
}

func printTree(nodes []models.CommentNode, depth int) {
	indent := strings.Repeat("    ", depth)
	for _, n := range nodes {
		fmt.Printf("%s%s  %s: %s\n", indent, n.ID, n.Author.Name, n.Body)
		printTree(n.Children, depth+1)
	}
}
