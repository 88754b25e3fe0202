package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ButyrinIA/community/internal/config"
	"github.com/ButyrinIA/community/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/golang/glog"
)

type Server struct {
	cfg      *config.Config
	storage  storage.Storage
	validate *validator.Validate
	hub      *hub
	router   chi.Router
	now      func() time.Time
}

func New(cfg *config.Config, storage storage.Storage) *Server {
	s := &Server{
		cfg:      cfg,
		storage:  storage,
		validate: validator.New(),
		hub:      newHub(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if s.cfg.Auth.IssueTokens {
		r.Post("/token", s.handleToken)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.With(s.kind).Get("/ws/{kind}/{itemID}", s.handleEvents)

		r.Route("/api/{kind}", func(r chi.Router) {
			r.Use(s.kind)
			r.Use(s.replyLoader)

			r.Get("/", s.handleListItems)
			r.Post("/", s.handleCreateItem)

			r.Patch("/comments/{commentID}", s.handleUpdateComment)
			r.Delete("/comments/{commentID}", s.handleDeleteComment)

			r.Route("/{itemID}", func(r chi.Router) {
				r.Patch("/", s.handleUpdateItem)
				r.Delete("/", s.handleDeleteItem)
				r.Post("/like", s.handleToggleLike)
				r.Get("/comments", s.handleListComments)
				r.Post("/comments", s.handleCreateComment)
			})
		})
	})

	s.router = r
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Server.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		glog.Infof("[server] listening on %s", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		s.hub.close()
		return err
	case <-ctx.Done():
	}

	glog.Infof("[server] shutting down")
	s.hub.close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
