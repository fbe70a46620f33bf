// Package api - HTTP API комментариев, с которым синхронизируется клиентское
// дерево. Идентификатор пользователя приходит в заголовке X-User-ID.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/UkralStul/threaded-comments/internal/dataloader"
	"github.com/UkralStul/threaded-comments/internal/storage"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
	// DefaultMaxDepth - максимальная глубина ответа, которую принимает сервер.
	DefaultMaxDepth = 3
)

// Options настраивают сервер.
type Options struct {
	MaxDepth int
	Logger   *zap.Logger
	// Registry - реестр метрик; nil означает отдельный реестр сервера.
	Registry *prometheus.Registry
	// KeepAlive - интервал ping для websocket-подписок.
	KeepAlive time.Duration
}

// Server обслуживает API комментариев поверх хранилища.
type Server struct {
	store     storage.Storage
	observer  *CommentObserver
	log       *zap.Logger
	metrics   *Metrics
	registry  *prometheus.Registry
	maxDepth  int
	keepAlive time.Duration
	upgrader  websocket.Upgrader
}

func NewServer(store storage.Storage, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = 10 * time.Second
	}
	return &Server{
		store:     store,
		observer:  NewCommentObserver(opts.Logger),
		log:       opts.Logger,
		metrics:   NewMetrics(opts.Registry),
		registry:  opts.Registry,
		maxDepth:  opts.MaxDepth,
		keepAlive: opts.KeepAlive,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Observer возвращает рассылку событий сервера.
func (s *Server) Observer() *CommentObserver { return s.observer }

// Handler возвращает корневой обработчик со всеми маршрутами.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(s.metrics.Middleware)

	router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	router.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return dataloader.Middleware(s.store, next)
		})

		r.Method(http.MethodGet, "/posts", Wrap(s.listPosts))
		r.Method(http.MethodPost, "/posts", Wrap(s.createPost))
		r.Method(http.MethodGet, "/posts/{postID}", Wrap(s.getPost))
		r.Method(http.MethodPatch, "/posts/{postID}", Wrap(s.togglePostComments))
		r.Method(http.MethodGet, "/users/{userID}", Wrap(s.getUser))
		r.Method(http.MethodPut, "/users/{userID}", Wrap(s.saveUser))

		r.Method(http.MethodGet, "/posts/{postID}/comments", Wrap(s.listComments))
		r.Method(http.MethodPost, "/posts/{postID}/comments", Wrap(s.createComment))
		r.Method(http.MethodGet, "/comments/{commentID}", Wrap(s.getComment))
		r.Method(http.MethodPatch, "/comments/{commentID}", Wrap(s.updateComment))
		r.Method(http.MethodDelete, "/comments/{commentID}", Wrap(s.deleteComment))
		r.Method(http.MethodPost, "/comments/{commentID}/like", Wrap(s.likeComment))
		r.Method(http.MethodDelete, "/comments/{commentID}/like", Wrap(s.unlikeComment))

		r.Method(http.MethodGet, "/posts/{postID}/events", Wrap(s.streamEvents))
	})

	return otelhttp.NewHandler(router, "comments-api")
}
