// Package thread держит на клиенте дерево комментариев одного поста и
// синхронизирует его с удаленным сервисом: оптимистичные мутации с откатом,
// ленивую подгрузку ответов и слияние локальных ответов с серверными.
//
// Все методы Thread безопасны для вызова из разных горутин. Блокировка не
// удерживается во время сетевых запросов, поэтому пользовательские действия
// могут накапливаться, пока запрос в полете; порядок внутри одного узла
// обеспечивают флаги занятости.
package thread

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/UkralStul/threaded-comments/internal/domain"
)

// Значения по умолчанию для Options.
const (
	DefaultPageSize          = 10
	DefaultRequestTimeout    = 10 * time.Second
	DefaultMaxReplyDepth     = 3
	DefaultAlwaysExpandDepth = 2
	DefaultReplyCachePosts   = 64
)

const tempIDPrefix = "tmp-"

// ErrNoViewer - действие требует известного текущего пользователя.
var ErrNoViewer = errors.New("thread: action requires a signed-in viewer")

// Options настраивают представление.
type Options struct {
	PostID string
	// Viewer - текущий пользователь; nil для анонимного просмотра.
	Viewer   *domain.UserSummary
	PageSize int
	// RequestTimeout ограничивает каждый запрос к сервису, чтобы флаги
	// занятости и состояние загрузки всегда снимались.
	RequestTimeout time.Duration
	// MaxReplyDepth - ответить можно только на комментарий с глубиной меньше этого значения.
	MaxReplyDepth int
	// AlwaysExpandDepth - узлы глубже этого значения всегда раскрыты и не сворачиваются.
	AlwaysExpandDepth int
	// EagerReplies подгружает ответы каждого корневого комментария вместе со страницей.
	EagerReplies bool
	Search       string
	Status       string
	Cache        *ReplyCache
	Logger       *zap.Logger
	Metrics      *Metrics
	Now          func() time.Time
}

// Thread - представление комментариев одного поста.
type Thread struct {
	mu      sync.Mutex
	svc     Service
	opts    Options
	norm    *Normalizer
	cache   *ReplyCache
	log     *zap.Logger
	metrics *Metrics
	now     func() time.Time

	nodes map[string]*node
	closed bool

	// корневой список текущей страницы
	roots         []*domain.Comment
	localRoots    []string
	page          int
	totalPages    int
	totalComments int
	order         SortOrder
	focusID       string
	degraded      bool
}

// New создает представление поста opts.PostID.
func New(svc Service, opts Options) (*Thread, error) {
	if opts.PostID == "" {
		return nil, errors.New("thread: post id is required")
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.MaxReplyDepth <= 0 {
		opts.MaxReplyDepth = DefaultMaxReplyDepth
	}
	if opts.AlwaysExpandDepth <= 0 {
		opts.AlwaysExpandDepth = DefaultAlwaysExpandDepth
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	cache := opts.Cache
	if cache == nil {
		var err error
		if cache, err = NewReplyCache(DefaultReplyCachePosts); err != nil {
			return nil, err
		}
	}

	log := opts.Logger.With(zap.String("post_id", opts.PostID))
	return &Thread{
		svc:     svc,
		opts:    opts,
		norm:    NewNormalizer(opts.Viewer, log),
		cache:   cache,
		log:     log,
		metrics: opts.Metrics,
		now:     opts.Now,
		nodes:   make(map[string]*node),
		page:    1,
	}, nil
}

// Close отключает представление: ответы, пришедшие позже, состояние не меняют.
func (t *Thread) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
}

// Policy возвращает правила вложенности, по которым строятся строки.
func (t *Thread) Policy() Policy {
	p := Policy{MaxReplyDepth: t.opts.MaxReplyDepth, AlwaysExpandDepth: t.opts.AlwaysExpandDepth}
	if t.opts.Viewer != nil {
		p.ViewerID = t.opts.Viewer.ID
	}
	return p
}

// Comment возвращает копию комментария из дерева.
func (t *Thread) Comment(id string) (domain.Comment, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[id]
	if !ok {
		return domain.Comment{}, false
	}
	return copyComment(n.comment), true
}

// requestContext ограничивает запрос таймаутом представления.
func (t *Thread) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, t.opts.RequestTimeout)
}

// guarded выполняет fn под блокировкой, если представление еще живо.
func (t *Thread) guarded(fn func()) func() {
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.closed {
			return
		}
		fn()
	}
}

func (t *Thread) lookup(id string) (*node, error) {
	if t.closed {
		return nil, ErrClosed
	}
	n, ok := t.nodes[id]
	if !ok {
		return nil, ErrUnknownComment
	}
	return n, nil
}

func (t *Thread) isOwn(c *domain.Comment) bool {
	return t.opts.Viewer != nil && c.Author.ID() == t.opts.Viewer.ID
}

func (t *Thread) canReply(c *domain.Comment) bool {
	return t.opts.Viewer != nil && c.Depth < t.opts.MaxReplyDepth && !isTemp(c.ID)
}

func (t *Thread) collapsible(depth int) bool {
	return depth <= t.opts.AlwaysExpandDepth
}

func (t *Thread) viewerAuthor() domain.Author {
	return domain.ResolvedAuthor(*t.opts.Viewer)
}

func isTemp(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}

func validContent(content string) error {
	switch {
	case strings.TrimSpace(content) == "":
		return domain.ErrEmptyContent
	case len(content) > domain.MaxContentLength:
		return domain.ErrContentTooLong
	}
	return nil
}

func copyComment(c *domain.Comment) domain.Comment {
	cp := *c
	cp.Replies = nil
	if c.LikedBy != nil {
		cp.LikedBy = append([]string(nil), c.LikedBy...)
	}
	return cp
}
