package thread

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/thoas/go-funk"
	"go.uber.org/zap"

	"github.com/UkralStul/threaded-comments/internal/domain"
)

// SortOrder - порядок корневого списка.
type SortOrder int

const (
	// SortLatest - новые первыми.
	SortLatest SortOrder = iota
	// SortMostLiked - больше лайков первыми.
	SortMostLiked
)

func (o SortOrder) String() string {
	if o == SortMostLiked {
		return "likes"
	}
	return "latest"
}

// ParseSortOrder разбирает "latest" или "likes".
func ParseSortOrder(s string) (SortOrder, error) {
	switch s {
	case "", "latest":
		return SortLatest, nil
	case "likes", "most-liked":
		return SortMostLiked, nil
	}
	return SortLatest, fmt.Errorf("unknown sort order %q", s)
}

// PageInfo - метаданные текущей страницы.
type PageInfo struct {
	Page          int
	TotalPages    int
	TotalComments int
	// Degraded - страница не загрузилась и показывается пустой.
	Degraded bool
}

// Load загружает страницу page корневых комментариев. Ошибка загрузки не
// превращается в ошибку представления: список становится пустым ("пока нет
// комментариев"), причина пишется в лог.
func (t *Thread) Load(ctx context.Context, page int) error {
	if page < 1 {
		page = 1
	}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	q := domain.ListQuery{
		PostID:   t.opts.PostID,
		Page:     page,
		PageSize: t.opts.PageSize,
		Search:   t.opts.Search,
		Status:   t.opts.Status,
	}
	focusID := t.focusID
	t.mu.Unlock()

	rctx, cancel := t.requestContext(ctx)
	res, err := t.svc.ListRootComments(rctx, q)
	cancel()

	var focused *domain.Comment
	if err == nil && res != nil && focusID != "" && !containsID(res.Comments, focusID) {
		focused = t.fetchFocus(ctx, focusID)
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.page = page
	t.localRoots = nil
	if err != nil || res == nil {
		t.log.Warn("load comments page failed, showing empty list", zap.Int("page", page), zap.Error(err))
		t.roots = nil
		t.degraded = true
		t.mu.Unlock()
		return nil
	}

	roots := make([]*domain.Comment, 0, len(res.Comments)+1)
	if focused != nil {
		roots = append(roots, focused)
	}
	roots = append(roots, res.Comments...)

	t.roots = t.roots[:0]
	var eager []string
	skipped := 0
	for _, c := range roots {
		if c == nil || c.ID == "" || c.IsReply() {
			skipped++
			continue
		}
		if containsID(t.roots, c.ID) {
			continue
		}
		n := t.register(t.norm.Normalize(c))
		t.roots = append(t.roots, n.comment)
		if t.opts.EagerReplies && n.count > 0 && len(n.comment.Replies) == 0 {
			eager = append(eager, c.ID)
		}
	}
	if skipped > 0 {
		t.log.Debug("dropped non-root records from root list", zap.Int("count", skipped))
	}
	t.totalComments = res.TotalComments
	t.totalPages = res.TotalPages
	t.degraded = false
	t.mu.Unlock()

	for _, id := range eager {
		if err := t.prefetch(ctx, id); errors.Is(err, ErrClosed) {
			return err
		}
	}
	return nil
}

// fetchFocus загружает комментарий-цель, которого нет на странице, если это корень.
func (t *Thread) fetchFocus(ctx context.Context, id string) *domain.Comment {
	rctx, cancel := t.requestContext(ctx)
	defer cancel()

	res, err := t.svc.GetCommentWithReplies(rctx, id)
	if err != nil || res == nil || res.Comment == nil {
		t.log.Debug("focus comment not loaded", zap.String("comment_id", id), zap.Error(err))
		return nil
	}
	c := res.Comment
	if c.IsReply() || c.PostID != t.opts.PostID {
		return nil
	}
	if len(c.Replies) == 0 && len(res.Replies.Comments) > 0 {
		c.Replies = res.Replies.Comments
		if c.ReplyCount < res.Replies.TotalReplies {
			c.ReplyCount = res.Replies.TotalReplies
		}
	}
	return c
}

// NextPage переходит на следующую страницу, если она есть.
func (t *Thread) NextPage(ctx context.Context) error {
	t.mu.Lock()
	page, total := t.page, t.totalPages
	t.mu.Unlock()
	if page >= total {
		return nil
	}
	return t.Load(ctx, page+1)
}

// PrevPage переходит на предыдущую страницу.
func (t *Thread) PrevPage(ctx context.Context) error {
	t.mu.Lock()
	page := t.page
	t.mu.Unlock()
	if page <= 1 {
		return nil
	}
	return t.Load(ctx, page-1)
}

// PageInfo возвращает метаданные текущей страницы.
func (t *Thread) PageInfo() PageInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return PageInfo{
		Page:          t.page,
		TotalPages:    t.totalPages,
		TotalComments: t.totalComments,
		Degraded:      t.degraded,
	}
}

// SetSort меняет порядок корневого списка.
func (t *Thread) SetSort(o SortOrder) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.order = o
}

// SetFocus закрепляет комментарий первым в списке независимо от сортировки.
// Пустой id снимает закрепление.
func (t *Thread) SetFocus(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.focusID = id
}

// Roots возвращает копии корневых комментариев в порядке отображения.
func (t *Thread) Roots() []domain.Comment {
	t.mu.Lock()
	defer t.mu.Unlock()

	ordered := t.orderedRoots()
	out := make([]domain.Comment, len(ordered))
	for i, c := range ordered {
		out[i] = copyComment(c)
	}
	return out
}

// orderedRoots: закрепленный комментарий, затем созданные в этом
// представлении (новые первыми), затем остальные в выбранном порядке.
func (t *Thread) orderedRoots() []*domain.Comment {
	rest := make([]*domain.Comment, 0, len(t.roots))
	var local []*domain.Comment
	var pinned *domain.Comment
	for _, c := range t.roots {
		switch {
		case c.ID == t.focusID && t.focusID != "":
			pinned = c
		case funk.ContainsString(t.localRoots, c.ID):
			local = append(local, c)
		default:
			rest = append(rest, c)
		}
	}

	SortRoots(rest, t.order)
	SortNewestFirst(local)

	out := make([]*domain.Comment, 0, len(t.roots))
	if pinned != nil {
		out = append(out, pinned)
	}
	out = append(out, local...)
	return append(out, rest...)
}

// SortRoots сортирует список по order. Равные элементы сохраняют порядок поступления.
func SortRoots(comments []*domain.Comment, order SortOrder) {
	switch order {
	case SortMostLiked:
		sort.SliceStable(comments, func(i, j int) bool {
			return likeScore(comments[i]) > likeScore(comments[j])
		})
	default:
		SortNewestFirst(comments)
	}
}

// likeScore предпочитает счетчик likesCount длине массива likedBy.
func likeScore(c *domain.Comment) int {
	if c.LikesCount > 0 || len(c.LikedBy) == 0 {
		return c.LikesCount
	}
	return len(c.LikedBy)
}

// AddComment создает корневой комментарий. Временный комментарий сразу встает
// первым в текущем списке. Если открыта не первая страница, после ответа
// сервера представление переходит на первую, и новый комментарий остается
// на ней первым. При ошибке страница не меняется.
func (t *Thread) AddComment(ctx context.Context, content string, font *domain.FontStyle) (*domain.Comment, error) {
	t.mu.Lock()
	err := validContent(content)
	switch {
	case t.closed:
		err = ErrClosed
	case t.opts.Viewer == nil:
		err = ErrNoViewer
	}
	page := t.page
	t.mu.Unlock()
	if err != nil {
		return nil, err
	}

	tempID := tempIDPrefix + uuid.NewString()
	t.mu.Lock()
	temp := &domain.Comment{
		ID:        tempID,
		PostID:    t.opts.PostID,
		Author:    t.viewerAuthor(),
		Content:   content,
		FontStyle: font,
		CreatedAt: t.now(),
	}
	t.mu.Unlock()

	var created *domain.Comment
	outcome, err := RunOptimistic(ctx, Optimistic[*domain.Comment]{
		Apply: t.guarded(func() {
			t.roots = append([]*domain.Comment{temp}, t.roots...)
			t.register(temp)
			t.localRoots = append(t.localRoots, tempID)
			t.totalComments++
		}),
		Request: func(ctx context.Context) (*domain.Comment, error) {
			rctx, cancel := t.requestContext(ctx)
			defer cancel()
			return t.svc.CreateComment(rctx, domain.CreateCommentInput{
				PostID:    t.opts.PostID,
				Content:   content,
				FontStyle: font,
			})
		},
		Reconcile: func(c *domain.Comment) bool {
			if c == nil || c.ID == "" {
				return false
			}
			t.mu.Lock()
			defer t.mu.Unlock()
			if t.closed {
				return false
			}
			if c.FontStyle == nil {
				c.FontStyle = font
			}
			created = t.replaceRoot(tempID, t.norm.Normalize(c))
			return true
		},
		Rollback: t.guarded(func() {
			if idx := indexOf(t.roots, tempID); idx >= 0 {
				t.roots = append(t.roots[:idx:idx], t.roots[idx+1:]...)
				t.totalComments--
			}
			delete(t.nodes, tempID)
			t.localRoots = removeID(t.localRoots, tempID)
		}),
	})

	t.metrics.mutation("comment", outcome)
	if err != nil {
		t.log.Warn("comment failed", zap.Error(err))
		return nil, err
	}

	if created == nil {
		created = temp
	}
	if page != 1 {
		if err := t.Load(ctx, 1); err != nil {
			return nil, err
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if page != 1 && !t.closed {
		t.pinCreated(created)
	}
	cp := copyComment(created)
	return &cp, nil
}

// pinCreated оставляет созданный комментарий первым после перехода на
// первую страницу, даже если сервер его еще не отдает.
func (t *Thread) pinCreated(c *domain.Comment) {
	if !containsID(t.roots, c.ID) {
		t.roots = append([]*domain.Comment{t.register(c).comment}, t.roots...)
		t.totalComments++
	}
	if !funk.ContainsString(t.localRoots, c.ID) {
		t.localRoots = append(t.localRoots, c.ID)
	}
}

// replaceRoot подменяет временный корневой комментарий подтвержденным.
func (t *Thread) replaceRoot(tempID string, c *domain.Comment) *domain.Comment {
	if old, ok := t.nodes[tempID]; ok {
		delete(t.nodes, tempID)
		if _, exists := t.nodes[c.ID]; !exists {
			old.comment = c
			t.nodes[c.ID] = old
		}
	}
	canon := t.register(c).comment

	out := make([]*domain.Comment, 0, len(t.roots))
	placed := false
	for _, r := range t.roots {
		if r.ID == tempID || r.ID == c.ID {
			if !placed {
				out = append(out, canon)
				placed = true
			} else {
				t.totalComments--
			}
			continue
		}
		out = append(out, r)
	}
	if !placed {
		out = append([]*domain.Comment{canon}, out...)
		t.totalComments++
	}
	t.roots = out

	t.localRoots = removeID(t.localRoots, tempID)
	if !funk.ContainsString(t.localRoots, c.ID) {
		t.localRoots = append(t.localRoots, c.ID)
	}
	return canon
}

func containsID(list []*domain.Comment, id string) bool {
	return indexOf(list, id) >= 0
}
