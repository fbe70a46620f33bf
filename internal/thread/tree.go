package thread

import (
	"context"

	"go.uber.org/zap"

	"github.com/UkralStul/threaded-comments/internal/domain"
)

// NodeState - состояние раскрытия ответов узла.
type NodeState int

const (
	Collapsed NodeState = iota
	Loading
	Expanded
	// NoReplies - сервер и клиент не знают ни одного ответа; элемент неактивен.
	NoReplies
)

func (s NodeState) String() string {
	switch s {
	case Collapsed:
		return "collapsed"
	case Loading:
		return "loading"
	case Expanded:
		return "expanded"
	case NoReplies:
		return "no-replies"
	}
	return "unknown"
}

// node - эфемерное состояние отрисовки поверх записи комментария.
type node struct {
	comment  *domain.Comment
	state    NodeState
	fetched  bool
	fetching bool
	likeBusy bool
	// count - авторитетное количество ответов под узлом, может отличаться от len(Replies).
	count int
}

// register добавляет комментарий и его вложенные ответы в дерево и возвращает
// узел. Если комментарий уже известен, серверная версия переносится в прежнюю
// запись, чтобы запросы в полете продолжали менять тот же объект.
// Локальные ответы из кэша подмешиваются, чтобы перезагрузка не теряла
// только что созданные ответы.
func (t *Thread) register(c *domain.Comment) *node {
	if locals, ok := t.cache.Get(c.PostID, c.ID); ok && len(locals) > 0 {
		m := MergeReplies(locals, c.Replies, c.ReplyCount)
		c.Replies = m.Replies
		c.ReplyCount = m.Count
	}

	n, exists := t.nodes[c.ID]
	switch {
	case !exists:
		n = &node{comment: c, state: t.initialState(c)}
		t.nodes[c.ID] = n
	case n.comment != c:
		t.refresh(n, c)
	}

	if n.comment.ReplyCount < len(n.comment.Replies) {
		n.comment.ReplyCount = len(n.comment.Replies)
	}
	n.count = n.comment.ReplyCount

	for i, r := range n.comment.Replies {
		n.comment.Replies[i] = t.register(r).comment
	}
	return n
}

// refresh переносит серверную версию в существующую запись. Локальные ответы
// сохраняются, лайк в полете не перезаписывается.
func (t *Thread) refresh(n *node, fresh *domain.Comment) {
	old := n.comment
	m := MergeReplies(old.Replies, fresh.Replies, fresh.ReplyCount)
	liked, likes, likedBy := old.IsLiked, old.LikesCount, old.LikedBy

	*old = *fresh
	old.Replies = m.Replies
	old.ReplyCount = m.Count
	if n.likeBusy {
		old.IsLiked, old.LikesCount, old.LikedBy = liked, likes, likedBy
	}
}

// wantsReplies сообщает, что на сервере есть ответы, которых нет локально.
// Локальные ответы (свои или пришедшие событием) загрузку не отменяют:
// fetchReplies сольет их с серверными.
func (n *node) wantsReplies() bool {
	return !n.fetched && (len(n.comment.Replies) == 0 || n.count > len(n.comment.Replies))
}

func (t *Thread) initialState(c *domain.Comment) NodeState {
	if !t.collapsible(c.Depth) {
		return Expanded
	}
	return Collapsed
}

// restingState - куда возвращается узел, когда загрузка не дала новых данных.
func (t *Thread) restingState(n *node) NodeState {
	if !t.collapsible(n.comment.Depth) || len(n.comment.Replies) > 0 {
		return Expanded
	}
	return Collapsed
}

// Expand раскрывает ответы узла, при необходимости один раз загружая их с сервера.
// Ошибка загрузки не прерывает отображение: узел показывает то, что известно локально.
func (t *Thread) Expand(ctx context.Context, id string) error {
	t.mu.Lock()
	n, err := t.lookup(id)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	switch {
	case n.fetching:
		t.mu.Unlock()
		return ErrBusy
	case n.state == NoReplies:
		t.mu.Unlock()
		return nil
	case !n.wantsReplies():
		n.state = Expanded
		t.mu.Unlock()
		return nil
	}
	n.state = Loading
	n.fetching = true
	t.mu.Unlock()

	return t.fetchReplies(ctx, id, true)
}

// Collapse сворачивает раскрытый узел. Повторной загрузки не будет.
func (t *Thread) Collapse(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, err := t.lookup(id)
	if err != nil {
		return err
	}
	if n.state == Expanded && t.collapsible(n.comment.Depth) {
		n.state = Collapsed
	}
	return nil
}

// FetchPending загружает ответы узлов, которые раскрыты по глубине,
// но чьи ответы еще не получены.
func (t *Thread) FetchPending(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	var ids []string
	for id, n := range t.nodes {
		if n.state == Expanded && !n.fetching && n.count > 0 && n.wantsReplies() {
			ids = append(ids, id)
		}
	}
	t.mu.Unlock()

	for _, id := range ids {
		if err := t.Expand(ctx, id); err != nil && err != ErrBusy && err != ErrUnknownComment {
			return err
		}
	}
	return nil
}

// prefetch загружает ответы корневого узла, не меняя его раскрытие.
func (t *Thread) prefetch(ctx context.Context, id string) error {
	t.mu.Lock()
	n, err := t.lookup(id)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	if n.fetching || !n.wantsReplies() {
		t.mu.Unlock()
		return nil
	}
	n.fetching = true
	t.mu.Unlock()

	return t.fetchReplies(ctx, id, false)
}

// fetchReplies запрашивает ответы и сливает их с локальными. Узел уже помечен fetching.
func (t *Thread) fetchReplies(ctx context.Context, id string, expand bool) error {
	rctx, cancel := t.requestContext(ctx)
	res, err := t.svc.GetCommentWithReplies(rctx, id)
	cancel()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	n.fetching = false

	if err != nil {
		t.metrics.replyFetch("error")
		t.log.Warn("fetch replies failed, showing local replies",
			zap.String("comment_id", id),
			zap.Int("local_replies", len(n.comment.Replies)),
			zap.Error(err))
		if expand {
			n.state = t.restingState(n)
		}
		return nil
	}

	var fetched []*domain.Comment
	total := 0
	if res != nil {
		total = res.Replies.TotalReplies
		for _, r := range res.Replies.Comments {
			if r == nil || r.ID == "" {
				continue
			}
			fetched = append(fetched, t.norm.NormalizeChild(r, n.comment))
		}
	}

	local := n.comment.Replies
	if cached, ok := t.cache.Get(n.comment.PostID, id); ok {
		local = MergeReplies(local, cached, 0).Replies
	}
	m := MergeReplies(local, fetched, total)

	for i, r := range m.Replies {
		m.Replies[i] = t.register(r).comment
	}
	n.fetched = true
	n.comment.Replies = m.Replies
	n.comment.ReplyCount = m.Count
	n.count = m.Count
	t.cache.Set(n.comment.PostID, id, m.Replies)

	switch {
	case len(m.Replies) == 0:
		t.metrics.replyFetch("empty")
		n.state = NoReplies
		n.count = 0
		n.comment.ReplyCount = 0
	case expand:
		t.metrics.replyFetch("ok")
		n.state = Expanded
	default:
		t.metrics.replyFetch("ok")
	}
	return nil
}

// parentOf возвращает узел родителя или nil для корня.
func (t *Thread) parentOf(c *domain.Comment) *node {
	if !c.IsReply() {
		return nil
	}
	return t.nodes[c.ParentID()]
}

// bumpCounts меняет счетчики ответов у родителя и всех предков до корня.
func (t *Thread) bumpCounts(parent *node, delta int) {
	for p := parent; p != nil; p = t.parentOf(p.comment) {
		p.count += delta
		if p.count < 0 {
			p.count = 0
		}
		p.comment.ReplyCount = p.count
	}
}

// insertReply ставит ответ первым в списке родителя. Дубли по id не допускаются.
func (t *Thread) insertReply(parent *node, c *domain.Comment) bool {
	for _, r := range parent.comment.Replies {
		if r.ID == c.ID {
			return false
		}
	}
	parent.comment.Replies = append([]*domain.Comment{c}, parent.comment.Replies...)
	t.register(c)
	t.bumpCounts(parent, 1)
	if parent.state == NoReplies {
		parent.state = Collapsed
	}
	if parent.state == Collapsed && !t.collapsible(parent.comment.Depth) {
		parent.state = Expanded
	}
	t.cache.Add(c.PostID, parent.comment.ID, c)
	return true
}

// replaceReply подменяет временный ответ подтвержденным.
func (t *Thread) replaceReply(parent *node, tempID string, c *domain.Comment) *domain.Comment {
	if old, ok := t.nodes[tempID]; ok {
		delete(t.nodes, tempID)
		if _, exists := t.nodes[c.ID]; !exists {
			old.comment = c
			t.nodes[c.ID] = old
		}
	}
	canon := t.register(c).comment

	out := make([]*domain.Comment, 0, len(parent.comment.Replies))
	placed := false
	for _, r := range parent.comment.Replies {
		if r.ID == tempID || r.ID == c.ID {
			if !placed {
				out = append(out, canon)
				placed = true
			} else {
				// подтвержденный ответ уже пришел событием: второй экземпляр не считаем
				t.bumpCounts(parent, -1)
			}
			continue
		}
		out = append(out, r)
	}
	if !placed {
		out = append([]*domain.Comment{canon}, out...)
		t.bumpCounts(parent, 1)
	}
	parent.comment.Replies = out
	t.cache.Replace(c.PostID, parent.comment.ID, tempID, canon)
	return canon
}

// detach убирает комментарий из списка родителя или из корневого списка и
// возвращает его прежнюю позицию, либо -1.
func (t *Thread) detach(c *domain.Comment) int {
	if parent := t.parentOf(c); parent != nil {
		idx := indexOf(parent.comment.Replies, c.ID)
		if idx < 0 {
			return -1
		}
		parent.comment.Replies = append(parent.comment.Replies[:idx:idx], parent.comment.Replies[idx+1:]...)
		removed := 1
		if n, ok := t.nodes[c.ID]; ok {
			removed += n.count
		}
		t.bumpCounts(parent, -removed)
		t.cache.Remove(c.PostID, parent.comment.ID, c.ID)
		return idx
	}
	idx := indexOf(t.roots, c.ID)
	if idx < 0 {
		return -1
	}
	t.roots = append(t.roots[:idx:idx], t.roots[idx+1:]...)
	t.totalComments--
	return idx
}

// reattach возвращает комментарий на прежнее место после неудачного удаления.
func (t *Thread) reattach(c *domain.Comment, idx int, count int) {
	if parent := t.parentOf(c); parent != nil {
		if indexOf(parent.comment.Replies, c.ID) >= 0 {
			return
		}
		parent.comment.Replies = insertAt(parent.comment.Replies, idx, c)
		t.bumpCounts(parent, 1+count)
		t.cache.Add(c.PostID, parent.comment.ID, c)
		return
	}
	if indexOf(t.roots, c.ID) >= 0 {
		return
	}
	t.roots = insertAt(t.roots, idx, c)
	t.totalComments++
}

// forget удаляет узел и все его поддерево.
func (t *Thread) forget(c *domain.Comment) {
	for _, r := range c.Replies {
		t.forget(r)
	}
	delete(t.nodes, c.ID)
}

func indexOf(list []*domain.Comment, id string) int {
	for i, c := range list {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func insertAt(list []*domain.Comment, idx int, c *domain.Comment) []*domain.Comment {
	if idx < 0 || idx > len(list) {
		idx = len(list)
	}
	list = append(list, nil)
	copy(list[idx+1:], list[idx:])
	list[idx] = c
	return list
}
