package thread

import (
	"context"

	"github.com/thoas/go-funk"
	"go.uber.org/zap"

	"github.com/UkralStul/threaded-comments/internal/domain"
)

// Apply применяет живое событие другого клиента к дереву. События по другим
// постам, по незагруженным родителям и повторы собственных мутаций игнорируются.
// Возвращает true, если дерево изменилось.
func (t *Thread) Apply(ev domain.CommentEvent) bool {
	if ev.Comment == nil || ev.Comment.ID == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || ev.PostID != t.opts.PostID {
		return false
	}

	c := ev.Comment
	switch ev.Type {
	case domain.EventCreated:
		return t.applyCreated(c)
	case domain.EventUpdated:
		n, ok := t.nodes[c.ID]
		if !ok {
			return false
		}
		n.comment.Content = c.Content
		n.comment.Edited = true
		return true
	case domain.EventDeleted:
		n, ok := t.nodes[c.ID]
		if !ok {
			return false
		}
		t.detach(n.comment)
		t.forget(n.comment)
		t.localRoots = removeID(t.localRoots, c.ID)
		return true
	case domain.EventLiked:
		n, ok := t.nodes[c.ID]
		// пустой набор лайков по сети не приходит; ненулевой счетчик без набора пропускаем
		if !ok || n.likeBusy || (c.LikedBy == nil && c.LikesCount > 0) {
			return false
		}
		n.comment.LikedBy = append([]string(nil), c.LikedBy...)
		n.comment.LikesCount = len(c.LikedBy)
		if t.opts.Viewer != nil {
			n.comment.IsLiked = funk.ContainsString(c.LikedBy, t.opts.Viewer.ID)
		}
		return true
	}
	t.log.Debug("unknown comment event", zap.String("type", string(ev.Type)))
	return false
}

func (t *Thread) applyCreated(c *domain.Comment) bool {
	if _, ok := t.nodes[c.ID]; ok {
		return false
	}
	if !c.IsReply() {
		// новые корни видны только на первой странице
		if t.page != 1 {
			t.totalComments++
			return false
		}
		t.roots = append([]*domain.Comment{t.norm.Normalize(c)}, t.roots...)
		t.register(c)
		t.totalComments++
		return true
	}
	parent, ok := t.nodes[c.ParentID()]
	if !ok {
		return false
	}
	return t.insertReply(parent, t.norm.NormalizeChild(c, parent.comment))
}

// Watch применяет события из канала, пока он открыт, контекст жив и представление не закрыто.
func (t *Thread) Watch(ctx context.Context, events <-chan domain.CommentEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			t.Apply(ev)
			t.mu.Lock()
			closed := t.closed
			t.mu.Unlock()
			if closed {
				return ErrClosed
			}
		}
	}
}
