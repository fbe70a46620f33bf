package thread

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/UkralStul/threaded-comments/internal/domain"
)

// CanEdit сообщает, может ли текущий пользователь править и удалять комментарий.
func (t *Thread) CanEdit(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, err := t.lookup(id)
	if err != nil {
		return false
	}
	return t.isOwn(n.comment) && !isTemp(id)
}

// Edit меняет только текст и помечает комментарий отредактированным.
func (t *Thread) Edit(ctx context.Context, id, content string) (Outcome, error) {
	t.mu.Lock()
	n, err := t.lookup(id)
	switch {
	case err != nil:
	case !t.isOwn(n.comment) || isTemp(id):
		err = ErrNotAuthor
	default:
		err = validContent(content)
	}
	if err != nil {
		t.mu.Unlock()
		return Kept, err
	}
	c := n.comment
	prevContent, prevEdited := c.Content, c.Edited
	t.mu.Unlock()

	outcome, err := RunOptimistic(ctx, Optimistic[*domain.Comment]{
		Apply: t.guarded(func() {
			c.Content = content
			c.Edited = true
		}),
		Request: func(ctx context.Context) (*domain.Comment, error) {
			rctx, cancel := t.requestContext(ctx)
			defer cancel()
			return t.svc.UpdateComment(rctx, id, content)
		},
		Reconcile: func(res *domain.Comment) bool {
			if res == nil || res.ID != id {
				return false
			}
			t.mu.Lock()
			defer t.mu.Unlock()
			if t.closed {
				return false
			}
			c.Content = res.Content
			c.Edited = true
			return true
		},
		Rollback: t.guarded(func() {
			c.Content, c.Edited = prevContent, prevEdited
		}),
	})

	t.metrics.mutation("edit", outcome)
	if err != nil {
		t.log.Warn("edit rolled back", zap.String("comment_id", id), zap.Error(err))
	}
	return outcome, err
}

// Delete убирает комментарий из списка родителя (или из корневого списка),
// уменьшая счетчики. Если сервер уже не знает комментарий, удаление считается выполненным.
func (t *Thread) Delete(ctx context.Context, id string) (Outcome, error) {
	t.mu.Lock()
	n, err := t.lookup(id)
	if err == nil && (!t.isOwn(n.comment) || isTemp(id)) {
		err = ErrNotAuthor
	}
	if err != nil {
		t.mu.Unlock()
		return Kept, err
	}
	c := n.comment
	count := n.count
	t.mu.Unlock()

	idx := -1
	outcome, err := RunOptimistic(ctx, Optimistic[struct{}]{
		Apply: t.guarded(func() {
			idx = t.detach(c)
		}),
		Request: func(ctx context.Context) (struct{}, error) {
			rctx, cancel := t.requestContext(ctx)
			defer cancel()
			return struct{}{}, t.svc.DeleteComment(rctx, id)
		},
		Rollback: t.guarded(func() {
			if idx >= 0 {
				t.reattach(c, idx, count)
			}
		}),
		IsSoftConflict: func(err error) bool { return errors.Is(err, domain.ErrNotFound) },
	})

	if err == nil {
		t.mu.Lock()
		if !t.closed {
			t.forget(c)
			t.localRoots = removeID(t.localRoots, id)
		}
		t.mu.Unlock()
	}

	t.metrics.mutation("delete", outcome)
	if err != nil {
		t.log.Warn("delete rolled back", zap.String("comment_id", id), zap.Error(err))
	}
	return outcome, err
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
