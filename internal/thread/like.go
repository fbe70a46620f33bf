package thread

import (
	"context"
	"fmt"

	"github.com/thoas/go-funk"
	"go.uber.org/zap"

	"github.com/UkralStul/threaded-comments/internal/domain"
)

// CanLike сообщает, доступен ли лайк: автору собственный комментарий лайкать нельзя.
func (t *Thread) CanLike(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, err := t.lookup(id)
	if err != nil {
		return false
	}
	return t.opts.Viewer != nil && !t.isOwn(n.comment) && !isTemp(id)
}

// ToggleLike ставит или снимает лайк. Счетчик меняется сразу на единицу и
// затем перезаписывается длиной каноничного множества лайков с сервера.
func (t *Thread) ToggleLike(ctx context.Context, id string) (Outcome, error) {
	t.mu.Lock()
	n, err := t.lookup(id)
	switch {
	case err != nil:
	case t.opts.Viewer == nil:
		err = ErrNoViewer
	case t.isOwn(n.comment):
		err = ErrSelfAction
	case isTemp(id):
		err = ErrUnknownComment
	case n.likeBusy:
		err = ErrBusy
	}
	if err != nil {
		t.mu.Unlock()
		return Kept, err
	}

	n.likeBusy = true
	c := n.comment
	viewerID := t.opts.Viewer.ID
	prevLiked, prevCount := c.IsLiked, c.LikesCount
	prevLikedBy := append([]string(nil), c.LikedBy...)
	hadLikedBy := c.LikedBy != nil
	shouldLike := !c.IsLiked
	t.mu.Unlock()

	op := "like"
	if !shouldLike {
		op = "unlike"
	}

	outcome, err := RunOptimistic(ctx, Optimistic[*domain.LikeResult]{
		Apply: t.guarded(func() {
			c.IsLiked = shouldLike
			if shouldLike {
				c.LikesCount++
				if !funk.ContainsString(c.LikedBy, viewerID) {
					c.LikedBy = append(c.LikedBy, viewerID)
				}
				return
			}
			if c.LikesCount > 0 {
				c.LikesCount--
			}
			c.LikedBy = funk.FilterString(c.LikedBy, func(uid string) bool { return uid != viewerID })
		}),
		Request: func(ctx context.Context) (*domain.LikeResult, error) {
			rctx, cancel := t.requestContext(ctx)
			defer cancel()
			if shouldLike {
				return t.svc.LikeComment(rctx, id)
			}
			return t.svc.UnlikeComment(rctx, id)
		},
		Reconcile: func(res *domain.LikeResult) bool {
			if res == nil || res.LikedBy == nil {
				return false
			}
			t.mu.Lock()
			defer t.mu.Unlock()
			if t.closed {
				return false
			}
			c.LikedBy = append([]string(nil), res.LikedBy...)
			c.LikesCount = len(res.LikedBy)
			c.IsLiked = res.IsLikedBy
			return true
		},
		Rollback: t.guarded(func() {
			c.IsLiked, c.LikesCount = prevLiked, prevCount
			c.LikedBy = nil
			if hadLikedBy {
				c.LikedBy = prevLikedBy
			}
		}),
		IsSoftConflict: IsSoftConflict,
	})

	t.mu.Lock()
	n.likeBusy = false
	t.mu.Unlock()

	t.metrics.mutation(op, outcome)
	if err != nil {
		t.log.Debug("like rolled back", zap.String("comment_id", id), zap.String("op", op), zap.Error(err))
		if isSelfAction(err) {
			return outcome, fmt.Errorf("%w: %w", ErrSelfAction, err)
		}
	}
	return outcome, err
}
