package thread

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/UkralStul/threaded-comments/internal/domain"
)

// CanReply сообщает, предлагать ли форму ответа под комментарием.
func (t *Thread) CanReply(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, err := t.lookup(id)
	if err != nil {
		return false
	}
	return t.canReply(n.comment)
}

// Reply создает ответ на parentID. Временный ответ сразу встает первым в
// списке родителя, счетчики родителя и всех предков увеличиваются; после
// ответа сервера временный ответ подменяется подтвержденным, при ошибке
// удаляется без следа.
func (t *Thread) Reply(ctx context.Context, parentID, content string, font *domain.FontStyle) (*domain.Comment, error) {
	t.mu.Lock()
	parent, err := t.lookup(parentID)
	switch {
	case err != nil:
	case t.opts.Viewer == nil:
		err = ErrNoViewer
	case !t.canReply(parent.comment):
		err = ErrCannotReply
	default:
		err = validContent(content)
	}
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}

	pc := parent.comment
	tempID := tempIDPrefix + uuid.NewString()
	in := domain.CreateCommentInput{
		PostID:          pc.PostID,
		Content:         content,
		ParentCommentID: &pc.ID,
		FontStyle:       font,
	}
	temp := &domain.Comment{
		ID:              tempID,
		PostID:          pc.PostID,
		ParentCommentID: &pc.ID,
		Author:          t.viewerAuthor(),
		Content:         content,
		FontStyle:       font,
		Depth:           pc.Depth + 1,
		CreatedAt:       t.now(),
	}
	// ответ на ответ адресуется автору родителя через @mention
	if pc.Depth >= 1 {
		if u, ok := pc.Author.User(); ok {
			temp.ReplyTo = &domain.UserRef{ID: u.ID, Username: u.Username}
			in.ReplyToUserID = &temp.ReplyTo.ID
		}
	}
	t.mu.Unlock()

	var (
		created   *domain.Comment
		prevState NodeState
	)
	outcome, err := RunOptimistic(ctx, Optimistic[*domain.Comment]{
		Apply: t.guarded(func() {
			if p, ok := t.nodes[pc.ID]; ok {
				prevState = p.state
				t.insertReply(p, temp)
			}
		}),
		Request: func(ctx context.Context) (*domain.Comment, error) {
			rctx, cancel := t.requestContext(ctx)
			defer cancel()
			return t.svc.CreateComment(rctx, in)
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
			p, ok := t.nodes[pc.ID]
			if !ok {
				return false
			}
			if c.ReplyTo == nil {
				c.ReplyTo = temp.ReplyTo
			}
			if c.FontStyle == nil {
				c.FontStyle = temp.FontStyle
			}
			created = t.replaceReply(p, tempID, t.norm.NormalizeChild(c, p.comment))
			return true
		},
		Rollback: t.guarded(func() {
			if n, ok := t.nodes[tempID]; ok {
				t.detach(n.comment)
				t.forget(n.comment)
			}
			// неактивный "No replies" снова становится неактивным
			if p, ok := t.nodes[pc.ID]; ok && prevState == NoReplies && len(p.comment.Replies) == 0 {
				p.state = NoReplies
			}
		}),
	})

	t.metrics.mutation("reply", outcome)
	if err != nil {
		t.log.Warn("reply failed", zap.String("parent_comment_id", parentID), zap.Error(err))
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if created == nil {
		created = temp
	}
	cp := copyComment(created)
	return &cp, nil
}
