package thread

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UkralStul/threaded-comments/internal/domain"
)

// threadWithChild: корень r1 (2 ответа на сервере) с вложенным ответом c2 от bob.
func threadWithChild() *domain.Comment {
	r1 := rootComment("r1", alice, 0)
	c2 := replyComment("c2", "r1", bob, 1)
	r1.Replies = []*domain.Comment{c2}
	r1.ReplyCount = 2
	return r1
}

func TestReply_OptimisticThenReconciled(t *testing.T) {
	svc := newFakeService()
	svc.pages[1] = singlePage(threadWithChild())
	g := newGate()
	svc.create = func(ctx context.Context, in domain.CreateCommentInput) (*domain.Comment, error) {
		if err := g.wait(ctx); err != nil {
			return nil, err
		}
		return &domain.Comment{
			ID:              "srv-1",
			PostID:          in.PostID,
			ParentCommentID: in.ParentCommentID,
			Author:          domain.UnresolvedAuthor(me.ID),
			Content:         in.Content,
			CreatedAt:       base.Add(3 * time.Hour),
		}, nil
	}
	th := newTestThread(t, svc)

	done := make(chan *domain.Comment, 1)
	go func() {
		c, err := th.Reply(context.Background(), "r1", "hello", nil)
		assert.NoError(t, err)
		done <- c
	}()
	g.awaitStart(t)

	_, count := nodeState(t, th, "r1")
	assert.Equal(t, 3, count)
	r1 := th.Snapshot()[0]
	require.Len(t, r1.Children, 2)
	assert.True(t, isTemp(r1.Children[0].Comment.ID), "temp reply goes first")

	close(g.release)
	created := <-done
	require.NotNil(t, created)
	assert.Equal(t, "srv-1", created.ID)
	assert.Equal(t, 1, created.Depth)
	u, ok := created.Author.User()
	require.True(t, ok)
	assert.Equal(t, me.Username, u.Username)

	r1 = th.Snapshot()[0]
	assert.Equal(t, 3, r1.Count)
	assert.Equal(t, []string{"srv-1", "c2"}, []string{r1.Children[0].Comment.ID, r1.Children[1].Comment.ID})
	assert.Equal(t, 1, svc.count("create"))
}

func TestReply_BumpsEveryAncestor(t *testing.T) {
	svc := newFakeService()
	svc.pages[1] = singlePage(threadWithChild())
	var got domain.CreateCommentInput
	svc.create = func(_ context.Context, in domain.CreateCommentInput) (*domain.Comment, error) {
		got = in
		return &domain.Comment{ID: "srv-9", PostID: in.PostID, ParentCommentID: in.ParentCommentID,
			Author: domain.UnresolvedAuthor(me.ID), Content: in.Content}, nil
	}
	th := newTestThread(t, svc)

	created, err := th.Reply(context.Background(), "c2", "@bob agreed", nil)
	require.NoError(t, err)

	_, c2Count := nodeState(t, th, "c2")
	_, r1Count := nodeState(t, th, "r1")
	assert.Equal(t, 1, c2Count)
	assert.Equal(t, 3, r1Count)

	assert.Equal(t, 2, created.Depth)
	require.NotNil(t, created.ReplyTo)
	assert.Equal(t, bob.Username, created.ReplyTo.Username)
	require.NotNil(t, got.ReplyToUserID)
	assert.Equal(t, bob.ID, *got.ReplyToUserID)
	assert.Equal(t, "c2", *got.ParentCommentID)
}

func TestReply_RollbackRestoresCounts(t *testing.T) {
	svc := newFakeService()
	svc.pages[1] = singlePage(threadWithChild())
	svc.create = func(context.Context, domain.CreateCommentInput) (*domain.Comment, error) {
		return nil, errBoom
	}
	th := newTestThread(t, svc)

	_, err := th.Reply(context.Background(), "c2", "nope", nil)
	require.ErrorIs(t, err, errBoom)

	_, c2Count := nodeState(t, th, "c2")
	_, r1Count := nodeState(t, th, "r1")
	assert.Equal(t, 0, c2Count)
	assert.Equal(t, 2, r1Count)
	assert.Empty(t, mustComment(t, th, "c2").Replies)

	th.mu.Lock()
	defer th.mu.Unlock()
	for id := range th.nodes {
		assert.False(t, isTemp(id), "temp node %s left behind", id)
	}
}

func TestReply_DepthLimit(t *testing.T) {
	r := rootComment("r", alice, 0)
	a := replyComment("a", "r", bob, 1)
	b := replyComment("b", "a", alice, 2)
	c := replyComment("c", "b", bob, 3)
	b.Replies = []*domain.Comment{c}
	a.Replies = []*domain.Comment{b}
	r.Replies = []*domain.Comment{a}

	svc := newFakeService()
	svc.pages[1] = singlePage(r)
	svc.create = func(_ context.Context, in domain.CreateCommentInput) (*domain.Comment, error) {
		// сервер не прислал глубину
		return &domain.Comment{ID: "srv-1", PostID: in.PostID, ParentCommentID: in.ParentCommentID,
			Author: domain.UnresolvedAuthor(me.ID), Content: in.Content}, nil
	}
	th := newTestThread(t, svc)

	assert.Equal(t, 3, mustComment(t, th, "c").Depth)
	assert.False(t, th.CanReply("c"))
	_, err := th.Reply(context.Background(), "c", "too deep", nil)
	assert.ErrorIs(t, err, ErrCannotReply)

	assert.True(t, th.CanReply("b"))
	created, err := th.Reply(context.Background(), "b", "ok", nil)
	require.NoError(t, err)
	assert.Equal(t, mustComment(t, th, "b").Depth+1, created.Depth)
}

func TestReply_Validation(t *testing.T) {
	svc := newFakeService()
	svc.pages[1] = singlePage(threadWithChild())
	th := newTestThread(t, svc)

	_, err := th.Reply(context.Background(), "r1", "   ", nil)
	assert.ErrorIs(t, err, domain.ErrEmptyContent)

	_, err = th.Reply(context.Background(), "missing", "hi", nil)
	assert.ErrorIs(t, err, ErrUnknownComment)
	assert.Zero(t, svc.count("create"))
}

func TestReply_OnNoRepliesNodeReactivatesIt(t *testing.T) {
	svc := newFakeService()
	svc.pages[1] = singlePage(rootComment("r1", alice, 0))
	svc.replies["r1"] = &domain.CommentWithReplies{Comment: rootComment("r1", alice, 0)}
	th := newTestThread(t, svc)

	require.NoError(t, th.Expand(context.Background(), "r1"))
	state, _ := nodeState(t, th, "r1")
	require.Equal(t, NoReplies, state)

	_, err := th.Reply(context.Background(), "r1", "first!", nil)
	require.NoError(t, err)

	state, count := nodeState(t, th, "r1")
	assert.Equal(t, Collapsed, state)
	assert.Equal(t, 1, count)

	require.NoError(t, th.Expand(context.Background(), "r1"))
	state, _ = nodeState(t, th, "r1")
	assert.Equal(t, Expanded, state)
	assert.Equal(t, 1, svc.count("get"))
}

func TestReply_RollbackOnNoRepliesNodeKeepsItInert(t *testing.T) {
	svc := newFakeService()
	svc.pages[1] = singlePage(rootComment("r1", alice, 0))
	svc.replies["r1"] = &domain.CommentWithReplies{Comment: rootComment("r1", alice, 0)}
	svc.create = func(context.Context, domain.CreateCommentInput) (*domain.Comment, error) {
		return nil, errBoom
	}
	th := newTestThread(t, svc)

	require.NoError(t, th.Expand(context.Background(), "r1"))
	_, err := th.Reply(context.Background(), "r1", "lost", nil)
	require.ErrorIs(t, err, errBoom)

	state, count := nodeState(t, th, "r1")
	assert.Equal(t, NoReplies, state)
	assert.Equal(t, 0, count)
	assert.Equal(t, "No replies", th.Rows()[0].Label)
}
