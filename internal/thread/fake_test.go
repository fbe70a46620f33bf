package thread

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/UkralStul/threaded-comments/internal/domain"
)

const testPost = "post-1"

var (
	me    = domain.UserSummary{ID: "u-me", Username: "me", FullName: "Me Myself"}
	alice = domain.UserSummary{ID: "u-alice", Username: "alice", FullName: "Alice"}
	bob   = domain.UserSummary{ID: "u-bob", Username: "bob", FullName: "Bob"}

	errBoom = errors.New("boom")
	base    = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
)

// fakeService - управляемый сервис: каждый метод можно подменить функцией.
type fakeService struct {
	mu    sync.Mutex
	calls map[string]int

	pages   map[int]*domain.CommentPage
	listErr error
	replies map[string]*domain.CommentWithReplies

	list    func(ctx context.Context, q domain.ListQuery) (*domain.CommentPage, error)
	get     func(ctx context.Context, id string) (*domain.CommentWithReplies, error)
	create  func(ctx context.Context, in domain.CreateCommentInput) (*domain.Comment, error)
	update  func(ctx context.Context, id, content string) (*domain.Comment, error)
	del     func(ctx context.Context, id string) error
	like    func(ctx context.Context, id string) (*domain.LikeResult, error)
	unlike  func(ctx context.Context, id string) (*domain.LikeResult, error)
	created int
}

func newFakeService() *fakeService {
	return &fakeService{
		calls:   make(map[string]int),
		pages:   make(map[int]*domain.CommentPage),
		replies: make(map[string]*domain.CommentWithReplies),
	}
}

func (f *fakeService) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeService) hit(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakeService) ListRootComments(ctx context.Context, q domain.ListQuery) (*domain.CommentPage, error) {
	f.hit("list")
	if f.list != nil {
		return f.list(ctx, q)
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	page, ok := f.pages[q.Page]
	if !ok {
		return &domain.CommentPage{Page: q.Page}, nil
	}
	return clonePage(page), nil
}

func (f *fakeService) GetCommentWithReplies(ctx context.Context, id string) (*domain.CommentWithReplies, error) {
	f.hit("get")
	if f.get != nil {
		return f.get(ctx, id)
	}
	res, ok := f.replies[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := &domain.CommentWithReplies{Comment: clone(res.Comment), Replies: domain.Replies{TotalReplies: res.Replies.TotalReplies}}
	for _, r := range res.Replies.Comments {
		out.Replies.Comments = append(out.Replies.Comments, clone(r))
	}
	return out, nil
}

func (f *fakeService) CreateComment(ctx context.Context, in domain.CreateCommentInput) (*domain.Comment, error) {
	f.hit("create")
	if f.create != nil {
		return f.create(ctx, in)
	}
	f.mu.Lock()
	f.created++
	n := f.created
	f.mu.Unlock()
	return &domain.Comment{
		ID:              fmt.Sprintf("srv-%d", n),
		PostID:          in.PostID,
		ParentCommentID: in.ParentCommentID,
		Author:          domain.UnresolvedAuthor(me.ID),
		Content:         in.Content,
		CreatedAt:       base.Add(time.Hour),
	}, nil
}

func (f *fakeService) UpdateComment(ctx context.Context, id, content string) (*domain.Comment, error) {
	f.hit("update")
	if f.update != nil {
		return f.update(ctx, id, content)
	}
	return &domain.Comment{ID: id, Content: content, Edited: true}, nil
}

func (f *fakeService) DeleteComment(ctx context.Context, id string) error {
	f.hit("delete")
	if f.del != nil {
		return f.del(ctx, id)
	}
	return nil
}

func (f *fakeService) LikeComment(ctx context.Context, id string) (*domain.LikeResult, error) {
	f.hit("like")
	if f.like != nil {
		return f.like(ctx, id)
	}
	return nil, nil
}

func (f *fakeService) UnlikeComment(ctx context.Context, id string) (*domain.LikeResult, error) {
	f.hit("unlike")
	if f.unlike != nil {
		return f.unlike(ctx, id)
	}
	return nil, nil
}

// gate блокирует запрос до release и сообщает о его начале в started.
type gate struct {
	started chan struct{}
	release chan struct{}
}

func newGate() *gate {
	return &gate{started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (g *gate) wait(ctx context.Context) error {
	g.started <- struct{}{}
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *gate) awaitStart(t *testing.T) {
	t.Helper()
	select {
	case <-g.started:
	case <-time.After(2 * time.Second):
		t.Fatal("request did not start")
	}
}

func rootComment(id string, author domain.UserSummary, minutes int) *domain.Comment {
	return &domain.Comment{
		ID:        id,
		PostID:    testPost,
		Author:    domain.ResolvedAuthor(author),
		Content:   "comment " + id,
		CreatedAt: base.Add(time.Duration(minutes) * time.Minute),
	}
}

func replyComment(id, parentID string, author domain.UserSummary, minutes int) *domain.Comment {
	c := rootComment(id, author, minutes)
	pid := parentID
	c.ParentCommentID = &pid
	c.Content = "reply " + id
	return c
}

func clone(c *domain.Comment) *domain.Comment {
	if c == nil {
		return nil
	}
	cp := *c
	if c.LikedBy != nil {
		cp.LikedBy = append([]string(nil), c.LikedBy...)
	}
	cp.Replies = nil
	for _, r := range c.Replies {
		cp.Replies = append(cp.Replies, clone(r))
	}
	return &cp
}

func clonePage(p *domain.CommentPage) *domain.CommentPage {
	out := *p
	out.Comments = nil
	for _, c := range p.Comments {
		out.Comments = append(out.Comments, clone(c))
	}
	return &out
}

func singlePage(comments ...*domain.Comment) *domain.CommentPage {
	return &domain.CommentPage{Comments: comments, TotalComments: len(comments), Page: 1, TotalPages: 1}
}

// newTestThread создает представление от имени me и загружает первую страницу.
func newTestThread(t *testing.T, svc *fakeService, mutate ...func(*Options)) *Thread {
	t.Helper()
	viewer := me
	opts := Options{
		PostID:         testPost,
		Viewer:         &viewer,
		RequestTimeout: time.Second,
		Now:            func() time.Time { return base.Add(2 * time.Hour) },
	}
	for _, m := range mutate {
		m(&opts)
	}
	th, err := New(svc, opts)
	require.NoError(t, err)
	require.NoError(t, th.Load(context.Background(), 1))
	return th
}

func mustComment(t *testing.T, th *Thread, id string) domain.Comment {
	t.Helper()
	c, ok := th.Comment(id)
	require.True(t, ok, "comment %s not in tree", id)
	return c
}

func nodeState(t *testing.T, th *Thread, id string) (NodeState, int) {
	t.Helper()
	th.mu.Lock()
	defer th.mu.Unlock()
	n, ok := th.nodes[id]
	require.True(t, ok, "node %s not in tree", id)
	return n.state, n.count
}

func rootIDs(th *Thread) []string {
	var ids []string
	for _, c := range th.Roots() {
		ids = append(ids, c.ID)
	}
	return ids
}
