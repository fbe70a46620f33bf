package inmemory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UkralStul/threaded-comments/internal/domain"
	"github.com/UkralStul/threaded-comments/internal/storage"
)

// newTestStore создает хранилище и один пост для тестов
func newTestStore(t *testing.T) (storage.Storage, *domain.Post) {
	store := New()
	ctx := context.Background()
	post, err := store.CreatePost(ctx, &domain.Post{
		Title:           "Test Post",
		AuthorID:        "user-1",
		CommentsEnabled: true,
	})
	require.NoError(t, err)
	return store, post
}

func create(t *testing.T, s storage.Storage, postID string, parentID *string, author, content string) *domain.CommentRecord {
	t.Helper()
	c, err := s.CreateComment(context.Background(), &domain.CommentRecord{
		PostID:   postID,
		ParentID: parentID,
		AuthorID: author,
		Content:  content,
	}, 3)
	require.NoError(t, err)
	return c
}

func TestStore_CreateAndGetPost(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()

	retrieved, err := store.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, post.Title, retrieved.Title)

	_, err = store.GetPostByID(ctx, "non-existent-id")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_CreateComment_Success(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()

	comment := create(t, store, post.ID, nil, "user-2", "First comment!")
	assert.NotEmpty(t, comment.ID)
	assert.Equal(t, 0, comment.Depth)

	comments, total, err := store.ListRootComments(ctx, storage.RootFilter{PostID: post.ID}, storage.PaginationArgs{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, comments, 1)
	assert.Equal(t, "First comment!", comments[0].Content)
}

func TestStore_CreateComment_CommentsDisabled(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()

	// Отключаем комментарии
	_, err := store.ToggleComments(ctx, post.ID, false)
	require.NoError(t, err)

	_, err = store.CreateComment(ctx, &domain.CommentRecord{PostID: post.ID, AuthorID: "user-2", Content: "This should fail"}, 0)
	assert.ErrorIs(t, err, domain.ErrCommentsDisabled)
}

func TestStore_CreateComment_Validation(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateComment(ctx, &domain.CommentRecord{PostID: post.ID, AuthorID: "user-2", Content: strings.Repeat("a", 2001)}, 0)
	assert.ErrorIs(t, err, domain.ErrContentTooLong)

	_, err = store.CreateComment(ctx, &domain.CommentRecord{PostID: post.ID, AuthorID: "user-2", Content: "  "}, 0)
	assert.ErrorIs(t, err, domain.ErrEmptyContent)

	missing := "missing"
	_, err = store.CreateComment(ctx, &domain.CommentRecord{PostID: post.ID, ParentID: &missing, AuthorID: "user-2", Content: "orphan"}, 0)
	assert.ErrorIs(t, err, domain.ErrParentNotFound)
}

func TestStore_CreateNestedComment(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()

	parent := create(t, store, post.ID, nil, "user-2", "Parent")
	child := create(t, store, post.ID, &parent.ID, "user-3", "Child")
	assert.Equal(t, 1, child.Depth)

	// Проверяем, что дочерний коммент не в корне поста
	roots, total, err := store.ListRootComments(ctx, storage.RootFilter{PostID: post.ID}, storage.PaginationArgs{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, parent.ID, roots[0].ID)

	// Проверяем, что дочерний коммент находится у родителя
	children, err := store.GetCommentsByParentID(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, child.ID, children[0].ID)
}

func TestStore_MaxDepth(t *testing.T) {
	store, post := newTestStore(t)

	c := create(t, store, post.ID, nil, "user-1", "d0")
	for i := 0; i < 3; i++ {
		c = create(t, store, post.ID, &c.ID, "user-1", "deeper")
	}
	assert.Equal(t, 3, c.Depth)

	_, err := store.CreateComment(context.Background(), &domain.CommentRecord{PostID: post.ID, ParentID: &c.ID, AuthorID: "user-1", Content: "too deep"}, 3)
	assert.ErrorIs(t, err, domain.ErrMaxDepth)
}

func TestStore_Pagination(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()

	// Создаем 5 комментариев
	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, create(t, store, post.ID, nil, "user-1", "some comment").ID)
	}

	firstPage, total, err := store.ListRootComments(ctx, storage.RootFilter{PostID: post.ID}, storage.PaginationArgs{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, firstPage, 2)
	assert.Equal(t, ids[4], firstPage[0].ID, "newest first")

	secondPage, _, err := store.ListRootComments(ctx, storage.RootFilter{PostID: post.ID}, storage.PaginationArgs{Limit: 2, Offset: 4})
	require.NoError(t, err)
	require.Len(t, secondPage, 1)
	assert.Equal(t, ids[0], secondPage[0].ID)
}

func TestStore_ListFilters(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()

	a := create(t, store, post.ID, nil, "user-1", "Go is fun")
	b := create(t, store, post.ID, nil, "user-2", "rust is fun too")
	create(t, store, post.ID, &a.ID, "user-2", "agreed")
	_, err := store.UpdateComment(ctx, b.ID, "user-2", "Rust is FUN too")
	require.NoError(t, err)

	found, total, err := store.ListRootComments(ctx, storage.RootFilter{PostID: post.ID, Search: "go"}, storage.PaginationArgs{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, a.ID, found[0].ID)

	found, _, err = store.ListRootComments(ctx, storage.RootFilter{PostID: post.ID, Status: storage.StatusEdited}, storage.PaginationArgs{})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, b.ID, found[0].ID)

	found, _, err = store.ListRootComments(ctx, storage.RootFilter{PostID: post.ID, Status: storage.StatusUnanswered}, storage.PaginationArgs{})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, b.ID, found[0].ID)
}

func TestStore_UpdateComment(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()
	c := create(t, store, post.ID, nil, "user-1", "before")

	_, err := store.UpdateComment(ctx, c.ID, "user-2", "hijack")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	updated, err := store.UpdateComment(ctx, c.ID, "user-1", "after")
	require.NoError(t, err)
	assert.Equal(t, "after", updated.Content)
	assert.True(t, updated.Edited)
}

func TestStore_DeleteCommentRemovesSubtree(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()
	root := create(t, store, post.ID, nil, "user-1", "root")
	child := create(t, store, post.ID, &root.ID, "user-1", "child")
	grandchild := create(t, store, post.ID, &child.ID, "user-2", "grandchild")
	sibling := create(t, store, post.ID, &root.ID, "user-2", "sibling")

	counts, err := store.CountDescendants(ctx, []string{root.ID, child.ID, sibling.ID})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{root.ID: 3, child.ID: 1, sibling.ID: 0}, counts)

	_, err = store.DeleteComment(ctx, child.ID, "user-2")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	removed, err := store.DeleteComment(ctx, child.ID, "user-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{child.ID, grandchild.ID}, removed)

	_, err = store.GetCommentByID(ctx, grandchild.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	counts, err = store.CountDescendants(ctx, []string{root.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, counts[root.ID])
}

func TestStore_Likes(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()
	c := create(t, store, post.ID, nil, "author", "like me")

	_, err := store.LikeComment(ctx, c.ID, "author")
	assert.ErrorIs(t, err, domain.ErrSelfLike)
	assert.ErrorIs(t, err, domain.ErrConflict)

	likedBy, err := store.LikeComment(ctx, c.ID, "fan-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"fan-1"}, likedBy)
	likedBy, err = store.LikeComment(ctx, c.ID, "fan-2")
	require.NoError(t, err)
	assert.Equal(t, []string{"fan-1", "fan-2"}, likedBy)

	_, err = store.LikeComment(ctx, c.ID, "fan-1")
	assert.ErrorIs(t, err, domain.ErrAlreadyLiked)

	likedBy, err = store.UnlikeComment(ctx, c.ID, "fan-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"fan-2"}, likedBy)

	_, err = store.UnlikeComment(ctx, c.ID, "fan-1")
	assert.ErrorIs(t, err, domain.ErrLikeNotFound)

	likes, err := store.GetLikesByCommentIDs(ctx, []string{c.ID, "nothing"})
	require.NoError(t, err)
	assert.Equal(t, []string{"fan-2"}, likes[c.ID])
	assert.Empty(t, likes["nothing"])
}

func TestStore_GetCommentsByParentIDs(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()
	a := create(t, store, post.ID, nil, "user-1", "a")
	b := create(t, store, post.ID, nil, "user-1", "b")
	a1 := create(t, store, post.ID, &a.ID, "user-2", "a1")
	a2 := create(t, store, post.ID, &a.ID, "user-2", "a2")

	got, err := store.GetCommentsByParentIDs(ctx, []string{a.ID, b.ID})
	require.NoError(t, err)
	require.Len(t, got[a.ID], 2)
	assert.Equal(t, a2.ID, got[a.ID][0].ID)
	assert.Equal(t, a1.ID, got[a.ID][1].ID)
	assert.Empty(t, got[b.ID])
}

func TestStore_Users(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.SaveUser(ctx, &domain.User{ID: "u1", Username: "alice"})
	require.NoError(t, err)

	users, err := store.GetUsersByIDs(ctx, []string{"u1", "u2"})
	require.NoError(t, err)
	require.Contains(t, users, "u1")
	assert.Equal(t, "alice", users["u1"].Username)
	assert.NotContains(t, users, "u2")
}
