package dataloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UkralStul/threaded-comments/internal/domain"
	"github.com/UkralStul/threaded-comments/internal/storage"
	"github.com/UkralStul/threaded-comments/internal/storage/inmemory"
)

// countingStore считает пакетные запросы к хранилищу.
type countingStore struct {
	storage.Storage
	countCalls int
}

func (s *countingStore) CountDescendants(ctx context.Context, ids []string) (map[string]int, error) {
	s.countCalls++
	return s.Storage.CountDescendants(ctx, ids)
}

func TestLoaders_BatchesByKey(t *testing.T) {
	ctx := context.Background()
	base := inmemory.New()
	post, err := base.CreatePost(ctx, &domain.Post{Title: "p", AuthorID: "a", CommentsEnabled: true})
	require.NoError(t, err)
	_, err = base.SaveUser(ctx, &domain.User{ID: "a", Username: "alice"})
	require.NoError(t, err)

	create := func(parentID *string) *domain.CommentRecord {
		c, err := base.CreateComment(ctx, &domain.CommentRecord{PostID: post.ID, ParentID: parentID, AuthorID: "a", Content: "x"}, 0)
		require.NoError(t, err)
		return c
	}
	root := create(nil)
	child := create(&root.ID)
	create(&child.ID)
	other := create(nil)
	_, err = base.LikeComment(ctx, root.ID, "b")
	require.NoError(t, err)

	store := &countingStore{Storage: base}
	loaders := NewLoaders(store)

	counts, err := loaders.ReplyCounts(ctx, []string{root.ID, other.ID, child.ID})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{root.ID: 2, other.ID: 0, child.ID: 1}, counts)
	assert.Equal(t, 1, store.countCalls)

	// Повторный запрос берется из кэша лоадера
	_, err = loaders.ReplyCounts(ctx, []string{root.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, store.countCalls)

	likes, err := loaders.Likes(ctx, []string{root.ID, other.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, likes[root.ID])
	assert.Empty(t, likes[other.ID])

	users, err := loaders.Users(ctx, []string{"a", "ghost"})
	require.NoError(t, err)
	require.Contains(t, users, "a")
	assert.NotContains(t, users, "ghost")

	children, err := loaders.Children(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, child.ID, children[0].ID)
}

func TestMiddleware_InjectsLoaders(t *testing.T) {
	var got *Loaders
	h := Middleware(inmemory.New(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = For(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotNil(t, got)
	assert.NotNil(t, got.ChildrenByCommentID)
}
