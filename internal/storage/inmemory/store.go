package inmemory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thoas/go-funk"

	"github.com/UkralStul/threaded-comments/internal/domain"
	"github.com/UkralStul/threaded-comments/internal/storage"
)

// Store реализует интерфейс Storage в памяти.
type Store struct {
	mu               sync.RWMutex
	posts            map[string]*domain.Post
	users            map[string]*domain.User
	comments         map[string]*domain.CommentRecord
	commentsByPost   map[string][]string // map[postID][]commentID (только корневые)
	commentsByParent map[string][]string // map[parentID][]commentID
	likes            map[string][]string // map[commentID][]userID в порядке лайков
	now              func() time.Time
}

// New создает новый экземпляр in-memory хранилища.
func New() *Store {
	return &Store{
		posts:            make(map[string]*domain.Post),
		users:            make(map[string]*domain.User),
		comments:         make(map[string]*domain.CommentRecord),
		commentsByPost:   make(map[string][]string),
		commentsByParent: make(map[string][]string),
		likes:            make(map[string][]string),
		now:              func() time.Time { return time.Now().UTC() },
	}
}

var _ storage.Storage = (*Store)(nil)

// === Post Methods ===

func (s *Store) CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	post.CreatedAt = s.now()
	cp := *post
	s.posts[post.ID] = &cp
	return post, nil
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, fmt.Errorf("post %s: %w", id, domain.ErrNotFound)
	}
	cp := *post
	return &cp, nil
}

func (s *Store) GetPosts(ctx context.Context, limit, offset int) ([]*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	allPosts := make([]*domain.Post, 0, len(s.posts))
	for _, p := range s.posts {
		cp := *p
		allPosts = append(allPosts, &cp)
	}

	sort.Slice(allPosts, func(i, j int) bool {
		return allPosts[i].CreatedAt.After(allPosts[j].CreatedAt)
	})

	start := offset
	if start >= len(allPosts) {
		return []*domain.Post{}, nil
	}
	end := start + limit
	if end > len(allPosts) {
		end = len(allPosts)
	}
	return allPosts[start:end], nil
}

func (s *Store) ToggleComments(ctx context.Context, postID string, enable bool) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[postID]
	if !ok {
		return nil, fmt.Errorf("post %s: %w", postID, domain.ErrNotFound)
	}
	post.CommentsEnabled = enable
	cp := *post
	return &cp, nil
}

// === User Methods ===

func (s *Store) SaveUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	cp := *user
	s.users[user.ID] = &cp
	return user, nil
}

func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*domain.User, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			cp := *u
			out[id] = &cp
		}
	}
	return out, nil
}

// === Comment Methods ===

func (s *Store) CreateComment(ctx context.Context, comment *domain.CommentRecord, maxDepth int) (*domain.CommentRecord, error) {
	if err := validateContent(comment.Content); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Проверка поста
	post, ok := s.posts[comment.PostID]
	if !ok {
		return nil, fmt.Errorf("post %s: %w", comment.PostID, domain.ErrNotFound)
	}
	if !post.CommentsEnabled {
		return nil, domain.ErrCommentsDisabled
	}

	// Проверка родительского комментария
	comment.Depth = 0
	if comment.ParentID != nil {
		parent, ok := s.comments[*comment.ParentID]
		if !ok || parent.PostID != comment.PostID {
			return nil, domain.ErrParentNotFound
		}
		comment.Depth = parent.Depth + 1
		if maxDepth > 0 && comment.Depth > maxDepth {
			return nil, domain.ErrMaxDepth
		}
	}

	comment.ID = uuid.NewString()
	comment.CreatedAt = s.now()
	comment.UpdatedAt = comment.CreatedAt
	comment.Edited = false
	cp := *comment
	s.comments[comment.ID] = &cp

	// Обновление индексов для иерархии
	if comment.ParentID == nil {
		s.commentsByPost[comment.PostID] = append(s.commentsByPost[comment.PostID], comment.ID)
	} else {
		s.commentsByParent[*comment.ParentID] = append(s.commentsByParent[*comment.ParentID], comment.ID)
	}

	return comment, nil
}

func (s *Store) GetCommentByID(ctx context.Context, id string) (*domain.CommentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	comment, ok := s.comments[id]
	if !ok {
		return nil, fmt.Errorf("comment %s: %w", id, domain.ErrNotFound)
	}
	cp := *comment
	return &cp, nil
}

func (s *Store) UpdateComment(ctx context.Context, id, authorID, content string) (*domain.CommentRecord, error) {
	if err := validateContent(content); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	comment, ok := s.comments[id]
	if !ok {
		return nil, fmt.Errorf("comment %s: %w", id, domain.ErrNotFound)
	}
	if comment.AuthorID != authorID {
		return nil, domain.ErrForbidden
	}
	comment.Content = content
	comment.Edited = true
	comment.UpdatedAt = s.now()
	cp := *comment
	return &cp, nil
}

func (s *Store) DeleteComment(ctx context.Context, id, authorID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	comment, ok := s.comments[id]
	if !ok {
		return nil, fmt.Errorf("comment %s: %w", id, domain.ErrNotFound)
	}
	if comment.AuthorID != authorID {
		return nil, domain.ErrForbidden
	}

	if comment.ParentID == nil {
		s.commentsByPost[comment.PostID] = without(s.commentsByPost[comment.PostID], id)
	} else {
		s.commentsByParent[*comment.ParentID] = without(s.commentsByParent[*comment.ParentID], id)
	}

	removed := s.subtree(id, nil)
	for _, cid := range removed {
		delete(s.comments, cid)
		delete(s.commentsByParent, cid)
		delete(s.likes, cid)
	}
	return removed, nil
}

// subtree собирает id комментария и всех его потомков.
func (s *Store) subtree(id string, acc []string) []string {
	acc = append(acc, id)
	for _, child := range s.commentsByParent[id] {
		acc = s.subtree(child, acc)
	}
	return acc
}

// === Pagination Methods ===

func (s *Store) ListRootComments(ctx context.Context, f storage.RootFilter, args storage.PaginationArgs) ([]*domain.CommentRecord, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(f.Search))
	matched := make([]*domain.CommentRecord, 0)
	for _, c := range s.newestFirst(s.commentsByPost[f.PostID]) {
		if search != "" && !strings.Contains(strings.ToLower(c.Content), search) {
			continue
		}
		switch f.Status {
		case storage.StatusEdited:
			if !c.Edited {
				continue
			}
		case storage.StatusUnanswered:
			if len(s.commentsByParent[c.ID]) > 0 {
				continue
			}
		}
		matched = append(matched, c)
	}

	return paginate(matched, args), len(matched), nil
}

func (s *Store) GetCommentsByParentID(ctx context.Context, parentID string) ([]*domain.CommentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.newestFirst(s.commentsByParent[parentID]), nil
}

// newestFirst возвращает копии комментариев, новые первыми; при равном времени
// позже созданный идет первым.
func (s *Store) newestFirst(ids []string) []*domain.CommentRecord {
	out := make([]*domain.CommentRecord, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if c, ok := s.comments[ids[i]]; ok {
			cp := *c
			out = append(out, &cp)
		}
	}
	// Сортируем по времени создания, чтобы пагинация была консистентной
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// paginate - вспомогательная функция для пагинации
func paginate(all []*domain.CommentRecord, args storage.PaginationArgs) []*domain.CommentRecord {
	start := args.Offset
	if start < 0 {
		start = 0
	}
	if start >= len(all) {
		return []*domain.CommentRecord{}
	}
	end := len(all)
	if args.Limit > 0 && start+args.Limit < end {
		end = start + args.Limit
	}
	return all[start:end]
}

// === Dataloader Methods ===

func (s *Store) GetCommentsByParentIDs(ctx context.Context, parentIDs []string) (map[string][]*domain.CommentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make(map[string][]*domain.CommentRecord, len(parentIDs))
	for _, pID := range parentIDs {
		results[pID] = s.newestFirst(s.commentsByParent[pID])
	}
	return results, nil
}

func (s *Store) CountDescendants(ctx context.Context, ids []string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make(map[string]int, len(ids))
	for _, id := range ids {
		results[id] = len(s.subtree(id, nil)) - 1
	}
	return results, nil
}

func (s *Store) GetLikesByCommentIDs(ctx context.Context, ids []string) (map[string][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make(map[string][]string, len(ids))
	for _, id := range ids {
		results[id] = append([]string{}, s.likes[id]...)
	}
	return results, nil
}

// === Like Methods ===

func (s *Store) LikeComment(ctx context.Context, commentID, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	comment, ok := s.comments[commentID]
	if !ok {
		return nil, fmt.Errorf("comment %s: %w", commentID, domain.ErrNotFound)
	}
	if comment.AuthorID == userID {
		return nil, domain.ErrSelfLike
	}
	if funk.ContainsString(s.likes[commentID], userID) {
		return nil, domain.ErrAlreadyLiked
	}
	s.likes[commentID] = append(s.likes[commentID], userID)
	return append([]string{}, s.likes[commentID]...), nil
}

func (s *Store) UnlikeComment(ctx context.Context, commentID, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.comments[commentID]; !ok {
		return nil, fmt.Errorf("comment %s: %w", commentID, domain.ErrNotFound)
	}
	likes := s.likes[commentID]
	left := without(likes, userID)
	if len(left) == len(likes) {
		return nil, domain.ErrLikeNotFound
	}
	s.likes[commentID] = left
	return append([]string{}, left...), nil
}

func validateContent(content string) error {
	// Проверка длины комментария
	if len(content) > domain.MaxContentLength {
		return domain.ErrContentTooLong
	}
	if strings.TrimSpace(content) == "" {
		return domain.ErrEmptyContent
	}
	return nil
}

func without(ids []string, id string) []string {
	return funk.FilterString(ids, func(v string) bool { return v != id })
}
