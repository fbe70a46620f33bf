package storage

import (
	"context"

	"github.com/UkralStul/threaded-comments/internal/domain"
)

// Фильтры статуса для выборки корневых комментариев.
const (
	StatusAll        = ""
	StatusEdited     = "edited"
	StatusUnanswered = "unanswered"
)

// PaginationArgs - аргументы для постраничной выборки.
type PaginationArgs struct {
	Limit  int
	Offset int
}

// RootFilter - условия выборки корневых комментариев поста.
type RootFilter struct {
	PostID string
	// Search - подстрока текста без учета регистра.
	Search string
	Status string
}

// Storage определяет контракт для хранилищ.
type Storage interface {
	GetPosts(ctx context.Context, limit, offset int) ([]*domain.Post, error)
	GetPostByID(ctx context.Context, id string) (*domain.Post, error)
	CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error)
	ToggleComments(ctx context.Context, postID string, enable bool) (*domain.Post, error)

	SaveUser(ctx context.Context, user *domain.User) (*domain.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error)

	// CreateComment проверяет пост и родителя и вычисляет глубину ответа.
	CreateComment(ctx context.Context, comment *domain.CommentRecord, maxDepth int) (*domain.CommentRecord, error)
	GetCommentByID(ctx context.Context, id string) (*domain.CommentRecord, error)
	UpdateComment(ctx context.Context, id, authorID, content string) (*domain.CommentRecord, error)
	// DeleteComment удаляет комментарий вместе с ответами и возвращает удаленные id.
	DeleteComment(ctx context.Context, id, authorID string) ([]string, error)

	// ListRootComments возвращает страницу корней, новые первыми, и общее число корней по фильтру.
	ListRootComments(ctx context.Context, f RootFilter, args PaginationArgs) ([]*domain.CommentRecord, int, error)
	GetCommentsByParentID(ctx context.Context, parentID string) ([]*domain.CommentRecord, error)

	// Методы для Dataloader'ов
	GetCommentsByParentIDs(ctx context.Context, parentIDs []string) (map[string][]*domain.CommentRecord, error)
	CountDescendants(ctx context.Context, ids []string) (map[string]int, error)
	GetLikesByCommentIDs(ctx context.Context, ids []string) (map[string][]string, error)

	// LikeComment и UnlikeComment возвращают множество лайкнувших после изменения.
	LikeComment(ctx context.Context, commentID, userID string) ([]string, error)
	UnlikeComment(ctx context.Context, commentID, userID string) ([]string, error)
}
