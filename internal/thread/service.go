package thread

import (
	"context"
	"errors"

	"github.com/UkralStul/threaded-comments/internal/domain"
)

// Service - удаленный сервис комментариев, с которым синхронизируется дерево.
type Service interface {
	ListRootComments(ctx context.Context, q domain.ListQuery) (*domain.CommentPage, error)
	GetCommentWithReplies(ctx context.Context, commentID string) (*domain.CommentWithReplies, error)
	CreateComment(ctx context.Context, in domain.CreateCommentInput) (*domain.Comment, error)
	UpdateComment(ctx context.Context, commentID, content string) (*domain.Comment, error)
	DeleteComment(ctx context.Context, commentID string) error
	LikeComment(ctx context.Context, commentID string) (*domain.LikeResult, error)
	UnlikeComment(ctx context.Context, commentID string) (*domain.LikeResult, error)
}

var (
	// ErrBusy - по этому узлу уже выполняется такой же запрос.
	ErrBusy = errors.New("thread: request already in flight")
	// ErrClosed - представление закрыто, состояние больше не меняется.
	ErrClosed = errors.New("thread: view closed")
	// ErrUnknownComment - комментарий не загружен в дерево.
	ErrUnknownComment = errors.New("thread: unknown comment")
	// ErrCannotReply - достигнута максимальная глубина ответов.
	ErrCannotReply = errors.New("thread: reply depth limit reached")
	// ErrSelfAction - действие над собственным комментарием запрещено.
	ErrSelfAction = errors.New("thread: action not allowed on own comment")
	// ErrNotAuthor - править и удалять может только автор.
	ErrNotAuthor = errors.New("thread: only the author can change this comment")
)

// IsSoftConflict сообщает, что сервер уже находится в желаемом состоянии.
// Запрет на лайк своего комментария к мягким конфликтам не относится.
func IsSoftConflict(err error) bool {
	return errors.Is(err, domain.ErrConflict) && !errors.Is(err, domain.ErrSelfLike)
}

func isSelfAction(err error) bool {
	return errors.Is(err, domain.ErrSelfLike)
}
