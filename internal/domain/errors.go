package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound - сущность отсутствует.
	ErrNotFound = errors.New("not found")
	// ErrConflict - запрошенное состояние уже достигнуто или противоречит текущему.
	ErrConflict = errors.New("conflict")
	// ErrForbidden - действие доступно только автору.
	ErrForbidden = errors.New("forbidden")

	ErrCommentsDisabled = errors.New("comments are disabled for this post")
	ErrEmptyContent     = errors.New("comment content cannot be empty")
	ErrContentTooLong   = errors.New("comment content is too long")
	ErrParentNotFound   = errors.New("parent comment not found")
	ErrMaxDepth         = errors.New("max reply depth exceeded")
)

// Конфликтные ошибки лайков оборачивают ErrConflict.
var (
	ErrAlreadyLiked = fmt.Errorf("already liked: %w", ErrConflict)
	ErrLikeNotFound = fmt.Errorf("like not found: %w", ErrConflict)
	ErrSelfLike     = fmt.Errorf("cannot like own comment: %w", ErrConflict)
)

// Reason коды, которыми HTTP-слой помечает ошибки.
const (
	ReasonAlreadyLiked    = "already_liked"
	ReasonLikeNotFound    = "like_not_found"
	ReasonSelfLike        = "self_like"
	ReasonNotFound        = "not_found"
	ReasonForbidden       = "forbidden"
	ReasonCommentsOff     = "comments_disabled"
	ReasonEmptyContent    = "empty_content"
	ReasonContentTooLong  = "content_too_long"
	ReasonParentNotFound  = "parent_not_found"
	ReasonMaxDepth        = "max_depth"
	ReasonConflict        = "conflict"
	ReasonInvalidArgument = "invalid_argument"
)

var reasons = []struct {
	reason string
	err    error
}{
	{ReasonAlreadyLiked, ErrAlreadyLiked},
	{ReasonLikeNotFound, ErrLikeNotFound},
	{ReasonSelfLike, ErrSelfLike},
	{ReasonNotFound, ErrNotFound},
	{ReasonForbidden, ErrForbidden},
	{ReasonCommentsOff, ErrCommentsDisabled},
	{ReasonEmptyContent, ErrEmptyContent},
	{ReasonContentTooLong, ErrContentTooLong},
	{ReasonParentNotFound, ErrParentNotFound},
	{ReasonMaxDepth, ErrMaxDepth},
	{ReasonConflict, ErrConflict},
}

// ReasonOf возвращает код для известной ошибки или пустую строку.
func ReasonOf(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return ""
}

// ErrorForReason - обратное преобразование кода в ошибку.
func ErrorForReason(reason string) error {
	for _, r := range reasons {
		if r.reason == reason {
			return r.err
		}
	}
	return nil
}
