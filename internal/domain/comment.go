package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// FontSize - размер шрифта, выбранный автором при написании.
type FontSize string

const (
	FontSizeSmall  FontSize = "small"
	FontSizeMedium FontSize = "medium"
	FontSizeLarge  FontSize = "large"
)

// Valid сообщает, входит ли размер в допустимый набор.
func (s FontSize) Valid() bool {
	switch s {
	case FontSizeSmall, FontSizeMedium, FontSizeLarge:
		return true
	}
	return false
}

// FontStyle - необязательное оформление текста комментария.
type FontStyle struct {
	Family string   `json:"fontFamily"`
	Size   FontSize `json:"fontSize"`
}

// UserSummary - краткая карточка автора, достаточная для отрисовки.
type UserSummary struct {
	ID              string `json:"_id"`
	Username        string `json:"username"`
	FullName        string `json:"fullName"`
	ProfileImageURL string `json:"profileImageUrl"`
	Badge           string `json:"badge,omitempty"`
}

// UserRef - ссылка на пользователя, которому адресован ответ (@mention).
type UserRef struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
}

// Author - автор комментария: либо голый идентификатор, либо заполненный профиль.
// Сервер присылает оба варианта в одном поле, поэтому разбираем их здесь, на границе.
type Author struct {
	id   string
	user *UserSummary
}

// UnresolvedAuthor создает автора, известного только по идентификатору.
func UnresolvedAuthor(id string) Author {
	return Author{id: id}
}

// ResolvedAuthor создает автора с полным профилем.
func ResolvedAuthor(u UserSummary) Author {
	return Author{id: u.ID, user: &u}
}

// ID возвращает идентификатор автора в обоих вариантах.
func (a Author) ID() string { return a.id }

// Resolved сообщает, известен ли профиль автора.
func (a Author) Resolved() bool { return a.user != nil }

// User возвращает профиль, если он известен.
func (a Author) User() (UserSummary, bool) {
	if a.user == nil {
		return UserSummary{}, false
	}
	return *a.user, true
}

func (a Author) MarshalJSON() ([]byte, error) {
	if a.user != nil {
		return json.Marshal(a.user)
	}
	return json.Marshal(a.id)
}

func (a *Author) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		*a = Author{}
		return nil
	case data[0] == '"':
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return fmt.Errorf("author id: %w", err)
		}
		*a = UnresolvedAuthor(id)
		return nil
	case data[0] == '{':
		var u UserSummary
		if err := json.Unmarshal(data, &u); err != nil {
			return fmt.Errorf("author object: %w", err)
		}
		*a = ResolvedAuthor(u)
		return nil
	}
	return fmt.Errorf("author: unexpected json %q", data)
}

// Comment - комментарий или ответ в том виде, в каком его видит клиент.
type Comment struct {
	ID              string     `json:"_id"`
	PostID          string     `json:"postId"`
	ParentCommentID *string    `json:"parentCommentId,omitempty"`
	Author          Author     `json:"user"`
	Content         string     `json:"content"`
	FontStyle       *FontStyle `json:"fontStyle,omitempty"`
	ReplyTo         *UserRef   `json:"replyTo,omitempty"`
	Depth           int        `json:"depth"`
	LikesCount      int        `json:"likesCount"`
	LikedBy         []string   `json:"likedBy,omitempty"`
	IsLiked         bool       `json:"isLiked"`
	Edited          bool       `json:"isEdited"`
	ReplyCount      int        `json:"replyCount"`
	CreatedAt       time.Time  `json:"createdAt"`
	Replies         []*Comment `json:"replies,omitempty"`
}

// IsReply сообщает, является ли комментарий ответом.
func (c *Comment) IsReply() bool {
	return c.ParentCommentID != nil && *c.ParentCommentID != ""
}

// ParentID возвращает идентификатор родителя или пустую строку для корня.
func (c *Comment) ParentID() string {
	if c.ParentCommentID == nil {
		return ""
	}
	return *c.ParentCommentID
}

// CommentPage - страница корневых комментариев поста.
type CommentPage struct {
	Comments      []*Comment `json:"comments"`
	TotalComments int        `json:"totalComments"`
	Page          int        `json:"page"`
	TotalPages    int        `json:"totalPages"`
}

// Replies - ответы на комментарий вместе с общим количеством на сервере.
type Replies struct {
	Comments     []*Comment `json:"comments"`
	TotalReplies int        `json:"totalReplies"`
}

// CommentWithReplies - ответ на запрос комментария с его ответами.
type CommentWithReplies struct {
	Comment *Comment `json:"comment"`
	Replies Replies  `json:"replies"`
}

// LikeResult - каноничное состояние лайков после like/unlike.
type LikeResult struct {
	LikedBy   []string `json:"likedBy"`
	IsLikedBy bool     `json:"isLikedBy"`
}

// CreateCommentInput - данные для создания комментария или ответа.
type CreateCommentInput struct {
	PostID          string     `json:"postId"`
	Content         string     `json:"content"`
	ParentCommentID *string    `json:"parentCommentId,omitempty"`
	ReplyToUserID   *string    `json:"replyToUserId,omitempty"`
	FontStyle       *FontStyle `json:"fontStyle,omitempty"`
}

// ListQuery - параметры выборки корневых комментариев.
type ListQuery struct {
	PostID   string
	Page     int
	PageSize int
	Search   string
	Status   string
}

// EventType - вид живого события по комментариям поста.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
	EventLiked   EventType = "liked"
)

// CommentEvent - событие, рассылаемое подписчикам поста.
type CommentEvent struct {
	Type    EventType `json:"type"`
	PostID  string    `json:"postId"`
	Comment *Comment  `json:"comment"`
}
