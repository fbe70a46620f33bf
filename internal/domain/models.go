package domain

import "time"

// Post представляет пост, к которому пишутся комментарии.
type Post struct {
	ID              string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Title           string    `json:"title" gorm:"type:varchar(255);not null"`
	AuthorID        string    `json:"authorId" gorm:"type:varchar(255);not null"`
	CommentsEnabled bool      `json:"commentsEnabled" gorm:"not null;default:true"`
	CreatedAt       time.Time `json:"createdAt" gorm:"not null;default:now()"`
}

// User - профиль автора в том виде, в каком его хранит бэкенд.
type User struct {
	ID              string `json:"id" gorm:"type:varchar(255);primary_key"`
	Username        string `json:"username" gorm:"type:varchar(255);not null;uniqueIndex"`
	FullName        string `json:"fullName" gorm:"type:varchar(255)"`
	ProfileImageURL string `json:"profileImageUrl" gorm:"type:text"`
	Badge           string `json:"badge" gorm:"type:varchar(64)"`
}

// CommentRecord - хранимая запись комментария.
type CommentRecord struct {
	ID            string    `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	PostID        string    `gorm:"type:uuid;not null;index"`
	ParentID      *string   `gorm:"type:uuid;index"`
	AuthorID      string    `gorm:"type:varchar(255);not null"`
	ReplyToUserID *string   `gorm:"type:varchar(255)"`
	Content       string    `gorm:"type:varchar(2000);not null"`
	FontFamily    string    `gorm:"type:varchar(64)"`
	FontSize      string    `gorm:"type:varchar(16)"`
	Depth         int       `gorm:"not null;default:0"`
	Edited        bool      `gorm:"not null;default:false"`
	CreatedAt     time.Time `gorm:"not null;default:now();index"`
	UpdatedAt     time.Time
}

// TableName оставляет таблице привычное имя.
func (CommentRecord) TableName() string { return "comments" }

// CommentLike - отметка "нравится" пользователя на комментарии.
type CommentLike struct {
	CommentID string    `gorm:"type:uuid;primaryKey"`
	UserID    string    `gorm:"type:varchar(255);primaryKey;index"`
	CreatedAt time.Time `gorm:"not null;default:now()"`
}

// MaxContentLength - ограничение длины текста комментария.
const MaxContentLength = 2000
