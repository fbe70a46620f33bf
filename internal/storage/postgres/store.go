package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/thoas/go-funk"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/UkralStul/threaded-comments/internal/domain"
	"github.com/UkralStul/threaded-comments/internal/storage"
)

// Store реализует интерфейс Storage с использованием PostgreSQL.
type Store struct {
	db *gorm.DB
}

var _ storage.Storage = (*Store)(nil)

// New создает новый экземпляр хранилища PostgreSQL.
func New(dsn string, debug bool) (*Store, error) {
	level := logger.Warn
	if debug {
		level = logger.Info
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Выполняем миграцию схемы
	if err := db.AutoMigrate(&domain.Post{}, &domain.User{}, &domain.CommentRecord{}, &domain.CommentLike{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// subtreeCTE выбирает id комментария и всех его потомков.
const subtreeCTE = `
WITH RECURSIVE subtree AS (
	SELECT id FROM comments WHERE id = ?
	UNION ALL
	SELECT c.id FROM comments c JOIN subtree s ON c.parent_id = s.id
)
SELECT id FROM subtree`

func notFound(what, id string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", what, id, domain.ErrNotFound)
	}
	return err
}

// === Post Methods ===

func (s *Store) CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	if err := s.db.WithContext(ctx).Create(post).Error; err != nil {
		return nil, err
	}
	// GORM автоматически заполнит ID и CreatedAt после создания
	return post, nil
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*domain.Post, error) {
	var post domain.Post
	if err := s.db.WithContext(ctx).First(&post, "id = ?", id).Error; err != nil {
		return nil, notFound("post", id, err)
	}
	return &post, nil
}

func (s *Store) GetPosts(ctx context.Context, limit, offset int) ([]*domain.Post, error) {
	var posts []*domain.Post
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Offset(offset).Find(&posts).Error
	return posts, err
}

func (s *Store) ToggleComments(ctx context.Context, postID string, enable bool) (*domain.Post, error) {
	var post domain.Post
	// Используем транзакцию для атомарности операции чтения-записи
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&post, "id = ?", postID).Error; err != nil {
			return notFound("post", postID, err)
		}
		post.CommentsEnabled = enable
		return tx.Save(&post).Error
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// === User Methods ===

func (s *Store) SaveUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "full_name", "profile_image_url", "badge"}),
	}).Create(user).Error
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	out := make(map[string]*domain.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []*domain.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

// === Comment Methods ===

func (s *Store) CreateComment(ctx context.Context, comment *domain.CommentRecord, maxDepth int) (*domain.CommentRecord, error) {
	// Валидация
	if len(comment.Content) > domain.MaxContentLength {
		return nil, domain.ErrContentTooLong
	}
	if strings.TrimSpace(comment.Content) == "" {
		return nil, domain.ErrEmptyContent
	}

	// Проверяем пост, разрешение на комментирование и родителя в одной транзакции
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post domain.Post
		if err := tx.Select("comments_enabled").First(&post, "id = ?", comment.PostID).Error; err != nil {
			return notFound("post", comment.PostID, err)
		}
		if !post.CommentsEnabled {
			return domain.ErrCommentsDisabled
		}

		comment.Depth = 0
		if comment.ParentID != nil {
			var parent domain.CommentRecord
			err := tx.Select("id", "post_id", "depth").First(&parent, "id = ?", *comment.ParentID).Error
			if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && parent.PostID != comment.PostID) {
				return domain.ErrParentNotFound
			}
			if err != nil {
				return err
			}
			comment.Depth = parent.Depth + 1
			if maxDepth > 0 && comment.Depth > maxDepth {
				return domain.ErrMaxDepth
			}
		}

		comment.Edited = false
		return tx.Create(comment).Error
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *Store) GetCommentByID(ctx context.Context, id string) (*domain.CommentRecord, error) {
	var comment domain.CommentRecord
	if err := s.db.WithContext(ctx).First(&comment, "id = ?", id).Error; err != nil {
		return nil, notFound("comment", id, err)
	}
	return &comment, nil
}

func (s *Store) UpdateComment(ctx context.Context, id, authorID, content string) (*domain.CommentRecord, error) {
	if len(content) > domain.MaxContentLength {
		return nil, domain.ErrContentTooLong
	}
	if strings.TrimSpace(content) == "" {
		return nil, domain.ErrEmptyContent
	}

	var comment domain.CommentRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&comment, "id = ?", id).Error; err != nil {
			return notFound("comment", id, err)
		}
		if comment.AuthorID != authorID {
			return domain.ErrForbidden
		}
		comment.Content = content
		comment.Edited = true
		comment.UpdatedAt = time.Now().UTC()
		return tx.Model(&comment).Select("content", "edited", "updated_at").Updates(&comment).Error
	})
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

func (s *Store) DeleteComment(ctx context.Context, id, authorID string) ([]string, error) {
	var removed []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comment domain.CommentRecord
		if err := tx.Select("id", "author_id").First(&comment, "id = ?", id).Error; err != nil {
			return notFound("comment", id, err)
		}
		if comment.AuthorID != authorID {
			return domain.ErrForbidden
		}
		if err := tx.Raw(subtreeCTE, id).Scan(&removed).Error; err != nil {
			return err
		}
		if err := tx.Where("comment_id IN ?", removed).Delete(&domain.CommentLike{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", removed).Delete(&domain.CommentRecord{}).Error
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// === Pagination Methods ===

func (s *Store) ListRootComments(ctx context.Context, f storage.RootFilter, args storage.PaginationArgs) ([]*domain.CommentRecord, int, error) {
	// Выбираем только комментарии верхнего уровня для поста (parent_id IS NULL)
	query := s.db.WithContext(ctx).Model(&domain.CommentRecord{}).
		Where("post_id = ? AND parent_id IS NULL", f.PostID)
	if search := strings.TrimSpace(f.Search); search != "" {
		query = query.Where("content ILIKE ?", "%"+search+"%")
	}
	switch f.Status {
	case storage.StatusEdited:
		query = query.Where("edited")
	case storage.StatusUnanswered:
		query = query.Where("NOT EXISTS (SELECT 1 FROM comments r WHERE r.parent_id = comments.id)")
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var comments []*domain.CommentRecord
	q := query.Order("created_at DESC").Offset(args.Offset)
	if args.Limit > 0 {
		q = q.Limit(args.Limit)
	}
	if err := q.Find(&comments).Error; err != nil {
		return nil, 0, err
	}
	return comments, int(total), nil
}

func (s *Store) GetCommentsByParentID(ctx context.Context, parentID string) ([]*domain.CommentRecord, error) {
	var comments []*domain.CommentRecord
	err := s.db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Order("created_at DESC").
		Find(&comments).Error
	return comments, err
}

// === Dataloader Methods ===

func (s *Store) GetCommentsByParentIDs(ctx context.Context, parentIDs []string) (map[string][]*domain.CommentRecord, error) {
	var comments []*domain.CommentRecord
	// Загружаем все дочерние комментарии для всех переданных parentID одним запросом
	err := s.db.WithContext(ctx).
		Where("parent_id IN ?", parentIDs).
		Order("parent_id, created_at DESC").
		Find(&comments).Error
	if err != nil {
		return nil, err
	}

	// Группируем результаты в карту map[parentID][]*CommentRecord
	result := make(map[string][]*domain.CommentRecord, len(parentIDs))
	for _, c := range comments {
		if c.ParentID != nil {
			result[*c.ParentID] = append(result[*c.ParentID], c)
		}
	}
	return result, nil
}

func (s *Store) CountDescendants(ctx context.Context, ids []string) (map[string]int, error) {
	type row struct {
		RootID string
		Total  int
	}
	var rows []row
	err := s.db.WithContext(ctx).Raw(`
WITH RECURSIVE tree AS (
	SELECT id AS root_id, id FROM comments WHERE id IN ?
	UNION ALL
	SELECT t.root_id, c.id FROM comments c JOIN tree t ON c.parent_id = t.id
)
SELECT root_id, COUNT(*) - 1 AS total FROM tree GROUP BY root_id`, ids).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make(map[string]int, len(ids))
	for _, r := range rows {
		result[r.RootID] = r.Total
	}
	return result, nil
}

func (s *Store) GetLikesByCommentIDs(ctx context.Context, ids []string) (map[string][]string, error) {
	var likes []domain.CommentLike
	err := s.db.WithContext(ctx).
		Where("comment_id IN ?", ids).
		Order("created_at ASC").
		Find(&likes).Error
	if err != nil {
		return nil, err
	}

	result := make(map[string][]string, len(ids))
	for _, l := range likes {
		result[l.CommentID] = append(result[l.CommentID], l.UserID)
	}
	return result, nil
}

// === Like Methods ===

func (s *Store) LikeComment(ctx context.Context, commentID, userID string) ([]string, error) {
	var likedBy []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comment domain.CommentRecord
		if err := tx.Select("id", "author_id").First(&comment, "id = ?", commentID).Error; err != nil {
			return notFound("comment", commentID, err)
		}
		if comment.AuthorID == userID {
			return domain.ErrSelfLike
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&domain.CommentLike{CommentID: commentID, UserID: userID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrAlreadyLiked
		}
		var err error
		likedBy, err = likers(tx, commentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return likedBy, nil
}

func (s *Store) UnlikeComment(ctx context.Context, commentID, userID string) ([]string, error) {
	var likedBy []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&domain.CommentRecord{}).Where("id = ?", commentID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return fmt.Errorf("comment %s: %w", commentID, domain.ErrNotFound)
		}
		res := tx.Delete(&domain.CommentLike{}, "comment_id = ? AND user_id = ?", commentID, userID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrLikeNotFound
		}
		var err error
		likedBy, err = likers(tx, commentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return likedBy, nil
}

func likers(tx *gorm.DB, commentID string) ([]string, error) {
	var likes []domain.CommentLike
	if err := tx.Where("comment_id = ?", commentID).Order("created_at ASC").Find(&likes).Error; err != nil {
		return nil, err
	}
	ids := funk.Map(likes, func(l domain.CommentLike) string { return l.UserID }).([]string)
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}
