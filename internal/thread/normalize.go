package thread

import (
	"github.com/thoas/go-funk"
	"go.uber.org/zap"

	"github.com/UkralStul/threaded-comments/internal/domain"
)

// PlaceholderName подставляется вместо неизвестного имени автора.
const PlaceholderName = "User"

// Normalizer приводит автора комментария к заполненному профилю, чтобы
// отрисовка никогда не ветвилась по форме поля user.
// Не безопасен для конкурентного использования: Thread вызывает его под своей блокировкой.
type Normalizer struct {
	viewer *domain.UserSummary
	known  map[string]domain.UserSummary
	log    *zap.Logger
}

// NewNormalizer создает нормализатор. viewer может быть nil для анонимного просмотра.
func NewNormalizer(viewer *domain.UserSummary, log *zap.Logger) *Normalizer {
	if log == nil {
		log = zap.NewNop()
	}
	n := &Normalizer{viewer: viewer, known: make(map[string]domain.UserSummary), log: log}
	if viewer != nil {
		n.known[viewer.ID] = *viewer
	}
	return n
}

// Normalize нормализует комментарий верхнего уровня или отдельно пришедший ответ
// вместе со всеми вложенными ответами. Повторный вызов ничего не меняет.
func (n *Normalizer) Normalize(c *domain.Comment) *domain.Comment {
	if c == nil {
		return nil
	}
	depth := c.Depth
	if !c.IsReply() {
		depth = 0
	} else if depth < 1 {
		depth = 1
	}
	n.normalize(c, depth)
	return c
}

// NormalizeChild нормализует ответ на parent: глубина всегда parent.Depth+1.
func (n *Normalizer) NormalizeChild(c, parent *domain.Comment) *domain.Comment {
	if c == nil {
		return nil
	}
	if c.ParentCommentID == nil {
		id := parent.ID
		c.ParentCommentID = &id
	} else if *c.ParentCommentID != parent.ID {
		n.log.Warn("reply attached to a different parent",
			zap.String("comment_id", c.ID),
			zap.String("parent_comment_id", *c.ParentCommentID),
			zap.String("attached_to", parent.ID))
	}
	n.normalize(c, parent.Depth+1)
	return c
}

func (n *Normalizer) normalize(c *domain.Comment, depth int) {
	c.Depth = depth
	c.Author = n.resolve(c)

	if c.LikedBy != nil {
		c.LikesCount = len(c.LikedBy)
		if n.viewer != nil {
			c.IsLiked = funk.ContainsString(c.LikedBy, n.viewer.ID)
		}
	}
	if c.LikesCount < 0 {
		c.LikesCount = 0
	}

	replies := c.Replies[:0]
	for _, r := range c.Replies {
		if r == nil {
			continue
		}
		id := c.ID
		if r.ParentCommentID == nil {
			r.ParentCommentID = &id
		}
		n.normalize(r, depth+1)
		replies = append(replies, r)
	}
	c.Replies = replies
	if c.ReplyCount < len(c.Replies) {
		c.ReplyCount = len(c.Replies)
	}
}

func (n *Normalizer) resolve(c *domain.Comment) domain.Author {
	if u, ok := c.Author.User(); ok {
		u = withDefaults(u)
		n.known[u.ID] = u
		return domain.ResolvedAuthor(u)
	}

	id := c.Author.ID()
	if u, ok := n.known[id]; ok && id != "" {
		return domain.ResolvedAuthor(u)
	}

	n.log.Debug("comment author not resolved, using placeholder",
		zap.String("comment_id", c.ID),
		zap.String("author_id", id))
	return domain.ResolvedAuthor(withDefaults(domain.UserSummary{ID: id}))
}

func withDefaults(u domain.UserSummary) domain.UserSummary {
	if u.Username == "" {
		u.Username = PlaceholderName
	}
	if u.FullName == "" {
		u.FullName = u.Username
	}
	return u
}
