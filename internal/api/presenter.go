package api

import (
	"context"
	"fmt"

	"github.com/jinzhu/copier"
	"github.com/thoas/go-funk"

	"github.com/UkralStul/threaded-comments/internal/dataloader"
	"github.com/UkralStul/threaded-comments/internal/domain"
)

// present собирает клиентские представления записей: авторов, лайки и
// число ответов подгружаем батчами через лоадеры запроса.
func present(ctx context.Context, viewer string, records []*domain.CommentRecord) ([]*domain.Comment, error) {
	out := make([]*domain.Comment, 0, len(records))
	if len(records) == 0 {
		return out, nil
	}
	loaders := dataloader.For(ctx)

	ids := make([]string, 0, len(records))
	userIDs := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
		userIDs = append(userIDs, r.AuthorID)
		if r.ReplyToUserID != nil {
			userIDs = append(userIDs, *r.ReplyToUserID)
		}
	}

	counts, err := loaders.ReplyCounts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("reply counts: %w", err)
	}
	likes, err := loaders.Likes(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("likes: %w", err)
	}
	users, err := loaders.Users(ctx, funk.UniqString(userIDs))
	if err != nil {
		return nil, fmt.Errorf("users: %w", err)
	}

	for _, r := range records {
		c := baseView(r)
		if u, ok := users[r.AuthorID]; ok && u != nil {
			author, err := summaryOf(u)
			if err != nil {
				return nil, fmt.Errorf("author %s: %w", u.ID, err)
			}
			c.Author = domain.ResolvedAuthor(author)
		}
		if c.ReplyTo != nil {
			if u, ok := users[c.ReplyTo.ID]; ok && u != nil {
				c.ReplyTo.Username = u.Username
			}
		}
		likedBy := likes[r.ID]
		if likedBy == nil {
			likedBy = []string{}
		}
		c.LikedBy = likedBy
		c.LikesCount = len(likedBy)
		c.IsLiked = viewer != "" && funk.ContainsString(likedBy, viewer)
		c.ReplyCount = counts[r.ID]
		out = append(out, c)
	}
	return out, nil
}

// baseView переносит поля записи без обращения к хранилищу; автор остается голым id.
func baseView(r *domain.CommentRecord) *domain.Comment {
	c := &domain.Comment{
		ID:              r.ID,
		PostID:          r.PostID,
		ParentCommentID: r.ParentID,
		Author:          domain.UnresolvedAuthor(r.AuthorID),
		Content:         r.Content,
		Depth:           r.Depth,
		Edited:          r.Edited,
		CreatedAt:       r.CreatedAt,
	}
	if r.FontFamily != "" || r.FontSize != "" {
		c.FontStyle = &domain.FontStyle{Family: r.FontFamily, Size: domain.FontSize(r.FontSize)}
	}
	if r.ReplyToUserID != nil {
		c.ReplyTo = &domain.UserRef{ID: *r.ReplyToUserID}
	}
	return c
}

// summaryOf переводит профиль в карточку автора.
func summaryOf(u *domain.User) (domain.UserSummary, error) {
	var s domain.UserSummary
	if err := copier.Copy(&s, u); err != nil {
		return domain.UserSummary{}, err
	}
	return s, nil
}
