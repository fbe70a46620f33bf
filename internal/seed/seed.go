// Package seed заполняет хранилище демонстрационными данными.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/UkralStul/threaded-comments/internal/domain"
	"github.com/UkralStul/threaded-comments/internal/storage"
)

// Options задают объем данных.
type Options struct {
	Users    int
	Roots    int
	MaxDepth int
	// Seed фиксирует генератор; 0 - случайные данные.
	Seed int64
}

// Result - созданные посты.
type Result struct {
	Post         *domain.Post
	DisabledPost *domain.Post
	Users        []*domain.User
	Comments     int
}

// Demo создает пост с деревом комментариев, лайками и второй пост с
// выключенными комментариями.
func Demo(ctx context.Context, s storage.Storage, opts Options) (*Result, error) {
	if opts.Users <= 1 {
		opts.Users = 6
	}
	if opts.Roots <= 0 {
		opts.Roots = 12
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 3
	}
	faker := gofakeit.New(opts.Seed)
	res := &Result{}

	// 1. Пользователи
	for i := 0; i < opts.Users; i++ {
		u, err := s.SaveUser(ctx, &domain.User{
			ID:              fmt.Sprintf("user-%d", i+1),
			Username:        fmt.Sprintf("%s%d", faker.Username(), i+1),
			FullName:        faker.Name(),
			ProfileImageURL: faker.URL(),
		})
		if err != nil {
			return nil, fmt.Errorf("seed user: %w", err)
		}
		res.Users = append(res.Users, u)
	}
	res.Users[0].Badge = "author"
	if _, err := s.SaveUser(ctx, res.Users[0]); err != nil {
		return nil, fmt.Errorf("seed user: %w", err)
	}

	// 2. Пост с включенными комментариями
	post, err := s.CreatePost(ctx, &domain.Post{
		Title:           faker.Sentence(6),
		AuthorID:        res.Users[0].ID,
		CommentsEnabled: true,
	})
	if err != nil {
		return nil, fmt.Errorf("seed post: %w", err)
	}
	res.Post = post

	// 3. Дерево комментариев
	for i := 0; i < opts.Roots; i++ {
		n, err := seedBranch(ctx, s, faker, res, nil, 0, opts.MaxDepth)
		if err != nil {
			return nil, err
		}
		res.Comments += n
	}

	// 4. Пост с выключенными комментариями
	res.DisabledPost, err = s.CreatePost(ctx, &domain.Post{
		Title:           faker.Sentence(4),
		AuthorID:        res.Users[0].ID,
		CommentsEnabled: false,
	})
	if err != nil {
		return nil, fmt.Errorf("seed disabled post: %w", err)
	}
	return res, nil
}

// seedBranch создает комментарий и случайное число ответов под ним.
func seedBranch(ctx context.Context, s storage.Storage, faker *gofakeit.Faker, res *Result, parent *domain.CommentRecord, depth, maxDepth int) (int, error) {
	author := res.Users[faker.Number(0, len(res.Users)-1)]
	record := &domain.CommentRecord{
		PostID:   res.Post.ID,
		AuthorID: author.ID,
		Content:  faker.Sentence(faker.Number(3, 20)),
	}
	if parent != nil {
		record.ParentID = &parent.ID
		if depth >= 2 {
			record.ReplyToUserID = &parent.AuthorID
		}
	}
	if faker.Number(0, 4) == 0 {
		record.FontFamily = faker.RandomString([]string{"serif", "monospace", "cursive"})
		record.FontSize = faker.RandomString([]string{string(domain.FontSizeSmall), string(domain.FontSizeMedium), string(domain.FontSizeLarge)})
	}
	c, err := s.CreateComment(ctx, record, maxDepth)
	if err != nil {
		return 0, fmt.Errorf("seed comment: %w", err)
	}

	for _, u := range res.Users {
		if u.ID == c.AuthorID || !faker.Bool() {
			continue
		}
		if _, err := s.LikeComment(ctx, c.ID, u.ID); err != nil && !errors.Is(err, domain.ErrConflict) {
			return 0, fmt.Errorf("seed like: %w", err)
		}
	}

	created := 1
	if depth >= maxDepth {
		return created, nil
	}
	for i := faker.Number(0, max(0, 3-depth)); i > 0; i-- {
		n, err := seedBranch(ctx, s, faker, res, c, depth+1, maxDepth)
		if err != nil {
			return 0, err
		}
		created += n
	}
	return created, nil
}
