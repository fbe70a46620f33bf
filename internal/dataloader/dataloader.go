package dataloader

import (
	"context"
	"net/http"
	"time"

	"github.com/graph-gophers/dataloader"

	"github.com/UkralStul/threaded-comments/internal/domain"
	"github.com/UkralStul/threaded-comments/internal/storage"
)

type contextKey string

const key = contextKey("dataloaders")

// Loaders содержит все дата-лоадеры приложения.
type Loaders struct {
	ChildrenByCommentID *dataloader.Loader
	ReplyCountByID      *dataloader.Loader
	LikesByCommentID    *dataloader.Loader
	UserByID            *dataloader.Loader
}

// batch превращает пакетный метод хранилища в батч-функцию лоадера.
func batch[T any](fetch func(ctx context.Context, ids []string) (map[string]T, error)) dataloader.BatchFunc {
	return func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		// Преобразуем ключи в []string
		ids := keys.Keys()

		// Вызываем метод хранилища, который делает ОДИН запрос к БД
		found, err := fetch(ctx, ids)
		results := make([]*dataloader.Result, len(keys))
		if err != nil {
			// В случае ошибки, возвращаем ее для всех ключей
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		// Формируем результат в том же порядке, что и ключи
		for i, id := range ids {
			res := &dataloader.Result{}
			if v, ok := found[id]; ok {
				res.Data = v
			}
			results[i] = res
		}
		return results
	}
}

// NewLoaders создает лоадеры поверх хранилища. Кэш лоадеров живет один запрос.
func NewLoaders(store storage.Storage) *Loaders {
	wait := dataloader.WithWait(time.Millisecond * 1)
	return &Loaders{
		ChildrenByCommentID: dataloader.NewBatchedLoader(batch(store.GetCommentsByParentIDs), wait),
		ReplyCountByID:      dataloader.NewBatchedLoader(batch(store.CountDescendants), wait),
		LikesByCommentID:    dataloader.NewBatchedLoader(batch(store.GetLikesByCommentIDs), wait),
		UserByID:            dataloader.NewBatchedLoader(batch(store.GetUsersByIDs), wait),
	}
}

// Middleware для внедрения лоадеров в контекст запроса.
func Middleware(store storage.Storage, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Помещаем их в контекст
		ctx := context.WithValue(r.Context(), key, NewLoaders(store))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// For извлекает лоадеры из контекста.
func For(ctx context.Context) *Loaders {
	return ctx.Value(key).(*Loaders)
}

// Children возвращает прямые ответы комментария, новые первыми.
func (l *Loaders) Children(ctx context.Context, commentID string) ([]*domain.CommentRecord, error) {
	v, err := l.ChildrenByCommentID.Load(ctx, dataloader.StringKey(commentID))()
	if err != nil {
		return nil, err
	}
	children, _ := v.([]*domain.CommentRecord)
	return children, nil
}

// ReplyCounts возвращает число всех потомков для каждого id.
func (l *Loaders) ReplyCounts(ctx context.Context, ids []string) (map[string]int, error) {
	return loadMany[int](ctx, l.ReplyCountByID, ids)
}

// Likes возвращает лайкнувших пользователей для каждого id.
func (l *Loaders) Likes(ctx context.Context, ids []string) (map[string][]string, error) {
	return loadMany[[]string](ctx, l.LikesByCommentID, ids)
}

// Users возвращает известные профили; отсутствующих в карте нет.
func (l *Loaders) Users(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	return loadMany[*domain.User](ctx, l.UserByID, ids)
}

func loadMany[T any](ctx context.Context, loader *dataloader.Loader, ids []string) (map[string]T, error) {
	out := make(map[string]T, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	data, errs := loader.LoadMany(ctx, dataloader.NewKeysFromStrings(ids))()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	for i, id := range ids {
		if v, ok := data[i].(T); ok {
			out[id] = v
		}
	}
	return out, nil
}
