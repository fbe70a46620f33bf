package thread

import (
	"sort"

	"github.com/UkralStul/threaded-comments/internal/domain"
)

// MergeResult - объединенный список ответов и их авторитетное количество.
type MergeResult struct {
	Replies []*domain.Comment
	Count   int
}

// MergeReplies объединяет ответы, известные клиенту, со свежей выборкой сервера.
//
// Каждый id встречается ровно один раз; при совпадении остается локальная копия,
// потому что она может нести еще не подтвержденное состояние. Пустой ответ
// сервера не стирает локальные ответы: реплика могла еще не догнать запись.
// Результат отсортирован по CreatedAt, новые первыми.
func MergeReplies(local, fetched []*domain.Comment, serverTotal int) MergeResult {
	seen := make(map[string]struct{}, len(local)+len(fetched))
	merged := make([]*domain.Comment, 0, len(local)+len(fetched))

	for _, list := range [][]*domain.Comment{local, fetched} {
		for _, c := range list {
			if c == nil {
				continue
			}
			if _, dup := seen[c.ID]; dup {
				continue
			}
			seen[c.ID] = struct{}{}
			merged = append(merged, c)
		}
	}

	SortNewestFirst(merged)

	count := len(merged)
	if serverTotal > count {
		count = serverTotal
	}
	return MergeResult{Replies: merged, Count: count}
}

// SortNewestFirst упорядочивает комментарии по убыванию времени создания.
// Равные времена сохраняют порядок поступления.
func SortNewestFirst(comments []*domain.Comment) {
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.After(comments[j].CreatedAt)
	})
}
