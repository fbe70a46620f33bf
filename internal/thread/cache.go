package thread

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/UkralStul/threaded-comments/internal/domain"
)

// ReplyCache хранит ответы, известные клиенту, по постам: postID -> parentID -> ответы.
// Живет столько же, сколько представление, которое его создало; при вытеснении
// поста из LRU его локальные ответы будут заново получены с сервера.
type ReplyCache struct {
	mu    sync.Mutex
	posts *lru.Cache[string, map[string][]*domain.Comment]
}

// NewReplyCache создает кэш, помнящий ответы не более чем для size постов.
func NewReplyCache(size int) (*ReplyCache, error) {
	posts, err := lru.New[string, map[string][]*domain.Comment](size)
	if err != nil {
		return nil, fmt.Errorf("reply cache: %w", err)
	}
	return &ReplyCache{posts: posts}, nil
}

// Get возвращает копию списка ответов родителя.
func (c *ReplyCache) Get(postID, parentID string) ([]*domain.Comment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	parents, ok := c.posts.Get(postID)
	if !ok {
		return nil, false
	}
	replies, ok := parents[parentID]
	if !ok {
		return nil, false
	}
	return append([]*domain.Comment(nil), replies...), true
}

// Set заменяет список ответов родителя.
func (c *ReplyCache) Set(postID, parentID string, replies []*domain.Comment) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.parents(postID)[parentID] = append([]*domain.Comment(nil), replies...)
}

// Add добавляет ответ в начало списка. Если ответ с таким id уже есть, он заменяется на месте.
func (c *ReplyCache) Add(postID, parentID string, reply *domain.Comment) {
	c.mu.Lock()
	defer c.mu.Unlock()

	parents := c.parents(postID)
	replies := parents[parentID]
	for i, r := range replies {
		if r.ID == reply.ID {
			replies[i] = reply
			return
		}
	}
	parents[parentID] = append([]*domain.Comment{reply}, replies...)
}

// Replace подменяет ответ oldID на reply, не допуская дублей reply.ID.
func (c *ReplyCache) Replace(postID, parentID, oldID string, reply *domain.Comment) {
	c.mu.Lock()
	defer c.mu.Unlock()

	parents := c.parents(postID)
	replies := parents[parentID]
	out := make([]*domain.Comment, 0, len(replies)+1)
	placed := false
	for _, r := range replies {
		switch r.ID {
		case oldID, reply.ID:
			if !placed {
				out = append(out, reply)
				placed = true
			}
		default:
			out = append(out, r)
		}
	}
	if !placed {
		out = append([]*domain.Comment{reply}, out...)
	}
	parents[parentID] = out
}

// Remove удаляет ответ из списка родителя.
func (c *ReplyCache) Remove(postID, parentID, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	parents, ok := c.posts.Get(postID)
	if !ok {
		return
	}
	replies := parents[parentID]
	for i, r := range replies {
		if r.ID == id {
			parents[parentID] = append(replies[:i:i], replies[i+1:]...)
			return
		}
	}
}

// Invalidate забывает все локальные ответы поста.
func (c *ReplyCache) Invalidate(postID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.posts.Remove(postID)
}

func (c *ReplyCache) parents(postID string) map[string][]*domain.Comment {
	parents, ok := c.posts.Get(postID)
	if !ok {
		parents = make(map[string][]*domain.Comment)
		c.posts.Add(postID, parents)
	}
	return parents
}
