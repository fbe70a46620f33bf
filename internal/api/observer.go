package api

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/UkralStul/threaded-comments/internal/domain"
)

const subscriberBuffer = 16

// CommentObserver хранит каналы для подписчиков на события комментариев.
type CommentObserver struct {
	mu sync.RWMutex
	//          map[postID] map[subscriberID] channel
	subs map[string]map[string]chan domain.CommentEvent
	log  *zap.Logger
}

// NewCommentObserver - конструктор для нашего наблюдателя.
func NewCommentObserver(log *zap.Logger) *CommentObserver {
	if log == nil {
		log = zap.NewNop()
	}
	return &CommentObserver{
		subs: make(map[string]map[string]chan domain.CommentEvent),
		log:  log,
	}
}

// Subscribe регистрирует подписчика поста. cancel снимает подписку и закрывает канал.
func (o *CommentObserver) Subscribe(postID string) (<-chan domain.CommentEvent, func()) {
	ch := make(chan domain.CommentEvent, subscriberBuffer)
	subID := uuid.NewString()

	o.mu.Lock()
	if o.subs[postID] == nil {
		o.subs[postID] = make(map[string]chan domain.CommentEvent)
	}
	o.subs[postID][subID] = ch
	o.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			o.mu.Lock()
			if postSubs, ok := o.subs[postID]; ok {
				delete(postSubs, subID)
				if len(postSubs) == 0 {
					delete(o.subs, postID)
				}
			}
			o.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish рассылает событие подписчикам поста. Медленный подписчик теряет
// событие, мутация при этом не блокируется.
func (o *CommentObserver) Publish(ev domain.CommentEvent) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for subID, ch := range o.subs[ev.PostID] {
		select {
		case ch <- ev:
		default:
			o.log.Warn("dropping comment event for slow subscriber",
				zap.String("post_id", ev.PostID),
				zap.String("subscriber", subID),
				zap.String("type", string(ev.Type)))
		}
	}
}

// Subscribers возвращает число подписчиков поста.
func (o *CommentObserver) Subscribers(postID string) int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.subs[postID])
}
