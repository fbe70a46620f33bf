package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/UkralStul/threaded-comments/internal/domain"
)

// Subscribe открывает поток живых событий поста. Канал закрывается, когда
// соединение рвется или ctx отменен.
func (c *Client) Subscribe(ctx context.Context, postID string) (<-chan domain.CommentEvent, error) {
	u := c.base.JoinPath(pathOf("posts", postID, "events"))
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	header := http.Header{}
	if c.userID != "" {
		header.Set(HeaderUserID, c.userID)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil && resp.StatusCode >= http.StatusBadRequest {
			defer resp.Body.Close()
			return nil, decodeError(resp)
		}
		return nil, fmt.Errorf("subscribe to post %s: %w", postID, err)
	}

	events := make(chan domain.CommentEvent)
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			// ReadJSON ниже вернет ошибку и закроет канал
			_ = conn.Close()
		case <-done:
		}
	}()
	go func() {
		defer close(events)
		defer close(done)
		defer conn.Close()
		for {
			var ev domain.CommentEvent
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}
