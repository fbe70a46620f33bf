package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/thoas/go-funk"
	"go.uber.org/zap"

	"github.com/UkralStul/threaded-comments/internal/dataloader"
	"github.com/UkralStul/threaded-comments/internal/domain"
	"github.com/UkralStul/threaded-comments/internal/storage"
)

const writeWait = 10 * time.Second

// === Posts ===

type createPostRequest struct {
	Title           string `json:"title"`
	CommentsEnabled *bool  `json:"commentsEnabled"`
}

type togglePostRequest struct {
	CommentsEnabled bool `json:"commentsEnabled"`
}

func (s *Server) listPosts(w http.ResponseWriter, r *http.Request) error {
	limit := QueryInt(r, "limit", 20)
	if limit < 1 || limit > maxPageSize {
		limit = 20
	}
	offset := QueryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	posts, err := s.store.GetPosts(r.Context(), limit, offset)
	if err != nil {
		return err
	}
	WriteJSON(w, posts, http.StatusOK)
	return nil
}

func (s *Server) createPost(w http.ResponseWriter, r *http.Request) error {
	uid, err := requireViewer(r)
	if err != nil {
		return err
	}
	req, err := Decode[createPostRequest](r)
	if err != nil {
		return err
	}
	if strings.TrimSpace(req.Title) == "" {
		return badRequest("title is required")
	}
	enabled := true
	if req.CommentsEnabled != nil {
		enabled = *req.CommentsEnabled
	}
	post, err := s.store.CreatePost(r.Context(), &domain.Post{Title: req.Title, AuthorID: uid, CommentsEnabled: enabled})
	if err != nil {
		return err
	}
	WriteJSON(w, post, http.StatusCreated)
	return nil
}

func (s *Server) getPost(w http.ResponseWriter, r *http.Request) error {
	post, err := s.store.GetPostByID(r.Context(), chi.URLParam(r, "postID"))
	if err != nil {
		return err
	}
	WriteJSON(w, post, http.StatusOK)
	return nil
}

func (s *Server) togglePostComments(w http.ResponseWriter, r *http.Request) error {
	uid, err := requireViewer(r)
	if err != nil {
		return err
	}
	req, err := Decode[togglePostRequest](r)
	if err != nil {
		return err
	}
	postID := chi.URLParam(r, "postID")
	post, err := s.store.GetPostByID(r.Context(), postID)
	if err != nil {
		return err
	}
	// Только автор поста может закрыть или открыть комментарии
	if post.AuthorID != uid {
		return domain.ErrForbidden
	}
	post, err = s.store.ToggleComments(r.Context(), postID, req.CommentsEnabled)
	if err != nil {
		return err
	}
	WriteJSON(w, post, http.StatusOK)
	return nil
}

// === Users ===

// getUser отдает карточку в том же виде, что и автор комментария.
func (s *Server) getUser(w http.ResponseWriter, r *http.Request) error {
	userID := chi.URLParam(r, "userID")
	users, err := dataloader.For(r.Context()).Users(r.Context(), []string{userID})
	if err != nil {
		return err
	}
	u, ok := users[userID]
	if !ok || u == nil {
		return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	summary, err := summaryOf(u)
	if err != nil {
		return fmt.Errorf("user %s: %w", userID, err)
	}
	WriteJSON(w, summary, http.StatusOK)
	return nil
}

func (s *Server) saveUser(w http.ResponseWriter, r *http.Request) error {
	uid, err := requireViewer(r)
	if err != nil {
		return err
	}
	userID := chi.URLParam(r, "userID")
	if uid != userID {
		return domain.ErrForbidden
	}
	user, err := Decode[domain.User](r)
	if err != nil {
		return err
	}
	if strings.TrimSpace(user.Username) == "" {
		return badRequest("username is required")
	}
	user.ID = userID
	saved, err := s.store.SaveUser(r.Context(), &user)
	if err != nil {
		return err
	}
	WriteJSON(w, saved, http.StatusOK)
	return nil
}

// === Comments ===

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	postID := chi.URLParam(r, "postID")

	page := QueryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	pageSize := QueryInt(r, "pageSize", defaultPageSize)
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	q := r.URL.Query()
	status := q.Get("status")
	if !funk.ContainsString([]string{storage.StatusAll, storage.StatusEdited, storage.StatusUnanswered}, status) {
		return badRequest(fmt.Sprintf("unknown status %q", status))
	}

	if _, err := s.store.GetPostByID(ctx, postID); err != nil {
		return err
	}
	records, total, err := s.store.ListRootComments(ctx,
		storage.RootFilter{PostID: postID, Search: q.Get("search"), Status: status},
		storage.PaginationArgs{Limit: pageSize, Offset: (page - 1) * pageSize})
	if err != nil {
		return err
	}
	comments, err := present(ctx, viewerID(r), records)
	if err != nil {
		return err
	}

	WriteJSON(w, domain.CommentPage{
		Comments:      comments,
		TotalComments: total,
		Page:          page,
		TotalPages:    (total + pageSize - 1) / pageSize,
	}, http.StatusOK)
	return nil
}

func (s *Server) getComment(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	record, err := s.store.GetCommentByID(ctx, chi.URLParam(r, "commentID"))
	if err != nil {
		return err
	}
	children, err := dataloader.For(ctx).Children(ctx, record.ID)
	if err != nil {
		return err
	}
	views, err := present(ctx, viewerID(r), append([]*domain.CommentRecord{record}, children...))
	if err != nil {
		return err
	}

	// totalReplies считает всех потомков, как и replyCount
	WriteJSON(w, domain.CommentWithReplies{
		Comment: views[0],
		Replies: domain.Replies{Comments: views[1:], TotalReplies: views[0].ReplyCount},
	}, http.StatusOK)
	return nil
}

func (s *Server) createComment(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	uid, err := requireViewer(r)
	if err != nil {
		return err
	}
	in, err := Decode[domain.CreateCommentInput](r)
	if err != nil {
		return err
	}
	postID := chi.URLParam(r, "postID")
	if in.PostID != "" && in.PostID != postID {
		return badRequest("postId does not match the path")
	}

	record := &domain.CommentRecord{
		PostID:        postID,
		ParentID:      in.ParentCommentID,
		AuthorID:      uid,
		ReplyToUserID: in.ReplyToUserID,
		Content:       in.Content,
	}
	if in.FontStyle != nil {
		if in.FontStyle.Size != "" && !in.FontStyle.Size.Valid() {
			return badRequest(fmt.Sprintf("unknown font size %q", in.FontStyle.Size))
		}
		record.FontFamily = in.FontStyle.Family
		record.FontSize = string(in.FontStyle.Size)
	}
	if record.ParentID != nil && *record.ParentID == "" {
		record.ParentID = nil
	}

	record, err = s.store.CreateComment(ctx, record, s.maxDepth)
	if err != nil {
		return err
	}

	// Подписчикам уходит полное представление, в ответе автор остается голым id
	if views, err := present(ctx, uid, []*domain.CommentRecord{record}); err != nil {
		s.log.Warn("present created comment", zap.String("comment_id", record.ID), zap.Error(err))
	} else {
		s.publish(domain.EventCreated, views[0])
	}

	created := baseView(record)
	created.LikedBy = []string{}
	WriteJSON(w, created, http.StatusCreated)
	return nil
}

type updateCommentRequest struct {
	Content string `json:"content"`
}

func (s *Server) updateComment(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	uid, err := requireViewer(r)
	if err != nil {
		return err
	}
	req, err := Decode[updateCommentRequest](r)
	if err != nil {
		return err
	}
	record, err := s.store.UpdateComment(ctx, chi.URLParam(r, "commentID"), uid, req.Content)
	if err != nil {
		return err
	}
	views, err := present(ctx, uid, []*domain.CommentRecord{record})
	if err != nil {
		return err
	}
	s.publish(domain.EventUpdated, views[0])
	WriteJSON(w, views[0], http.StatusOK)
	return nil
}

func (s *Server) deleteComment(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	uid, err := requireViewer(r)
	if err != nil {
		return err
	}
	record, err := s.store.GetCommentByID(ctx, chi.URLParam(r, "commentID"))
	if err != nil {
		return err
	}
	removed, err := s.store.DeleteComment(ctx, record.ID, uid)
	if err != nil {
		return err
	}
	s.log.Debug("comment deleted", zap.String("comment_id", record.ID), zap.Int("removed", len(removed)))
	s.publish(domain.EventDeleted, &domain.Comment{
		ID:              record.ID,
		PostID:          record.PostID,
		ParentCommentID: record.ParentID,
		Author:          domain.UnresolvedAuthor(record.AuthorID),
	})
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *Server) likeComment(w http.ResponseWriter, r *http.Request) error {
	return s.changeLike(w, r, true)
}

func (s *Server) unlikeComment(w http.ResponseWriter, r *http.Request) error {
	return s.changeLike(w, r, false)
}

func (s *Server) changeLike(w http.ResponseWriter, r *http.Request, like bool) error {
	ctx := r.Context()
	uid, err := requireViewer(r)
	if err != nil {
		return err
	}
	record, err := s.store.GetCommentByID(ctx, chi.URLParam(r, "commentID"))
	if err != nil {
		return err
	}

	var likedBy []string
	if like {
		likedBy, err = s.store.LikeComment(ctx, record.ID, uid)
	} else {
		likedBy, err = s.store.UnlikeComment(ctx, record.ID, uid)
	}
	if err != nil {
		return err
	}

	s.publish(domain.EventLiked, &domain.Comment{
		ID:              record.ID,
		PostID:          record.PostID,
		ParentCommentID: record.ParentID,
		Author:          domain.UnresolvedAuthor(record.AuthorID),
		LikedBy:         likedBy,
		LikesCount:      len(likedBy),
	})
	WriteJSON(w, domain.LikeResult{
		LikedBy:   likedBy,
		IsLikedBy: funk.ContainsString(likedBy, uid),
	}, http.StatusOK)
	return nil
}

func (s *Server) publish(typ domain.EventType, c *domain.Comment) {
	s.metrics.event(string(typ))
	s.observer.Publish(domain.CommentEvent{Type: typ, PostID: c.PostID, Comment: c})
}

// === Events ===

// streamEvents отдает события поста по websocket до отключения клиента.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) error {
	postID := chi.URLParam(r, "postID")
	// Проверяем, существует ли пост, прежде чем подписываться
	if _, err := s.store.GetPostByID(r.Context(), postID); err != nil {
		return err
	}

	// Подписываемся до рукопожатия, чтобы не потерять события сразу после него
	events, cancel := s.observer.Subscribe(postID)
	defer cancel()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrader уже ответил клиенту
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return nil
	}
	defer conn.Close()

	// Читаем входящие кадры только чтобы заметить отключение
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(s.keepAlive)
	defer ping.Stop()
	for {
		select {
		case <-gone:
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				s.log.Debug("websocket write failed", zap.String("post_id", postID), zap.Error(err))
				return nil
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return nil
			}
		}
	}
}
