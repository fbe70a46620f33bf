// Package client - HTTP-клиент API комментариев. Реализует thread.Service и
// переводит ответы с ошибками обратно в доменные ошибки.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/UkralStul/threaded-comments/internal/domain"
	"github.com/UkralStul/threaded-comments/internal/thread"
)

// HeaderUserID - заголовок, которым клиент представляет текущего пользователя.
const HeaderUserID = "X-User-ID"

// APIError - ответ сервера с ошибкой.
type APIError struct {
	Status  int
	Reason  string
	Message string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("comments api: %d %s: %s", e.Status, e.Reason, e.Message)
	}
	return fmt.Sprintf("comments api: %d: %s", e.Status, e.Message)
}

// Unwrap возвращает доменную ошибку по коду причины, а без него - по статусу.
func (e *APIError) Unwrap() error {
	if err := domain.ErrorForReason(e.Reason); err != nil {
		return err
	}
	switch e.Status {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusConflict:
		return domain.ErrConflict
	case http.StatusForbidden:
		return domain.ErrForbidden
	}
	return nil
}

// Client ходит в API комментариев от имени одного пользователя.
type Client struct {
	base   *url.URL
	http   *http.Client
	userID string
}

var _ thread.Service = (*Client)(nil)

type Option func(*Client)

// WithHTTPClient подменяет HTTP-клиент; транспорт при этом не оборачивается.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithUser задает текущего пользователя; без него доступно только чтение.
func WithUser(userID string) Option {
	return func(c *Client) { c.userID = userID }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		base: u,
		http: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// UserID возвращает пользователя, от имени которого работает клиент.
func (c *Client) UserID() string { return c.userID }

func (c *Client) ListRootComments(ctx context.Context, q domain.ListQuery) (*domain.CommentPage, error) {
	params := url.Values{}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	if q.Status != "" {
		params.Set("status", q.Status)
	}
	var page domain.CommentPage
	if err := c.do(ctx, http.MethodGet, pathOf("posts", q.PostID, "comments"), params, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) GetCommentWithReplies(ctx context.Context, commentID string) (*domain.CommentWithReplies, error) {
	var res domain.CommentWithReplies
	if err := c.do(ctx, http.MethodGet, pathOf("comments", commentID), nil, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) CreateComment(ctx context.Context, in domain.CreateCommentInput) (*domain.Comment, error) {
	var created domain.Comment
	if err := c.do(ctx, http.MethodPost, pathOf("posts", in.PostID, "comments"), nil, in, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) UpdateComment(ctx context.Context, commentID, content string) (*domain.Comment, error) {
	var updated domain.Comment
	body := map[string]string{"content": content}
	if err := c.do(ctx, http.MethodPatch, pathOf("comments", commentID), nil, body, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Client) DeleteComment(ctx context.Context, commentID string) error {
	return c.do(ctx, http.MethodDelete, pathOf("comments", commentID), nil, nil, nil)
}

func (c *Client) LikeComment(ctx context.Context, commentID string) (*domain.LikeResult, error) {
	return c.like(ctx, http.MethodPost, commentID)
}

func (c *Client) UnlikeComment(ctx context.Context, commentID string) (*domain.LikeResult, error) {
	return c.like(ctx, http.MethodDelete, commentID)
}

func (c *Client) like(ctx context.Context, method, commentID string) (*domain.LikeResult, error) {
	var res domain.LikeResult
	if err := c.do(ctx, method, pathOf("comments", commentID, "like"), nil, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// User возвращает профиль пользователя.
func (c *Client) User(ctx context.Context, userID string) (*domain.UserSummary, error) {
	var u domain.UserSummary
	if err := c.do(ctx, http.MethodGet, pathOf("users", userID), nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func pathOf(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return "/" + strings.Join(escaped, "/")
}

func (c *Client) endpoint(path string, params url.Values) string {
	u := c.base.JoinPath(path)
	u.RawQuery = params.Encode()
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, params), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userID != "" {
		req.Header.Set(HeaderUserID, c.userID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var body struct {
		Error  string `json:"error"`
		Reason string `json:"reason"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &body); err == nil {
		apiErr.Reason = body.Reason
		if body.Error != "" {
			apiErr.Message = body.Error
		}
	}
	return apiErr
}

// IsStatus сообщает, что err - ответ сервера с данным статусом.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
