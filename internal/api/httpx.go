package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/UkralStul/threaded-comments/internal/domain"
)

// HeaderUserID - заголовок с идентификатором текущего пользователя.
const HeaderUserID = "X-User-ID"

type HandlerFunc func(http.ResponseWriter, *http.Request) error

// ErrorBody - тело ответа с ошибкой.
type ErrorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
	Status int    `json:"status"`
}

var (
	ErrUnauthorized = errors.New("unauthorized")
	errBadRequest   = errors.New("bad request")
)

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }
func (e *requestError) Unwrap() error { return errBadRequest }

func WriteJSON(w http.ResponseWriter, v any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, err error, reason string) {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}
	WriteJSON(w, ErrorBody{Error: err.Error(), Reason: reason, Status: status}, status)
}

// Wrap переводит ошибку обработчика в HTTP-статус и код причины.
func Wrap(fn HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			reason := domain.ReasonOf(err)
			if reason == "" && errors.Is(err, errBadRequest) {
				reason = domain.ReasonInvalidArgument
			}
			WriteError(w, statusOf(err), err, reason)
		}
	})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrCommentsDisabled):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrParentNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrMaxDepth):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errBadRequest), errors.Is(err, domain.ErrEmptyContent), errors.Is(err, domain.ErrContentTooLong):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func Decode[T any](r *http.Request) (T, error) {
	var t T
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		return t, badRequest("invalid json body: " + err.Error())
	}
	return t, nil
}

func QueryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// viewerID возвращает текущего пользователя или пустую строку для анонима.
func viewerID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(HeaderUserID))
}

func requireViewer(r *http.Request) (string, error) {
	uid := viewerID(r)
	if uid == "" {
		return "", ErrUnauthorized
	}
	return uid, nil
}
