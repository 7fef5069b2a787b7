package domain

import (
	"net/http"

	"github.com/pkg/errors"
)

var (
	// ErrPasteNotFound covers missing, expired, and exhausted pastes
	// alike. Callers must not be able to tell the cases apart.
	ErrPasteNotFound = NewErr("PASTE_NOT_FOUND", "paste not found", http.StatusNotFound)

	ErrContentRequired    = FieldErr("CONTENT_REQUIRED", "content required", "content")
	ErrInvalidTTL         = FieldErr("INVALID_TTL", "ttl_seconds must be an integer >= 1", "ttl_seconds")
	ErrInvalidMaxViews    = FieldErr("INVALID_MAX_VIEWS", "max_views must be an integer >= 1", "max_views")
	ErrPasteTooLarge      = FieldErr("PASTE_TOO_LARGE", "paste too large", "content")
	ErrInvalidRequest     = NewErr("INVALID_REQUEST", "invalid request", http.StatusBadRequest)
	ErrRateLimitExceeded  = NewErr("RATE_LIMIT_EXCEEDED", "rate limit exceeded", http.StatusTooManyRequests)
	ErrInternalServer     = NewErr("INTERNAL_ERROR", "internal error", http.StatusInternalServerError)
	ErrIDGenerationFailed = NewErr("ID_GENERATION_FAILED", "id generation failed", http.StatusInternalServerError)
)

type Err struct {
	Code   string `json:"code"`
	Msg    string `json:"message"`
	Field  string `json:"field,omitempty"`
	Status int    `json:"-"`
}

func (e *Err) Error() string { return e.Msg }

func NewErr(code, msg string, status int) *Err {
	return &Err{Code: code, Msg: msg, Status: status}
}

// FieldErr is a validation error naming the offending input field.
func FieldErr(code, msg, field string) *Err {
	return &Err{Code: code, Msg: msg, Field: field, Status: http.StatusBadRequest}
}

type ErrResp struct {
	Error ErrDetail `json:"error"`
}

type ErrDetail struct {
	Code  string `json:"code"`
	Msg   string `json:"message"`
	Field string `json:"field,omitempty"`
}

func ToResp(err error) ErrResp {
	if e, ok := err.(*Err); ok {
		return ErrResp{Error: ErrDetail{Code: e.Code, Msg: e.Msg, Field: e.Field}}
	}
	if e, ok := errors.Cause(err).(*Err); ok {
		return ErrResp{Error: ErrDetail{Code: e.Code, Msg: e.Msg, Field: e.Field}}
	}
	return ErrResp{Error: ErrDetail{Code: "INTERNAL_ERROR", Msg: "internal error"}}
}

func Status(err error) int {
	if e, ok := err.(*Err); ok {
		return e.Status
	}
	if e, ok := errors.Cause(err).(*Err); ok {
		return e.Status
	}
	return http.StatusInternalServerError
}
