package qa

import (
	"errors"
	"fmt"

	"github.com/John-Robertt/tubeqa/internal/domain"
)

// Error 是问答阶段的可分类错误：Code 为稳定的 error_code，Message 面向用户展示。
type Error struct {
	Code       string
	StatusCode int // 仅 network_error 且来自 HTTP 响应时非 0
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return "qa error"
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

// Code 返回 err 链上第一个 *Error 的 Code；不是问答错误时返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

var (
	errNoAPIKey = &Error{Code: domain.ErrCodeNoAPIKey, Message: "API key not provided"}
	errSafety   = &Error{Code: domain.ErrCodeSafetyBlocked, Message: "Response blocked due to safety settings"}
	errEmpty    = &Error{Code: domain.ErrCodeEmptyResponse, Message: "No response generated"}
)
