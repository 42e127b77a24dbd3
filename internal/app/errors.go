package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/John-Robertt/tubeqa/internal/config"
	"github.com/John-Robertt/tubeqa/internal/domain"
	"github.com/John-Robertt/tubeqa/internal/qa"
	"github.com/John-Robertt/tubeqa/internal/transcript"
)

// Error 是会话层的结构化错误。
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s：%v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// ErrBusy 表示已有一个问答请求在进行中（不排队）。
var ErrBusy = &Error{Code: domain.ErrCodeBusy, Message: "已有问题正在回答，请稍候"}

var (
	errNotLoaded     = &Error{Code: domain.ErrCodeNoTranscript, Message: "尚未加载字幕"}
	errEmptyQuestion = &Error{Code: domain.ErrCodeEmptyQuestion, Message: "问题不能为空"}
)

type coder interface{ Code() string }

// Code 把任意错误归类为稳定的 error_code；无法归类时返回空串。
func Code(err error) string {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	if c := qa.Code(err); c != "" {
		return c
	}
	if c := config.Code(err); c != "" {
		return c
	}
	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}
	var perr *transcript.ParseError
	var herr *transcript.HTTPStatusError
	switch {
	case transcript.IsBlocked(err):
		return domain.ErrCodeBlocked
	case errors.As(err, &perr):
		return domain.ErrCodeParse
	case errors.As(err, &herr), errors.Is(err, context.DeadlineExceeded):
		return domain.ErrCodeNetwork
	}
	return ""
}
