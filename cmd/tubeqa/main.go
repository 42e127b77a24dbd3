package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/John-Robertt/tubeqa/internal/app"
)

// version 在发布构建时通过 -ldflags "-X main.version=..." 注入。
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cctx := newCommandContext(os.LookupEnv)
	cmd := newRootCommand(cctx)
	err := cmd.ExecuteContext(ctx)
	_ = cctx.Close()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, formatError(err))
		}
		os.Exit(1)
	}
}

// formatError 统一为 "code: message"；无法归类的错误使用 "error"。
func formatError(err error) string {
	code := app.Code(err)
	if code == "" {
		code = "error"
	}
	msg := err.Error()
	if strings.HasPrefix(msg, code) {
		return msg
	}
	return code + ": " + msg
}
