package main

import (
	"encoding/json"
	"io"
	"net/url"
	"os"

	"github.com/mattn/go-isatty"
)

// isTerminal 判断 w 是否为交互终端（非 *os.File 一律视为否）。
func isTerminal(w any) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// writeJSON 输出单个 JSON 文档（带换行）。
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// redactDSN 去掉 dsn 中的密码（redis://:pass@host）。
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}
