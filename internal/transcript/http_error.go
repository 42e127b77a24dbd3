package transcript

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxBodyBytes 限制单次响应体大小（watch 页面通常 1~2MB）。
const maxBodyBytes = 8 << 20

// HTTPStatusError 表示站点返回了非 2xx 的 HTTP 状态码。
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Location   string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	loc := strings.TrimSpace(e.Location)
	if loc == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d location=%s", e.StatusCode, loc)
}

// BlockedError 表示请求被引导到了“同意/验证”页面（通常需要浏览器交互）。
// 不尝试绕过：直接视为该策略失败，或由上层提示用户配置代理/保存页面快照。
type BlockedError struct {
	URL    string
	Reason string // 例如 "consent"
}

func (e *BlockedError) Error() string {
	if e == nil {
		return "blocked"
	}
	if strings.TrimSpace(e.Reason) == "" {
		return "blocked"
	}
	return "blocked: " + strings.TrimSpace(e.Reason)
}

// IsBlocked 判断 err 是否为 *BlockedError。
func IsBlocked(err error) bool {
	var e *BlockedError
	return errors.As(err, &e)
}

// GetBody 发起 GET 并返回响应体；非 2xx、空 body、同意页都视为错误。
func GetBody(ctx context.Context, c *http.Client, u string) ([]byte, error) {
	return Do(ctx, c, http.MethodGet, u, nil, nil)
}

// Do 发起一次请求（不重试），返回完整响应体。
func Do(ctx context.Context, c *http.Client, method, u string, body []byte, header http.Header) ([]byte, error) {
	if c == nil {
		c = http.DefaultClient
	}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}

	if resp.Request != nil && resp.Request.URL != nil && isConsentURL(resp.Request.URL) {
		return nil, &BlockedError{URL: resp.Request.URL.String(), Reason: "consent"}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPStatusError{URL: u, StatusCode: resp.StatusCode, Location: resp.Header.Get("Location")}
	}
	if len(b) == 0 {
		return nil, errors.New("empty response body")
	}
	return b, nil
}

func isConsentURL(u *url.URL) bool {
	return strings.HasPrefix(strings.ToLower(u.Hostname()), "consent.")
}

// resolveURL 以 base 为基准解析 href（支持协议相对与站内相对路径）。
func resolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	bu, err := url.Parse(base)
	if err != nil {
		return href
	}
	ru, err := url.Parse(href)
	if err != nil {
		return href
	}
	return bu.ResolveReference(ru).String()
}
