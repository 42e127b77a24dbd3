package qa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/John-Robertt/tubeqa/internal/domain"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.0-flash"

	defaultHTTPTimeout = 60 * time.Second
	maxResponseBytes   = 4 << 20
)

// Client 调用 Gemini generateContent 接口回答关于字幕的问题。
//
// 不做重试：一次失败就以 *Error 返回给调用方。
type Client struct {
	httpClient *http.Client
	baseURL    string
	model      string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithBaseURL overrides the API base (e.g. an httptest server).
func WithBaseURL(base string) Option {
	return func(cl *Client) {
		if b := strings.TrimRight(strings.TrimSpace(base), "/"); b != "" {
			cl.baseURL = b
		}
	}
}

// WithModel overrides the model name.
func WithModel(model string) Option {
	return func(cl *Client) {
		if m := strings.TrimSpace(model); m != "" {
			cl.model = m
		}
	}
}

// WithRequestsPerMinute 限制每分钟请求数；n<=0 表示不限速。
func WithRequestsPerMinute(n int) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
		} else {
			cl.limiter = nil
		}
	}
}

// WithLogger sets the logger used for request timing.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// NewClient 构造问答客户端。
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model 返回实际使用的模型名。
func (c *Client) Model() string { return c.model }

// Answer 基于字幕回答问题，成功时原样返回第一个候选的文本。
func (c *Client) Answer(ctx context.Context, question string, segs []domain.Segment, apiKey string) (string, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return "", errNoAPIKey
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", &Error{Code: domain.ErrCodeNetwork, Err: err}
		}
	}

	body, err := json.Marshal(newRequest(BuildPrompt(question, segs)))
	if err != nil {
		return "", err
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, url.PathEscape(c.model), url.QueryEscape(apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &Error{Code: domain.ErrCodeNetwork, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &Error{Code: domain.ErrCodeNetwork, Message: redactKey(err.Error(), apiKey), Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", &Error{Code: domain.ErrCodeNetwork, Err: err}
	}
	c.logger.Debug("generateContent",
		slog.String("model", c.model),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
		slog.Int("segments", len(segs)),
	)

	var out generateResponse
	decodeErr := json.Unmarshal(raw, &out)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("API error: %d", resp.StatusCode)
		if decodeErr == nil && out.Error != nil && strings.TrimSpace(out.Error.Message) != "" {
			msg = out.Error.Message
		}
		return "", &Error{Code: domain.ErrCodeNetwork, StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return "", &Error{Code: domain.ErrCodeNetwork, Message: "invalid API response", Err: decodeErr}
	}

	if text, ok := out.firstText(); ok {
		return text, nil
	}
	if len(out.Candidates) > 0 && out.Candidates[0].FinishReason == "SAFETY" {
		return "", errSafety
	}
	return "", errEmpty
}

// redactKey 避免把 API key 通过错误信息中的 URL 泄露到日志或终端。
func redactKey(s, key string) string {
	return strings.ReplaceAll(s, url.QueryEscape(key), "REDACTED")
}
