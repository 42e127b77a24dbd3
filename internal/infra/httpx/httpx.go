// Package httpx 提供统一的出站 HTTP client：UA 池、Accept-Language、代理与总超时。
//
// 不做重试：字幕策略失败就交给下一个策略，问答失败直接报告给用户。
package httpx

import (
	"errors"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTimeout = 30 * time.Second
	defaultLang    = "en"
)

// Options 描述 client 的网络策略。
type Options struct {
	ProxyURL string        // 为空表示直连；支持 http/https/socks5
	Lang     string        // 用于 Accept-Language，例如 "de" -> "de,en;q=0.8"
	Timeout  time.Duration // 0 表示默认 30s
	// UserAgent 非空时固定使用；为空时每个请求从内置 UA 池随机挑选。
	UserAgent string
}

// Transport 给每个请求补齐 User-Agent 与 Accept-Language（调用方已设置的不覆盖）。
type Transport struct {
	Base           http.RoundTripper
	UserAgent      string
	AcceptLanguage string
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}
	// Clone：不在 RoundTripper 内部改动调用方的 request。
	r := req.Clone(req.Context())
	if r.Header.Get("User-Agent") == "" {
		ua := t.UserAgent
		if ua == "" {
			ua = randomUA()
		}
		r.Header.Set("User-Agent", ua)
	}
	if r.Header.Get("Accept-Language") == "" && t.AcceptLanguage != "" {
		r.Header.Set("Accept-Language", t.AcceptLanguage)
	}
	return t.Base.RoundTrip(r)
}

// NewClient 按 Options 构造 client。代理 URL 非法时返回错误。
func NewClient(opts Options) (*http.Client, error) {
	base := &http.Transport{
		Proxy:                 nil,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 20 * time.Second,
		MaxIdleConnsPerHost:   4,
	}
	if p := strings.TrimSpace(opts.ProxyURL); p != "" {
		u, err := url.Parse(p)
		if err != nil {
			return nil, err
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, errors.New("代理地址缺少 scheme 或 host：" + p)
		}
		base.Proxy = http.ProxyURL(u)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Transport: &Transport{
			Base:           base,
			UserAgent:      strings.TrimSpace(opts.UserAgent),
			AcceptLanguage: AcceptLanguage(opts.Lang),
		},
		Timeout: timeout,
	}, nil
}

// AcceptLanguage 由目标语言生成 Accept-Language 头；英文之外总是附带 en 作为兜底。
func AcceptLanguage(lang string) string {
	lang = strings.TrimSpace(strings.ReplaceAll(lang, "_", "-"))
	if lang == "" {
		lang = defaultLang
	}
	primary, _, _ := strings.Cut(lang, "-")
	switch {
	case strings.EqualFold(lang, "en"):
		return "en-US,en;q=0.9"
	case strings.EqualFold(primary, "en"):
		return lang + ",en;q=0.9"
	case !strings.EqualFold(primary, lang):
		return lang + "," + primary + ";q=0.9,en;q=0.8"
	default:
		return lang + ",en;q=0.8"
	}
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_6) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.6 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
}

func randomUA() string { return userAgents[rand.IntN(len(userAgents))] }
