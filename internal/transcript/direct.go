package transcript

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/John-Robertt/tubeqa/internal/domain"
)

// DirectStrategy 直接请求字幕接口：先要 json3，失败或形态不符再要标记格式。
type DirectStrategy struct {
	// Endpoint 覆盖默认的 <origin>/api/timedtext（测试用）。
	Endpoint string
}

func (DirectStrategy) Name() string { return "direct" }

func (s DirectStrategy) Fetch(ctx context.Context, pc *PageContext, c *http.Client) ([]domain.Segment, error) {
	if pc.VideoID == "" {
		return nil, errors.New("缺少视频 id")
	}
	endpoint := strings.TrimSpace(s.Endpoint)
	if endpoint == "" {
		endpoint = pc.BaseOrigin() + "/api/timedtext"
	}

	structuredURL := timedTextURL(endpoint, pc.VideoID, pc.TargetLang(), "json3")
	segs, jerr := fetchStructured(ctx, c, structuredURL)
	if jerr == nil && len(segs) > 0 {
		return segs, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	segs, merr := fetchMarkup(ctx, c, timedTextURL(endpoint, pc.VideoID, pc.TargetLang(), ""))
	if merr != nil {
		if jerr == nil {
			jerr = errEmptyResult
		}
		return nil, fmt.Errorf("json3: %v; markup: %w", jerr, merr)
	}
	return segs, nil
}

func fetchStructured(ctx context.Context, c *http.Client, u string) ([]domain.Segment, error) {
	body, err := GetBody(ctx, c, u)
	if err != nil {
		return nil, err
	}
	return ParseStructured(body)
}

func fetchMarkup(ctx context.Context, c *http.Client, u string) ([]domain.Segment, error) {
	body, err := GetBody(ctx, c, u)
	if err != nil {
		return nil, err
	}
	return ParseMarkup(body)
}

func timedTextURL(endpoint string, id domain.VideoID, lang, format string) string {
	q := url.Values{}
	q.Set("v", string(id))
	q.Set("lang", lang)
	if format != "" {
		q.Set("fmt", format)
	}
	return endpoint + "?" + q.Encode()
}
