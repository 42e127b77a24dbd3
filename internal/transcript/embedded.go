package transcript

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/John-Robertt/tubeqa/internal/domain"
)

// EmbeddedStrategy 从页面内嵌的播放器数据中取字幕轨，再抓取该轨的标记载荷。
type EmbeddedStrategy struct{}

func (EmbeddedStrategy) Name() string { return "embedded" }

func (EmbeddedStrategy) Fetch(ctx context.Context, pc *PageContext, c *http.Client) ([]domain.Segment, error) {
	pr, err := DecodePlayerResponse(pc)
	if err != nil {
		return nil, err
	}
	track, ok := SelectTrack(pr.Tracks(), pc.TargetLang())
	if !ok {
		return nil, errors.New("播放器数据中没有字幕轨")
	}
	if strings.TrimSpace(track.BaseURL) == "" {
		return nil, errors.New("字幕轨缺少 baseUrl")
	}

	body, err := GetBody(ctx, c, resolveURL(pc.BaseOrigin()+"/", track.BaseURL))
	if err != nil {
		return nil, err
	}
	if !bytes.Contains(body, []byte("<text")) {
		return nil, &ParseError{Format: "markup", Err: errors.New("响应不是预期的字幕标记")}
	}
	return ParseMarkup(body)
}
