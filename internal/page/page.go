package page

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/tubeqa/internal/domain"
	"github.com/John-Robertt/tubeqa/internal/transcript"
)

// Page 是一次提取所面对的宿主页面：在线抓取的观看页，或保存下来的 DOM 快照。
type Page struct {
	VideoID  domain.VideoID
	Origin   string
	Document []byte

	// PlayerResponse 是已知的播放器对象（可选）；为空时由策略从 Document 中扫描。
	PlayerResponse json.RawMessage

	// Live 表示页面来自在线抓取：此时转录面板走 engagement panel 接口。
	Live bool

	parseOnce sync.Once
	parsed    *goquery.Document
}

// NoVideoIDError 表示页面快照里识别不出视频 id。
type NoVideoIDError struct {
	Path string
}

func (e *NoVideoIDError) Error() string {
	return fmt.Sprintf("%s：无法从页面快照识别视频 id：%s", domain.ErrCodeInvalidVideo, e.Path)
}

func (e *NoVideoIDError) Code() string { return domain.ErrCodeInvalidVideo }

// Load 抓取观看页 <origin>/watch?v=<id>。
//
// 同意页会以 *transcript.BlockedError 返回；不尝试绕过。
func Load(ctx context.Context, c *http.Client, origin string, id domain.VideoID) (*Page, error) {
	if id == "" {
		return nil, errors.New("video id 不能为空")
	}
	origin = normOrigin(origin)
	watch := origin + "/watch?v=" + url.QueryEscape(string(id))
	body, err := transcript.GetBody(ctx, c, watch)
	if err != nil {
		return nil, fmt.Errorf("抓取观看页失败：%w", err)
	}
	return &Page{VideoID: id, Origin: origin, Document: body, Live: true}, nil
}

// LoadFile 读取保存的页面快照；id 为空时从页面本身识别。
func LoadFile(path string, id domain.VideoID) (*Page, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, fmt.Errorf("页面快照为空：%s", path)
	}
	p := &Page{VideoID: id, Origin: transcript.DefaultOrigin, Document: b}
	if p.VideoID == "" {
		p.VideoID = p.Info().VideoID
	}
	if p.VideoID == "" {
		return nil, &NoVideoIDError{Path: path}
	}
	return p, nil
}

// Context 把页面转为 transcript.PageContext，并挂上合适的转录面板。
//
// 快照里有面板入口或已渲染条目时使用 DOM 面板；在线页面使用 engagement panel 接口。
func (p *Page) Context(lang string, c *http.Client) *transcript.PageContext {
	doc := p.doc()
	pc := &transcript.PageContext{
		VideoID:        p.VideoID,
		Lang:           lang,
		Origin:         p.Origin,
		PlayerResponse: p.PlayerResponse,
	}
	if doc == nil {
		// 未能解析时交给策略自行扫描原始 HTML。
		pc.Document = p.Document
	}
	if doc != nil && hasPanelMarkup(doc) {
		pc.Panel = newHTMLPanel(doc)
	} else if p.Live {
		pc.Panel = &innertubePanel{
			client:  c,
			origin:  normOrigin(p.Origin),
			videoID: p.VideoID,
			lang:    pc.TargetLang(),
		}
	}
	return pc
}

// doc 返回解析后的页面；同一个 Page 只解析一次，顺带扫描内联的播放器对象。
func (p *Page) doc() *goquery.Document {
	p.parseOnce.Do(func() {
		if len(p.Document) == 0 {
			return
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.Document))
		if err != nil {
			return
		}
		p.parsed = doc
		if len(bytes.TrimSpace(p.PlayerResponse)) == 0 {
			if raw, err := transcript.ScanPlayerResponse(doc); err == nil {
				p.PlayerResponse = raw
			}
		}
	})
	return p.parsed
}

func normOrigin(origin string) string {
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	if origin == "" {
		return transcript.DefaultOrigin
	}
	return origin
}
