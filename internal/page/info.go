package page

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/tubeqa/internal/domain"
	"github.com/John-Robertt/tubeqa/internal/transcript"
)

// Info 读取页面上的视频基本信息。缺失的字段保持为空。
func (p *Page) Info() domain.VideoInfo {
	info := domain.VideoInfo{VideoID: p.VideoID}

	doc := p.doc()
	pr, _ := transcript.DecodePlayerResponse(&transcript.PageContext{PlayerResponse: p.PlayerResponse})

	if doc != nil {
		info.Title = titleOf(doc)
		info.Duration = normSpace(doc.Find(".ytp-time-duration").First().Text())
		if info.VideoID == "" {
			info.VideoID = videoIDOf(doc)
		}
	}

	if pr != nil && pr.VideoDetails != nil {
		if info.Title == "" {
			info.Title = normSpace(pr.VideoDetails.Title)
		}
		if info.Duration == "" {
			if n, err := strconv.Atoi(strings.TrimSpace(pr.VideoDetails.LengthSeconds)); err == nil && n > 0 {
				info.Duration = domain.FormatTimestamp(float64(n))
			}
		}
		if info.VideoID == "" {
			if id, ok := domain.ParseVideoID(pr.VideoDetails.VideoID); ok {
				info.VideoID = id
			}
		}
	}
	return info
}

func titleOf(doc *goquery.Document) string {
	if t := normSpace(doc.Find("h1.ytd-watch-metadata yt-formatted-string").First().Text()); t != "" {
		return t
	}
	if t, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok && normSpace(t) != "" {
		return normSpace(t)
	}
	t := normSpace(doc.Find("title").First().Text())
	return strings.TrimSpace(strings.TrimSuffix(t, " - YouTube"))
}

func videoIDOf(doc *goquery.Document) domain.VideoID {
	for _, sel := range []string{`meta[itemprop="videoId"]`, `meta[itemprop="identifier"]`} {
		if v, ok := doc.Find(sel).First().Attr("content"); ok {
			if id, ok := domain.ParseVideoID(v); ok {
				return id
			}
		}
	}
	for _, sel := range []string{`link[rel="canonical"]`, `meta[property="og:url"]`} {
		node := doc.Find(sel).First()
		v, ok := node.Attr("href")
		if !ok {
			v, ok = node.Attr("content")
		}
		if ok {
			if id, ok := domain.ParseVideoID(v); ok {
				return id
			}
		}
	}
	return ""
}

func normSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
