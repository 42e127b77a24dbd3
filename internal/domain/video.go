package domain

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// VideoID 是视频的唯一主键（YouTube 的 11 位 id）。
type VideoID string

var videoIDRE = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ParseVideoID 从裸 id 或常见 URL 形态中解析出 VideoID。
//
// 支持：watch?v=、youtu.be/<id>、/shorts/<id>、/embed/<id>、/live/<id>。
// 无法确定唯一 id 时返回 false（宁可失败，也不猜）。
func ParseVideoID(s string) (VideoID, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if videoIDRE.MatchString(s) {
		return VideoID(s), true
	}

	raw := s
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")

	var cand string
	switch host {
	case "youtu.be":
		cand = strings.Trim(u.Path, "/")
	case "youtube.com", "music.youtube.com", "youtube-nocookie.com":
		if v := u.Query().Get("v"); v != "" {
			cand = v
			break
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) >= 2 {
			switch parts[0] {
			case "shorts", "embed", "live", "v":
				cand = parts[1]
			}
		}
	}
	if !videoIDRE.MatchString(cand) {
		return "", false
	}
	return VideoID(cand), true
}

// VideoInfo 是宿主页面上可读到的视频基本信息。
type VideoInfo struct {
	VideoID  VideoID `json:"videoId"`
	Title    string  `json:"title"`
	Duration string  `json:"duration"` // 展示用文本，例如 "12:34"；未知时为空
}

// WatchURL 返回跳转到指定位置的观看链接（seconds<=0 时不带 t 参数）。
func WatchURL(id VideoID, seconds float64) string {
	u := "https://www.youtube.com/watch?v=" + url.QueryEscape(string(id))
	if seconds >= 1 {
		u += fmt.Sprintf("&t=%ds", int64(seconds))
	}
	return u
}

// ThumbnailURL 返回视频的中等尺寸缩略图地址。
func ThumbnailURL(id VideoID) string {
	return "https://i.ytimg.com/vi/" + string(id) + "/mqdefault.jpg"
}
