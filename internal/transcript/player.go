package transcript

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/tubeqa/internal/domain"
)

// PlayerResponse 是 ytInitialPlayerResponse 中本项目关心的最小字段集。
// 所有访问都必须在解码之后进行，不对原始 JSON 做形态假设。
type PlayerResponse struct {
	Captions *struct {
		Renderer *struct {
			CaptionTracks []domain.CaptionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	VideoDetails *struct {
		VideoID       string `json:"videoId"`
		Title         string `json:"title"`
		LengthSeconds string `json:"lengthSeconds"`
	} `json:"videoDetails"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

// Tracks 返回字幕轨列表（缺失时为 nil）。
func (p *PlayerResponse) Tracks() []domain.CaptionTrack {
	if p == nil || p.Captions == nil || p.Captions.Renderer == nil {
		return nil
	}
	return p.Captions.Renderer.CaptionTracks
}

var errNoPlayerResponse = errors.New("页面中没有 ytInitialPlayerResponse")

var playerAssignRE = regexp.MustCompile(`ytInitialPlayerResponse\s*=\s*\{`)

// DecodePlayerResponse 优先使用宿主注入的全局对象；缺失时扫描页面内联脚本。
func DecodePlayerResponse(pc *PageContext) (*PlayerResponse, error) {
	raw := []byte(nil)
	if pc != nil && len(bytes.TrimSpace(pc.PlayerResponse)) > 0 {
		raw = pc.PlayerResponse
	} else if pc != nil && len(pc.Document) > 0 {
		var err error
		raw, err = scanPlayerResponse(pc.Document)
		if err != nil {
			return nil, err
		}
	}
	if len(raw) == 0 {
		return nil, errNoPlayerResponse
	}

	var pr PlayerResponse
	if err := json.Unmarshal(raw, &pr); err != nil {
		return nil, &ParseError{Format: "player", Err: err}
	}
	return &pr, nil
}

func scanPlayerResponse(document []byte) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(document))
	if err != nil {
		return nil, &ParseError{Format: "player", Err: err}
	}
	return ScanPlayerResponse(doc)
}

// ScanPlayerResponse 在已解析页面的 <script> 文本中查找 `ytInitialPlayerResponse = {...};` 并截取 JSON。
// 截取使用括号配对（感知字符串与转义），避免非贪婪正则在嵌套对象中提前截断。
func ScanPlayerResponse(doc *goquery.Document) ([]byte, error) {
	var found []byte
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		loc := playerAssignRE.FindStringIndex(text)
		if loc == nil {
			return true
		}
		// loc[1]-1 指向 '{'。
		if obj := extractJSONObject([]byte(text[loc[1]-1:])); obj != nil && json.Valid(obj) {
			found = obj
			return false
		}
		return true
	})
	if found == nil {
		return nil, errNoPlayerResponse
	}
	return found, nil
}

// extractJSONObject 从以 '{' 开头的字节序列中截取第一个完整的 JSON 对象。
func extractJSONObject(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr := false
	escaped := false
	for i, c := range b {
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}
