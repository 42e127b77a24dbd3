package transcript

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/John-Robertt/tubeqa/internal/domain"
)

// ParseError 表示载荷无法解析（标记或 JSON 形态不符合预期）。
// 在策略链中它只代表该策略失败，不是致命错误。
type ParseError struct {
	Format string // "markup" / "json3" / "player"
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s：%s 解析失败：%v", domain.ErrCodeParse, e.Format, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseMarkup 解析 `<text start=".." dur="..">..</text>` 平铺列表。
//
// 规则：
// - 文本中的命名/数字字符引用会被解码（包括 YouTube 常见的二次转义，例如 &amp;#39;）
// - 解码后为空或只含空白的条目被丢弃
// - 输出按 start 升序（稳定排序）
func ParseMarkup(raw []byte) ([]domain.Segment, error) {
	d := xml.NewDecoder(bytes.NewReader(raw))
	d.Strict = false
	d.AutoClose = xml.HTMLAutoClose
	d.Entity = xml.HTMLEntity

	var (
		out  []domain.Segment
		seen bool
	)
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Format: "markup", Err: err}
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "text" {
			continue
		}
		seen = true

		body, err := elementText(d)
		if err != nil {
			return nil, &ParseError{Format: "markup", Err: err}
		}
		text := html.UnescapeString(body)
		if strings.TrimSpace(text) == "" {
			continue
		}
		out = append(out, domain.Segment{
			Text:     text,
			Start:    parseSeconds(attrValue(se, "start")),
			Duration: parseSeconds(attrValue(se, "dur")),
		})
	}
	if !seen {
		return nil, &ParseError{Format: "markup", Err: errors.New("未找到 <text> 元素")}
	}
	sortSegments(out)
	return out, nil
}

// elementText 读到当前元素的结束标签为止，拼接所有后代文本（<font> 等内联标签只保留文字）。
func elementText(d *xml.Decoder) (string, error) {
	var sb strings.Builder
	for depth := 1; depth > 0; {
		tok, err := d.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.ErrUnexpectedEOF
			}
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			sb.Write(t)
		}
	}
	return sb.String(), nil
}

func attrValue(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

type json3Doc struct {
	Events *[]json3Event `json:"events"`
}

type json3Event struct {
	TStartMs    float64     `json:"tStartMs"`
	DDurationMs float64     `json:"dDurationMs"`
	Segs        []json3Segs `json:"segs"`
}

type json3Segs struct {
	UTF8 string `json:"utf8"`
}

// ParseStructured 解析 json3 形态：{events:[{segs:[{utf8}], tStartMs, dDurationMs}]}。
//
// 规则：
// - 每个带 segs 的事件产出一条 Segment（文本为各 utf8 的拼接）
// - start = tStartMs/1000，duration = dDurationMs/1000
// - 没有 segs 的事件跳过；拼接结果为空白的事件同样丢弃
// - 缺少 events 视为形态不符（ParseError）
func ParseStructured(raw []byte) ([]domain.Segment, error) {
	var doc json3Doc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &ParseError{Format: "json3", Err: err}
	}
	if doc.Events == nil {
		return nil, &ParseError{Format: "json3", Err: errors.New("缺少 events")}
	}

	out := make([]domain.Segment, 0, len(*doc.Events))
	for _, ev := range *doc.Events {
		if ev.Segs == nil {
			continue
		}
		var sb strings.Builder
		for _, s := range ev.Segs {
			sb.WriteString(s.UTF8)
		}
		text := sb.String()
		if strings.TrimSpace(text) == "" {
			continue
		}
		out = append(out, domain.Segment{
			Text:     text,
			Start:    nonNegative(ev.TStartMs / 1000),
			Duration: nonNegative(ev.DDurationMs / 1000),
		})
	}
	sortSegments(out)
	return out, nil
}

// SegmentsFromRows 把面板行转换为 Segment（duration 固定为 0）。
func SegmentsFromRows(rows []PanelRow) []domain.Segment {
	out := make([]domain.Segment, 0, len(rows))
	for _, r := range rows {
		text := strings.TrimSpace(r.Text)
		if text == "" {
			continue
		}
		ts := strings.TrimSpace(r.Timestamp)
		if ts == "" {
			ts = "0:00"
		}
		out = append(out, domain.Segment{
			Text:  text,
			Start: domain.ParseTimestampText(ts),
		})
	}
	sortSegments(out)
	return out
}

func parseSeconds(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return nonNegative(f)
}

func nonNegative(f float64) float64 {
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func sortSegments(segs []domain.Segment) {
	sort.SliceStable(segs, func(i, j int) bool { return segs[i].Start < segs[j].Start })
}
