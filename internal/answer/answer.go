// Package answer 把模型返回的纯文本转为可展示的格式。
//
// 所有函数都是纯函数：不访问网络，不依赖外部状态。
package answer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"golang.org/x/net/html"

	"github.com/John-Robertt/tubeqa/internal/domain"
)

// timestampRE 匹配 [H?H:MM(:SS)?] 或裸的 H?H:MM(:SS)?。
var timestampRE = regexp.MustCompile(`\[?(\d{1,2}:\d{2}(?::\d{2})?)\]?`)

// HTML 先转义全文，再把时间戳包成可点击的 span，最后处理段落与换行。
// 可见文本保持原样（包括方括号）；data-time 为秒数。
func HTML(text string) string {
	linked := ReplaceTimestamps(html.EscapeString(text), func(m string, sec float64) string {
		return `<span class="timestamp" data-time="` + strconv.FormatFloat(sec, 'f', -1, 64) + `">` + m + `</span>`
	})

	var sb strings.Builder
	for _, p := range strings.Split(linked, "\n\n") {
		sb.WriteString("<p>")
		sb.WriteString(strings.ReplaceAll(p, "\n", "<br>"))
		sb.WriteString("</p>")
	}
	return sb.String()
}

// Timestamps 列出文本中出现的时间戳（按首次出现顺序去重），并附上跳转链接。
func Timestamps(text string, id domain.VideoID) []domain.TimestampRef {
	out := []domain.TimestampRef{}
	seen := map[string]struct{}{}
	for _, m := range timestampRE.FindAllStringSubmatch(text, -1) {
		ts := m[1]
		if _, ok := seen[ts]; ok {
			continue
		}
		seen[ts] = struct{}{}
		sec := domain.ParseTimestampText(ts)
		ref := domain.TimestampRef{Text: ts, Seconds: sec}
		if id != "" {
			ref.URL = domain.WatchURL(id, sec)
		}
		out = append(out, ref)
	}
	return out
}

// mdConverter 关闭转义：模型回答本身多为 Markdown（**粗体**、列表），复制时应原样保留。
var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
	),
	converter.WithEscapeMode(converter.EscapeModeDisabled),
)

// Markdown 把回答转为 Markdown（用于复制）。id 非空时时间戳会变成跳转链接；
// 模型自带的 Markdown 标记不做转义。
func Markdown(text string, id domain.VideoID) (string, error) {
	markup := HTML(text)
	if id != "" {
		markup = spanRE.ReplaceAllStringFunc(markup, func(m string) string {
			sub := spanRE.FindStringSubmatch(m)
			sec, _ := strconv.ParseFloat(sub[1], 64)
			return `<a href="` + html.EscapeString(domain.WatchURL(id, sec)) + `">` + sub[2] + `</a>`
		})
	}
	md, err := mdConverter.ConvertString(markup)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(md), nil
}

var spanRE = regexp.MustCompile(`<span class="timestamp" data-time="([0-9.]+)">([^<]*)</span>`)

// ReplaceTimestamps 对每个识别出的时间戳调用 fn（match 含方括号，sec 为秒数），并用返回值替换。
func ReplaceTimestamps(text string, fn func(match string, sec float64) string) string {
	return timestampRE.ReplaceAllStringFunc(text, func(m string) string {
		sub := timestampRE.FindStringSubmatch(m)
		return fn(m, domain.ParseTimestampText(sub[1]))
	})
}
