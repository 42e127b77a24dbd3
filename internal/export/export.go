// Package export 把字幕段与截帧编码为可落盘的文件格式。
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/asticode/go-astisub"

	"github.com/John-Robertt/tubeqa/internal/domain"
)

// Format 是字幕导出格式。
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatSRT  Format = "srt"
	FormatVTT  Format = "vtt"
)

// ParseFormat 解析格式名（大小写不敏感，空串视为 text）。
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatSRT, FormatVTT:
		return f, nil
	default:
		return "", fmt.Errorf("未知导出格式：%q（可选 text|json|srt|vtt）", s)
	}
}

// Extension 返回格式对应的文件扩展名（不含点）。
func (f Format) Extension() string {
	if f == FormatText {
		return "txt"
	}
	return string(f)
}

// Encode 按格式编码字幕段。输出确定：相同输入得到相同字节。
func Encode(f Format, segs []domain.Segment) ([]byte, error) {
	switch f {
	case FormatText, "":
		return encodeText(segs), nil
	case FormatJSON:
		if segs == nil {
			segs = []domain.Segment{}
		}
		b, err := json.MarshalIndent(segs, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	case FormatSRT:
		return encodeCues(segs, false)
	case FormatVTT:
		return encodeCues(segs, true)
	default:
		return nil, fmt.Errorf("未知导出格式：%q", f)
	}
}

// encodeText 每行 "[M:SS] text"，与送入问答模型的文本一致。
func encodeText(segs []domain.Segment) []byte {
	var b bytes.Buffer
	for _, s := range segs {
		fmt.Fprintf(&b, "[%s] %s\n", domain.FormatTimestamp(s.Start), s.Text)
	}
	return b.Bytes()
}

func encodeCues(segs []domain.Segment, vtt bool) ([]byte, error) {
	if len(segs) == 0 {
		// astisub 拒绝写空字幕；空 VTT 仍需要文件头。
		if vtt {
			return []byte("WEBVTT\n"), nil
		}
		return []byte{}, nil
	}

	subs := astisub.NewSubtitles()
	for i, s := range segs {
		end := s.Start + s.Duration
		// 零时长的条目延伸到下一条开始，避免播放器丢弃。
		if s.Duration <= 0 && i+1 < len(segs) && segs[i+1].Start > s.Start {
			end = segs[i+1].Start
		}
		subs.Items = append(subs.Items, &astisub.Item{
			StartAt: cueTime(s.Start),
			EndAt:   cueTime(end),
			Lines:   cueLines(s.Text),
		})
	}

	var b bytes.Buffer
	var err error
	if vtt {
		err = subs.WriteToWebVTT(&b)
	} else {
		err = subs.WriteToSRT(&b)
	}
	if err != nil {
		return nil, fmt.Errorf("编码字幕失败：%w", err)
	}
	return b.Bytes(), nil
}

// cueTime 把秒转换为毫秒精度的时长。
func cueTime(seconds float64) time.Duration {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0
	}
	return time.Duration(math.Round(seconds*1000)) * time.Millisecond
}

func cueLines(text string) []astisub.Line {
	var lines []astisub.Line
	for _, l := range strings.Split(text, "\n") {
		lines = append(lines, astisub.Line{Items: []astisub.LineItem{{Text: l}}})
	}
	return lines
}

// FrameFileName 返回截帧导出文件名：<videoId>_<M-SS>_<id>.png。
func FrameFileName(f domain.CapturedFrame) string {
	id := strings.TrimSpace(string(f.VideoID))
	if id == "" {
		id = "frame"
	}
	ts := strings.ReplaceAll(domain.FormatTimestamp(f.Timestamp), ":", "-")
	return fmt.Sprintf("%s_%s_%d.png", id, ts, f.ID)
}
