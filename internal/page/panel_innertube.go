package page

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/John-Robertt/tubeqa/internal/domain"
	"github.com/John-Robertt/tubeqa/internal/transcript"
)

const webClientVersion = "2.20250222.10.00"

// getTranscriptRE 从 /next 的原始 JSON 中截取转录面板的 continuation 参数。
var getTranscriptRE = regexp.MustCompile(`"getTranscriptEndpoint":\{"params":"([^"]+)"`)

// innertubePanel 是在线页面的转录面板：
// Open = POST /youtubei/v1/next 拿到面板参数；Rows = POST /youtubei/v1/get_transcript。
type innertubePanel struct {
	client  *http.Client
	origin  string
	videoID domain.VideoID
	lang    string

	visitor string
	params  string
}

func (p *innertubePanel) Open(ctx context.Context) error {
	p.visitor = visitorData()
	body, err := p.post(ctx, "/youtubei/v1/next", map[string]any{
		"videoId": string(p.videoID),
		"context": p.clientContext(),
	})
	if err != nil {
		return fmt.Errorf("/next: %w", err)
	}
	m := getTranscriptRE.FindSubmatch(body)
	if len(m) < 2 {
		return errors.New("页面上没有转录入口")
	}
	// 响应里的 params 是 URL 编码过的；get_transcript 需要解码后的 base64。
	params, err := url.QueryUnescape(string(m[1]))
	if err != nil {
		params = string(m[1])
	}
	p.params = params
	return nil
}

func (p *innertubePanel) Rows(ctx context.Context) ([]transcript.PanelRow, error) {
	if p.params == "" {
		return nil, errors.New("转录面板未打开")
	}
	body, err := p.post(ctx, "/youtubei/v1/get_transcript", map[string]any{
		"params":  p.params,
		"context": p.clientContext(),
	})
	if err != nil {
		return nil, fmt.Errorf("/get_transcript: %w", err)
	}
	var resp getTranscriptResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &transcript.ParseError{Format: "panel", Err: err}
	}
	return resp.rows(), nil
}

func (p *innertubePanel) Close(ctx context.Context) error {
	p.params = ""
	return nil
}

func (p *innertubePanel) clientContext() map[string]any {
	return map[string]any{
		"client": map[string]any{
			"clientName":    "WEB",
			"clientVersion": webClientVersion,
			"visitorData":   p.visitor,
			"hl":            p.lang,
			"gl":            "US",
		},
		"user":    map[string]any{"enableSafetyMode": false},
		"request": map[string]any{"useSsl": true},
	}
}

func (p *innertubePanel) post(ctx context.Context, path string, payload any) ([]byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "*/*")
	h.Set("X-Youtube-Client-Name", "1")
	h.Set("X-Youtube-Client-Version", webClientVersion)
	h.Set("X-Goog-Visitor-Id", p.visitor)
	h.Set("Origin", p.origin)
	h.Set("Referer", p.origin+"/")
	return transcript.Do(ctx, p.client, http.MethodPost, p.origin+path+"?prettyPrint=false", b, h)
}

// visitorData 生成 11 位随机访客 id（非加密用途）。
func visitorData() string {
	const chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	b := make([]byte, 11)
	for i := range b {
		b[i] = chars[rand.IntN(len(chars))]
	}
	return string(b)
}

type getTranscriptResponse struct {
	Actions []struct {
		UpdateEngagementPanelAction *struct {
			Content struct {
				TranscriptRenderer struct {
					Content struct {
						TranscriptSearchPanelRenderer struct {
							Body struct {
								TranscriptSegmentListRenderer struct {
									InitialSegments []struct {
										TranscriptSegmentRenderer *segmentRenderer `json:"transcriptSegmentRenderer"`
									} `json:"initialSegments"`
								} `json:"transcriptSegmentListRenderer"`
							} `json:"body"`
						} `json:"transcriptSearchPanelRenderer"`
					} `json:"content"`
				} `json:"transcriptRenderer"`
			} `json:"content"`
		} `json:"updateEngagementPanelAction"`
	} `json:"actions"`
}

type segmentRenderer struct {
	StartMs       string `json:"startMs"`
	StartTimeText struct {
		SimpleText string `json:"simpleText"`
	} `json:"startTimeText"`
	Snippet struct {
		Runs []struct {
			Text string `json:"text"`
		} `json:"runs"`
	} `json:"snippet"`
}

func (r getTranscriptResponse) rows() []transcript.PanelRow {
	var rows []transcript.PanelRow
	for _, a := range r.Actions {
		if a.UpdateEngagementPanelAction == nil {
			continue
		}
		segs := a.UpdateEngagementPanelAction.Content.
			TranscriptRenderer.Content.
			TranscriptSearchPanelRenderer.Body.
			TranscriptSegmentListRenderer.InitialSegments
		for _, s := range segs {
			sr := s.TranscriptSegmentRenderer
			if sr == nil {
				continue
			}
			var sb strings.Builder
			for _, run := range sr.Snippet.Runs {
				sb.WriteString(run.Text)
			}
			ts := strings.TrimSpace(sr.StartTimeText.SimpleText)
			if ts == "" {
				if ms, err := strconv.ParseFloat(sr.StartMs, 64); err == nil {
					ts = domain.FormatTimestamp(ms / 1000)
				}
			}
			rows = append(rows, transcript.PanelRow{Timestamp: ts, Text: sb.String()})
		}
	}
	return rows
}
