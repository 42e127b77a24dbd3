package domain

// KindASR 表示机器自动生成的字幕轨。
const KindASR = "asr"

// Segment 是一条带时间的字幕文本。
//
// 不变量（由解析层保证）：
// - 同一次提取结果内按 Start 升序
// - Duration >= 0
// - Text 非空（空白条目在入列前已过滤）
type Segment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`    // 秒
	Duration float64 `json:"duration"` // 秒
}

// CaptionTrack 是宿主页面提供的一条字幕轨（只读）。
type CaptionTrack struct {
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind,omitempty"` // "asr" 表示自动生成
	BaseURL      string `json:"baseUrl"`
}

// IsASR 判断该字幕轨是否为自动生成。
func (t CaptionTrack) IsASR() bool { return t.Kind == KindASR }
