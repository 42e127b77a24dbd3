package domain

const (
	// HistoryCap 是问答历史的上限（超出后淘汰最旧条目）。
	HistoryCap = 50
	// FrameCap 是截帧记录的上限（超出后淘汰最旧条目）。
	FrameCap = 100
)

// QAExchange 是一次问答记录。
type QAExchange struct {
	Question   string  `json:"question"`
	Answer     string  `json:"answer"`
	VideoID    VideoID `json:"videoId"`
	VideoTitle string  `json:"videoTitle"`
	Timestamp  int64   `json:"timestamp"` // epoch-ms
}

// CapturedFrame 是一张截取的视频静帧。
type CapturedFrame struct {
	ID         int64   `json:"id"`        // epoch-ms
	ImageData  []byte  `json:"imageData"` // PNG
	Timestamp  float64 `json:"timestamp"` // 视频内位置（秒）
	VideoID    VideoID `json:"videoId"`
	VideoTitle string  `json:"videoTitle"`
	CreatedAt  int64   `json:"createdAt"` // epoch-ms
}

// Settings 是单一可变配置槽（没有历史）。
type Settings struct {
	APIKey string `json:"apiKey,omitempty"`
}

// AppendCapped 追加 item，并只保留最后 max 条（FIFO 淘汰）。
// 返回的切片不与入参共享底层数组。
func AppendCapped[T any](list []T, item T, max int) []T {
	out := make([]T, 0, len(list)+1)
	out = append(out, list...)
	out = append(out, item)
	if max > 0 && len(out) > max {
		out = append([]T(nil), out[len(out)-max:]...)
	}
	return out
}
