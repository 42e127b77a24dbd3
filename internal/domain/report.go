package domain

import (
	"encoding/json"
	"time"
)

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

const (
	ErrCodeNoAPIKey       = "no_api_key"
	ErrCodeNetwork        = "network_error"
	ErrCodeSafetyBlocked  = "safety_blocked"
	ErrCodeEmptyResponse  = "empty_response"
	ErrCodeNoTranscript   = "no_transcript_available"
	ErrCodeParse          = "parse_error"
	ErrCodeBlocked        = "blocked"
	ErrCodeBusy           = "busy"
	ErrCodeInvalidVideo   = "invalid_video"
	ErrCodeEmptyQuestion  = "empty_question"
	ErrCodeStoreFailed    = "store_failed"
	ErrCodeConfigNotFound = "config_not_found"
	ErrCodeConfigInvalid  = "config_invalid"
)

// StrategyAttempt 是对外输出的一次策略尝试（错误已转成文本）。
type StrategyAttempt struct {
	Strategy string `json:"strategy"`
	Stage    string `json:"stage"`
	Error    string `json:"error,omitempty"`
}

// TimestampRef 是回答中识别出的一个时间点。
type TimestampRef struct {
	Text    string  `json:"text"`
	Seconds float64 `json:"seconds"`
	URL     string  `json:"url"`
}

// TranscriptReport 是 transcript 命令在非 TTY 下的稳定输出结构。
type TranscriptReport struct {
	VideoID  string `json:"video_id"`
	Title    string `json:"title"`
	Lang     string `json:"lang"`
	Strategy string `json:"strategy"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Attempts []StrategyAttempt `json:"attempts"`
	Segments []Segment         `json:"segments"`
}

// Finalize 统一为 UTC，并把 nil 切片规范为空数组（保证 JSON 形态稳定）。
func (r *TranscriptReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	if r.Attempts == nil {
		r.Attempts = []StrategyAttempt{}
	}
	if r.Segments == nil {
		r.Segments = []Segment{}
	}
	if r.Status == "" {
		r.Status = StatusOK
		if r.ErrorCode != "" {
			r.Status = StatusFailed
		}
	}
}

// AskReport 是 ask 命令在非 TTY 下的稳定输出结构。
type AskReport struct {
	VideoID  string `json:"video_id"`
	Title    string `json:"title"`
	Strategy string `json:"strategy"`
	Question string `json:"question"`

	Answer     string         `json:"answer"`
	AnswerHTML string         `json:"answer_html"`
	Timestamps []TimestampRef `json:"timestamps"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Finalize 与 TranscriptReport.Finalize 约定一致。
func (r *AskReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	if r.Timestamps == nil {
		r.Timestamps = []TimestampRef{}
	}
	if r.Status == "" {
		r.Status = StatusOK
		if r.ErrorCode != "" {
			r.Status = StatusFailed
		}
	}
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
func (r AskReport) MarshalJSON() ([]byte, error) {
	type Alias AskReport
	return json.Marshal(Alias(r))
}
