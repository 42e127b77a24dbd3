package transcript

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/John-Robertt/tubeqa/internal/domain"
)

const (
	StageFetch = "fetch"
	StageParse = "parse"
	StageEmpty = "empty"
	StagePanic = "panic"
	StageOK    = "ok"
)

// Attempt 记录一次策略尝试（用于解释 fallback 原因）。
// 注意：这是内部执行轨迹，错误不会越过 Fetcher 向上传播。
type Attempt struct {
	Strategy string
	Stage    string // fetch / parse / empty / panic / ok
	Err      error  // nil when Stage=="ok"
}

// ErrNoTranscript 可用于 errors.Is 判断“所有策略都失败”。
var ErrNoTranscript = errors.New("no transcript available")

// NoTranscriptError 表示所有策略都没有拿到字幕。
type NoTranscriptError struct {
	VideoID  domain.VideoID
	Attempts []Attempt
}

func (e *NoTranscriptError) Error() string {
	names := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		names = append(names, a.Strategy)
	}
	if len(names) == 0 {
		return fmt.Sprintf("%s：该视频没有可用的字幕", domain.ErrCodeNoTranscript)
	}
	return fmt.Sprintf("%s：该视频没有可用的字幕（已尝试 %s）", domain.ErrCodeNoTranscript, strings.Join(names, ", "))
}

func (e *NoTranscriptError) Is(target error) bool { return target == ErrNoTranscript }

// Code 返回稳定的 error_code。
func (e *NoTranscriptError) Code() string { return domain.ErrCodeNoTranscript }

// Fetcher 按固定顺序依次尝试策略，返回第一个非空结果。
type Fetcher struct {
	strategies []Strategy
	client     *http.Client
	logger     *slog.Logger
}

// DefaultStrategies 返回规范顺序：embedded -> direct -> panel。
func DefaultStrategies() []Strategy {
	return []Strategy{EmbeddedStrategy{}, DirectStrategy{}, &PanelStrategy{}}
}

// NewFetcher 校验策略列表（非空、名称唯一）并构造 Fetcher。
// c 为 nil 时使用 http.DefaultClient；logger 为 nil 时丢弃日志。
func NewFetcher(c *http.Client, logger *slog.Logger, strategies ...Strategy) (*Fetcher, error) {
	if len(strategies) == 0 {
		return nil, errors.New("至少需要一个策略")
	}
	seen := make(map[string]struct{}, len(strategies))
	for _, s := range strategies {
		if s == nil {
			return nil, errors.New("策略不能为空")
		}
		name := strings.ToLower(strings.TrimSpace(s.Name()))
		if name == "" {
			return nil, errors.New("策略名称不能为空")
		}
		if _, ok := seen[name]; ok {
			return nil, fmt.Errorf("重复的策略：%q", name)
		}
		seen[name] = struct{}{}
	}
	if c == nil {
		c = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Fetcher{
		strategies: append([]Strategy(nil), strategies...),
		client:     c,
		logger:     logger,
	}, nil
}

// Fetch 返回第一个成功策略的字幕；全部失败时返回 *NoTranscriptError。
func (f *Fetcher) Fetch(ctx context.Context, pc *PageContext) ([]domain.Segment, error) {
	segs, _, _, err := f.FetchTrace(ctx, pc)
	return segs, err
}

// FetchTrace 与 Fetch 相同，但额外返回成功策略名与完整尝试链路。
//
// 单个策略内部的错误（包括 panic）只记录在 attempts 中，不向上传播；
// 唯一例外是 ctx 被取消：此时直接返回 ctx.Err()。
func (f *Fetcher) FetchTrace(ctx context.Context, pc *PageContext) (segs []domain.Segment, used string, attempts []Attempt, err error) {
	if pc == nil {
		return nil, "", nil, errors.New("page context 不能为空")
	}

	for _, s := range f.strategies {
		if cerr := ctx.Err(); cerr != nil {
			return nil, "", attempts, cerr
		}
		name := strings.ToLower(strings.TrimSpace(s.Name()))

		out, serr := f.run(ctx, s, pc)
		if serr != nil {
			stage := stageOf(serr)
			attempts = append(attempts, Attempt{Strategy: name, Stage: stage, Err: serr})
			f.logger.Debug("transcript strategy failed",
				slog.String("strategy", name),
				slog.String("stage", stage),
				slog.String("video_id", string(pc.VideoID)),
				slog.Any("error", serr),
			)
			continue
		}
		if len(out) == 0 {
			attempts = append(attempts, Attempt{Strategy: name, Stage: StageEmpty, Err: errEmptyResult})
			f.logger.Debug("transcript strategy returned nothing",
				slog.String("strategy", name),
				slog.String("video_id", string(pc.VideoID)),
			)
			continue
		}

		attempts = append(attempts, Attempt{Strategy: name, Stage: StageOK})
		f.logger.Debug("transcript strategy succeeded",
			slog.String("strategy", name),
			slog.Int("segments", len(out)),
		)
		return out, name, attempts, nil
	}

	if cerr := ctx.Err(); cerr != nil {
		return nil, "", attempts, cerr
	}
	f.logger.Warn("no transcript available",
		slog.String("video_id", string(pc.VideoID)),
		slog.Int("attempts", len(attempts)),
	)
	return nil, "", attempts, &NoTranscriptError{VideoID: pc.VideoID, Attempts: attempts}
}

func (f *Fetcher) run(ctx context.Context, s Strategy, pc *PageContext) (segs []domain.Segment, err error) {
	defer func() {
		if r := recover(); r != nil {
			segs = nil
			err = &panicError{Value: r}
		}
	}()
	return s.Fetch(ctx, pc, f.client)
}

var errEmptyResult = errors.New("策略未返回任何字幕")

type panicError struct {
	Value any
}

func (e *panicError) Error() string { return fmt.Sprintf("策略 panic：%v", e.Value) }

func stageOf(err error) string {
	var pe *panicError
	if errors.As(err, &pe) {
		return StagePanic
	}
	var perr *ParseError
	if errors.As(err, &perr) {
		return StageParse
	}
	return StageFetch
}

// ReportAttempts 把内部尝试链路转为对外输出结构。
func ReportAttempts(attempts []Attempt) []domain.StrategyAttempt {
	out := make([]domain.StrategyAttempt, 0, len(attempts))
	for _, a := range attempts {
		sa := domain.StrategyAttempt{Strategy: a.Strategy, Stage: a.Stage}
		if a.Err != nil {
			sa.Error = a.Err.Error()
		}
		out = append(out, sa)
	}
	return out
}
