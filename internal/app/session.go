// Package app 编排一次“加载字幕 -> 提问 -> 格式化 -> 记历史”的会话，以及截帧。
package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/John-Robertt/tubeqa/internal/answer"
	"github.com/John-Robertt/tubeqa/internal/domain"
	"github.com/John-Robertt/tubeqa/internal/page"
	"github.com/John-Robertt/tubeqa/internal/qa"
	"github.com/John-Robertt/tubeqa/internal/store"
	"github.com/John-Robertt/tubeqa/internal/transcript"
)

// Options 是 Session 的依赖与参数。
type Options struct {
	// HTTPClient 用于观看页、字幕接口与缩略图。
	HTTPClient *http.Client
	QA         *qa.Client
	Store      *store.Store

	Lang   string
	Origin string
	// EnvAPIKey 非空时优先于存储中的 key。
	EnvAPIKey string

	Logger   *slog.Logger
	Observer Observer

	// Strategies 为空时使用 embedded -> direct -> panel。
	Strategies []transcript.Strategy
	// Thumbnail 覆盖缩略图地址（测试用）。
	Thumbnail func(domain.VideoID) string
	Now       func() time.Time
}

// Source 描述要加载的视频：URL/裸 id，或保存的页面快照（此时 Video 可省略）。
type Source struct {
	Video    string
	PagePath string
}

// Loaded 是当前会话已加载的视频与字幕。
type Loaded struct {
	Info     domain.VideoInfo
	Segments []domain.Segment
	Strategy string
}

// Session 持有一个视频的字幕，并在其上串行地回答问题。
//
// 同一时刻只允许一个 Ask 在途：第二个调用直接返回 ErrBusy，不排队。
type Session struct {
	client    *http.Client
	qa        *qa.Client
	store     *store.Store
	fetcher   *transcript.Fetcher
	logger    *slog.Logger
	obs       Observer
	lang      string
	origin    string
	envKey    string
	thumbnail func(domain.VideoID) string
	now       func() time.Time

	busy atomic.Bool

	mu      sync.Mutex
	current *Loaded
}

// NewSession 组装会话。QA 与 Store 缺失时，相关操作会返回错误而不是 panic。
func NewSession(opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := opts.HTTPClient
	if c == nil {
		c = http.DefaultClient
	}
	strategies := opts.Strategies
	if len(strategies) == 0 {
		strategies = []transcript.Strategy{
			transcript.EmbeddedStrategy{},
			transcript.DirectStrategy{},
			&transcript.PanelStrategy{
				OnTransition: func(from, to transcript.PanelState) {
					logger.Debug("transcript panel", slog.String("from", from.String()), slog.String("to", to.String()))
				},
			},
		}
	}
	f, err := transcript.NewFetcher(c, logger, strategies...)
	if err != nil {
		return nil, err
	}

	s := &Session{
		client:    c,
		qa:        opts.QA,
		store:     opts.Store,
		fetcher:   f,
		logger:    logger,
		obs:       opts.Observer,
		lang:      strings.TrimSpace(opts.Lang),
		origin:    strings.TrimSpace(opts.Origin),
		envKey:    strings.TrimSpace(opts.EnvAPIKey),
		thumbnail: opts.Thumbnail,
		now:       opts.Now,
	}
	if s.obs == nil {
		s.obs = nopObserver{}
	}
	if s.lang == "" {
		s.lang = transcript.DefaultLang
	}
	if s.origin == "" {
		s.origin = transcript.DefaultOrigin
	}
	if s.thumbnail == nil {
		s.thumbnail = domain.ThumbnailURL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Current 返回当前已加载的视频；未加载时返回 nil。
func (s *Session) Current() *Loaded {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	cp := *s.current
	cp.Segments = append([]domain.Segment(nil), s.current.Segments...)
	return &cp
}

// LoadTranscript 打开页面并执行策略链。无论成败都返回一份 Finalize 过的报告；
// 成功时该视频成为后续 Ask 的上下文。
func (s *Session) LoadTranscript(ctx context.Context, src Source) (domain.TranscriptReport, error) {
	rep := domain.TranscriptReport{Lang: s.lang, StartedAt: s.now()}
	fail := func(err error) (domain.TranscriptReport, error) {
		rep.ErrorCode = Code(err)
		if rep.ErrorCode == "" {
			rep.ErrorCode = domain.ErrCodeNetwork
		}
		rep.ErrorMsg = err.Error()
		rep.FinishedAt = s.now()
		rep.Finalize()
		return rep, err
	}

	id, err := s.resolveVideo(src)
	if err != nil {
		return fail(err)
	}
	rep.VideoID = string(id)
	s.obs.OnStart("transcript", id)

	pageStarted := time.Now()
	p, err := s.openPage(ctx, src, id)
	if err != nil {
		return fail(err)
	}
	info := p.Info()
	if info.VideoID == "" {
		info.VideoID = p.VideoID
	}
	rep.VideoID = string(p.VideoID)
	rep.Title = info.Title
	s.obs.OnPhaseDone("page", map[string]any{"live": p.Live, "bytes": len(p.Document)}, time.Since(pageStarted))

	fetchStarted := time.Now()
	segs, used, attempts, err := s.fetcher.FetchTrace(ctx, p.Context(s.lang, s.client))
	rep.Attempts = transcript.ReportAttempts(attempts)
	s.obs.OnPhaseDone("transcript", map[string]any{
		"strategy": used,
		"attempts": len(attempts),
		"segments": len(segs),
	}, time.Since(fetchStarted))
	if err != nil {
		return fail(err)
	}

	rep.Strategy = used
	rep.Segments = segs
	rep.FinishedAt = s.now()
	rep.Finalize()

	s.mu.Lock()
	s.current = &Loaded{Info: info, Segments: segs, Strategy: used}
	s.mu.Unlock()

	s.logger.Info("transcript loaded",
		slog.String("video_id", string(p.VideoID)),
		slog.String("strategy", used),
		slog.Int("segments", len(segs)),
	)
	return rep, nil
}

// Ask 用当前字幕回答问题，成功后写入历史。
//
// 历史写入失败只记日志：回答本身已经拿到，不应因此丢失。
func (s *Session) Ask(ctx context.Context, question string) (domain.AskReport, error) {
	rep := domain.AskReport{Question: strings.TrimSpace(question), StartedAt: s.now()}
	fail := func(err error) (domain.AskReport, error) {
		rep.ErrorCode = Code(err)
		if rep.ErrorCode == "" {
			rep.ErrorCode = domain.ErrCodeNetwork
		}
		rep.ErrorMsg = err.Error()
		rep.FinishedAt = s.now()
		rep.Finalize()
		return rep, err
	}

	if !s.busy.CompareAndSwap(false, true) {
		return fail(ErrBusy)
	}
	defer s.busy.Store(false)

	cur := s.Current()
	if cur == nil {
		return fail(errNotLoaded)
	}
	rep.VideoID = string(cur.Info.VideoID)
	rep.Title = cur.Info.Title
	rep.Strategy = cur.Strategy
	if rep.Question == "" {
		return fail(errEmptyQuestion)
	}
	if s.qa == nil {
		return fail(errors.New("未配置问答客户端"))
	}
	s.obs.OnStart("ask", cur.Info.VideoID)

	key, err := s.apiKey(ctx)
	if err != nil {
		return fail(err)
	}

	started := time.Now()
	text, err := s.qa.Answer(ctx, rep.Question, cur.Segments, key)
	s.obs.OnPhaseDone("answer", map[string]any{"model": s.qa.Model(), "ok": err == nil}, time.Since(started))
	if err != nil {
		return fail(err)
	}

	rep.Answer = text
	rep.AnswerHTML = answer.HTML(text)
	rep.Timestamps = answer.Timestamps(text, cur.Info.VideoID)

	if s.store != nil {
		histStarted := time.Now()
		_, herr := s.store.AddExchange(ctx, domain.QAExchange{
			Question:   rep.Question,
			Answer:     text,
			VideoID:    cur.Info.VideoID,
			VideoTitle: cur.Info.Title,
			Timestamp:  s.now().UnixMilli(),
		})
		if herr != nil {
			s.logger.Warn("history append failed", slog.Any("error", herr))
		}
		s.obs.OnPhaseDone("history", map[string]any{"ok": herr == nil}, time.Since(histStarted))
	}

	rep.FinishedAt = s.now()
	rep.Finalize()
	return rep, nil
}

// AskVideo 是 LoadTranscript + Ask 的组合（单次提问场景）。
// 字幕加载失败时返回的 AskReport 携带同样的 error_code。
func (s *Session) AskVideo(ctx context.Context, src Source, question string) (domain.AskReport, error) {
	tr, err := s.LoadTranscript(ctx, src)
	if err != nil {
		rep := domain.AskReport{
			VideoID:    tr.VideoID,
			Title:      tr.Title,
			Question:   strings.TrimSpace(question),
			ErrorCode:  tr.ErrorCode,
			ErrorMsg:   tr.ErrorMsg,
			StartedAt:  tr.StartedAt,
			FinishedAt: tr.FinishedAt,
		}
		rep.Finalize()
		return rep, err
	}
	return s.Ask(ctx, question)
}

func (s *Session) apiKey(ctx context.Context) (string, error) {
	if s.envKey != "" {
		return s.envKey, nil
	}
	if s.store == nil {
		return "", nil
	}
	return s.store.APIKey(ctx)
}

func (s *Session) resolveVideo(src Source) (domain.VideoID, error) {
	v := strings.TrimSpace(src.Video)
	if v == "" {
		if strings.TrimSpace(src.PagePath) != "" {
			return "", nil
		}
		return "", &Error{Code: domain.ErrCodeInvalidVideo, Message: "缺少视频地址或 id"}
	}
	id, ok := domain.ParseVideoID(v)
	if !ok {
		return "", &Error{Code: domain.ErrCodeInvalidVideo, Message: "无法识别的视频地址：" + v}
	}
	return id, nil
}

func (s *Session) openPage(ctx context.Context, src Source, id domain.VideoID) (*page.Page, error) {
	if path := strings.TrimSpace(src.PagePath); path != "" {
		p, err := page.LoadFile(path, id)
		var nid *page.NoVideoIDError
		if errors.As(err, &nid) {
			return nil, &Error{Code: domain.ErrCodeInvalidVideo, Err: err}
		}
		return p, err
	}
	return page.Load(ctx, s.client, s.origin, id)
}
