package transcript

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/John-Robertt/tubeqa/internal/domain"
)

// DefaultSettleDelay 是打开面板后等待异步渲染的固定时长。
const DefaultSettleDelay = 1500 * time.Millisecond

// PanelState 是转录面板的状态。
type PanelState int

const (
	PanelClosed PanelState = iota
	PanelOpening
	PanelOpen
	PanelClosing
)

func (s PanelState) String() string {
	switch s {
	case PanelClosed:
		return "closed"
	case PanelOpening:
		return "opening"
	case PanelOpen:
		return "open"
	case PanelClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// PanelStrategy 打开宿主页面的转录面板，等待渲染后读取条目，最后总是把面板关回去。
type PanelStrategy struct {
	// Settle 为 0 时使用 DefaultSettleDelay。
	Settle time.Duration
	// Sleep 覆盖等待实现（测试用）；为 nil 时使用可被 ctx 打断的计时器。
	Sleep func(ctx context.Context, d time.Duration) error
	// OnTransition 在每次状态迁移时回调（可选）。
	OnTransition func(from, to PanelState)
}

func (*PanelStrategy) Name() string { return "panel" }

func (s *PanelStrategy) Fetch(ctx context.Context, pc *PageContext, _ *http.Client) (segs []domain.Segment, err error) {
	if pc.Panel == nil {
		return nil, errors.New("页面没有转录面板")
	}

	g := &panelGuard{
		panel:        pc.Panel,
		settle:       s.Settle,
		sleep:        s.Sleep,
		onTransition: s.OnTransition,
	}
	// 无论成功与否都恢复为 Closed；ctx 已取消时仍要尝试恢复现场。
	defer g.close(context.WithoutCancel(ctx))

	if err := g.open(ctx); err != nil {
		return nil, err
	}
	rows, err := pc.Panel.Rows(ctx)
	if err != nil {
		return nil, err
	}
	segs = SegmentsFromRows(rows)
	if len(segs) == 0 {
		return nil, errors.New("面板中没有字幕条目")
	}
	return segs, nil
}

// panelGuard 是面板的打开/关闭守卫：Closed -> Opening -> Open -> Closing -> Closed。
type panelGuard struct {
	panel        Panel
	state        PanelState
	settle       time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
	onTransition func(from, to PanelState)
}

func (g *panelGuard) set(to PanelState) {
	from := g.state
	g.state = to
	if g.onTransition != nil {
		g.onTransition(from, to)
	}
}

func (g *panelGuard) open(ctx context.Context) error {
	g.set(PanelOpening)
	if err := g.panel.Open(ctx); err != nil {
		return err
	}
	d := g.settle
	if d <= 0 {
		d = DefaultSettleDelay
	}
	sleep := g.sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	if err := sleep(ctx, d); err != nil {
		return err
	}
	g.set(PanelOpen)
	return nil
}

func (g *panelGuard) close(ctx context.Context) {
	if g.state == PanelClosed {
		return
	}
	g.set(PanelClosing)
	// 关闭失败也不能阻止状态回到 Closed：策略结果不受影响。
	_ = g.panel.Close(ctx)
	g.set(PanelClosed)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
