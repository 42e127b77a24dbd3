package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/tubeqa/internal/app"
	"github.com/John-Robertt/tubeqa/internal/domain"
)

var _ app.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的进度输出。
//
// 约束：
// - 所有过程信息写到 stderr，不污染 stdout 的 JSON/字幕输出
// - 事件驱动：app 层只发事件，CLI 决定如何展示
// - 等待回答期间定期输出一行 keepalive
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time
	waiting     bool

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh chan struct{}
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(op string, id domain.VideoID) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.startedAt = now
	if id != "" {
		fmt.Fprintf(p.w, "[%s] tubeqa %s %s\n", now.Format("15:04:05"), op, id)
	} else {
		fmt.Fprintf(p.w, "[%s] tubeqa %s\n", now.Format("15:04:05"), op)
	}
	p.lastPrinted = now

	if op == "ask" && !p.waiting {
		p.waiting = true
		p.startTickerLocked()
	}
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "page":
		src := "快照"
		if boolField(fields, "live") {
			src = "在线"
		}
		fmt.Fprintf(p.w, "页面: %s bytes=%d (%s)\n", src, intField(fields, "bytes"), formatShortDuration(dur))
	case "transcript":
		strategy := stringField(fields, "strategy")
		if strategy == "" {
			strategy = "-"
		}
		fmt.Fprintf(p.w, "字幕: strategy=%s segments=%d attempts=%d (%s)\n",
			strategy, intField(fields, "segments"), intField(fields, "attempts"), formatShortDuration(dur),
		)
	case "answer":
		p.stopTickerLocked()
		fmt.Fprintf(p.w, "回答: model=%s ok=%s (%s)\n", stringField(fields, "model"), onOff(boolField(fields, "ok")), formatShortDuration(dur))
	case "history":
		if !boolField(fields, "ok") {
			fmt.Fprintln(p.w, "历史: 写入失败（详见日志）")
		}
	case "frame":
		fmt.Fprintf(p.w, "截帧: bytes=%d (%s)\n", intField(fields, "bytes"), formatShortDuration(dur))
	default:
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}

	p.lastPrinted = time.Now()
}

// Stop 停止 keepalive（回答阶段因错误提前结束时由调用方兜底）。
func (p *progressUI) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopTickerLocked()
}

func (p *progressUI) stopTickerLocked() {
	if p.waiting {
		close(p.stopCh)
		p.waiting = false
	}
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	stop := p.stopCh

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.waiting && time.Since(p.lastPrinted) > threshold {
					fmt.Fprintf(p.w, "等待回答: elapsed=%s\n", formatElapsed(time.Since(p.startedAt)))
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func onOff(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// formatAttemptChain 把策略链路压成一行：embedded:fetch:HTTP 404;direct:parse:...
func formatAttemptChain(attempts []domain.StrategyAttempt, max int) string {
	if len(attempts) == 0 || max == 0 {
		return ""
	}
	if max < 0 {
		max = len(attempts)
	}
	parts := make([]string, 0, len(attempts))
	for _, a := range attempts {
		s := strings.TrimSpace(a.Strategy) + ":" + strings.TrimSpace(a.Stage)
		if em := strings.TrimSpace(a.Error); em != "" {
			s += ":" + truncate(em, 80)
		}
		parts = append(parts, s)
		if len(parts) >= max {
			break
		}
	}
	return strings.Join(parts, ";")
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	switch x := fields[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	default:
		return 0
	}
}

func boolField(fields map[string]any, key string) bool {
	b, _ := fields[key].(bool)
	return b
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}
