package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/John-Robertt/tubeqa/internal/domain"
)

func TestProgressUI_PhaseLines(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressUI(&buf)

	p.OnStart("transcript", "dQw4w9WgXcQ")
	p.OnPhaseDone("page", map[string]any{"live": true, "bytes": 1024}, 1200*time.Millisecond)
	p.OnPhaseDone("transcript", map[string]any{"strategy": "direct", "segments": 42, "attempts": 2}, 300*time.Millisecond)
	p.OnStart("ask", "dQw4w9WgXcQ")
	p.OnPhaseDone("answer", map[string]any{"model": "m", "ok": true}, 2*time.Second)
	p.Stop() // 已停止时再次调用不应 panic

	out := buf.String()
	for _, want := range []string{
		"tubeqa transcript dQw4w9WgXcQ",
		"页面: 在线 bytes=1024 (1.2s)",
		"字幕: strategy=direct segments=42 attempts=2 (0.3s)",
		"回答: model=m ok=yes (2.0s)",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("输出缺少 %q：\n%s", want, out)
		}
	}
}

func TestFormatAttemptChain(t *testing.T) {
	attempts := []domain.StrategyAttempt{
		{Strategy: "embedded", Stage: "fetch", Error: "HTTP 404"},
		{Strategy: "direct", Stage: "parse", Error: "bad json"},
		{Strategy: "panel", Stage: "ok"},
	}
	if got := formatAttemptChain(attempts, -1); got != "embedded:fetch:HTTP 404;direct:parse:bad json;panel:ok" {
		t.Fatalf("attempt chain 不符合预期：%q", got)
	}
	if got := formatAttemptChain(attempts, 1); got != "embedded:fetch:HTTP 404" {
		t.Fatalf("max=1 时只保留第一条：%q", got)
	}
	if formatAttemptChain(nil, -1) != "" {
		t.Fatalf("空链路应返回空串")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("  字幕问答工具  ", 3); got != "字幕问" {
		t.Fatalf("truncate 不符合预期：%q", got)
	}
	if got := truncate("abcdefgh", 6); got != "abc..." {
		t.Fatalf("truncate 不符合预期：%q", got)
	}
}
