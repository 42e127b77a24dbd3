package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNew_JSONCarriesSession(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	l, id := WithSession(l)
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("会话 id 应为 uuid：%q", id)
	}
	l.Info("loaded", slog.Int("segments", 3))
	l.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("info 级别下 debug 不应输出：%q", buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("输出不是 JSON：%v", err)
	}
	if rec["session"] != id || rec["msg"] != "loaded" {
		t.Fatalf("字段不正确：%v", rec)
	}
}

func TestNew_Levels(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Writer: &buf})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	l.Info("quiet")
	l.Warn("loud")
	if strings.Contains(buf.String(), "quiet") || !strings.Contains(buf.String(), "loud") {
		t.Fatalf("默认级别应为 warn：%q", buf.String())
	}

	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatalf("未知格式应报错")
	}
}

func TestContext(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatalf("未存 logger 时应返回 no-op logger")
	}
	l := NewNop()
	if FromContext(NewContext(context.Background(), l)) != l {
		t.Fatalf("应取回同一个 logger")
	}
}
