package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/John-Robertt/tubeqa/internal/domain"
)

const markupBody = `<transcript><text start="2" dur="1">second</text><text start="0.5" dur="1.5">first &amp;#39;one&amp;#39;</text></transcript>`

func playerJSON(baseURL string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[
		{"baseUrl":"%s/asr","languageCode":"en","kind":"asr"},
		{"baseUrl":"%s/human","languageCode":"en"}]}}}`, baseURL, baseURL))
}

func TestEmbeddedStrategy_FetchesSelectedTrack(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/human" {
			t.Errorf("应请求人工字幕轨，实际 %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(markupBody))
	}))
	defer srv.Close()

	segs, err := EmbeddedStrategy{}.Fetch(context.Background(), &PageContext{PlayerResponse: playerJSON(srv.URL)}, srv.Client())
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want := []domain.Segment{{Text: "first 'one'", Start: 0.5, Duration: 1.5}, {Text: "second", Start: 2, Duration: 1}}
	if !reflect.DeepEqual(segs, want) {
		t.Fatalf("期望 %+v，实际 %+v", want, segs)
	}
	if hits.Load() != 1 {
		t.Fatalf("期望只请求 1 次，实际 %d", hits.Load())
	}
}

func TestEmbeddedStrategy_RejectsNonMarkupAndNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/human" {
			_, _ = w.Write([]byte(`{"not":"markup"}`))
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := EmbeddedStrategy{}.Fetch(context.Background(), &PageContext{PlayerResponse: playerJSON(srv.URL)}, srv.Client())
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("非标记响应应视为 ParseError，实际 %v", err)
	}

	pr := json.RawMessage(fmt.Sprintf(`{"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[{"baseUrl":"%s/gone","languageCode":"en"}]}}}`, srv.URL))
	_, err = EmbeddedStrategy{}.Fetch(context.Background(), &PageContext{PlayerResponse: pr}, srv.Client())
	var he *HTTPStatusError
	if !errors.As(err, &he) || he.StatusCode != http.StatusForbidden {
		t.Fatalf("非 2xx 应返回 HTTPStatusError，实际 %v", err)
	}
}

func TestEmbeddedStrategy_ResolvesRelativeBaseURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/timedtext" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(markupBody))
	}))
	defer srv.Close()

	pr := json.RawMessage(`{"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[{"baseUrl":"/api/timedtext?v=x","languageCode":"en"}]}}}`)
	segs, err := EmbeddedStrategy{}.Fetch(context.Background(), &PageContext{PlayerResponse: pr, Origin: srv.URL}, srv.Client())
	if err != nil || len(segs) != 2 {
		t.Fatalf("相对 baseUrl 应基于 origin 解析：segs=%+v err=%v", segs, err)
	}
}

func TestDirectStrategy_StructuredFirst(t *testing.T) {
	var formats []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		formats = append(formats, r.URL.Query().Get("fmt"))
		if r.URL.Query().Get("v") != "dQw4w9WgXcQ" || r.URL.Query().Get("lang") != "de" {
			t.Errorf("查询参数不正确：%s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"events":[{"segs":[{"utf8":"Hallo"}],"tStartMs":1000,"dDurationMs":500}]}`))
	}))
	defer srv.Close()

	segs, err := DirectStrategy{}.Fetch(context.Background(), &PageContext{VideoID: "dQw4w9WgXcQ", Lang: "de", Origin: srv.URL}, srv.Client())
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(segs) != 1 || segs[0].Text != "Hallo" {
		t.Fatalf("结果不正确：%+v", segs)
	}
	if !reflect.DeepEqual(formats, []string{"json3"}) {
		t.Fatalf("json3 成功后不应再请求标记格式：%v", formats)
	}
}

func TestDirectStrategy_FallsBackToMarkup(t *testing.T) {
	var formats []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f := r.URL.Query().Get("fmt")
		formats = append(formats, f)
		if f == "json3" {
			_, _ = w.Write([]byte(`{"unexpected":true}`))
			return
		}
		_, _ = w.Write([]byte(markupBody))
	}))
	defer srv.Close()

	segs, err := DirectStrategy{Endpoint: srv.URL + "/api/timedtext"}.Fetch(context.Background(), &PageContext{VideoID: "dQw4w9WgXcQ"}, srv.Client())
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("结果不正确：%+v", segs)
	}
	if !reflect.DeepEqual(formats, []string{"json3", ""}) {
		t.Fatalf("请求顺序不正确：%v", formats)
	}
}

func TestDirectStrategy_BothFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := DirectStrategy{}.Fetch(context.Background(), &PageContext{VideoID: "dQw4w9WgXcQ", Origin: srv.URL}, srv.Client())
	var he *HTTPStatusError
	if !errors.As(err, &he) {
		t.Fatalf("期望 HTTPStatusError，实际 %v", err)
	}
}

type fakePanel struct {
	openErr error
	rows    []PanelRow
	opened  int
	closed  int
}

func (p *fakePanel) Open(ctx context.Context) error {
	p.opened++
	return p.openErr
}

func (p *fakePanel) Rows(ctx context.Context) ([]PanelRow, error) { return p.rows, nil }

func (p *fakePanel) Close(ctx context.Context) error {
	p.closed++
	return nil
}

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func TestPanelStrategy_StateMachineOnSuccess(t *testing.T) {
	var (
		trace   []PanelState
		settled time.Duration
	)
	s := &PanelStrategy{
		Sleep: func(ctx context.Context, d time.Duration) error {
			settled = d
			return nil
		},
		OnTransition: func(from, to PanelState) { trace = append(trace, to) },
	}
	p := &fakePanel{rows: []PanelRow{{Timestamp: "0:05", Text: "hello"}, {Timestamp: "1:02", Text: "world"}}}

	segs, err := s.Fetch(context.Background(), &PageContext{Panel: p}, nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want := []domain.Segment{{Text: "hello", Start: 5}, {Text: "world", Start: 62}}
	if !reflect.DeepEqual(segs, want) {
		t.Fatalf("期望 %+v，实际 %+v", want, segs)
	}
	if !reflect.DeepEqual(trace, []PanelState{PanelOpening, PanelOpen, PanelClosing, PanelClosed}) {
		t.Fatalf("状态迁移不正确：%v", trace)
	}
	if settled != DefaultSettleDelay {
		t.Fatalf("期望等待 %v，实际 %v", DefaultSettleDelay, settled)
	}
	if p.closed != 1 {
		t.Fatalf("面板应被关闭一次，实际 %d", p.closed)
	}
}

func TestPanelStrategy_RestoresClosedOnFailure(t *testing.T) {
	var trace []PanelState
	s := &PanelStrategy{Sleep: noSleep, OnTransition: func(from, to PanelState) { trace = append(trace, to) }}

	// 入口不存在。
	p := &fakePanel{openErr: errors.New("no button")}
	if _, err := s.Fetch(context.Background(), &PageContext{Panel: p}, nil); err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
	if trace[len(trace)-1] != PanelClosed {
		t.Fatalf("失败后必须回到 Closed：%v", trace)
	}

	// 没有条目。
	trace = nil
	p = &fakePanel{}
	if _, err := s.Fetch(context.Background(), &PageContext{Panel: p}, nil); err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
	if !reflect.DeepEqual(trace, []PanelState{PanelOpening, PanelOpen, PanelClosing, PanelClosed}) {
		t.Fatalf("状态迁移不正确：%v", trace)
	}
	if p.closed != 1 {
		t.Fatalf("面板应被关闭一次，实际 %d", p.closed)
	}
}

func TestPanelStrategy_NoPanel(t *testing.T) {
	if _, err := (&PanelStrategy{}).Fetch(context.Background(), &PageContext{}, nil); err == nil {
		t.Fatalf("没有面板时应返回错误")
	}
}

func TestFetcher_Idempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(markupBody))
	}))
	defer srv.Close()

	f, err := NewFetcher(srv.Client(), nil, DefaultStrategies()...)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	pc := &PageContext{VideoID: "dQw4w9WgXcQ", PlayerResponse: playerJSON(srv.URL)}

	a, err := f.Fetch(context.Background(), pc)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	b, err := f.Fetch(context.Background(), pc)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	if string(ja) != string(jb) {
		t.Fatalf("两次提取结果不一致：\n%s\n%s", ja, jb)
	}
}

func TestFetcher_AllStrategiesFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f, err := NewFetcher(srv.Client(), nil, EmbeddedStrategy{}, DirectStrategy{}, &PanelStrategy{Sleep: noSleep})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	pc := &PageContext{VideoID: "dQw4w9WgXcQ", Origin: srv.URL, Panel: &fakePanel{openErr: errors.New("no button")}}
	_, _, attempts, err := f.FetchTrace(context.Background(), pc)
	if !errors.Is(err, ErrNoTranscript) {
		t.Fatalf("期望 ErrNoTranscript，实际 %v", err)
	}
	if len(attempts) != 3 {
		t.Fatalf("期望 3 条 attempts，实际 %+v", attempts)
	}
}
