package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/John-Robertt/tubeqa/internal/domain"
	"github.com/John-Robertt/tubeqa/internal/infra/kv"
	"github.com/John-Robertt/tubeqa/internal/page"
	"github.com/John-Robertt/tubeqa/internal/qa"
	"github.com/John-Robertt/tubeqa/internal/store"
)

const testVideo = "dQw4w9WgXcQ"

const watchHTML = `<html><head><title>Demo Video - YouTube</title></head><body>
<script>var ytInitialPlayerResponse = {"videoDetails":{"videoId":"dQw4w9WgXcQ","title":"Demo Video","lengthSeconds":"212"},
"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[{"baseUrl":"/caption?lang=en","languageCode":"en"}]}}};</script>
</body></html>`

const captionMarkup = `<transcript><text start="0" dur="2">intro</text><text start="83" dur="3">the chorus</text></transcript>`

type fakeSite struct {
	srv *httptest.Server

	captionStatus int
	answerText    string
	answerHold    chan struct{} // 非 nil 时生成接口阻塞，直到被关闭
	answerEntered chan struct{}
	generateHits  atomic.Int32
}

func newFakeSite(t *testing.T) *fakeSite {
	t.Helper()
	fs := &fakeSite{captionStatus: http.StatusOK, answerText: "The chorus starts at [1:23]."}
	mux := http.NewServeMux()
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(watchHTML))
	})
	mux.HandleFunc("/caption", func(w http.ResponseWriter, r *http.Request) {
		if fs.captionStatus != http.StatusOK {
			w.WriteHeader(fs.captionStatus)
			return
		}
		_, _ = w.Write([]byte(captionMarkup))
	})
	mux.HandleFunc("/thumb.jpg", func(w http.ResponseWriter, r *http.Request) {
		img := image.NewRGBA(image.Rect(0, 0, 32, 18))
		for x := 0; x < 32; x++ {
			img.Set(x, 0, color.RGBA{200, 10, 10, 255})
		}
		_ = jpeg.Encode(w, img, nil)
	})
	mux.HandleFunc("/v1beta/", func(w http.ResponseWriter, r *http.Request) {
		fs.generateHits.Add(1)
		if fs.answerEntered != nil {
			fs.answerEntered <- struct{}{}
		}
		if fs.answerHold != nil {
			<-fs.answerHold
		}
		_, _ = fmt.Fprintf(w, `{"candidates":[{"content":{"parts":[{"text":%q}]}}]}`, fs.answerText)
	})
	fs.srv = httptest.NewServer(mux)
	t.Cleanup(fs.srv.Close)
	return fs
}

func newTestSession(t *testing.T, fs *fakeSite, envKey string, obs Observer) (*Session, *store.Store) {
	t.Helper()
	st := store.New(kv.NewMemory())
	c := fs.srv.Client()
	s, err := NewSession(Options{
		HTTPClient: c,
		QA:         qa.NewClient(qa.WithHTTPClient(c), qa.WithBaseURL(fs.srv.URL+"/v1beta")),
		Store:      st,
		Origin:     fs.srv.URL,
		EnvAPIKey:  envKey,
		Observer:   obs,
		Thumbnail:  func(domain.VideoID) string { return fs.srv.URL + "/thumb.jpg" },
	})
	if err != nil {
		t.Fatalf("NewSession 失败：%v", err)
	}
	return s, st
}

type recordObserver struct {
	mu     sync.Mutex
	starts []string
	phases []string
}

func (o *recordObserver) OnStart(op string, id domain.VideoID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.starts = append(o.starts, op)
}

func (o *recordObserver) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.phases = append(o.phases, name)
}

func TestLoadTranscriptAndAsk_RecordsHistory(t *testing.T) {
	fs := newFakeSite(t)
	obs := &recordObserver{}
	s, st := newTestSession(t, fs, "k-env", obs)
	ctx := context.Background()

	tr, err := s.LoadTranscript(ctx, Source{Video: "https://youtu.be/" + testVideo})
	if err != nil {
		t.Fatalf("LoadTranscript 失败：%v", err)
	}
	if tr.Status != domain.StatusOK || tr.Strategy != "embedded" || tr.Title != "Demo Video" {
		t.Fatalf("报告不符合预期：%+v", tr)
	}
	wantSegs := []domain.Segment{{Text: "intro", Start: 0, Duration: 2}, {Text: "the chorus", Start: 83, Duration: 3}}
	if !reflect.DeepEqual(tr.Segments, wantSegs) {
		t.Fatalf("字幕不符合预期：%+v", tr.Segments)
	}

	rep, err := s.Ask(ctx, "  When is the chorus?  ")
	if err != nil {
		t.Fatalf("Ask 失败：%v", err)
	}
	if rep.Status != domain.StatusOK || rep.Answer != fs.answerText || rep.Question != "When is the chorus?" {
		t.Fatalf("AskReport 不符合预期：%+v", rep)
	}
	if !strings.Contains(rep.AnswerHTML, `data-time="83"`) {
		t.Fatalf("回答应包含可点击时间戳：%s", rep.AnswerHTML)
	}
	if len(rep.Timestamps) != 1 || rep.Timestamps[0].URL != domain.WatchURL(testVideo, 83) {
		t.Fatalf("时间戳不符合预期：%+v", rep.Timestamps)
	}

	hist, err := st.History(ctx)
	if err != nil {
		t.Fatalf("读取历史失败：%v", err)
	}
	if len(hist) != 1 || hist[0].VideoID != testVideo || hist[0].VideoTitle != "Demo Video" || hist[0].Answer != fs.answerText {
		t.Fatalf("历史不符合预期：%+v", hist)
	}

	wantPhases := []string{"page", "transcript", "answer", "history"}
	if !reflect.DeepEqual(obs.phases, wantPhases) {
		t.Fatalf("阶段事件不符合预期：got=%v want=%v", obs.phases, wantPhases)
	}
	if !reflect.DeepEqual(obs.starts, []string{"transcript", "ask"}) {
		t.Fatalf("开始事件不符合预期：%v", obs.starts)
	}
}

func TestAsk_NoAPIKey_NoNetworkCall(t *testing.T) {
	fs := newFakeSite(t)
	s, st := newTestSession(t, fs, "", nil)
	ctx := context.Background()

	if _, err := s.LoadTranscript(ctx, Source{Video: testVideo}); err != nil {
		t.Fatalf("LoadTranscript 失败：%v", err)
	}
	rep, err := s.Ask(ctx, "anything")
	if err == nil || Code(err) != domain.ErrCodeNoAPIKey {
		t.Fatalf("期望 no_api_key，实际 %v", err)
	}
	if rep.Status != domain.StatusFailed || rep.ErrorCode != domain.ErrCodeNoAPIKey || rep.ErrorMsg != "API key not provided" {
		t.Fatalf("失败报告不符合预期：%+v", rep)
	}
	if fs.generateHits.Load() != 0 {
		t.Fatalf("缺少 key 时不应请求生成接口")
	}

	// 存储中的 key 生效。
	if err := st.SetAPIKey(ctx, "k-stored"); err != nil {
		t.Fatalf("SetAPIKey 失败：%v", err)
	}
	if _, err := s.Ask(ctx, "anything"); err != nil {
		t.Fatalf("设置 key 后 Ask 应成功：%v", err)
	}
}

func TestAsk_Preconditions(t *testing.T) {
	fs := newFakeSite(t)
	s, _ := newTestSession(t, fs, "k", nil)
	ctx := context.Background()

	if _, err := s.Ask(ctx, "q"); Code(err) != domain.ErrCodeNoTranscript {
		t.Fatalf("未加载字幕时期望 no_transcript_available，实际 %v", err)
	}
	if _, err := s.LoadTranscript(ctx, Source{Video: testVideo}); err != nil {
		t.Fatalf("LoadTranscript 失败：%v", err)
	}
	if _, err := s.Ask(ctx, "   "); Code(err) != domain.ErrCodeEmptyQuestion {
		t.Fatalf("空问题期望 empty_question，实际 %v", err)
	}
}

func TestAsk_BusyDoesNotQueue(t *testing.T) {
	fs := newFakeSite(t)
	fs.answerHold = make(chan struct{})
	fs.answerEntered = make(chan struct{}, 1)
	s, _ := newTestSession(t, fs, "k", nil)
	ctx := context.Background()

	if _, err := s.LoadTranscript(ctx, Source{Video: testVideo}); err != nil {
		t.Fatalf("LoadTranscript 失败：%v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.Ask(ctx, "first")
		done <- err
	}()
	<-fs.answerEntered

	rep, err := s.Ask(ctx, "second")
	if !errors.Is(err, ErrBusy) || rep.ErrorCode != domain.ErrCodeBusy {
		t.Fatalf("期望 busy，实际 err=%v rep=%+v", err, rep)
	}

	close(fs.answerHold)
	if err := <-done; err != nil {
		t.Fatalf("第一个 Ask 应成功：%v", err)
	}
	if fs.generateHits.Load() != 1 {
		t.Fatalf("busy 的请求不应排队执行，实际命中 %d 次", fs.generateHits.Load())
	}

	// 释放后可以再次提问。
	if _, err := s.Ask(ctx, "third"); err != nil {
		t.Fatalf("busy 释放后 Ask 应成功：%v", err)
	}
}

func TestLoadTranscript_Failures(t *testing.T) {
	fs := newFakeSite(t)
	fs.captionStatus = http.StatusNotFound
	s, _ := newTestSession(t, fs, "k", nil)
	ctx := context.Background()

	rep, err := s.LoadTranscript(ctx, Source{Video: testVideo})
	if Code(err) != domain.ErrCodeNoTranscript {
		t.Fatalf("期望 no_transcript_available，实际 %v", err)
	}
	if rep.Status != domain.StatusFailed || len(rep.Attempts) != 3 || len(rep.Segments) != 0 {
		t.Fatalf("失败报告不符合预期：%+v", rep)
	}
	if s.Current() != nil {
		t.Fatalf("失败时不应设置当前视频")
	}

	if _, err := s.LoadTranscript(ctx, Source{Video: "not a video"}); Code(err) != domain.ErrCodeInvalidVideo {
		t.Fatalf("期望 invalid_video，实际 %v", err)
	}

	snap := filepath.Join(t.TempDir(), "blank.html")
	if err := os.WriteFile(snap, []byte("<html><body>nothing</body></html>"), 0o644); err != nil {
		t.Fatalf("写入快照失败：%v", err)
	}
	_, err = s.LoadTranscript(ctx, Source{PagePath: snap})
	var nid *page.NoVideoIDError
	if Code(err) != domain.ErrCodeInvalidVideo || !errors.As(err, &nid) {
		t.Fatalf("无法识别 id 的快照应为 invalid_video，实际 %T %v", err, err)
	}

	arep, err := s.AskVideo(ctx, Source{Video: testVideo}, "q")
	if err == nil || arep.ErrorCode != domain.ErrCodeNoTranscript || arep.Question != "q" {
		t.Fatalf("AskVideo 应透传字幕失败：err=%v rep=%+v", err, arep)
	}
}

func TestCaptureFrame(t *testing.T) {
	fs := newFakeSite(t)
	s, st := newTestSession(t, fs, "k", nil)
	ctx := context.Background()

	if _, err := s.LoadTranscript(ctx, Source{Video: testVideo}); err != nil {
		t.Fatalf("LoadTranscript 失败：%v", err)
	}

	// 缩略图来源，视频取当前会话。
	f, err := s.CaptureFrame(ctx, FrameRequest{At: 83})
	if err != nil {
		t.Fatalf("CaptureFrame 失败：%v", err)
	}
	if f.VideoID != testVideo || f.VideoTitle != "Demo Video" || f.Timestamp != 83 || f.ID == 0 {
		t.Fatalf("截帧记录不符合预期：%+v", f)
	}
	if !bytes.HasPrefix(f.ImageData, []byte("\x89PNG")) {
		t.Fatalf("截帧应统一为 PNG")
	}

	// 本地文件来源。
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8)), nil); err != nil {
		t.Fatalf("encode jpeg 失败：%v", err)
	}
	path := filepath.Join(t.TempDir(), "shot.jpg")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
	if _, err := s.CaptureFrame(ctx, FrameRequest{Video: "abcdefghijk", At: 1, ImagePath: path}); err != nil {
		t.Fatalf("CaptureFrame(file) 失败：%v", err)
	}

	frames, err := st.Frames(ctx)
	if err != nil {
		t.Fatalf("读取截帧失败：%v", err)
	}
	if len(frames) != 2 || frames[1].VideoID != "abcdefghijk" || frames[1].VideoTitle != "" {
		t.Fatalf("截帧记录不符合预期：%+v", frames)
	}
	if frames[0].ID == frames[1].ID {
		t.Fatalf("截帧 id 应唯一")
	}

	if _, err := s.CaptureFrame(ctx, FrameRequest{Video: "x", At: 1}); Code(err) != domain.ErrCodeInvalidVideo {
		t.Fatalf("期望 invalid_video，实际 %v", err)
	}
	if _, err := s.CaptureFrame(ctx, FrameRequest{At: -1}); err == nil {
		t.Fatalf("负时间点应报错")
	}
}
