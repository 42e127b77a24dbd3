package app

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/John-Robertt/tubeqa/internal/domain"
	"github.com/John-Robertt/tubeqa/internal/infra/imgx"
	"github.com/John-Robertt/tubeqa/internal/page"
	"github.com/John-Robertt/tubeqa/internal/transcript"
)

// FrameRequest 描述一次截帧。
//
// 图片来源：ImagePath 指定的本地文件；为空时使用视频缩略图。
// Video 为空时使用当前已加载的视频。
type FrameRequest struct {
	Video     string
	PagePath  string // 可选：用于补全标题
	At        float64
	ImagePath string
}

// CaptureFrame 取得图片、统一为 PNG，并追加到截帧记录。
func (s *Session) CaptureFrame(ctx context.Context, req FrameRequest) (domain.CapturedFrame, error) {
	if s.store == nil {
		return domain.CapturedFrame{}, fmt.Errorf("未配置存储")
	}
	if req.At < 0 || math.IsNaN(req.At) || math.IsInf(req.At, 0) {
		return domain.CapturedFrame{}, &Error{Code: domain.ErrCodeInvalidVideo, Message: fmt.Sprintf("无效的时间点：%v", req.At)}
	}

	id, title, err := s.frameVideo(req)
	if err != nil {
		return domain.CapturedFrame{}, err
	}
	s.obs.OnStart("frame", id)

	started := time.Now()
	var raw []byte
	if p := strings.TrimSpace(req.ImagePath); p != "" {
		raw, err = os.ReadFile(p)
	} else {
		raw, err = transcript.GetBody(ctx, s.client, s.thumbnail(id))
	}
	if err != nil {
		return domain.CapturedFrame{}, fmt.Errorf("读取截帧图片失败：%w", err)
	}
	img, err := imgx.FramePNG(raw)
	if err != nil {
		return domain.CapturedFrame{}, err
	}

	f, err := s.store.AddFrame(ctx, domain.CapturedFrame{
		ImageData:  img,
		Timestamp:  req.At,
		VideoID:    id,
		VideoTitle: title,
		CreatedAt:  s.now().UnixMilli(),
	})
	s.obs.OnPhaseDone("frame", map[string]any{"bytes": len(img), "ok": err == nil}, time.Since(started))
	if err != nil {
		return domain.CapturedFrame{}, err
	}
	return f, nil
}

func (s *Session) frameVideo(req FrameRequest) (domain.VideoID, string, error) {
	cur := s.Current()

	var id domain.VideoID
	switch {
	case strings.TrimSpace(req.Video) != "":
		v, err := s.resolveVideo(Source{Video: req.Video})
		if err != nil {
			return "", "", err
		}
		id = v
	case cur != nil:
		id = cur.Info.VideoID
	}

	title := ""
	if cur != nil && cur.Info.VideoID == id {
		title = cur.Info.Title
	}
	if path := strings.TrimSpace(req.PagePath); path != "" {
		p, err := page.LoadFile(path, id)
		if err != nil {
			return "", "", err
		}
		id = p.VideoID
		if t := p.Info().Title; t != "" {
			title = t
		}
	}
	if id == "" {
		return "", "", &Error{Code: domain.ErrCodeInvalidVideo, Message: "缺少视频地址或 id"}
	}
	return id, title, nil
}
