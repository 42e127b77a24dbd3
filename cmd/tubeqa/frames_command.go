package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/tubeqa/internal/app"
	"github.com/John-Robertt/tubeqa/internal/domain"
	"github.com/John-Robertt/tubeqa/internal/export"
	"github.com/John-Robertt/tubeqa/internal/infra/fsx"
)

// frameSummary 是截帧列表的 JSON 形态（不含图片数据）。
type frameSummary struct {
	ID         int64   `json:"id"`
	VideoID    string  `json:"videoId"`
	VideoTitle string  `json:"videoTitle"`
	Timestamp  float64 `json:"timestamp"`
	CreatedAt  int64   `json:"createdAt"`
	Bytes      int     `json:"bytes"`
}

func newFramesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "frames",
		Short: "截帧：采集、列出、导出、删除",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFramesList(cmd, ctx)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "列出截帧",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFramesList(cmd, ctx)
		},
	})
	cmd.AddCommand(newFramesCaptureCommand(ctx))

	cmd.AddCommand(&cobra.Command{
		Use:   "export DIR",
		Short: "把截帧导出为 PNG 文件（不覆盖已有文件）",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			frames, err := st.Frames(cmd.Context())
			if err != nil {
				return err
			}
			written, skipped := 0, 0
			for _, f := range frames {
				err := fsx.WriteFileAtomicNoOverwrite(args[0], export.FrameFileName(f), f.ImageData)
				switch {
				case errors.Is(err, os.ErrExist):
					skipped++
				case err != nil:
					return err
				default:
					written++
				}
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "导出完成：written=%d skipped=%d dir=%s\n", written, skipped, args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete ID",
		Short: "删除一张截帧",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("ID 无效：%q", args[0])
			}
			st, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			found, err := st.DeleteFrame(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("未找到截帧 %d", id)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "已删除截帧 %d\n", id)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "清空全部截帧",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			if err := st.ClearFrames(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "已清空截帧")
			return nil
		},
	})

	return cmd
}

func newFramesCaptureCommand(ctx *commandContext) *cobra.Command {
	var (
		at        string
		imagePath string
		pagePath  string
	)
	cmd := &cobra.Command{
		Use:   "capture [VIDEO]",
		Short: "采集一张截帧（本地图片或视频缩略图）",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sec, err := parseAt(at)
			if err != nil {
				return err
			}
			req := app.FrameRequest{At: sec, ImagePath: imagePath, PagePath: pagePath}
			if len(args) == 1 {
				req.Video = args[0]
			}

			obs, done := progressFor(cmd)
			defer done()
			s, err := ctx.newSession(cmd.Context(), "", obs)
			if err != nil {
				return err
			}
			f, err := s.CaptureFrame(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !isTerminal(out) {
				return writeJSON(out, summarize(f))
			}
			fmt.Fprintf(out, "已保存截帧 %d（%s @ %s）\n", f.ID, f.VideoID, domain.FormatTimestamp(f.Timestamp))
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "0:00", "视频内时间点：M:SS、H:MM:SS 或秒数")
	cmd.Flags().StringVar(&imagePath, "image", "", "本地图片（JPEG/PNG）；为空时使用视频缩略图")
	cmd.Flags().StringVar(&pagePath, "page", "", "保存的观看页 HTML（用于补全标题）")
	return cmd
}

// parseAt 接受 "1:23"、"1:02:03" 或纯秒数。
func parseAt(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if !strings.Contains(s, ":") {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("--at 无效：%q", s)
		}
		return v, nil
	}
	v := domain.ParseTimestampText(s)
	if v == 0 && strings.Trim(s, "0:") != "" {
		return 0, fmt.Errorf("--at 无效：%q", s)
	}
	return v, nil
}

func summarize(f domain.CapturedFrame) frameSummary {
	return frameSummary{
		ID:         f.ID,
		VideoID:    string(f.VideoID),
		VideoTitle: f.VideoTitle,
		Timestamp:  f.Timestamp,
		CreatedAt:  f.CreatedAt,
		Bytes:      len(f.ImageData),
	}
}

func runFramesList(cmd *cobra.Command, ctx *commandContext) error {
	st, err := ctx.openStore(cmd.Context())
	if err != nil {
		return err
	}
	frames, err := st.Frames(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !isTerminal(out) {
		list := make([]frameSummary, 0, len(frames))
		for _, f := range frames {
			list = append(list, summarize(f))
		}
		return writeJSON(out, list)
	}
	if len(frames) == 0 {
		fmt.Fprintln(out, "暂无截帧")
		return nil
	}
	now := time.Now()
	rows := make([][]string, 0, len(frames))
	for _, f := range frames {
		title := f.VideoTitle
		if title == "" {
			title = string(f.VideoID)
		}
		rows = append(rows, []string{
			strconv.FormatInt(f.ID, 10),
			truncate(title, 32),
			domain.FormatTimestamp(f.Timestamp),
			fmt.Sprintf("%d KB", (len(f.ImageData)+1023)/1024),
			domain.RelativeTime(f.CreatedAt, now),
		})
	}
	fmt.Fprintln(out, renderTable([]string{"ID", "视频", "时间点", "大小", "创建"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignRight}))
	return nil
}
