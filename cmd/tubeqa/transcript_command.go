package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/tubeqa/internal/app"
	"github.com/John-Robertt/tubeqa/internal/export"
	"github.com/John-Robertt/tubeqa/internal/infra/fsx"
)

func newTranscriptCommand(ctx *commandContext) *cobra.Command {
	var (
		pagePath string
		format   string
		output   string
		report   bool
	)

	cmd := &cobra.Command{
		Use:   "transcript [VIDEO]",
		Short: "提取视频字幕",
		Long: `按 embedded -> direct -> panel 的顺序提取字幕。

VIDEO 可以是观看页 URL、youtu.be 短链或 11 位 id；使用 --page 读取保存的页面快照时可省略。`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			src := app.Source{PagePath: pagePath}
			if len(args) == 1 {
				src.Video = args[0]
			}

			obs, done := progressFor(cmd)
			defer done()
			s, err := ctx.newSession(cmd.Context(), "", obs)
			if err != nil {
				return err
			}

			rep, err := s.LoadTranscript(cmd.Context(), src)
			if report {
				if werr := writeJSON(cmd.OutOrStdout(), rep); werr != nil {
					return werr
				}
			}
			if err != nil {
				if chain := formatAttemptChain(rep.Attempts, -1); chain != "" {
					ctx.log().Info("transcript attempts", "chain", chain)
				}
				return err
			}
			if report {
				return nil
			}

			body, err := export.Encode(f, rep.Segments)
			if err != nil {
				return err
			}
			if output == "" {
				_, err = cmd.OutOrStdout().Write(body)
				return err
			}
			return writeNewFile(cmd.ErrOrStderr(), output, body)
		},
	}

	cmd.Flags().StringVar(&pagePath, "page", "", "读取保存的观看页 HTML，而不是在线抓取")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "输出格式：text|json|srt|vtt")
	cmd.Flags().StringVarP(&output, "output", "o", "", "写入文件（已存在时报错，不覆盖）")
	cmd.Flags().BoolVar(&report, "report", false, "输出完整的 JSON 报告（含策略尝试链路）")
	return cmd
}

// writeNewFile 原子写入新文件；目标已存在时报错。
func writeNewFile(msg io.Writer, path string, data []byte) error {
	dir, name := filepath.Split(path)
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	if err := fsx.WriteFileAtomicNoOverwrite(dir, name, data); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("文件已存在：%s", path)
		}
		return err
	}
	fmt.Fprintf(msg, "已写入 %s\n", path)
	return nil
}

// progressFor 在 stderr 为终端时返回进度输出；done 用于兜底停止 keepalive。
func progressFor(cmd *cobra.Command) (app.Observer, func()) {
	w := cmd.ErrOrStderr()
	if !isTerminal(w) {
		return nil, func() {}
	}
	p := newProgressUI(w)
	return p, p.Stop
}
