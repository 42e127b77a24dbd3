package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/tubeqa/internal/answer"
	"github.com/John-Robertt/tubeqa/internal/app"
	"github.com/John-Robertt/tubeqa/internal/domain"
)

const (
	askFormatTerminal = "terminal"
	askFormatHTML     = "html"
	askFormatMarkdown = "markdown"
	askFormatJSON     = "json"
)

func newAskCommand(ctx *commandContext) *cobra.Command {
	var (
		pagePath string
		format   string
	)

	cmd := &cobra.Command{
		Use:   "ask VIDEO QUESTION...",
		Short: "基于字幕回答一个问题",
		Long: `加载字幕后提问，回答中的时间点会附带跳转链接。

stdout 不是终端时默认输出 JSON 报告（便于脚本处理）。`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			f := strings.ToLower(strings.TrimSpace(format))
			if f == "" {
				f = askFormatJSON
				if isTerminal(out) {
					f = askFormatTerminal
				}
			}
			switch f {
			case askFormatTerminal, askFormatHTML, askFormatMarkdown, askFormatJSON:
			default:
				return fmt.Errorf("--format 只能是 terminal|html|markdown|json，实际是 %q", format)
			}

			obs, done := progressFor(cmd)
			defer done()
			s, err := ctx.newSession(cmd.Context(), "", obs)
			if err != nil {
				return err
			}

			question := strings.Join(args[1:], " ")
			rep, err := s.AskVideo(cmd.Context(), app.Source{Video: args[0], PagePath: pagePath}, question)
			if f == askFormatJSON {
				if werr := writeJSON(out, rep); werr != nil {
					return werr
				}
				return err
			}
			if err != nil {
				return err
			}
			return emitAnswer(out, rep, f)
		},
	}

	cmd.Flags().StringVar(&pagePath, "page", "", "读取保存的观看页 HTML，而不是在线抓取")
	cmd.Flags().StringVarP(&format, "format", "f", "", "输出格式：terminal|html|markdown|json（默认：终端 terminal，否则 json）")
	return cmd
}

func emitAnswer(w io.Writer, rep domain.AskReport, format string) error {
	switch format {
	case askFormatHTML:
		_, err := fmt.Fprintln(w, rep.AnswerHTML)
		return err
	case askFormatMarkdown:
		md, err := answer.Markdown(rep.Answer, domain.VideoID(rep.VideoID))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, md)
		return err
	case askFormatJSON:
		return writeJSON(w, rep)
	default:
		renderAnswer(w, rep)
		return nil
	}
}

func newChatCommand(ctx *commandContext) *cobra.Command {
	var pagePath string

	cmd := &cobra.Command{
		Use:   "chat [VIDEO]",
		Short: "加载一次字幕，连续提问",
		Long: `逐行读取问题并回答；空行忽略，/quit 或 EOF 退出。
/md 以 Markdown 输出上一个回答。`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			obs, done := progressFor(cmd)
			defer done()
			s, err := ctx.newSession(cmd.Context(), "", obs)
			if err != nil {
				return err
			}

			src := app.Source{PagePath: pagePath}
			if len(args) == 1 {
				src.Video = args[0]
			}
			tr, err := s.LoadTranscript(cmd.Context(), src)
			if err != nil {
				return err
			}
			return chatLoop(cmd, s, tr.Title)
		},
	}

	cmd.Flags().StringVar(&pagePath, "page", "", "读取保存的观看页 HTML，而不是在线抓取")
	return cmd
}

func chatLoop(cmd *cobra.Command, s *app.Session, title string) error {
	out, errw := cmd.OutOrStdout(), cmd.ErrOrStderr()
	st := newStyles(out)
	interactive := isTerminal(cmd.InOrStdin())

	if interactive {
		fmt.Fprintln(out, st.Success.Render("已加载字幕：")+st.Title.Render(title))
	}

	var last *domain.AskReport
	sc := bufio.NewScanner(cmd.InOrStdin())
	for {
		if interactive {
			fmt.Fprint(out, st.Bullet.Render(">"))
		}
		if !sc.Scan() {
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/md":
			if last == nil {
				renderError(errw, "", "还没有回答")
				continue
			}
			if err := emitAnswer(out, *last, askFormatMarkdown); err != nil {
				renderError(errw, app.Code(err), err.Error())
			}
			continue
		}

		rep, err := s.Ask(cmd.Context(), line)
		if err != nil {
			if cerr := cmd.Context().Err(); cerr != nil {
				return cerr
			}
			// 失败不终止会话：下一问仍然可用。
			renderError(errw, rep.ErrorCode, rep.ErrorMsg)
			continue
		}
		renderAnswer(out, rep)
		last = &rep
	}
}
