package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/John-Robertt/tubeqa/internal/answer"
	"github.com/John-Robertt/tubeqa/internal/domain"
)

// styles 绑定到具体输出：非终端（管道、文件、测试 buffer）下自动退化为纯文本。
type styles struct {
	Title     lipgloss.Style
	Bullet    lipgloss.Style
	Text      lipgloss.Style
	Dim       lipgloss.Style
	Timestamp lipgloss.Style
	Error     lipgloss.Style
	Success   lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		Title:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("3")),
		Bullet:    r.NewStyle().Foreground(lipgloss.Color("8")).PaddingRight(1),
		Text:      r.NewStyle().Foreground(lipgloss.Color("15")),
		Dim:       r.NewStyle().Foreground(lipgloss.Color("8")),
		Timestamp: r.NewStyle().Foreground(lipgloss.Color("6")).Underline(true),
		Error:     r.NewStyle().Foreground(lipgloss.Color("196")),
		Success:   r.NewStyle().Foreground(lipgloss.Color("10")),
	}
}

// renderAnswer 以终端友好的方式输出一次问答：标题、问题、回答正文、时间点跳转链接。
func renderAnswer(w io.Writer, rep domain.AskReport) {
	st := newStyles(w)

	title := strings.TrimSpace(rep.Title)
	if title == "" {
		title = rep.VideoID
	}
	fmt.Fprintln(w, st.Bullet.Render("┌")+st.Title.Render(title))
	fmt.Fprintln(w, st.Bullet.Render("├")+st.Dim.Render("Q: ")+st.Text.Render(rep.Question))
	fmt.Fprintln(w, st.Bullet.Render("│"))

	body := answer.ReplaceTimestamps(rep.Answer, func(m string, _ float64) string {
		return st.Timestamp.Render(m)
	})
	for _, line := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
		fmt.Fprintln(w, st.Bullet.Render("│")+line)
	}

	if len(rep.Timestamps) == 0 {
		fmt.Fprintln(w, st.Bullet.Render("└"))
		return
	}
	fmt.Fprintln(w, st.Bullet.Render("│"))
	fmt.Fprintln(w, st.Bullet.Render("└")+st.Dim.Render("跳转："))
	for _, ts := range rep.Timestamps {
		fmt.Fprintf(w, "    %s  %s\n", st.Timestamp.Render(domain.FormatTimestamp(ts.Seconds)), st.Dim.Render(ts.URL))
	}
}

// renderError 在终端里输出 "code: message"。
func renderError(w io.Writer, code, msg string) {
	st := newStyles(w)
	if code == "" {
		code = "error"
	}
	fmt.Fprintln(w, st.Error.Render(code+": "+msg))
}
