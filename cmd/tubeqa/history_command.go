package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/tubeqa/internal/answer"
	"github.com/John-Robertt/tubeqa/internal/domain"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "查看或清空问答历史",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryList(cmd, ctx)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "列出问答历史（最新在前）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryList(cmd, ctx)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show N",
		Short: "显示第 N 条问答（1 为最新）",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return fmt.Errorf("N 必须是正整数，实际是 %q", args[0])
			}
			st, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			hist, err := st.History(cmd.Context())
			if err != nil {
				return err
			}
			if n > len(hist) {
				return fmt.Errorf("只有 %d 条历史", len(hist))
			}
			ex := hist[len(hist)-n]
			out := cmd.OutOrStdout()
			if !isTerminal(out) {
				return writeJSON(out, ex)
			}
			rep := domain.AskReport{
				VideoID:    string(ex.VideoID),
				Title:      ex.VideoTitle,
				Question:   ex.Question,
				Answer:     ex.Answer,
				Timestamps: answer.Timestamps(ex.Answer, ex.VideoID),
			}
			renderAnswer(out, rep)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "清空问答历史",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			if err := st.ClearHistory(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "已清空问答历史")
			return nil
		},
	})

	return cmd
}

func runHistoryList(cmd *cobra.Command, ctx *commandContext) error {
	st, err := ctx.openStore(cmd.Context())
	if err != nil {
		return err
	}
	hist, err := st.History(cmd.Context())
	if err != nil {
		return err
	}
	newest := make([]domain.QAExchange, 0, len(hist))
	for i := len(hist) - 1; i >= 0; i-- {
		newest = append(newest, hist[i])
	}

	out := cmd.OutOrStdout()
	if !isTerminal(out) {
		return writeJSON(out, newest)
	}
	if len(newest) == 0 {
		fmt.Fprintln(out, "暂无问答历史")
		return nil
	}
	now := time.Now()
	rows := make([][]string, 0, len(newest))
	for i, ex := range newest {
		title := ex.VideoTitle
		if title == "" {
			title = string(ex.VideoID)
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			domain.RelativeTime(ex.Timestamp, now),
			truncate(title, 32),
			truncate(ex.Question, 60),
		})
	}
	fmt.Fprintln(out, renderTable([]string{"#", "时间", "视频", "问题"}, rows, []columnAlignment{alignRight}))
	return nil
}
