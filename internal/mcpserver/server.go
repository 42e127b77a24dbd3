// Package mcpserver 通过 MCP（stdio）把字幕提取与问答暴露为工具。
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/John-Robertt/tubeqa/internal/app"
	"github.com/John-Robertt/tubeqa/internal/domain"
	"github.com/John-Robertt/tubeqa/internal/export"
	"github.com/John-Robertt/tubeqa/internal/store"
)

// Deps 是工具处理函数需要的依赖。
type Deps struct {
	// NewSession 为每次工具调用创建独立会话；lang 为空时使用配置默认值。
	NewSession func(lang string) (*app.Session, error)
	Store      *store.Store
}

// TranscriptInput 是 get_transcript 的参数。
type TranscriptInput struct {
	Video  string `json:"video" jsonschema:"Video URL or 11-character video id"`
	Lang   string `json:"lang,omitempty" jsonschema:"Target caption language (default from config, usually en)"`
	Format string `json:"format,omitempty" jsonschema:"Output format: text (default), json, srt, vtt"`
}

// TranscriptOutput 是 get_transcript 的结果。
type TranscriptOutput struct {
	VideoID    string `json:"video_id"`
	Title      string `json:"title"`
	Strategy   string `json:"strategy"`
	Segments   int    `json:"segments"`
	Format     string `json:"format"`
	Transcript string `json:"transcript"`
}

// AskInput 是 ask_video 的参数。
type AskInput struct {
	Video    string `json:"video" jsonschema:"Video URL or 11-character video id"`
	Question string `json:"question" jsonschema:"Question about the video content"`
	Lang     string `json:"lang,omitempty" jsonschema:"Target caption language"`
}

// AskOutput 是 ask_video 的结果。
type AskOutput struct {
	VideoID    string                `json:"video_id"`
	Title      string                `json:"title"`
	Question   string                `json:"question"`
	Answer     string                `json:"answer"`
	Timestamps []domain.TimestampRef `json:"timestamps"`
}

// HistoryInput 是 list_history 的参数。
type HistoryInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of entries, newest first (default 10)"`
}

// HistoryOutput 是 list_history 的结果（最新在前）。
type HistoryOutput struct {
	Items []domain.QAExchange `json:"items"`
}

// New 创建 MCP server 并注册全部工具。
func New(version string, d Deps) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "tubeqa",
		Version: version,
	}, nil)
	registerTranscript(server, d)
	registerAsk(server, d)
	registerHistory(server, d)
	return server
}

// Run 在 stdio 上服务，直到 ctx 取消或对端断开。
func Run(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

func registerTranscript(server *mcp.Server, d Deps) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_transcript",
		Description: "Fetch the caption transcript of a YouTube video. Tries the embedded caption track, the captions endpoint, then the transcript panel. Returns the transcript as timestamped text, JSON, SRT or VTT.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input TranscriptInput) (*mcp.CallToolResult, TranscriptOutput, error) {
		if strings.TrimSpace(input.Video) == "" {
			return nil, TranscriptOutput{}, errors.New("video is required")
		}
		format, err := export.ParseFormat(input.Format)
		if err != nil {
			return nil, TranscriptOutput{}, err
		}
		s, err := d.NewSession(input.Lang)
		if err != nil {
			return nil, TranscriptOutput{}, err
		}
		rep, err := s.LoadTranscript(ctx, app.Source{Video: input.Video})
		if err != nil {
			return nil, TranscriptOutput{}, toolError(err)
		}
		body, err := export.Encode(format, rep.Segments)
		if err != nil {
			return nil, TranscriptOutput{}, err
		}
		return nil, TranscriptOutput{
			VideoID:    rep.VideoID,
			Title:      rep.Title,
			Strategy:   rep.Strategy,
			Segments:   len(rep.Segments),
			Format:     string(format),
			Transcript: string(body),
		}, nil
	})
}

func registerAsk(server *mcp.Server, d Deps) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask_video",
		Description: "Answer a question about a YouTube video using only its transcript. Timestamps mentioned in the answer are returned with deep links.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, AskOutput, error) {
		if strings.TrimSpace(input.Video) == "" {
			return nil, AskOutput{}, errors.New("video is required")
		}
		if strings.TrimSpace(input.Question) == "" {
			return nil, AskOutput{}, errors.New("question is required")
		}
		s, err := d.NewSession(input.Lang)
		if err != nil {
			return nil, AskOutput{}, err
		}
		rep, err := s.AskVideo(ctx, app.Source{Video: input.Video}, input.Question)
		if err != nil {
			return nil, AskOutput{}, toolError(err)
		}
		return nil, AskOutput{
			VideoID:    rep.VideoID,
			Title:      rep.Title,
			Question:   rep.Question,
			Answer:     rep.Answer,
			Timestamps: rep.Timestamps,
		}, nil
	})
}

func registerHistory(server *mcp.Server, d Deps) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_history",
		Description: "List previously asked questions and answers, newest first.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input HistoryInput) (*mcp.CallToolResult, HistoryOutput, error) {
		if d.Store == nil {
			return nil, HistoryOutput{}, errors.New("store is not configured")
		}
		hist, err := d.Store.History(ctx)
		if err != nil {
			return nil, HistoryOutput{}, toolError(err)
		}
		limit := input.Limit
		if limit <= 0 {
			limit = 10
		}
		out := make([]domain.QAExchange, 0, min(limit, len(hist)))
		for i := len(hist) - 1; i >= 0 && len(out) < limit; i-- {
			out = append(out, hist[i])
		}
		return nil, HistoryOutput{Items: out}, nil
	})
}

// toolError 给错误加上 error_code 前缀，便于调用方分类。
func toolError(err error) error {
	if code := app.Code(err); code != "" && !strings.HasPrefix(err.Error(), code) {
		return fmt.Errorf("%s: %w", code, err)
	}
	return err
}
