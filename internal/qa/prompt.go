package qa

import (
	"strings"

	"github.com/John-Robertt/tubeqa/internal/domain"
)

const instructions = `You are analyzing a YouTube video transcript. Answer the user's question based ONLY on the information in the transcript below.

IMPORTANT RULES:
1. Only use information from the transcript
2. Include relevant timestamps in your answer using the format [MM:SS] or [HH:MM:SS]
3. If the information is not in the transcript, say so
4. Be concise and direct
5. Quote relevant parts when helpful`

// FormatTranscript 把字幕渲染为每行 "[M:SS] text" 的文本。
func FormatTranscript(segs []domain.Segment) string {
	var sb strings.Builder
	for i, s := range segs {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteByte('[')
		sb.WriteString(domain.FormatTimestamp(s.Start))
		sb.WriteString("] ")
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// BuildPrompt 组装发送给模型的完整提示词。
func BuildPrompt(question string, segs []domain.Segment) string {
	var sb strings.Builder
	sb.WriteString(instructions)
	sb.WriteString("\n\nTRANSCRIPT:\n")
	sb.WriteString(FormatTranscript(segs))
	sb.WriteString("\n\nUSER QUESTION: ")
	sb.WriteString(question)
	sb.WriteString("\n\nPlease provide a helpful answer with timestamps where relevant:")
	return sb.String()
}
