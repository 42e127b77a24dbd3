package transcript

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/John-Robertt/tubeqa/internal/domain"
)

const (
	// DefaultLang 是未指定目标语言时的默认值。
	DefaultLang = "en"
	// DefaultOrigin 是宿主站点的默认 origin（用于拼接 API 与解析相对 URL）。
	DefaultOrigin = "https://www.youtube.com"
)

// Strategy 把“宿主页面的变化”限制在单个策略内部；Fetcher 只依赖统一接口。
//
// 约束：
// - Fetch 不做缓存、不做重试（失败就交给下一个策略）
// - 有副作用的策略（例如打开面板）必须在返回前恢复现场
// - 返回空列表等同于“无结果”
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, pc *PageContext, c *http.Client) ([]domain.Segment, error)
}

// PageContext 描述一次提取所面对的宿主页面。
//
// 所有字段都是可选的：缺什么，依赖它的策略就直接报告“无结果”。
type PageContext struct {
	VideoID domain.VideoID
	Lang    string
	Origin  string

	// PlayerResponse 是宿主注入的全局播放器对象（ytInitialPlayerResponse）。
	PlayerResponse json.RawMessage
	// Document 是页面 HTML；PlayerResponse 缺失时从其内联脚本中扫描。
	Document []byte
	// Panel 是页面上的转录面板。
	Panel Panel
}

// TargetLang 返回规范化后的目标语言。
func (pc *PageContext) TargetLang() string {
	if pc == nil {
		return DefaultLang
	}
	l := strings.ToLower(strings.TrimSpace(pc.Lang))
	if l == "" {
		return DefaultLang
	}
	return l
}

// BaseOrigin 返回去掉尾部 '/' 的 origin。
func (pc *PageContext) BaseOrigin() string {
	if pc == nil || strings.TrimSpace(pc.Origin) == "" {
		return DefaultOrigin
	}
	return strings.TrimRight(strings.TrimSpace(pc.Origin), "/")
}

// Panel 是宿主页面上“显示转录”的面板。
//
// Open 激活入口（找不到入口时返回错误）；Rows 读取已渲染的条目；Close 恢复为关闭状态。
// Close 必须允许在 Open 失败后调用（此时应为 no-op）。
type Panel interface {
	Open(ctx context.Context) error
	Rows(ctx context.Context) ([]PanelRow, error)
	Close(ctx context.Context) error
}

// PanelRow 是面板中的一行：时间文本 + 字幕文本。
type PanelRow struct {
	Timestamp string
	Text      string
}
