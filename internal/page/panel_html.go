package page

import (
	"context"
	"errors"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/tubeqa/internal/transcript"
)

const (
	openButtonSel  = `button[aria-label="Show transcript"]`
	closeButtonSel = `ytd-engagement-panel-section-list-renderer button[aria-label="Close transcript"]`
	rowSel         = `ytd-transcript-segment-renderer`
)

// htmlPanel 在保存的 DOM 快照上模拟转录面板：快照中的条目即面板渲染结果。
type htmlPanel struct {
	doc    *goquery.Document
	opened bool
}

func newHTMLPanel(doc *goquery.Document) *htmlPanel { return &htmlPanel{doc: doc} }

func hasPanelMarkup(doc *goquery.Document) bool {
	return doc.Find(openButtonSel).Length() > 0 || doc.Find(rowSel).Length() > 0
}

func (p *htmlPanel) Open(ctx context.Context) error {
	if p.doc.Find(openButtonSel).Length() == 0 && p.doc.Find(rowSel).Length() == 0 {
		return errors.New("页面上没有转录入口")
	}
	p.opened = true
	return nil
}

func (p *htmlPanel) Rows(ctx context.Context) ([]transcript.PanelRow, error) {
	if !p.opened {
		return nil, errors.New("转录面板未打开")
	}
	var rows []transcript.PanelRow
	p.doc.Find(rowSel).Each(func(_ int, s *goquery.Selection) {
		rows = append(rows, transcript.PanelRow{
			Timestamp: firstText(s, ".segment-timestamp", `[class*="timestamp"]`),
			Text:      firstText(s, ".segment-text", `[class*="text"]`),
		})
	})
	return rows, nil
}

// Close 对应点击面板的关闭按钮；快照里没有按钮时只复位状态。
func (p *htmlPanel) Close(ctx context.Context) error {
	p.opened = false
	return nil
}

func firstText(s *goquery.Selection, selectors ...string) string {
	for _, sel := range selectors {
		if t := normSpace(s.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}
