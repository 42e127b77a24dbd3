package transcript

import (
	"strings"

	"github.com/John-Robertt/tubeqa/internal/domain"
)

// SelectTrack 按唯一的规范策略选择字幕轨：
//
//  1. 目标语言 + 人工字幕
//  2. 目标语言 + 自动生成（asr）
//  3. 列表中的第一条
//
// “目标语言”先比较完整语言码，再比较主语言子标签（en 命中 en-US）；
// 同一层级内保持列表原有顺序。
func SelectTrack(tracks []domain.CaptionTrack, lang string) (domain.CaptionTrack, bool) {
	if len(tracks) == 0 {
		return domain.CaptionTrack{}, false
	}
	lang = normLang(lang)
	if lang == "" {
		lang = DefaultLang
	}
	base := primarySubtag(lang)

	tiers := []func(t domain.CaptionTrack) bool{
		func(t domain.CaptionTrack) bool { return !t.IsASR() && normLang(t.LanguageCode) == lang },
		func(t domain.CaptionTrack) bool { return !t.IsASR() && primarySubtag(normLang(t.LanguageCode)) == base },
		func(t domain.CaptionTrack) bool { return t.IsASR() && normLang(t.LanguageCode) == lang },
		func(t domain.CaptionTrack) bool { return t.IsASR() && primarySubtag(normLang(t.LanguageCode)) == base },
	}
	for _, match := range tiers {
		for _, t := range tracks {
			if match(t) {
				return t, true
			}
		}
	}
	return tracks[0], true
}

func normLang(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
}

func primarySubtag(s string) string {
	if i := strings.IndexByte(s, '-'); i >= 0 {
		return s[:i]
	}
	return s
}
