package transcript

import (
	"testing"

	"github.com/John-Robertt/tubeqa/internal/domain"
)

func TestSelectTrack_PrefersHumanOverASR(t *testing.T) {
	tracks := []domain.CaptionTrack{
		{LanguageCode: "en", Kind: "asr", BaseURL: "asr"},
		{LanguageCode: "en", BaseURL: "human"},
		{LanguageCode: "fr", BaseURL: "fr"},
	}
	got, ok := SelectTrack(tracks, "en")
	if !ok || got.BaseURL != "human" {
		t.Fatalf("期望选中人工 en 字幕，实际 %+v", got)
	}
}

func TestSelectTrack_Fallbacks(t *testing.T) {
	cases := []struct {
		name   string
		tracks []domain.CaptionTrack
		lang   string
		want   string
	}{
		{
			name:   "only asr in target language",
			tracks: []domain.CaptionTrack{{LanguageCode: "fr", BaseURL: "fr"}, {LanguageCode: "en", Kind: "asr", BaseURL: "asr"}},
			lang:   "en",
			want:   "asr",
		},
		{
			name:   "no target language takes first",
			tracks: []domain.CaptionTrack{{LanguageCode: "de", BaseURL: "de"}, {LanguageCode: "fr", BaseURL: "fr"}},
			lang:   "en",
			want:   "de",
		},
		{
			name:   "region subtag matches primary language",
			tracks: []domain.CaptionTrack{{LanguageCode: "en-US", Kind: "asr", BaseURL: "asr"}, {LanguageCode: "en-GB", BaseURL: "gb"}},
			lang:   "en",
			want:   "gb",
		},
		{
			name:   "exact code beats primary subtag",
			tracks: []domain.CaptionTrack{{LanguageCode: "pt", BaseURL: "pt"}, {LanguageCode: "pt-BR", BaseURL: "br"}},
			lang:   "pt-br",
			want:   "br",
		},
		{
			name:   "empty lang defaults to en",
			tracks: []domain.CaptionTrack{{LanguageCode: "fr", BaseURL: "fr"}, {LanguageCode: "en", BaseURL: "en"}},
			lang:   "",
			want:   "en",
		},
	}
	for _, tc := range cases {
		got, ok := SelectTrack(tc.tracks, tc.lang)
		if !ok || got.BaseURL != tc.want {
			t.Fatalf("%s：期望 %q，实际 %+v", tc.name, tc.want, got)
		}
	}
}

func TestSelectTrack_Empty(t *testing.T) {
	if _, ok := SelectTrack(nil, "en"); ok {
		t.Fatalf("空列表不应选中任何字幕轨")
	}
}
