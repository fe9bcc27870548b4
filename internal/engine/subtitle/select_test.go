package subtitle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testManifest() Manifest {
	return Manifest{
		Human: map[string][]Track{
			"en": {
				{Language: "en", Kind: KindHuman, Format: "ttml", URL: "h-en-ttml"},
				{Language: "en", Kind: KindHuman, Format: "srt", URL: "h-en-srt"},
			},
		},
		Auto: map[string][]Track{
			"id": {
				{Language: "id", Kind: KindAuto, Format: "json3", URL: "a-id-json3"},
				{Language: "id", Kind: KindAuto, Format: "vtt", URL: "a-id-vtt"},
				{Language: "id", Kind: KindAuto, Format: "srv3", URL: "a-id-srv3"},
			},
			"en": {
				{Language: "en", Kind: KindAuto, Format: "vtt", URL: "a-en-vtt"},
			},
		},
	}
}

func TestSelect(t *testing.T) {
	m := testManifest()
	tests := []struct {
		name    string
		prefs   []string
		kinds   []Kind
		wantURL string
		wantOK  bool
	}{
		{"regional falls back to bare code", []string{"id-ID", "en"}, nil, "a-id-vtt", true},
		{"first language wins over better quality later", []string{"id", "en"}, nil, "a-id-vtt", true},
		{"format rank beats kind", []string{"en"}, nil, "a-en-vtt", true},
		{"human only", []string{"en"}, []Kind{KindHuman}, "h-en-srt", true},
		{"human only skips auto-only language", []string{"id", "en"}, []Kind{KindHuman}, "h-en-srt", true},
		{"auto only", []string{"id"}, []Kind{KindAuto}, "a-id-vtt", true},
		{"case insensitive", []string{"ID"}, []Kind{KindAuto}, "a-id-vtt", true},
		{"no candidate", []string{"fr", "de-DE"}, nil, "", false},
		{"empty prefs", nil, nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Select(m, tt.prefs, tt.kinds...)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantURL, got.URL)
		})
	}
}

func TestSelectAny(t *testing.T) {
	m := testManifest()

	got, ok := SelectAny(m)
	assert.True(t, ok)
	assert.Equal(t, "h-en-srt", got.URL, "human tracks outrank auto tracks")

	got, ok = SelectAny(m, KindAuto)
	assert.True(t, ok)
	assert.Equal(t, "a-en-vtt", got.URL, "language code breaks quality ties")

	_, ok = SelectAny(Manifest{})
	assert.False(t, ok)
}

func TestFormatRank(t *testing.T) {
	assert.Less(t, FormatRank("vtt"), FormatRank("srt"))
	assert.Less(t, FormatRank("srt"), FormatRank("ttml"))
	assert.Less(t, FormatRank("ttml"), FormatRank("json3"))
	assert.Less(t, FormatRank("json3"), FormatRank("srv3"))
	assert.Less(t, FormatRank("srv3"), FormatRank("srv1"))
	assert.Equal(t, FormatRank("VTT"), FormatRank(".vtt"))
}

func TestLanguages(t *testing.T) {
	assert.Equal(t, []string{"en", "id"}, testManifest().Languages())
}
