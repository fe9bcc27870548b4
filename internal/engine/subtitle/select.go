package subtitle

import (
	"sort"
	"strings"
)

// Kind distinguishes creator-authored captions from generated ones.
type Kind string

const (
	KindHuman Kind = "human"
	KindAuto  Kind = "auto"
)

// Track is one caption asset: a language, a source kind and a wire format.
type Track struct {
	Language string `json:"language"`
	Kind     Kind   `json:"kind"`
	Format   string `json:"format"` // file extension: vtt, srt, ttml, json3, srv3...
	URL      string `json:"url"`
}

// Manifest lists the caption tracks available for one video, keyed by language code.
type Manifest struct {
	VideoID  string
	Title    string
	Duration float64 // seconds, 0 when unknown
	Human    map[string][]Track
	Auto     map[string][]Track
}

// formatOrder ranks wire formats by parse quality, best first.
var formatOrder = []string{"vtt", "srt", "ttml", "json3", "srv3"}

// FormatRank returns the quality rank of a format (lower is better).
// Unknown formats rank after every known one.
func FormatRank(format string) int {
	f := strings.ToLower(strings.TrimPrefix(format, "."))
	for i, known := range formatOrder {
		if f == known {
			return i
		}
	}
	return len(formatOrder)
}

// Languages returns every language code present in the manifest, sorted.
func (m Manifest) Languages() []string {
	set := map[string]bool{}
	for lang := range m.Human {
		set[lang] = true
	}
	for lang := range m.Auto {
		set[lang] = true
	}
	out := make([]string, 0, len(set))
	for lang := range set {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// Select walks the language preference list in order and returns the best
// ranked track of the first language that has any candidate. Each preferred
// code is tried as given, then as its bare language ("id-ID" then "id").
// With no kinds given both human and auto tracks are considered.
func Select(m Manifest, prefs []string, kinds ...Kind) (Track, bool) {
	seen := map[string]bool{}
	for _, pref := range prefs {
		for _, variant := range languageVariants(pref) {
			key := strings.ToLower(variant)
			if seen[key] {
				continue
			}
			seen[key] = true
			if cands := m.candidates(variant, kinds); len(cands) > 0 {
				return best(cands), true
			}
		}
	}
	return Track{}, false
}

// SelectAny is the secondary search over every language in the manifest.
// Human tracks outrank auto tracks, then format quality decides; language
// code breaks ties so the choice is deterministic.
func SelectAny(m Manifest, kinds ...Kind) (Track, bool) {
	var all []Track
	for _, lang := range m.Languages() {
		all = append(all, m.candidates(lang, kinds)...)
	}
	if len(all) == 0 {
		return Track{}, false
	}
	sort.SliceStable(all, func(i, j int) bool {
		if ki, kj := kindRank(all[i].Kind), kindRank(all[j].Kind); ki != kj {
			return ki < kj
		}
		if fi, fj := FormatRank(all[i].Format), FormatRank(all[j].Format); fi != fj {
			return fi < fj
		}
		return all[i].Language < all[j].Language
	})
	return all[0], true
}

// candidates collects tracks for an exact language, falling back to a
// case-insensitive match.
func (m Manifest) candidates(lang string, kinds []Kind) []Track {
	var out []Track
	if allows(kinds, KindHuman) {
		out = append(out, lookup(m.Human, lang)...)
	}
	if allows(kinds, KindAuto) {
		out = append(out, lookup(m.Auto, lang)...)
	}
	return out
}

func lookup(tracks map[string][]Track, lang string) []Track {
	if t, ok := tracks[lang]; ok {
		return t
	}
	for code, t := range tracks {
		if strings.EqualFold(code, lang) {
			return t
		}
	}
	return nil
}

func allows(kinds []Kind, k Kind) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, want := range kinds {
		if want == k {
			return true
		}
	}
	return false
}

func best(cands []Track) Track {
	sorted := append([]Track(nil), cands...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if fi, fj := FormatRank(sorted[i].Format), FormatRank(sorted[j].Format); fi != fj {
			return fi < fj
		}
		return kindRank(sorted[i].Kind) < kindRank(sorted[j].Kind)
	})
	return sorted[0]
}

func kindRank(k Kind) int {
	if k == KindHuman {
		return 0
	}
	return 1
}

// languageVariants returns the regional code followed by its bare language.
func languageVariants(lang string) []string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return nil
	}
	if base, _, ok := strings.Cut(lang, "-"); ok && base != "" {
		return []string{lang, base}
	}
	return []string{lang}
}
