// Package toolutil provides shared helpers for go_studykit tools: video URL
// canonicalisation and caption language preference chains.
package toolutil

import (
	"regexp"
	"strings"
)

var (
	videoIDRE = regexp.MustCompile(`(?:youtube\.com/(?:watch\?(?:.*&)?v=|shorts/|embed/|live/)|youtu\.be/)([a-zA-Z0-9_-]{11})`)
	bareIDRE  = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)
)

// ExtractVideoID returns the 11-character video id from a watch, short,
// embed or youtu.be URL, or from a bare id.
func ExtractVideoID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if m := videoIDRE.FindStringSubmatch(raw); len(m) >= 2 {
		return m[1], true
	}
	if bareIDRE.MatchString(raw) {
		return raw, true
	}
	return "", false
}

// CanonicalWatchURL returns https://www.youtube.com/watch?v=<id>.
func CanonicalWatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// Canonicalize resolves any supported URL form to the canonical watch URL.
func Canonicalize(raw string) (url, videoID string, ok bool) {
	id, ok := ExtractVideoID(raw)
	if !ok {
		return "", "", false
	}
	return CanonicalWatchURL(id), id, true
}

// languageSynonyms lists the regional code first, then the bare code, then
// legacy or alternative codes caption hosts use for the same language.
var languageSynonyms = map[string][]string{
	"id": {"id-ID", "id", "in", "ind"},
	"en": {"en-US", "en", "en-GB", "en-orig"},
	"ms": {"ms-MY", "ms", "msa"},
	"jv": {"jv-ID", "jv", "jw"},
}

// LanguagePreferences returns the preference chain for a target language.
func LanguagePreferences(primary string) []string {
	primary = strings.TrimSpace(primary)
	if primary == "" {
		primary = "id"
	}
	base, _, _ := strings.Cut(primary, "-")
	if chain, ok := languageSynonyms[strings.ToLower(base)]; ok {
		if primary != base && !contains(chain, primary) {
			return append([]string{primary}, chain...)
		}
		return append([]string(nil), chain...)
	}
	if primary != base {
		return []string{primary, base}
	}
	return []string{primary}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
