package subtitle

import (
	"html"
	"regexp"
	"strconv"
	"strings"
)

// ParseTimestamp parses caption timestamps in the forms [hh:]mm:ss[.mmm] or
// [hh:]mm:ss[,mmm]. TTML offset values such as "12.5s" are accepted as well.
func ParseTimestamp(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if !strings.Contains(s, ":") {
		if v, ok := strings.CutSuffix(s, "s"); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || f < 0 {
				return 0, false
			}
			return f, true
		}
		return 0, false
	}

	s = strings.Replace(s, ",", ".", 1)
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, false
	}
	var total float64
	for _, p := range parts[:len(parts)-1] {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, false
		}
		total = total*60 + float64(n)
	}
	sec, err := strconv.ParseFloat(parts[len(parts)-1], 64)
	if err != nil || sec < 0 {
		return 0, false
	}
	return total*60 + sec, true
}

var (
	tagRe   = regexp.MustCompile(`<[^>]*>`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// cleanText strips markup, decodes entities and collapses whitespace.
func cleanText(s string) string {
	s = tagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// splitLines normalises line endings and strips a leading BOM.
func splitLines(raw string) []string {
	raw = strings.TrimPrefix(raw, "\ufeff")
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")
	return strings.Split(raw, "\n")
}

// parseCueTiming parses "start --> end [settings]" lines.
func parseCueTiming(line string) (start, end float64, ok bool) {
	left, right, found := strings.Cut(line, "-->")
	if !found {
		return 0, 0, false
	}
	fields := strings.Fields(right)
	if len(fields) == 0 {
		return 0, 0, false
	}
	start, ok = ParseTimestamp(left)
	if !ok {
		return 0, 0, false
	}
	// Positioning annotations (align:, position:, line:) follow the end time.
	end, ok = ParseTimestamp(fields[0])
	if !ok {
		return 0, 0, false
	}
	return start, end, true
}
