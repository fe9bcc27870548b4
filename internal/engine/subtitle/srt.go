package subtitle

import (
	"strconv"
	"strings"
)

// ParseSRT parses a SubRip document. Blocks are separated by blank lines; the
// numeric index line is optional.
func ParseSRT(raw string) []Segment {
	var out []Segment
	var block []string
	flush := func() {
		if seg, ok := parseSRTBlock(block); ok {
			out = append(out, seg)
		}
		block = block[:0]
	}
	for _, line := range splitLines(raw) {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		block = append(block, strings.TrimSpace(line))
	}
	flush()
	return out
}

func parseSRTBlock(lines []string) (Segment, bool) {
	if len(lines) == 0 {
		return Segment{}, false
	}
	i := 0
	if _, err := strconv.Atoi(lines[0]); err == nil && len(lines) > 1 {
		i = 1
	}
	start, end, ok := parseCueTiming(lines[i])
	if !ok {
		return Segment{}, false
	}
	text := cleanText(strings.Join(lines[i+1:], " "))
	if text == "" {
		return Segment{}, false
	}
	return newSegment(start, end, text), true
}
