package subtitle

import "strings"

// ParseVTT parses a WebVTT document. Header, NOTE and STYLE blocks are skipped
// because they carry no timing line; consecutive text lines after a cue
// timing are joined with spaces.
//
// Auto captions roll: each cue repeats the line shown by the previous one.
// A line equal to the last kept line is dropped, and a cue left with no new
// text extends the previous segment instead.
func ParseVTT(raw string) []Segment {
	lines := splitLines(raw)
	var out []Segment
	prevLine := ""
	for i := 0; i < len(lines); i++ {
		if !strings.Contains(lines[i], "-->") {
			continue
		}
		start, end, ok := parseCueTiming(lines[i])
		if !ok {
			continue
		}
		var text []string
		repeated := false
		for i+1 < len(lines) {
			next := strings.TrimSpace(lines[i+1])
			if next == "" || strings.Contains(next, "-->") {
				break
			}
			i++
			line := cleanText(next)
			if line == "" {
				continue
			}
			if line == prevLine {
				repeated = true
				continue
			}
			text = append(text, line)
			prevLine = line
		}
		if len(text) == 0 {
			if repeated && len(out) > 0 {
				last := &out[len(out)-1]
				if end > last.End() {
					last.Duration = end - last.Start
				}
			}
			continue
		}
		out = append(out, newSegment(start, end, strings.Join(text, " ")))
	}
	return out
}
