package subtitle

import (
	"regexp"
	"strconv"
)

var (
	ttmlParaRe = regexp.MustCompile(`(?s)<p\b([^>]*)>(.*?)</p>`)
	ttmlAttrRe = regexp.MustCompile(`\b(begin|end|dur)="([^"]*)"`)
	ttmlBrRe   = regexp.MustCompile(`(?i)<br\s*/?>`)
	srv3SpanRe = regexp.MustCompile(`</?s\b[^>]*>`)
	srv3AttrRe = regexp.MustCompile(`\b(t|d)="(\d+(?:\.\d+)?)"`)
)

// ParseTTML extracts <p begin=".." end="..">..</p> spans from a TTML/DFXP document.
// A dur attribute is used when end is missing.
func ParseTTML(raw string) []Segment {
	var out []Segment
	for _, m := range ttmlParaRe.FindAllStringSubmatch(raw, -1) {
		attrs := map[string]string{}
		for _, a := range ttmlAttrRe.FindAllStringSubmatch(m[1], -1) {
			attrs[a[1]] = a[2]
		}
		start, ok := ParseTimestamp(attrs["begin"])
		if !ok {
			continue
		}
		end, ok := ParseTimestamp(attrs["end"])
		if !ok {
			dur, dok := ParseTimestamp(attrs["dur"])
			if !dok {
				continue
			}
			end = start + dur
		}
		text := cleanText(ttmlBrRe.ReplaceAllString(m[2], " "))
		if text == "" {
			continue
		}
		out = append(out, newSegment(start, end, text))
	}
	return out
}

// ParseSRV3 parses YouTube's srv3 timedtext XML: <p t="ms" d="ms"> paragraphs
// whose text may be split across <s> word spans.
func ParseSRV3(raw string) []Segment {
	var out []Segment
	for _, m := range ttmlParaRe.FindAllStringSubmatch(raw, -1) {
		attrs := map[string]float64{}
		for _, a := range srv3AttrRe.FindAllStringSubmatch(m[1], -1) {
			v, err := strconv.ParseFloat(a[2], 64)
			if err == nil {
				attrs[a[1]] = v
			}
		}
		start, ok := attrs["t"]
		if !ok {
			continue
		}
		body := srv3SpanRe.ReplaceAllString(m[2], "")
		text := cleanText(ttmlBrRe.ReplaceAllString(body, " "))
		if text == "" {
			continue
		}
		out = append(out, Segment{Start: start / 1000, Duration: attrs["d"] / 1000, Text: text})
	}
	return out
}
