// Package subtitle converts caption payloads (WebVTT, SRT, TTML, YouTube json3/srv3)
// into a uniform ordered list of timed segments and picks the best caption
// track out of a video's manifest.
//
// Parsers never return errors: malformed input degrades to zero segments and
// callers treat an empty result as a failed attempt.
package subtitle

import (
	"fmt"
	"math"
	"strings"
)

// Segment is one timed cue. Start and Duration are in seconds.
type Segment struct {
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
}

// End returns Start+Duration.
func (s Segment) End() float64 {
	return s.Start + s.Duration
}

// newSegment builds a segment from start/end times, clamping negative spans to zero.
func newSegment(start, end float64, text string) Segment {
	d := end - start
	if d < 0 || math.IsNaN(d) {
		d = 0
	}
	return Segment{Start: start, Duration: d, Text: text}
}

// PlainText joins non-empty cue texts with single spaces.
func PlainText(segs []Segment) string {
	var sb strings.Builder
	for _, s := range segs {
		t := strings.TrimSpace(s.Text)
		if t == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(t)
	}
	return sb.String()
}

// ToSRT renders segments as an SRT document with sequential indices.
// End times are computed as start+duration.
func ToSRT(segs []Segment) string {
	var sb strings.Builder
	n := 0
	for _, s := range segs {
		t := strings.TrimSpace(s.Text)
		if t == "" {
			continue
		}
		n++
		fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n\n", n, formatSRTTime(s.Start), formatSRTTime(s.End()), t)
	}
	return sb.String()
}

// EstimatedDuration returns the spoken duration covered by segs: the largest
// segment end, rounded to the nearest second.
func EstimatedDuration(segs []Segment) float64 {
	var maxEnd float64
	for _, s := range segs {
		if e := s.End(); e > maxEnd {
			maxEnd = e
		}
	}
	return math.Round(maxEnd)
}

// formatSRTTime converts seconds to HH:MM:SS,mmm.
func formatSRTTime(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	ms := int64(math.Round(seconds * 1000))
	h := ms / 3_600_000
	ms %= 3_600_000
	m := ms / 60_000
	ms %= 60_000
	s := ms / 1000
	ms %= 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
