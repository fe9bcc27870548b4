package subtitle

import (
	"encoding/json"
	"strings"
)

// json3Doc is YouTube's timed-JSON caption format (fmt=json3).
type json3Doc struct {
	Events []struct {
		TStartMs    float64 `json:"tStartMs"`
		DDurationMs float64 `json:"dDurationMs"`
		Segs        []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

// ParseJSON3 parses the timed-JSON format: an events array where each event
// has millisecond start/duration and text fragments in segs.
func ParseJSON3(raw string) []Segment {
	var doc json3Doc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil
	}
	var out []Segment
	for _, ev := range doc.Events {
		if len(ev.Segs) == 0 {
			continue
		}
		var sb strings.Builder
		for _, s := range ev.Segs {
			sb.WriteString(s.UTF8)
		}
		text := strings.TrimSpace(spaceRe.ReplaceAllString(sb.String(), " "))
		if text == "" {
			continue
		}
		out = append(out, Segment{
			Start:    ev.TStartMs / 1000,
			Duration: ev.DDurationMs / 1000,
			Text:     text,
		})
	}
	return out
}

// ParseByExtension dispatches to the parser matching a track's file extension.
// Unknown extensions try WebVTT first, then SRT.
func ParseByExtension(ext, raw string) []Segment {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "vtt", "webvtt":
		return ParseVTT(raw)
	case "srt":
		return ParseSRT(raw)
	case "ttml", "dfxp", "xml":
		return ParseTTML(raw)
	case "json3", "json":
		return ParseJSON3(raw)
	case "srv3":
		return ParseSRV3(raw)
	}
	if segs := ParseVTT(raw); len(segs) > 0 {
		return segs
	}
	return ParseSRT(raw)
}
