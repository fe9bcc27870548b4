package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/anatolykoptev/go_studykit/internal/engine"
	"github.com/anatolykoptev/go_studykit/internal/engine/subtitle"
	"github.com/anatolykoptev/go_studykit/internal/toolutil"
)

// playerResponseMarker precedes the player JSON in watch page HTML.
const playerResponseMarker = "ytInitialPlayerResponse = "

// watchPageFormats are the timedtext variants offered for every scraped track.
var watchPageFormats = []string{"vtt", "ttml", "json3"}

// WatchPage scrapes the caption track list from the public watch page.
// It needs no binary and serves as the fallback when yt-dlp is missing.
type WatchPage struct {
	Getter  engine.PageGetter
	BaseURL string // defaults to https://www.youtube.com
}

type playerResponse struct {
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	VideoDetails *struct {
		VideoID       string `json:"videoId"`
		Title         string `json:"title"`
		LengthSeconds string `json:"lengthSeconds"`
	} `json:"videoDetails"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" = auto-generated
}

func (w *WatchPage) Manifest(ctx context.Context, videoURL string) (subtitle.Manifest, error) {
	id, ok := toolutil.ExtractVideoID(videoURL)
	if !ok {
		return subtitle.Manifest{}, fmt.Errorf("watch page: no video id in %q", videoURL)
	}
	base := strings.TrimRight(w.BaseURL, "/")
	if base == "" {
		base = "https://www.youtube.com"
	}
	pageURL := base + "/watch?v=" + id

	headers := engine.BrowserHeaders("")
	headers["Accept"] = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	getter := w.Getter
	if getter == nil {
		getter = engine.HTTPGetter{}
	}
	body, status, err := getter.Get(ctx, pageURL, headers)
	if err != nil {
		return subtitle.Manifest{}, fmt.Errorf("watch page: %w", err)
	}
	if status != http.StatusOK {
		return subtitle.Manifest{}, fmt.Errorf("watch page: HTTP %d", status)
	}
	m, err := parseWatchPage(body)
	if err != nil {
		return subtitle.Manifest{}, fmt.Errorf("watch page: %w", err)
	}
	if m.VideoID == "" {
		m.VideoID = id
	}
	return m, nil
}

func parseWatchPage(body []byte) (subtitle.Manifest, error) {
	script := playerScript(body)
	idx := bytes.Index(script, []byte(playerResponseMarker))
	if idx < 0 {
		return subtitle.Manifest{}, errors.New("ytInitialPlayerResponse not found")
	}
	raw := extractJSON(script[idx+len(playerResponseMarker):])
	if raw == nil {
		return subtitle.Manifest{}, errors.New("ytInitialPlayerResponse is not a JSON object")
	}
	var pr playerResponse
	if err := json.Unmarshal(raw, &pr); err != nil {
		return subtitle.Manifest{}, fmt.Errorf("decode player response: %w", err)
	}

	m := subtitle.Manifest{
		Human: map[string][]subtitle.Track{},
		Auto:  map[string][]subtitle.Track{},
	}
	if d := pr.VideoDetails; d != nil {
		m.VideoID = d.VideoID
		m.Title = d.Title
		if secs, err := strconv.ParseFloat(d.LengthSeconds, 64); err == nil {
			m.Duration = secs
		}
	}
	if pr.Captions == nil {
		if ps := pr.PlayabilityStatus; ps != nil && ps.Reason != "" {
			return m, fmt.Errorf("captions unavailable: %s", ps.Reason)
		}
		return m, nil
	}
	for _, ct := range pr.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks {
		if ct.BaseURL == "" || ct.LanguageCode == "" || needsPoToken(ct.BaseURL) {
			continue
		}
		kind, dest := subtitle.KindHuman, m.Human
		if ct.Kind == "asr" {
			kind, dest = subtitle.KindAuto, m.Auto
		}
		for _, format := range watchPageFormats {
			dest[ct.LanguageCode] = append(dest[ct.LanguageCode], subtitle.Track{
				Language: ct.LanguageCode,
				Kind:     kind,
				Format:   format,
				URL:      withFormat(ct.BaseURL, format),
			})
		}
	}
	return m, nil
}

// playerScript returns the body of the first <script> element that assigns
// the player response.
func playerScript(body []byte) []byte {
	z := html.NewTokenizer(bytes.NewReader(body))
	inScript := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			return nil
		case html.StartTagToken:
			name, _ := z.TagName()
			inScript = string(name) == "script"
		case html.EndTagToken:
			inScript = false
		case html.TextToken:
			if inScript {
				if text := z.Text(); bytes.Contains(text, []byte(playerResponseMarker)) {
					return text
				}
			}
		}
	}
}

// needsPoToken reports whether a track URL is bound to a browser session
// token (&exp=xpe). Such tracks cannot be fetched server-side.
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// withFormat sets the timedtext fmt query parameter.
func withFormat(raw, format string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set("fmt", format)
	u.RawQuery = q.Encode()
	return u.String()
}

// extractJSON returns the balanced JSON object at the start of b, or nil.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr, escaped := false, false
	for i, c := range b {
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}
