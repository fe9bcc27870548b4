package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/anatolykoptev/go_studykit/internal/engine"
	"github.com/anatolykoptev/go_studykit/internal/engine/subtitle"
	"github.com/anatolykoptev/go_studykit/internal/toolutil"
)

// FetchOptions narrows which tracks the fetcher may pick.
type FetchOptions struct {
	Kinds     []subtitle.Kind // empty = human and auto
	Languages []string        // preference list, most preferred first
	// AnyLanguage falls back to every language in the manifest when no
	// preferred language has a track.
	AnyLanguage bool
}

// CaptionFetcher resolves a manifest, selects a track and downloads it.
type CaptionFetcher struct {
	Manifests ManifestSource
	Getter    engine.PageGetter
}

// Fetch resolves the manifest for videoURL and fetches the best track.
func (f *CaptionFetcher) Fetch(ctx context.Context, videoURL string, opts FetchOptions) (*Transcript, error) {
	canonical, _, ok := toolutil.Canonicalize(videoURL)
	if !ok {
		return nil, fmt.Errorf("%w: unrecognized video url %q", ErrNoTrackAvailable, videoURL)
	}
	m, err := f.Manifests.Manifest(ctx, canonical)
	if err != nil {
		return nil, fmt.Errorf("%w: manifest: %v", ErrNoTrackAvailable, err)
	}
	return f.FetchFromManifest(ctx, m, canonical, opts)
}

// FetchFromManifest selects a track from an already resolved manifest and
// fetches its payload. canonicalURL is sent as the Referer.
func (f *CaptionFetcher) FetchFromManifest(ctx context.Context, m subtitle.Manifest, canonicalURL string, opts FetchOptions) (*Transcript, error) {
	track, ok := subtitle.Select(m, opts.Languages, opts.Kinds...)
	if !ok && opts.AnyLanguage {
		track, ok = subtitle.SelectAny(m, opts.Kinds...)
	}
	if !ok {
		return nil, fmt.Errorf("%w: kinds %v, languages %v, available %v",
			ErrNoTrackAvailable, opts.Kinds, opts.Languages, m.Languages())
	}

	getter := f.Getter
	if getter == nil {
		getter = engine.HTTPGetter{}
	}
	body, status, err := getter.Get(ctx, track.URL, engine.BrowserHeaders(canonicalURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrFetchFailed, track.Language, track.Format, err)
	}
	if !statusOK(status) {
		return nil, fmt.Errorf("%w: %s %s: HTTP %d", ErrFetchFailed, track.Language, track.Format, status)
	}

	segs := subtitle.ParseByExtension(track.Format, string(body))
	if len(segs) == 0 {
		return nil, fmt.Errorf("%w: %s %s (%d bytes)", ErrEmptyOrUnparsable, track.Language, track.Format, len(body))
	}
	slog.Debug("captions fetched",
		slog.String("lang", track.Language),
		slog.String("kind", string(track.Kind)),
		slog.String("format", track.Format),
		slog.Int("segments", len(segs)))

	model := ModelAutoCaptions
	if track.Kind == subtitle.KindHuman {
		model = ModelManualCaptions
	}
	t := newTranscript(segs, track.Language, model)
	t.VideoID = m.VideoID
	t.Title = m.Title
	t.VideoDuration = m.Duration
	return t, nil
}

func statusOK(code int) bool { return code >= http.StatusOK && code < http.StatusMultipleChoices }
