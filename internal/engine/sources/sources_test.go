package sources

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_studykit/internal/engine"
	"github.com/anatolykoptev/go_studykit/internal/engine/subtitle"
)

const testVideoURL = "https://youtu.be/dQw4w9WgXcQ"

const shortVTT = `WEBVTT

00:00:01.000 --> 00:00:03.500
Selamat pagi semua.

00:00:03.500 --> 00:00:08.250
Hari ini kita belajar Go.
`

const longVTT = `WEBVTT

00:00:00.000 --> 00:00:05.000
Pembukaan kuliah.

00:19:30.000 --> 00:19:40.000
Sampai jumpa minggu depan.
`

// captionServer serves caption payloads by path and records request headers.
func captionServer(t *testing.T) (*httptest.Server, *atomic.Value) {
	t.Helper()
	var lastReferer atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastReferer.Store(r.Header.Get("Referer"))
		switch r.URL.Path {
		case "/short.vtt":
			_, _ = w.Write([]byte(shortVTT))
		case "/long.vtt":
			_, _ = w.Write([]byte(longVTT))
		case "/empty.vtt":
			_, _ = w.Write([]byte("WEBVTT\n\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &lastReferer
}

type staticManifest struct {
	m     subtitle.Manifest
	err   error
	calls atomic.Int32
}

func (s *staticManifest) Manifest(context.Context, string) (subtitle.Manifest, error) {
	s.calls.Add(1)
	return s.m, s.err
}

func track(lang string, kind subtitle.Kind, format, url string) subtitle.Track {
	return subtitle.Track{Language: lang, Kind: kind, Format: format, URL: url}
}

func TestCaptionFetcher(t *testing.T) {
	srv, referer := captionServer(t)
	src := &staticManifest{m: subtitle.Manifest{
		VideoID:  "dQw4w9WgXcQ",
		Title:    "Kuliah",
		Duration: 9,
		Human: map[string][]subtitle.Track{
			"en": {track("en", subtitle.KindHuman, "vtt", srv.URL+"/short.vtt")},
		},
		Auto: map[string][]subtitle.Track{
			"id": {
				track("id", subtitle.KindAuto, "json3", srv.URL+"/missing.json3"),
				track("id", subtitle.KindAuto, "vtt", srv.URL+"/short.vtt"),
			},
			"fr": {track("fr", subtitle.KindAuto, "vtt", srv.URL+"/empty.vtt")},
			"de": {track("de", subtitle.KindAuto, "srt", srv.URL+"/missing.srt")},
		},
	}}
	f := &CaptionFetcher{Manifests: src, Getter: engine.HTTPGetter{Client: srv.Client()}}
	ctx := context.Background()

	t.Run("auto indonesian", func(t *testing.T) {
		tr, err := f.Fetch(ctx, testVideoURL, FetchOptions{Languages: []string{"id-ID", "id"}})
		require.NoError(t, err)
		assert.Equal(t, "Selamat pagi semua. Hari ini kita belajar Go.", tr.Text)
		assert.Equal(t, ModelAutoCaptions, tr.SourceModel)
		assert.Equal(t, "id", tr.Language)
		assert.Equal(t, "Kuliah", tr.Title)
		assert.Equal(t, 9.0, tr.VideoDuration)
		assert.Contains(t, tr.SRT, "00:00:01,000 --> 00:00:03,500")
		assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", referer.Load())
	})

	t.Run("human only has no indonesian track", func(t *testing.T) {
		_, err := f.Fetch(ctx, testVideoURL, FetchOptions{
			Kinds: []subtitle.Kind{subtitle.KindHuman}, Languages: []string{"id"},
		})
		assert.ErrorIs(t, err, ErrNoTrackAvailable)
	})

	t.Run("any language falls back to human english", func(t *testing.T) {
		tr, err := f.Fetch(ctx, testVideoURL, FetchOptions{
			Kinds: []subtitle.Kind{subtitle.KindHuman}, Languages: []string{"id"}, AnyLanguage: true,
		})
		require.NoError(t, err)
		assert.Equal(t, ModelManualCaptions, tr.SourceModel)
		assert.Equal(t, "en", tr.Language)
	})

	t.Run("http failure", func(t *testing.T) {
		_, err := f.Fetch(ctx, testVideoURL, FetchOptions{Languages: []string{"de"}})
		assert.ErrorIs(t, err, ErrFetchFailed)
	})

	t.Run("empty payload", func(t *testing.T) {
		_, err := f.Fetch(ctx, testVideoURL, FetchOptions{Languages: []string{"fr"}})
		assert.ErrorIs(t, err, ErrEmptyOrUnparsable)
	})

	t.Run("manifest failure", func(t *testing.T) {
		bad := &CaptionFetcher{Manifests: &staticManifest{err: errors.New("yt-dlp: not found")}}
		_, err := bad.Fetch(ctx, testVideoURL, FetchOptions{Languages: []string{"id"}})
		assert.ErrorIs(t, err, ErrNoTrackAvailable)
	})

	t.Run("bad url", func(t *testing.T) {
		_, err := f.Fetch(ctx, "https://example.com/video", FetchOptions{Languages: []string{"id"}})
		assert.ErrorIs(t, err, ErrNoTrackAvailable)
	})
}

type fakeTranscriber struct {
	available bool
	result    *Transcript
	err       error
	gotPath   string
}

func (f *fakeTranscriber) Available() bool { return f.available }

func (f *fakeTranscriber) Transcribe(_ context.Context, path, _ string) (*Transcript, error) {
	f.gotPath = path
	return f.result, f.err
}

type fakeAudio struct {
	cleaned bool
	err     error
}

func (f *fakeAudio) Download(context.Context, string) (string, func(), error) {
	if f.err != nil {
		return "", nil, f.err
	}
	return "/tmp/audio.mp3", func() { f.cleaned = true }, nil
}

func TestOrchestratorSpeechFirst(t *testing.T) {
	src := &staticManifest{}
	audio := &fakeAudio{}
	tr := &fakeTranscriber{available: true, result: &Transcript{Text: "hasil whisper", SourceModel: "whisper-1"}}
	o := &Orchestrator{Audio: audio, Transcriber: tr, Captions: &CaptionFetcher{Manifests: src}, Language: "id"}

	got, err := o.Acquire(context.Background(), testVideoURL, 0)
	require.NoError(t, err)
	assert.Equal(t, "whisper-1", got.SourceModel)
	assert.Equal(t, "dQw4w9WgXcQ", got.VideoID)
	assert.Equal(t, "/tmp/audio.mp3", tr.gotPath)
	assert.True(t, audio.cleaned)
	assert.Zero(t, src.calls.Load(), "captions are not consulted once speech succeeds")
}

func TestOrchestratorFallsThroughToCaptions(t *testing.T) {
	srv, _ := captionServer(t)
	src := &staticManifest{m: subtitle.Manifest{
		Title: "Kuliah",
		Human: map[string][]subtitle.Track{
			"id": {track("id", subtitle.KindHuman, "vtt", srv.URL+"/short.vtt")},
		},
		Auto: map[string][]subtitle.Track{
			"id": {track("id", subtitle.KindAuto, "vtt", srv.URL+"/long.vtt")},
		},
	}}
	o := &Orchestrator{
		Transcriber: StubTranscriber{},
		Captions:    &CaptionFetcher{Manifests: src, Getter: engine.HTTPGetter{Client: srv.Client()}},
		Language:    "id",
	}

	t.Run("human passes the gate when duration is unknown", func(t *testing.T) {
		got, err := o.Acquire(context.Background(), testVideoURL, 0)
		require.NoError(t, err)
		assert.Equal(t, ModelManualCaptions, got.SourceModel)
		assert.Equal(t, "Kuliah", got.Title)
	})

	t.Run("short human track rejected, auto accepted", func(t *testing.T) {
		before := src.calls.Load()
		got, err := o.Acquire(context.Background(), testVideoURL, 1200)
		require.NoError(t, err)
		assert.Equal(t, ModelAutoCaptions, got.SourceModel)
		assert.Equal(t, 1200.0, got.VideoDuration)
		assert.Equal(t, before+1, src.calls.Load(), "manifest resolved once per acquisition")
	})
}

func TestOrchestratorLastResortStub(t *testing.T) {
	src := &staticManifest{m: subtitle.Manifest{}}
	o := &Orchestrator{
		Transcriber: StubTranscriber{Text: "transkrip cadangan"},
		Captions:    &CaptionFetcher{Manifests: src},
		Language:    "id",
	}
	got, err := o.Acquire(context.Background(), testVideoURL, 600)
	require.NoError(t, err)
	assert.Equal(t, ModelStub, got.SourceModel)
	assert.Equal(t, "transkrip cadangan", got.Text)
}

func TestOrchestratorExhausted(t *testing.T) {
	src := &staticManifest{err: errors.New("yt-dlp: executable not found")}
	o := &Orchestrator{
		Transcriber: StubTranscriber{},
		Captions:    &CaptionFetcher{Manifests: src},
		Language:    "id",
	}
	_, err := o.Acquire(context.Background(), testVideoURL, 600)

	var ex *ExhaustedError
	require.True(t, errors.As(err, &ex))
	require.Len(t, ex.Rejections, 3)
	assert.Equal(t, StrategySpeech, ex.Rejections[0].Strategy)
	assert.Equal(t, StrategyAuto, ex.Rejections[2].Strategy)
	assert.Equal(t, ex.Rejections[2].Reason, err.Error(), "last rejection wins")
	assert.Contains(t, ex.Summary(), "speech: ")
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestOrchestratorEmptySpeechFallsThrough(t *testing.T) {
	tr := &fakeTranscriber{available: true, result: &Transcript{SourceModel: "whisper-1"}}
	o := &Orchestrator{
		Audio:       &fakeAudio{},
		Transcriber: tr,
		Captions:    &CaptionFetcher{Manifests: &staticManifest{}},
		Language:    "id",
	}
	_, err := o.Acquire(context.Background(), testVideoURL, 0)
	var ex *ExhaustedError
	require.True(t, errors.As(err, &ex))
	assert.Equal(t, ErrTranscriptionEmpty.Error(), ex.Rejections[0].Reason)
}

func TestOrchestratorCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o := &Orchestrator{Transcriber: StubTranscriber{Text: "x"}, Captions: &CaptionFetcher{Manifests: &staticManifest{}}}
	_, err := o.Acquire(ctx, testVideoURL, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOrchestratorBadURL(t *testing.T) {
	o := &Orchestrator{}
	_, err := o.Acquire(context.Background(), "not a video", 0)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unrecognized"))
}
