package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/anatolykoptev/go_studykit/internal/engine"
	"github.com/anatolykoptev/go_studykit/internal/engine/subtitle"
	"github.com/anatolykoptev/go_studykit/internal/toolutil"
)

// Orchestrator acquires a transcript by trying speech-to-text, then human
// captions, then auto captions, and returns the first result that passes.
type Orchestrator struct {
	Audio       AudioDownloader
	Transcriber Transcriber
	Captions    *CaptionFetcher
	// Language is the target caption language, e.g. "id".
	Language string
}

// attempt carries the per-call state of one Acquire.
type attempt struct {
	o           *Orchestrator
	canonical   string
	videoID     string
	duration    float64
	prefs       []string
	manifest    *subtitle.Manifest
	manifestErr error
	lastResort  *Transcript
	rejections  []Rejection
}

// Acquire returns a transcript for videoURL. durationSeconds is the known
// video length; zero means unknown and the manifest's duration is used.
func (o *Orchestrator) Acquire(ctx context.Context, videoURL string, durationSeconds float64) (*Transcript, error) {
	canonical, id, ok := toolutil.Canonicalize(videoURL)
	if !ok {
		return nil, fmt.Errorf("unrecognized video url %q", videoURL)
	}
	engine.IncrTranscriptRequests()

	a := &attempt{
		o:         o,
		canonical: canonical,
		videoID:   id,
		duration:  durationSeconds,
		prefs:     toolutil.LanguagePreferences(o.Language),
	}

	steps := []struct {
		strategy Strategy
		run      func(context.Context) (*Transcript, error)
	}{
		{StrategySpeech, a.speech},
		{StrategyHuman, func(ctx context.Context) (*Transcript, error) { return a.captions(ctx, subtitle.KindHuman) }},
		{StrategyAuto, func(ctx context.Context) (*Transcript, error) { return a.captions(ctx, subtitle.KindAuto) }},
	}
	for _, step := range steps {
		t, err := step.run(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		engine.IncrStrategyAttempt(string(step.strategy), err != nil)
		if err == nil {
			slog.Info("transcript acquired",
				slog.String("video", id),
				slog.String("strategy", string(step.strategy)),
				slog.String("model", t.SourceModel),
				slog.Int("chars", len(t.Text)))
			return a.finish(t), nil
		}
		a.reject(step.strategy, err)
	}

	if a.lastResort != nil && a.lastResort.Text != "" {
		engine.IncrStubFallbacks()
		slog.Warn("transcript: all sources rejected, returning stub result",
			slog.String("video", id))
		return a.finish(a.lastResort), nil
	}

	engine.IncrSourcesExhausted()
	exhausted := &ExhaustedError{Rejections: a.rejections}
	slog.Warn("transcript: all sources exhausted",
		slog.String("video", id), slog.String("reasons", exhausted.Summary()))
	return nil, exhausted
}

func (a *attempt) reject(s Strategy, err error) {
	slog.Debug("transcript strategy rejected",
		slog.String("video", a.videoID), slog.String("strategy", string(s)), slog.Any("error", err))
	a.rejections = append(a.rejections, Rejection{Strategy: s, Reason: err.Error()})
}

func (a *attempt) speech(ctx context.Context) (*Transcript, error) {
	tr := a.o.Transcriber
	if tr == nil {
		return nil, errors.New("speech-to-text not configured")
	}

	var path string
	if tr.Available() {
		if a.o.Audio == nil {
			return nil, errors.New("audio downloader not configured")
		}
		p, cleanup, err := a.o.Audio.Download(ctx, a.canonical)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		path = p
	}

	t, err := tr.Transcribe(ctx, path, a.o.Language)
	if err != nil {
		return nil, err
	}
	if t.SourceModel == ModelStub {
		a.lastResort = t
		return nil, errors.New("speech-to-text unavailable: no credentials")
	}
	if t.Text == "" {
		return nil, ErrTranscriptionEmpty
	}
	return t, nil
}

func (a *attempt) captions(ctx context.Context, kind subtitle.Kind) (*Transcript, error) {
	if a.o.Captions == nil {
		return nil, fmt.Errorf("%w: caption fetcher not configured", ErrNoTrackAvailable)
	}
	m, err := a.loadManifest(ctx)
	if err != nil {
		return nil, err
	}
	t, err := a.o.Captions.FetchFromManifest(ctx, *m, a.canonical, FetchOptions{
		Kinds:     []subtitle.Kind{kind},
		Languages: a.prefs,
	})
	if err != nil {
		return nil, err
	}
	if err := QualityGate(a.videoDuration(), subtitle.EstimatedDuration(t.Segments)); err != nil {
		return nil, err
	}
	return t, nil
}

// loadManifest resolves the manifest once for both caption strategies.
func (a *attempt) loadManifest(ctx context.Context) (*subtitle.Manifest, error) {
	if a.manifest == nil && a.manifestErr == nil {
		m, err := a.o.Captions.Manifests.Manifest(ctx, a.canonical)
		if err != nil {
			a.manifestErr = fmt.Errorf("%w: manifest: %v", ErrNoTrackAvailable, err)
		} else {
			a.manifest = &m
		}
	}
	return a.manifest, a.manifestErr
}

func (a *attempt) videoDuration() float64 {
	if a.duration > 0 {
		return a.duration
	}
	if a.manifest != nil {
		return a.manifest.Duration
	}
	return 0
}

func (a *attempt) finish(t *Transcript) *Transcript {
	if t.VideoID == "" {
		t.VideoID = a.videoID
	}
	if t.Title == "" && a.manifest != nil {
		t.Title = a.manifest.Title
	}
	if d := a.videoDuration(); d > 0 {
		t.VideoDuration = d
	}
	return t
}
