// Package studyserver exposes transcript acquisition and study feature
// generation as MCP tools and as an NDJSON streaming HTTP API.
package studyserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anatolykoptev/go_studykit/internal/engine"
	"github.com/anatolykoptev/go_studykit/internal/engine/sources"
	"github.com/anatolykoptev/go_studykit/internal/engine/study"
	"github.com/anatolykoptev/go_studykit/internal/storage"
	"github.com/anatolykoptev/go_studykit/internal/toolutil"
)

// Acquirer produces a transcript for a video URL.
type Acquirer interface {
	Acquire(ctx context.Context, videoURL string, durationSeconds float64) (*sources.Transcript, error)
}

// CaptionSource fetches captions directly, bypassing the strategy chain.
type CaptionSource interface {
	Fetch(ctx context.Context, videoURL string, opts sources.FetchOptions) (*sources.Transcript, error)
}

// Deps are the collaborators the server needs. Captions may be nil.
type Deps struct {
	Acquirer  Acquirer
	Captions  CaptionSource
	Generator *study.Generator
	Store     storage.Transcripts
	Language  string
}

// Service implements the tool and HTTP handlers over Deps.
type Service struct {
	deps Deps
}

func New(d Deps) *Service { return &Service{deps: d} }

// TranscriptRecord is a stored transcript with its generated features.
type TranscriptRecord struct {
	Transcript *storage.Transcript `json:"transcript"`
	Features   []storage.Feature   `json:"features"`
}

// AcquireResult is the outcome of fetching a transcript.
type AcquireResult struct {
	TranscriptID    string              `json:"transcript_id,omitempty"`
	VideoID         string              `json:"video_id"`
	Title           string              `json:"title,omitempty"`
	Language        string              `json:"language"`
	SourceModel     string              `json:"source_model"`
	DurationSeconds float64             `json:"duration_seconds,omitempty"`
	Segments        int                 `json:"segments"`
	Text            string              `json:"text"`
	SRT             string              `json:"srt,omitempty"`
	Rejections      []sources.Rejection `json:"rejections,omitempty"`
}

// acquire runs the strategy chain. With anyLanguage set, an exhausted
// chain falls back to captions in whatever language the video has.
func (s *Service) acquire(ctx context.Context, videoURL string, durationSeconds float64, anyLanguage bool) (*sources.Transcript, []sources.Rejection, error) {
	var t *sources.Transcript
	err := engine.TrackOperation(ctx, "transcript_acquire", func(ctx context.Context) error {
		var aerr error
		t, aerr = s.deps.Acquirer.Acquire(ctx, videoURL, durationSeconds)
		return aerr
	})
	if err == nil {
		return t, nil, nil
	}
	var exhausted *sources.ExhaustedError
	if !errors.As(err, &exhausted) || !anyLanguage || s.deps.Captions == nil {
		return nil, nil, err
	}
	t, ferr := s.deps.Captions.Fetch(ctx, videoURL, sources.FetchOptions{
		Languages:   toolutil.LanguagePreferences(s.deps.Language),
		AnyLanguage: true,
	})
	if ferr != nil {
		return nil, nil, err
	}
	return t, exhausted.Rejections, nil
}

// save persists an acquired transcript and returns its id.
func (s *Service) save(ctx context.Context, videoURL string, t *sources.Transcript) (string, error) {
	canonical, id, _ := toolutil.Canonicalize(videoURL)
	if t.VideoID != "" {
		id = t.VideoID
	}
	return s.deps.Store.CreateTranscript(ctx, &storage.Transcript{
		VideoID:         id,
		URL:             canonical,
		Title:           t.Title,
		Language:        t.Language,
		SourceModel:     t.SourceModel,
		Text:            t.Text,
		SRT:             t.SRT,
		DurationSeconds: t.VideoDuration,
	})
}

func (s *Service) record(ctx context.Context, id string) (*TranscriptRecord, error) {
	t, err := s.deps.Store.GetTranscript(ctx, id)
	if err != nil {
		return nil, err
	}
	feats, err := s.deps.Store.Features(ctx, id)
	if err != nil {
		return nil, err
	}
	if feats == nil {
		feats = []storage.Feature{}
	}
	return &TranscriptRecord{Transcript: t, Features: feats}, nil
}

func toAcquireResult(t *sources.Transcript, id string, rejections []sources.Rejection, withSRT bool) AcquireResult {
	out := AcquireResult{
		TranscriptID:    id,
		VideoID:         t.VideoID,
		Title:           t.Title,
		Language:        t.Language,
		SourceModel:     t.SourceModel,
		DurationSeconds: t.VideoDuration,
		Segments:        len(t.Segments),
		Text:            t.Text,
		Rejections:      rejections,
	}
	if withSRT {
		out.SRT = t.SRT
	}
	return out
}

// fillTranscript completes a generation request that names its transcript
// by id or URL instead of carrying the text.
func (s *Service) fillTranscript(ctx context.Context, req *study.Request) error {
	if strings.TrimSpace(req.Transcript) != "" {
		return nil
	}
	if req.TranscriptID != "" {
		t, err := s.deps.Store.GetTranscript(ctx, req.TranscriptID)
		if err != nil {
			return fmt.Errorf("transcript %s: %w", req.TranscriptID, err)
		}
		req.Transcript = t.Text
		if req.Title == "" {
			req.Title = t.Title
		}
		if req.DurationSeconds == 0 {
			req.DurationSeconds = t.DurationSeconds
		}
		return nil
	}
	if req.YouTubeURL == "" {
		return study.ErrTranscriptTooShort
	}
	t, _, err := s.acquire(ctx, req.YouTubeURL, req.DurationSeconds, false)
	if err != nil {
		return err
	}
	id, err := s.save(ctx, req.YouTubeURL, t)
	if err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	req.Transcript = t.Text
	req.TranscriptID = id
	if req.Title == "" {
		req.Title = t.Title
	}
	if req.DurationSeconds == 0 {
		req.DurationSeconds = t.VideoDuration
	}
	return nil
}
