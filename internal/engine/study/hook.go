package study

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/anatolykoptev/go_studykit/internal/engine"
	"github.com/anatolykoptev/go_studykit/internal/storage"
	"github.com/anatolykoptev/go_studykit/internal/toolutil"
)

// PersistHook attaches generated features to a stored transcript. The
// transcript is found by explicit id, then by video id or URL, and created
// from the request when nothing matches. An explicit id that does not
// exist is not recreated: the feature is reported but not stored.
func PersistHook(store storage.Transcripts) Hook {
	return func(ctx context.Context, req Request, res *Result) string {
		id, err := resolveTranscript(ctx, store, req)
		if err != nil {
			engine.IncrPersistErrors()
			slog.Warn("study: transcript identity unresolved, feature not persisted",
				slog.String("feature", string(res.Feature)),
				slog.String("transcript_id", req.TranscriptID),
				slog.Any("error", err))
			return ""
		}
		err = store.SaveFeature(ctx, storage.Feature{
			TranscriptID: id,
			Kind:         string(res.Feature),
			Payload:      res.Payload,
			Model:        res.Model,
		})
		if err != nil {
			engine.IncrPersistErrors()
			slog.Warn("study: save feature failed",
				slog.String("feature", string(res.Feature)),
				slog.String("transcript_id", id),
				slog.Any("error", err))
			return ""
		}
		slog.Debug("study: feature saved", slog.String("feature", string(res.Feature)), slog.String("transcript_id", id))
		return id
	}
}

func resolveTranscript(ctx context.Context, store storage.Transcripts, req Request) (string, error) {
	if req.TranscriptID != "" {
		t, err := store.GetTranscript(ctx, req.TranscriptID)
		if err != nil {
			return "", err
		}
		return t.ID, nil
	}

	videoID, url := strings.TrimSpace(req.VideoID), ""
	if canonical, id, ok := toolutil.Canonicalize(req.YouTubeURL); ok {
		url = canonical
		if videoID == "" {
			videoID = id
		}
	} else if videoID != "" {
		url = toolutil.CanonicalWatchURL(videoID)
	}

	if videoID != "" || url != "" {
		t, err := store.FindTranscript(ctx, videoID, url)
		if err == nil {
			return t.ID, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return "", err
		}
	}

	return store.CreateTranscript(ctx, &storage.Transcript{
		VideoID:         videoID,
		URL:             url,
		Title:           req.Title,
		Text:            strings.TrimSpace(req.Transcript),
		DurationSeconds: req.DurationSeconds,
	})
}
