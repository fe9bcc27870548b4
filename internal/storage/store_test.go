package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type store interface {
	Transcripts
	Completions
}

func stores(t *testing.T) map[string]store {
	t.Helper()
	lite, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "studykit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { lite.Close() })
	return map[string]store{
		"memory": NewMemory(),
		"sqlite": lite,
	}
}

func TestTranscriptLifecycle(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.GetTranscript(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = s.FindTranscript(ctx, "", "")
			assert.ErrorIs(t, err, ErrNotFound)

			old := &Transcript{VideoID: "abc123def45", URL: "https://www.youtube.com/watch?v=abc123def45",
				Text: "first", CreatedAt: time.Now().Add(-time.Hour).UTC()}
			oldID, err := s.CreateTranscript(ctx, old)
			require.NoError(t, err)
			require.NotEmpty(t, oldID)

			id, err := s.CreateTranscript(ctx, &Transcript{VideoID: "abc123def45", Text: "second",
				Language: "id", SourceModel: "manual-captions", DurationSeconds: 1200})
			require.NoError(t, err)

			got, err := s.GetTranscript(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, "second", got.Text)
			assert.Equal(t, "manual-captions", got.SourceModel)
			assert.Equal(t, 1200.0, got.DurationSeconds)

			found, err := s.FindTranscript(ctx, "abc123def45", "")
			require.NoError(t, err)
			assert.Equal(t, id, found.ID, "newest match wins")

			found, err = s.FindTranscript(ctx, "", "https://www.youtube.com/watch?v=abc123def45")
			require.NoError(t, err)
			assert.Equal(t, oldID, found.ID)

			_, err = s.FindTranscript(ctx, "zzz", "")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestFeatureOverwrite(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id, err := s.CreateTranscript(ctx, &Transcript{Text: "hello world transcript"})
			require.NoError(t, err)

			require.NoError(t, s.SaveFeature(ctx, Feature{TranscriptID: id, Kind: "summary",
				Payload: json.RawMessage(`{"summary":"v1"}`), Model: "m1"}))
			require.NoError(t, s.SaveFeature(ctx, Feature{TranscriptID: id, Kind: "summary",
				Payload: json.RawMessage(`{"summary":"v2"}`), Model: "m2"}))
			require.NoError(t, s.SaveFeature(ctx, Feature{TranscriptID: id, Kind: "qa",
				Payload: json.RawMessage(`{"qa":[]}`), Model: "m1"}))

			feats, err := s.Features(ctx, id)
			require.NoError(t, err)
			require.Len(t, feats, 2)
			assert.Equal(t, "qa", feats[0].Kind)
			assert.Equal(t, "summary", feats[1].Kind)
			assert.JSONEq(t, `{"summary":"v2"}`, string(feats[1].Payload))
			assert.Equal(t, "m2", feats[1].Model)

			err = s.SaveFeature(ctx, Feature{TranscriptID: "nope", Kind: "qa", Payload: json.RawMessage(`{}`)})
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestCompletionWindow(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now().UTC()

			require.NoError(t, s.PutCompletion(ctx, "k1", Completion{Content: `{"a":1}`, Model: "m", CreatedAt: now}))
			require.NoError(t, s.PutCompletion(ctx, "k2", Completion{Content: `{}`, Model: "m", CreatedAt: now.Add(-2 * time.Hour)}))

			c, err := s.GetCompletion(ctx, "k1", now.Add(-time.Hour))
			require.NoError(t, err)
			assert.Equal(t, `{"a":1}`, c.Content)
			assert.Equal(t, "m", c.Model)

			_, err = s.GetCompletion(ctx, "k2", now.Add(-time.Hour))
			assert.ErrorIs(t, err, ErrNotFound, "entries older than the window are ignored")

			_, err = s.GetCompletion(ctx, "missing", now.Add(-time.Hour))
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}
