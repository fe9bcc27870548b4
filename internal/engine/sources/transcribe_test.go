package sources

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhisperTranscriber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "verbose_json", r.FormValue("response_format"))
		assert.Equal(t, "id", r.FormValue("language"))
		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		data, _ := io.ReadAll(f)
		assert.Equal(t, "audio.mp3", hdr.Filename)
		assert.Equal(t, "fake-audio", string(data))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":"Halo semua. Mari belajar.","language":"indonesian","duration":7.5,
			"segments":[{"start":0,"end":2.5,"text":" Halo semua."},{"start":2.5,"end":7.5,"text":" Mari belajar."}]}`)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "audio.mp3")
	require.NoError(t, os.WriteFile(path, []byte("fake-audio"), 0o644))

	w := &WhisperTranscriber{APIBase: srv.URL + "/v1/", APIKey: "sk-test", Model: "whisper-1", HTTPClient: srv.Client()}
	assert.True(t, w.Available())

	got, err := w.Transcribe(context.Background(), path, "id")
	require.NoError(t, err)
	assert.Equal(t, "Halo semua. Mari belajar.", got.Text)
	assert.Equal(t, "whisper-1", got.SourceModel)
	assert.Equal(t, "indonesian", got.Language)
	assert.Equal(t, 7.5, got.VideoDuration)
	require.Len(t, got.Segments, 2)
	assert.InDelta(t, 5.0, got.Segments[1].Duration, 1e-9)
	assert.Contains(t, got.SRT, "00:00:02,500 --> 00:00:07,500")
}

func TestWhisperTranscriberErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "a.mp3")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	w := &WhisperTranscriber{APIBase: srv.URL, APIKey: "k", Model: "whisper-1", HTTPClient: srv.Client()}
	_, err := w.Transcribe(context.Background(), path, "id")
	assert.ErrorContains(t, err, "HTTP 429")

	_, err = w.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"), "id")
	assert.Error(t, err)

	assert.False(t, (&WhisperTranscriber{}).Available())
}

func TestStubTranscriber(t *testing.T) {
	s := StubTranscriber{}
	assert.False(t, s.Available())
	got, err := s.Transcribe(context.Background(), "", "id")
	require.NoError(t, err)
	assert.Equal(t, ModelStub, got.SourceModel)
	assert.Empty(t, got.Text)

	got, err = StubTranscriber{Text: " cadangan "}.Transcribe(context.Background(), "", "id")
	require.NoError(t, err)
	assert.Equal(t, "cadangan", got.Text)
	assert.Equal(t, "id", got.Language)
}

type recordingRunner struct {
	args []string
	ext  string
}

func (r *recordingRunner) Run(_ context.Context, _ string, args ...string) ([]byte, error) {
	r.args = args
	for i, a := range args {
		if a == "-o" && r.ext != "" {
			out := filepath.Join(filepath.Dir(args[i+1]), "audio."+r.ext)
			if err := os.WriteFile(out, []byte("x"), 0o644); err != nil {
				return nil, err
			}
		}
	}
	return nil, nil
}

func TestYTDLPAudio(t *testing.T) {
	r := &recordingRunner{ext: "mp3"}
	a := &YTDLPAudio{TempDir: t.TempDir(), Runner: r}
	path, cleanup, err := a.Download(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "audio.mp3", filepath.Base(path))
	assert.Contains(t, r.args, "-x")
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", r.args[len(r.args)-1])
	_, err = os.Stat(path)
	require.NoError(t, err)

	cleanup()
	_, err = os.Stat(filepath.Dir(path))
	assert.True(t, os.IsNotExist(err))

	_, _, err = (&YTDLPAudio{TempDir: t.TempDir(), Runner: &recordingRunner{}}).Download(context.Background(), "u")
	assert.Error(t, err, "missing output file")
}
