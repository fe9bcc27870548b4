package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/anatolykoptev/go_studykit/internal/engine/subtitle"
)

// Transcriber turns a local audio file into a transcript.
type Transcriber interface {
	// Available reports whether a real backend is configured. When false the
	// orchestrator skips the audio download and Transcribe gets an empty path.
	Available() bool
	Transcribe(ctx context.Context, audioPath, language string) (*Transcript, error)
}

// StubTranscriber stands in when no speech-to-text credentials are set.
// Its results carry ModelStub and are only used as a last resort.
type StubTranscriber struct {
	Text string
}

func (StubTranscriber) Available() bool { return false }

func (s StubTranscriber) Transcribe(_ context.Context, _, language string) (*Transcript, error) {
	t := &Transcript{Text: strings.TrimSpace(s.Text), Language: language, SourceModel: ModelStub}
	if t.Text != "" {
		segs := []subtitle.Segment{{Text: t.Text}}
		t.Segments = segs
		t.SRT = subtitle.ToSRT(segs)
	}
	return t, nil
}

// WhisperTranscriber posts audio to an OpenAI-compatible
// /audio/transcriptions endpoint and requests verbose_json segments.
type WhisperTranscriber struct {
	APIBase    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

func (w *WhisperTranscriber) Available() bool { return w.APIKey != "" }

type whisperResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func (w *WhisperTranscriber) Transcribe(ctx context.Context, audioPath, language string) (*Transcript, error) {
	body, contentType, err := whisperForm(audioPath, w.Model, language)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(w.APIBase, "/")+"/audio/transcriptions", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+w.APIKey)

	client := w.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	defer resp.Body.Close()
	if !statusOK(resp.StatusCode) {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("transcribe: HTTP %d: %s", resp.StatusCode, snippet)
	}

	var out whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("transcribe: decode: %w", err)
	}

	segs := make([]subtitle.Segment, 0, len(out.Segments))
	for _, s := range out.Segments {
		if text := strings.TrimSpace(s.Text); text != "" {
			segs = append(segs, subtitle.Segment{Start: s.Start, Duration: max(0, s.End-s.Start), Text: text})
		}
	}
	lang := out.Language
	if lang == "" {
		lang = language
	}
	t := newTranscript(segs, lang, w.Model)
	if len(segs) == 0 {
		t.Text = strings.TrimSpace(out.Text)
	}
	t.VideoDuration = out.Duration
	return t, nil
}

func whisperForm(audioPath, model, language string) (io.Reader, string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, "", fmt.Errorf("transcribe: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("transcribe: read audio: %w", err)
	}
	fields := map[string]string{"model": model, "response_format": "verbose_json"}
	if language != "" {
		fields["language"] = language
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}
