package studyserver

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_studykit/internal/engine/study"
	"github.com/anatolykoptev/go_studykit/internal/storage"
)

// RegisterTools registers transcript_fetch, transcript_get, study_generate
// and study_generate_batch on the MCP server.
func (s *Service) RegisterTools(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "transcript_fetch",
		Description: "Fetch the transcript of a YouTube lecture. Tries speech-to-text, then creator captions, then auto-generated captions in the target language, rejecting captions that cover too little of the video. Set save=true to store it and get a transcript_id for study_generate.",
	}, s.transcriptFetch)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "transcript_get",
		Description: "Get a stored transcript and every study feature generated for it (summary, qa, mindmap, quiz).",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, s.transcriptGet)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "study_generate",
		Description: "Generate one study feature from a lecture transcript: summary, qa (question/answer pairs), mindmap or quiz. Pass the transcript text, a transcript_id from transcript_fetch, or a YouTube url. Results are cached and saved to the transcript.",
	}, s.studyGenerate)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "study_generate_batch",
		Description: "Generate several study features concurrently over one transcript (default: summary, qa, mindmap). Fails as a whole if any feature fails.",
	}, s.studyGenerateBatch)
}

type TranscriptFetchInput struct {
	URL             string  `json:"url" jsonschema:"YouTube video URL or 11-character video id"`
	DurationSeconds float64 `json:"duration_seconds,omitempty" jsonschema:"Known video length in seconds (default: read from the video)"`
	AnyLanguage     bool    `json:"any_language,omitempty" jsonschema:"Fall back to captions in any language when the target language has none"`
	Save            bool    `json:"save,omitempty" jsonschema:"Store the transcript and return its transcript_id"`
	IncludeSRT      bool    `json:"include_srt,omitempty" jsonschema:"Include the SRT rendering in the result"`
}

type TranscriptGetInput struct {
	ID string `json:"id" jsonschema:"Transcript id returned by transcript_fetch or study_generate"`
}

type StudyGenerateInput struct {
	Feature         string  `json:"feature" jsonschema:"One of: summary, qa, mindmap, quiz"`
	Transcript      string  `json:"transcript,omitempty" jsonschema:"Transcript text (at least 10 characters)"`
	TranscriptID    string  `json:"transcript_id,omitempty" jsonschema:"Stored transcript id, used when transcript is empty"`
	URL             string  `json:"url,omitempty" jsonschema:"YouTube URL, fetched when neither transcript nor transcript_id is given"`
	Title           string  `json:"title,omitempty" jsonschema:"Lecture title"`
	Prompt          string  `json:"prompt,omitempty" jsonschema:"Extra instruction, e.g. focus on chapter 2"`
	DurationSeconds float64 `json:"duration_seconds,omitempty" jsonschema:"Video length in seconds, sizes the quiz"`
	QuizCount       int     `json:"quiz_count,omitempty" jsonschema:"Number of quiz questions (default: from video length)"`
}

type StudyGenerateBatchInput struct {
	Features        []string `json:"features,omitempty" jsonschema:"Features to generate (default: summary, qa, mindmap)"`
	Transcript      string   `json:"transcript,omitempty" jsonschema:"Transcript text (at least 10 characters)"`
	TranscriptID    string   `json:"transcript_id,omitempty" jsonschema:"Stored transcript id, used when transcript is empty"`
	URL             string   `json:"url,omitempty" jsonschema:"YouTube URL, fetched when neither transcript nor transcript_id is given"`
	Title           string   `json:"title,omitempty" jsonschema:"Lecture title"`
	Prompt          string   `json:"prompt,omitempty" jsonschema:"Extra instruction applied to every feature"`
	DurationSeconds float64  `json:"duration_seconds,omitempty" jsonschema:"Video length in seconds, sizes the quiz"`
	QuizCount       int      `json:"quiz_count,omitempty" jsonschema:"Number of quiz questions (default: from video length)"`
}

// TranscriptOut is a stored transcript as returned to MCP clients.
type TranscriptOut struct {
	ID              string  `json:"id"`
	VideoID         string  `json:"video_id,omitempty"`
	URL             string  `json:"url,omitempty"`
	Title           string  `json:"title,omitempty"`
	Language        string  `json:"language,omitempty"`
	SourceModel     string  `json:"source_model,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	Text            string  `json:"text"`
	CreatedAt       string  `json:"created_at"`
}

type FeatureOut struct {
	Kind      string `json:"kind"`
	Model     string `json:"model"`
	Payload   any    `json:"payload"`
	Cached    bool   `json:"cached,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

type TranscriptGetOutput struct {
	Transcript TranscriptOut `json:"transcript"`
	Features   []FeatureOut  `json:"features"`
}

type StudyGenerateOutput struct {
	TranscriptID string     `json:"transcript_id,omitempty"`
	Feature      FeatureOut `json:"feature"`
}

type StudyGenerateBatchOutput struct {
	TranscriptID string       `json:"transcript_id,omitempty"`
	Features     []FeatureOut `json:"features"`
}

func (s *Service) transcriptFetch(ctx context.Context, _ *mcp.CallToolRequest, input TranscriptFetchInput) (*mcp.CallToolResult, AcquireResult, error) {
	if input.URL == "" {
		return nil, AcquireResult{}, errors.New("url is required")
	}
	t, rejections, err := s.acquire(ctx, input.URL, input.DurationSeconds, input.AnyLanguage)
	if err != nil {
		return nil, AcquireResult{}, err
	}
	var id string
	if input.Save {
		if id, err = s.save(ctx, input.URL, t); err != nil {
			return nil, AcquireResult{}, err
		}
	}
	return nil, toAcquireResult(t, id, rejections, input.IncludeSRT), nil
}

func (s *Service) transcriptGet(ctx context.Context, _ *mcp.CallToolRequest, input TranscriptGetInput) (*mcp.CallToolResult, TranscriptGetOutput, error) {
	if input.ID == "" {
		return nil, TranscriptGetOutput{}, errors.New("id is required")
	}
	rec, err := s.record(ctx, input.ID)
	if err != nil {
		return nil, TranscriptGetOutput{}, err
	}
	out := TranscriptGetOutput{Transcript: transcriptOut(rec.Transcript), Features: make([]FeatureOut, 0, len(rec.Features))}
	for _, f := range rec.Features {
		out.Features = append(out.Features, FeatureOut{
			Kind:      f.Kind,
			Model:     f.Model,
			Payload:   decodePayload(f.Payload),
			UpdatedAt: f.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return nil, out, nil
}

func (s *Service) studyGenerate(ctx context.Context, _ *mcp.CallToolRequest, input StudyGenerateInput) (*mcp.CallToolResult, StudyGenerateOutput, error) {
	kind, err := study.ParseKind(input.Feature)
	if err != nil {
		return nil, StudyGenerateOutput{}, err
	}
	req := input.request(kind)
	if err := s.fillTranscript(ctx, &req); err != nil {
		return nil, StudyGenerateOutput{}, err
	}
	res, err := s.deps.Generator.Generate(ctx, req)
	if err != nil {
		return nil, StudyGenerateOutput{}, err
	}
	return nil, StudyGenerateOutput{TranscriptID: res.TranscriptID, Feature: resultOut(res)}, nil
}

func (s *Service) studyGenerateBatch(ctx context.Context, _ *mcp.CallToolRequest, input StudyGenerateBatchInput) (*mcp.CallToolResult, StudyGenerateBatchOutput, error) {
	var kinds []study.Kind
	for _, f := range input.Features {
		k, err := study.ParseKind(f)
		if err != nil {
			return nil, StudyGenerateBatchOutput{}, err
		}
		kinds = append(kinds, k)
	}
	req := StudyGenerateInput{
		Transcript:      input.Transcript,
		TranscriptID:    input.TranscriptID,
		URL:             input.URL,
		Title:           input.Title,
		Prompt:          input.Prompt,
		DurationSeconds: input.DurationSeconds,
		QuizCount:       input.QuizCount,
	}.request("")
	if err := s.fillTranscript(ctx, &req); err != nil {
		return nil, StudyGenerateBatchOutput{}, err
	}
	results, err := s.deps.Generator.GenerateBatch(ctx, req, kinds)
	if err != nil {
		return nil, StudyGenerateBatchOutput{}, err
	}
	out := StudyGenerateBatchOutput{Features: make([]FeatureOut, 0, len(results))}
	for _, k := range study.Kinds {
		res, ok := results[k]
		if !ok {
			continue
		}
		out.Features = append(out.Features, resultOut(res))
		if out.TranscriptID == "" {
			out.TranscriptID = res.TranscriptID
		}
	}
	return nil, out, nil
}

func (in StudyGenerateInput) request(kind study.Kind) study.Request {
	return study.Request{
		Feature:         kind,
		Transcript:      in.Transcript,
		Prompt:          in.Prompt,
		Title:           in.Title,
		YouTubeURL:      in.URL,
		TranscriptID:    in.TranscriptID,
		DurationSeconds: in.DurationSeconds,
		QuizCount:       in.QuizCount,
	}
}

func transcriptOut(t *storage.Transcript) TranscriptOut {
	return TranscriptOut{
		ID:              t.ID,
		VideoID:         t.VideoID,
		URL:             t.URL,
		Title:           t.Title,
		Language:        t.Language,
		SourceModel:     t.SourceModel,
		DurationSeconds: t.DurationSeconds,
		Text:            t.Text,
		CreatedAt:       t.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func resultOut(r *study.Result) FeatureOut {
	return FeatureOut{Kind: string(r.Feature), Model: r.Model, Payload: decodePayload(r.Payload), Cached: r.Cached}
}

// decodePayload returns a stored payload as a plain JSON value.
func decodePayload(raw json.RawMessage) any {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}
