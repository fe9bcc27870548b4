// Package storage persists transcripts, their generated study features and
// durable LLM completions. Postgres, SQLite and an in-memory store implement
// the same interfaces; Redis can serve as the durable completion tier.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a transcript or completion does not exist.
var ErrNotFound = errors.New("storage: not found")

// Transcript is a persisted transcript row.
type Transcript struct {
	ID              string    `json:"id"`
	VideoID         string    `json:"video_id,omitempty"`
	URL             string    `json:"url,omitempty"`
	Title           string    `json:"title,omitempty"`
	Language        string    `json:"language,omitempty"`
	SourceModel     string    `json:"source_model,omitempty"`
	Text            string    `json:"text"`
	SRT             string    `json:"srt,omitempty"`
	DurationSeconds float64   `json:"duration_seconds,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Feature is one generated study artifact attached to a transcript.
// Saving a feature of the same kind overwrites the previous one.
type Feature struct {
	TranscriptID string          `json:"transcript_id"`
	Kind         string          `json:"kind"`
	Payload      json.RawMessage `json:"payload"`
	Model        string          `json:"model"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Completion is a cached raw LLM response.
type Completion struct {
	Content   string    `json:"content"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}

// Transcripts stores transcript rows and their features.
type Transcripts interface {
	GetTranscript(ctx context.Context, id string) (*Transcript, error)
	// FindTranscript returns the newest transcript matching videoID or url.
	FindTranscript(ctx context.Context, videoID, url string) (*Transcript, error)
	// CreateTranscript inserts t and returns its id. t.ID is generated when empty.
	CreateTranscript(ctx context.Context, t *Transcript) (string, error)
	SaveFeature(ctx context.Context, f Feature) error
	Features(ctx context.Context, transcriptID string) ([]Feature, error)
}

// Completions is the durable completion cache tier.
type Completions interface {
	// GetCompletion returns the entry for key created at or after since.
	GetCompletion(ctx context.Context, key string, since time.Time) (*Completion, error)
	PutCompletion(ctx context.Context, key string, c Completion) error
}
