package study

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
)

// ContentType is the media type of an encoded event stream.
const ContentType = "application/x-ndjson"

// replayChunkRunes is the token size used when replaying a cached completion.
const replayChunkRunes = 60

// ErrStreamClosed is returned for writes after the terminal event.
var ErrStreamClosed = errors.New("stream closed")

// EventType tags each line of the stream.
type EventType string

const (
	EventToken EventType = "token"
	EventDone  EventType = "done"
	EventError EventType = "error"
)

// Event is one NDJSON line.
type Event struct {
	Type            EventType       `json:"type"`
	Token           string          `json:"token,omitempty"`
	Feature         Kind            `json:"feature,omitempty"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	Model           string          `json:"model,omitempty"`
	Cached          bool            `json:"cached,omitempty"`
	TranscriptID    string          `json:"transcript_id,omitempty"`
	DurationSeconds float64         `json:"duration_seconds,omitempty"`
	Message         string          `json:"message,omitempty"`
}

// Encoder writes events as newline-delimited JSON. After a done or error
// event the encoder is closed and rejects further writes.
type Encoder struct {
	mu      sync.Mutex
	enc     *json.Encoder
	flusher http.Flusher
	closed  bool
}

// NewEncoder wraps w. Writers that implement http.Flusher are flushed
// after every event.
func NewEncoder(w io.Writer) *Encoder {
	e := &Encoder{enc: json.NewEncoder(w)}
	e.enc.SetEscapeHTML(false)
	if f, ok := w.(http.Flusher); ok {
		e.flusher = f
	}
	return e
}

// Token emits a token event. Empty tokens are dropped.
func (e *Encoder) Token(s string) error {
	if s == "" {
		return nil
	}
	return e.write(Event{Type: EventToken, Token: s}, false)
}

// Done emits the terminal success event and closes the stream.
func (e *Encoder) Done(res *Result, durationSeconds float64) error {
	return e.write(Event{
		Type:            EventDone,
		Feature:         res.Feature,
		Payload:         res.Payload,
		Model:           res.Model,
		Cached:          res.Cached,
		TranscriptID:    res.TranscriptID,
		DurationSeconds: durationSeconds,
	}, true)
}

// Error emits the terminal failure event and closes the stream.
func (e *Encoder) Error(msg string) error {
	return e.write(Event{Type: EventError, Message: msg}, true)
}

// Closed reports whether a terminal event has been written.
func (e *Encoder) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *Encoder) write(ev Event, terminal bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrStreamClosed
	}
	if terminal {
		e.closed = true
	}
	if err := e.enc.Encode(ev); err != nil {
		return err
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}

// chunkRunes splits s into pieces of at most n runes.
func chunkRunes(s string, n int) []string {
	var out []string
	r := []rune(s)
	for len(r) > 0 {
		size := min(n, len(r))
		out = append(out, string(r[:size]))
		r = r[size:]
	}
	return out
}
