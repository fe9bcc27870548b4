package sources

import (
	"errors"
	"fmt"
	"strings"

	"github.com/anatolykoptev/go_studykit/internal/engine/subtitle"
)

// Source model ids recorded on a transcript to say which strategy produced it.
const (
	ModelManualCaptions = "manual-captions"
	ModelAutoCaptions   = "auto-captions"
	// ModelStub marks a speech-to-text result produced without credentials.
	ModelStub = "stub-no-credentials"
)

// Acquisition failures. Each is recovered by moving on to the next strategy.
var (
	ErrNoTrackAvailable   = errors.New("no caption track available")
	ErrFetchFailed        = errors.New("caption fetch failed")
	ErrEmptyOrUnparsable  = errors.New("caption payload empty or unparsable")
	ErrTranscriptionEmpty = errors.New("transcription returned no text")
)

// Transcript is the result of one acquisition call. It is never mutated
// after the orchestrator returns it.
type Transcript struct {
	VideoID       string             `json:"video_id,omitempty"`
	Title         string             `json:"title,omitempty"`
	Text          string             `json:"text"`
	SRT           string             `json:"srt"`
	Segments      []subtitle.Segment `json:"segments"`
	Language      string             `json:"language"`
	VideoDuration float64            `json:"video_duration_seconds,omitempty"`
	SourceModel   string             `json:"source_model"`
}

func newTranscript(segs []subtitle.Segment, lang, model string) *Transcript {
	return &Transcript{
		Text:        subtitle.PlainText(segs),
		SRT:         subtitle.ToSRT(segs),
		Segments:    segs,
		Language:    lang,
		SourceModel: model,
	}
}

// Strategy names an acquisition strategy, in priority order.
type Strategy string

const (
	StrategySpeech Strategy = "speech"
	StrategyHuman  Strategy = "human"
	StrategyAuto   Strategy = "auto"
)

// Rejection records why a strategy's result was not used.
type Rejection struct {
	Strategy Strategy `json:"strategy"`
	Reason   string   `json:"reason"`
}

// ExhaustedError is returned when every strategy was rejected. Its message
// is the most recent rejection reason; Rejections keeps all of them.
type ExhaustedError struct {
	Rejections []Rejection
}

func (e *ExhaustedError) Error() string {
	if len(e.Rejections) == 0 {
		return "all transcript sources exhausted"
	}
	return e.Rejections[len(e.Rejections)-1].Reason
}

// Summary joins every rejection for logs.
func (e *ExhaustedError) Summary() string {
	parts := make([]string, 0, len(e.Rejections))
	for _, r := range e.Rejections {
		parts = append(parts, fmt.Sprintf("%s: %s", r.Strategy, r.Reason))
	}
	return strings.Join(parts, "; ")
}
