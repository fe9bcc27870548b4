package study

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anatolykoptev/go_studykit/internal/engine"
)

// Kind is one of the four study features.
type Kind string

const (
	KindSummary Kind = "summary"
	KindQA      Kind = "qa"
	KindMindmap Kind = "mindmap"
	KindQuiz    Kind = "quiz"
)

// Kinds lists every feature in display order.
var Kinds = []Kind{KindSummary, KindQA, KindMindmap, KindQuiz}

var (
	ErrUnknownFeature = errors.New("unknown feature")
	ErrInvalidJSON    = errors.New("model returned invalid JSON")
)

// maxTranscriptRunes bounds the transcript sent to the model.
const maxTranscriptRunes = 60000

// ParseKind validates a feature name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, err := Lookup(k); err != nil {
		return "", err
	}
	return k, nil
}

// Feature bundles how one kind is prompted and how its output is normalized.
type Feature struct {
	Kind Kind
	// System builds the system prompt. quizCount is ignored by non-quiz kinds.
	System func(quizCount int) string
	// Extract validates the decoded model output and returns the normalized payload.
	Extract func(raw []byte) (json.RawMessage, error)
}

// Lookup returns the feature bundle for k.
func Lookup(k Kind) (Feature, error) {
	switch k {
	case KindSummary:
		return Feature{Kind: k, System: fixed(summarySystem), Extract: extractSummary}, nil
	case KindQA:
		return Feature{Kind: k, System: fixed(qaSystem), Extract: extractQA}, nil
	case KindMindmap:
		return Feature{Kind: k, System: fixed(mindmapSystem), Extract: extractMindmap}, nil
	case KindQuiz:
		return Feature{Kind: k, System: func(n int) string { return fmt.Sprintf(quizSystem, n) }, Extract: extractQuiz}, nil
	}
	return Feature{}, fmt.Errorf("%w: %q", ErrUnknownFeature, string(k))
}

func fixed(s string) func(int) string { return func(int) string { return s } }

// userContent renders the transcript block shared by every kind.
func userContent(title, transcript, instruction string) string {
	if title == "" {
		title = "(untitled)"
	}
	s := fmt.Sprintf(userTemplate, title, engine.TruncateRunes(strings.TrimSpace(transcript), maxTranscriptRunes, "..."))
	if instruction = strings.TrimSpace(instruction); instruction != "" {
		s += fmt.Sprintf(instructionSuffix, instruction)
	}
	return s
}

// decode strips code fences and unmarshals the model output into v.
func decode(raw []byte, v any) error {
	if err := json.Unmarshal([]byte(engine.StripFences(string(raw))), v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidJSON}, args...)...)
}

type summaryPayload struct {
	Title     string   `json:"title,omitempty"`
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
}

func extractSummary(raw []byte) (json.RawMessage, error) {
	var p summaryPayload
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	p.Summary = strings.TrimSpace(p.Summary)
	if p.Summary == "" {
		return nil, invalid("summary is empty")
	}
	p.KeyPoints = nonEmpty(p.KeyPoints)
	return json.Marshal(p)
}

type qaPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type qaPayload struct {
	QA []qaPair `json:"qa"`
}

func extractQA(raw []byte) (json.RawMessage, error) {
	var p qaPayload
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	out := qaPayload{QA: make([]qaPair, 0, len(p.QA))}
	for _, pair := range p.QA {
		q, a := strings.TrimSpace(pair.Question), strings.TrimSpace(pair.Answer)
		if q != "" && a != "" {
			out.QA = append(out.QA, qaPair{Question: q, Answer: a})
		}
	}
	if len(out.QA) == 0 {
		return nil, invalid("no question/answer pairs")
	}
	return json.Marshal(out)
}

// MindmapNode is one node of the mind map tree.
type MindmapNode struct {
	Title    string         `json:"title"`
	Children []*MindmapNode `json:"children"`
}

type mindmapPayload struct {
	Root *MindmapNode `json:"root"`
}

func extractMindmap(raw []byte) (json.RawMessage, error) {
	var p mindmapPayload
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	if p.Root == nil || strings.TrimSpace(p.Root.Title) == "" {
		return nil, invalid("mind map has no root")
	}
	prune(p.Root)
	return json.Marshal(p)
}

// prune trims titles and drops untitled subtrees.
func prune(n *MindmapNode) {
	n.Title = strings.TrimSpace(n.Title)
	kept := make([]*MindmapNode, 0, len(n.Children))
	for _, c := range n.Children {
		if c == nil || strings.TrimSpace(c.Title) == "" {
			continue
		}
		prune(c)
		kept = append(kept, c)
	}
	n.Children = kept
}

type quizQuestion struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	AnswerIndex int      `json:"answer_index"`
	Explanation string   `json:"explanation,omitempty"`
}

type quizPayload struct {
	Questions []quizQuestion `json:"questions"`
}

func extractQuiz(raw []byte) (json.RawMessage, error) {
	var p quizPayload
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	out := quizPayload{Questions: make([]quizQuestion, 0, len(p.Questions))}
	for _, q := range p.Questions {
		q.Question = strings.TrimSpace(q.Question)
		q.Explanation = strings.TrimSpace(q.Explanation)
		if q.Question == "" || len(q.Options) < 2 || q.AnswerIndex < 0 || q.AnswerIndex >= len(q.Options) {
			continue
		}
		out.Questions = append(out.Questions, q)
	}
	if len(out.Questions) == 0 {
		return nil, invalid("no valid quiz questions")
	}
	return json.Marshal(out)
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
