package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process store used in tests and as a last-resort backend.
type Memory struct {
	mu          sync.RWMutex
	transcripts map[string]Transcript
	features    map[string]map[string]Feature
	completions map[string]Completion
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		transcripts: map[string]Transcript{},
		features:    map[string]map[string]Feature{},
		completions: map[string]Completion{},
	}
}

func (m *Memory) GetTranscript(_ context.Context, id string) (*Transcript, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.transcripts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (m *Memory) FindTranscript(_ context.Context, videoID, url string) (*Transcript, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var found *Transcript
	for _, t := range m.transcripts {
		if (videoID != "" && t.VideoID == videoID) || (url != "" && t.URL == url) {
			if found == nil || t.CreatedAt.After(found.CreatedAt) {
				found = &t
			}
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (m *Memory) CreateTranscript(_ context.Context, t *Transcript) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	m.transcripts[t.ID] = *t
	return t.ID, nil
}

func (m *Memory) SaveFeature(_ context.Context, f Feature) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.transcripts[f.TranscriptID]; !ok {
		return ErrNotFound
	}
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = time.Now().UTC()
	}
	byKind := m.features[f.TranscriptID]
	if byKind == nil {
		byKind = map[string]Feature{}
		m.features[f.TranscriptID] = byKind
	}
	byKind[f.Kind] = f
	return nil
}

func (m *Memory) Features(_ context.Context, transcriptID string) ([]Feature, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Feature, 0, len(m.features[transcriptID]))
	for _, f := range m.features[transcriptID] {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out, nil
}

func (m *Memory) GetCompletion(_ context.Context, key string, since time.Time) (*Completion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.completions[key]
	if !ok || c.CreatedAt.Before(since) {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *Memory) PutCompletion(_ context.Context, key string, c Completion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completions[key] = c
	return nil
}
