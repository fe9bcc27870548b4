package study

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/anatolykoptev/go_studykit/internal/engine"
)

// minTranscriptRunes is the shortest transcript accepted for generation.
const minTranscriptRunes = 10

var ErrTranscriptTooShort = errors.New("transcript must be at least 10 characters")

// Request asks for one feature over a transcript.
type Request struct {
	Feature         Kind    `json:"feature"`
	Transcript      string  `json:"transcript"`
	Prompt          string  `json:"prompt,omitempty"`
	Title           string  `json:"title,omitempty"`
	YouTubeURL      string  `json:"youtubeUrl,omitempty"`
	VideoID         string  `json:"videoId,omitempty"`
	TranscriptID    string  `json:"transcriptId,omitempty"`
	DurationSeconds float64 `json:"durationSeconds,omitempty"`
	QuizCount       int     `json:"quizCount,omitempty"`
}

// Validate rejects requests that must not reach the model.
func (r Request) Validate() error {
	if utf8.RuneCountInString(strings.TrimSpace(r.Transcript)) < minTranscriptRunes {
		return ErrTranscriptTooShort
	}
	if _, err := Lookup(r.Feature); err != nil {
		return err
	}
	return nil
}

// Result is a normalized feature payload.
type Result struct {
	Feature      Kind            `json:"feature"`
	Payload      json.RawMessage `json:"payload"`
	Model        string          `json:"model"`
	Cached       bool            `json:"cached"`
	TranscriptID string          `json:"transcript_id,omitempty"`
}

// Hook runs once after a generation succeeds and before its result is
// reported. It returns the transcript id the result was attached to, or ""
// when it was not persisted. Hooks log their own failures.
type Hook func(ctx context.Context, req Request, res *Result) string

// Generator builds prompts, consults the completion cache and drives the model.
type Generator struct {
	backend engine.ChatBackend
	cache   *engine.CompletionCache
	hook    Hook
}

// NewGenerator wires a generator. cache and hook may be nil.
func NewGenerator(backend engine.ChatBackend, cache *engine.CompletionCache, hook Hook) *Generator {
	return &Generator{backend: backend, cache: cache, hook: hook}
}

// prepared is a request resolved to its prompts and cache key.
type prepared struct {
	req    Request
	feat   Feature
	system string
	user   string
	key    string
}

func (g *Generator) prepare(req Request) (*prepared, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	feat, _ := Lookup(req.Feature)
	system := feat.System(resolveQuizCount(req.QuizCount, req.DurationSeconds))
	user := userContent(req.Title, req.Transcript, req.Prompt)
	return &prepared{
		req:    req,
		feat:   feat,
		system: system,
		user:   user,
		key:    engine.CacheKey(system, user),
	}, nil
}

func (g *Generator) cached(ctx context.Context, key string) (string, string, bool) {
	if g.cache == nil {
		return "", "", false
	}
	c, ok := g.cache.Get(ctx, key)
	return c.Content, c.Model, ok
}

// result extracts the normalized payload from raw model output.
func (g *Generator) result(p *prepared, content, model string, cached bool) (*Result, error) {
	payload, err := p.feat.Extract([]byte(content))
	if err != nil {
		engine.IncrGenerationJSONErrors()
		slog.Warn("study: invalid model output",
			slog.String("feature", string(p.req.Feature)),
			slog.Bool("cached", cached),
			slog.Any("error", err))
		return nil, err
	}
	return &Result{Feature: p.req.Feature, Payload: payload, Model: model, Cached: cached}, nil
}

func (g *Generator) runHook(ctx context.Context, req Request, res *Result) {
	if g.hook != nil {
		res.TranscriptID = g.hook(ctx, req, res)
	}
}

func (g *Generator) store(ctx context.Context, key, content, model string) {
	if g.cache != nil {
		g.cache.Put(ctx, key, content, model)
	}
}

// Stream writes token events followed by exactly one done or error event.
// A cached completion is replayed in fixed-size chunks; otherwise model
// tokens are relayed as they arrive. Nothing is persisted or cached when ctx
// is cancelled, and no terminal event is written in that case.
func (g *Generator) Stream(ctx context.Context, req Request, enc *Encoder) error {
	p, err := g.prepare(req)
	if err != nil {
		_ = enc.Error(err.Error())
		return err
	}

	if content, model, ok := g.cached(ctx, p.key); ok {
		slog.Debug("study: cache hit", slog.String("feature", string(req.Feature)))
		for _, chunk := range chunkRunes(content, replayChunkRunes) {
			if err := enc.Token(chunk); err != nil {
				return err
			}
		}
		return g.terminal(ctx, p, enc, content, model, true)
	}

	var buf strings.Builder
	model, err := g.backend.Stream(ctx, p.system, p.user, func(tok string) error {
		buf.WriteString(tok)
		return enc.Token(tok)
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		slog.Warn("study: stream failed", slog.String("feature", string(req.Feature)), slog.Any("error", err))
		_ = enc.Error("generation failed: " + err.Error())
		return err
	}
	return g.terminal(ctx, p, enc, buf.String(), model, false)
}

func (g *Generator) terminal(ctx context.Context, p *prepared, enc *Encoder, content, model string, cached bool) error {
	res, err := g.result(p, content, model, cached)
	if err != nil {
		_ = enc.Error(err.Error())
		return err
	}
	g.runHook(ctx, p.req, res)
	if !cached {
		g.store(ctx, p.key, content, model)
	}
	return enc.Done(res, p.req.DurationSeconds)
}

// Generate runs one feature without streaming.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	res, err := g.generate(ctx, req)
	if err != nil {
		return nil, err
	}
	g.runHook(ctx, req, res)
	return res, nil
}

// generate resolves one feature from the cache or the model, without the hook.
func (g *Generator) generate(ctx context.Context, req Request) (*Result, error) {
	p, err := g.prepare(req)
	if err != nil {
		return nil, err
	}
	if content, model, ok := g.cached(ctx, p.key); ok {
		return g.result(p, content, model, true)
	}
	content, err := g.backend.Complete(ctx, p.system, p.user)
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", req.Feature, err)
	}
	model := g.backend.Model()
	res, err := g.result(p, content, model, false)
	if err != nil {
		return nil, err
	}
	g.store(ctx, p.key, content, model)
	return res, nil
}

// GenerateBatch runs several features concurrently over the same
// transcript. Either every feature succeeds or the batch fails; results
// are persisted only after all of them succeed.
func (g *Generator) GenerateBatch(ctx context.Context, req Request, kinds []Kind) (map[Kind]*Result, error) {
	if len(kinds) == 0 {
		kinds = []Kind{KindSummary, KindQA, KindMindmap}
	}
	for _, k := range kinds {
		r := req
		r.Feature = k
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}

	var (
		mu      sync.Mutex
		results = make(map[Kind]*Result, len(kinds))
	)
	eg, egCtx := errgroup.WithContext(ctx)
	for _, k := range kinds {
		r := req
		r.Feature = k
		eg.Go(func() error {
			res, err := g.generate(egCtx, r)
			if err != nil {
				return err
			}
			mu.Lock()
			results[k] = res
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for _, k := range kinds {
		r := req
		r.Feature = k
		res := results[k]
		g.runHook(ctx, r, res)
		if res.TranscriptID != "" {
			req.TranscriptID = res.TranscriptID
		}
	}
	return results, nil
}
