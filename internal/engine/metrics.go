package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	TranscriptRequests   atomic.Int64
	SpeechAttempts       atomic.Int64
	SpeechRejections     atomic.Int64
	HumanAttempts        atomic.Int64
	HumanRejections      atomic.Int64
	AutoAttempts         atomic.Int64
	AutoRejections       atomic.Int64
	SourcesExhausted     atomic.Int64
	StubFallbacks        atomic.Int64
	LLMCalls             atomic.Int64
	LLMErrors            atomic.Int64
	LLMStreams           atomic.Int64
	GenerationJSONErrors atomic.Int64
	PersistErrors        atomic.Int64
	CacheDegraded        atomic.Int64
}

// GetMetrics returns a snapshot of all metrics including cache stats.
func GetMetrics() map[string]int64 {
	hits, misses := CacheStats()
	return map[string]int64{
		"transcript_requests":    metrics.TranscriptRequests.Load(),
		"speech_attempts":        metrics.SpeechAttempts.Load(),
		"speech_rejections":      metrics.SpeechRejections.Load(),
		"human_attempts":         metrics.HumanAttempts.Load(),
		"human_rejections":       metrics.HumanRejections.Load(),
		"auto_attempts":          metrics.AutoAttempts.Load(),
		"auto_rejections":        metrics.AutoRejections.Load(),
		"sources_exhausted":      metrics.SourcesExhausted.Load(),
		"stub_fallbacks":         metrics.StubFallbacks.Load(),
		"llm_calls":              metrics.LLMCalls.Load(),
		"llm_errors":             metrics.LLMErrors.Load(),
		"llm_streams":            metrics.LLMStreams.Load(),
		"generation_json_errors": metrics.GenerationJSONErrors.Load(),
		"persist_errors":         metrics.PersistErrors.Load(),
		"cache_degraded":         metrics.CacheDegraded.Load(),
		"cache_hits":             hits,
		"cache_misses":           misses,
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	keys := []string{
		"transcript_requests",
		"speech_attempts", "speech_rejections",
		"human_attempts", "human_rejections",
		"auto_attempts", "auto_rejections",
		"sources_exhausted", "stub_fallbacks",
		"llm_calls", "llm_errors", "llm_streams",
		"generation_json_errors", "persist_errors",
		"cache_degraded", "cache_hits", "cache_misses",
	}
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for sources/ sub-package.
func IncrTranscriptRequests() { metrics.TranscriptRequests.Add(1) }
func IncrSourcesExhausted()   { metrics.SourcesExhausted.Add(1) }
func IncrStubFallbacks()      { metrics.StubFallbacks.Add(1) }

// IncrStrategyAttempt counts an acquisition attempt for strategy
// ("speech", "human", "auto"); rejected also counts a rejection.
func IncrStrategyAttempt(strategy string, rejected bool) {
	var attempts, rejections *atomic.Int64
	switch strategy {
	case "speech":
		attempts, rejections = &metrics.SpeechAttempts, &metrics.SpeechRejections
	case "human":
		attempts, rejections = &metrics.HumanAttempts, &metrics.HumanRejections
	case "auto":
		attempts, rejections = &metrics.AutoAttempts, &metrics.AutoRejections
	default:
		return
	}
	attempts.Add(1)
	if rejected {
		rejections.Add(1)
	}
}

// Incrementors for study/ sub-package.
func IncrGenerationJSONErrors() { metrics.GenerationJSONErrors.Add(1) }
func IncrPersistErrors()        { metrics.PersistErrors.Add(1) }

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > 30*time.Second {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
