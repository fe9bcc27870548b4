package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anatolykoptev/go_studykit/internal/storage"
)

// DefaultCompletionTTL is the freshness window shared by both cache tiers.
const DefaultCompletionTTL = time.Hour

// Cache hit/miss counters.
var (
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
)

// CompletionCache is a 2-tier content-addressed cache of LLM completions:
// L1 in-memory mirror + L2 durable store. The first durable failure turns
// L2 off for the rest of the process; after that the cache is memory only.
//
// Mirror entries expire at the durable entry's creation time plus ttl, so
// both tiers agree on when a completion stops being served.
type CompletionCache struct {
	l1              sync.Map // key → *cacheEntry
	durable         storage.Completions
	durableDown     atomic.Bool
	ttl             time.Duration
	maxEntries      int
	cleanupInterval time.Duration
	now             func() time.Time
}

type cacheEntry struct {
	completion storage.Completion
	expiresAt  time.Time
}

// NewCompletionCache builds the cache. durable may be nil for memory only.
func NewCompletionCache(durable storage.Completions, ttl time.Duration, maxEntries int, cleanupInterval time.Duration) *CompletionCache {
	if ttl <= 0 {
		ttl = DefaultCompletionTTL
	}
	c := &CompletionCache{
		durable:         durable,
		ttl:             ttl,
		maxEntries:      maxEntries,
		cleanupInterval: cleanupInterval,
		now:             time.Now,
	}
	slog.Info("cache: initialized", slog.Duration("ttl", ttl), slog.Bool("durable", durable != nil), slog.Int("max_entries", maxEntries))
	return c
}

// CacheKey hashes a (system prompt, user content) pair. Identical pairs always
// produce the same key; it is an idempotence boundary, not a secret.
func CacheKey(systemPrompt, userContent string) string {
	h := sha256.New()
	h.Write([]byte(strconv.Itoa(len(systemPrompt))))
	h.Write([]byte{':'})
	h.Write([]byte(systemPrompt))
	h.Write([]byte(userContent))
	return "sk:" + hex.EncodeToString(h.Sum(nil))
}

// Get tries L1, then L2 restricted to entries younger than ttl.
// On L2 hit, populates L1.
func (c *CompletionCache) Get(ctx context.Context, key string) (storage.Completion, bool) {
	now := c.now()

	if val, ok := c.l1.Load(key); ok {
		entry := val.(*cacheEntry)
		if now.Before(entry.expiresAt) {
			slog.Debug("cache: L1 hit", slog.String("key", key))
			cacheHits.Add(1)
			return entry.completion, true
		}
		c.l1.Delete(key) // expired
	}

	if c.durableAvailable() {
		got, err := c.durable.GetCompletion(ctx, key, now.Add(-c.ttl))
		switch {
		case err == nil:
			slog.Debug("cache: L2 hit", slog.String("key", key))
			cacheHits.Add(1)
			c.store(key, *got)
			return *got, true
		case errors.Is(err, storage.ErrNotFound), callerGone(ctx, err):
		default:
			c.degrade("get", err)
		}
	}

	cacheMisses.Add(1)
	return storage.Completion{}, false
}

// Put stores a completion in both tiers. Durable failures are logged, not returned.
func (c *CompletionCache) Put(ctx context.Context, key, content, model string) {
	entry := storage.Completion{Content: content, Model: model, CreatedAt: c.now().UTC()}

	c.evictIfNeeded()
	c.store(key, entry)

	if c.durableAvailable() {
		if err := c.durable.PutCompletion(ctx, key, entry); err != nil && !callerGone(ctx, err) {
			c.degrade("put", err)
		}
	}
}

// Degraded reports whether the durable tier has been switched off.
func (c *CompletionCache) Degraded() bool {
	return c.durableDown.Load()
}

func (c *CompletionCache) store(key string, entry storage.Completion) {
	c.l1.Store(key, &cacheEntry{
		completion: entry,
		expiresAt:  entry.CreatedAt.Add(c.ttl),
	})
}

func (c *CompletionCache) durableAvailable() bool {
	return c.durable != nil && !c.durableDown.Load()
}

// callerGone reports whether a durable error came from the caller's context
// ending rather than from the store. Those never trip the breaker.
func callerGone(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (c *CompletionCache) degrade(op string, err error) {
	if c.durableDown.CompareAndSwap(false, true) {
		metrics.CacheDegraded.Add(1)
		slog.Warn("cache: durable tier failed, continuing memory-only",
			slog.String("op", op), slog.Any("error", err))
	}
}

// CacheStats returns current cache hit/miss counters.
func CacheStats() (hits, misses int64) {
	return cacheHits.Load(), cacheMisses.Load()
}

// evictIfNeeded removes entries when L1 exceeds maxEntries.
// Removes expired entries first, then the entries closest to expiry.
func (c *CompletionCache) evictIfNeeded() {
	if c.maxEntries <= 0 {
		return
	}

	count := 0
	c.l1.Range(func(_, _ any) bool {
		count++
		return true
	})
	if count < c.maxEntries {
		return
	}

	now := c.now()
	c.l1.Range(func(key, val any) bool {
		if entry, ok := val.(*cacheEntry); ok && !now.Before(entry.expiresAt) {
			c.l1.Delete(key)
			count--
		}
		return count >= c.maxEntries
	})

	for count >= c.maxEntries {
		var oldestKey any
		var oldestAt time.Time
		c.l1.Range(func(key, val any) bool {
			if entry, ok := val.(*cacheEntry); ok {
				if oldestKey == nil || entry.expiresAt.Before(oldestAt) {
					oldestKey = key
					oldestAt = entry.expiresAt
				}
			}
			return true
		})
		if oldestKey == nil {
			break
		}
		c.l1.Delete(oldestKey)
		count--
	}
}

// Run periodically removes expired L1 entries until ctx is cancelled.
func (c *CompletionCache) Run(ctx context.Context) {
	interval := c.cleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := c.now()
			c.l1.Range(func(key, val any) bool {
				if entry, ok := val.(*cacheEntry); ok && !now.Before(entry.expiresAt) {
					c.l1.Delete(key)
				}
				return true
			})
		}
	}
}
