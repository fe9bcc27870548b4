// go_studykit turns YouTube lectures into study material.
//
// It acquires a transcript (speech-to-text, creator captions, auto captions),
// then generates summaries, Q&A, mind maps and quizzes with an LLM. Tools are
// served over MCP; token streams are served as NDJSON over a separate HTTP port.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-mcpserver"
	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_studykit/internal/engine"
	"github.com/anatolykoptev/go_studykit/internal/engine/sources"
	"github.com/anatolykoptev/go_studykit/internal/engine/study"
	"github.com/anatolykoptev/go_studykit/internal/storage"
	"github.com/anatolykoptev/go_studykit/internal/studyserver"
)

var version = "dev"

// store is the full persistence surface main wires up.
type store interface {
	storage.Transcripts
	storage.Completions
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("load .env failed", slog.Any("error", err))
	}

	mcpPort := env.Str("MCP_PORT", "8893")
	httpPort := env.Str("HTTP_PORT", "8894")
	c := loadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, closeDB := openStore(ctx, c)
	defer closeDB()

	var durable storage.Completions = db
	if c.RedisURL != "" {
		rc, err := engine.RetryDo(ctx, engine.ConnectRetry, func() (*storage.RedisCompletions, error) {
			return storage.ConnectRedisCompletions(ctx, c.RedisURL, c.CompletionTTL)
		})
		if err != nil {
			slog.Warn("redis completion tier unavailable, using primary store", slog.Any("error", err))
		} else {
			defer rc.Close()
			durable = rc
			slog.Info("redis completion tier initialized")
		}
	}
	cache := engine.NewCompletionCache(durable, c.CompletionTTL, c.CacheMaxEntries, c.CacheCleanupInterval)
	go cache.Run(ctx)

	llmClient := engine.NewLLM(c, &http.Client{Timeout: env.Duration("LLM_TIMEOUT", 5*time.Minute)})
	gen := study.NewGenerator(llmClient, cache, study.PersistHook(db))

	captions, orchestrator := buildSources(c)

	svc := studyserver.New(studyserver.Deps{
		Acquirer:  orchestrator,
		Captions:  captions,
		Generator: gen,
		Store:     db,
		Language:  c.Language,
	})

	httpSrv := &http.Server{
		Addr:              ":" + httpPort,
		Handler:           svc.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("http api listening", slog.String("port", httpPort))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http api failed", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_studykit",
		Version: version,
	}, nil)
	svc.RegisterTools(server)

	slog.Info("starting go_studykit", slog.String("mcp_port", mcpPort), slog.String("language", c.Language))
	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "go_studykit",
		Version:      version,
		Port:         mcpPort,
		WriteTimeout: 600 * time.Second,
		Metrics:      engine.FormatMetrics,
	}); err != nil {
		slog.Error("server failed", slog.Any("error", err))
	}
}

func loadConfig() engine.Config {
	return engine.Config{
		LLMAPIKey:            env.Str("LLM_API_KEY", ""),
		LLMAPIKeyFallbacks:   env.List("LLM_API_KEY_FALLBACKS", ""),
		LLMAPIBase:           env.Str("LLM_API_BASE", "https://generativelanguage.googleapis.com/v1beta/openai"),
		LLMModel:             env.Str("LLM_MODEL", "gemini-2.5-flash"),
		LLMTemperature:       env.Float("LLM_TEMPERATURE", 0.3),
		LLMMaxTokens:         env.Int("LLM_MAX_TOKENS", 16384),
		STTAPIBase:           env.Str("STT_API_BASE", "https://api.openai.com/v1"),
		STTAPIKey:            env.Str("STT_API_KEY", ""),
		STTModel:             env.Str("STT_MODEL", "whisper-1"),
		YTDLPPath:            env.Str("YTDLP_PATH", "yt-dlp"),
		YTDLPCookies:         env.Str("YTDLP_COOKIES", ""),
		Language:             env.Str("TRANSCRIPT_LANGUAGE", "id"),
		FetchTimeout:         env.Duration("FETCH_TIMEOUT", 20*time.Second),
		AudioTempDir:         env.Str("AUDIO_TEMP_DIR", ""),
		BrowserTLS:           env.Str("BROWSER_TLS", "true") == "true",
		DatabaseURL:          env.Str("DATABASE_URL", ""),
		SQLitePath:           env.Str("SQLITE_PATH", storage.DefaultSQLitePath()),
		RedisURL:             env.Str("REDIS_URL", ""),
		CompletionTTL:        env.Duration("COMPLETION_CACHE_TTL", engine.DefaultCompletionTTL),
		CacheMaxEntries:      env.Int("CACHE_MAX_ENTRIES", 1000),
		CacheCleanupInterval: env.Duration("CACHE_CLEANUP_INTERVAL", 5*time.Minute),
	}
}

// openStore picks postgres when DATABASE_URL is set, then sqlite, then memory.
func openStore(ctx context.Context, c engine.Config) (store, func()) {
	if c.DatabaseURL != "" {
		pg, err := engine.RetryDo(ctx, engine.ConnectRetry, func() (*storage.Postgres, error) {
			return storage.ConnectPostgres(ctx, c.DatabaseURL)
		})
		if err == nil {
			slog.Info("postgres store initialized")
			return pg, pg.Close
		}
		slog.Warn("postgres init failed, falling back to sqlite", slog.Any("error", err))
	}
	lite, err := storage.OpenSQLite(c.SQLitePath)
	if err == nil {
		slog.Info("sqlite store initialized", slog.String("path", c.SQLitePath))
		return lite, func() { _ = lite.Close() }
	}
	slog.Warn("sqlite init failed, transcripts kept in memory", slog.Any("error", err))
	return storage.NewMemory(), func() {}
}

func buildSources(c engine.Config) (*sources.CaptionFetcher, *sources.Orchestrator) {
	var getter engine.PageGetter = engine.HTTPGetter{Client: &http.Client{Timeout: c.FetchTimeout}}
	if c.BrowserTLS {
		bg, err := engine.NewBrowserGetter()
		if err != nil {
			slog.Warn("stealth browser client init failed, using net/http", slog.Any("error", err))
		} else {
			getter = bg
			slog.Info("stealth browser client initialized")
		}
	}

	captions := &sources.CaptionFetcher{
		Manifests: sources.FallbackManifest{
			&sources.YTDLP{Path: c.YTDLPPath, Cookies: c.YTDLPCookies, Language: c.Language},
			&sources.WatchPage{Getter: getter},
		},
		Getter: getter,
	}

	var transcriber sources.Transcriber = sources.StubTranscriber{}
	if c.STTAPIKey != "" {
		transcriber = &sources.WhisperTranscriber{
			APIBase:    c.STTAPIBase,
			APIKey:     c.STTAPIKey,
			Model:      c.STTModel,
			HTTPClient: &http.Client{Timeout: 10 * time.Minute},
		}
	} else {
		slog.Info("speech-to-text disabled, STT_API_KEY not set")
	}

	return captions, &sources.Orchestrator{
		Audio:       &sources.YTDLPAudio{Path: c.YTDLPPath, Cookies: c.YTDLPCookies, TempDir: c.AudioTempDir},
		Transcriber: transcriber,
		Captions:    captions,
		Language:    c.Language,
	}
}
