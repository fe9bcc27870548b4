package engine

import "time"

// Config holds all engine configuration, injected from main.
type Config struct {
	LLMAPIKey          string
	LLMAPIKeyFallbacks []string
	LLMAPIBase         string
	LLMModel           string
	LLMTemperature     float64
	LLMMaxTokens       int

	STTAPIBase string
	STTAPIKey  string // empty = speech-to-text stub
	STTModel   string

	YTDLPPath    string
	YTDLPCookies string // optional cookie file passed to yt-dlp
	Language     string // target caption language, e.g. "id"
	FetchTimeout time.Duration
	AudioTempDir string
	BrowserTLS   bool // route caption and watch-page requests through the stealth client

	DatabaseURL string
	SQLitePath  string
	RedisURL    string

	CompletionTTL        time.Duration
	CacheMaxEntries      int
	CacheCleanupInterval time.Duration
}
