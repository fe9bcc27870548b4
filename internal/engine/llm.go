package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/anatolykoptev/go-kit/llm"
)

// ChatBackend is the LLM surface the study engine depends on.
type ChatBackend interface {
	// Model returns the configured model id.
	Model() string
	// Complete runs a one-shot chat completion and returns the full response.
	Complete(ctx context.Context, system, user string) (string, error)
	// Stream runs a streaming chat completion, calling onToken for every
	// content delta in receipt order. It returns the model id reported upstream.
	Stream(ctx context.Context, system, user string, onToken func(string) error) (string, error)
}

// LLM talks to an OpenAI-compatible chat completions endpoint. One-shot
// calls go through the go-kit client; streaming reads the SSE body directly.
type LLM struct {
	client      *llm.Client
	httpClient  *http.Client
	apiBase     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
}

// NewLLM builds the backend from engine config.
func NewLLM(c Config, httpClient *http.Client) *LLM {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &LLM{
		client: llm.NewClient(c.LLMAPIBase, c.LLMAPIKey, c.LLMModel,
			llm.WithFallbackKeys(c.LLMAPIKeyFallbacks),
			llm.WithMaxTokens(c.LLMMaxTokens),
			llm.WithTemperature(c.LLMTemperature),
			llm.WithHTTPClient(httpClient),
		),
		httpClient:  httpClient,
		apiBase:     strings.TrimRight(c.LLMAPIBase, "/"),
		apiKey:      c.LLMAPIKey,
		model:       c.LLMModel,
		temperature: c.LLMTemperature,
		maxTokens:   c.LLMMaxTokens,
	}
}

func (l *LLM) Model() string { return l.model }

// Complete sends a system+user prompt and returns the response with code fences removed.
func (l *LLM) Complete(ctx context.Context, system, user string) (string, error) {
	metrics.LLMCalls.Add(1)
	resp, err := l.client.Complete(ctx, system, user)
	if err != nil {
		metrics.LLMErrors.Add(1)
		return "", err
	}
	return StripFences(resp), nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatStreamRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatStreamChunk struct {
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Stream POSTs a stream:true chat request and relays content deltas.
// Cancelling ctx aborts the request and releases the upstream connection.
func (l *LLM) Stream(ctx context.Context, system, user string, onToken func(string) error) (string, error) {
	metrics.LLMCalls.Add(1)
	metrics.LLMStreams.Add(1)
	model, err := l.stream(ctx, system, user, onToken)
	if err != nil {
		metrics.LLMErrors.Add(1)
	}
	return model, err
}

func (l *LLM) stream(ctx context.Context, system, user string, onToken func(string) error) (string, error) {
	var msgs []chatMessage
	if system != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: system})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: user})

	body, err := json.Marshal(chatStreamRequest{
		Model:       l.model,
		Messages:    msgs,
		Stream:      true,
		Temperature: l.temperature,
		MaxTokens:   l.maxTokens,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.apiBase+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if l.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+l.apiKey)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", fmt.Errorf("llm stream: HTTP %d: %s", resp.StatusCode, snippet)
	}

	return readSSE(resp.Body, l.model, onToken)
}

// readSSE consumes "data: {...}" lines until "data: [DONE]" or EOF.
func readSSE(r io.Reader, model string, onToken func(string) error) (string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "[DONE]" {
			return model, nil
		}
		var chunk chatStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return model, fmt.Errorf("llm stream: decode chunk: %w", err)
		}
		if chunk.Error != nil {
			return model, errors.New("llm stream: " + chunk.Error.Message)
		}
		if chunk.Model != "" {
			model = chunk.Model
		}
		for _, c := range chunk.Choices {
			if c.Delta.Content == "" {
				continue
			}
			if err := onToken(c.Delta.Content); err != nil {
				return model, err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return model, fmt.Errorf("llm stream: read: %w", err)
	}
	return model, nil
}
