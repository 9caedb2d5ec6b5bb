package assistant

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/audiobrief/audio-brief-service/internal/audio"
)

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat exchange with the assistant.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config contains assistant client configuration
type Config struct {
	APIKey          string
	BaseURL         string
	ChatModel       string
	TranscribeModel string
	SpeechModel     string
	Voice           string
	Timeout         time.Duration
	MaxRetries      int
	MaxConcurrent   int
}

// Client calls the remote language-model API with bounded concurrency and
// retries with exponential backoff.
type Client struct {
	config    Config
	api       *openai.Client
	logger    *slog.Logger
	semaphore chan struct{} // Rate limiting semaphore

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	totalRetries    uint64

	mu sync.RWMutex
}

// Stats represents client statistics
type Stats struct {
	TotalRequests   uint64  `json:"total_requests"`
	SuccessRequests uint64  `json:"success_requests"`
	FailedRequests  uint64  `json:"failed_requests"`
	SuccessRate     float64 `json:"success_rate"`
	TotalRetries    uint64  `json:"total_retries"`
	ActiveRequests  int     `json:"active_requests"`
}

const summarySystemPrompt = "You summarize transcribed audio recordings. " +
	"Write a concise summary of the key points in a few short paragraphs."

// NewClient creates a new assistant API client
func NewClient(config Config, logger *slog.Logger) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key cannot be empty")
	}

	if config.ChatModel == "" {
		config.ChatModel = openai.GPT4oMini
	}

	if config.TranscribeModel == "" {
		config.TranscribeModel = openai.Whisper1
	}

	if config.SpeechModel == "" {
		config.SpeechModel = string(openai.TTSModel1)
	}

	if config.Voice == "" {
		config.Voice = string(openai.VoiceAlloy)
	}

	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}

	if config.MaxRetries < 0 {
		config.MaxRetries = 3
	}

	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 4
	}

	apiConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		apiConfig.BaseURL = config.BaseURL
	}

	return &Client{
		config:    config,
		api:       openai.NewClientWithConfig(apiConfig),
		logger:    logger,
		semaphore: make(chan struct{}, config.MaxConcurrent),
	}, nil
}

// Transcribe uploads an audio recording and returns its transcript.
func (c *Client) Transcribe(ctx context.Context, filename string, data []byte) (string, error) {
	var text string
	err := c.withRetry(ctx, "transcription", func(ctx context.Context) error {
		resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
			Model:    c.config.TranscribeModel,
			FilePath: filename,
			Reader:   bytes.NewReader(data),
		})
		if err != nil {
			return err
		}
		text = resp.Text
		return nil
	})
	return text, err
}

// Summarize produces a summary of the given transcript.
func (c *Client) Summarize(ctx context.Context, transcript string) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: summarySystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: transcript},
	}
	return c.complete(ctx, "summarization", messages)
}

// Chat sends a user message in the context of an existing conversation and
// returns the assistant's reply. The history is not modified.
func (c *Client) Chat(ctx context.Context, history []Message, message string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message})

	return c.complete(ctx, "chat", messages)
}

// Synthesize converts text to speech and returns the audio as base64-encoded
// raw PCM: 16-bit little-endian mono at 24 kHz, the fixed contract consumed
// by the audio pipeline.
func (c *Client) Synthesize(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", fmt.Errorf("cannot synthesize empty text")
	}

	var encoded string
	err := c.withRetry(ctx, "speech synthesis", func(ctx context.Context) error {
		resp, err := c.api.CreateSpeech(ctx, openai.CreateSpeechRequest{
			Model:          openai.SpeechModel(c.config.SpeechModel),
			Input:          text,
			Voice:          openai.SpeechVoice(c.config.Voice),
			ResponseFormat: openai.SpeechResponseFormatPcm,
		})
		if err != nil {
			return err
		}
		defer resp.Close()

		raw, err := io.ReadAll(resp)
		if err != nil {
			return fmt.Errorf("failed to read speech response: %w", err)
		}

		encoded = audio.EncodeBase64(raw)
		return nil
	})
	return encoded, err
}

// complete runs a chat completion request and returns the first choice.
func (c *Client) complete(ctx context.Context, operation string, messages []openai.ChatCompletionMessage) (string, error) {
	var reply string
	err := c.withRetry(ctx, operation, func(ctx context.Context) error {
		resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    c.config.ChatModel,
			Messages: messages,
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("empty completion response")
		}
		reply = resp.Choices[0].Message.Content
		return nil
	})
	return reply, err
}

// withRetry acquires a concurrency slot and runs fn with per-attempt
// timeouts, retrying retryable failures with exponential backoff.
func (c *Client) withRetry(ctx context.Context, operation string, fn func(context.Context) error) error {
	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return ctx.Err()
	}

	c.incrementTotalRequests()

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.incrementTotalRetries()

			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
		err := fn(attemptCtx)
		cancel()
		attempts++

		if err == nil {
			c.incrementSuccessRequests()
			return nil
		}

		lastErr = err

		if !isRetryable(err) || attempt == c.config.MaxRetries {
			break
		}

		c.logger.Warn("Assistant request failed, will retry",
			slog.String("operation", operation),
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()),
		)
	}

	c.incrementFailedRequests()
	return fmt.Errorf("%s failed after %d attempts: %w", operation, attempts, lastErr)
}

// isRetryable reports whether an API error is worth retrying: rate limits,
// server-side failures, and timeouts.
func isRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 429 {
			return true
		}
		return apiErr.HTTPStatusCode >= 500 && apiErr.HTTPStatusCode < 600
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	return false
}

// Statistics methods
func (c *Client) incrementTotalRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
}

func (c *Client) incrementSuccessRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.successRequests++
}

func (c *Client) incrementFailedRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failedRequests++
}

func (c *Client) incrementTotalRetries() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRetries++
}

// GetStats returns current client statistics
func (c *Client) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	successRate := float64(0)
	if c.totalRequests > 0 {
		successRate = float64(c.successRequests) / float64(c.totalRequests) * 100
	}

	return Stats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		SuccessRate:     successRate,
		TotalRetries:    c.totalRetries,
		ActiveRequests:  len(c.semaphore),
	}
}
