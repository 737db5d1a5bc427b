// Package llm wraps the external text-rewriting/summarization service. The
// service is a black box: system prompt + user prompt in, text out. Callers
// must parse responses defensively since the service is not guaranteed to
// honor formatting instructions.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Chat is the completion contract used by the refiner and summarizer.
type Chat interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Config holds chat client configuration.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
}

// sleepFunc is the backoff sleep between retries (injectable for tests).
var sleepFunc = time.Sleep

// Client is a Chat backed by an OpenAI-compatible chat completions endpoint.
type Client struct {
	client *openai.Client
	cfg    Config
	log    *zap.Logger
}

// NewClient creates a chat client.
func NewClient(cfg Config, log *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("llm service: API key or base URL is required")
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1500
	}
	return &Client{
		client: openai.NewClientWithConfig(clientConfig),
		cfg:    cfg,
		log:    log,
	}, nil
}

// Complete sends a system+user prompt pair and returns the trimmed response
// text. Transient failures are retried with brief backoff; an exhausted
// retry budget surfaces the last error.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	var lastErr error

	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			c.log.Warn("llm completion retry",
				zap.Int("attempt", attempt+1),
				zap.Error(lastErr))
			sleepFunc(time.Duration(attempt) * time.Second)
		}

		text, err := c.complete(ctx, system, user)
		if err == nil {
			return text, nil
		}
		lastErr = err

		// Context cancellation is not transient.
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("llm completion failed after %d attempts: %w", c.cfg.MaxRetries, lastErr)
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
