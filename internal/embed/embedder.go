// Package embed wraps the external embedding service. Embeddings are treated
// as a black box: text in, vector out, deterministic for a given model
// version.
package embed

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Embedder produces one vector per input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// Config configures the OpenAI-compatible embedding client.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	BatchSize int
	// MaxWords truncates extremely long inputs; PDF extraction sometimes
	// yields entire paragraphs as one sentence.
	MaxWords int
	Timeout  time.Duration
}

// Client is an Embedder backed by an OpenAI-compatible embeddings endpoint.
type Client struct {
	client    *openai.Client
	model     string
	batchSize int
	maxWords  int
	timeout   time.Duration
	log       *zap.Logger
}

// NewClient creates an embedding client.
func NewClient(cfg Config, log *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("embedding service: API key or base URL is required")
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 64
	}
	maxWords := cfg.MaxWords
	if maxWords <= 0 {
		maxWords = 500
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     cfg.Model,
		batchSize: batch,
		maxWords:  maxWords,
		timeout:   timeout,
		log:       log,
	}, nil
}

// Model returns the embedding model name.
func (c *Client) Model() string { return c.model }

// Embed embeds texts in batches. The result has one vector per input text,
// in input order. Empty inputs embed as the empty string so positions are
// preserved.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	processed := make([]string, len(texts))
	for i, t := range texts {
		processed[i] = NormalizeText(t, c.maxWords)
	}

	out := make([][]float32, 0, len(processed))
	for start := 0; start < len(processed); start += c.batchSize {
		end := start + c.batchSize
		if end > len(processed) {
			end = len(processed)
		}

		vecs, err := c.embedBatch(ctx, processed[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch %d..%d: %w", start, end, err)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (c *Client) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: batch,
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(batch) {
		return nil, fmt.Errorf("embedding service returned %d vectors for %d inputs", len(resp.Data), len(batch))
	}

	// Responses carry an index; order by it rather than trusting slice order.
	vecs := make([][]float32, len(batch))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(batch) {
			return nil, fmt.Errorf("embedding service returned out-of-range index %d", d.Index)
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, nil
}

// NormalizeText lowercases, collapses whitespace and truncates to maxWords
// before embedding. Keeps embeddings stable across noisy PDF extractions.
func NormalizeText(text string, maxWords int) string {
	text = strings.ToLower(strings.TrimSpace(text))
	words := strings.Fields(text)
	if maxWords > 0 && len(words) > maxWords {
		words = words[:maxWords]
	}
	return strings.Join(words, " ")
}
