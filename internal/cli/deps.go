package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/verdano/sdgscope/internal/cache"
	"github.com/verdano/sdgscope/internal/classify"
	"github.com/verdano/sdgscope/internal/config"
	"github.com/verdano/sdgscope/internal/embed"
	"github.com/verdano/sdgscope/internal/ingest"
	"github.com/verdano/sdgscope/internal/llm"
	"github.com/verdano/sdgscope/internal/pipeline"
)

// buildPipeline assembles the pipeline and its dependencies from resolved
// configuration. The returned downloader is nil when ingestion is not
// needed by the caller.
func buildPipeline(ctx context.Context, cfg *config.Config, log *zap.Logger) (*pipeline.Pipeline, *ingest.Downloader, error) {
	sdg, err := config.LoadSDG(cfg.ConfigDir)
	if err != nil {
		return nil, nil, fmt.Errorf("load SDG config: %w", err)
	}

	embedClient, err := embed.NewClient(embed.Config{
		APIKey:    cfg.LLM.APIKey,
		BaseURL:   cfg.LLM.BaseURL,
		Model:     cfg.Embed.Model,
		BatchSize: cfg.Embed.BatchSize,
		MaxWords:  cfg.Embed.MaxWords,
	}, log.Named("embed"))
	if err != nil {
		return nil, nil, fmt.Errorf("embedding client: %w", err)
	}

	embCache := cache.NewLayeredCache(cfg.Embed.CacheTTL, cfg.Embed.CacheDir, cfg.Embed.CacheTTL)
	embedder := embed.NewCachedEmbedder(embedClient, embCache, log.Named("embed"))

	var chat llm.Chat
	if cfg.LLM.APIKey != "" || cfg.LLM.BaseURL != "" {
		client, err := llm.NewClient(llm.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Timeout:     cfg.LLM.Timeout,
			MaxRetries:  cfg.LLM.MaxRetries,
		}, log.Named("llm"))
		if err != nil {
			return nil, nil, fmt.Errorf("llm client: %w", err)
		}
		chat = client
	}

	serving := classify.NewService(cfg.Serving.BaseURL, cfg.Serving.Timeout, log.Named("serving"))

	p, err := pipeline.New(ctx, cfg, sdg, embedder, chat, serving, nil, log.Named("pipeline"))
	if err != nil {
		return nil, nil, err
	}

	downloader := ingest.NewDownloader(cfg.Ingest, log.Named("ingest"))
	return p, downloader, nil
}
