package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the runtime configuration for sdgscope.
//
// Resolution order (highest to lowest priority): CLI flags, environment
// variables (SDGSCOPE_*), config file, defaults.
type Config struct {
	// DataDir is the root for project data: {DataDir}/pdfs/{project} holds
	// source documents, {DataDir}/outputs/{project} holds artifacts.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`

	// ConfigDir holds the SDG configuration files (factors.yaml, rules.yaml,
	// scoring.yaml, registry.yaml). Built-in defaults apply when absent.
	ConfigDir string `mapstructure:"config_dir" yaml:"config_dir"`

	HTTP     HTTPConfig     `mapstructure:"http" yaml:"http"`
	LLM      LLMConfig      `mapstructure:"llm" yaml:"llm"`
	Embed    EmbedConfig    `mapstructure:"embedding" yaml:"embedding"`
	Match    MatchConfig    `mapstructure:"match" yaml:"match"`
	Refine   RefineConfig   `mapstructure:"refine" yaml:"refine"`
	Serving  ServingConfig  `mapstructure:"serving" yaml:"serving"`
	Ingest   IngestConfig   `mapstructure:"ingest" yaml:"ingest"`
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
}

// HTTPConfig configures the job API server.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	Workers         int           `mapstructure:"workers" yaml:"workers"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// LLMConfig configures the OpenAI-compatible chat service used for
// refinement and summarization.
type LLMConfig struct {
	APIKey      string        `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Model       string        `mapstructure:"model" yaml:"model"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries" yaml:"max_retries"`
}

// EmbedConfig configures the embedding service and its cache.
type EmbedConfig struct {
	Model     string        `mapstructure:"model" yaml:"model"`
	BatchSize int           `mapstructure:"batch_size" yaml:"batch_size"`
	MaxWords  int           `mapstructure:"max_words" yaml:"max_words"`
	CacheDir  string        `mapstructure:"cache_dir" yaml:"cache_dir"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

// MatchConfig configures factor matching thresholds.
type MatchConfig struct {
	MinSimilarity      float64 `mapstructure:"min_similarity" yaml:"min_similarity"`
	TableMinSimilarity float64 `mapstructure:"table_min_similarity" yaml:"table_min_similarity"`
	TopK               int     `mapstructure:"top_k" yaml:"top_k"`
}

// RefineConfig configures the evidence refiner.
type RefineConfig struct {
	ChunkSize int `mapstructure:"chunk_size" yaml:"chunk_size"`
}

// ServingConfig points at the model-serving endpoint hosting the trained
// per-SDG rule classifiers.
type ServingConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// IngestConfig configures registry scraping and PDF download.
type IngestConfig struct {
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxDocs           int           `mapstructure:"max_docs" yaml:"max_docs"`
	DownloadWorkers   int           `mapstructure:"download_workers" yaml:"download_workers"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int           `mapstructure:"burst" yaml:"burst"`
	RespectRobots     bool          `mapstructure:"respect_robots" yaml:"respect_robots"`
}

// PipelineConfig holds extraction-stage knobs.
type PipelineConfig struct {
	MinSentenceWords int `mapstructure:"min_sentence_words" yaml:"min_sentence_words"`
	MinSentenceChars int `mapstructure:"min_sentence_chars" yaml:"min_sentence_chars"`
}

// DefaultConfig returns the built-in defaults. Numeric values mirror the
// tuned production settings for the SDG-1 ontology; per-SDG overrides live
// in scoring.yaml, not here.
func DefaultConfig() *Config {
	return &Config{
		DataDir:   "data",
		ConfigDir: "config",
		HTTP: HTTPConfig{
			Addr:            ":8080",
			Workers:         2,
			ShutdownTimeout: 10 * time.Second,
		},
		LLM: LLMConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0.2,
			MaxTokens:   1500,
			Timeout:     60 * time.Second,
			MaxRetries:  3,
		},
		Embed: EmbedConfig{
			Model:     "text-embedding-3-small",
			BatchSize: 64,
			MaxWords:  500,
			CacheTTL:  7 * 24 * time.Hour,
		},
		Match: MatchConfig{
			MinSimilarity:      0.5,
			TableMinSimilarity: 0.4,
			TopK:               1,
		},
		Refine: RefineConfig{
			ChunkSize: 25,
		},
		Serving: ServingConfig{
			BaseURL: "http://localhost:8501",
			Timeout: 120 * time.Second,
		},
		Ingest: IngestConfig{
			UserAgent:         "sdgscope/0.1 (+https://github.com/verdano/sdgscope)",
			Timeout:           30 * time.Second,
			MaxDocs:           10,
			DownloadWorkers:   4,
			RequestsPerSecond: 1,
			Burst:             2,
			RespectRobots:     true,
		},
		Pipeline: PipelineConfig{
			MinSentenceWords: 6,
			MinSentenceChars: 30,
		},
	}
}

// Load resolves the effective configuration from viper (flags, env, file)
// on top of the defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Embed.CacheDir == "" {
		cfg.Embed.CacheDir = filepath.Join(cfg.DataDir, "cache", "embeddings")
	}
	return cfg, nil
}

// PDFDir returns the source document folder for a project.
func (c *Config) PDFDir(projectID string) string {
	return filepath.Join(c.DataDir, "pdfs", projectID)
}

// OutputDir returns the artifact folder for a project.
func (c *Config) OutputDir(projectID string) string {
	return filepath.Join(c.DataDir, "outputs", projectID)
}
