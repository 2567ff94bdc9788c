// Package config loads and validates the application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"docqa/internal/chunker"
	"docqa/internal/domain"
	"docqa/internal/embedding/local"
	"docqa/internal/retriever"
	"docqa/internal/synthesizer"
	"docqa/internal/vectorstore"
)

// OpenAIConfig holds connection settings shared by the OpenAI-compatible
// embedding and generation clients.
type OpenAIConfig struct {
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Model             string  `yaml:"model"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	BatchSize         int     `yaml:"batch_size,omitempty"`
	MaxRetries        int     `yaml:"max_retries,omitempty"`
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"`
	Temperature       float64 `yaml:"temperature,omitempty"`
	MaxTokens         int     `yaml:"max_tokens,omitempty"`
}

// EmbedderConfig selects and configures the embedder implementation.
type EmbedderConfig struct {
	Type      string        `yaml:"type"`
	Dimension int           `yaml:"dimension,omitempty"`
	OpenAI    *OpenAIConfig `yaml:"openai,omitempty"`
}

// GeneratorConfig selects and configures the generation model client.
type GeneratorConfig struct {
	Type   string        `yaml:"type"`
	OpenAI *OpenAIConfig `yaml:"openai,omitempty"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	MaxChars     int `yaml:"max_chars"`
	OverlapChars int `yaml:"overlap_chars"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// PostgresConfig contains connection details for a pgvector store.
type PostgresConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

// StoreConfig selects and configures the vector store backend. Metric is
// fixed here for the lifetime of the index; mixing metrics across runs
// against the same persistent backend is a configuration error on the
// operator's side.
type StoreConfig struct {
	Type     string          `yaml:"type"`
	Metric   string          `yaml:"metric"`
	Qdrant   *QdrantConfig   `yaml:"qdrant,omitempty"`
	Postgres *PostgresConfig `yaml:"postgres,omitempty"`
}

// RetrieverConfig configures search width.
type RetrieverConfig struct {
	TopK       int `yaml:"top_k"`
	Oversample int `yaml:"oversample"`
}

// SynthesizerConfig configures prompt assembly.
type SynthesizerConfig struct {
	PromptBudget int    `yaml:"prompt_budget"`
	SystemPrompt string `yaml:"system_prompt,omitempty"`
}

// SummarizerConfig configures the corpus overview.
type SummarizerConfig struct {
	MaxSentences int `yaml:"max_sentences"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Generator   GeneratorConfig   `yaml:"generator"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Store       StoreConfig       `yaml:"store"`
	Retriever   RetrieverConfig   `yaml:"retriever"`
	Synthesizer SynthesizerConfig `yaml:"synthesizer"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
}

// Load reads a config from the given path. A missing file yields defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrConfig, path, err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrConfig, path, err)
	}
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/docqa/config.yaml.
// If neither exists, it writes defaults to the user path and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := userConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Default returns the documented default configuration: local embedder,
// static generator and in-memory store, so the binary runs offline.
func Default() *AppConfig {
	cfg := &AppConfig{
		Embedder:  EmbedderConfig{Type: "local"},
		Generator: GeneratorConfig{Type: "static"},
		Store:     StoreConfig{Type: "memory", Metric: string(vectorstore.MetricCosine)},
	}
	applyDefaults(cfg)
	return cfg
}

// Validate rejects invalid parameter combinations up front, before any
// component is constructed.
func Validate(cfg *AppConfig) error {
	switch cfg.Embedder.Type {
	case "local", "openai":
	default:
		return fmt.Errorf("%w: unknown embedder type %q", domain.ErrConfig, cfg.Embedder.Type)
	}
	switch cfg.Generator.Type {
	case "static", "openai":
	default:
		return fmt.Errorf("%w: unknown generator type %q", domain.ErrConfig, cfg.Generator.Type)
	}
	switch cfg.Store.Type {
	case "memory":
	case "qdrant":
		if cfg.Store.Qdrant == nil {
			return fmt.Errorf("%w: qdrant store selected but qdrant section missing", domain.ErrConfig)
		}
	case "pgvector":
		if cfg.Store.Postgres == nil {
			return fmt.Errorf("%w: pgvector store selected but postgres section missing", domain.ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store type %q", domain.ErrConfig, cfg.Store.Type)
	}
	if _, err := vectorstore.ParseMetric(cfg.Store.Metric); err != nil {
		return err
	}
	if cfg.Chunker.MaxChars <= 0 {
		return fmt.Errorf("%w: chunker max_chars must be positive", domain.ErrConfig)
	}
	if cfg.Chunker.OverlapChars < 0 || cfg.Chunker.OverlapChars >= cfg.Chunker.MaxChars {
		return fmt.Errorf("%w: chunker overlap_chars must be in [0, max_chars)", domain.ErrConfig)
	}
	if cfg.Retriever.TopK <= 0 {
		return fmt.Errorf("%w: retriever top_k must be positive", domain.ErrConfig)
	}
	if cfg.Retriever.Oversample <= 0 {
		return fmt.Errorf("%w: retriever oversample must be positive", domain.ErrConfig)
	}
	if cfg.Synthesizer.PromptBudget <= 0 {
		return fmt.Errorf("%w: synthesizer prompt_budget must be positive", domain.ErrConfig)
	}
	return nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "local"
	}
	if cfg.Embedder.Type == "local" && cfg.Embedder.Dimension == 0 {
		cfg.Embedder.Dimension = local.DefaultDimension
	}
	if cfg.Generator.Type == "" {
		cfg.Generator.Type = "static"
	}
	if cfg.Store.Type == "" {
		cfg.Store.Type = "memory"
	}
	if cfg.Store.Metric == "" {
		cfg.Store.Metric = string(vectorstore.MetricCosine)
	}
	if cfg.Chunker.MaxChars == 0 {
		cfg.Chunker.MaxChars = chunker.DefaultMaxChars
	}
	if cfg.Chunker.MaxChars > 0 && cfg.Chunker.OverlapChars == 0 {
		cfg.Chunker.OverlapChars = chunker.DefaultOverlap
		if cfg.Chunker.OverlapChars >= cfg.Chunker.MaxChars {
			cfg.Chunker.OverlapChars = cfg.Chunker.MaxChars / 5
		}
	}
	if cfg.Retriever.TopK == 0 {
		cfg.Retriever.TopK = retriever.DefaultTopK
	}
	if cfg.Retriever.Oversample == 0 {
		cfg.Retriever.Oversample = retriever.DefaultOversample
	}
	if cfg.Synthesizer.PromptBudget == 0 {
		cfg.Synthesizer.PromptBudget = synthesizer.DefaultPromptBudget
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 3
	}
}

func userConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docqa", "config.yaml"), nil
}
