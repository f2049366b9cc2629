// Package config loads and persists the application configuration.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// OllamaConfig configures the local Ollama embedder.
type OllamaConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// OpenAIConfig configures an OpenAI-compatible provider.
type OpenAIConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
	Dims      int    `yaml:"dims,omitempty"`
}

// GeminiConfig configures the Google Generative AI provider.
type GeminiConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
	Tier      string `yaml:"tier,omitempty"`
}

// EmbedderConfig selects and configures the embedding capability.
type EmbedderConfig struct {
	Provider string        `yaml:"provider"` // ollama, openai, gemini
	Ollama   *OllamaConfig `yaml:"ollama,omitempty"`
	OpenAI   *OpenAIConfig `yaml:"openai,omitempty"`
	Gemini   *GeminiConfig `yaml:"gemini,omitempty"`
}

// GeneratorConfig selects and configures the generation capability.
type GeneratorConfig struct {
	Provider string        `yaml:"provider"` // gemini, openai, extractive
	OpenAI   *OpenAIConfig `yaml:"openai,omitempty"`
	Gemini   *GeminiConfig `yaml:"gemini,omitempty"`
}

// RetrievalConfig holds the hybrid fusion tuning knobs.
type RetrievalConfig struct {
	VectorWeight  float64 `yaml:"vector_weight"`
	LexicalWeight float64 `yaml:"lexical_weight"`
	SummaryTopK   int     `yaml:"summary_top_k"`
	DetailTopK    int     `yaml:"detail_top_k"`
	DefaultTopK   int     `yaml:"default_top_k"`
}

// ContextConfig bounds assembled context and history reads.
type ContextConfig struct {
	TokenBudget  int `yaml:"token_budget"`
	HistoryTurns int `yaml:"history_turns"`
}

// MarkersConfig overrides the intent keyword lists.
type MarkersConfig struct {
	FollowUp []string `yaml:"follow_up,omitempty"`
	Summary  []string `yaml:"summary,omitempty"`
	Detail   []string `yaml:"detail,omitempty"`
}

// ChunkerConfig configures ingestion chunk sizes.
type ChunkerConfig struct {
	TargetSize int `yaml:"target_size"`
	MaxSize    int `yaml:"max_size"`
}

// Config is the root configuration structure.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Generator GeneratorConfig `yaml:"generator"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Context   ContextConfig   `yaml:"context"`
	Markers   MarkersConfig   `yaml:"markers,omitempty"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
}

// Load reads a config from a path. A missing file returns defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./docchat.yaml first, then the user config dir. If
// neither exists, defaults are written to the user path and returned.
func LoadDefault() (*Config, string, error) {
	cwdPath := "docchat.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
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

// Save writes the config to a path, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docchat", "config.yaml"), nil
}

// DefaultDBPath is where the store lives when not configured.
func DefaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".docchat", "docchat.db")
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{
		Store: StoreConfig{Path: DefaultDBPath()},
		Embedder: EmbedderConfig{
			Provider: "ollama",
			Ollama:   &OllamaConfig{BaseURL: "http://localhost:11434", Model: "nomic-embed-text"},
		},
		Generator: GeneratorConfig{Provider: "extractive"},
		Retrieval: RetrievalConfig{
			VectorWeight:  0.4,
			LexicalWeight: 0.6,
			SummaryTopK:   8,
			DetailTopK:    20,
			DefaultTopK:   15,
		},
		Context: ContextConfig{TokenBudget: 4000, HistoryTurns: 6},
		Chunker: ChunkerConfig{TargetSize: 400, MaxSize: 600},
	}
	return cfg
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Store.Path == "" {
		cfg.Store.Path = def.Store.Path
	}
	if cfg.Embedder.Provider == "" {
		cfg.Embedder = def.Embedder
	}
	if cfg.Generator.Provider == "" {
		cfg.Generator.Provider = def.Generator.Provider
	}
	if cfg.Retrieval.VectorWeight == 0 && cfg.Retrieval.LexicalWeight == 0 {
		cfg.Retrieval.VectorWeight = def.Retrieval.VectorWeight
		cfg.Retrieval.LexicalWeight = def.Retrieval.LexicalWeight
	}
	if cfg.Retrieval.SummaryTopK == 0 {
		cfg.Retrieval.SummaryTopK = def.Retrieval.SummaryTopK
	}
	if cfg.Retrieval.DetailTopK == 0 {
		cfg.Retrieval.DetailTopK = def.Retrieval.DetailTopK
	}
	if cfg.Retrieval.DefaultTopK == 0 {
		cfg.Retrieval.DefaultTopK = def.Retrieval.DefaultTopK
	}
	if cfg.Context.TokenBudget == 0 {
		cfg.Context.TokenBudget = def.Context.TokenBudget
	}
	if cfg.Context.HistoryTurns == 0 {
		cfg.Context.HistoryTurns = def.Context.HistoryTurns
	}
	if cfg.Chunker.TargetSize == 0 {
		cfg.Chunker.TargetSize = def.Chunker.TargetSize
	}
	if cfg.Chunker.MaxSize == 0 {
		cfg.Chunker.MaxSize = def.Chunker.MaxSize
	}
}
