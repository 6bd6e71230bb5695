package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ChunkerConfig configures the fixed-size character window.
type ChunkerConfig struct {
	Size    int `yaml:"size" toml:"size" validate:"gt=0"`
	Overlap int `yaml:"overlap" toml:"overlap" validate:"gte=0,ltfield=Size"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string `yaml:"type" toml:"type" validate:"oneof=hashing openai gemini"`
	Model     string `yaml:"model,omitempty" toml:"model,omitempty"`
	Dimension int    `yaml:"dimension" toml:"dimension" validate:"gte=0"`
	APIKeyEnv string `yaml:"api_key_env,omitempty" toml:"api_key_env,omitempty"`
	BaseURL   string `yaml:"base_url,omitempty" toml:"base_url,omitempty" validate:"omitempty,url"`
}

// GeneratorConfig selects and configures the answer generator.
type GeneratorConfig struct {
	Type        string  `yaml:"type" toml:"type" validate:"oneof=openai anthropic gemini"`
	Model       string  `yaml:"model,omitempty" toml:"model,omitempty"`
	MaxTokens   int     `yaml:"max_tokens" toml:"max_tokens" validate:"gt=0"`
	Temperature float64 `yaml:"temperature" toml:"temperature" validate:"gte=0,lte=2"`
	APIKeyEnv   string  `yaml:"api_key_env,omitempty" toml:"api_key_env,omitempty"`
	BaseURL     string  `yaml:"base_url,omitempty" toml:"base_url,omitempty" validate:"omitempty,url"`
	TimeoutSecs int     `yaml:"timeout_secs" toml:"timeout_secs" validate:"gt=0"`
}

// RetrievalConfig controls how much context reaches the generator.
type RetrievalConfig struct {
	TopK            int `yaml:"top_k" toml:"top_k" validate:"gt=0"`
	MaxContextChars int `yaml:"max_context_chars" toml:"max_context_chars" validate:"gte=0"`
}

// StoreConfig locates the persisted vector store.
type StoreConfig struct {
	Path string `yaml:"path" toml:"path" validate:"required"`
}

// SummarizerConfig configures the ingest summary.
type SummarizerConfig struct {
	MaxSentences int `yaml:"max_sentences" toml:"max_sentences" validate:"gte=0"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" toml:"format" validate:"oneof=console json"`
	File   string `yaml:"file,omitempty" toml:"file,omitempty"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Chunker    ChunkerConfig    `yaml:"chunker" toml:"chunker"`
	Embedder   EmbedderConfig   `yaml:"embedder" toml:"embedder"`
	Generator  GeneratorConfig  `yaml:"generator" toml:"generator"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" toml:"retrieval"`
	Store      StoreConfig      `yaml:"store" toml:"store"`
	Summarizer SummarizerConfig `yaml:"summarizer" toml:"summarizer"`
	Logging    LoggingConfig    `yaml:"logging" toml:"logging"`
}

// Load reads a YAML or TOML config (chosen by extension) over the defaults.
// A missing file yields the defaults.
func Load(path string) (*AppConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyConfigDefaults(cfg)
			return cfg, nil
		}
		return nil, err
	}
	if isTOML(path) {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml, ./config.toml, then ~/.config/finqa/config.yaml.
// If none exists, it writes defaults to ~/.config/finqa/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	for _, p := range []string{"config.yaml", "config.toml"} {
		if _, err := os.Stat(p); err == nil {
			cfg, err := Load(p)
			return cfg, p, err
		}
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
	applyConfigDefaults(cfg)
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
	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks field constraints declared in the struct tags.
func Validate(cfg *AppConfig) error {
	return validator.New(validator.WithRequiredStructEnabled()).Struct(cfg)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "finqa", "config.yaml"), nil
}

// Default returns the built-in configuration before provider defaults are applied.
func Default() *AppConfig {
	return &AppConfig{
		Chunker:    ChunkerConfig{Size: 1000, Overlap: 200},
		Embedder:   EmbedderConfig{Type: "hashing"},
		Generator:  GeneratorConfig{Type: "openai", MaxTokens: 1000, Temperature: 0.1, TimeoutSecs: 60},
		Retrieval:  RetrievalConfig{TopK: 5, MaxContextChars: 12000},
		Store:      StoreConfig{Path: "vector_store"},
		Summarizer: SummarizerConfig{MaxSentences: 3},
		Logging:    LoggingConfig{Level: "info", Format: "console"},
	}
}

// applyConfigDefaults fills fields whose default depends on the selected provider.
func applyConfigDefaults(cfg *AppConfig) {
	switch cfg.Embedder.Type {
	case "hashing":
		if cfg.Embedder.Dimension == 0 {
			cfg.Embedder.Dimension = 384
		}
	case "openai":
		if cfg.Embedder.Model == "" {
			cfg.Embedder.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.APIKeyEnv == "" {
			cfg.Embedder.APIKeyEnv = "OPENAI_API_KEY"
		}
	case "gemini":
		if cfg.Embedder.Model == "" {
			cfg.Embedder.Model = "text-embedding-004"
		}
		if cfg.Embedder.APIKeyEnv == "" {
			cfg.Embedder.APIKeyEnv = "GEMINI_API_KEY"
		}
	}

	switch cfg.Generator.Type {
	case "openai":
		if cfg.Generator.Model == "" {
			cfg.Generator.Model = "gpt-3.5-turbo"
		}
		if cfg.Generator.APIKeyEnv == "" {
			cfg.Generator.APIKeyEnv = "OPENAI_API_KEY"
		}
	case "anthropic":
		if cfg.Generator.Model == "" {
			cfg.Generator.Model = "claude-3-5-haiku-latest"
		}
		if cfg.Generator.APIKeyEnv == "" {
			cfg.Generator.APIKeyEnv = "ANTHROPIC_API_KEY"
		}
	case "gemini":
		if cfg.Generator.Model == "" {
			cfg.Generator.Model = "gemini-2.0-flash"
		}
		if cfg.Generator.APIKeyEnv == "" {
			cfg.Generator.APIKeyEnv = "GEMINI_API_KEY"
		}
	}
}
